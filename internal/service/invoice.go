package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"namocoins/internal/model"
)

const (
	StoreName     = "NamoCoins Store"
	StoreSubtitle = "Minecraft Coin Shop"
)

//go:embed templates/invoice.html
var templateFS embed.FS

var invoiceTmpl = template.Must(template.ParseFS(templateFS, "templates/invoice.html"))

// MailSender delivers one HTML message.
type MailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// MailError reports that the mail transport rejected an invoice.
type MailError struct {
	To  string
	Err error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("send invoice to %s: %v", e.To, e.Err)
}

func (e *MailError) Unwrap() error {
	return e.Err
}

var indiaTime = loadIndiaTime()

func loadIndiaTime() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

type invoiceView struct {
	StoreName     string
	StoreSubtitle string
	Date          string
	Order         model.Order
	User          model.User
	Product       model.Product
	PaymentMethod string
	TxnID         string
	Price         string
}

func FormatINR(amount int) string {
	return "₹" + strconv.Itoa(amount)
}

func InvoiceSubject(orderNo string) string {
	return fmt.Sprintf("Invoice - %s (%s)", orderNo, StoreName)
}

// RenderInvoice formats already resolved order data; it computes nothing.
func RenderInvoice(d *model.OrderDetail) (string, error) {
	view := invoiceView{
		StoreName:     StoreName,
		StoreSubtitle: StoreSubtitle,
		Date:          d.Order.CreatedAt.In(indiaTime).Format("02/01/2006, 3:04:05 pm"),
		Order:         d.Order,
		User:          d.User,
		Product:       d.Product,
		PaymentMethod: d.Order.PaymentMethod,
		TxnID:         "-",
		Price:         FormatINR(d.Order.PriceINR),
	}
	if view.PaymentMethod == "" {
		view.PaymentMethod = "UPI"
	}
	if d.Order.UPITxnID != nil && *d.Order.UPITxnID != "" {
		view.TxnID = *d.Order.UPITxnID
	}

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return buf.String(), nil
}

type InvoiceNotifier struct {
	mail MailSender
}

func NewInvoiceNotifier(mail MailSender) *InvoiceNotifier {
	return &InvoiceNotifier{mail: mail}
}

// SendInvoice renders the invoice and mails it to the order owner.
// Transport failures are returned as *MailError.
func (n *InvoiceNotifier) SendInvoice(ctx context.Context, d *model.OrderDetail) error {
	html, err := RenderInvoice(d)
	if err != nil {
		return err
	}

	if err := n.mail.Send(ctx, d.User.Email, InvoiceSubject(d.Order.OrderNo), html); err != nil {
		return &MailError{To: d.User.Email, Err: err}
	}
	return nil
}
