package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namocoins/internal/model"
)

func invoiceDetail() *model.OrderDetail {
	return &model.OrderDetail{
		Order: model.Order{
			OrderNo:  "NC-20260115-Q7K2ZD",
			PriceINR: 99,
			Coins:    174,
			Status:   model.StatusPaid,
			// 08:00 UTC is 13:30 in India.
			CreatedAt: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC),
		},
		User: model.User{
			Name:              "Steve <admin>",
			Email:             "steve@example.com",
			MinecraftUsername: "Steve",
			Phone:             "9876543210",
		},
		Product: model.Product{Name: "Starter Pack"},
	}
}

func TestRenderInvoice(t *testing.T) {
	d := invoiceDetail()
	txn := "412345678901"
	d.Order.UPITxnID = &txn
	d.Order.PaymentMethod = model.PaymentMethodUPIGPay

	html, err := RenderInvoice(d)
	require.NoError(t, err)

	for _, want := range []string{
		"NamoCoins Store",
		"Minecraft Coin Shop",
		"15/01/2026, 1:30:00 pm",
		"NC-20260115-Q7K2ZD",
		"PAID",
		"UPI_GPAY",
		"412345678901",
		"Starter Pack",
		"174",
		"₹99",
		"MC: Steve",
		"9876543210",
		"steve@example.com",
	} {
		assert.Contains(t, html, want)
	}
	assert.Contains(t, html, "Steve &lt;admin&gt;")
	assert.NotContains(t, html, "<admin>")
}

func TestRenderInvoice_Defaults(t *testing.T) {
	html, err := RenderInvoice(invoiceDetail())
	require.NoError(t, err)

	assert.Contains(t, html, "<b>Payment:</b> UPI</div>")
	assert.Contains(t, html, "<b>UPI Txn:</b> -</div>")
	assert.Equal(t, 2, strings.Count(html, "₹99"))
}

func TestInvoiceSubject(t *testing.T) {
	assert.Equal(t, "Invoice - NC-1 (NamoCoins Store)", InvoiceSubject("NC-1"))
}

func TestSendInvoice_WrapsTransportError(t *testing.T) {
	transportErr := errors.New("connection refused")
	n := NewInvoiceNotifier(&fakeMailer{err: transportErr})

	err := n.SendInvoice(context.Background(), invoiceDetail())

	var mailErr *MailError
	require.ErrorAs(t, err, &mailErr)
	assert.Equal(t, "steve@example.com", mailErr.To)
	assert.ErrorIs(t, err, transportErr)
}

func TestSendInvoice(t *testing.T) {
	m := &fakeMailer{}
	require.NoError(t, NewInvoiceNotifier(m).SendInvoice(context.Background(), invoiceDetail()))

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "steve@example.com", sent[0].To)
	assert.Equal(t, "Invoice - NC-20260115-Q7K2ZD (NamoCoins Store)", sent[0].Subject)
}
