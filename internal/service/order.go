package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"namocoins/internal/database"
	"namocoins/internal/model"
)

const (
	orderNoPrefix   = "NC"
	orderNoAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderNoRandLen  = 6

	DefaultQRImagePath = "/qr/upi_qr.png"
)

type OrderStore interface {
	ProductByID(ctx context.Context, id string) (*model.Product, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	OrderDetail(ctx context.Context, id string) (*model.OrderDetail, error)
	OrderDetails(ctx context.Context, userID string) ([]model.OrderDetail, error)
	UpdatePaymentProof(ctx context.Context, orderID string, txnID, proofURL *string) error
}

type UPIConfig struct {
	ID          string
	PayeeName   string
	QRImagePath string
}

// PaymentInfo is what a customer needs to pay an order by UPI.
type PaymentInfo struct {
	Order       model.Order   `json:"order"`
	Product     model.Product `json:"product"`
	UPIID       string        `json:"upi_id"`
	PayeeName   string        `json:"payee_name"`
	AmountINR   int           `json:"amount_inr"`
	QRImagePath string        `json:"qr_image_path"`
}

type OrderService struct {
	store OrderStore
	upi   UPIConfig
	now   func() time.Time
}

func NewOrderService(store OrderStore, upi UPIConfig) *OrderService {
	if upi.QRImagePath == "" {
		upi.QRImagePath = DefaultQRImagePath
	}
	return &OrderService{store: store, upi: upi, now: time.Now}
}

// Buy creates a pending UPI order for the caller, snapshotting the
// product's current price and coins.
func (s *OrderService) Buy(ctx context.Context, caller model.Caller, productID string) (*model.Order, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	if _, err := uuid.Parse(productID); err != nil {
		return nil, ErrProductNotFound
	}

	p, err := s.store.ProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if !p.Active {
		return nil, ErrProductNotFound
	}

	orderNo, err := NewOrderNo(s.now())
	if err != nil {
		return nil, err
	}

	o := &model.Order{
		ID:            uuid.NewString(),
		OrderNo:       orderNo,
		UserID:        caller.UserID,
		ProductID:     p.ID,
		PriceINR:      p.PriceINR,
		Coins:         p.Coins,
		Status:        model.StatusPendingVerification,
		PaymentMethod: model.PaymentMethodUPIGPay,
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"order_no": o.OrderNo, "sku": p.SKU, "user_id": o.UserID}).Info("order created")
	return o, nil
}

func (s *OrderService) PaymentInfo(ctx context.Context, caller model.Caller, orderID string) (*PaymentInfo, error) {
	d, err := s.owned(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentInfo{
		Order:       d.Order,
		Product:     d.Product,
		UPIID:       s.upi.ID,
		PayeeName:   s.upi.PayeeName,
		AmountINR:   d.Order.PriceINR,
		QRImagePath: s.upi.QRImagePath,
	}, nil
}

// AttachProof records the customer's UPI transaction id. An empty txnID
// clears it; an empty proofURL keeps the previous proof.
func (s *OrderService) AttachProof(ctx context.Context, caller model.Caller, orderID, txnID, proofURL string) error {
	if _, err := s.owned(ctx, caller, orderID); err != nil {
		return err
	}

	var txn, proof *string
	if v := strings.TrimSpace(txnID); v != "" {
		txn = &v
	}
	if v := strings.TrimSpace(proofURL); v != "" {
		proof = &v
	}

	if err := s.store.UpdatePaymentProof(ctx, orderID, txn, proof); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

func (s *OrderService) ListForUser(ctx context.Context, caller model.Caller) ([]model.OrderDetail, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	return s.store.OrderDetails(ctx, caller.UserID)
}

// ListAll returns every order, newest first.
func (s *OrderService) ListAll(ctx context.Context, caller model.Caller) ([]model.OrderDetail, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}
	return s.store.OrderDetails(ctx, "")
}

// owned loads an order the caller owns. Orders of other users are reported
// as missing.
func (s *OrderService) owned(ctx context.Context, caller model.Caller, orderID string) (*model.OrderDetail, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}

	d, err := s.store.OrderDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if d.Order.UserID != caller.UserID {
		return nil, ErrOrderNotFound
	}
	return d, nil
}

// NewOrderNo formats NC-YYYYMMDD-XXXXXX with six random base-36 characters.
func NewOrderNo(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(orderNoPrefix)
	b.WriteByte('-')
	b.WriteString(now.Format("20060102"))
	b.WriteByte('-')

	base := big.NewInt(int64(len(orderNoAlphabet)))
	for i := 0; i < orderNoRandLen; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("order number: %w", err)
		}
		b.WriteByte(orderNoAlphabet[n.Int64()])
	}
	return b.String(), nil
}
