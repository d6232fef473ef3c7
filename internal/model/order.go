package model

import (
	"errors"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusCreated             OrderStatus = "CREATED"
	StatusPendingVerification OrderStatus = "PENDING_VERIFICATION"
	StatusPaid                OrderStatus = "PAID"
	StatusRejected            OrderStatus = "REJECTED"
)

var ErrInvalidStatus = errors.New("invalid order status")

// ParseOrderStatus accepts exactly the four order states. Surrounding
// whitespace is ignored, case is not.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.TrimSpace(s)); st {
	case StatusCreated, StatusPendingVerification, StatusPaid, StatusRejected:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

const PaymentMethodUPIGPay = "UPI_GPAY"

type Order struct {
	ID              string      `json:"id"`
	OrderNo         string      `json:"order_no"`
	UserID          string      `json:"user_id"`
	ProductID       string      `json:"product_id"`
	PriceINR        int         `json:"price_inr"`
	Coins           int         `json:"coins"`
	Status          OrderStatus `json:"status"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	UPITxnID        *string     `json:"upi_txn_id,omitempty"`
	PaymentProofURL *string     `json:"payment_proof_url,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// OrderDetail is an order joined with its owner and product.
type OrderDetail struct {
	Order   Order   `json:"order"`
	User    User    `json:"user"`
	Product Product `json:"product"`
}
