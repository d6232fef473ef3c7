package model

// OrderEvent is published whenever an order changes status.
type OrderEvent struct {
	OrderID   string      `json:"order_id"`
	OrderNo   string      `json:"order_no"`
	UserID    string      `json:"user_id"`
	Previous  OrderStatus `json:"previous"`
	Status    OrderStatus `json:"status"`
	Coins     int         `json:"coins"`
	PriceINR  int         `json:"price_inr"`
	Timestamp int64       `json:"timestamp"`
}
