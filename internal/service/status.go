package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"namocoins/internal/database"
	"namocoins/internal/model"
)

type StatusStore interface {
	InTx(ctx context.Context, fn func(database.OrderTx) error) error
}

type Granter interface {
	Grant(ctx context.Context, player string, amount int) GrantOutcome
}

type InvoiceSender interface {
	SendInvoice(ctx context.Context, d *model.OrderDetail) error
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev model.OrderEvent) error
}

type NotifyOutcome struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// TransitionReport lists what a status change did. Fulfillment and
// Notification are nil when the PAID effects were not triggered.
type TransitionReport struct {
	OrderID         string            `json:"order_id"`
	OrderNo         string            `json:"order_no"`
	Previous        model.OrderStatus `json:"previous"`
	Current         model.OrderStatus `json:"current"`
	BalanceCredited bool              `json:"balance_credited"`
	CoinBalance     int               `json:"coin_balance"`
	Fulfillment     *GrantOutcome     `json:"fulfillment,omitempty"`
	Notification    *NotifyOutcome    `json:"notification,omitempty"`
	EventPublished  bool              `json:"event_published"`
}

type StatusService struct {
	store    StatusStore
	granter  Granter
	invoices InvoiceSender
	events   EventPublisher
}

// NewStatusService wires the transition engine. events may be nil.
func NewStatusService(store StatusStore, granter Granter, invoices InvoiceSender, events EventPublisher) *StatusService {
	return &StatusService{
		store:    store,
		granter:  granter,
		invoices: invoices,
		events:   events,
	}
}

// Transition sets the order status on behalf of an administrator.
//
// The previous status is read under a row lock in the same transaction that
// writes the new one, so only the first transition into PAID credits the
// owner's balance. The in-game grant and the invoice run after commit, in
// that order, and their failures are reported but never returned.
func (s *StatusService) Transition(ctx context.Context, caller model.Caller, orderID, requested string) (*TransitionReport, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}

	next, err := model.ParseOrderStatus(requested)
	if err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}

	var (
		detail   *model.OrderDetail
		previous model.OrderStatus
		credited bool
	)
	err = s.store.InTx(ctx, func(tx database.OrderTx) error {
		d, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		previous = d.Order.Status
		wasPaid := previous == model.StatusPaid

		if err := tx.SetOrderStatus(ctx, orderID, next); err != nil {
			return err
		}
		d.Order.Status = next

		if !wasPaid && next == model.StatusPaid {
			balance, err := tx.AddCoinBalance(ctx, d.User.ID, d.Order.Coins)
			if err != nil {
				return err
			}
			d.User.CoinBalance = balance
			credited = true
		}

		detail = d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("transition order %s: %w", orderID, err)
	}

	report := &TransitionReport{
		OrderID:         detail.Order.ID,
		OrderNo:         detail.Order.OrderNo,
		Previous:        previous,
		Current:         next,
		BalanceCredited: credited,
		CoinBalance:     detail.User.CoinBalance,
	}

	logger := log.WithFields(log.Fields{
		"order_no": detail.Order.OrderNo,
		"from":     previous,
		"to":       next,
	})
	logger.Info("order status updated")

	if previous == model.StatusPaid && next != model.StatusPaid {
		logger.Warn("order left PAID; credited coins are not reversed")
	}

	// The commit already happened; the effects below must not be cut short
	// by the caller going away.
	effectCtx := context.WithoutCancel(ctx)

	if credited {
		logger.WithField("coins", detail.Order.Coins).Info("coin balance credited")
		s.grant(effectCtx, detail, report)
		s.sendInvoice(effectCtx, detail, report)
	}

	if previous != next {
		s.publish(effectCtx, detail, previous, report)
	}

	return report, nil
}

func (s *StatusService) grant(ctx context.Context, d *model.OrderDetail, report *TransitionReport) {
	outcome := s.granter.Grant(ctx, d.User.MinecraftUsername, d.Order.Coins)
	report.Fulfillment = &outcome

	if !outcome.OK {
		log.WithFields(log.Fields{
			"order_no": d.Order.OrderNo,
			"reason":   outcome.Reason,
			"detail":   outcome.Detail,
		}).Warn("player points not added")
	}
}

func (s *StatusService) sendInvoice(ctx context.Context, d *model.OrderDetail, report *TransitionReport) {
	report.Notification = &NotifyOutcome{}

	if err := s.invoices.SendInvoice(ctx, d); err != nil {
		report.Notification.Error = err.Error()
		log.WithError(err).WithField("order_no", d.Order.OrderNo).Error("invoice email failed")
		return
	}
	report.Notification.Sent = true
}

func (s *StatusService) publish(ctx context.Context, d *model.OrderDetail, previous model.OrderStatus, report *TransitionReport) {
	if s.events == nil {
		return
	}

	ev := model.OrderEvent{
		OrderID:   d.Order.ID,
		OrderNo:   d.Order.OrderNo,
		UserID:    d.Order.UserID,
		Previous:  previous,
		Status:    d.Order.Status,
		Coins:     d.Order.Coins,
		PriceINR:  d.Order.PriceINR,
		Timestamp: time.Now().Unix(),
	}
	if err := s.events.PublishOrderEvent(ctx, ev); err != nil {
		log.WithError(err).WithField("order_no", d.Order.OrderNo).Warn("order event not published")
		return
	}
	report.EventPublished = true
}
