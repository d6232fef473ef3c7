package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"namocoins/internal/database"
	"namocoins/internal/model"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory store. InTx holds the store mutex for the whole
// transaction, which serializes transitions the way the row lock does, and
// restores the previous state when fn fails.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	products map[string]*model.Product
	orders   map[string]*model.Order
	settings map[string]int

	failSetStatus error
	failSaveRate  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*model.User{},
		products: map[string]*model.Product{},
		orders:   map[string]*model.Order{},
		settings: map[string]int{},
	}
}

func (s *memStore) addUser(u model.User) *model.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = &u
	return &u
}

func (s *memStore) addProduct(p model.Product) *model.Product {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = &p
	return &p
}

func (s *memStore) addOrder(userID string, p *model.Product, status model.OrderStatus) *model.Order {
	o := &model.Order{
		ID:            uuid.NewString(),
		OrderNo:       "NC-20260101-ABC123",
		UserID:        userID,
		ProductID:     p.ID,
		PriceINR:      p.PriceINR,
		Coins:         p.Coins,
		Status:        status,
		PaymentMethod: model.PaymentMethodUPIGPay,
		CreatedAt:     time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	s.orders[o.ID] = o
	return o
}

func (s *memStore) balance(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].CoinBalance
}

func (s *memStore) status(orderID string) model.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}

func (s *memStore) InTx(ctx context.Context, fn func(database.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]model.OrderStatus, len(s.orders))
	for id, o := range s.orders {
		statuses[id] = o.Status
	}
	balances := make(map[string]int, len(s.users))
	for id, u := range s.users {
		balances[id] = u.CoinBalance
	}

	if err := fn(memTx{s}); err != nil {
		for id, st := range statuses {
			s.orders[id].Status = st
		}
		for id, b := range balances {
			s.users[id].CoinBalance = b
		}
		return err
	}
	return nil
}

type memTx struct {
	s *memStore
}

func (t memTx) LockOrder(ctx context.Context, orderID string) (*model.OrderDetail, error) {
	return t.s.detail(orderID)
}

func (t memTx) SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	if t.s.failSetStatus != nil {
		return t.s.failSetStatus
	}
	o, ok := t.s.orders[orderID]
	if !ok {
		return database.ErrNotFound
	}
	o.Status = status
	return nil
}

func (t memTx) AddCoinBalance(ctx context.Context, userID string, amount int) (int, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return 0, database.ErrNotFound
	}
	u.CoinBalance += amount
	return u.CoinBalance, nil
}

// detail must be called with mu held.
func (s *memStore) detail(orderID string) (*model.OrderDetail, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &model.OrderDetail{
		Order:   *o,
		User:    *s.users[o.UserID],
		Product: *s.products[o.ProductID],
	}, nil
}

func (s *memStore) OrderDetail(ctx context.Context, id string) (*model.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail(id)
}

func (s *memStore) OrderDetails(ctx context.Context, userID string) ([]model.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.OrderDetail
	for id, o := range s.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		d, _ := s.detail(id)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Order.CreatedAt.After(out[j].Order.CreatedAt)
	})
	return out, nil
}

func (s *memStore) CreateOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.CreatedAt = time.Now()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *memStore) UpdatePaymentProof(ctx context.Context, orderID string, txnID, proofURL *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return database.ErrNotFound
	}
	o.UPITxnID = txnID
	if proofURL != nil {
		o.PaymentProofURL = proofURL
	}
	return nil
}

func (s *memStore) IntSetting(ctx context.Context, key string, def int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.settings[key]; ok {
		return v, nil
	}
	s.settings[key] = def
	return def, nil
}

func (s *memStore) SaveRate(ctx context.Context, rate int, reprice func(int) int) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveRate != nil {
		return nil, s.failSaveRate
	}

	s.settings[model.SettingConversionRate] = rate
	if reprice == nil {
		return nil, nil
	}

	var out []model.Product
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		p.Coins = reprice(p.PriceINR)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceINR < out[j].PriceINR })
	return out, nil
}

func (s *memStore) Products(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Product
	for _, p := range s.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceINR < out[j].PriceINR })
	return out, nil
}

func (s *memStore) ProductByID(ctx context.Context, id string) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memStore) SetProductCoins(ctx context.Context, id string, coins int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return database.ErrNotFound
	}
	p.Coins = coins
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return database.ErrEmailTaken
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) UserByLogin(ctx context.Context, identifier string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == identifier || u.Name == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type grantCall struct {
	Player string
	Amount int
}

type fakeGranter struct {
	mu      sync.Mutex
	calls   []grantCall
	outcome GrantOutcome
}

func (g *fakeGranter) Grant(ctx context.Context, player string, amount int) GrantOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, grantCall{Player: player, Amount: amount})
	if g.outcome.Reason != "" {
		return g.outcome
	}
	return GrantOutcome{OK: true, Command: BuildCommand(DefaultPlayerPointsCommand, player, amount)}
}

func (g *fakeGranter) Calls() []grantCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]grantCall(nil), g.calls...)
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
	err    error
}

func (p *fakePublisher) PublishOrderEvent(ctx context.Context, ev model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Events() []model.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.OrderEvent(nil), p.events...)
}
