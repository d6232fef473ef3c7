package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"namocoins/internal/model"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

const uniqueViolation = "23505"

// Store is the Postgres implementation of every persistence contract the
// services depend on.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OrderTx is the set of queries available inside an order status
// transaction. LockOrder holds the order row until the transaction ends.
type OrderTx interface {
	LockOrder(ctx context.Context, orderID string) (*model.OrderDetail, error)
	SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	AddCoinBalance(ctx context.Context, userID string, amount int) (int, error)
}

// InTx runs fn in a single database transaction. The transaction commits
// only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(OrderTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&orderTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type orderTx struct {
	tx *sql.Tx
}

const orderDetailColumns = `
	o.id, o.order_no, o.user_id, o.product_id, o.price_inr, o.coins, o.status,
	o.payment_method, o.upi_txn_id, o.payment_proof_url, o.created_at,
	u.id, u.email, u.name, u.minecraft_username, u.phone, u.coin_balance, u.created_at,
	p.id, p.sku, p.name, p.price_inr, p.coins, p.active, p.best_seller
FROM orders o
JOIN users u ON u.id = o.user_id
JOIN products p ON p.id = o.product_id`

func (t *orderTx) LockOrder(ctx context.Context, orderID string) (*model.OrderDetail, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+orderDetailColumns+` WHERE o.id = $1 FOR UPDATE OF o`, orderID)

	d, err := scanOrderDetail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return d, nil
}

func (t *orderTx) SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectOneRow(res)
}

func (t *orderTx) AddCoinBalance(ctx context.Context, userID string, amount int) (int, error) {
	var balance int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE users SET coin_balance = coin_balance + $1 WHERE id = $2 RETURNING coin_balance`,
		amount, userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return balance, nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, minecraft_username, phone, password_hash, coin_balance)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING created_at
	`, u.ID, u.Email, u.Name, u.MinecraftUsername, u.Phone, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, minecraft_username, phone, password_hash, coin_balance, created_at`

// UserByLogin matches either the email or the display name.
func (s *Store) UserByLogin(ctx context.Context, identifier string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 OR name = $1 ORDER BY created_at LIMIT 1`, identifier)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.MinecraftUsername, &u.Phone,
		&u.PasswordHash, &u.CoinBalance, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Products

const productColumns = `id, sku, name, price_inr, coins, active, best_seller`

func (s *Store) Products(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY price_inr ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceINR, &p.Coins, &p.Active, &p.BestSeller); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return products, nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.PriceINR, &p.Coins, &p.Active, &p.BestSeller)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET name = $1, price_inr = $2, coins = $3, active = $4, best_seller = $5
		WHERE id = $6
	`, p.Name, p.PriceINR, p.Coins, p.Active, p.BestSeller, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectOneRow(res)
}

func (s *Store) SetProductCoins(ctx context.Context, id string, coins int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET coins = $1 WHERE id = $2`, coins, id)
	if err != nil {
		return fmt.Errorf("update product coins: %w", err)
	}
	return expectOneRow(res)
}

// UpsertProducts inserts or refreshes products keyed by SKU in one
// transaction. IDs of existing rows are kept.
func (s *Store) UpsertProducts(ctx context.Context, products []model.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, sku, name, price_inr, coins, active, best_seller)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				price_inr = EXCLUDED.price_inr,
				coins = EXCLUDED.coins,
				active = EXCLUDED.active,
				best_seller = EXCLUDED.best_seller
		`, p.ID, p.SKU, p.Name, p.PriceINR, p.Coins, p.Active, p.BestSeller)
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}

	return tx.Commit()
}

// Settings

// IntSetting returns the stored value, creating the row with def first if
// it does not exist yet.
func (s *Store) IntSetting(ctx context.Context, key string, def int) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO settings (key, int_value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET key = EXCLUDED.key
		RETURNING int_value
	`, key, def).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// SaveRate stores the conversion rate. When reprice is non-nil the coins of
// every active product are recomputed with it in the same transaction, so
// either the rate and the whole catalog change or nothing does.
func (s *Store) SaveRate(ctx context.Context, rate int, reprice func(priceINR int) int) ([]model.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (key, int_value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET int_value = EXCLUDED.int_value
	`, model.SettingConversionRate, rate)
	if err != nil {
		return nil, fmt.Errorf("save rate: %w", err)
	}

	var repriced []model.Product
	if reprice != nil {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE active ORDER BY price_inr ASC FOR UPDATE`)
		if err != nil {
			return nil, fmt.Errorf("query products: %w", err)
		}
		for rows.Next() {
			var p model.Product
			if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceINR, &p.Coins, &p.Active, &p.BestSeller); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan product: %w", err)
			}
			repriced = append(repriced, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rows iteration failed: %w", err)
		}
		rows.Close()

		for i := range repriced {
			repriced[i].Coins = reprice(repriced[i].PriceINR)
			if _, err := tx.ExecContext(ctx, `UPDATE products SET coins = $1 WHERE id = $2`,
				repriced[i].Coins, repriced[i].ID); err != nil {
				return nil, fmt.Errorf("reprice product %s: %w", repriced[i].SKU, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return repriced, nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, o *model.Order) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, order_no, user_id, product_id, price_inr, coins, status, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, o.ID, o.OrderNo, o.UserID, o.ProductID, o.PriceINR, o.Coins, string(o.Status), o.PaymentMethod).
		Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) OrderDetail(ctx context.Context, id string) (*model.OrderDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderDetailColumns+` WHERE o.id = $1`, id)
	d, err := scanOrderDetail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return d, nil
}

// OrderDetails lists orders newest first; an empty userID lists every order.
func (s *Store) OrderDetails(ctx context.Context, userID string) ([]model.OrderDetail, error) {
	query := `SELECT ` + orderDetailColumns
	var args []any
	if userID != "" {
		query += ` WHERE o.user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY o.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.OrderDetail
	for rows.Next() {
		d, err := scanOrderDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}

// UpdatePaymentProof replaces the transaction id and, when proofURL is
// non-nil, the proof reference.
func (s *Store) UpdatePaymentProof(ctx context.Context, orderID string, txnID, proofURL *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET upi_txn_id = $1, payment_proof_url = COALESCE($2, payment_proof_url)
		WHERE id = $3
	`, txnID, proofURL, orderID)
	if err != nil {
		return fmt.Errorf("update payment proof: %w", err)
	}
	return expectOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderDetail(row rowScanner) (*model.OrderDetail, error) {
	var (
		d        model.OrderDetail
		status   string
		txnID    sql.NullString
		proofURL sql.NullString
	)
	err := row.Scan(
		&d.Order.ID, &d.Order.OrderNo, &d.Order.UserID, &d.Order.ProductID,
		&d.Order.PriceINR, &d.Order.Coins, &status, &d.Order.PaymentMethod,
		&txnID, &proofURL, &d.Order.CreatedAt,
		&d.User.ID, &d.User.Email, &d.User.Name, &d.User.MinecraftUsername,
		&d.User.Phone, &d.User.CoinBalance, &d.User.CreatedAt,
		&d.Product.ID, &d.Product.SKU, &d.Product.Name, &d.Product.PriceINR,
		&d.Product.Coins, &d.Product.Active, &d.Product.BestSeller,
	)
	if err != nil {
		return nil, err
	}
	d.Order.Status = model.OrderStatus(status)
	if txnID.Valid {
		d.Order.UPITxnID = &txnID.String
	}
	if proofURL.Valid {
		d.Order.PaymentProofURL = &proofURL.String
	}
	return &d, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
