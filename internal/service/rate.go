package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"namocoins/internal/database"
	"namocoins/internal/model"
)

type CatalogStore interface {
	IntSetting(ctx context.Context, key string, def int) (int, error)
	SaveRate(ctx context.Context, rate int, reprice func(priceINR int) int) ([]model.Product, error)
	Products(ctx context.Context, activeOnly bool) ([]model.Product, error)
	ProductByID(ctx context.Context, id string) (*model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	SetProductCoins(ctx context.Context, id string, coins int) error
}

type RateUpdate struct {
	CoinRate int             `json:"coin_rate"`
	Repriced []model.Product `json:"repriced,omitempty"`
	Recalced bool            `json:"recalced"`
}

// ProductEdit carries the admin-editable product fields.
type ProductEdit struct {
	Name       string `json:"name"`
	PriceINR   int    `json:"price_inr"`
	Coins      int    `json:"coins"`
	Active     bool   `json:"active"`
	BestSeller bool   `json:"best_seller"`
}

// Shop is what the storefront renders: active packs and the rate they
// were priced with.
type Shop struct {
	CoinRate int             `json:"coin_rate"`
	Products []model.Product `json:"products"`
}

type RateService struct {
	store   CatalogStore
	pricing Pricing
}

func NewRateService(store CatalogStore, pricing Pricing) *RateService {
	return &RateService{store: store, pricing: pricing}
}

// CoinRate returns the stored conversion rate, creating it with the default
// on first use.
func (s *RateService) CoinRate(ctx context.Context) (int, error) {
	return s.store.IntSetting(ctx, model.SettingConversionRate, model.DefaultCoinRate)
}

// UpdateRate stores a new rate. With recalc every active product is
// repriced in the same transaction as the rate write.
func (s *RateService) UpdateRate(ctx context.Context, caller model.Caller, rate int, recalc bool) (*RateUpdate, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}
	if !ValidRate(rate) {
		return nil, ErrRateOutOfRange
	}

	var reprice func(int) int
	if recalc {
		reprice = func(price int) int { return s.pricing.Coins(price, rate) }
	}

	products, err := s.store.SaveRate(ctx, rate, reprice)
	if err != nil {
		return nil, fmt.Errorf("update rate: %w", err)
	}

	log.WithFields(log.Fields{"rate": rate, "recalc": recalc, "repriced": len(products)}).Info("coin rate updated")
	return &RateUpdate{CoinRate: rate, Repriced: products, Recalced: recalc}, nil
}

// RecalcProduct reprices a single product with the current rate.
func (s *RateService) RecalcProduct(ctx context.Context, caller model.Caller, productID string) (*model.Product, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}

	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	rate, err := s.CoinRate(ctx)
	if err != nil {
		return nil, err
	}

	p.Coins = s.pricing.Coins(p.PriceINR, rate)
	if err := s.store.SetProductCoins(ctx, p.ID, p.Coins); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("recalc product: %w", err)
	}

	log.WithFields(log.Fields{"sku": p.SKU, "coins": p.Coins, "rate": rate}).Info("product repriced")
	return p, nil
}

func (s *RateService) UpdateProduct(ctx context.Context, caller model.Caller, productID string, edit ProductEdit) (*model.Product, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}

	edit.Name = strings.TrimSpace(edit.Name)
	if edit.Name == "" || edit.PriceINR <= 0 || edit.Coins < 0 {
		return nil, ErrInvalidProduct
	}

	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	p.Name = edit.Name
	p.PriceINR = edit.PriceINR
	p.Coins = edit.Coins
	p.Active = edit.Active
	p.BestSeller = edit.BestSeller

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (s *RateService) Shop(ctx context.Context) (*Shop, error) {
	rate, err := s.CoinRate(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.store.Products(ctx, true)
	if err != nil {
		return nil, err
	}
	return &Shop{CoinRate: rate, Products: products}, nil
}

// AllProducts includes inactive packs.
func (s *RateService) AllProducts(ctx context.Context, caller model.Caller) ([]model.Product, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}
	return s.store.Products(ctx, false)
}

func (s *RateService) product(ctx context.Context, productID string) (*model.Product, error) {
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
	return p, nil
}
