package model

type Product struct {
	ID         string `json:"id" yaml:"-"`
	SKU        string `json:"sku" yaml:"sku"`
	Name       string `json:"name" yaml:"name"`
	PriceINR   int    `json:"price_inr" yaml:"price_inr"`
	Coins      int    `json:"coins" yaml:"coins"`
	Active     bool   `json:"active" yaml:"active"`
	BestSeller bool   `json:"best_seller" yaml:"best_seller"`
}
