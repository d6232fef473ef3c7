package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"namocoins/internal/model"
)

//go:embed packs.yaml
var defaultCatalog []byte

type catalogFile struct {
	Packs []model.Product `yaml:"packs"`
}

// ParseCatalog decodes a pack catalog. A nil or empty input yields the
// embedded default catalog.
func ParseCatalog(data []byte) ([]model.Product, error) {
	if len(data) == 0 {
		data = defaultCatalog
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Packs))
	for i := range f.Packs {
		p := &f.Packs[i]
		if p.SKU == "" || p.Name == "" {
			return nil, fmt.Errorf("pack %d: sku and name are required", i)
		}
		if p.PriceINR <= 0 || p.Coins < 0 {
			return nil, fmt.Errorf("pack %s: invalid price or coins", p.SKU)
		}
		if seen[p.SKU] {
			return nil, fmt.Errorf("pack %s: duplicate sku", p.SKU)
		}
		seen[p.SKU] = true
		p.ID = uuid.NewString()
	}
	return f.Packs, nil
}

// Seed upserts the catalog into the products table.
func (s *Store) Seed(ctx context.Context, data []byte) (int, error) {
	products, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}
	if err := s.UpsertProducts(ctx, products); err != nil {
		return 0, err
	}
	return len(products), nil
}
