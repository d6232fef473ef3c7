package service

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const MaxCoinRate = 1000

var ErrRateOutOfRange = fmt.Errorf("coin rate must be in (0, %d]", MaxCoinRate)

// Pricing holds the promotional bonus rule applied on top of the rate.
type Pricing struct {
	// FirstPackPrice is the entry-level pack excluded from the bonus.
	FirstPackPrice int
	BonusCoins     int
}

var DefaultPricing = Pricing{FirstPackPrice: 45, BonusCoins: 10}

// Coins returns round(priceINR * rate) plus the flat bonus, except for the
// first pack which never gets a bonus.
func (p Pricing) Coins(priceINR, rate int) int {
	base := int(math.Round(float64(priceINR) * float64(rate)))
	if priceINR == p.FirstPackPrice {
		return base
	}
	return base + p.BonusCoins
}

func ComputeCoins(priceINR, rate int) int {
	return DefaultPricing.Coins(priceINR, rate)
}

func ValidRate(rate int) bool {
	return rate > 0 && rate <= MaxCoinRate
}

// ParseRate parses a possibly fractional admin input and rounds it half up.
// The bound is checked before rounding so that 0.4 is rejected rather than
// silently becoming 0.
func ParseRate(s string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Join(ErrRateOutOfRange, err)
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(MaxCoinRate)) {
		return 0, ErrRateOutOfRange
	}
	rate := int(d.Round(0).IntPart())
	if !ValidRate(rate) {
		return 0, ErrRateOutOfRange
	}
	return rate, nil
}
