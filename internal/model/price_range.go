package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is returned for empty, inverted, or non-positive price bands.
var ErrInvalidRange = errors.New("invalid price range")

// PriceRange is a concentrated-liquidity band. Prices are quoted in token B per one token A.
type PriceRange struct {
	Min float64 `json:"min_price"`
	Max float64 `json:"max_price"`
}

// Validate checks 0 < Min < Max.
func (r PriceRange) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%w: min=%v max=%v", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Min <= 0 || r.Min >= r.Max {
		return fmt.Errorf("%w: min=%v max=%v", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Contains reports whether price lies inside the closed band.
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}
