package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source says which pricing mechanism produced a quote.
type Source string

const (
	SourceDerived  Source = "derived"
	SourceOverride Source = "override"
)

// OverrideValue is one independently authored final price.
type OverrideValue struct {
	Amount    decimal.Decimal `json:"amount"`
	UpdatedBy string          `json:"updatedBy"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DirectPricingOverride replaces the derived price set of one product.
type DirectPricingOverride struct {
	ProductID string                      `json:"productId"`
	Values    map[PriceType]OverrideValue `json:"values"`
}

// Prices returns the stored amounts as they are.
func (o DirectPricingOverride) Prices() map[PriceType]decimal.Decimal {
	out := make(map[PriceType]decimal.Decimal, len(o.Values))
	for pt, v := range o.Values {
		out[pt] = v.Amount
	}
	return out
}

// Quote is the resolved price family of one product. Exactly one of Derived
// and Override is set, matching Source.
type Quote struct {
	Source   Source                        `json:"source"`
	Prices   map[PriceType]decimal.Decimal `json:"prices"`
	Derived  *PriceSet                     `json:"derived,omitempty"`
	Override *DirectPricingOverride        `json:"override,omitempty"`
}

// PendingApproval reports whether a derived quote came from an unapproved config.
func (q Quote) PendingApproval() bool {
	return q.Derived != nil && q.Derived.PendingApproval
}

// Resolve picks the pricing mechanism for a product. An override record, when
// present, wins and is returned verbatim; otherwise the price set is derived.
func Resolve(override *DirectPricingOverride, cost CostInput, cfg OverheadConfig) (Quote, error) {
	if override != nil {
		return OverrideQuote(*override), nil
	}

	set, err := ComputeAllPrices(cost, cfg)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Source: SourceDerived, Prices: set.Prices, Derived: &set}, nil
}

// OverrideQuote wraps an override record as a quote.
func OverrideQuote(override DirectPricingOverride) Quote {
	return Quote{Source: SourceOverride, Prices: override.Prices(), Override: &override}
}
