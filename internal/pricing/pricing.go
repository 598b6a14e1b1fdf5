package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricePlaces is the number of decimal places every derived price is rounded to.
// Prices are quoted in whole Naira, so derived prices carry no minor units.
const PricePlaces int32 = 0

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// CostInput is the landed-cost basis for one product unit.
type CostInput struct {
	UnitCostOriginalCurrency      decimal.Decimal `json:"unitCostOriginalCurrency"`
	OriginalCurrency              string          `json:"originalCurrency"`
	ExchangeRate                  decimal.Decimal `json:"exchangeRate"`
	FreightAndClearingCostPerUnit decimal.Decimal `json:"freightAndClearingCostPerUnit"`
}

// Validate checks the cost basis against the engine's input constraints.
func (c CostInput) Validate() error {
	if c.UnitCostOriginalCurrency.IsNegative() {
		return fmt.Errorf("%w: unitCostOriginalCurrency must be >= 0", ErrInvalidCostInput)
	}
	if !ValidCurrencyCode(c.OriginalCurrency) {
		return fmt.Errorf("%w: originalCurrency %q is not an ISO 4217 code", ErrInvalidCostInput, c.OriginalCurrency)
	}
	if !c.ExchangeRate.IsPositive() {
		return fmt.Errorf("%w: exchangeRate must be > 0", ErrInvalidCostInput)
	}
	if c.FreightAndClearingCostPerUnit.IsNegative() {
		return fmt.Errorf("%w: freightAndClearingCostPerUnit must be >= 0", ErrInvalidCostInput)
	}
	return nil
}

// UnitCostInLocalCurrency converts the supplier cost at the cost's exchange rate.
func (c CostInput) UnitCostInLocalCurrency() decimal.Decimal {
	return c.UnitCostOriginalCurrency.Mul(c.ExchangeRate)
}

// TotalCostPerUnit is the landed cost: converted unit cost plus freight and clearing.
func (c CostInput) TotalCostPerUnit() decimal.Decimal {
	return c.UnitCostInLocalCurrency().Add(c.FreightAndClearingCostPerUnit)
}

// ValidCurrencyCode reports whether code looks like an ISO 4217 alphabetic code.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// Margins maps each price type to its percentage margin over the sub price.
type Margins map[PriceType]decimal.Decimal

// NewMargins builds a margin table from raw keys, rejecting any key that is
// not a recognized price type. Completeness is checked by Validate.
func NewMargins(raw map[string]decimal.Decimal) (Margins, error) {
	m := make(Margins, len(raw))
	for key, value := range raw {
		pt, err := ParsePriceType(key)
		if err != nil {
			return nil, err
		}
		m[pt] = value
	}
	return m, nil
}

// Missing lists the recognized price types absent from m, in PriceTypes order.
func (m Margins) Missing() []PriceType {
	var missing []PriceType
	for _, pt := range priceTypes {
		if _, ok := m[pt]; !ok {
			missing = append(missing, pt)
		}
	}
	return missing
}

// Validate requires an entry for every price type and no negative margin.
func (m Margins) Validate() error {
	if missing := m.Missing(); len(missing) > 0 {
		return &MissingMarginError{Missing: missing}
	}
	for _, pt := range priceTypes {
		if m[pt].IsNegative() {
			return fmt.Errorf("%w: %s must be >= 0", ErrInvalidMargin, pt)
		}
	}
	for pt := range m {
		if !pt.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownPriceType, string(pt))
		}
	}
	return nil
}

// Clone returns a copy that shares no storage with m.
func (m Margins) Clone() Margins {
	out := make(Margins, len(m))
	for pt, v := range m {
		out[pt] = v
	}
	return out
}

// OverheadConfig is one immutable, versioned snapshot of the pricing configuration.
type OverheadConfig struct {
	Version            int64           `json:"version"`
	OverheadPercentage decimal.Decimal `json:"overheadPercentage"`
	Margins            Margins         `json:"marginsByPriceType"`
	Approved           bool            `json:"isApproved"`
	ApprovedBy         string          `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time      `json:"approvedAt,omitempty"`
}

// Validate checks overhead and margins without looking at approval.
func (c OverheadConfig) Validate() error {
	if c.OverheadPercentage.IsNegative() {
		return fmt.Errorf("%w: overheadPercentage must be >= 0", ErrInvalidCostInput)
	}
	return c.Margins.Validate()
}

// PriceSet is the derived price family for one cost basis.
type PriceSet struct {
	SubPrice        decimal.Decimal               `json:"subPrice"`
	Prices          map[PriceType]decimal.Decimal `json:"prices"`
	ConfigVersion   int64                         `json:"configVersion"`
	PendingApproval bool                          `json:"isPendingApproval"`
}

// Price returns the final price for pt.
func (s PriceSet) Price(pt PriceType) decimal.Decimal {
	return s.Prices[pt]
}

// RoundPrice rounds half-up to PricePlaces. Prices are never negative, so
// rounding half away from zero is the same as half-up.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PricePlaces)
}

// ComputeSubPrice returns the break-even floor: landed cost plus overhead.
func ComputeSubPrice(cost CostInput, overheadPercentage decimal.Decimal) (decimal.Decimal, error) {
	if err := cost.Validate(); err != nil {
		return decimal.Zero, err
	}
	if overheadPercentage.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: overheadPercentage must be >= 0", ErrInvalidCostInput)
	}

	total := cost.TotalCostPerUnit()
	return total.Mul(one.Add(overheadPercentage.Div(hundred))), nil
}

// ComputeFinalPrice applies a margin to a sub price and rounds the result.
func ComputeFinalPrice(subPrice, marginPercentage decimal.Decimal) (decimal.Decimal, error) {
	if subPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: subPrice must be >= 0", ErrInvalidCostInput)
	}
	if marginPercentage.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: margin must be >= 0", ErrInvalidMargin)
	}

	return RoundPrice(subPrice.Mul(one.Add(marginPercentage.Div(hundred)))), nil
}

// ComputeAllPrices derives every price type from one cost basis and config.
// Each price is computed independently from the same sub price.
func ComputeAllPrices(cost CostInput, cfg OverheadConfig) (PriceSet, error) {
	if err := cfg.Margins.Validate(); err != nil {
		return PriceSet{}, err
	}

	subPrice, err := ComputeSubPrice(cost, cfg.OverheadPercentage)
	if err != nil {
		return PriceSet{}, err
	}

	prices := make(map[PriceType]decimal.Decimal, len(priceTypes))
	for _, pt := range priceTypes {
		final, err := ComputeFinalPrice(subPrice, cfg.Margins[pt])
		if err != nil {
			return PriceSet{}, fmt.Errorf("%s: %w", pt, err)
		}
		prices[pt] = final
	}

	return PriceSet{
		SubPrice:        subPrice,
		Prices:          prices,
		ConfigVersion:   cfg.Version,
		PendingApproval: !cfg.Approved,
	}, nil
}

// ApplyExchangeRateChange returns a copy of cost at the new exchange rate.
func ApplyExchangeRateChange(cost CostInput, newExchangeRate decimal.Decimal) (CostInput, error) {
	if !newExchangeRate.IsPositive() {
		return CostInput{}, fmt.Errorf("%w: %s must be > 0", ErrInvalidExchangeRate, newExchangeRate)
	}
	cost.ExchangeRate = newExchangeRate
	return cost, nil
}
