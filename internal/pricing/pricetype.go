package pricing

import "fmt"

// PriceType identifies one tier of the derived price family.
type PriceType string

const (
	SalePrice           PriceType = "salePrice"
	BTBPrice            PriceType = "btbPrice"
	BTCPrice            PriceType = "btcPrice"
	Price3WeeksDelivery PriceType = "price3weeksDelivery"
	Price5WeeksDelivery PriceType = "price5weeksDelivery"
)

var priceTypes = [...]PriceType{
	SalePrice,
	BTBPrice,
	BTCPrice,
	Price3WeeksDelivery,
	Price5WeeksDelivery,
}

// PriceTypes returns every recognized price type in a fixed order.
func PriceTypes() []PriceType {
	out := make([]PriceType, len(priceTypes))
	copy(out, priceTypes[:])
	return out
}

// Valid reports whether pt is one of the recognized price types.
func (pt PriceType) Valid() bool {
	for _, known := range priceTypes {
		if pt == known {
			return true
		}
	}
	return false
}

func (pt PriceType) String() string { return string(pt) }

// ParsePriceType converts a raw key into a PriceType.
func ParsePriceType(raw string) (PriceType, error) {
	pt := PriceType(raw)
	if !pt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriceType, raw)
	}
	return pt, nil
}
