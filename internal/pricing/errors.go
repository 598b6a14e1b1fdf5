package pricing

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCostInput           = errors.New("invalid cost input")
	ErrInvalidMargin              = errors.New("invalid margin")
	ErrMissingMarginConfiguration = errors.New("missing margin configuration")
	ErrInvalidExchangeRate        = errors.New("invalid exchange rate")
	ErrUnknownPriceType           = errors.New("unknown price type")
)

// MissingMarginError names every price type absent from a margin table.
type MissingMarginError struct {
	Missing []PriceType
}

func (e *MissingMarginError) Error() string {
	keys := make([]string, len(e.Missing))
	for i, pt := range e.Missing {
		keys[i] = string(pt)
	}
	return ErrMissingMarginConfiguration.Error() + ": " + strings.Join(keys, ", ")
}

func (e *MissingMarginError) Unwrap() error { return ErrMissingMarginConfiguration }
