// Package quoting answers price questions for the back office: live previews,
// the resolved prices of a product, and repricing after a rate change.
package quoting

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/pricedesk/internal/metrics"
	"github.com/Simplici0/pricedesk/internal/pricing"
	"github.com/Simplici0/pricedesk/internal/recalc"
	"github.com/Simplici0/pricedesk/internal/store"
)

// ConfigSource returns the current overhead configuration.
type ConfigSource interface {
	Current(ctx context.Context) (pricing.OverheadConfig, error)
}

// ProductSource reads saved products.
type ProductSource interface {
	Get(ctx context.Context, id string) (store.Product, error)
	ListByCurrency(ctx context.Context, currency string) ([]store.Product, error)
}

// OverrideSource looks up direct pricing overrides.
type OverrideSource interface {
	Get(ctx context.Context, productID string) (*pricing.DirectPricingOverride, error)
}

// RatePublisher stores a currency's published rate.
type RatePublisher interface {
	SetRate(ctx context.Context, code string, rate decimal.Decimal, editor string) (store.Currency, error)
}

// Recalculator reprices a batch of products after a rate change.
type Recalculator interface {
	Run(ctx context.Context, currency string, products []store.Product, cfg *pricing.OverheadConfig, newRate decimal.Decimal) (recalc.Report, error)
}

// Service resolves prices against the stores it is built with.
type Service struct {
	configs    ConfigSource
	products   ProductSource
	overrides  OverrideSource
	currencies RatePublisher
	recalc     Recalculator
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// Deps are the collaborators of a Service.
type Deps struct {
	Configs    ConfigSource
	Products   ProductSource
	Overrides  OverrideSource
	Currencies RatePublisher
	Recalc     Recalculator
	Metrics    *metrics.Registry
	Logger     *zap.Logger
}

// NewService wires a Service from d.
func NewService(d Deps) *Service {
	return &Service{
		configs:    d.Configs,
		products:   d.Products,
		overrides:  d.Overrides,
		currencies: d.Currencies,
		recalc:     d.Recalc,
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

// Preview derives the price set for an unsaved cost basis from the current
// configuration. A missing configuration is an error, never a default.
func (s *Service) Preview(ctx context.Context, cost pricing.CostInput) (pricing.PriceSet, error) {
	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return pricing.PriceSet{}, fmt.Errorf("load pricing config: %w", err)
	}

	set, err := pricing.ComputeAllPrices(cost, cfg)
	if err != nil {
		s.metrics.ObservePricingError(err)
		return pricing.PriceSet{}, err
	}

	s.metrics.Quotes.WithLabelValues("preview").Inc()
	return set, nil
}

// ProductPrices resolves the prices of a stored product. The configuration is
// only consulted when the product has no direct pricing override.
func (s *Service) ProductPrices(ctx context.Context, productID string) (pricing.Quote, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return pricing.Quote{}, err
	}

	override, err := s.overrides.Get(ctx, productID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if override != nil {
		s.metrics.Quotes.WithLabelValues(string(pricing.SourceOverride)).Inc()
		return pricing.OverrideQuote(*override), nil
	}

	cfg, err := s.configs.Current(ctx)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("load pricing config: %w", err)
	}

	q, err := pricing.Resolve(nil, product.Cost, cfg)
	if err != nil {
		s.metrics.ObservePricingError(err)
		return pricing.Quote{}, fmt.Errorf("price product %s: %w", productID, err)
	}
	s.metrics.Quotes.WithLabelValues(string(q.Source)).Inc()
	return q, nil
}

// UpdateExchangeRate publishes a currency's new rate and reprices every
// product costed in it.
func (s *Service) UpdateExchangeRate(ctx context.Context, currency string, rate decimal.Decimal, editor string) (recalc.Report, error) {
	if !rate.IsPositive() {
		err := fmt.Errorf("%w: %s must be > 0", pricing.ErrInvalidExchangeRate, rate)
		s.metrics.ObservePricingError(err)
		return recalc.Report{}, err
	}

	if _, err := s.currencies.SetRate(ctx, currency, rate, editor); err != nil {
		return recalc.Report{}, err
	}

	products, err := s.products.ListByCurrency(ctx, currency)
	if err != nil {
		return recalc.Report{}, err
	}

	var cfg *pricing.OverheadConfig
	current, err := s.configs.Current(ctx)
	switch {
	case err == nil:
		cfg = &current
	case errors.Is(err, store.ErrNoConfig):
		s.logger.Warn("repricing without a pricing configuration; only rates will be stored",
			zap.String("currency", currency))
	default:
		return recalc.Report{}, fmt.Errorf("load pricing config: %w", err)
	}

	return s.recalc.Run(ctx, currency, products, cfg, rate)
}
