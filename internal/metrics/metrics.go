package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Simplici0/pricedesk/internal/pricing"
)

// Registry holds the service collectors on a private prometheus registry.
type Registry struct {
	reg            *prometheus.Registry
	Quotes         *prometheus.CounterVec
	PricingErrors  *prometheus.CounterVec
	RecalcProducts *prometheus.CounterVec
	RecalcDuration prometheus.Histogram
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedesk_quotes_total",
		Help: "Resolved or previewed price sets by source.",
	}, []string{"source"})
	pricingErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedesk_pricing_errors_total",
		Help: "Pricing validation failures by kind.",
	}, []string{"kind"})
	recalcProducts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedesk_recalc_products_total",
		Help: "Products processed by bulk recalculation by outcome.",
	}, []string{"outcome"})
	recalcDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricedesk_recalc_duration_seconds",
		Help:    "Wall time of one bulk recalculation batch.",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(quotes, pricingErrors, recalcProducts, recalcDuration)
	return &Registry{
		reg:            r,
		Quotes:         quotes,
		PricingErrors:  pricingErrors,
		RecalcProducts: recalcProducts,
		RecalcDuration: recalcDuration,
	}
}

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObservePricingError counts err under its engine error kind. Errors that are
// not pricing validation failures are ignored.
func (r *Registry) ObservePricingError(err error) {
	if kind := ErrorKind(err); kind != "" {
		r.PricingErrors.WithLabelValues(kind).Inc()
	}
}

// ErrorKind maps an engine error to a stable label, or "" for other errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pricing.ErrMissingMarginConfiguration):
		return "missing_margin_configuration"
	case errors.Is(err, pricing.ErrInvalidMargin):
		return "invalid_margin"
	case errors.Is(err, pricing.ErrInvalidExchangeRate):
		return "invalid_exchange_rate"
	case errors.Is(err, pricing.ErrInvalidCostInput):
		return "invalid_cost_input"
	case errors.Is(err, pricing.ErrUnknownPriceType):
		return "unknown_price_type"
	}
	return ""
}
