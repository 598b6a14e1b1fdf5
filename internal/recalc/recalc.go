// Package recalc reprices every product costed in one currency after its
// exchange rate changes.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/pricedesk/internal/events"
	"github.com/Simplici0/pricedesk/internal/metrics"
	"github.com/Simplici0/pricedesk/internal/pricing"
	"github.com/Simplici0/pricedesk/internal/store"
)

// ErrNoConfig marks products whose prices could not be derived because no
// configuration snapshot was supplied. Their new rate is still stored.
var ErrNoConfig = errors.New("no pricing configuration to derive prices from")

// RateWriter persists a product's new exchange rate.
type RateWriter interface {
	UpdateExchangeRate(ctx context.Context, id string, rate decimal.Decimal) error
}

// OverrideReader looks up a product's direct pricing override.
type OverrideReader interface {
	Get(ctx context.Context, productID string) (*pricing.DirectPricingOverride, error)
}

// Result is the outcome for one product whose new rate was stored. EventError
// is set when its prices were derived but the PriceChanged event was not
// published.
type Result struct {
	ProductID       string                                `json:"productId"`
	Source          pricing.Source                        `json:"source"`
	Prices          map[pricing.PriceType]decimal.Decimal `json:"prices"`
	PendingApproval bool                                  `json:"isPendingApproval"`
	EventError      string                                `json:"eventError,omitempty"`
}

// Failure is a product that could not be repriced.
type Failure struct {
	ProductID string `json:"productId"`
	Error     string `json:"error"`
}

// Report summarizes one batch. Err aggregates every per-product failure.
// Unpublished lists updated products whose event still has to be sent.
type Report struct {
	BatchID      string          `json:"batchId"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	Updated      []Result        `json:"updated"`
	Failed       []Failure       `json:"failed"`
	Unpublished  []string        `json:"unpublished"`
	Err          error           `json:"-"`
}

// Job reprices products with a bounded number of concurrent workers.
type Job struct {
	rates     RateWriter
	overrides OverrideReader
	publisher events.Publisher
	metrics   *metrics.Registry
	logger    *zap.Logger
	workers   int
	now       func() time.Time
}

// NewJob builds a job that runs at most workers products at a time.
func NewJob(rates RateWriter, overrides OverrideReader, publisher events.Publisher, m *metrics.Registry, logger *zap.Logger, workers int) *Job {
	if workers < 1 {
		workers = 1
	}
	return &Job{
		rates:     rates,
		overrides: overrides,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		workers:   workers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run applies newRate to every product and rederives its prices. One failing
// product never stops the others; failures are collected in the report.
func (j *Job) Run(ctx context.Context, currency string, products []store.Product, cfg *pricing.OverheadConfig, newRate decimal.Decimal) (Report, error) {
	if !newRate.IsPositive() {
		return Report{}, fmt.Errorf("%w: %s must be > 0", pricing.ErrInvalidExchangeRate, newRate)
	}

	started := j.now()
	report := Report{
		BatchID:      uuid.NewString(),
		Currency:     currency,
		ExchangeRate: newRate,
		Updated:      make([]Result, 0, len(products)),
		Failed:       make([]Failure, 0),
		Unpublished:  make([]string, 0),
	}
	log := j.logger.With(zap.String("batch_id", report.BatchID), zap.String("currency", currency))
	log.Info("recalculation started", zap.Int("products", len(products)), zap.String("exchange_rate", newRate.String()))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)

	for _, p := range products {
		g.Go(func() error {
			res, err := j.process(gctx, p, cfg, newRate)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, Failure{ProductID: p.ID, Error: err.Error()})
				report.Err = multierr.Append(report.Err, fmt.Errorf("product %s: %w", p.ID, err))
				j.metrics.RecalcProducts.WithLabelValues("failed").Inc()
				j.metrics.ObservePricingError(err)
				log.Warn("product recalculation failed", zap.String("product_id", p.ID), zap.Error(err))
				return nil
			}
			report.Updated = append(report.Updated, res)
			if res.EventError != "" {
				report.Unpublished = append(report.Unpublished, res.ProductID)
				j.metrics.RecalcProducts.WithLabelValues("unpublished").Inc()
				log.Warn("price change not published", zap.String("product_id", p.ID), zap.String("error", res.EventError))
				return nil
			}
			j.metrics.RecalcProducts.WithLabelValues(string(res.Source)).Inc()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Updated, func(a, b int) bool { return report.Updated[a].ProductID < report.Updated[b].ProductID })
	sort.Slice(report.Failed, func(a, b int) bool { return report.Failed[a].ProductID < report.Failed[b].ProductID })
	sort.Strings(report.Unpublished)

	j.metrics.RecalcDuration.Observe(j.now().Sub(started).Seconds())
	log.Info("recalculation finished", zap.Int("updated", len(report.Updated)), zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (j *Job) process(ctx context.Context, p store.Product, cfg *pricing.OverheadConfig, newRate decimal.Decimal) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cost, err := pricing.ApplyExchangeRateChange(p.Cost, newRate)
	if err != nil {
		return Result{}, err
	}
	if err := j.rates.UpdateExchangeRate(ctx, p.ID, newRate); err != nil {
		return Result{}, err
	}

	override, err := j.overrides.Get(ctx, p.ID)
	if err != nil {
		return Result{}, err
	}
	if override != nil {
		return Result{ProductID: p.ID, Source: pricing.SourceOverride, Prices: override.Prices()}, nil
	}

	if cfg == nil {
		return Result{}, ErrNoConfig
	}
	set, err := pricing.ComputeAllPrices(cost, *cfg)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		ProductID:       p.ID,
		Source:          pricing.SourceDerived,
		Prices:          set.Prices,
		PendingApproval: set.PendingApproval,
	}
	// The rate is stored at this point; publish failures only mark the result.
	if err := j.publisher.PublishPriceChanged(ctx, events.NewPriceChanged(p.ID, cost, set, j.now())); err != nil {
		res.EventError = err.Error()
	}
	return res, nil
}
