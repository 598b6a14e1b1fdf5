package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricedesk/internal/pricing"
)

// Currency is the published rate of one currency in local currency units.
type Currency struct {
	Code         string          `db:"code" json:"code"`
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`
	UpdatedBy    string          `db:"updated_by" json:"updatedBy"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// CurrencyStore persists published exchange rates.
type CurrencyStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewCurrencyStore returns a store backed by db.
func NewCurrencyStore(db *sqlx.DB) *CurrencyStore {
	return &CurrencyStore{db: db, now: utcNow}
}

// Get returns the currency with the given code, or ErrNotFound.
func (s *CurrencyStore) Get(ctx context.Context, code string) (Currency, error) {
	var c Currency
	err := s.db.GetContext(ctx, &c, `
		SELECT code, exchange_rate, updated_by, updated_at
		FROM currencies
		WHERE code = ?
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Currency{}, fmt.Errorf("currency %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return Currency{}, fmt.Errorf("query currency %s: %w", code, err)
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// SetRate publishes a new rate for code, creating the currency if needed.
func (s *CurrencyStore) SetRate(ctx context.Context, code string, rate decimal.Decimal, editor string) (Currency, error) {
	if !pricing.ValidCurrencyCode(code) {
		return Currency{}, fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidInput, code)
	}
	if !rate.IsPositive() {
		return Currency{}, fmt.Errorf("%w: %s must be > 0", pricing.ErrInvalidExchangeRate, rate)
	}

	c := Currency{Code: code, ExchangeRate: rate, UpdatedBy: editor, UpdatedAt: s.now()}
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO currencies (code, exchange_rate, updated_by, updated_at)
		VALUES (:code, :exchange_rate, :updated_by, :updated_at)
		ON CONFLICT(code) DO UPDATE SET
			exchange_rate = excluded.exchange_rate,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`, c); err != nil {
		return Currency{}, fmt.Errorf("set rate of %s: %w", code, err)
	}
	return c, nil
}
