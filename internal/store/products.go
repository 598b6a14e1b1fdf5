package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricedesk/internal/pricing"
)

// Product is a catalog item together with its landed-cost basis.
type Product struct {
	ID        string            `json:"id"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Cost      pricing.CostInput `json:"cost"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type productRow struct {
	ID                     string          `db:"id"`
	SKU                    string          `db:"sku"`
	Name                   string          `db:"name"`
	UnitCostOriginal       decimal.Decimal `db:"unit_cost_original"`
	OriginalCurrency       string          `db:"original_currency"`
	ExchangeRate           decimal.Decimal `db:"exchange_rate"`
	FreightClearingPerUnit decimal.Decimal `db:"freight_clearing_per_unit"`
	UpdatedAt              time.Time       `db:"updated_at"`
}

func (r productRow) product() Product {
	return Product{
		ID:   r.ID,
		SKU:  r.SKU,
		Name: r.Name,
		Cost: pricing.CostInput{
			UnitCostOriginalCurrency:      r.UnitCostOriginal,
			OriginalCurrency:              r.OriginalCurrency,
			ExchangeRate:                  r.ExchangeRate,
			FreightAndClearingCostPerUnit: r.FreightClearingPerUnit,
		},
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// ProductStore reads and writes product cost bases. It never stores prices.
type ProductStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewProductStore returns a store backed by db.
func NewProductStore(db *sqlx.DB) *ProductStore {
	return &ProductStore{db: db, now: utcNow}
}

const selectProduct = `
	SELECT id, sku, name, unit_cost_original, original_currency, exchange_rate, freight_clearing_per_unit, updated_at
	FROM products
`

// Get returns the product with the given id, or ErrNotFound.
func (s *ProductStore) Get(ctx context.Context, id string) (Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, selectProduct+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product %s: %w", id, err)
	}
	return row.product(), nil
}

// ListByCurrency returns every product costed in the given currency.
func (s *ProductStore) ListByCurrency(ctx context.Context, currency string) ([]Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, selectProduct+` WHERE original_currency = ? ORDER BY id`, currency); err != nil {
		return nil, fmt.Errorf("query products in %s: %w", currency, err)
	}

	products := make([]Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.product())
	}
	return products, nil
}

// Upsert creates or replaces a product's cost basis. An empty ID gets a new UUID.
func (s *ProductStore) Upsert(ctx context.Context, p Product) (Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.SKU == "" {
		return Product{}, fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	if p.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := p.Cost.Validate(); err != nil {
		return Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = s.now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Product{}, fmt.Errorf("begin product transaction: %w", err)
	}
	defer tx.Rollback()

	var skuTaken bool
	if err := tx.GetContext(ctx, &skuTaken, `SELECT EXISTS(SELECT 1 FROM products WHERE sku = ? AND id <> ?)`, p.SKU, p.ID); err != nil {
		return Product{}, fmt.Errorf("check sku %s: %w", p.SKU, err)
	}
	if skuTaken {
		return Product{}, fmt.Errorf("sku %s: %w", p.SKU, ErrAlreadyExists)
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO products (id, sku, name, unit_cost_original, original_currency, exchange_rate, freight_clearing_per_unit, updated_at)
		VALUES (:id, :sku, :name, :unit_cost_original, :original_currency, :exchange_rate, :freight_clearing_per_unit, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			sku = excluded.sku,
			name = excluded.name,
			unit_cost_original = excluded.unit_cost_original,
			original_currency = excluded.original_currency,
			exchange_rate = excluded.exchange_rate,
			freight_clearing_per_unit = excluded.freight_clearing_per_unit,
			updated_at = excluded.updated_at
	`, productRow{
		ID:                     p.ID,
		SKU:                    p.SKU,
		Name:                   p.Name,
		UnitCostOriginal:       p.Cost.UnitCostOriginalCurrency,
		OriginalCurrency:       p.Cost.OriginalCurrency,
		ExchangeRate:           p.Cost.ExchangeRate,
		FreightClearingPerUnit: p.Cost.FreightAndClearingCostPerUnit,
		UpdatedAt:              p.UpdatedAt,
	}); err != nil {
		return Product{}, fmt.Errorf("upsert product %s: %w", p.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return Product{}, fmt.Errorf("commit product transaction: %w", err)
	}

	return p, nil
}

// UpdateExchangeRate replaces the exchange rate of one product's cost basis.
func (s *ProductStore) UpdateExchangeRate(ctx context.Context, id string, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: %s must be > 0", pricing.ErrInvalidExchangeRate, rate)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET exchange_rate = ?, updated_at = ?
		WHERE id = ?
	`, rate, s.now(), id)
	if err != nil {
		return fmt.Errorf("update exchange rate of product %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update exchange rate of product %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}
