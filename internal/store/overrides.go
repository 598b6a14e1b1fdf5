package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricedesk/internal/pricing"
)

// ErrIncompleteOverride is returned when an override does not cover every price type.
var ErrIncompleteOverride = errors.New("direct pricing override must set every price type")

// OverrideStore holds direct pricing overrides, one row per product and price type.
type OverrideStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewOverrideStore returns a store backed by db.
func NewOverrideStore(db *sqlx.DB) *OverrideStore {
	return &OverrideStore{db: db, now: utcNow}
}

type overrideRow struct {
	ProductID string          `db:"product_id"`
	PriceType string          `db:"price_type"`
	Amount    decimal.Decimal `db:"amount"`
	UpdatedBy string          `db:"updated_by"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Get returns the product's override, or nil when the product uses derived pricing.
func (s *OverrideStore) Get(ctx context.Context, productID string) (*pricing.DirectPricingOverride, error) {
	var rows []overrideRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT product_id, price_type, amount, updated_by, updated_at
		FROM direct_price_overrides
		WHERE product_id = ?
	`, productID); err != nil {
		return nil, fmt.Errorf("query override of product %s: %w", productID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	o := &pricing.DirectPricingOverride{
		ProductID: productID,
		Values:    make(map[pricing.PriceType]pricing.OverrideValue, len(rows)),
	}
	for _, r := range rows {
		pt, err := pricing.ParsePriceType(r.PriceType)
		if err != nil {
			return nil, fmt.Errorf("decode override of product %s: %w", productID, err)
		}
		o.Values[pt] = pricing.OverrideValue{
			Amount:    r.Amount,
			UpdatedBy: r.UpdatedBy,
			UpdatedAt: r.UpdatedAt.UTC(),
		}
	}
	return o, nil
}

// Create opts a product into direct pricing with a value for every price type.
func (s *OverrideStore) Create(ctx context.Context, productID string, prices map[pricing.PriceType]decimal.Decimal, editor string) (*pricing.DirectPricingOverride, error) {
	if strings.TrimSpace(editor) == "" {
		return nil, fmt.Errorf("%w: editor is required", ErrInvalidInput)
	}
	var missing []string
	for _, pt := range pricing.PriceTypes() {
		amount, ok := prices[pt]
		if !ok {
			missing = append(missing, string(pt))
			continue
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: %s must be >= 0", ErrInvalidInput, pt)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteOverride, strings.Join(missing, ", "))
	}
	for pt := range prices {
		if !pt.Valid() {
			return nil, fmt.Errorf("%w: %q", pricing.ErrUnknownPriceType, string(pt))
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin override transaction: %w", err)
	}
	defer tx.Rollback()

	var productExists, overrideExists bool
	if err := tx.GetContext(ctx, &productExists, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, productID); err != nil {
		return nil, fmt.Errorf("check product %s: %w", productID, err)
	}
	if !productExists {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err := tx.GetContext(ctx, &overrideExists, `SELECT EXISTS(SELECT 1 FROM direct_price_overrides WHERE product_id = ?)`, productID); err != nil {
		return nil, fmt.Errorf("check override of product %s: %w", productID, err)
	}
	if overrideExists {
		return nil, fmt.Errorf("override of product %s: %w", productID, ErrAlreadyExists)
	}

	at := s.now()
	o := &pricing.DirectPricingOverride{
		ProductID: productID,
		Values:    make(map[pricing.PriceType]pricing.OverrideValue, len(prices)),
	}
	for _, pt := range pricing.PriceTypes() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO direct_price_overrides (product_id, price_type, amount, updated_by, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, productID, string(pt), prices[pt], editor, at); err != nil {
			return nil, fmt.Errorf("insert %s override of product %s: %w", pt, productID, err)
		}
		o.Values[pt] = pricing.OverrideValue{Amount: prices[pt], UpdatedBy: editor, UpdatedAt: at}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit override transaction: %w", err)
	}
	return o, nil
}

// SetPrice edits one value of an existing override and stamps its editor.
func (s *OverrideStore) SetPrice(ctx context.Context, productID string, pt pricing.PriceType, amount decimal.Decimal, editor string) (*pricing.DirectPricingOverride, error) {
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: %q", pricing.ErrUnknownPriceType, string(pt))
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s must be >= 0", ErrInvalidInput, pt)
	}
	if strings.TrimSpace(editor) == "" {
		return nil, fmt.Errorf("%w: editor is required", ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE direct_price_overrides
		SET amount = ?, updated_by = ?, updated_at = ?
		WHERE product_id = ? AND price_type = ?
	`, amount, editor, s.now(), productID, string(pt))
	if err != nil {
		return nil, fmt.Errorf("update %s override of product %s: %w", pt, productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s override of product %s: %w", pt, productID, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("override of product %s: %w", productID, ErrNotFound)
	}

	return s.Get(ctx, productID)
}

// Delete returns the product to derived pricing.
func (s *OverrideStore) Delete(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM direct_price_overrides WHERE product_id = ?`, productID)
	if err != nil {
		return fmt.Errorf("delete override of product %s: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete override of product %s: %w", productID, err)
	}
	if affected == 0 {
		return fmt.Errorf("override of product %s: %w", productID, ErrNotFound)
	}
	return nil
}
