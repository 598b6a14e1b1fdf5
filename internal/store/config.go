package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricedesk/internal/pricing"
)

// ConfigStore keeps every version of the overhead configuration. Versions are
// append-only; approval is the only mutation.
type ConfigStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewConfigStore returns a store backed by db.
func NewConfigStore(db *sqlx.DB) *ConfigStore {
	return &ConfigStore{db: db, now: utcNow}
}

type configRow struct {
	Version            int64           `db:"version"`
	OverheadPercentage decimal.Decimal `db:"overhead_percentage"`
	Approved           bool            `db:"approved"`
	ApprovedBy         sql.NullString  `db:"approved_by"`
	ApprovedAt         sql.NullTime    `db:"approved_at"`
}

type marginRow struct {
	PriceType string          `db:"price_type"`
	Margin    decimal.Decimal `db:"margin"`
}

const selectConfig = `
	SELECT version, overhead_percentage, approved, approved_by, approved_at
	FROM overhead_configs
`

// Current returns the newest configuration version, approved or not.
func (s *ConfigStore) Current(ctx context.Context) (pricing.OverheadConfig, error) {
	var row configRow
	err := s.db.GetContext(ctx, &row, selectConfig+` ORDER BY version DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.OverheadConfig{}, ErrNoConfig
	}
	if err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("query current overhead config: %w", err)
	}
	return s.withMargins(ctx, row)
}

// Get returns one configuration version.
func (s *ConfigStore) Get(ctx context.Context, version int64) (pricing.OverheadConfig, error) {
	var row configRow
	err := s.db.GetContext(ctx, &row, selectConfig+` WHERE version = ?`, version)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.OverheadConfig{}, fmt.Errorf("overhead config %d: %w", version, ErrNotFound)
	}
	if err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("query overhead config %d: %w", version, err)
	}
	return s.withMargins(ctx, row)
}

func (s *ConfigStore) withMargins(ctx context.Context, row configRow) (pricing.OverheadConfig, error) {
	var rows []marginRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT price_type, margin
		FROM overhead_margins
		WHERE config_version = ?
	`, row.Version); err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("query margins of config %d: %w", row.Version, err)
	}

	raw := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		raw[r.PriceType] = r.Margin
	}
	margins, err := pricing.NewMargins(raw)
	if err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("decode margins of config %d: %w", row.Version, err)
	}

	cfg := pricing.OverheadConfig{
		Version:            row.Version,
		OverheadPercentage: row.OverheadPercentage,
		Margins:            margins,
		Approved:           row.Approved,
		ApprovedBy:         row.ApprovedBy.String,
	}
	if row.ApprovedAt.Valid {
		at := row.ApprovedAt.Time.UTC()
		cfg.ApprovedAt = &at
	}
	return cfg, nil
}

// Create stores a new, unapproved configuration version. The margin table
// must be complete and non-negative.
func (s *ConfigStore) Create(ctx context.Context, overheadPercentage decimal.Decimal, margins pricing.Margins, createdBy string) (pricing.OverheadConfig, error) {
	cfg := pricing.OverheadConfig{OverheadPercentage: overheadPercentage, Margins: margins.Clone()}
	if err := cfg.Validate(); err != nil {
		return pricing.OverheadConfig{}, err
	}
	if strings.TrimSpace(createdBy) == "" {
		return pricing.OverheadConfig{}, fmt.Errorf("%w: createdBy is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("begin config transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO overhead_configs (overhead_percentage, created_by, created_at, approved)
		VALUES (?, ?, ?, FALSE)
	`, overheadPercentage, createdBy, s.now())
	if err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("insert overhead config: %w", err)
	}
	version, err := res.LastInsertId()
	if err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("read overhead config version: %w", err)
	}

	for _, pt := range pricing.PriceTypes() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO overhead_margins (config_version, price_type, margin)
			VALUES (?, ?, ?)
		`, version, string(pt), cfg.Margins[pt]); err != nil {
			return pricing.OverheadConfig{}, fmt.Errorf("insert %s margin: %w", pt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("commit config transaction: %w", err)
	}

	cfg.Version = version
	return cfg, nil
}

// Approve records the approver's sign-off. Approving an already approved
// version keeps the first sign-off.
func (s *ConfigStore) Approve(ctx context.Context, version int64, approver string) (pricing.OverheadConfig, error) {
	if strings.TrimSpace(approver) == "" {
		return pricing.OverheadConfig{}, fmt.Errorf("%w: approver is required", ErrInvalidInput)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE overhead_configs
		SET approved = TRUE, approved_by = ?, approved_at = ?
		WHERE version = ? AND approved = FALSE
	`, approver, s.now(), version); err != nil {
		return pricing.OverheadConfig{}, fmt.Errorf("approve overhead config %d: %w", version, err)
	}

	return s.Get(ctx, version)
}
