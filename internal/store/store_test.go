package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/pricedesk/internal/db"
	"github.com/Simplici0/pricedesk/internal/migrations"
	"github.com/Simplici0/pricedesk/internal/pricing"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "store-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if _, err := migrations.Up(context.Background(), database.DB); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func referenceMargins() pricing.Margins {
	return pricing.Margins{
		pricing.SalePrice:           d("15"),
		pricing.BTBPrice:            d("10"),
		pricing.BTCPrice:            d("8"),
		pricing.Price3WeeksDelivery: d("20"),
		pricing.Price5WeeksDelivery: d("25"),
	}
}

func usdProduct(sku string) Product {
	return Product{
		SKU:  sku,
		Name: "Blender " + sku,
		Cost: pricing.CostInput{
			UnitCostOriginalCurrency:      d("10"),
			OriginalCurrency:              "USD",
			ExchangeRate:                  d("1500"),
			FreightAndClearingCostPerUnit: d("2000"),
		},
	}
}

func TestConfigStore_CurrentWithoutConfigFails(t *testing.T) {
	s := NewConfigStore(newTestDB(t))

	if _, err := s.Current(context.Background()); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("err = %v, want ErrNoConfig", err)
	}
}

func TestConfigStore_CreateApproveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewConfigStore(newTestDB(t))
	approvedAt := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	first, err := s.Create(ctx, d("15"), referenceMargins(), "acct@shop.ng")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create(ctx, d("12.5"), referenceMargins(), "acct@shop.ng")
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	if second.Version <= first.Version {
		t.Fatalf("versions not increasing: %d then %d", first.Version, second.Version)
	}

	current, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.Version != second.Version || current.Approved {
		t.Fatalf("unexpected current config: %+v", current)
	}
	if !current.OverheadPercentage.Equal(d("12.5")) {
		t.Fatalf("overhead = %s, want 12.5", current.OverheadPercentage)
	}
	for pt, want := range referenceMargins() {
		if !current.Margins[pt].Equal(want) {
			t.Fatalf("%s margin = %s, want %s", pt, current.Margins[pt], want)
		}
	}

	s.now = fixedClock(approvedAt)
	approved, err := s.Approve(ctx, second.Version, "director@shop.ng")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !approved.Approved || approved.ApprovedBy != "director@shop.ng" {
		t.Fatalf("unexpected approval: %+v", approved)
	}
	if approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(approvedAt) {
		t.Fatalf("approvedAt = %v, want %v", approved.ApprovedAt, approvedAt)
	}

	s.now = fixedClock(approvedAt.Add(time.Hour))
	again, err := s.Approve(ctx, second.Version, "someone-else@shop.ng")
	if err != nil {
		t.Fatalf("Approve again: %v", err)
	}
	if again.ApprovedBy != "director@shop.ng" {
		t.Fatalf("second approval replaced first sign-off: %+v", again)
	}

	old, err := s.Get(ctx, first.Version)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if old.Approved {
		t.Fatalf("approving one version must not approve another")
	}
}

func TestConfigStore_CreateRejectsIncompleteMargins(t *testing.T) {
	ctx := context.Background()
	s := NewConfigStore(newTestDB(t))

	margins := referenceMargins()
	delete(margins, pricing.Price5WeeksDelivery)

	_, err := s.Create(ctx, d("15"), margins, "acct@shop.ng")
	if !errors.Is(err, pricing.ErrMissingMarginConfiguration) {
		t.Fatalf("err = %v, want ErrMissingMarginConfiguration", err)
	}
	if _, err := s.Current(ctx); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("rejected config must not be stored, Current err = %v", err)
	}
}

func TestConfigStore_ApproveUnknownVersion(t *testing.T) {
	s := NewConfigStore(newTestDB(t))

	if _, err := s.Approve(context.Background(), 42, "director@shop.ng"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfigStore_SnapshotsDoNotShareMargins(t *testing.T) {
	ctx := context.Background()
	s := NewConfigStore(newTestDB(t))
	if _, err := s.Create(ctx, d("15"), referenceMargins(), "acct@shop.ng"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	a.Margins[pricing.SalePrice] = d("99")

	b, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !b.Margins[pricing.SalePrice].Equal(d("15")) {
		t.Fatalf("snapshot mutation leaked: %s", b.Margins[pricing.SalePrice])
	}
}

func TestProductStore_UpsertGetAndList(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))

	p, err := s.Upsert(ctx, usdProduct("BL-100"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected generated id")
	}

	ngn := usdProduct("BL-200")
	ngn.Cost.OriginalCurrency = "NGN"
	ngn.Cost.ExchangeRate = d("1")
	if _, err := s.Upsert(ctx, ngn); err != nil {
		t.Fatalf("Upsert NGN: %v", err)
	}

	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SKU != "BL-100" || !got.Cost.TotalCostPerUnit().Equal(d("17000")) {
		t.Fatalf("unexpected product: %+v", got)
	}

	usd, err := s.ListByCurrency(ctx, "USD")
	if err != nil {
		t.Fatalf("ListByCurrency: %v", err)
	}
	if len(usd) != 1 || usd[0].ID != p.ID {
		t.Fatalf("ListByCurrency(USD) = %+v", usd)
	}

	p.Cost.FreightAndClearingCostPerUnit = d("2500")
	if _, err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	got, err = s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if !got.Cost.FreightAndClearingCostPerUnit.Equal(d("2500")) {
		t.Fatalf("freight = %s, want 2500", got.Cost.FreightAndClearingCostPerUnit)
	}
}

func TestProductStore_UpsertValidates(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))

	bad := usdProduct("BL-1")
	bad.Cost.ExchangeRate = decimal.Zero
	if _, err := s.Upsert(ctx, bad); !errors.Is(err, pricing.ErrInvalidCostInput) {
		t.Fatalf("err = %v, want ErrInvalidCostInput", err)
	}

	if _, err := s.Upsert(ctx, usdProduct("")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	if _, err := s.Upsert(ctx, usdProduct("DUP")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert(ctx, usdProduct("DUP")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate sku err = %v, want ErrAlreadyExists", err)
	}
}

func TestProductStore_UpsertSKUConflict(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))

	first, err := s.Upsert(ctx, usdProduct("GEN-1"))
	if err != nil {
		t.Fatalf("Upsert GEN-1: %v", err)
	}
	second, err := s.Upsert(ctx, usdProduct("GEN-2"))
	if err != nil {
		t.Fatalf("Upsert GEN-2: %v", err)
	}

	// Re-saving a product under its own sku is an update, not a conflict.
	first.Name = "Generator 1"
	if _, err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert same sku: %v", err)
	}

	second.SKU = "GEN-1"
	second.Cost.FreightAndClearingCostPerUnit = d("9999")
	if _, err := s.Upsert(ctx, second); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("taken sku err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SKU != "GEN-2" || !got.Cost.FreightAndClearingCostPerUnit.Equal(d("2000")) {
		t.Fatalf("rejected upsert must not write: %+v", got)
	}
}

func TestProductStore_UpdateExchangeRate(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))

	p, err := s.Upsert(ctx, usdProduct("BL-9"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.UpdateExchangeRate(ctx, p.ID, d("1620.5")); err != nil {
		t.Fatalf("UpdateExchangeRate: %v", err)
	}
	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Cost.ExchangeRate.Equal(d("1620.5")) {
		t.Fatalf("rate = %s, want 1620.5", got.Cost.ExchangeRate)
	}

	if err := s.UpdateExchangeRate(ctx, "missing", d("1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateExchangeRate(ctx, p.ID, decimal.Zero); !errors.Is(err, pricing.ErrInvalidExchangeRate) {
		t.Fatalf("err = %v, want ErrInvalidExchangeRate", err)
	}
}

func TestCurrencyStore_SetRate(t *testing.T) {
	ctx := context.Background()
	s := NewCurrencyStore(newTestDB(t))

	if _, err := s.SetRate(ctx, "USD", d("1500"), "acct@shop.ng"); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if _, err := s.SetRate(ctx, "USD", d("1580"), "director@shop.ng"); err != nil {
		t.Fatalf("SetRate update: %v", err)
	}

	c, err := s.Get(ctx, "USD")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !c.ExchangeRate.Equal(d("1580")) || c.UpdatedBy != "director@shop.ng" {
		t.Fatalf("unexpected currency: %+v", c)
	}

	if _, err := s.SetRate(ctx, "USD", d("-1"), "x"); !errors.Is(err, pricing.ErrInvalidExchangeRate) {
		t.Fatalf("err = %v, want ErrInvalidExchangeRate", err)
	}
	if _, err := s.SetRate(ctx, "dollars", d("1"), "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Get(ctx, "EUR"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func overridePrices() map[pricing.PriceType]decimal.Decimal {
	return map[pricing.PriceType]decimal.Decimal{
		pricing.SalePrice:           d("30000"),
		pricing.BTBPrice:            d("28000"),
		pricing.BTCPrice:            d("29000"),
		pricing.Price3WeeksDelivery: d("31000"),
		pricing.Price5WeeksDelivery: d("32000"),
	}
}

func TestOverrideStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	products := NewProductStore(database)
	s := NewOverrideStore(database)
	created := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	edited := created.Add(48 * time.Hour)

	p, err := products.Upsert(ctx, usdProduct("OV-1"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	none, err := s.Get(ctx, p.ID)
	if err != nil || none != nil {
		t.Fatalf("Get before create = %+v, %v; want nil, nil", none, err)
	}

	s.now = fixedClock(created)
	if _, err := s.Create(ctx, p.ID, overridePrices(), "acct@shop.ng"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, p.ID, overridePrices(), "acct@shop.ng"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Create err = %v, want ErrAlreadyExists", err)
	}

	s.now = fixedClock(edited)
	o, err := s.SetPrice(ctx, p.ID, pricing.BTBPrice, d("27500"), "director@shop.ng")
	if err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	btb := o.Values[pricing.BTBPrice]
	if !btb.Amount.Equal(d("27500")) || btb.UpdatedBy != "director@shop.ng" || !btb.UpdatedAt.Equal(edited) {
		t.Fatalf("unexpected btb value: %+v", btb)
	}
	sale := o.Values[pricing.SalePrice]
	if !sale.Amount.Equal(d("30000")) || sale.UpdatedBy != "acct@shop.ng" || !sale.UpdatedAt.Equal(created) {
		t.Fatalf("untouched value changed: %+v", sale)
	}

	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if o, err := s.Get(ctx, p.ID); err != nil || o != nil {
		t.Fatalf("Get after delete = %+v, %v", o, err)
	}
	if err := s.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.SetPrice(ctx, p.ID, pricing.SalePrice, d("1"), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetPrice without override err = %v, want ErrNotFound", err)
	}
}

func TestOverrideStore_CreateValidates(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	s := NewOverrideStore(database)

	p, err := NewProductStore(database).Upsert(ctx, usdProduct("OV-2"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	partial := overridePrices()
	delete(partial, pricing.BTCPrice)
	if _, err := s.Create(ctx, p.ID, partial, "acct@shop.ng"); !errors.Is(err, ErrIncompleteOverride) {
		t.Fatalf("err = %v, want ErrIncompleteOverride", err)
	}

	negative := overridePrices()
	negative[pricing.SalePrice] = d("-5")
	if _, err := s.Create(ctx, p.ID, negative, "acct@shop.ng"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	if _, err := s.Create(ctx, "no-such-product", overridePrices(), "acct@shop.ng"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
