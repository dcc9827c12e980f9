package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/lock"
	"github.com/mamadbah2/greenbook/internal/repository/records"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/service/inventory"
	"github.com/mamadbah2/greenbook/internal/service/sales"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
)

var friday = time.Date(2026, time.October, 16, 20, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc       *Service
	store     *store.Memory
	assembler *sales.Assembler
	inventory *inventory.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := store.NewMemory()
	repo := records.New(s)
	asm := sales.NewAssembler(repo, nil, nil)
	inv := inventory.NewService(s, nil)
	svc := NewService(asm, settlement.NewEngine(repo, lock.NewLocal(), nil), inv, s, nil)
	svc.now = func() time.Time { return friday }
	return fixture{svc: svc, store: s, assembler: asm, inventory: inv}
}

func (f fixture) sale(t *testing.T, customer string, day time.Time, grams, price, profit string, tick bool, paid string) {
	t.Helper()
	_, err := f.assembler.Assemble(context.Background(), models.ParsedSale{
		Customer:  customer,
		Strain:    "Gelato",
		Date:      day,
		Quantity:  dec(grams),
		SalePrice: dec(price),
		Profit:    dec(profit),
		IsTick:    tick,
		PaidSoFar: dec(paid),
	})
	require.NoError(t, err)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.inventory.Add(ctx, models.InventoryItem{Strain: "Gelato", Quantity: dec("28"), TotalCost: dec("224")})
	require.NoError(t, err)
	_, err = f.inventory.Add(ctx, models.InventoryItem{Strain: "Runtz", Quantity: dec("14"), TotalCost: dec("56")})
	require.NoError(t, err)

	f.sale(t, "jake", friday.AddDate(0, 0, -1), "3.5", "60", "32", true, "40")
	f.sale(t, "mia", friday, "7", "100", "44", false, "0")
	f.sale(t, "old", friday.AddDate(0, 0, -30), "28", "200", "0", true, "0")

	report, err := f.svc.Summary(ctx, friday.AddDate(0, 0, -6), friday)
	require.NoError(t, err)

	assert.Equal(t, 2, report.SalesCount)
	assert.True(t, dec("10.5").Equal(report.GramsSold))
	assert.True(t, dec("160").Equal(report.Revenue))
	assert.True(t, dec("76").Equal(report.Profit))
	assert.Equal(t, 2, report.OpenTicks, "ticks outside the window still count")
	assert.True(t, dec("220").Equal(report.OutstandingBalance))
	// (224 + 56) / 42
	assert.Equal(t, "6.67", report.AverageCostPerGram.StringFixed(2))
	assert.Equal(t, friday, report.CreatedAt)
}

func TestSummary_Empty(t *testing.T) {
	report, err := newFixture(t).svc.Summary(context.Background(), friday.AddDate(0, 0, -6), friday)
	require.NoError(t, err)
	assert.Zero(t, report.SalesCount)
	assert.True(t, report.Revenue.IsZero())
	assert.True(t, report.AverageCostPerGram.IsZero())
}

type failingSales struct{}

func (failingSales) List(context.Context, time.Time, time.Time) ([]models.SaleRecord, error) {
	return nil, store.ErrUnavailable
}

type failingCosts struct{}

func (failingCosts) Stats(context.Context) (models.InventoryStats, error) {
	return models.InventoryStats{}, errors.New("boom")
}

func TestSummary_SourceErrors(t *testing.T) {
	s := store.NewMemory()
	engine := settlement.NewEngine(records.New(s), nil, nil)

	_, err := NewService(failingSales{}, engine, nil, s, nil).Summary(context.Background(), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, store.ErrUnavailable)

	report, err := NewService(sales.NewAssembler(records.New(s), nil, nil), engine, failingCosts{}, s, nil).
		Summary(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err, "inventory cost is optional")
	assert.True(t, report.AverageCostPerGram.IsZero())
}

func TestWeeklyDigest(t *testing.T) {
	f := newFixture(t)
	f.sale(t, "jake", friday.AddDate(0, 0, -2), "3.5", "60", "32", true, "40")
	f.sale(t, "mia", friday.AddDate(0, 0, -6), "7", "100", "44", true, "0")
	f.sale(t, "sam", friday.AddDate(0, 0, -7), "1", "10", "5", false, "0")

	digest, err := f.svc.WeeklyDigest(context.Background(), friday)
	require.NoError(t, err)

	assert.Contains(t, digest, "Weekly summary (2026-10-10 to 2026-10-16)")
	assert.Contains(t, digest, "Sales: 2, 10.5g sold")
	assert.Contains(t, digest, "Revenue: 160.00")
	assert.Contains(t, digest, "Open ticks: 2, outstanding 120.00")
	assert.Contains(t, digest, "- mia owes 100.00, nothing paid yet\n- jake owes 20.00 of 60.00")
}

func TestWeeklyDigest_NoSales(t *testing.T) {
	digest, err := newFixture(t).svc.WeeklyDigest(context.Background(), friday)
	require.NoError(t, err)
	assert.Contains(t, digest, "No sales logged this week.")
	assert.Contains(t, digest, "Open ticks: 0, outstanding 0.00")
}

func TestSnapshotDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sale(t, "jake", friday, "3.5", "60", "32", false, "0")
	f.sale(t, "mia", friday.AddDate(0, 0, -1), "7", "100", "44", false, "0")

	saved, err := f.svc.SnapshotDay(ctx, friday)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.SalesCount)
	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), saved.Date)

	keys, err := f.store.Keys(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/2026-10-16"}, keys)

	loaded, found, err := f.svc.Snapshot(ctx, friday)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, loaded.SalesCount)
	assert.True(t, dec("60").Equal(loaded.Revenue))

	_, found, err = f.svc.Snapshot(ctx, friday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, found)
}
