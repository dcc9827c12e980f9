package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/store"
)

type stubSales struct {
	recs []models.SaleRecord
	err  error
}

func (s stubSales) List(context.Context) ([]models.SaleRecord, error) { return s.recs, s.err }

type stubCosts map[string]decimal.Decimal

func (c stubCosts) StrainCosts(context.Context) (map[string]decimal.Decimal, error) { return c, nil }

func TestCustomers_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory(), nil, nil, nil)

	empty, err := svc.Customers(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	saved, err := svc.SetCustomers(ctx, []string{" Maria", "jake", "Jake", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"Maria", "jake"}, saved)

	got, err := svc.Customers(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestSnapshot_MergesSourcesAndCosts(t *testing.T) {
	ctx := context.Background()
	sales := stubSales{recs: []models.SaleRecord{
		{Sale: models.Sale{Customer: "Tom", Strain: "Sour Diesel"}},
		{Sale: models.Sale{Customer: "maria", Strain: "gelato"}},
	}}
	costs := stubCosts{"Gelato": decimal.NewFromInt(4)}

	svc := NewService(store.NewMemory(), sales, costs, nil)
	_, err := svc.SetCustomers(ctx, []string{"Maria"})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maria", "Tom"}, snap.Customers)
	require.Len(t, snap.Strains, 2)

	cost, ok := snap.StrainCost("Gelato")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(4).Equal(cost))

	_, ok = snap.StrainCost("Sour Diesel")
	assert.False(t, ok)
}

func TestSnapshot_DegradesWhenSalesFail(t *testing.T) {
	svc := NewService(store.NewMemory(), stubSales{err: errors.New("boom")}, nil, nil)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Customers)
	assert.Empty(t, snap.Strains)
}
