// Package catalog supplies the known customers and strains used for extraction.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/store"
)

const customersKey = "catalog/customers"

// SaleLister lists persisted sales.
type SaleLister interface {
	List(ctx context.Context) ([]models.SaleRecord, error)
}

// CostSource returns the weighted cost per gram of each stocked strain.
type CostSource interface {
	StrainCosts(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Service builds catalog snapshots.
type Service struct {
	store  store.Store
	sales  SaleLister
	costs  CostSource
	logger *zap.Logger
}

// NewService wires the catalog. sales and costs may be nil.
func NewService(s store.Store, sales SaleLister, costs CostSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, sales: sales, costs: costs, logger: logger}
}

// Customers returns the saved customer list.
func (s *Service) Customers(ctx context.Context) ([]string, error) {
	var names []string
	if _, err := s.store.Load(ctx, customersKey, &names); err != nil {
		return nil, err
	}
	return normalise(names), nil
}

// SetCustomers replaces the saved customer list.
func (s *Service) SetCustomers(ctx context.Context, names []string) ([]string, error) {
	names = normalise(names)
	if err := s.store.Save(ctx, customersKey, names); err != nil {
		return nil, err
	}
	s.logger.Info("customer list saved", zap.Int("count", len(names)))
	return names, nil
}

// Snapshot assembles the catalog from saved customers, customers seen on
// past sales and stocked strains. Missing sources degrade to an emptier
// catalog rather than an error, except for the store itself.
func (s *Service) Snapshot(ctx context.Context) (models.Catalog, error) {
	customers, err := s.Customers(ctx)
	if err != nil {
		return models.Catalog{}, err
	}

	strainNames := make(map[string]string)
	if s.sales != nil {
		recs, err := s.sales.List(ctx)
		if err != nil {
			s.logger.Warn("catalog without sale history", zap.Error(err))
		}
		for _, rec := range recs {
			customers = append(customers, rec.Sale.Customer)
			if name := strings.TrimSpace(rec.Sale.Strain); name != "" {
				strainNames[strings.ToLower(name)] = name
			}
		}
	}

	var costs map[string]decimal.Decimal
	if s.costs != nil {
		costs, err = s.costs.StrainCosts(ctx)
		if err != nil {
			s.logger.Warn("catalog without strain costs", zap.Error(err))
		}
	}
	for name := range costs {
		strainNames[strings.ToLower(name)] = name
	}

	strains := make([]models.Strain, 0, len(strainNames))
	for _, name := range strainNames {
		strain := models.Strain{Name: name}
		if cost, ok := costs[name]; ok {
			strain.CostPerGram = decimal.NewNullDecimal(cost)
		}
		strains = append(strains, strain)
	}
	sort.Slice(strains, func(i, j int) bool { return strains[i].Name < strains[j].Name })

	return models.Catalog{Customers: normalise(customers), Strains: strains}, nil
}

// normalise trims, drops blanks and de-duplicates case-insensitively, keeping the first spelling.
func normalise(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		lower := strings.ToLower(n)
		if n == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
