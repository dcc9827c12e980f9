// Package sales promotes a confirmed ParsedSale to a persisted Sale and,
// for credit sales, its tick ledger entry.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
)

// ErrInvalidSale rejects a parsed sale that cannot be persisted as is.
var ErrInvalidSale = errors.New("invalid sale")

// Records persists combined sale records.
type Records interface {
	Get(ctx context.Context, id string) (models.SaleRecord, error)
	Put(ctx context.Context, rec models.SaleRecord) error
	List(ctx context.Context) ([]models.SaleRecord, error)
}

// Mirror receives a copy of each assembled sale. Failures never fail the assemble.
type Mirror interface {
	AppendSale(ctx context.Context, sale models.Sale) error
}

// Assembler writes confirmed sales.
type Assembler struct {
	records Records
	mirror  Mirror
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// NewAssembler wires the assembler. mirror may be nil.
func NewAssembler(records Records, mirror Mirror, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		records: records,
		mirror:  mirror,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Validate checks the fields a persisted sale must satisfy. Review flags are
// advisory and are not consulted here.
func Validate(p models.ParsedSale) error {
	switch {
	case !p.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be positive grams, got %s", ErrInvalidSale, p.Quantity)
	case p.SalePrice.IsNegative():
		return fmt.Errorf("%w: sale price must not be negative, got %s", ErrInvalidSale, p.SalePrice)
	case p.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidSale)
	}
	if p.IsTick && (p.PaidSoFar.IsNegative() || p.PaidSoFar.GreaterThan(p.SalePrice)) {
		return fmt.Errorf("%w: paid %s outside [0, %s]", ErrInvalidSale, p.PaidSoFar, p.SalePrice)
	}
	return nil
}

// Build converts a parsed sale into the record that Assemble persists.
// Confidence is dropped and the raw input kept for audit.
func (a *Assembler) Build(p models.ParsedSale) (models.SaleRecord, error) {
	if err := Validate(p); err != nil {
		return models.SaleRecord{}, err
	}

	createdAt := a.now().UTC()
	sale := models.Sale{
		ID:        a.newID(),
		Customer:  strings.TrimSpace(p.Customer),
		Strain:    strings.TrimSpace(p.Strain),
		Date:      p.Date,
		Quantity:  p.Quantity,
		SalePrice: p.SalePrice,
		Profit:    p.Profit,
		IsTick:    p.IsTick,
		RawInput:  p.RawInput,
		CreatedAt: createdAt,
	}

	rec := models.SaleRecord{Sale: sale}
	if p.IsTick {
		rec.Sale.PaidSoFar = p.PaidSoFar
		rec.Tick = &models.TickLedgerEntry{
			SaleID:    sale.ID,
			Customer:  sale.Customer,
			SalePrice: sale.SalePrice,
			PaidSoFar: p.PaidSoFar,
			UpdatedAt: createdAt,
		}
	}
	return rec, nil
}

// Assemble persists a confirmed sale. The sale and its ledger entry are
// written in one store operation, so either both exist or neither does.
func (a *Assembler) Assemble(ctx context.Context, p models.ParsedSale) (models.SaleRecord, error) {
	rec, err := a.Build(p)
	if err != nil {
		return models.SaleRecord{}, err
	}

	if err := a.records.Put(ctx, rec); err != nil {
		a.logger.Error("failed to persist sale", zap.String("sale_id", rec.Sale.ID), zap.Error(err))
		return models.SaleRecord{}, fmt.Errorf("persist sale: %w", err)
	}

	a.logger.Info("sale recorded",
		zap.String("sale_id", rec.Sale.ID),
		zap.String("customer", rec.Sale.Customer),
		zap.String("grams", rec.Sale.Quantity.String()),
		zap.String("price", rec.Sale.SalePrice.String()),
		zap.Bool("tick", rec.Sale.IsTick),
	)

	if a.mirror != nil {
		if err := a.mirror.AppendSale(ctx, rec.Sale); err != nil {
			a.logger.Warn("failed to mirror sale", zap.String("sale_id", rec.Sale.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// Get returns a persisted record.
func (a *Assembler) Get(ctx context.Context, id string) (models.SaleRecord, error) {
	return a.records.Get(ctx, id)
}

// List returns persisted records in sale-date order, optionally bounded by [from, to].
func (a *Assembler) List(ctx context.Context, from, to time.Time) ([]models.SaleRecord, error) {
	recs, err := a.records.List(ctx)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return recs, nil
	}

	out := make([]models.SaleRecord, 0, len(recs))
	for _, rec := range recs {
		if !from.IsZero() && rec.Sale.Date.Before(from) {
			continue
		}
		if !to.IsZero() && rec.Sale.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
