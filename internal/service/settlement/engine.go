// Package settlement owns the paid-so-far balance of credit ("tick") sales.
// It is the only writer of PaidSoFar once a sale is persisted.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/lock"
)

var (
	// ErrInvalidPayment rejects negative amounts and overpayments.
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrAlreadySettled rejects changes to a fully paid tick.
	ErrAlreadySettled = errors.New("tick already settled")
	// ErrInconsistentSettlement rejects a price below what was already paid.
	ErrInconsistentSettlement = errors.New("inconsistent settlement")
	// ErrNotTick is returned for payments against a cash sale.
	ErrNotTick = errors.New("sale is not a tick")
)

// Records is the persistence the engine needs.
type Records interface {
	Get(ctx context.Context, id string) (models.SaleRecord, error)
	Put(ctx context.Context, rec models.SaleRecord) error
	List(ctx context.Context) ([]models.SaleRecord, error)
}

// Engine serialises balance changes per sale id.
type Engine struct {
	records Records
	locker  lock.Locker
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine wires the engine. A nil locker falls back to an in-process one.
func NewEngine(records Records, locker lock.Locker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Engine{
		records: records,
		locker:  locker,
		logger:  logger,
		now:     time.Now,
	}
}

// LockKey is the critical-section key for a sale.
func LockKey(saleID string) string { return "tick:" + saleID }

// RecordPayment adds amount to the paid balance. Rejected payments leave the record untouched.
func (e *Engine) RecordPayment(ctx context.Context, saleID string, amount decimal.Decimal) (models.TickLedgerEntry, error) {
	rec, err := e.withRecord(ctx, saleID, true, func(rec *models.SaleRecord) error {
		if rec.Tick.State() == models.TickPaid {
			return fmt.Errorf("%w: sale %s", ErrAlreadySettled, saleID)
		}
		if amount.IsNegative() {
			return fmt.Errorf("%w: negative amount %s", ErrInvalidPayment, amount)
		}

		paid := rec.Tick.PaidSoFar.Add(amount)
		if paid.GreaterThan(rec.Tick.SalePrice) {
			return fmt.Errorf("%w: %s exceeds remaining %s", ErrInvalidPayment, amount, rec.Tick.Remaining())
		}

		rec.Tick.PaidSoFar = paid
		rec.Sale.PaidSoFar = paid
		return nil
	})
	if err != nil {
		e.logger.Warn("payment rejected", zap.String("sale_id", saleID), zap.String("amount", amount.String()), zap.Error(err))
		return models.TickLedgerEntry{}, err
	}

	entry := *rec.Tick
	e.logger.Info("payment recorded",
		zap.String("sale_id", saleID),
		zap.String("amount", amount.String()),
		zap.String("remaining", entry.Remaining().String()),
		zap.String("state", string(entry.State())),
	)
	return entry, nil
}

// UpdateSalePrice changes the price of a sale. Profit moves by the same delta.
// On a tick the new price may not fall below what was already paid.
func (e *Engine) UpdateSalePrice(ctx context.Context, saleID string, price decimal.Decimal) (models.SaleRecord, error) {
	rec, err := e.withRecord(ctx, saleID, false, func(rec *models.SaleRecord) error {
		if price.IsNegative() {
			return fmt.Errorf("%w: negative price %s", ErrInconsistentSettlement, price)
		}
		if rec.Tick != nil {
			if rec.Tick.State() == models.TickPaid {
				return fmt.Errorf("%w: sale %s", ErrAlreadySettled, saleID)
			}
			if price.LessThan(rec.Tick.PaidSoFar) {
				return fmt.Errorf("%w: price %s below paid %s", ErrInconsistentSettlement, price, rec.Tick.PaidSoFar)
			}
			rec.Tick.SalePrice = price
		}

		delta := price.Sub(rec.Sale.SalePrice)
		rec.Sale.Profit = rec.Sale.Profit.Add(delta)
		rec.Sale.SalePrice = price
		return nil
	})
	if err != nil {
		e.logger.Warn("price update rejected", zap.String("sale_id", saleID), zap.String("price", price.String()), zap.Error(err))
		return models.SaleRecord{}, err
	}

	e.logger.Info("sale price updated", zap.String("sale_id", saleID), zap.String("price", price.String()))
	return rec, nil
}

// withRecord runs mutate on the record under the per-sale lock and saves
// sale and entry together when mutate succeeds.
func (e *Engine) withRecord(ctx context.Context, saleID string, tickOnly bool, mutate func(*models.SaleRecord) error) (models.SaleRecord, error) {
	unlock, err := e.locker.Lock(ctx, LockKey(saleID))
	if err != nil {
		return models.SaleRecord{}, err
	}
	defer unlock()

	rec, err := e.records.Get(ctx, saleID)
	if err != nil {
		return models.SaleRecord{}, err
	}
	if tickOnly && (!rec.Sale.IsTick || rec.Tick == nil) {
		return models.SaleRecord{}, fmt.Errorf("%w: %s", ErrNotTick, saleID)
	}

	if err := mutate(&rec); err != nil {
		return models.SaleRecord{}, err
	}
	if rec.Tick != nil {
		rec.Tick.UpdatedAt = e.now().UTC()
	}

	if err := e.records.Put(ctx, rec); err != nil {
		return models.SaleRecord{}, fmt.Errorf("save sale %s: %w", saleID, err)
	}
	return rec, nil
}

// Active lists unpaid and partially paid entries, oldest sale first.
func (e *Engine) Active(ctx context.Context) ([]models.TickLedgerEntry, error) {
	recs, err := e.records.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.TickLedgerEntry, 0)
	for _, rec := range recs {
		if rec.Tick == nil || rec.Tick.State() == models.TickPaid {
			continue
		}
		out = append(out, *rec.Tick)
	}
	return out, nil
}

// Outstanding sums the remaining balance of active entries.
func Outstanding(entries []models.TickLedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Remaining())
	}
	return total
}

// Summary renders the one-line settlement status passed to notifications.
func Summary(entry models.TickLedgerEntry) string {
	name := entry.Customer
	if strings.TrimSpace(name) == "" {
		name = "customer"
	}
	switch entry.State() {
	case models.TickPaid:
		return fmt.Sprintf("%s paid in full (%s)", name, entry.SalePrice.StringFixed(2))
	case models.TickUnpaid:
		return fmt.Sprintf("%s owes %s, nothing paid yet", name, entry.SalePrice.StringFixed(2))
	default:
		return fmt.Sprintf("%s owes %s of %s", name, entry.Remaining().StringFixed(2), entry.SalePrice.StringFixed(2))
	}
}
