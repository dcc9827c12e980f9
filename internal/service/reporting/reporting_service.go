package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
)

const (
	dateLayout = "2006-01-02"
	keyPrefix  = "reports/"
	digestTop  = 5
)

// SalesSource lists persisted sales within [from, to].
type SalesSource interface {
	List(ctx context.Context, from, to time.Time) ([]models.SaleRecord, error)
}

// TickSource lists unpaid and partially paid ticks.
type TickSource interface {
	Active(ctx context.Context) ([]models.TickLedgerEntry, error)
}

// CostSource provides inventory cost aggregates.
type CostSource interface {
	Stats(ctx context.Context) (models.InventoryStats, error)
}

// Service exposes lightweight analytics for summaries and digests.
type Service struct {
	sales  SalesSource
	ticks  TickSource
	costs  CostSource
	store  store.Store
	now    func() time.Time
	logger *zap.Logger
}

// NewService wires a new reporting service instance. costs may be nil.
func NewService(sales SalesSource, ticks TickSource, costs CostSource, s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sales: sales, ticks: ticks, costs: costs, store: s, now: time.Now, logger: logger}
}

// Summary aggregates sales dated within [from, to] together with the current
// tick balance and inventory average cost.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (models.DailyReport, error) {
	recs, err := s.sales.List(ctx, from, to)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("load sales: %w", err)
	}

	report := models.DailyReport{
		Date:               from,
		GramsSold:          decimal.Zero,
		Revenue:            decimal.Zero,
		Profit:             decimal.Zero,
		OutstandingBalance: decimal.Zero,
		AverageCostPerGram: decimal.Zero,
		CreatedAt:          s.now(),
	}
	for _, rec := range recs {
		report.SalesCount++
		report.GramsSold = report.GramsSold.Add(rec.Sale.Quantity)
		report.Revenue = report.Revenue.Add(rec.Sale.SalePrice)
		report.Profit = report.Profit.Add(rec.Sale.Profit)
	}

	active, err := s.ticks.Active(ctx)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("load ticks: %w", err)
	}
	report.OpenTicks = len(active)
	report.OutstandingBalance = settlement.Outstanding(active)

	if s.costs != nil {
		stats, err := s.costs.Stats(ctx)
		if err != nil {
			s.logger.Warn("inventory stats unavailable for report", zap.Error(err))
		} else {
			report.AverageCostPerGram = stats.AverageCostPerGram
		}
	}

	return report, nil
}

// WeeklyDigest summarises the seven days ending at now plus the largest open ticks.
func (s *Service) WeeklyDigest(ctx context.Context, now time.Time) (string, error) {
	end := endOfDay(now)
	start := startOfDay(now).AddDate(0, 0, -6)

	report, err := s.Summary(ctx, start, end)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weekly summary (%s to %s)\n", start.Format(dateLayout), end.Format(dateLayout))
	if report.SalesCount == 0 {
		b.WriteString("No sales logged this week.\n")
	} else {
		fmt.Fprintf(&b, "Sales: %d, %sg sold\nRevenue: %s\nProfit: %s\n",
			report.SalesCount, report.GramsSold.String(), report.Revenue.StringFixed(2), report.Profit.StringFixed(2))
	}
	fmt.Fprintf(&b, "Open ticks: %d, outstanding %s", report.OpenTicks, report.OutstandingBalance.StringFixed(2))

	if report.OpenTicks > 0 {
		active, err := s.ticks.Active(ctx)
		if err != nil {
			return "", fmt.Errorf("load ticks: %w", err)
		}
		for _, entry := range largestFirst(active, digestTop) {
			b.WriteString("\n- ")
			b.WriteString(settlement.Summary(entry))
		}
	}

	return b.String(), nil
}

// SnapshotDay persists the summary of the calendar day containing day under reports/<date>.
func (s *Service) SnapshotDay(ctx context.Context, day time.Time) (models.DailyReport, error) {
	start := startOfDay(day)
	report, err := s.Summary(ctx, start, endOfDay(day))
	if err != nil {
		return models.DailyReport{}, err
	}
	report.Date = start

	if err := s.store.Save(ctx, ReportKey(start), report); err != nil {
		s.logger.Error("failed to save daily report", zap.String("date", start.Format(dateLayout)), zap.Error(err))
		return models.DailyReport{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

// Snapshot loads a saved daily report.
func (s *Service) Snapshot(ctx context.Context, day time.Time) (models.DailyReport, bool, error) {
	var report models.DailyReport
	found, err := s.store.Load(ctx, ReportKey(day), &report)
	if err != nil {
		return models.DailyReport{}, false, fmt.Errorf("load report: %w", err)
	}
	return report, found, nil
}

// ReportKey is the store key of a daily snapshot.
func ReportKey(day time.Time) string {
	return keyPrefix + day.Format(dateLayout)
}

func largestFirst(entries []models.TickLedgerEntry, n int) []models.TickLedgerEntry {
	out := append([]models.TickLedgerEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Remaining().GreaterThan(out[j].Remaining())
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
