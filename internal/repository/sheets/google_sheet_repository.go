package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/greenbook/internal/config"
	"github.com/mamadbah2/greenbook/internal/domain/models"
)

// SalesRange is where assembled sales are appended, one row per sale.
const SalesRange = "Sales!A:J"

// SalesHeader names the columns written by AppendSale.
var SalesHeader = []interface{}{"id", "date", "customer", "strain", "grams", "price", "profit", "tick", "paid", "raw"}

// SalesLog mirrors persisted sales into a spreadsheet.
type SalesLog struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewSalesLog builds a Sheets-backed sales log from a service-account credentials file.
func NewSalesLog(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*SalesLog, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id must not be empty")
	}
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsPath),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		}
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}
	return newSalesLog(service, cfg.SpreadsheetID, logger), nil
}

func newSalesLog(service *sheetsapi.Service, spreadsheetID string, logger *zap.Logger) *SalesLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalesLog{service: service, spreadsheetID: spreadsheetID, logger: logger}
}

// SaleRow renders a sale as spreadsheet cells.
func SaleRow(sale models.Sale) []interface{} {
	paid := ""
	if sale.IsTick {
		paid = sale.PaidSoFar.StringFixed(2)
	}
	return []interface{}{
		sale.ID,
		sale.Date.Format("2006-01-02"),
		sale.Customer,
		sale.Strain,
		sale.Quantity.String(),
		sale.SalePrice.StringFixed(2),
		sale.Profit.StringFixed(2),
		sale.IsTick,
		paid,
		strings.TrimSpace(sale.RawInput),
	}
}

// AppendSale appends the sale to SalesRange.
func (l *SalesLog) AppendSale(ctx context.Context, sale models.Sale) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{SaleRow(sale)}}

	call := l.service.Spreadsheets.Values.Append(l.spreadsheetID, SalesRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append sale %s into range %s: %w", sale.ID, SalesRange, err)
	}

	l.logger.Debug("sale appended to sheet", zap.String("sale_id", sale.ID))
	return nil
}

// Rows reads the mirrored rows back, header included if present.
func (l *SalesLog) Rows(ctx context.Context) ([][]interface{}, error) {
	resp, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, SalesRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", SalesRange, err)
	}
	return resp.Values, nil
}

// EnsureHeader writes SalesHeader when the sheet is empty.
func (l *SalesLog) EnsureHeader(ctx context.Context) error {
	rows, err := l.Rows(ctx)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{SalesHeader}}
	_, err = l.service.Spreadsheets.Values.Append(l.spreadsheetID, SalesRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write sales header: %w", err)
	}
	l.logger.Info("sales sheet header written")
	return nil
}
