package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyReport is the aggregated snapshot persisted by the scheduler.
type DailyReport struct {
	Date               time.Time       `json:"date"`
	SalesCount         int             `json:"salesCount"`
	GramsSold          decimal.Decimal `json:"gramsSold"`
	Revenue            decimal.Decimal `json:"revenue"`
	Profit             decimal.Decimal `json:"profit"`
	OpenTicks          int             `json:"openTicks"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	AverageCostPerGram decimal.Decimal `json:"averageCostPerGram"`
	CreatedAt          time.Time       `json:"createdAt"`
}
