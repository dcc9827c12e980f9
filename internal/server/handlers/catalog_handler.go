package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/service/assist"
)

// CustomerBook reads and replaces the saved customer list.
type CustomerBook interface {
	Customers(ctx context.Context) ([]string, error)
	SetCustomers(ctx context.Context, names []string) ([]string, error)
}

// Assistant suggests rewrites of sale text.
type Assistant interface {
	Suggest(ctx context.Context, text string) assist.Suggestion
}

// Reporter summarises a period.
type Reporter interface {
	Summary(ctx context.Context, from, to time.Time) (models.DailyReport, error)
}

// CatalogHandler serves the customer list, rewrite suggestions and reports.
type CatalogHandler struct {
	customers CustomerBook
	assistant Assistant
	reporter  Reporter
	now       func() time.Time
	logger    *zap.Logger
}

func NewCatalogHandler(customers CustomerBook, assistant Assistant, reporter Reporter, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{customers: customers, assistant: assistant, reporter: reporter, now: time.Now, logger: logger}
}

type customersBody struct {
	Customers []string `json:"customers"`
}

func (h *CatalogHandler) GetCustomers(c *gin.Context) {
	names, err := h.customers.Customers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "load customers failed", err)
		return
	}
	c.JSON(http.StatusOK, customersBody{Customers: names})
}

func (h *CatalogHandler) PutCustomers(c *gin.Context) {
	var body customersBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, "invalid customer list", err)
		return
	}

	names, err := h.customers.SetCustomers(c.Request.Context(), body.Customers)
	if err != nil {
		respondError(c, h.logger, "save customers failed", err)
		return
	}
	c.JSON(http.StatusOK, customersBody{Customers: names})
}

// Rewrite returns an AI suggestion. It is never applied to anything.
func (h *CatalogHandler) Rewrite(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "text is required", err)
		return
	}
	c.JSON(http.StatusOK, h.assistant.Suggest(c.Request.Context(), req.Text))
}

// Summary reports on ?from= to ?to=, defaulting to the last seven days.
func (h *CatalogHandler) Summary(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		badRequest(c, h.logger, "dates must be YYYY-MM-DD", err)
		return
	}
	if to.IsZero() {
		now := h.now()
		to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, -6)
	}
	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from is after to"})
		return
	}

	report, err := h.reporter.Summary(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, "report failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
