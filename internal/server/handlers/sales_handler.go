package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/service/extract"
	"github.com/mamadbah2/greenbook/internal/service/review"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
)

// SaleService persists and reads sales.
type SaleService interface {
	Assemble(ctx context.Context, p models.ParsedSale) (models.SaleRecord, error)
	Get(ctx context.Context, id string) (models.SaleRecord, error)
	List(ctx context.Context, from, to time.Time) ([]models.SaleRecord, error)
}

// Ledger changes and lists tick balances.
type Ledger interface {
	RecordPayment(ctx context.Context, saleID string, amount decimal.Decimal) (models.TickLedgerEntry, error)
	UpdateSalePrice(ctx context.Context, saleID string, price decimal.Decimal) (models.SaleRecord, error)
	Active(ctx context.Context) ([]models.TickLedgerEntry, error)
}

// CatalogSnapshotter provides the extraction catalog.
type CatalogSnapshotter interface {
	Snapshot(ctx context.Context) (models.Catalog, error)
}

// IDResolver expands sale id prefixes.
type IDResolver interface {
	Resolve(ctx context.Context, idOrPrefix string) (string, error)
}

// SalesHandler serves sale intake and the tick ledger.
type SalesHandler struct {
	sales     SaleService
	ledger    Ledger
	catalog   CatalogSnapshotter
	resolver  IDResolver
	evaluator *review.Evaluator
	now       func() time.Time
	logger    *zap.Logger
}

// NewSalesHandler wires the sales endpoints. A nil evaluator uses the default threshold.
func NewSalesHandler(sales SaleService, ledger Ledger, catalog CatalogSnapshotter, resolver IDResolver, evaluator *review.Evaluator, logger *zap.Logger) *SalesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = review.NewEvaluator(review.DefaultThreshold)
	}
	return &SalesHandler{
		sales:     sales,
		ledger:    ledger,
		catalog:   catalog,
		resolver:  resolver,
		evaluator: evaluator,
		now:       time.Now,
		logger:    logger,
	}
}

type parseRequest struct {
	Text string `json:"text" binding:"required"`
}

type parseResponse struct {
	Parsed models.ParsedSale `json:"parsed"`
	Review review.Decision   `json:"review"`
}

type createSaleRequest struct {
	Parsed      models.ParsedSale  `json:"parsed"`
	Corrections *models.Correction `json:"corrections,omitempty"`
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Price  *decimal.Decimal `json:"price"`
}

type tickView struct {
	models.TickLedgerEntry
	State     models.TickState `json:"state"`
	Remaining decimal.Decimal  `json:"remaining"`
	Summary   string           `json:"summary"`
}

func newTickView(e models.TickLedgerEntry) tickView {
	return tickView{TickLedgerEntry: e, State: e.State(), Remaining: e.Remaining(), Summary: settlement.Summary(e)}
}

// Parse extracts a sale line without saving it.
func (h *SalesHandler) Parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "text is required", err)
		return
	}

	cat, err := h.catalog.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Warn("parsing without catalog", zap.Error(err))
		cat = models.Catalog{}
	}

	parsed := extract.New(cat).Extract(req.Text, h.now())
	c.JSON(http.StatusOK, parseResponse{Parsed: parsed, Review: h.evaluator.Evaluate(parsed.Confidence)})
}

// Create applies optional corrections and persists the sale.
func (h *SalesHandler) Create(c *gin.Context) {
	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "invalid sale body", err)
		return
	}

	parsed := req.Parsed
	if req.Corrections != nil {
		parsed = parsed.Apply(*req.Corrections)
	}

	rec, err := h.sales.Assemble(c.Request.Context(), parsed)
	if err != nil {
		respondError(c, h.logger, "sale not saved", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// List returns sales, optionally filtered by ?from= and ?to= dates.
func (h *SalesHandler) List(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		badRequest(c, h.logger, "dates must be YYYY-MM-DD", err)
		return
	}

	recs, err := h.sales.List(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, "list sales failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": recs, "count": len(recs)})
}

// Get returns one sale by id or unique id prefix.
func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := h.resolve(c)
	if !ok {
		return
	}

	rec, err := h.sales.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get sale failed", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UpdatePrice changes a sale price and adjusts its profit.
func (h *SalesHandler) UpdatePrice(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Price == nil {
		badRequest(c, h.logger, "price is required", err)
		return
	}
	id, ok := h.resolve(c)
	if !ok {
		return
	}

	rec, err := h.ledger.UpdateSalePrice(c.Request.Context(), id, *req.Price)
	if err != nil {
		respondError(c, h.logger, "price update rejected", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Ticks lists open ticks and the total outstanding.
func (h *SalesHandler) Ticks(c *gin.Context) {
	active, err := h.ledger.Active(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list ticks failed", err)
		return
	}

	views := make([]tickView, 0, len(active))
	for _, e := range active {
		views = append(views, newTickView(e))
	}
	c.JSON(http.StatusOK, gin.H{"ticks": views, "outstanding": settlement.Outstanding(active)})
}

// RecordPayment applies a payment to a tick.
func (h *SalesHandler) RecordPayment(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		badRequest(c, h.logger, "amount is required", err)
		return
	}
	id, ok := h.resolve(c)
	if !ok {
		return
	}

	entry, err := h.ledger.RecordPayment(c.Request.Context(), id, *req.Amount)
	if err != nil {
		respondError(c, h.logger, "payment rejected", err)
		return
	}
	c.JSON(http.StatusOK, newTickView(entry))
}

func (h *SalesHandler) resolve(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	if h.resolver == nil {
		return raw, true
	}
	id, err := h.resolver.Resolve(c.Request.Context(), raw)
	if err != nil {
		respondError(c, h.logger, "unknown sale id", err)
		return "", false
	}
	return id, true
}
