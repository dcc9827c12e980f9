package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/greenbook/internal/config"
	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/lock"
	"github.com/mamadbah2/greenbook/internal/repository/records"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/server/handlers"
	"github.com/mamadbah2/greenbook/internal/service/assist"
	"github.com/mamadbah2/greenbook/internal/service/catalog"
	"github.com/mamadbah2/greenbook/internal/service/commands"
	"github.com/mamadbah2/greenbook/internal/service/inventory"
	"github.com/mamadbah2/greenbook/internal/service/reporting"
	"github.com/mamadbah2/greenbook/internal/service/sales"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
	"github.com/mamadbah2/greenbook/internal/service/whatsapp"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	s := store.NewMemory()
	repo := records.New(s)
	inv := inventory.NewService(s, nil)
	cat := catalog.NewService(s, repo, inv, nil)
	asm := sales.NewAssembler(repo, nil, nil)
	engine := settlement.NewEngine(repo, lock.NewLocal(), nil)
	assistant := assist.NewService(nil, time.Second, nil)

	dispatcher := commands.NewService(commands.Deps{
		Catalog:    cat,
		Assembler:  asm,
		Settlement: engine,
		Resolver:   repo,
		Assistant:  assistant,
		Drafts:     whatsapp.NewSessionManager(0),
	}, nil)
	messaging := whatsapp.NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "tok"}, nil, dispatcher, nil)

	return New(Handlers{
		Webhook:   handlers.NewWebhookHandler(messaging, nil),
		Sales:     handlers.NewSalesHandler(asm, engine, cat, repo, nil, nil),
		Inventory: handlers.NewInventoryHandler(inv, nil),
		Catalog:   handlers.NewCatalogHandler(cat, assistant, reporting.NewService(asm, engine, inv, s, nil), nil),
	}, nil)
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func TestHealthAndWebhookVerify(t *testing.T) {
	r := newEngine(t)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", nil).Code)

	rec := do(t, r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=abc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())

	rec = do(t, r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=bad&hub.challenge=abc", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookReceive(t *testing.T) {
	r := newEngine(t)
	payload := models.WebhookPayload{Entry: []models.WebhookEntry{{Changes: []models.WebhookChange{{
		Value: models.WebhookValue{Messages: []models.InboundMessage{{ID: "1", From: "15550001111", Type: "text", Text: &models.TextContent{Body: "/help"}}}},
	}}}}}

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/webhook", payload).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/webhook", "{").Code)
}

func TestSaleLifecycle(t *testing.T) {
	r := newEngine(t)

	rec := do(t, r, http.MethodPut, "/api/catalog/customers", map[string]any{"customers": []string{"jake", " mia "}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/inventory", map[string]any{"strain": "Gelato", "quantity": "28", "totalCost": "224"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item map[string]any
	decode(t, rec, &item)
	assert.Equal(t, "8", item["pricePerGram"])

	rec = do(t, r, http.MethodPost, "/api/sales/parse", map[string]string{"text": "sold 3.5g gelato to jake for $60, owes 20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var parsed struct {
		Parsed models.ParsedSale `json:"parsed"`
		Review struct {
			Status string `json:"status"`
		} `json:"review"`
	}
	decode(t, rec, &parsed)
	assert.Equal(t, "jake", parsed.Parsed.Customer)
	assert.Equal(t, "Gelato", parsed.Parsed.Strain)
	assert.True(t, parsed.Parsed.IsTick)
	assert.Equal(t, "40", parsed.Parsed.PaidSoFar.String())
	assert.NotEmpty(t, parsed.Review.Status)

	rec = do(t, r, http.MethodPost, "/api/sales", map[string]any{"parsed": parsed.Parsed, "corrections": map[string]any{"customer": "Jake"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.SaleRecord
	decode(t, rec, &created)
	require.NotNil(t, created.Tick)
	assert.Equal(t, "Jake", created.Sale.Customer)
	short := created.Sale.ID[:8]

	rec = do(t, r, http.MethodGet, "/api/sales/"+short, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/ticks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ticks struct {
		Ticks []struct {
			Summary string `json:"summary"`
			State   string `json:"state"`
		} `json:"ticks"`
		Outstanding string `json:"outstanding"`
	}
	decode(t, rec, &ticks)
	require.Len(t, ticks.Ticks, 1)
	assert.Equal(t, "Jake owes 20.00 of 60.00", ticks.Ticks[0].Summary)
	assert.Equal(t, "partially_paid", ticks.Ticks[0].State)
	assert.Equal(t, "20", ticks.Outstanding)

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, r, http.MethodPost, "/api/ticks/"+short+"/payments", map[string]any{"amount": "25"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/ticks/"+short+"/payments", map[string]any{}).Code)

	rec = do(t, r, http.MethodPost, "/api/ticks/"+short+"/payments", map[string]any{"amount": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"state":"paid"`)

	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/api/ticks/"+short+"/payments", map[string]any{"amount": "5"}).Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPatch, "/api/sales/"+short+"/price", map[string]any{"price": "70"}).Code)

	rec = do(t, r, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report models.DailyReport
	decode(t, rec, &report)
	assert.Equal(t, 1, report.SalesCount)
	assert.Equal(t, 0, report.OpenTicks)
	assert.Equal(t, "8", report.AverageCostPerGram.String())

	rec = do(t, r, http.MethodGet, "/api/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestCashPriceUpdate(t *testing.T) {
	r := newEngine(t)
	sale := models.ParsedSale{Date: time.Now(), Quantity: mustDec(t, "7"), SalePrice: mustDec(t, "100"), Profit: mustDec(t, "44")}

	rec := do(t, r, http.MethodPost, "/api/sales", map[string]any{"parsed": sale})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.SaleRecord
	decode(t, rec, &created)

	rec = do(t, r, http.MethodPatch, "/api/sales/"+created.Sale.ID+"/price", map[string]any{"price": "90"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.SaleRecord
	decode(t, rec, &updated)
	assert.Equal(t, "34", updated.Sale.Profit.String())

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, r, http.MethodPost, "/api/ticks/"+created.Sale.ID+"/payments", map[string]any{"amount": "5"}).Code)
}

func TestErrorStatuses(t *testing.T) {
	r := newEngine(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown sale", http.MethodGet, "/api/sales/deadbeef", nil, http.StatusNotFound},
		{"invalid sale", http.MethodPost, "/api/sales", map[string]any{"parsed": map[string]any{"quantity": "0"}}, http.StatusUnprocessableEntity},
		{"malformed sale", http.MethodPost, "/api/sales", "{", http.StatusBadRequest},
		{"parse without text", http.MethodPost, "/api/sales/parse", map[string]string{}, http.StatusBadRequest},
		{"bad date filter", http.MethodGet, "/api/sales?from=18/10/2026", nil, http.StatusBadRequest},
		{"inverted report range", http.MethodGet, "/api/reports/summary?from=2026-10-18&to=2026-10-01", nil, http.StatusBadRequest},
		{"invalid inventory", http.MethodPost, "/api/inventory", map[string]any{"strain": "Gelato", "quantity": "0", "totalCost": "10"}, http.StatusUnprocessableEntity},
		{"missing inventory", http.MethodDelete, "/api/inventory/nope", nil, http.StatusNotFound},
		{"replace missing inventory", http.MethodPut, "/api/inventory/nope", map[string]any{"strain": "Gelato", "quantity": "1", "totalCost": "1"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestInventoryStatsAndAssist(t *testing.T) {
	r := newEngine(t)

	for _, body := range []map[string]any{
		{"strain": "Gelato", "quantity": "28", "totalCost": "224"},
		{"strain": "Runtz", "quantity": "14", "totalCost": "56"},
	} {
		require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/inventory", body).Code)
	}

	rec := do(t, r, http.MethodGet, "/api/inventory/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.InventoryStats
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.Items)
	assert.Equal(t, "42", stats.TotalGrams.String())

	rec = do(t, r, http.MethodGet, "/api/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Runtz")

	rec = do(t, r, http.MethodPost, "/api/assist/rewrite", map[string]string{"text": "jake 8th 60"})
	require.Equal(t, http.StatusOK, rec.Code)
	var suggestion assist.Suggestion
	decode(t, rec, &suggestion)
	assert.Equal(t, "jake 8th 60", suggestion.Suggested)
	assert.False(t, suggestion.Changed)
	assert.NotEmpty(t, suggestion.Notice)
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
