package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/server/handlers"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Webhook   *handlers.WebhookHandler
	Sales     *handlers.SalesHandler
	Inventory *handlers.InventoryHandler
	Catalog   *handlers.CatalogHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/webhook", h.Webhook.Verify)
	r.POST("/webhook", h.Webhook.Receive)
	r.POST("/send-message", h.Webhook.SendMessage)

	api := r.Group("/api")
	{
		api.POST("/sales/parse", h.Sales.Parse)
		api.POST("/sales", h.Sales.Create)
		api.GET("/sales", h.Sales.List)
		api.GET("/sales/:id", h.Sales.Get)
		api.PATCH("/sales/:id/price", h.Sales.UpdatePrice)

		api.GET("/ticks", h.Sales.Ticks)
		api.POST("/ticks/:id/payments", h.Sales.RecordPayment)

		api.GET("/inventory", h.Inventory.List)
		api.POST("/inventory", h.Inventory.Add)
		api.GET("/inventory/stats", h.Inventory.Stats)
		api.PUT("/inventory/:id", h.Inventory.Replace)
		api.DELETE("/inventory/:id", h.Inventory.Delete)

		api.GET("/catalog/customers", h.Catalog.GetCustomers)
		api.PUT("/catalog/customers", h.Catalog.PutCustomers)
		api.POST("/assist/rewrite", h.Catalog.Rewrite)
		api.GET("/reports/summary", h.Catalog.Summary)
	}

	logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
