package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
)

// InventoryService manages stock purchases.
type InventoryService interface {
	Add(ctx context.Context, item models.InventoryItem) (models.InventoryView, error)
	Replace(ctx context.Context, id string, item models.InventoryItem) (models.InventoryView, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.InventoryView, error)
	Stats(ctx context.Context) (models.InventoryStats, error)
}

// InventoryHandler exposes inventory CRUD.
type InventoryHandler struct {
	svc    InventoryService
	logger *zap.Logger
}

func NewInventoryHandler(svc InventoryService, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{svc: svc, logger: logger}
}

func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list inventory failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *InventoryHandler) Add(c *gin.Context) {
	var item models.InventoryItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, h.logger, "invalid inventory item", err)
		return
	}

	view, err := h.svc.Add(c.Request.Context(), item)
	if err != nil {
		respondError(c, h.logger, "inventory item rejected", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *InventoryHandler) Replace(c *gin.Context) {
	var item models.InventoryItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, h.logger, "invalid inventory item", err)
		return
	}

	view, err := h.svc.Replace(c.Request.Context(), c.Param("id"), item)
	if err != nil {
		respondError(c, h.logger, "inventory replace rejected", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *InventoryHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, "inventory delete failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats returns totals and weighted average costs.
func (h *InventoryHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "inventory stats failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
