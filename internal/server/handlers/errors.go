package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/lock"
	"github.com/mamadbah2/greenbook/internal/repository/records"
	"github.com/mamadbah2/greenbook/internal/repository/store"
	"github.com/mamadbah2/greenbook/internal/service/inventory"
	"github.com/mamadbah2/greenbook/internal/service/sales"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
)

const dateLayout = "2006-01-02"

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInvalidPayment),
		errors.Is(err, settlement.ErrNotTick),
		errors.Is(err, sales.ErrInvalidSale),
		errors.Is(err, inventory.ErrInvalidItem),
		errors.Is(err, inventory.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrAlreadySettled),
		errors.Is(err, settlement.ErrInconsistentSettlement),
		errors.Is(err, models.ErrInconsistentRecord):
		return http.StatusConflict
	case errors.Is(err, records.ErrNotFound), errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, records.ErrAmbiguousID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, lock.ErrNotObtained):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	} else {
		logger.Warn(msg, zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// dateRange reads optional from/to query dates. to covers its whole day.
func dateRange(c *gin.Context) (from, to time.Time, err error) {
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return from, to, nil
}
