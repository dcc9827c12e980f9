package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/store"
)

const keyPrefix = "inventory/"

var (
	// ErrInvalidItem rejects purchases without a strain, a positive weight or a non-negative cost.
	ErrInvalidItem = errors.New("invalid inventory item")
	// ErrNotFound indicates no purchase exists for the id.
	ErrNotFound = errors.New("inventory item not found")
)

// Service keeps purchase records. Items are replaced, never edited in place.
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an inventory service over a store.
func NewService(s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger, now: time.Now}
}

func key(id string) string { return keyPrefix + id }

func validate(item models.InventoryItem) error {
	switch {
	case strings.TrimSpace(item.Strain) == "":
		return fmt.Errorf("%w: strain is required", ErrInvalidItem)
	case !item.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be positive grams, got %s", ErrInvalidItem, item.Quantity)
	case item.TotalCost.IsNegative():
		return fmt.Errorf("%w: total cost must not be negative, got %s", ErrInvalidItem, item.TotalCost)
	}
	return nil
}

// Add stores a new purchase and returns it with derived costs.
func (s *Service) Add(ctx context.Context, item models.InventoryItem) (models.InventoryView, error) {
	item.Strain = strings.TrimSpace(item.Strain)
	if err := validate(item); err != nil {
		return models.InventoryView{}, err
	}

	item.ID = uuid.NewString()
	item.CreatedAt = s.now().UTC()
	if item.PurchaseDate.IsZero() {
		item.PurchaseDate = item.CreatedAt
	}

	if err := s.store.Save(ctx, key(item.ID), item); err != nil {
		s.logger.Error("failed to save inventory item", zap.String("strain", item.Strain), zap.Error(err))
		return models.InventoryView{}, fmt.Errorf("save inventory item: %w", err)
	}
	s.logger.Info("inventory item added", zap.String("id", item.ID), zap.String("strain", item.Strain))
	return Derive(item)
}

// Replace swaps the record for id with a corrected one, keeping id and creation time.
func (s *Service) Replace(ctx context.Context, id string, item models.InventoryItem) (models.InventoryView, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return models.InventoryView{}, err
	}

	item.Strain = strings.TrimSpace(item.Strain)
	if err := validate(item); err != nil {
		return models.InventoryView{}, err
	}
	item.ID = current.ID
	item.CreatedAt = current.CreatedAt
	if item.PurchaseDate.IsZero() {
		item.PurchaseDate = current.PurchaseDate
	}

	if err := s.store.Save(ctx, key(id), item); err != nil {
		return models.InventoryView{}, fmt.Errorf("replace inventory item %s: %w", id, err)
	}
	return Derive(item)
}

// Delete removes a purchase.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key(id)); err != nil {
		return fmt.Errorf("delete inventory item %s: %w", id, err)
	}
	s.logger.Info("inventory item deleted", zap.String("id", id))
	return nil
}

// Get returns one purchase with derived costs.
func (s *Service) Get(ctx context.Context, id string) (models.InventoryView, error) {
	item, err := s.get(ctx, id)
	if err != nil {
		return models.InventoryView{}, err
	}
	return Derive(item)
}

func (s *Service) get(ctx context.Context, id string) (models.InventoryItem, error) {
	var item models.InventoryItem
	found, err := s.store.Load(ctx, key(id), &item)
	if err != nil {
		return models.InventoryItem{}, err
	}
	if !found {
		return models.InventoryItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

// Items returns raw purchases, newest purchase first.
func (s *Service) Items(ctx context.Context) ([]models.InventoryItem, error) {
	keys, err := s.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	items := make([]models.InventoryItem, 0, len(keys))
	for _, k := range keys {
		var item models.InventoryItem
		found, err := s.store.Load(ctx, k, &item)
		if err != nil {
			return nil, err
		}
		if found {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].PurchaseDate.Equal(items[j].PurchaseDate) {
			return items[i].PurchaseDate.After(items[j].PurchaseDate)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// List returns purchases with costs recomputed on every read.
func (s *Service) List(ctx context.Context) ([]models.InventoryView, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]models.InventoryView, 0, len(items))
	for _, item := range items {
		view, err := Derive(item)
		if err != nil {
			s.logger.Warn("skipping inventory item without weight", zap.String("id", item.ID), zap.Error(err))
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// Stats aggregates every stored purchase.
func (s *Service) Stats(ctx context.Context) (models.InventoryStats, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return models.InventoryStats{}, err
	}
	return Stats(items), nil
}

// StrainCosts returns the weighted cost per gram of each stocked strain, keyed by name.
func (s *Service) StrainCosts(ctx context.Context) (map[string]decimal.Decimal, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats.ByStrain, nil
}
