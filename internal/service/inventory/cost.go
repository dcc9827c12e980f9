package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/greenbook/internal/domain/models"
)

// ErrDivisionByZero is returned when a per-gram cost is requested for zero grams.
var ErrDivisionByZero = errors.New("division by zero")

// GramsPerOunce is the fixed conversion used across the system.
var GramsPerOunce = decimal.NewFromInt(28)

// PricePerGram derives totalCost / quantityGrams.
func PricePerGram(totalCost, quantityGrams decimal.Decimal) (decimal.Decimal, error) {
	if quantityGrams.IsZero() {
		return decimal.Zero, fmt.Errorf("price per gram of %s over 0 g: %w", totalCost, ErrDivisionByZero)
	}
	return totalCost.Div(quantityGrams), nil
}

// CostPerOunce converts a per-gram price to a per-ounce one.
func CostPerOunce(pricePerGram decimal.Decimal) decimal.Decimal {
	return pricePerGram.Mul(GramsPerOunce)
}

// AverageCostPerGram is the quantity-weighted average Σ totalCost / Σ quantity.
func AverageCostPerGram(items []models.InventoryItem) (decimal.Decimal, error) {
	totalCost := decimal.Zero
	totalGrams := decimal.Zero
	for _, item := range items {
		totalCost = totalCost.Add(item.TotalCost)
		totalGrams = totalGrams.Add(item.Quantity)
	}
	return PricePerGram(totalCost, totalGrams)
}

// Derive recomputes the display costs of an item.
func Derive(item models.InventoryItem) (models.InventoryView, error) {
	ppg, err := PricePerGram(item.TotalCost, item.Quantity)
	if err != nil {
		return models.InventoryView{}, err
	}
	return models.InventoryView{
		InventoryItem: item,
		PricePerGram:  ppg,
		CostPerOunce:  CostPerOunce(ppg),
	}, nil
}

// Stats aggregates totals and weighted averages, overall and per strain.
func Stats(items []models.InventoryItem) models.InventoryStats {
	stats := models.InventoryStats{
		Items:      len(items),
		TotalGrams: decimal.Zero,
		TotalCost:  decimal.Zero,
		ByStrain:   make(map[string]decimal.Decimal),
	}

	byStrain := make(map[string][]models.InventoryItem)
	for _, item := range items {
		stats.TotalGrams = stats.TotalGrams.Add(item.Quantity)
		stats.TotalCost = stats.TotalCost.Add(item.TotalCost)
		byStrain[item.Strain] = append(byStrain[item.Strain], item)
	}

	if avg, err := AverageCostPerGram(items); err == nil {
		stats.AverageCostPerGram = avg
		stats.AverageCostPerOz = CostPerOunce(avg)
	}

	for strain, group := range byStrain {
		if avg, err := AverageCostPerGram(group); err == nil {
			stats.ByStrain[strain] = avg
		}
	}

	return stats
}
