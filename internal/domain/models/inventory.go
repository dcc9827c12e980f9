package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem captures one stock purchase. Derived costs are never stored.
type InventoryItem struct {
	ID           string          `json:"id"`
	Strain       string          `json:"strain"`
	PurchaseDate time.Time       `json:"purchaseDate"`
	Quantity     decimal.Decimal `json:"quantity"`
	QuantityUnit string          `json:"quantityUnit"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// InventoryView is an InventoryItem with its costs recomputed for display.
type InventoryView struct {
	InventoryItem
	PricePerGram decimal.Decimal `json:"pricePerGram"`
	CostPerOunce decimal.Decimal `json:"costPerOunce"`
}

// InventoryStats aggregates inventory costs.
type InventoryStats struct {
	Items              int                        `json:"items"`
	TotalGrams         decimal.Decimal            `json:"totalGrams"`
	TotalCost          decimal.Decimal            `json:"totalCost"`
	AverageCostPerGram decimal.Decimal            `json:"averageCostPerGram"`
	AverageCostPerOz   decimal.Decimal            `json:"averageCostPerOunce"`
	ByStrain           map[string]decimal.Decimal `json:"costPerGramByStrain"`
}

// Strain is a catalog entry; CostPerGram is only valid when inventory for it exists.
type Strain struct {
	Name        string              `json:"name"`
	CostPerGram decimal.NullDecimal `json:"costPerGram"`
}

// Catalog lists known customers and strains for extraction.
type Catalog struct {
	Customers []string `json:"customers"`
	Strains   []Strain `json:"strains"`
}

// StrainCost looks up the known cost per gram for a strain name (case-sensitive on canonical names).
func (c Catalog) StrainCost(name string) (decimal.Decimal, bool) {
	for _, s := range c.Strains {
		if s.Name == name && s.CostPerGram.Valid {
			return s.CostPerGram.Decimal, true
		}
	}
	return decimal.Zero, false
}
