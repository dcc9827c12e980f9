package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInconsistentRecord indicates a stored sale and its tick ledger entry disagree.
var ErrInconsistentRecord = errors.New("inconsistent sale record")

// Field names a ParsedSale attribute that carries an extraction confidence.
type Field string

const (
	FieldCustomer  Field = "customer"
	FieldStrain    Field = "strain"
	FieldDate      Field = "date"
	FieldQuantity  Field = "quantity"
	FieldSalePrice Field = "salePrice"
	FieldProfit    Field = "profit"
	FieldPaidSoFar Field = "paidSoFar"
)

// ParsedSale is the transient result of extracting one free-text sale line.
// Confidence only holds entries for fields populated by extraction; a user
// correction removes the entry for the field it sets.
type ParsedSale struct {
	Customer   string            `json:"customer"`
	Strain     string            `json:"strain"`
	Date       time.Time         `json:"date"`
	Quantity   decimal.Decimal   `json:"quantity"`
	SalePrice  decimal.Decimal   `json:"salePrice"`
	Profit     decimal.Decimal   `json:"profit"`
	IsTick     bool              `json:"isTick"`
	PaidSoFar  decimal.Decimal   `json:"paidSoFar"`
	RawInput   string            `json:"rawInput"`
	Confidence map[Field]float64 `json:"confidence,omitempty"`
	// Owed is the balance stated as "owes X". When set, PaidSoFar was derived as SalePrice - Owed.
	Owed *decimal.Decimal `json:"owed,omitempty"`
}

// ClampedConfidence marks a value forced into range rather than read from the text.
const ClampedConfidence = 0.3

// Correction carries user-confirmed field edits. Nil pointers leave the field untouched.
type Correction struct {
	Customer  *string          `json:"customer,omitempty"`
	Strain    *string          `json:"strain,omitempty"`
	Date      *time.Time       `json:"date,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
	Profit    *decimal.Decimal `json:"profit,omitempty"`
	IsTick    *bool            `json:"isTick,omitempty"`
	PaidSoFar *decimal.Decimal `json:"paidSoFar,omitempty"`
}

// Empty reports whether the correction changes nothing.
func (c Correction) Empty() bool {
	return c.Customer == nil && c.Strain == nil && c.Date == nil && c.Quantity == nil &&
		c.SalePrice == nil && c.Profit == nil && c.IsTick == nil && c.PaidSoFar == nil
}

// Apply returns a copy of p with the correction applied. The receiver is not modified.
// Values derived from corrected fields follow them: a derived profit moves by the
// price delta and becomes unknown when quantity or strain change, and a paid
// balance derived from "owes X" is recomputed against the new price.
func (p ParsedSale) Apply(c Correction) ParsedSale {
	out := p
	out.Confidence = make(map[Field]float64, len(p.Confidence))
	for k, v := range p.Confidence {
		out.Confidence[k] = v
	}

	if c.Customer != nil {
		out.Customer = *c.Customer
		delete(out.Confidence, FieldCustomer)
	}
	if c.Strain != nil {
		out.Strain = *c.Strain
		delete(out.Confidence, FieldStrain)
	}
	if c.Date != nil {
		out.Date = *c.Date
		delete(out.Confidence, FieldDate)
	}
	if c.Quantity != nil {
		out.Quantity = *c.Quantity
		delete(out.Confidence, FieldQuantity)
	}
	if c.SalePrice != nil {
		out.SalePrice = *c.SalePrice
		delete(out.Confidence, FieldSalePrice)
	}
	if c.IsTick != nil {
		out.IsTick = *c.IsTick
	}

	if c.Profit != nil {
		out.Profit = *c.Profit
		delete(out.Confidence, FieldProfit)
	} else if p.derivedProfit() {
		switch {
		case c.Quantity != nil && !c.Quantity.Equal(p.Quantity), c.Strain != nil && *c.Strain != p.Strain:
			out.Profit = decimal.Zero
			out.Confidence[FieldProfit] = 0
		case c.SalePrice != nil:
			out.Profit = out.Profit.Add(out.SalePrice.Sub(p.SalePrice))
		}
	}

	if c.PaidSoFar != nil {
		out.PaidSoFar = *c.PaidSoFar
		out.Owed = nil
		delete(out.Confidence, FieldPaidSoFar)
	} else if c.SalePrice != nil && out.IsTick {
		out.rebalance()
	}
	return out
}

// derivedProfit reports whether profit was computed from price, quantity and
// cost rather than stated in the text or by the user.
func (p ParsedSale) derivedProfit() bool {
	conf, ok := p.Confidence[FieldProfit]
	return ok && conf > 0 && conf < 1
}

// rebalance keeps PaidSoFar within [0, SalePrice] after a price change.
func (p *ParsedSale) rebalance() {
	if p.Owed != nil {
		if p.Owed.GreaterThan(p.SalePrice) {
			p.PaidSoFar = decimal.Zero
			p.Confidence[FieldPaidSoFar] = ClampedConfidence
			return
		}
		p.PaidSoFar = p.SalePrice.Sub(*p.Owed)
		return
	}
	if p.PaidSoFar.GreaterThan(p.SalePrice) {
		p.PaidSoFar = p.SalePrice
		p.Confidence[FieldPaidSoFar] = ClampedConfidence
	}
}

// Sale is the immutable persisted form of a confirmed ParsedSale.
type Sale struct {
	ID        string          `json:"id"`
	Customer  string          `json:"customer"`
	Strain    string          `json:"strain"`
	Date      time.Time       `json:"date"`
	Quantity  decimal.Decimal `json:"quantity"`
	SalePrice decimal.Decimal `json:"salePrice"`
	Profit    decimal.Decimal `json:"profit"`
	IsTick    bool            `json:"isTick"`
	PaidSoFar decimal.Decimal `json:"paidSoFar"`
	RawInput  string          `json:"rawInput"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TickState is the settlement state of a credit sale.
type TickState string

const (
	TickUnpaid        TickState = "unpaid"
	TickPartiallyPaid TickState = "partially_paid"
	TickPaid          TickState = "paid"
)

// TickLedgerEntry tracks the running balance of a credit sale, keyed by sale id.
type TickLedgerEntry struct {
	SaleID    string          `json:"saleId"`
	Customer  string          `json:"customer"`
	SalePrice decimal.Decimal `json:"salePrice"`
	PaidSoFar decimal.Decimal `json:"paidSoFar"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Remaining is the amount still owed.
func (e TickLedgerEntry) Remaining() decimal.Decimal {
	return e.SalePrice.Sub(e.PaidSoFar)
}

// State derives the settlement state from the balance.
func (e TickLedgerEntry) State() TickState {
	switch {
	case e.PaidSoFar.IsZero() && e.SalePrice.IsPositive():
		return TickUnpaid
	case e.PaidSoFar.LessThan(e.SalePrice):
		return TickPartiallyPaid
	default:
		return TickPaid
	}
}

// SaleRecord is the single persisted unit holding a sale and, for credit
// sales, its ledger entry. Both halves are always written together.
type SaleRecord struct {
	Sale Sale             `json:"sale"`
	Tick *TickLedgerEntry `json:"tick,omitempty"`
}

// Validate checks that the sale and its ledger entry agree.
func (r SaleRecord) Validate() error {
	if !r.Sale.IsTick {
		if r.Tick != nil {
			return fmt.Errorf("%w: sale %s is not a tick but has a ledger entry", ErrInconsistentRecord, r.Sale.ID)
		}
		return nil
	}

	switch {
	case r.Tick == nil:
		return fmt.Errorf("%w: tick sale %s has no ledger entry", ErrInconsistentRecord, r.Sale.ID)
	case r.Tick.SaleID != r.Sale.ID:
		return fmt.Errorf("%w: ledger entry %s attached to sale %s", ErrInconsistentRecord, r.Tick.SaleID, r.Sale.ID)
	case !r.Tick.SalePrice.Equal(r.Sale.SalePrice), !r.Tick.PaidSoFar.Equal(r.Sale.PaidSoFar):
		return fmt.Errorf("%w: ledger balance differs from sale %s", ErrInconsistentRecord, r.Sale.ID)
	case r.Tick.PaidSoFar.IsNegative(), r.Tick.PaidSoFar.GreaterThan(r.Tick.SalePrice):
		return fmt.Errorf("%w: paid %s outside [0, %s] for sale %s", ErrInconsistentRecord, r.Tick.PaidSoFar, r.Tick.SalePrice, r.Sale.ID)
	}
	return nil
}
