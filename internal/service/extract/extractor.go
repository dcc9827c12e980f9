// Package extract turns one free-text sale line into a ParsedSale with a
// confidence per field. It never fails: ambiguity lowers confidence instead.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/greenbook/internal/domain/models"
)

const (
	explicitUnitConfidence = 1.0
	slangUnitConfidence    = 0.9
	bareQuantityConfidence = 0.5
	implausibleQtyConf     = 0.2

	currencyPriceConfidence = 1.0
	forPriceConfidence      = 0.8
	keywordPriceConfidence  = 0.7
	barePriceConfidence     = 0.3

	explicitProfitConfidence = 1.0
	derivedProfitConfidence  = 0.6

	statedPaymentConfidence  = 1.0
	assumedPaymentConfidence = 0.5
	clampedPaymentConfidence = models.ClampedConfidence
)

const (
	unitPattern = `(grams?|gs?|ounces?|oz|zips?|lbs?|pounds?)`
	// amountPattern accepts thousands separators: "1,200.50" as well as "1200.50".
	amountPattern = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`
)

var (
	fractionQtyRe = regexp.MustCompile(`\b(\d+)\s*/\s*(\d+)\s*` + unitPattern + `\b`)
	quantityRe    = regexp.MustCompile(`\b` + amountPattern + `\s*` + unitPattern + `\b`)
	slangQtyRe    = regexp.MustCompile(`\b(eighth|quarter|half|zip|ounce|oz)\b(?:\s+(?:of\s+)?(?:an?\s+)?(?:oz|ounce|zip)\b)?`)

	currencyBeforeRe = regexp.MustCompile(`\$\s*` + amountPattern + `\b`)
	currencyAfterRe  = regexp.MustCompile(`\b` + amountPattern + `\s*(?:dollars?\b|bucks\b|usd\b|\$)`)
	priceForRe       = regexp.MustCompile(`\bfor\s*:?\s*` + amountPattern + `\b`)
	priceKeywordRe   = regexp.MustCompile(`(?:\bat|@|\bpriced?|\btotal)\s*:?\s*` + amountPattern + `\b`)

	profitBeforeRe = regexp.MustCompile(`\b(?:profit|made|margin)\s*(?:of|was|is|:|=)?\s*(-)?\s*\$?\s*` + amountPattern + `\b`)
	profitAfterRe  = regexp.MustCompile(`(-)?\$?\b` + amountPattern + `\s*profit\b`)

	paidRe = regexp.MustCompile(`\b(?:paid(?:\s+me)?|gave(?:\s+me)?|put\s+down|deposit(?:ed)?|down\s+payment(?:\s+of)?)\s*\$?\s*` + amountPattern + `\b`)
	owesRe = regexp.MustCompile(`\b(?:still\s+)?(?:owes?|owing|iou)\s*(?:me\s+)?\$?\s*` + amountPattern + `\b`)
	tickRe = regexp.MustCompile(`\b(?:tick|ticked|owes?|owing|iou|credit|fronted|front)\b`)
	// cardRe names card payments, which are settled sales rather than credit.
	cardRe = regexp.MustCompile(`\b(?:credit|debit)\s+cards?\b`)

	bareNumberRe = regexp.MustCompile(`\b` + amountPattern + `\b`)
	toNameRe     = regexp.MustCompile(`\bto\s+([a-z][a-z'\-]*)`)
)

var unitGrams = map[string]decimal.Decimal{
	"g": decimal.NewFromInt(1), "gs": decimal.NewFromInt(1), "gram": decimal.NewFromInt(1), "grams": decimal.NewFromInt(1),
	"oz": decimal.NewFromInt(28), "ounce": decimal.NewFromInt(28), "ounces": decimal.NewFromInt(28),
	"zip": decimal.NewFromInt(28), "zips": decimal.NewFromInt(28),
	"lb": decimal.NewFromInt(448), "lbs": decimal.NewFromInt(448), "pound": decimal.NewFromInt(448), "pounds": decimal.NewFromInt(448),
}

var slangGrams = map[string]decimal.Decimal{
	"eighth":  decimal.RequireFromString("3.5"),
	"quarter": decimal.NewFromInt(7),
	"half":    decimal.NewFromInt(14),
	"zip":     decimal.NewFromInt(28),
	"ounce":   decimal.NewFromInt(28),
	"oz":      decimal.NewFromInt(28),
}

// Extractor holds an immutable catalog snapshot. Safe for concurrent use.
type Extractor struct {
	catalog   models.Catalog
	customers []candidate
	strains   []candidate
}

// New compiles a catalog for extraction. An empty catalog is valid and
// degrades matching to the contextual and capitalised-word fallbacks.
func New(catalog models.Catalog) *Extractor {
	strainNames := make([]string, 0, len(catalog.Strains))
	for _, s := range catalog.Strains {
		strainNames = append(strainNames, s.Name)
	}
	return &Extractor{
		catalog:   catalog,
		customers: compileCandidates(catalog.Customers),
		strains:   compileCandidates(strainNames),
	}
}

// Extract parses one sale line. now anchors relative dates and the default date.
func (e *Extractor) Extract(text string, now time.Time) models.ParsedSale {
	w := newWorkspace(text)
	isTick := tickRe.MatchString(cardRe.ReplaceAllString(w.String(), " "))

	out := models.ParsedSale{
		RawInput:   text,
		IsTick:     isTick,
		Quantity:   decimal.Zero,
		SalePrice:  decimal.Zero,
		Profit:     decimal.Zero,
		PaidSoFar:  decimal.Zero,
		Confidence: make(map[models.Field]float64),
	}

	qty, qtyConf := extractQuantity(w)
	date, dateConf := extractDate(w, now)
	profit, profitConf := extractProfit(w)
	paid, paidFound, owed, owedFound := extractSettlement(w)
	price, priceConf := extractPrice(w)
	if !isTick && paidFound && priceConf == 0 {
		// On a cash sale "paid 60" states the price.
		price, priceConf = paid, keywordPriceConfidence
	}

	bare := w.findAll(bareNumberRe)
	if qtyConf == 0 && len(bare) > 0 {
		qty, qtyConf = amount(bare[0].group(1)), bareQuantityConfidence
		bare[0].consume()
		bare = bare[1:]
	}
	if priceConf == 0 && len(bare) > 0 {
		price, priceConf = amount(bare[0].group(1)), barePriceConfidence
		bare[0].consume()
	}

	out.Date = date
	out.Quantity = qty
	out.SalePrice = price
	out.Confidence[models.FieldDate] = dateConf
	out.Confidence[models.FieldQuantity] = qtyConf
	out.Confidence[models.FieldSalePrice] = priceConf

	e.extractNames(w, &out)

	if profitConf == 0 && priceConf > 0 && qty.IsPositive() {
		if cost, ok := e.catalog.StrainCost(out.Strain); ok {
			profit = price.Sub(qty.Mul(cost)).Round(2)
			profitConf = derivedProfitConfidence
		}
	}
	out.Profit = profit
	out.Confidence[models.FieldProfit] = profitConf

	if isTick {
		out.PaidSoFar, out.Confidence[models.FieldPaidSoFar] = settle(price, priceConf, paid, paidFound, owed, owedFound)
		if owedFound && !paidFound && out.Confidence[models.FieldPaidSoFar] == statedPaymentConfidence {
			out.Owed = &owed
		}
	}

	return out
}

func extractQuantity(w *workspace) (decimal.Decimal, float64) {
	if m := w.find(fractionQtyRe); m != nil {
		num := decimal.RequireFromString(m.group(1))
		den := decimal.RequireFromString(m.group(2))
		if !den.IsZero() {
			m.consume()
			value := num.Div(den).Mul(unitGrams[m.group(3)])
			return value, quantityConfidence(value)
		}
	}

	if m := w.find(quantityRe); m != nil {
		m.consume()
		value := amount(m.group(1)).Mul(unitGrams[m.group(2)])
		return value, quantityConfidence(value)
	}

	if m := w.find(slangQtyRe); m != nil {
		m.consume()
		return slangGrams[m.group(1)], slangUnitConfidence
	}

	return decimal.Zero, 0
}

// quantityConfidence keeps explicit-unit confidence unless the amount is not a positive weight.
func quantityConfidence(v decimal.Decimal) float64 {
	if !v.IsPositive() {
		return implausibleQtyConf
	}
	return explicitUnitConfidence
}

func extractProfit(w *workspace) (decimal.Decimal, float64) {
	for _, re := range []*regexp.Regexp{profitBeforeRe, profitAfterRe} {
		if m := w.find(re); m != nil {
			m.consume()
			v := amount(m.group(2))
			if m.group(1) == "-" {
				v = v.Neg()
			}
			return v, explicitProfitConfidence
		}
	}
	return decimal.Zero, 0
}

// extractSettlement consumes payment phrases even on non-credit lines so
// their amounts are never mistaken for a price.
func extractSettlement(w *workspace) (paid decimal.Decimal, paidFound bool, owed decimal.Decimal, owedFound bool) {
	if m := w.find(paidRe); m != nil {
		m.consume()
		paid, paidFound = amount(m.group(1)), true
	}
	if m := w.find(owesRe); m != nil {
		m.consume()
		owed, owedFound = amount(m.group(1)), true
	}
	return paid, paidFound, owed, owedFound
}

// extractPrice prefers an explicit currency, then "for", then the weaker
// "at", "@", "price" and "total" keywords.
func extractPrice(w *workspace) (decimal.Decimal, float64) {
	for _, re := range []*regexp.Regexp{currencyBeforeRe, currencyAfterRe} {
		if m := w.find(re); m != nil {
			m.consume()
			return amount(m.group(1)), currencyPriceConfidence
		}
	}
	if m := w.find(priceForRe); m != nil {
		m.consume()
		return amount(m.group(1)), forPriceConfidence
	}
	if m := w.find(priceKeywordRe); m != nil {
		m.consume()
		return amount(m.group(1)), keywordPriceConfidence
	}
	return decimal.Zero, 0
}

// amount parses a matched amount, dropping thousands separators.
func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(strings.ReplaceAll(s, ",", ""))
}

// settle maps payment phrases to paidSoFar: "paid X" means X was paid, "owes X"
// means X remains. The result always lies in [0, price].
func settle(price decimal.Decimal, priceConf float64, paid decimal.Decimal, paidFound bool, owed decimal.Decimal, owedFound bool) (decimal.Decimal, float64) {
	switch {
	case paidFound:
		if priceConf == 0 || paid.GreaterThan(price) {
			return decimal.Min(paid, price), clampedPaymentConfidence
		}
		return paid, statedPaymentConfidence
	case owedFound:
		if priceConf == 0 || owed.GreaterThan(price) {
			return decimal.Zero, clampedPaymentConfidence
		}
		return price.Sub(owed), statedPaymentConfidence
	default:
		return decimal.Zero, assumedPaymentConfidence
	}
}

// extractNames resolves strain first, then customer, so one word never fills both.
func (e *Extractor) extractNames(w *workspace, out *models.ParsedSale) {
	work := w.String()
	tokens := tokenize(work)
	var used []span

	out.Confidence[models.FieldStrain] = 0
	if m, ok := matchCatalog(work, tokens, e.strains, nil); ok {
		out.Strain = m.name
		out.Confidence[models.FieldStrain] = m.confidence
		used = append(used, m.at)
	}

	out.Confidence[models.FieldCustomer] = 0
	if m, ok := matchCatalog(work, tokens, e.customers, used); ok {
		out.Customer = m.name
		out.Confidence[models.FieldCustomer] = m.confidence
		used = append(used, m.at)
	} else if name, at, ok := contextualName(w, used); ok {
		out.Customer = name
		out.Confidence[models.FieldCustomer] = contextConfidence
		used = append(used, at)
	} else if name, at, ok := capitalised(w, tokens, used); ok {
		out.Customer = name
		out.Confidence[models.FieldCustomer] = fallbackConfidence
		used = append(used, at)
	}

	if out.Strain == "" {
		if name, _, ok := capitalised(w, tokens, used); ok {
			out.Strain = name
			out.Confidence[models.FieldStrain] = fallbackConfidence
		}
	}
}

// contextualName picks the word after "to", as in "sold an eighth to jake".
func contextualName(w *workspace, used []span) (string, span, bool) {
	for _, m := range w.findAll(toNameRe) {
		at := span{m.loc[2], m.loc[3]}
		if stopwords[m.group(1)] || overlapsAny(at, used) {
			continue
		}
		return w.raw[at.start:at.end], at, true
	}
	return "", span{}, false
}

// capitalised returns the first capitalised, non-keyword word of the raw text.
func capitalised(w *workspace, tokens []token, used []span) (string, span, bool) {
	for _, tk := range tokens {
		at := span{tk.start, tk.end}
		c := w.raw[tk.start]
		if c < 'A' || c > 'Z' || stopwords[tk.lower] || overlapsAny(at, used) {
			continue
		}
		return w.raw[tk.start:tk.end], at, true
	}
	return "", span{}, false
}
