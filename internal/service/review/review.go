// Package review classifies a parsed sale as ready to save or needing a
// human look. The classification is advisory and never blocks persistence.
package review

import (
	"sort"

	"github.com/mamadbah2/greenbook/internal/domain/models"
)

// DefaultThreshold is the confidence below which a gated field needs review.
const DefaultThreshold = 0.5

// gatedFields are the fields whose confidence decides the review flag.
var gatedFields = []models.Field{
	models.FieldStrain,
	models.FieldCustomer,
	models.FieldQuantity,
	models.FieldSalePrice,
}

// Decision is the outcome of evaluating a confidence map.
type Decision struct {
	NeedsReview bool                `json:"needsReview"`
	Status      models.ReviewStatus `json:"status"`
	LowFields   []models.Field      `json:"lowFields,omitempty"`
}

// Evaluator applies the threshold policy.
type Evaluator struct {
	threshold float64
}

// NewEvaluator returns an evaluator with the given threshold; values outside (0, 1] fall back to DefaultThreshold.
func NewEvaluator(threshold float64) *Evaluator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Evaluator{threshold: threshold}
}

// Evaluate flags the record when any gated field scores strictly below the
// threshold. A field without an entry was set by the user and counts as confirmed.
func (e *Evaluator) Evaluate(confidence map[models.Field]float64) Decision {
	var low []models.Field
	for _, f := range gatedFields {
		conf, ok := confidence[f]
		if ok && conf < e.threshold {
			low = append(low, f)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i] < low[j] })

	if len(low) == 0 {
		return Decision{Status: models.ReviewOK}
	}
	return Decision{NeedsReview: true, Status: models.ReviewNeedsReview, LowFields: low}
}

// Evaluate uses the default threshold.
func Evaluate(confidence map[models.Field]float64) Decision {
	return NewEvaluator(DefaultThreshold).Evaluate(confidence)
}
