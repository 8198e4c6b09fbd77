// Package confidence implements the weighted factor aggregation described
// for the two-way matching engine's confidence score.
package confidence

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/apperr"
)

// Weights are the per-factor weights; they must sum to 1.0.
type Weights struct {
	VendorName decimal.Decimal
	Amount     decimal.Decimal
	Date       decimal.Decimal
	Reference  decimal.Decimal
}

// weightTolerance is the allowed deviation from 1.0 when validating
// weights, matching the original engine's 0.001 tolerance.
var weightTolerance = decimal.NewFromFloat(0.001)

// DefaultWeights mirror the original engine's defaults.
var DefaultWeights = Weights{
	VendorName: decimal.NewFromFloat(0.30),
	Amount:     decimal.NewFromFloat(0.40),
	Date:       decimal.NewFromFloat(0.20),
	Reference:  decimal.NewFromFloat(0.10),
}

// Factors is the raw per-factor input to the scorer.
type Factors struct {
	VendorSimilarity float64

	AmountWithinTolerance bool
	AmountVariance        float64

	DateWithinTolerance bool
	DateVarianceDays    int

	ReferenceExact      bool
	ReferenceSimilarity float64
}

// Breakdown is the per-factor score output. The two-way engine copies the
// four factor scores into MatchResult.CriteriaMet and
// AuditEvent.DecisionFactors; AuditEvent.ConfidenceBreakdown receives only
// the final confidence.
type Breakdown struct {
	VendorScore    float64
	AmountScore    float64
	DateScore      float64
	ReferenceScore float64
	Confidence     float64
}

// Scorer computes weighted confidence scores for a fixed set of weights.
type Scorer struct {
	weights Weights
}

// NewScorer validates that the weights sum to 1.0 (within tolerance) and
// returns a Scorer, or an apperr.KindInvalidConfig error.
func NewScorer(w Weights) (*Scorer, error) {
	sum := w.VendorName.Add(w.Amount).Add(w.Date).Add(w.Reference)
	diff := sum.Sub(decimal.NewFromInt(1)).Abs()
	if diff.GreaterThan(weightTolerance) {
		return nil, apperr.InvalidConfig("confidence.NewScorer", fmt.Errorf("weights sum to %s, expected 1.0", sum))
	}
	return &Scorer{weights: w}, nil
}

// Score computes the weighted confidence and its breakdown, rounding the
// final confidence to four decimal places half-up.
func (s *Scorer) Score(f Factors) Breakdown {
	vendorScore := f.VendorSimilarity

	var amountScore float64
	if f.AmountWithinTolerance {
		amountScore = math.Max(0, 1-f.AmountVariance)
	} else {
		amountScore = math.Max(0, 0.5-f.AmountVariance)
	}

	var dateScore float64
	days := float64(f.DateVarianceDays)
	if f.DateWithinTolerance {
		dateScore = math.Max(0.7, 1-days/30)
	} else {
		dateScore = math.Max(0, 0.5-days/60)
	}

	var referenceScore float64
	if f.ReferenceExact {
		referenceScore = 1.0
	} else {
		referenceScore = f.ReferenceSimilarity
	}

	vw, _ := s.weights.VendorName.Float64()
	aw, _ := s.weights.Amount.Float64()
	dw, _ := s.weights.Date.Float64()
	rw, _ := s.weights.Reference.Float64()

	confidence := vendorScore*vw + amountScore*aw + dateScore*dw + referenceScore*rw
	confidence = roundHalfUp4(confidence)

	return Breakdown{
		VendorScore:    vendorScore,
		AmountScore:    amountScore,
		DateScore:      dateScore,
		ReferenceScore: referenceScore,
		Confidence:     confidence,
	}
}

func roundHalfUp4(v float64) float64 {
	d := decimal.NewFromFloat(v)
	return roundedFloat(d)
}

func roundedFloat(d decimal.Decimal) float64 {
	r := d.Round(4)
	f, _ := r.Float64()
	return f
}
