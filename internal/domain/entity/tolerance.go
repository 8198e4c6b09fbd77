package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchingTolerance is a scoped tolerance resolution rule. Lookup selects,
// for a given (tenant, vendor, amount, type), the active rule with the
// highest priority whose VendorID matches or is nil and whose
// AmountThreshold is <= amount or nil.
type MatchingTolerance struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	VendorID           *uuid.UUID
	AmountThreshold    *decimal.Decimal
	ToleranceType      ToleranceType
	PercentageTolerance *decimal.Decimal
	AbsoluteTolerance  *decimal.Decimal
	Priority           int
	Active             bool
}

// MatchingConfiguration is a per-tenant versioned set of matching
// thresholds, weights and feature flags.
type MatchingConfiguration struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	ConfigVersion          int
	Active                 bool
	AutoApproveThreshold   decimal.Decimal
	ManualReviewThreshold  decimal.Decimal
	RejectionThreshold     decimal.Decimal
	FuzzyEnabled           bool
	PhoneticEnabled        bool
	OCRCorrectionEnabled   bool
	MLEnabled              bool
	FeedbackLearningEnabled bool
	ParallelEnabled        bool
	WeightVendorName       decimal.Decimal
	WeightAmount           decimal.Decimal
	WeightDate             decimal.Decimal
	WeightReference        decimal.Decimal
	BatchSize              int
	MaxConcurrentJobs      int
	DefaultDateRangeDays   int
	MaxDateRangeDays       int
}
