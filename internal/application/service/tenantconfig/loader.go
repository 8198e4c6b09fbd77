// Package tenantconfig loads and validates the per-tenant, versioned
// MatchingConfiguration used to initialize the matching engines: weights
// summing to 1.0, thresholds in descending order, batch size and
// concurrency in range. It reads the newest active version; the
// one-active-version-per-tenant rule is enforced by the schema, not here.
package tenantconfig

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/apperr"
	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/confidence"
	"github.com/invoicereconcile/core/internal/domain/entity"
)

// Loader resolves the active MatchingConfiguration for a tenant, applying
// the hardcoded fallback defaults the original engine uses when a tenant
// has configured none.
type Loader struct {
	repo port.MatchingConfigRepository
}

// NewLoader builds a Loader backed by the given repository.
func NewLoader(repo port.MatchingConfigRepository) *Loader {
	return &Loader{repo: repo}
}

// defaultConfig mirrors MatchingEngine.__init__'s hardcoded fallback
// thresholds and feature flags.
func defaultConfig(tenantID uuid.UUID) *entity.MatchingConfiguration {
	return &entity.MatchingConfiguration{
		TenantID:              tenantID,
		ConfigVersion:         0,
		Active:                true,
		AutoApproveThreshold:  decimal.NewFromFloat(0.85),
		ManualReviewThreshold: decimal.NewFromFloat(0.70),
		RejectionThreshold:    decimal.Zero,
		FuzzyEnabled:          true,
		PhoneticEnabled:       true,
		OCRCorrectionEnabled:  true,
		ParallelEnabled:       true,
		WeightVendorName:      confidence.DefaultWeights.VendorName,
		WeightAmount:          confidence.DefaultWeights.Amount,
		WeightDate:            confidence.DefaultWeights.Date,
		WeightReference:       confidence.DefaultWeights.Reference,
		BatchSize:             10,
		MaxConcurrentJobs:     4,
		DefaultDateRangeDays:  30,
		MaxDateRangeDays:      90,
	}
}

// Load returns the tenant's active configuration, or the hardcoded
// defaults if none is configured. It validates invariants before
// returning: threshold ordering and weight normalization.
func (l *Loader) Load(ctx context.Context, tenantID uuid.UUID) (*entity.MatchingConfiguration, error) {
	var cfg *entity.MatchingConfiguration
	if l.repo != nil {
		loaded, err := l.repo.GetActive(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("tenantconfig: load active config: %w", err)
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = defaultConfig(tenantID)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the MatchingConfiguration invariants: threshold
// ordering and weights summing to 1.0.
func Validate(cfg *entity.MatchingConfiguration) error {
	if cfg.AutoApproveThreshold.LessThan(cfg.ManualReviewThreshold) ||
		cfg.ManualReviewThreshold.LessThan(cfg.RejectionThreshold) {
		return apperr.InvalidConfig("tenantconfig.Validate", fmt.Errorf("thresholds must satisfy auto_approve >= manual_review >= rejection"))
	}

	sum := cfg.WeightVendorName.Add(cfg.WeightAmount).Add(cfg.WeightDate).Add(cfg.WeightReference)
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.NewFromFloat(0.001)) {
		return apperr.InvalidConfig("tenantconfig.Validate", fmt.Errorf("weights sum to %s, expected 1.0", sum))
	}

	if cfg.BatchSize <= 0 || cfg.BatchSize > 1000 {
		return apperr.InvalidConfig("tenantconfig.Validate", fmt.Errorf("batch_size out of range (0,1000]: %d", cfg.BatchSize))
	}
	if cfg.MaxConcurrentJobs <= 0 || cfg.MaxConcurrentJobs > 20 {
		return apperr.InvalidConfig("tenantconfig.Validate", fmt.Errorf("max_concurrent_jobs out of range (0,20]: %d", cfg.MaxConcurrentJobs))
	}

	return nil
}

// Weights extracts a confidence.Weights from a MatchingConfiguration.
func Weights(cfg *entity.MatchingConfiguration) confidence.Weights {
	return confidence.Weights{
		VendorName: cfg.WeightVendorName,
		Amount:     cfg.WeightAmount,
		Date:       cfg.WeightDate,
		Reference:  cfg.WeightReference,
	}
}
