package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// MatchingConfigRepository implements port.MatchingConfigRepository.
type MatchingConfigRepository struct {
	db *postgres.DB
}

// NewMatchingConfigRepository builds a MatchingConfigRepository.
func NewMatchingConfigRepository(db *postgres.DB) *MatchingConfigRepository {
	return &MatchingConfigRepository{db: db}
}

func (r *MatchingConfigRepository) GetActive(ctx context.Context, tenantID uuid.UUID) (*entity.MatchingConfiguration, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, config_version, active, auto_approve_threshold, manual_review_threshold,
			rejection_threshold, fuzzy_enabled, phonetic_enabled, ocr_correction_enabled, ml_enabled,
			feedback_learning_enabled, parallel_enabled,
			weight_vendor_name, weight_amount, weight_date, weight_reference,
			batch_size, max_concurrent_jobs, default_date_range_days, max_date_range_days
		FROM matching_configurations WHERE tenant_id = $1 AND active = true
		ORDER BY config_version DESC LIMIT 1`, tenantID)

	var c entity.MatchingConfiguration
	err := row.Scan(&c.ID, &c.TenantID, &c.ConfigVersion, &c.Active, &c.AutoApproveThreshold, &c.ManualReviewThreshold,
		&c.RejectionThreshold, &c.FuzzyEnabled, &c.PhoneticEnabled, &c.OCRCorrectionEnabled, &c.MLEnabled,
		&c.FeedbackLearningEnabled, &c.ParallelEnabled,
		&c.WeightVendorName, &c.WeightAmount, &c.WeightDate, &c.WeightReference,
		&c.BatchSize, &c.MaxConcurrentJobs, &c.DefaultDateRangeDays, &c.MaxDateRangeDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get active matching configuration: %w", err)
	}
	return &c, nil
}

var _ port.MatchingConfigRepository = (*MatchingConfigRepository)(nil)
