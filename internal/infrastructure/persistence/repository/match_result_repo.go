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

// MatchResultRepository implements port.MatchResultRepository.
type MatchResultRepository struct {
	db *postgres.DB
}

// NewMatchResultRepository builds a MatchResultRepository.
func NewMatchResultRepository(db *postgres.DB) *MatchResultRepository {
	return &MatchResultRepository{db: db}
}

func (r *MatchResultRepository) Create(ctx context.Context, result *entity.MatchResult) error {
	criteriaMet, err := encodeJSONB(result.CriteriaMet)
	if err != nil {
		return fmt.Errorf("repository: encode criteria_met: %w", err)
	}
	toleranceApplied, err := encodeJSONB(result.ToleranceApplied)
	if err != nil {
		return fmt.Errorf("repository: encode tolerance_applied: %w", err)
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO match_results (
			id, tenant_id, invoice_id, purchase_order_id, receipt_id, match_type, confidence_score,
			match_status, criteria_met, tolerance_applied, auto_approved, requires_review,
			amount_variance, quantity_variance, matched_at, reviewed_at, approved_at,
			matched_by, review_notes, approved_by, matching_algorithm_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		result.ID, result.TenantID, result.InvoiceID, result.PurchaseOrderID, result.ReceiptID,
		result.MatchType, result.ConfidenceScore, result.MatchStatus, criteriaMet, toleranceApplied,
		result.AutoApproved, result.RequiresReview, result.AmountVariance, result.QuantityVariance,
		result.MatchedAt, result.ReviewedAt, result.ApprovedAt, result.MatchedBy, result.ReviewNotes,
		result.ApprovedBy, result.MatchingAlgorithmVersion)
	if err != nil {
		return fmt.Errorf("repository: create match result: %w", err)
	}
	return nil
}

func (r *MatchResultRepository) Update(ctx context.Context, result *entity.MatchResult) error {
	criteriaMet, err := encodeJSONB(result.CriteriaMet)
	if err != nil {
		return fmt.Errorf("repository: encode criteria_met: %w", err)
	}
	toleranceApplied, err := encodeJSONB(result.ToleranceApplied)
	if err != nil {
		return fmt.Errorf("repository: encode tolerance_applied: %w", err)
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		UPDATE match_results SET
			match_status = $3, criteria_met = $4, tolerance_applied = $5,
			auto_approved = $6, requires_review = $7, amount_variance = $8, quantity_variance = $9,
			reviewed_at = $10, approved_at = $11, matched_by = $12, review_notes = $13, approved_by = $14
		WHERE tenant_id = $1 AND id = $2`,
		result.TenantID, result.ID, result.MatchStatus, criteriaMet, toleranceApplied,
		result.AutoApproved, result.RequiresReview, result.AmountVariance, result.QuantityVariance,
		result.ReviewedAt, result.ApprovedAt, result.MatchedBy, result.ReviewNotes, result.ApprovedBy)
	if err != nil {
		return fmt.Errorf("repository: update match result: %w", err)
	}
	return nil
}

func scanMatchResult(row pgx.Row) (*entity.MatchResult, error) {
	var m entity.MatchResult
	var criteriaMet, toleranceApplied []byte
	err := row.Scan(&m.ID, &m.TenantID, &m.InvoiceID, &m.PurchaseOrderID, &m.ReceiptID, &m.MatchType, &m.ConfidenceScore,
		&m.MatchStatus, &criteriaMet, &toleranceApplied, &m.AutoApproved, &m.RequiresReview,
		&m.AmountVariance, &m.QuantityVariance, &m.MatchedAt, &m.ReviewedAt, &m.ApprovedAt,
		&m.MatchedBy, &m.ReviewNotes, &m.ApprovedBy, &m.MatchingAlgorithmVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: scan match result: %w", err)
	}
	m.CriteriaMet, err = decodeJSONB(criteriaMet)
	if err != nil {
		return nil, err
	}
	m.ToleranceApplied, err = decodeJSONB(toleranceApplied)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const matchResultColumns = `id, tenant_id, invoice_id, purchase_order_id, receipt_id, match_type, confidence_score,
	match_status, criteria_met, tolerance_applied, auto_approved, requires_review,
	amount_variance, quantity_variance, matched_at, reviewed_at, approved_at,
	matched_by, review_notes, approved_by, matching_algorithm_version`

func (r *MatchResultRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.MatchResult, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+matchResultColumns+` FROM match_results WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanMatchResult(row)
}

func (r *MatchResultRepository) GetLatestForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*entity.MatchResult, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT `+matchResultColumns+` FROM match_results
		WHERE tenant_id = $1 AND invoice_id = $2 AND match_status != 'rejected'
		ORDER BY matched_at DESC LIMIT 1`, tenantID, invoiceID)
	return scanMatchResult(row)
}

var _ port.MatchResultRepository = (*MatchResultRepository)(nil)
