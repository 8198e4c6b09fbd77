package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// ToleranceRepository implements port.ToleranceRepository.
type ToleranceRepository struct {
	db *postgres.DB
}

// NewToleranceRepository builds a ToleranceRepository.
func NewToleranceRepository(db *postgres.DB) *ToleranceRepository {
	return &ToleranceRepository{db: db}
}

func (r *ToleranceRepository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]entity.MatchingTolerance, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, vendor_id, amount_threshold, tolerance_type,
			percentage_tolerance, absolute_tolerance, priority, active
		FROM matching_tolerances WHERE tenant_id = $1 AND active = true ORDER BY priority DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("repository: list tolerances: %w", err)
	}
	defer rows.Close()

	var out []entity.MatchingTolerance
	for rows.Next() {
		var t entity.MatchingTolerance
		if err := rows.Scan(&t.ID, &t.TenantID, &t.VendorID, &t.AmountThreshold, &t.ToleranceType,
			&t.PercentageTolerance, &t.AbsoluteTolerance, &t.Priority, &t.Active); err != nil {
			return nil, fmt.Errorf("repository: scan tolerance: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ port.ToleranceRepository = (*ToleranceRepository)(nil)
