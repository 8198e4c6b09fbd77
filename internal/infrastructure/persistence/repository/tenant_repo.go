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

// TenantRepository implements port.TenantRepository against Postgres.
type TenantRepository struct {
	db *postgres.DB
}

// NewTenantRepository builds a TenantRepository.
func NewTenantRepository(db *postgres.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetByID(ctx context.Context, tenantID uuid.UUID) (*entity.Tenant, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT id, name, display_name, settings, active, created_at, updated_at
		FROM tenants WHERE id = $1`, tenantID)

	var t entity.Tenant
	var settings []byte
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &settings, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get tenant: %w", err)
	}
	t.Settings, err = decodeJSONB(settings)
	if err != nil {
		return nil, fmt.Errorf("repository: decode tenant settings: %w", err)
	}
	return &t, nil
}

var _ port.TenantRepository = (*TenantRepository)(nil)
