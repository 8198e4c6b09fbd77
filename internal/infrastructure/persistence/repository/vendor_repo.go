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

// VendorRepository implements port.VendorRepository against Postgres.
type VendorRepository struct {
	db *postgres.DB
}

// NewVendorRepository builds a VendorRepository.
func NewVendorRepository(db *postgres.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) Create(ctx context.Context, vendor *entity.Vendor) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO vendors (
			id, tenant_id, vendor_code, name, legal_name, tax_id,
			default_currency, payment_terms_days, active,
			created_at, updated_at, created_by, updated_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		vendor.ID, vendor.TenantID, vendor.VendorCode, vendor.Name, vendor.LegalName, vendor.TaxID,
		vendor.DefaultCurrency, vendor.PaymentTermsDays, vendor.Active,
		vendor.CreatedAt, vendor.UpdatedAt, vendor.CreatedBy, vendor.UpdatedBy)
	if err != nil {
		return fmt.Errorf("repository: create vendor: %w", err)
	}
	return nil
}

func (r *VendorRepository) scanOne(ctx context.Context, query string, args ...any) (*entity.Vendor, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, query, args...)
	var v entity.Vendor
	err := row.Scan(&v.ID, &v.TenantID, &v.VendorCode, &v.Name, &v.LegalName, &v.TaxID,
		&v.DefaultCurrency, &v.PaymentTermsDays, &v.Active,
		&v.CreatedAt, &v.UpdatedAt, &v.CreatedBy, &v.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: scan vendor: %w", err)
	}
	return &v, nil
}

const vendorColumns = `id, tenant_id, vendor_code, name, legal_name, tax_id,
	default_currency, payment_terms_days, active, created_at, updated_at, created_by, updated_by`

func (r *VendorRepository) GetByID(ctx context.Context, tenantID, vendorID uuid.UUID) (*entity.Vendor, error) {
	return r.scanOne(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE tenant_id = $1 AND id = $2`, tenantID, vendorID)
}

func (r *VendorRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.Vendor, error) {
	return r.scanOne(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE tenant_id = $1 AND vendor_code = $2`, tenantID, code)
}

func (r *VendorRepository) GetByNameExact(ctx context.Context, tenantID uuid.UUID, name string) (*entity.Vendor, error) {
	return r.scanOne(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE tenant_id = $1 AND name = $2`, tenantID, name)
}

func (r *VendorRepository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE tenant_id = $1 AND active = true`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("repository: list active vendors: %w", err)
	}
	defer rows.Close()

	var out []*entity.Vendor
	for rows.Next() {
		var v entity.Vendor
		if err := rows.Scan(&v.ID, &v.TenantID, &v.VendorCode, &v.Name, &v.LegalName, &v.TaxID,
			&v.DefaultCurrency, &v.PaymentTermsDays, &v.Active,
			&v.CreatedAt, &v.UpdatedAt, &v.CreatedBy, &v.UpdatedBy); err != nil {
			return nil, fmt.Errorf("repository: scan vendor row: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

const qualifiedVendorColumns = `v.id, v.tenant_id, v.vendor_code, v.name, v.legal_name, v.tax_id,
	v.default_currency, v.payment_terms_days, v.active, v.created_at, v.updated_at, v.created_by, v.updated_by`

func (r *VendorRepository) GetByAlias(ctx context.Context, tenantID uuid.UUID, alias string) (*entity.Vendor, error) {
	return r.scanOne(ctx, `SELECT `+qualifiedVendorColumns+`
		FROM vendors v
		JOIN vendor_aliases a ON a.vendor_id = v.id AND a.tenant_id = v.tenant_id
		WHERE v.tenant_id = $1 AND a.alias = $2
		ORDER BY a.confidence DESC
		LIMIT 1`, tenantID, alias)
}

func (r *VendorRepository) AddAlias(ctx context.Context, alias *entity.VendorAlias) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO vendor_aliases (id, tenant_id, vendor_id, alias, similarity_score, approved, source, confidence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		alias.ID, alias.TenantID, alias.VendorID, alias.Alias, alias.Similarity, alias.Approved, alias.Source, alias.Confidence)
	if err != nil {
		return fmt.Errorf("repository: add vendor alias: %w", err)
	}
	return nil
}

var _ port.VendorRepository = (*VendorRepository)(nil)
