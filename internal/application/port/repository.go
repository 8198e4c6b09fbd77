// Package port declares the interfaces application services depend on:
// repositories, the transaction manager, cache, and external collaborators.
// Infrastructure adapters implement these against a concrete store.
package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/invoicereconcile/core/internal/domain/entity"
)

// TenantRepository persists Tenant rows.
type TenantRepository interface {
	GetByID(ctx context.Context, tenantID uuid.UUID) (*entity.Tenant, error)
}

// VendorRepository persists Vendor and VendorAlias rows, tenant-scoped.
type VendorRepository interface {
	Create(ctx context.Context, vendor *entity.Vendor) error
	GetByID(ctx context.Context, tenantID, vendorID uuid.UUID) (*entity.Vendor, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.Vendor, error)
	GetByNameExact(ctx context.Context, tenantID uuid.UUID, name string) (*entity.Vendor, error)
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error)
	AddAlias(ctx context.Context, alias *entity.VendorAlias) error
	// GetByAlias resolves a raw name against approved or learned aliases,
	// returning nil if no alias row matches.
	GetByAlias(ctx context.Context, tenantID uuid.UUID, alias string) (*entity.Vendor, error)
}

// PurchaseOrderRepository persists PurchaseOrder and PurchaseOrderLine rows.
type PurchaseOrderRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.PurchaseOrder, error)
	FindByNumberAndVendor(ctx context.Context, tenantID, vendorID uuid.UUID, poNumber string) ([]*entity.PurchaseOrder, error)
	FindCandidates(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.PurchaseOrder, error)
	FindCandidatesByAmountRange(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time, amountLow, amountHigh float64) ([]*entity.PurchaseOrder, error)
	ListLines(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) ([]*entity.PurchaseOrderLine, error)
}

// InvoiceRepository persists Invoice and InvoiceLine rows.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Invoice, error)
	ListLines(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*entity.InvoiceLine, error)
	CreateLine(ctx context.Context, line *entity.InvoiceLine) error
	ExistsByVendorAndNumber(ctx context.Context, tenantID, vendorID uuid.UUID, invoiceNumber string) (bool, error)
}

// ReceiptRepository persists Receipt and ReceiptLine rows.
type ReceiptRepository interface {
	FindByPurchaseOrder(ctx context.Context, tenantID, purchaseOrderID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.Receipt, error)
	ListLines(ctx context.Context, tenantID, receiptID uuid.UUID) ([]*entity.ReceiptLine, error)
}

// ToleranceRepository loads MatchingTolerance rules.
type ToleranceRepository interface {
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]entity.MatchingTolerance, error)
}

// MatchingConfigRepository loads and resolves the active MatchingConfiguration
// for a tenant.
type MatchingConfigRepository interface {
	GetActive(ctx context.Context, tenantID uuid.UUID) (*entity.MatchingConfiguration, error)
}

// MatchResultRepository persists MatchResult rows.
type MatchResultRepository interface {
	Create(ctx context.Context, result *entity.MatchResult) error
	Update(ctx context.Context, result *entity.MatchResult) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.MatchResult, error)
	GetLatestForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*entity.MatchResult, error)
}

// AuditEventRepository persists AuditEvent rows. Appends only; no update
// or delete method is exposed by design.
type AuditEventRepository interface {
	Append(ctx context.Context, event *entity.AuditEvent) error
	GetLatestHash(ctx context.Context, tenantID, matchResultID uuid.UUID) (string, error)
	ListForMatchResult(ctx context.Context, tenantID, matchResultID uuid.UUID) ([]entity.AuditEvent, error)
}

// ImportBatchRepository persists ImportBatch and ImportError rows.
type ImportBatchRepository interface {
	Create(ctx context.Context, batch *entity.ImportBatch) error
	Update(ctx context.Context, batch *entity.ImportBatch) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.ImportBatch, error)
	AppendError(ctx context.Context, impErr *entity.ImportError) error
}
