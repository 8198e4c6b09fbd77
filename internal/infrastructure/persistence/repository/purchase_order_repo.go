package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/money"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// PurchaseOrderRepository implements port.PurchaseOrderRepository.
type PurchaseOrderRepository struct {
	db *postgres.DB
}

// NewPurchaseOrderRepository builds a PurchaseOrderRepository.
func NewPurchaseOrderRepository(db *postgres.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

const poColumns = `id, tenant_id, vendor_id, po_number, external_po_number, currency,
	subtotal, tax_amount, total_amount, po_date, expected_delivery_date,
	status, approval_status, description, delivery_address,
	created_at, updated_at, created_by, updated_by`

func scanPO(row pgx.Row) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := row.Scan(&po.ID, &po.TenantID, &po.VendorID, &po.PONumber, &po.ExternalPONumber, &po.Currency,
		&po.Subtotal, &po.TaxAmount, &po.TotalAmount, &po.PODate, &po.ExpectedDeliveryDate,
		&po.Status, &po.ApprovalStatus, &po.Description, &po.DeliveryAddress,
		&po.CreatedAt, &po.UpdatedAt, &po.CreatedBy, &po.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: scan purchase order: %w", err)
	}
	return &po, nil
}

func (r *PurchaseOrderRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.PurchaseOrder, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanPO(row)
}

func (r *PurchaseOrderRepository) queryPOs(ctx context.Context, query string, args ...any) ([]*entity.PurchaseOrder, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: query purchase orders: %w", err)
	}
	defer rows.Close()

	var out []*entity.PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func (r *PurchaseOrderRepository) FindByNumberAndVendor(ctx context.Context, tenantID, vendorID uuid.UUID, poNumber string) ([]*entity.PurchaseOrder, error) {
	return r.queryPOs(ctx, `SELECT `+poColumns+` FROM purchase_orders
		WHERE tenant_id = $1 AND vendor_id = $2 AND (po_number = $3 OR external_po_number = $3)`,
		tenantID, vendorID, poNumber)
}

func (r *PurchaseOrderRepository) FindCandidates(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.PurchaseOrder, error) {
	return r.queryPOs(ctx, `SELECT `+poColumns+` FROM purchase_orders
		WHERE tenant_id = $1 AND vendor_id = $2 AND po_date BETWEEN $3 AND $4`,
		tenantID, vendorID, dateFrom, dateTo)
}

func (r *PurchaseOrderRepository) FindCandidatesByAmountRange(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time, amountLow, amountHigh float64) ([]*entity.PurchaseOrder, error) {
	return r.queryPOs(ctx, `SELECT `+poColumns+` FROM purchase_orders
		WHERE tenant_id = $1 AND vendor_id = $2 AND po_date BETWEEN $3 AND $4
		AND total_amount BETWEEN $5 AND $6`,
		tenantID, vendorID, dateFrom, dateTo, decimal.NewFromFloat(amountLow), decimal.NewFromFloat(amountHigh))
}

func (r *PurchaseOrderRepository) ListLines(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) ([]*entity.PurchaseOrderLine, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, purchase_order_id, line_number, item_code, description,
			quantity, unit_price, line_total, unit_of_measure, quantity_received, quantity_invoiced
		FROM purchase_order_lines WHERE tenant_id = $1 AND purchase_order_id = $2 ORDER BY line_number`,
		tenantID, purchaseOrderID)
	if err != nil {
		return nil, fmt.Errorf("repository: list po lines: %w", err)
	}
	defer rows.Close()

	var out []*entity.PurchaseOrderLine
	for rows.Next() {
		var l entity.PurchaseOrderLine
		var quantity, unitPrice, lineTotal, quantityReceived, quantityInvoiced decimal.Decimal
		if err := rows.Scan(&l.ID, &l.TenantID, &l.PurchaseOrderID, &l.LineNumber, &l.ItemCode, &l.Description,
			&quantity, &unitPrice, &lineTotal, &l.UnitOfMeasure, &quantityReceived, &quantityInvoiced); err != nil {
			return nil, fmt.Errorf("repository: scan po line: %w", err)
		}
		l.Quantity = money.NewQuantity(quantity)
		l.UnitPrice = money.NewQuantity(unitPrice)
		l.LineTotal = money.NewAmount(lineTotal)
		l.QuantityReceived = money.NewQuantity(quantityReceived)
		l.QuantityInvoiced = money.NewQuantity(quantityInvoiced)
		out = append(out, &l)
	}
	return out, rows.Err()
}

var _ port.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
