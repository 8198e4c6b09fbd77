package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/money"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// ReceiptRepository implements port.ReceiptRepository.
type ReceiptRepository struct {
	db *postgres.DB
}

// NewReceiptRepository builds a ReceiptRepository.
func NewReceiptRepository(db *postgres.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) FindByPurchaseOrder(ctx context.Context, tenantID, purchaseOrderID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.Receipt, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, purchase_order_id, receipt_number, delivery_note, receipt_date,
			received_by, total_quantity, total_value, status, notes, delivery_conditions
		FROM receipts
		WHERE tenant_id = $1 AND purchase_order_id = $2 AND receipt_date BETWEEN $3 AND $4`,
		tenantID, purchaseOrderID, dateFrom, dateTo)
	if err != nil {
		return nil, fmt.Errorf("repository: find receipts: %w", err)
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		var rec entity.Receipt
		var totalQuantity decimal.Decimal
		var totalValue decimal.Decimal
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.PurchaseOrderID, &rec.ReceiptNumber, &rec.DeliveryNote, &rec.ReceiptDate,
			&rec.ReceivedBy, &totalQuantity, &totalValue, &rec.Status, &rec.Notes, &rec.DeliveryConditions); err != nil {
			return nil, fmt.Errorf("repository: scan receipt: %w", err)
		}
		rec.TotalQuantity = money.NewQuantity(totalQuantity)
		rec.TotalValue = money.NewAmount(totalValue)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *ReceiptRepository) ListLines(ctx context.Context, tenantID, receiptID uuid.UUID) ([]*entity.ReceiptLine, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, receipt_id, po_line_id, line_number, quantity_received, unit_cost, line_value, condition
		FROM receipt_lines WHERE tenant_id = $1 AND receipt_id = $2 ORDER BY line_number`, tenantID, receiptID)
	if err != nil {
		return nil, fmt.Errorf("repository: list receipt lines: %w", err)
	}
	defer rows.Close()

	var out []*entity.ReceiptLine
	for rows.Next() {
		var l entity.ReceiptLine
		var quantityReceived, unitCost, lineValue decimal.Decimal
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ReceiptID, &l.POLineID, &l.LineNumber,
			&quantityReceived, &unitCost, &lineValue, &l.Condition); err != nil {
			return nil, fmt.Errorf("repository: scan receipt line: %w", err)
		}
		l.QuantityReceived = money.NewQuantity(quantityReceived)
		l.UnitCost = money.NewQuantity(unitCost)
		l.LineValue = money.NewAmount(lineValue)
		out = append(out, &l)
	}
	return out, rows.Err()
}

var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
