package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/money"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// InvoiceRepository implements port.InvoiceRepository.
type InvoiceRepository struct {
	db *postgres.DB
}

// NewInvoiceRepository builds an InvoiceRepository.
func NewInvoiceRepository(db *postgres.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	extracted, err := encodeJSONB(invoice.ExtractedData)
	if err != nil {
		return fmt.Errorf("repository: encode invoice extracted_data: %w", err)
	}
	_, err = r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO invoices (
			id, tenant_id, vendor_id, invoice_number, po_reference, currency,
			subtotal, tax_amount, total_amount, invoice_date, due_date, received_date,
			status, processing_status, ocr_confidence, extracted_data, raw_text,
			file_name, file_path, file_hash, file_size, mime_type,
			created_at, updated_at, created_by, updated_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`,
		invoice.ID, invoice.TenantID, invoice.VendorID, invoice.InvoiceNumber, invoice.POReference, invoice.Currency,
		invoice.Subtotal, invoice.TaxAmount, invoice.TotalAmount, invoice.InvoiceDate, invoice.DueDate, invoice.ReceivedDate,
		invoice.Status, invoice.ProcessingStatus, invoice.OCRConfidence, extracted, invoice.RawText,
		invoice.FileName, invoice.FilePath, invoice.FileHash, invoice.FileSize, invoice.MimeType,
		invoice.CreatedAt, invoice.UpdatedAt, invoice.CreatedBy, invoice.UpdatedBy)
	if err != nil {
		return fmt.Errorf("repository: create invoice: %w", err)
	}
	return nil
}

const invoiceColumns = `id, tenant_id, vendor_id, invoice_number, po_reference, currency,
	subtotal, tax_amount, total_amount, invoice_date, due_date, received_date,
	status, processing_status, ocr_confidence, extracted_data, raw_text,
	file_name, file_path, file_hash, file_size, mime_type,
	created_at, updated_at, created_by, updated_by`

func (r *InvoiceRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Invoice, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND id = $2`, tenantID, id)

	var inv entity.Invoice
	var extracted []byte
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.VendorID, &inv.InvoiceNumber, &inv.POReference, &inv.Currency,
		&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.InvoiceDate, &inv.DueDate, &inv.ReceivedDate,
		&inv.Status, &inv.ProcessingStatus, &inv.OCRConfidence, &extracted, &inv.RawText,
		&inv.FileName, &inv.FilePath, &inv.FileHash, &inv.FileSize, &inv.MimeType,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.CreatedBy, &inv.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get invoice: %w", err)
	}
	inv.ExtractedData, err = decodeJSONB(extracted)
	if err != nil {
		return nil, fmt.Errorf("repository: decode invoice extracted_data: %w", err)
	}
	return &inv, nil
}

func (r *InvoiceRepository) ListLines(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*entity.InvoiceLine, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, invoice_id, line_number, item_code, description, quantity, unit_price, line_total
		FROM invoice_lines WHERE tenant_id = $1 AND invoice_id = $2 ORDER BY line_number`, tenantID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("repository: list invoice lines: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		var quantity, unitPrice, lineTotal decimal.Decimal
		if err := rows.Scan(&l.ID, &l.TenantID, &l.InvoiceID, &l.LineNumber, &l.ItemCode, &l.Description,
			&quantity, &unitPrice, &lineTotal); err != nil {
			return nil, fmt.Errorf("repository: scan invoice line: %w", err)
		}
		l.Quantity = money.NewQuantity(quantity)
		l.UnitPrice = money.NewQuantity(unitPrice)
		l.LineTotal = money.NewAmount(lineTotal)
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *InvoiceRepository) CreateLine(ctx context.Context, line *entity.InvoiceLine) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO invoice_lines (id, tenant_id, invoice_id, line_number, item_code, description, quantity, unit_price, line_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		line.ID, line.TenantID, line.InvoiceID, line.LineNumber, line.ItemCode, line.Description,
		line.Quantity, line.UnitPrice, line.LineTotal)
	if err != nil {
		return fmt.Errorf("repository: create invoice line: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) ExistsByVendorAndNumber(ctx context.Context, tenantID, vendorID uuid.UUID, invoiceNumber string) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM invoices WHERE tenant_id = $1 AND vendor_id = $2 AND invoice_number = $3)`,
		tenantID, vendorID, invoiceNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: check invoice existence: %w", err)
	}
	return exists, nil
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
