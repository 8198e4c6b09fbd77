package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/invoicereconcile/core/internal/domain/money"
)

// Invoice is the vendor's bill header.
type Invoice struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	VendorID         uuid.UUID
	InvoiceNumber    string
	// POReference is free text pointed at a PO number; it may be absent or
	// noisy (OCR-mangled), which is why the matcher always has a fuzzy
	// fallback path.
	POReference      string
	Currency         CurrencyCode
	Subtotal         money.Amount
	TaxAmount        money.Amount
	TotalAmount      money.Amount
	InvoiceDate      time.Time
	DueDate          *time.Time
	ReceivedDate     *time.Time
	Status           DocumentStatus
	ProcessingStatus string
	OCRConfidence    *float64
	ExtractedData    map[string]any
	RawText          string
	FileName         string
	FilePath         string
	FileHash         string
	FileSize         int64
	MimeType         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        uuid.UUID
	UpdatedBy        uuid.UUID
}

// InvoiceLine is a single line of an Invoice.
type InvoiceLine struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	InvoiceID   uuid.UUID
	LineNumber  int
	ItemCode    string
	Description string
	Quantity    money.Quantity
	UnitPrice   money.Quantity
	LineTotal   money.Amount
}
