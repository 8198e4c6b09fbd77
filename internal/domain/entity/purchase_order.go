package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/invoicereconcile/core/internal/domain/money"
)

// PurchaseOrder is a buyer's commitment header.
type PurchaseOrder struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	VendorID             uuid.UUID
	PONumber             string
	ExternalPONumber     string
	Currency             CurrencyCode
	Subtotal             money.Amount
	TaxAmount            money.Amount
	TotalAmount          money.Amount
	PODate               time.Time
	ExpectedDeliveryDate *time.Time
	Status               DocumentStatus
	ApprovalStatus       string
	Description          string
	DeliveryAddress      string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CreatedBy            uuid.UUID
	UpdatedBy            uuid.UUID
}

// PurchaseOrderLine is a single line of a PurchaseOrder.
type PurchaseOrderLine struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	PurchaseOrderID   uuid.UUID
	LineNumber        int
	ItemCode          string
	Description       string
	Quantity          money.Quantity
	UnitPrice         money.Quantity
	LineTotal         money.Amount
	UnitOfMeasure     string
	QuantityReceived  money.Quantity
	QuantityInvoiced  money.Quantity
}
