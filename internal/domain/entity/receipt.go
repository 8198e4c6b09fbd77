package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/invoicereconcile/core/internal/domain/money"
)

// Receipt is evidence of goods received against a PurchaseOrder.
type Receipt struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	PurchaseOrderID    uuid.UUID
	ReceiptNumber      string
	DeliveryNote       string
	ReceiptDate        time.Time
	ReceivedBy         string
	TotalQuantity      money.Quantity
	TotalValue         money.Amount
	Status             DocumentStatus
	Notes              string
	DeliveryConditions string
}

// ReceiptLine is a single line of a Receipt, referencing the PO line it
// fulfills.
type ReceiptLine struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	ReceiptID        uuid.UUID
	POLineID         uuid.UUID
	LineNumber       int
	QuantityReceived money.Quantity
	UnitCost         money.Quantity
	LineValue        money.Amount
	Condition        ReceiptLineCondition
}
