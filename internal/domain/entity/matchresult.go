package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchResult records one matching decision for an invoice, optionally
// against a PO and/or a receipt.
type MatchResult struct {
	ID                      uuid.UUID
	TenantID                uuid.UUID
	InvoiceID               uuid.UUID
	PurchaseOrderID         *uuid.UUID
	ReceiptID               *uuid.UUID
	MatchType               MatchType
	ConfidenceScore         decimal.Decimal
	MatchStatus             MatchStatus
	CriteriaMet             map[string]any
	ToleranceApplied        map[string]any
	AutoApproved            bool
	RequiresReview          bool
	AmountVariance          decimal.Decimal
	QuantityVariance        decimal.Decimal
	MatchedAt               time.Time
	ReviewedAt              *time.Time
	ApprovedAt              *time.Time
	MatchedBy               MatchedBy
	ReviewNotes             string
	ApprovedBy              *uuid.UUID
	MatchingAlgorithmVersion string
}

// AuditEvent is one hash-chained, append-only entry in a match result's
// audit trail.
type AuditEvent struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	MatchResultID      uuid.UUID
	EventType          EventType
	EventDescription   string
	DecisionFactors    map[string]any
	AlgorithmVersion   string
	ConfidenceBreakdown map[string]any
	OldValues          map[string]any
	NewValues          map[string]any
	ActorUserID        *uuid.UUID
	ActorRole          string
	ActorIP            string
	ActorUserAgent     string
	OccurredAt         time.Time
	EventHash          string
}

// Actor carries the identity under which an operation is performed, so
// that audit rows can be populated without ambient global state. This is
// the shape the external authentication subsystem hands to the core.
type Actor struct {
	UserID      *uuid.UUID
	TenantID    uuid.UUID
	Role        string
	Permissions []string
	IP          string
	UserAgent   string
}
