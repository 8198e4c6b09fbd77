package entity

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the root of data isolation. Every other entity carries a
// TenantID and every query is expected to filter on it.
type Tenant struct {
	ID          uuid.UUID
	Name        string
	DisplayName string
	Settings    map[string]any
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Vendor is the supplier master record.
type Vendor struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	VendorCode     string
	Name           string
	LegalName      string
	TaxID          string
	DefaultCurrency CurrencyCode
	PaymentTermsDays int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      uuid.UUID
	UpdatedBy      uuid.UUID
}

// VendorAlias is a learned or manually approved name variation used by the
// fuzzy matcher when resolving free-text vendor names from CSV rows or OCR
// output.
type VendorAlias struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	VendorID   uuid.UUID
	Alias      string
	Similarity float64
	Approved   bool
	Source     VendorAliasSource
	Confidence float64
}
