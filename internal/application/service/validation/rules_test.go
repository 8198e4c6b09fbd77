package validation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
)

type stubVendors struct {
	byName map[string]*entity.Vendor
}

func (s stubVendors) Create(ctx context.Context, v *entity.Vendor) error { return nil }
func (s stubVendors) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Vendor, error) {
	return nil, nil
}
func (s stubVendors) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.Vendor, error) {
	return nil, nil
}
func (s stubVendors) GetByNameExact(ctx context.Context, tenantID uuid.UUID, name string) (*entity.Vendor, error) {
	return s.byName[name], nil
}
func (s stubVendors) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	return nil, nil
}
func (s stubVendors) AddAlias(ctx context.Context, alias *entity.VendorAlias) error { return nil }
func (s stubVendors) GetByAlias(ctx context.Context, tenantID uuid.UUID, alias string) (*entity.Vendor, error) {
	return nil, nil
}

type stubInvoices struct {
	existing map[string]bool
}

func (s stubInvoices) Create(ctx context.Context, i *entity.Invoice) error { return nil }
func (s stubInvoices) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Invoice, error) {
	return nil, nil
}
func (s stubInvoices) ListLines(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*entity.InvoiceLine, error) {
	return nil, nil
}
func (s stubInvoices) CreateLine(ctx context.Context, line *entity.InvoiceLine) error { return nil }
func (s stubInvoices) ExistsByVendorAndNumber(ctx context.Context, tenantID, vendorID uuid.UUID, invoiceNumber string) (bool, error) {
	return s.existing[invoiceNumber], nil
}

var _ port.VendorRepository = stubVendors{}
var _ port.InvoiceRepository = stubInvoices{}

func TestRequiredFieldsRuleFlagsMissing(t *testing.T) {
	errs, err := RequiredFieldsRule{}.Validate(context.Background(), &Row{})
	assert.NoError(t, err)
	assert.Len(t, errs, 4)
}

func TestBusinessRuleNegativeAmount(t *testing.T) {
	neg := decimal.NewFromInt(-5)
	errs, err := BusinessRule{}.Validate(context.Background(), &Row{TotalAmount: &neg})
	assert.NoError(t, err)
	var found bool
	for _, e := range errs {
		if e.Code == "NEGATIVE_AMOUNT" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBusinessRuleTaxExceedsTotal(t *testing.T) {
	total := decimal.NewFromInt(100)
	tax := decimal.NewFromInt(200)
	errs, _ := BusinessRule{}.Validate(context.Background(), &Row{TotalAmount: &total, TaxAmount: &tax})
	var found bool
	for _, e := range errs {
		if e.Code == "TAX_EXCEEDS_TOTAL" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVendorValidationNewVendorWarning(t *testing.T) {
	rule := VendorValidationRule{TenantID: uuid.New(), Vendors: stubVendors{byName: map[string]*entity.Vendor{}}}
	errs, err := rule.Validate(context.Background(), &Row{VendorName: "Acme Corp"})
	assert.NoError(t, err)
	assert.Len(t, errs, 1)
	assert.Equal(t, "NEW_VENDOR", errs[0].Code)
	assert.Equal(t, entity.SeverityWarning, errs[0].Severity)
}

func TestVendorValidationInvalidFormat(t *testing.T) {
	rule := VendorValidationRule{TenantID: uuid.New(), Vendors: stubVendors{byName: map[string]*entity.Vendor{}}}
	errs, _ := rule.Validate(context.Background(), &Row{VendorName: "12345"})
	var found bool
	for _, e := range errs {
		if e.Code == "INVALID_VENDOR_FORMAT" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDuplicateDetectionWithinBatch(t *testing.T) {
	rule := NewDuplicateDetectionRule(uuid.New(), stubInvoices{existing: map[string]bool{}})
	row := &Row{VendorName: "Acme", InvoiceNumber: "INV-1"}
	errs1, _ := rule.Validate(context.Background(), row)
	assert.Empty(t, errs1)
	errs2, _ := rule.Validate(context.Background(), row)
	assert.Len(t, errs2, 1)
	assert.Equal(t, "DUPLICATE_IN_BATCH", errs2[0].Code)
}

func TestChainRunAccumulatesAcrossRules(t *testing.T) {
	chain := NewChain(uuid.New(), stubVendors{byName: map[string]*entity.Vendor{}}, stubInvoices{existing: map[string]bool{}})
	now := time.Now().UTC()
	total := decimal.NewFromInt(100)
	errs := chain.Run(context.Background(), &Row{
		InvoiceNumber: "INV-1",
		VendorName:    "Acme Corp",
		TotalAmount:   &total,
		InvoiceDate:   &now,
	})
	assert.False(t, HasBlockingError(errs))
}
