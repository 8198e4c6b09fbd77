// Package validation implements the pluggable rule chain applied to each
// normalized CSV row before persistence: required fields, types, business
// rules, vendor resolution, then duplicate detection, evaluated in that
// fixed order.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
)

// Row is the normalized per-row data passed between ingestion stages and
// the validation rule chain.
type Row struct {
	InvoiceNumber string
	VendorName    string
	TotalAmount   *decimal.Decimal
	TaxAmount     *decimal.Decimal
	Subtotal      *decimal.Decimal
	InvoiceDate   *time.Time
	DueDate       *time.Time

	MatchedVendorID *uuid.UUID
}

// ValidationError mirrors the shape each rule produces.
type ValidationError struct {
	ErrorType      entity.ImportErrorType
	Code           string
	Message        string
	Field          string
	RawValue       string
	ExpectedFormat string
	SuggestedFix   string
	Severity       entity.Severity
}

func errAt(errorType entity.ImportErrorType, code, message, field, raw string) ValidationError {
	return ValidationError{ErrorType: errorType, Code: code, Message: message, Field: field, RawValue: raw, Severity: entity.SeverityError}
}

func warnAt(errorType entity.ImportErrorType, code, message, field, raw string) ValidationError {
	e := errAt(errorType, code, message, field, raw)
	e.Severity = entity.SeverityWarning
	return e
}

// Rule is one link of the validation chain.
type Rule interface {
	Name() string
	Validate(ctx context.Context, row *Row) ([]ValidationError, error)
}

// RequiredFieldsRule checks that invoice_number, vendor_name, total_amount
// and invoice_date are all present.
type RequiredFieldsRule struct{}

func (RequiredFieldsRule) Name() string { return "required_fields" }

func (RequiredFieldsRule) Validate(ctx context.Context, row *Row) ([]ValidationError, error) {
	var errs []ValidationError
	if strings.TrimSpace(row.InvoiceNumber) == "" {
		errs = append(errs, errAt(entity.ImportErrorValidation, "MISSING_INVOICE_NUMBER", "invoice_number is required", "invoice_number", ""))
	}
	if strings.TrimSpace(row.VendorName) == "" {
		errs = append(errs, errAt(entity.ImportErrorValidation, "MISSING_VENDOR_NAME", "vendor_name is required", "vendor_name", ""))
	}
	if row.TotalAmount == nil {
		errs = append(errs, errAt(entity.ImportErrorValidation, "MISSING_TOTAL_AMOUNT", "total_amount is required", "total_amount", ""))
	}
	if row.InvoiceDate == nil {
		errs = append(errs, errAt(entity.ImportErrorValidation, "MISSING_INVOICE_DATE", "invoice_date is required", "invoice_date", ""))
	}
	return errs, nil
}

// TypesRule re-asserts that fields parsed during normalization hold the
// type they claim to; by the time a Row reaches the chain this is mostly a
// defensive check since the ingestion stage already parsed them.
type TypesRule struct{}

func (TypesRule) Name() string { return "types" }

func (TypesRule) Validate(ctx context.Context, row *Row) ([]ValidationError, error) {
	var errs []ValidationError
	if row.TotalAmount != nil && row.TotalAmount.Exponent() < -4 {
		errs = append(errs, errAt(entity.ImportErrorValidation, "INVALID_TOTAL_AMOUNT_TYPE", "total_amount has excess precision", "total_amount", row.TotalAmount.String()))
	}
	return errs, nil
}

// BusinessRule enforces the monetary and date business constraints.
type BusinessRule struct{}

func (BusinessRule) Name() string { return "business_rules" }

var maxReasonableAmount = decimal.NewFromInt(1_000_000)
var taxRateWarnThreshold = decimal.NewFromFloat(0.5)
var roundingTolerance = decimal.NewFromFloat(0.02)

func (BusinessRule) Validate(ctx context.Context, row *Row) ([]ValidationError, error) {
	var errs []ValidationError

	if row.TotalAmount != nil {
		total := *row.TotalAmount
		if total.LessThanOrEqual(decimal.Zero) {
			errs = append(errs, errAt(entity.ImportErrorBusinessRule, "NEGATIVE_AMOUNT", "total_amount must be positive", "total_amount", total.String()))
		}
		if total.GreaterThan(maxReasonableAmount) {
			errs = append(errs, warnAt(entity.ImportErrorBusinessRule, "AMOUNT_TOO_LARGE", "total_amount appears unusually large", "total_amount", total.String()))
		}

		if row.TaxAmount != nil {
			tax := *row.TaxAmount
			if tax.LessThan(decimal.Zero) {
				errs = append(errs, errAt(entity.ImportErrorBusinessRule, "NEGATIVE_TAX", "tax_amount cannot be negative", "tax_amount", tax.String()))
			}
			if tax.GreaterThan(total) {
				e := errAt(entity.ImportErrorBusinessRule, "TAX_EXCEEDS_TOTAL", "tax_amount cannot exceed total_amount", "tax_amount", tax.String())
				e.SuggestedFix = "Verify tax and total amounts are correct"
				errs = append(errs, e)
			}
			if !total.IsZero() {
				rate := tax.Div(total)
				if rate.GreaterThan(taxRateWarnThreshold) {
					errs = append(errs, warnAt(entity.ImportErrorBusinessRule, "HIGH_TAX_RATE", fmt.Sprintf("tax rate appears high (%s)", rate.StringFixed(2)), "tax_amount", tax.String()))
				}
			}
		}

		if row.Subtotal != nil && row.TaxAmount != nil {
			expected := row.Subtotal.Add(*row.TaxAmount)
			if total.Sub(expected).Abs().GreaterThan(roundingTolerance) {
				e := errAt(entity.ImportErrorBusinessRule, "AMOUNT_CALCULATION_ERROR",
					fmt.Sprintf("total_amount (%s) doesn't match subtotal + tax (%s)", total.String(), expected.String()),
					"total_amount", total.String())
				e.SuggestedFix = "Verify subtotal, tax, and total amounts are correct"
				errs = append(errs, e)
			}
		}
	}

	if row.InvoiceDate != nil {
		today := time.Now().UTC()
		invDate := *row.InvoiceDate

		if invDate.Before(today.AddDate(-3, 0, 0)) {
			errs = append(errs, warnAt(entity.ImportErrorBusinessRule, "DATE_TOO_OLD", "invoice_date is more than 3 years old", "invoice_date", invDate.Format("2006-01-02")))
		}
		if invDate.After(today) {
			errs = append(errs, warnAt(entity.ImportErrorBusinessRule, "FUTURE_DATE", "invoice_date cannot be in the future", "invoice_date", invDate.Format("2006-01-02")))
		}

		if row.DueDate != nil {
			due := *row.DueDate
			if due.Before(invDate) {
				e := errAt(entity.ImportErrorBusinessRule, "DUE_BEFORE_INVOICE", "due_date cannot be before invoice_date", "due_date", due.Format("2006-01-02"))
				e.SuggestedFix = "Ensure due date is after invoice date"
				errs = append(errs, e)
			}
			paymentDays := int(due.Sub(invDate).Hours() / 24)
			if paymentDays > 365 {
				errs = append(errs, warnAt(entity.ImportErrorBusinessRule, "LONG_PAYMENT_TERMS", fmt.Sprintf("payment terms are unusually long (%d days)", paymentDays), "due_date", due.Format("2006-01-02")))
			}
		}
	}

	return errs, nil
}

var onlyDigits = regexp.MustCompile(`^[0-9]+$`)
var noLetters = regexp.MustCompile(`[a-zA-Z]`)

func isValidVendorName(name string) bool {
	if len(strings.TrimSpace(name)) < 2 {
		return false
	}
	if onlyDigits.MatchString(name) {
		return false
	}
	if !noLetters.MatchString(name) {
		return false
	}
	return true
}

// VendorValidationRule checks vendor-name format and attempts an
// exact-match resolution against the tenant's existing vendors.
type VendorValidationRule struct {
	TenantID uuid.UUID
	Vendors  port.VendorRepository
}

func (VendorValidationRule) Name() string { return "vendor_validation" }

func (r VendorValidationRule) Validate(ctx context.Context, row *Row) ([]ValidationError, error) {
	if row.VendorName == "" {
		return nil, nil
	}
	var errs []ValidationError

	if !isValidVendorName(row.VendorName) {
		e := errAt(entity.ImportErrorValidation, "INVALID_VENDOR_FORMAT", "vendor_name contains invalid characters or format", "vendor_name", row.VendorName)
		e.ExpectedFormat = "Alphanumeric characters, spaces, and common punctuation"
		errs = append(errs, e)
	}

	if r.Vendors != nil {
		vendor, err := r.Vendors.GetByNameExact(ctx, r.TenantID, row.VendorName)
		if err != nil {
			return errs, fmt.Errorf("vendor_validation: lookup vendor: %w", err)
		}
		if vendor == nil {
			errs = append(errs, warnAt(entity.ImportErrorValidation, "NEW_VENDOR", fmt.Sprintf("vendor '%s' not found in system - will be created", row.VendorName), "vendor_name", row.VendorName))
		} else {
			id := vendor.ID
			row.MatchedVendorID = &id
		}
	}

	return errs, nil
}

// DuplicateDetectionRule detects duplicates within the current batch and
// against already-persisted invoices.
type DuplicateDetectionRule struct {
	TenantID uuid.UUID
	Invoices port.InvoiceRepository
	seen     map[string]struct{}
}

// NewDuplicateDetectionRule builds a DuplicateDetectionRule with a fresh
// in-batch dedup set; one instance must be used per batch, not shared.
func NewDuplicateDetectionRule(tenantID uuid.UUID, invoices port.InvoiceRepository) *DuplicateDetectionRule {
	return &DuplicateDetectionRule{TenantID: tenantID, Invoices: invoices, seen: make(map[string]struct{})}
}

func (r *DuplicateDetectionRule) Name() string { return "duplicate_detection" }

func (r *DuplicateDetectionRule) Validate(ctx context.Context, row *Row) ([]ValidationError, error) {
	if row.VendorName == "" || row.InvoiceNumber == "" {
		return nil, nil
	}
	var errs []ValidationError

	key := strings.ToUpper(row.VendorName) + "\x00" + row.InvoiceNumber
	if _, ok := r.seen[key]; ok {
		e := errAt(entity.ImportErrorDuplicate, "DUPLICATE_IN_BATCH",
			fmt.Sprintf("duplicate invoice found in batch: %s - %s", row.VendorName, row.InvoiceNumber),
			"invoice_number", row.InvoiceNumber)
		e.SuggestedFix = "Remove duplicate entry or verify invoice details"
		errs = append(errs, e)
	} else {
		r.seen[key] = struct{}{}
	}

	if r.Invoices != nil && row.MatchedVendorID != nil {
		exists, err := r.Invoices.ExistsByVendorAndNumber(ctx, r.TenantID, *row.MatchedVendorID, row.InvoiceNumber)
		if err != nil {
			return errs, fmt.Errorf("duplicate_detection: lookup invoice: %w", err)
		}
		if exists {
			e := errAt(entity.ImportErrorDuplicate, "DUPLICATE_IN_SYSTEM",
				fmt.Sprintf("invoice already exists in system: %s - %s", row.VendorName, row.InvoiceNumber),
				"invoice_number", row.InvoiceNumber)
			e.SuggestedFix = "Verify this is a new invoice or update existing record"
			errs = append(errs, e)
		}
	}

	return errs, nil
}

// Chain runs a fixed ordered sequence of Rules over a Row.
type Chain struct {
	rules []Rule
}

// NewChain builds the standard rule chain for one tenant/batch: required
// fields, types, business rules, vendor validation, duplicate detection.
func NewChain(tenantID uuid.UUID, vendors port.VendorRepository, invoices port.InvoiceRepository) *Chain {
	return &Chain{rules: []Rule{
		RequiredFieldsRule{},
		TypesRule{},
		BusinessRule{},
		VendorValidationRule{TenantID: tenantID, Vendors: vendors},
		NewDuplicateDetectionRule(tenantID, invoices),
	}}
}

// Run evaluates every rule in order against row, accumulating all errors;
// a system error raised by a rule itself (not a validation failure) is
// recorded as a SYSTEM-kind error, matching the original engine's
// isolate-and-continue behavior.
func (c *Chain) Run(ctx context.Context, row *Row) []ValidationError {
	var all []ValidationError
	for _, rule := range c.rules {
		errs, err := rule.Validate(ctx, row)
		all = append(all, errs...)
		if err != nil {
			all = append(all, errAt(entity.ImportErrorSystem, "VALIDATION_SYSTEM_ERROR", fmt.Sprintf("system error during validation: %v", err), "", ""))
		}
	}
	return all
}

// HasBlockingError reports whether errs contains at least one
// severity=error entry.
func HasBlockingError(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == entity.SeverityError {
			return true
		}
	}
	return false
}
