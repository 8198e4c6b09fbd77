// Package tolerance implements the three pure tolerance checks and the
// scoped rule-resolution lookup described for the matching engines.
package tolerance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/domain/entity"
)

// Config is a resolved percentage-or-absolute tolerance policy.
type Config struct {
	PercentageTolerance decimal.Decimal
	AbsoluteTolerance   decimal.Decimal
}

// Defaults mirror the original engine's hardcoded fallbacks.
var (
	DefaultAmount   = Config{PercentageTolerance: decimal.NewFromFloat(0.05), AbsoluteTolerance: decimal.NewFromInt(10)}
	DefaultQuantity = Config{PercentageTolerance: decimal.NewFromFloat(0.02), AbsoluteTolerance: decimal.NewFromInt(1)}
	DefaultDateDays = 7
)

// CheckResult is the outcome of a tolerance check.
type CheckResult struct {
	WithinTolerance bool
	Variance        decimal.Decimal
}

// CheckAmount returns whether invoiceAmt is within cfg's tolerance of
// referenceAmt, and the observed percentage variance.
func CheckAmount(invoiceAmt, referenceAmt decimal.Decimal, cfg Config) CheckResult {
	return checkNumeric(invoiceAmt, referenceAmt, cfg)
}

// CheckQuantity returns whether invoiceQty is within cfg's tolerance of
// referenceQty, and the observed percentage variance.
func CheckQuantity(invoiceQty, referenceQty decimal.Decimal, cfg Config) CheckResult {
	return checkNumeric(invoiceQty, referenceQty, cfg)
}

func checkNumeric(a, b decimal.Decimal, cfg Config) CheckResult {
	diff := a.Sub(b).Abs()

	if a.IsZero() && b.IsZero() {
		return CheckResult{WithinTolerance: true, Variance: decimal.Zero}
	}

	max := a.Abs()
	if b.Abs().GreaterThan(max) {
		max = b.Abs()
	}

	var percentageVariance decimal.Decimal
	if max.IsZero() {
		percentageVariance = decimal.NewFromInt(1)
	} else {
		percentageVariance = diff.Div(max)
	}

	within := false
	if !cfg.PercentageTolerance.IsZero() && percentageVariance.LessThanOrEqual(cfg.PercentageTolerance) {
		within = true
	}
	if !cfg.AbsoluteTolerance.IsZero() && diff.LessThanOrEqual(cfg.AbsoluteTolerance) {
		within = true
	}

	return CheckResult{WithinTolerance: within, Variance: percentageVariance}
}

// DateCheckResult is the outcome of a date tolerance check.
type DateCheckResult struct {
	WithinTolerance bool
	VarianceDays    int
}

// CheckDate returns whether invoiceDate is within toleranceDays of
// referenceDate.
func CheckDate(invoiceDate, referenceDate time.Time, toleranceDays int) DateCheckResult {
	delta := invoiceDate.Sub(referenceDate)
	days := int(delta.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return DateCheckResult{WithinTolerance: days <= toleranceDays, VarianceDays: days}
}

// Resolver resolves MatchingTolerance rules for a tenant.
type Resolver struct {
	rules []entity.MatchingTolerance
}

// NewResolver builds a Resolver from the tenant's active tolerance rules.
func NewResolver(rules []entity.MatchingTolerance) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve selects the highest-priority active rule scoped to vendorID and
// amount for the given tolerance type, falling back to the package
// defaults when no rule matches.
func (r *Resolver) Resolve(vendorID *uuid.UUID, amount decimal.Decimal, toleranceType entity.ToleranceType) Config {
	var best *entity.MatchingTolerance
	for i := range r.rules {
		rule := &r.rules[i]
		if !rule.Active || rule.ToleranceType != toleranceType {
			continue
		}
		if rule.VendorID != nil && (vendorID == nil || *rule.VendorID != *vendorID) {
			continue
		}
		if rule.AmountThreshold != nil && amount.LessThan(*rule.AmountThreshold) {
			continue
		}
		if best == nil || rule.Priority > best.Priority {
			best = rule
		}
	}

	if best == nil {
		switch toleranceType {
		case entity.ToleranceTypeQuantity:
			return DefaultQuantity
		default:
			return DefaultAmount
		}
	}

	cfg := Config{}
	if best.PercentageTolerance != nil {
		cfg.PercentageTolerance = *best.PercentageTolerance
	}
	if best.AbsoluteTolerance != nil {
		cfg.AbsoluteTolerance = *best.AbsoluteTolerance
	}
	return cfg
}

// ResolveDateDays resolves the date tolerance in days; there is no
// per-rule date value in the default policy so this simply returns the
// package default, kept as a method for symmetry and future per-tenant
// overrides.
func (r *Resolver) ResolveDateDays() int {
	return DefaultDateDays
}
