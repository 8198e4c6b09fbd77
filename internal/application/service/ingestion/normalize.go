package ingestion

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicereconcile/core/internal/domain/money"
)

const (
	maxInvoiceNumberLen = 100
	maxVendorNameLen    = 255
)

// dateFormats is the ordered precedence list: ISO, US, EU, compact,
// two-digit-year variants. The first format that parses successfully
// wins.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"01-02-2006",
	"02-01-2006",
	"20060102",
	"01/02/06",
	"02/01/06",
}

// currencySymbols are stripped before parsing an amount.
var currencySymbols = []string{"$", "€", "£", "¥", "₹", "USD", "EUR", "GBP", "JPY", "INR"}

// businessSuffixes are stripped from vendor names during normalization,
// unless stripping would empty the string.
var businessSuffixes = []string{"LLC", "INC", "CORP", "LTD", "LIMITED", "CORPORATION", "COMPANY", "CO", "ASSOCIATES", "ASSOC", "&", "AND"}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeInvoiceNumber trims and caps the invoice number at 100 chars.
func NormalizeInvoiceNumber(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxInvoiceNumberLen {
		s = s[:maxInvoiceNumberLen]
	}
	return s
}

// NormalizeVendorName uppercases, collapses whitespace, strips common
// business suffixes (unless doing so would empty the result), and
// truncates to 255 characters.
func NormalizeVendorName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	stripped := make([]string, 0, len(words))
	suffixSet := make(map[string]bool, len(businessSuffixes))
	for _, suf := range businessSuffixes {
		suffixSet[suf] = true
	}
	for _, w := range words {
		trimmed := strings.Trim(w, ".,")
		if suffixSet[trimmed] {
			continue
		}
		stripped = append(stripped, w)
	}

	result := strings.TrimSpace(strings.Join(stripped, " "))
	if result == "" {
		result = s
	}
	if len(result) > maxVendorNameLen {
		result = result[:maxVendorNameLen]
	}
	return result
}

// ParseAmount strips currency symbols, commas and spaces, interprets
// parentheses or a leading '-' as negative, and quantizes to 2 decimals.
func ParseAmount(s string) (money.Amount, error) {
	original := strings.TrimSpace(s)
	if original == "" {
		return money.Amount{}, fmt.Errorf("ingestion: empty amount")
	}

	negative := false
	v := original
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}

	for _, sym := range currencySymbols {
		v = strings.ReplaceAll(v, sym, "")
	}
	v = strings.ReplaceAll(v, ",", "")
	v = strings.ReplaceAll(v, " ", "")
	v = strings.TrimSpace(v)

	if strings.HasPrefix(v, "-") {
		negative = true
		v = strings.TrimPrefix(v, "-")
	}

	if v == "" {
		return money.Amount{}, fmt.Errorf("ingestion: amount %q has no digits", original)
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return money.Amount{}, fmt.Errorf("ingestion: parse amount %q: %w", original, err)
	}
	if negative {
		d = d.Neg()
	}
	return money.NewAmount(d), nil
}

// ParseDate tries each format in dateFormats in order and range-checks
// the result to [1900, thisYear+10].
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !inDateRange(t) {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

func inDateRange(t time.Time) bool {
	year := t.Year()
	maxYear := time.Now().UTC().Year() + 10
	return year >= 1900 && year <= maxYear
}
