package ingestion

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// candidateDelimiters is the closed set of delimiters the sniffer
// considers; anything outside this set is never auto-detected.
var candidateDelimiters = []rune{',', '\t', '|', ';'}

// requiredKeywords is checked against the lowercased first row when
// deciding whether a header row is present.
var requiredKeywords = []string{"invoice", "vendor", "amount", "date", "number", "total", "tax"}

// EncodingGuess is the outcome of DetectEncoding.
type EncodingGuess struct {
	Name       string
	Confidence float64
	Decoder    *encoding.Decoder
}

// DetectEncoding probes the candidate set {utf-8, utf-16, ascii,
// iso-8859-1, windows-1252} and returns the first with high confidence,
// falling back to the first that decodes without error.
func DetectEncoding(data []byte) EncodingGuess {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		return EncodingGuess{Name: "utf-16", Confidence: 0.95, Decoder: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()}
	}
	if utf8.Valid(data) {
		if isASCII(data) {
			return EncodingGuess{Name: "ascii", Confidence: 0.9}
		}
		return EncodingGuess{Name: "utf-8", Confidence: 0.99}
	}
	// Neither ASCII nor valid UTF-8: fall back to the first decodable of
	// the remaining single-byte candidates. windows-1252 is a superset of
	// iso-8859-1 for printable ranges, so it is tried first.
	for _, cand := range []struct {
		name string
		enc  *charmap.Charmap
	}{
		{"windows-1252", charmap.Windows1252},
		{"iso-8859-1", charmap.ISO8859_1},
	} {
		if _, err := cand.enc.NewDecoder().Bytes(data); err == nil {
			return EncodingGuess{Name: cand.name, Confidence: 0.6, Decoder: cand.enc.NewDecoder()}
		}
	}
	return EncodingGuess{Name: "windows-1252", Confidence: 0.3, Decoder: charmap.Windows1252.NewDecoder()}
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b > 0x7F {
			return false
		}
	}
	return true
}

// DetectDelimiter restricts the sniff to the closed candidate set and
// picks the delimiter with the highest occurrence count across the
// first 10 non-empty lines.
func DetectDelimiter(lines []string) rune {
	sample := firstNonEmpty(lines, 10)
	best := candidateDelimiters[0]
	bestCount := -1
	for _, d := range candidateDelimiters {
		count := 0
		for _, line := range sample {
			count += strings.Count(line, string(d))
		}
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

func firstNonEmpty(lines []string, n int) []string {
	out := make([]string, 0, n)
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
		if len(out) == n {
			break
		}
	}
	return out
}

// HasHeader applies the two heuristics: the numeric-density flip between
// row 1 and row 2, or row 1 containing at least two known keywords.
func HasHeader(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}
	first := rows[0]
	firstNumericRatio := numericRatio(first)
	keywordHits := countKeywords(first)
	if keywordHits >= 2 {
		return true
	}
	if len(rows) < 2 {
		return firstNumericRatio < 0.5
	}
	secondNumericRatio := numericRatio(rows[1])
	return firstNumericRatio < 0.5 && secondNumericRatio >= 0.3
}

func numericRatio(row []string) float64 {
	if len(row) == 0 {
		return 0
	}
	numeric := 0
	for _, cell := range row {
		if looksNumeric(cell) {
			numeric++
		}
	}
	return float64(numeric) / float64(len(row))
}

func looksNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r == '.' || r == '-' || r == ',') {
			return false
		}
	}
	return true
}

func countKeywords(row []string) int {
	hits := 0
	for _, cell := range row {
		lower := strings.ToLower(strings.TrimSpace(cell))
		for _, kw := range requiredKeywords {
			if strings.Contains(lower, kw) {
				hits++
				break
			}
		}
	}
	return hits
}

// ColumnType is the detected logical type of a CSV column.
type ColumnType string

const (
	ColumnTypeNumeric ColumnType = "numeric"
	ColumnTypeDate    ColumnType = "date"
	ColumnTypeText    ColumnType = "text"
)

// GuessColumnTypes samples up to 20 data rows and classifies each column.
func GuessColumnTypes(rows [][]string) []ColumnType {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	sample := rows
	if len(sample) > 20 {
		sample = sample[:20]
	}
	types := make([]ColumnType, width)
	for col := 0; col < width; col++ {
		numeric, date, total := 0, 0, 0
		for _, row := range sample {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			total++
			if looksNumeric(cell) {
				numeric++
			} else if _, ok := ParseDate(cell); ok {
				date++
			}
		}
		switch {
		case total == 0:
			types[col] = ColumnTypeText
		case float64(numeric)/float64(total) >= 0.6:
			types[col] = ColumnTypeNumeric
		case float64(date)/float64(total) >= 0.6:
			types[col] = ColumnTypeDate
		default:
			types[col] = ColumnTypeText
		}
	}
	return types
}

// canonicalFieldKeywords maps a canonical field to the substrings its
// header name is matched against, in priority order.
var canonicalFieldKeywords = map[string][]string{
	"invoice_number": {"invoice_number", "invoice number", "invoice_no", "inv_number", "inv_no"},
	"vendor":         {"vendor_name", "vendor", "supplier"},
	"amount":         {"total_amount", "amount", "total"},
	"invoice_date":   {"invoice_date", "date"},
	"tax_amount":     {"tax_amount", "tax"},
	"subtotal":       {"subtotal", "sub_total"},
	"description":    {"description", "line_item", "item"},
	"po_reference":   {"po_reference", "po_number", "purchase_order"},
}

// SuggestMapping proposes a header-name to canonical-field mapping using
// rule-based keyword matching.
func SuggestMapping(headers []string) map[string]string {
	suggestion := make(map[string]string)
	assigned := make(map[string]bool)
	for _, header := range headers {
		lower := strings.ToLower(strings.TrimSpace(header))
		for field, keywords := range canonicalFieldKeywords {
			if assigned[field] {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					suggestion[header] = field
					assigned[field] = true
					break
				}
			}
		}
	}
	return suggestion
}

// RequiredCanonicalFields is stage 2's mandatory mapping target set.
var RequiredCanonicalFields = []string{"invoice_number", "vendor", "amount", "invoice_date"}

// ValidateMapping checks that every required canonical field appears as
// a target at least once in the operator-confirmed mapping.
func ValidateMapping(mapping map[string]string) []string {
	present := make(map[string]bool)
	for _, target := range mapping {
		present[target] = true
	}
	var missing []string
	for _, field := range RequiredCanonicalFields {
		if !present[field] {
			missing = append(missing, field)
		}
	}
	return missing
}
