package ingestion

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const vendorCodeLen = 6

var randomSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateVendorCode takes the first six alphanumeric uppercase
// characters of name, padding with 'X' to at least three, then resolves
// collisions within the tenant by appending a two-digit counter from 02
// upward; after 99 collisions it falls back to a random three-character
// suffix.
func GenerateVendorCode(name string, exists func(code string) bool) string {
	base := alphanumericUpper(name)
	if len(base) > vendorCodeLen {
		base = base[:vendorCodeLen]
	}
	for len(base) < 3 {
		base += "X"
	}

	if !exists(base) {
		return base
	}
	for counter := 2; counter <= 99; counter++ {
		candidate := fmt.Sprintf("%s%02d", base, counter)
		if !exists(candidate) {
			return candidate
		}
	}
	return base + randomSuffix(3)
}

func alphanumericUpper(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("X", n)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = randomSuffixAlphabet[int(b)%len(randomSuffixAlphabet)]
	}
	return string(out)
}
