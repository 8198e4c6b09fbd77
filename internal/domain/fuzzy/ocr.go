package fuzzy

import "strings"

// MaxOCRVariants bounds the variant generator so that pathological inputs
// can never cause a combinatorial explosion.
const MaxOCRVariants = 5

// maxOCRInputLen short-circuits generation for long inputs, since OCR
// confusions are a small-token phenomenon (vendor codes, invoice numbers)
// and not worth the cost on free text.
const maxOCRInputLen = 50

// ocrSubstitutions is the fixed confusion table used to generate
// plausible OCR misreadings of a string.
var ocrSubstitutions = map[string][]string{
	"0":  {"O", "o", "Q", "D"},
	"O":  {"0", "Q", "D"},
	"1":  {"I", "l", "|", "i"},
	"I":  {"1", "l", "|", "i"},
	"2":  {"Z"},
	"Z":  {"2"},
	"5":  {"S", "s"},
	"S":  {"5", "s"},
	"6":  {"G", "b"},
	"G":  {"6", "b"},
	"8":  {"B"},
	"B":  {"8"},
	"rn": {"m"},
	"m":  {"rn"},
	"cl": {"d"},
	"d":  {"cl"},
}

// GenerateOCRVariants yields up to MaxOCRVariants single-substitution
// variants of text using the confusion table, plus the lowercase form of
// text itself. Inputs longer than maxOCRInputLen, or empty, are returned
// unchanged as the sole element.
func GenerateOCRVariants(text string) []string {
	if text == "" || len(text) > maxOCRInputLen {
		return []string{text}
	}

	variants := map[string]struct{}{text: {}}
	variants[strings.ToLower(text)] = struct{}{}

	// Try two-character substitutions first (rn/cl) then single-character,
	// matching the original's iteration order.
	for key, subs := range ocrSubstitutions {
		if len(key) != 2 {
			continue
		}
		idx := strings.Index(text, key)
		if idx < 0 {
			continue
		}
		for _, sub := range subs[:min(2, len(subs))] {
			variants[text[:idx]+sub+text[idx+len(key):]] = struct{}{}
			if len(variants) >= MaxOCRVariants {
				break
			}
		}
	}

	for i, r := range text {
		if len(variants) >= MaxOCRVariants {
			break
		}
		key := string(r)
		subs, ok := ocrSubstitutions[key]
		if !ok {
			continue
		}
		for _, sub := range subs[:min(2, len(subs))] {
			variants[text[:i]+sub+text[i+len(key):]] = struct{}{}
			if len(variants) >= MaxOCRVariants {
				break
			}
		}
	}

	out := make([]string, 0, len(variants))
	for v := range variants {
		out = append(out, v)
		if len(out) >= MaxOCRVariants {
			break
		}
	}
	return out
}
