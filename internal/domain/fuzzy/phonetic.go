package fuzzy

import "strings"

// soundexCode implements the classic Soundex algorithm: first letter kept,
// subsequent letters mapped to digit groups, duplicates collapsed, padded
// or truncated to four characters.
func soundexCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	var letters []rune
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return "0000"
	}

	code := map[rune]byte{
		'B': '1', 'F': '1', 'P': '1', 'V': '1',
		'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
		'D': '3', 'T': '3',
		'L': '4',
		'M': '5', 'N': '5',
		'R': '6',
	}

	result := []byte{byte(letters[0])}
	lastDigit := code[letters[0]]
	for _, r := range letters[1:] {
		d, ok := code[r]
		if !ok {
			lastDigit = 0
			continue
		}
		if d != lastDigit {
			result = append(result, d)
		}
		lastDigit = d
		if len(result) == 4 {
			break
		}
	}
	for len(result) < 4 {
		result = append(result, '0')
	}
	return string(result[:4])
}

// PhoneticMatch returns 1.0 if the soundex codes of a and b are equal,
// else 0.0.
func PhoneticMatch(a, b string) float64 {
	if soundexCode(a) == soundexCode(b) {
		return 1.0
	}
	return 0.0
}
