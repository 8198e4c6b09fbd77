package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinRatioExact(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinRatio("ACME", "ACME"))
}

func TestLevenshteinRatioPartial(t *testing.T) {
	r := LevenshteinRatio("ACME Corp", "ACME Corportaion")
	assert.Greater(t, r, 0.5)
	assert.Less(t, r, 1.0)
}

func TestTokenSortRatioIgnoresOrder(t *testing.T) {
	r := TokenSortRatio("Corp Acme", "Acme Corp")
	assert.Equal(t, 1.0, r)
}

func TestTokenSetRatioHandlesDuplicates(t *testing.T) {
	r := TokenSetRatio("Acme Acme Corp", "Acme Corp")
	assert.Greater(t, r, 0.9)
}

func TestPhoneticMatch(t *testing.T) {
	assert.Equal(t, 1.0, PhoneticMatch("Robert", "Rupert"))
	assert.Equal(t, 0.0, PhoneticMatch("Robert", "Ashcraft"))
}

func TestComposite(t *testing.T) {
	r := Composite("ACME Corporation", "ACME Corporation")
	assert.Equal(t, 1.0, r)
}

func TestGenerateOCRVariantsBounded(t *testing.T) {
	variants := GenerateOCRVariants("INV00158")
	assert.LessOrEqual(t, len(variants), MaxOCRVariants)
	assert.Contains(t, variants, "INV00158")
}

func TestGenerateOCRVariantsShortCircuitsLongInput(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "a"
	}
	variants := GenerateOCRVariants(long)
	assert.Equal(t, []string{long}, variants)
}

func TestGenerateOCRVariantsEmpty(t *testing.T) {
	assert.Equal(t, []string{""}, GenerateOCRVariants(""))
}

func TestBestVendorMatch(t *testing.T) {
	candidates := []string{"ACME Corporation", "Beta Industries"}
	best, score := BestVendorMatch("ACME Corp0ration", candidates)
	assert.Equal(t, "ACME Corporation", best)
	assert.Greater(t, score, 0.8)
}

func TestFitCorpusAndBestMatch(t *testing.T) {
	corpus := FitCorpus([]string{"ACME Corporation", "Beta Industries", "Gamma LLC"})
	idx, score := corpus.BestMatch("ACME Corporation")
	assert.Equal(t, 0, idx)
	assert.Greater(t, score, 0.0)
}

func TestTFIDFSimilarityOnlyMatchesBestCandidate(t *testing.T) {
	corpus := FitCorpus([]string{"ACME Corporation", "Beta Industries"})
	assert.Greater(t, TFIDFSimilarity(corpus, "ACME Corporation", "ACME Corporation"), 0.0)
	assert.Equal(t, 0.0, TFIDFSimilarity(corpus, "ACME Corporation", "Beta Industries"))
}
