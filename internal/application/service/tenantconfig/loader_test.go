package tenantconfig

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicereconcile/core/internal/apperr"
)

func TestLoadFallsBackToDefaults(t *testing.T) {
	loader := NewLoader(nil)
	cfg, err := loader.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, cfg.FuzzyEnabled)
	assert.Equal(t, 4, cfg.MaxConcurrentJobs)
}

func TestValidateRejectsBadThresholdOrder(t *testing.T) {
	cfg := defaultConfig(uuid.New())
	cfg.ManualReviewThreshold = decimal.NewFromFloat(0.9)
	cfg.AutoApproveThreshold = decimal.NewFromFloat(0.5)
	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidConfig))
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := defaultConfig(uuid.New())
	cfg.WeightAmount = decimal.NewFromFloat(0.9)
	err := Validate(cfg)
	require.Error(t, err)
}
