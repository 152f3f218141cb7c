package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/reputation"
	"github.com/MikeSquared-Agency/arbiter/internal/tier"
)

func TestDefaultParams_Valid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestLoadParams_EmptyPathReturnsDefaults(t *testing.T) {
	p, err := LoadParams("")
	require.NoError(t, err)
	assert.True(t, p.Curve.BasePrice.Equal(curve.DefaultConfig().BasePrice.Decimal))
	assert.Equal(t, tier.DefaultConfig().Gold.Stakers, p.Tier.Gold.Stakers)
}

func TestLoadParams_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	yml := `
curve:
  base_price: "0.02"
  fee_rate: "0.03"
trust:
  momentum_window: 12h
reputation:
  decay:
    half_life: 360h
  composite:
    dump_threshold: "2500.5"
tier:
  gold:
    stakers: 40
    stake: "1000"
    ratio: 70
    age_days: 30
exit_guard:
  whale_threshold: "0.1"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	p, err := LoadParams(path)
	require.NoError(t, err)

	assert.Equal(t, "0.02", p.Curve.BasePrice.String())
	assert.Equal(t, "0.03", p.Curve.FeeRate.String())
	// untouched keys keep their defaults
	assert.True(t, p.Curve.Slope.Equal(decimal.RequireFromString("0.0001")))
	assert.Equal(t, 50, p.Curve.Steps)
	assert.Equal(t, 12*time.Hour, p.Trust.MomentumWindow)
	assert.Equal(t, 15*24*time.Hour, p.Reputation.Decay.HalfLife)
	assert.Equal(t, "2500.5", p.Reputation.Composite.DumpThreshold.String())
	assert.Equal(t, reputation.DefaultCompositeConfig().Weights, p.Reputation.Composite.Weights)
	assert.Equal(t, 40, p.Tier.Gold.Stakers)
	assert.Equal(t, 100, p.Tier.Diamond.Stakers)
	assert.Equal(t, "0.1", p.ExitGuard.WhaleThreshold.String())
}

func TestLoadParams_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"negative slope", "curve:\n  slope: \"-1\"\n"},
		{"weights off", "reputation:\n  composite:\n    weights:\n      signal_ratio: 0.9\n"},
		{"unordered tiers", "tier:\n  silver:\n    stakers: 1\n"},
		{"bad fraction", "exit_guard:\n  max_supply_fraction: \"1.5\"\n"},
		{"not yaml", "curve: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			assert.Error(t, ParseParams([]byte(tt.yml), &p))
		})
	}
}

func TestLoadParams_MissingFile(t *testing.T) {
	_, err := LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
