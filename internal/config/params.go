package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/exitguard"
	"github.com/MikeSquared-Agency/arbiter/internal/reputation"
	"github.com/MikeSquared-Agency/arbiter/internal/tier"
	"github.com/MikeSquared-Agency/arbiter/internal/trust"
)

// Params carries every pricing and scoring constant. It is loaded once at
// startup and handed to each component constructor.
type Params struct {
	Curve      curve.Config      `yaml:"curve"`
	Trust      trust.Config      `yaml:"trust"`
	Reputation reputation.Config `yaml:"reputation"`
	Tier       tier.Config       `yaml:"tier"`
	ExitGuard  exitguard.Config  `yaml:"exit_guard"`
}

func DefaultParams() Params {
	return Params{
		Curve:      curve.DefaultConfig(),
		Trust:      trust.DefaultConfig(),
		Reputation: reputation.DefaultConfig(),
		Tier:       tier.DefaultConfig(),
		ExitGuard:  exitguard.DefaultConfig(),
	}
}

// Validate runs every component's own validation.
func (p Params) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"curve", p.Curve.Validate},
		{"trust", p.Trust.Validate},
		{"reputation.decay", p.Reputation.Decay.Validate},
		{"reputation.composite", p.Reputation.Composite.Validate},
		{"tier", p.Tier.Validate},
		{"exit_guard", p.ExitGuard.Validate},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// LoadParams overlays the YAML file at path onto DefaultParams. An empty path
// returns the defaults.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read params file: %w", err)
	}
	if err := ParseParams(data, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// ParseParams decodes data over p and validates the result.
func ParseParams(data []byte, p *Params) error {
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parse params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validate params: %w", err)
	}
	return nil
}
