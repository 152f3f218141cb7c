package store

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

func TestNotFound(t *testing.T) {
	err := notFound(pgx.ErrNoRows, "get claim")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	other := errors.New("connection reset")
	err = notFound(other, "get claim")
	if errors.Is(err, ErrNotFound) {
		t.Error("unexpected ErrNotFound for a connection error")
	}
	if !errors.Is(err, other) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestBaseUnitConversion(t *testing.T) {
	s, err := baseShares("1500000000000000000")
	if err != nil {
		t.Fatalf("baseShares: %v", err)
	}
	if !s.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected 1.5, got %s", s)
	}

	a, err := baseAmount("1")
	if err != nil {
		t.Fatalf("baseAmount: %v", err)
	}
	if a.String() != "0.000000000000000001" {
		t.Errorf("expected one wei, got %s", a)
	}

	if _, err := baseAmount("1.5"); !errors.Is(err, units.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for fractional base units, got %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(entries))
	}
	for _, e := range entries {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if !strings.Contains(string(data), "IF NOT EXISTS") {
			t.Errorf("migration %s is not idempotent", e.Name())
		}
	}
}
