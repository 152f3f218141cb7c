package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// notFound maps pgx.ErrNoRows onto ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// The indexer keeps ledger quantities as integer base units (NUMERIC(78,0)).
// They are selected as text and converted here.

func baseAmount(s string) (units.Amount, error) {
	d, err := units.ParseBaseUnits(s)
	if err != nil {
		return units.Amount{}, err
	}
	return units.NewAmount(d), nil
}

func baseShares(s string) (units.Shares, error) {
	d, err := units.ParseBaseUnits(s)
	if err != nil {
		return units.Shares{}, err
	}
	return units.NewShares(d), nil
}

// numeric renders a decimal for a NUMERIC parameter.
func numeric(d decimal.Decimal) string {
	return d.String()
}
