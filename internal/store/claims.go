package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// GetClaim fetches a claim with the current supply of both vaults.
func (s *Store) GetClaim(ctx context.Context, id uuid.UUID) (ledger.Claim, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, created_at, support_supply::text, oppose_supply::text
		FROM claims WHERE id = $1`, id)

	var (
		c               ledger.Claim
		support, oppose string
	)
	if err := row.Scan(&c.ID, &c.CreatedAt, &support, &oppose); err != nil {
		return ledger.Claim{}, notFound(err, "get claim")
	}

	var err error
	if c.SupportSupply, err = baseShares(support); err != nil {
		return ledger.Claim{}, fmt.Errorf("claim %s support supply: %w", id, err)
	}
	if c.OpposeSupply, err = baseShares(oppose); err != nil {
		return ledger.Claim{}, fmt.Errorf("claim %s oppose supply: %w", id, err)
	}
	return c, nil
}

// ListStaleClaims returns up to limit claim IDs, those never scored or scored
// longest ago first.
func (s *Store) ListStaleClaims(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id
		FROM claims c
		LEFT JOIN trust_snapshots t ON t.claim_id = c.id
		ORDER BY t.computed_at ASC NULLS FIRST, c.created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale claims: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claim id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSignals returns the full deposit/redemption history of a claim in time order.
func (s *Store) ListSignals(ctx context.Context, claimID uuid.UUID) ([]ledger.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT created_at, side, COALESCE(account, ''), amount::text, shares::text, is_deposit
		FROM stake_signals
		WHERE claim_id = $1
		ORDER BY created_at ASC, id ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []ledger.Signal
	for rows.Next() {
		var (
			sig            ledger.Signal
			side           string
			amount, shares string
		)
		if err := rows.Scan(&sig.Timestamp, &side, &sig.Account, &amount, &shares, &sig.IsDeposit); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if sig.Side, err = ledger.ParseSide(side); err != nil {
			return nil, fmt.Errorf("signal side: %w", err)
		}
		if sig.Amount, err = baseAmount(amount); err != nil {
			return nil, fmt.Errorf("signal amount: %w", err)
		}
		if sig.Shares, err = baseShares(shares); err != nil {
			return nil, fmt.Errorf("signal shares: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// GetPosition fetches one account's holding in a vault.
func (s *Store) GetPosition(ctx context.Context, claimID uuid.UUID, side ledger.Side, account string) (ledger.Position, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT shares::text, staked_since
		FROM positions
		WHERE claim_id = $1 AND side = $2 AND account = $3`,
		claimID, string(side), account,
	)

	p := ledger.Position{ClaimID: claimID, Side: side, Account: account}
	var shares string
	if err := row.Scan(&shares, &p.StakedSince); err != nil {
		return ledger.Position{}, notFound(err, "get position")
	}
	var err error
	if p.Shares, err = baseShares(shares); err != nil {
		return ledger.Position{}, fmt.Errorf("position shares: %w", err)
	}
	return p, nil
}

// SoldSince sums the shares an account redeemed from a vault after since.
func (s *Store) SoldSince(ctx context.Context, claimID uuid.UUID, side ledger.Side, account string, since time.Time) (units.Shares, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(shares), 0)::text
		FROM stake_signals
		WHERE claim_id = $1 AND side = $2 AND account = $3
		  AND is_deposit = false AND created_at > $4`,
		claimID, string(side), account, since,
	).Scan(&total)
	if err != nil {
		return units.Shares{}, fmt.Errorf("sum sold shares: %w", err)
	}
	return baseShares(total)
}
