package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// TrustSnapshot is the last computed score set of a claim.
type TrustSnapshot struct {
	ClaimID        uuid.UUID    `json:"claim_id"`
	Score          float64      `json:"score"`
	Level          string       `json:"level"`
	Confidence     float64      `json:"confidence"`
	Momentum       float64      `json:"momentum"`
	SupportStake   units.Amount `json:"support_stake"`
	OpposeStake    units.Amount `json:"oppose_stake"`
	WeightedRatio  float64      `json:"weighted_ratio"`
	RawRatio       float64      `json:"raw_ratio"`
	CompositeScore float64      `json:"composite_score"`
	IsStable       bool         `json:"is_stable"`
	StableDays     int          `json:"stable_days"`
	PriceRetention float64      `json:"price_retention"`
	UniqueStakers  int          `json:"unique_stakers"`
	Tier           string       `json:"tier"`
	TierProgress   float64      `json:"tier_progress"`
	ComputedAt     time.Time    `json:"computed_at"`
}

// UpsertTrustSnapshot replaces the current snapshot of a claim and appends it
// to the history table in one transaction.
func (s *Store) UpsertTrustSnapshot(ctx context.Context, t TrustSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO trust_snapshots (
			claim_id, score, level, confidence, momentum, support_stake, oppose_stake,
			weighted_ratio, raw_ratio, composite_score, is_stable, stable_days,
			price_retention, unique_stakers, tier, tier_progress, computed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())
		ON CONFLICT (claim_id)
		DO UPDATE SET
			score = $2,
			level = $3,
			confidence = $4,
			momentum = $5,
			support_stake = $6::numeric,
			oppose_stake = $7::numeric,
			weighted_ratio = $8,
			raw_ratio = $9,
			composite_score = $10,
			is_stable = $11,
			stable_days = $12,
			price_retention = $13,
			unique_stakers = $14,
			tier = $15,
			tier_progress = $16,
			computed_at = $17,
			updated_at = now()
		WHERE trust_snapshots.computed_at <= $17`,
		t.ClaimID, t.Score, t.Level, t.Confidence, t.Momentum,
		numeric(t.SupportStake.Decimal), numeric(t.OpposeStake.Decimal),
		t.WeightedRatio, t.RawRatio, t.CompositeScore, t.IsStable, t.StableDays,
		t.PriceRetention, t.UniqueStakers, t.Tier, t.TierProgress, t.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert trust snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trust_snapshot_history (id, claim_id, score, composite_score, tier, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), t.ClaimID, t.Score, t.CompositeScore, t.Tier, t.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trust history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit trust snapshot: %w", err)
	}
	return nil
}

// GetTrustSnapshot fetches the current snapshot of a claim.
func (s *Store) GetTrustSnapshot(ctx context.Context, claimID uuid.UUID) (*TrustSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT claim_id, score, level, confidence, momentum, support_stake::text, oppose_stake::text,
		       weighted_ratio, raw_ratio, composite_score, is_stable, stable_days,
		       price_retention, unique_stakers, tier, tier_progress, computed_at
		FROM trust_snapshots
		WHERE claim_id = $1`, claimID)

	var (
		t               TrustSnapshot
		support, oppose string
	)
	err := row.Scan(&t.ClaimID, &t.Score, &t.Level, &t.Confidence, &t.Momentum, &support, &oppose,
		&t.WeightedRatio, &t.RawRatio, &t.CompositeScore, &t.IsStable, &t.StableDays,
		&t.PriceRetention, &t.UniqueStakers, &t.Tier, &t.TierProgress, &t.ComputedAt)
	if err != nil {
		return nil, notFound(err, "get trust snapshot")
	}
	if t.SupportStake, err = units.ParseAmount(support); err != nil {
		return nil, fmt.Errorf("snapshot support stake: %w", err)
	}
	if t.OpposeStake, err = units.ParseAmount(oppose); err != nil {
		return nil, fmt.Errorf("snapshot oppose stake: %w", err)
	}
	return &t, nil
}

// TrustHistoryPoint is one archived composite score.
type TrustHistoryPoint struct {
	Score          float64   `json:"score"`
	CompositeScore float64   `json:"composite_score"`
	Tier           string    `json:"tier"`
	ComputedAt     time.Time `json:"computed_at"`
}

// ListTrustHistory returns archived snapshots of a claim, newest first.
func (s *Store) ListTrustHistory(ctx context.Context, claimID uuid.UUID, limit int) ([]TrustHistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT score, composite_score, tier, computed_at
		FROM trust_snapshot_history
		WHERE claim_id = $1
		ORDER BY computed_at DESC
		LIMIT $2`, claimID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trust history: %w", err)
	}
	defer rows.Close()

	var out []TrustHistoryPoint
	for rows.Next() {
		var p TrustHistoryPoint
		if err := rows.Scan(&p.Score, &p.CompositeScore, &p.Tier, &p.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan trust history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
