package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/arbiter/internal/hermes"
	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/reputation"
	"github.com/MikeSquared-Agency/arbiter/internal/store"
	"github.com/MikeSquared-Agency/arbiter/internal/tier"
	"github.com/MikeSquared-Agency/arbiter/internal/trust"
)

// handlerTimeout bounds one event-driven rescoring.
const handlerTimeout = 30 * time.Second

// Store is the slice of the database the processor needs.
type Store interface {
	GetClaim(ctx context.Context, id uuid.UUID) (ledger.Claim, error)
	ListSignals(ctx context.Context, claimID uuid.UUID) ([]ledger.Signal, error)
	ListStaleClaims(ctx context.Context, limit int) ([]uuid.UUID, error)
	UpsertTrustSnapshot(ctx context.Context, t store.TrustSnapshot) error
}

// Publisher sends score updates. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Engines are the scoring components, built once from config.Params.
type Engines struct {
	Trust      *trust.Engine
	Reputation *reputation.Engine
	Tier       *tier.Classifier
}

// Scores is everything computed for one claim at one instant.
type Scores struct {
	ClaimID       uuid.UUID             `json:"claim_id"`
	Simple        trust.Result          `json:"simple"`
	Reputation    reputation.Evaluation `json:"reputation"`
	Tier          tier.Assessment       `json:"tier"`
	UniqueStakers int                   `json:"unique_stakers"`
	AgeDays       int                   `json:"age_days"`
	ComputedAt    time.Time             `json:"computed_at"`
}

// Processor runs the rescoring pipeline: load a claim and its history,
// score it, persist the snapshot and publish the update.
type Processor struct {
	store     Store
	publisher Publisher
	engines   Engines
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*claimLock
}

type claimLock struct {
	mu   sync.Mutex
	refs int
}

func New(s Store, pub Publisher, engines Engines, logger *slog.Logger) *Processor {
	return &Processor{
		store:     s,
		publisher: pub,
		engines:   engines,
		logger:    logger,
		now:       time.Now,
		locks:     make(map[uuid.UUID]*claimLock),
	}
}

// Score runs every engine over one claim snapshot. It does no I/O.
func (p *Processor) Score(claim ledger.Claim, signals []ledger.Signal, now time.Time) (Scores, error) {
	simple, err := p.engines.Trust.CalculateTrustScoreFromHistory(signals, now)
	if err != nil {
		return Scores{}, fmt.Errorf("score claim %s: %w", claim.ID, err)
	}
	stakers := ledger.UniqueAccounts(signals)

	eval, err := p.engines.Reputation.Evaluate(reputation.EvaluationInput{
		Signals:       signals,
		UniqueStakers: stakers,
		SupportSupply: claim.SupportSupply,
		Now:           now,
	})
	if err != nil {
		return Scores{}, fmt.Errorf("score claim %s: %w", claim.ID, err)
	}

	age := 0
	if !claim.CreatedAt.IsZero() && now.After(claim.CreatedAt) {
		age = int(now.Sub(claim.CreatedAt) / (24 * time.Hour))
	}

	assessment := p.engines.Tier.Assess(tier.Input{
		Stakers:    stakers,
		TotalStake: simple.TotalStake,
		TrustRatio: eval.Weighted.WeightedRatio,
		AgeDays:    age,
	})

	return Scores{
		ClaimID:       claim.ID,
		Simple:        simple,
		Reputation:    eval,
		Tier:          assessment,
		UniqueStakers: stakers,
		AgeDays:       age,
		ComputedAt:    now,
	}, nil
}

// Evaluate loads a claim and scores it without persisting anything.
func (p *Processor) Evaluate(ctx context.Context, claimID uuid.UUID) (Scores, error) {
	claim, signals, err := p.load(ctx, claimID)
	if err != nil {
		return Scores{}, err
	}
	return p.Score(claim, signals, p.now().UTC())
}

// Rescore scores a claim, stores the snapshot and publishes it. Calls for the
// same claim are serialized so snapshots are written in order.
func (p *Processor) Rescore(ctx context.Context, claimID uuid.UUID) (Scores, error) {
	unlock := p.lock(claimID)
	defer unlock()

	claim, signals, err := p.load(ctx, claimID)
	if err != nil {
		return Scores{}, err
	}
	scores, err := p.Score(claim, signals, p.now().UTC())
	if err != nil {
		return Scores{}, err
	}

	if err := p.store.UpsertTrustSnapshot(ctx, snapshot(scores)); err != nil {
		return Scores{}, fmt.Errorf("store snapshot for %s: %w", claimID, err)
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(hermes.SubjectTrustUpdated, event(scores)); err != nil {
			p.logger.Error("failed to publish trust update", "claim_id", claimID, "error", err)
		}
	}

	p.logger.Info("claim rescored",
		"claim_id", claimID,
		"score", scores.Simple.Score,
		"composite", scores.Reputation.Composite.Score,
		"tier", scores.Tier.Tier.String(),
		"signals", scores.Reputation.Weighted.TotalSignalsCount,
	)
	return scores, nil
}

// HandleSignalIndexed is the NATS handler for indexer.signal.indexed.
func (p *Processor) HandleSignalIndexed(subject string, data []byte) {
	var evt hermes.SignalIndexedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse signal event", "subject", subject, "error", err)
		return
	}

	claimID, err := uuid.Parse(evt.ClaimID)
	if err != nil {
		p.logger.Error("invalid claim id", "claim_id", evt.ClaimID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := p.Rescore(ctx, claimID); err != nil {
		p.logger.Error("rescore failed", "claim_id", claimID, "error", err)
	}
}

// Sweep rescores up to limit claims, least recently scored first. It returns
// how many succeeded; individual failures are logged and skipped.
func (p *Processor) Sweep(ctx context.Context, limit int) (int, error) {
	ids, err := p.store.ListStaleClaims(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list claims to rescore: %w", err)
	}

	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := p.Rescore(ctx, id); err != nil {
			p.logger.Warn("sweep rescore failed", "claim_id", id, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (p *Processor) load(ctx context.Context, claimID uuid.UUID) (ledger.Claim, []ledger.Signal, error) {
	claim, err := p.store.GetClaim(ctx, claimID)
	if err != nil {
		return ledger.Claim{}, nil, err
	}
	signals, err := p.store.ListSignals(ctx, claimID)
	if err != nil {
		return ledger.Claim{}, nil, err
	}
	return claim, signals, nil
}

// lock takes the per-claim mutex and returns its release. Entries are dropped
// once nobody holds or waits on them.
func (p *Processor) lock(claimID uuid.UUID) func() {
	p.mu.Lock()
	l, ok := p.locks[claimID]
	if !ok {
		l = &claimLock{}
		p.locks[claimID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, claimID)
		}
		p.mu.Unlock()
	}
}

func snapshot(s Scores) store.TrustSnapshot {
	return store.TrustSnapshot{
		ClaimID:        s.ClaimID,
		Score:          s.Simple.Score,
		Level:          string(s.Simple.Level),
		Confidence:     s.Simple.Confidence,
		Momentum:       s.Simple.Momentum,
		SupportStake:   s.Simple.SupportStake,
		OpposeStake:    s.Simple.OpposeStake,
		WeightedRatio:  s.Reputation.Weighted.WeightedRatio,
		RawRatio:       s.Reputation.Weighted.RawRatio,
		CompositeScore: s.Reputation.Composite.Score,
		IsStable:       s.Reputation.Composite.IsStable,
		StableDays:     s.Reputation.StableDays,
		PriceRetention: s.Reputation.Composite.PriceRetentionRatio,
		UniqueStakers:  s.UniqueStakers,
		Tier:           s.Tier.Tier.String(),
		TierProgress:   s.Tier.Progress,
		ComputedAt:     s.ComputedAt,
	}
}

func event(s Scores) hermes.TrustUpdatedEvent {
	return hermes.TrustUpdatedEvent{
		ClaimID:        s.ClaimID.String(),
		Score:          s.Simple.Score,
		Level:          string(s.Simple.Level),
		Confidence:     s.Simple.Confidence,
		Momentum:       s.Simple.Momentum,
		WeightedRatio:  s.Reputation.Weighted.WeightedRatio,
		CompositeScore: s.Reputation.Composite.Score,
		IsStable:       s.Reputation.Composite.IsStable,
		Tier:           s.Tier.Tier.String(),
		TierProgress:   s.Tier.Progress,
		ComputedAt:     s.ComputedAt,
	}
}
