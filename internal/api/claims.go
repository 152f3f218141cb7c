package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/exitguard"
	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/store"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	exitWindow          = 24 * time.Hour
)

// ExitLimitResponse is the daily sell allowance of one account.
type ExitLimitResponse struct {
	Account   string                `json:"account"`
	Position  units.Shares          `json:"position"`
	Limit     exitguard.ExitLimit   `json:"limit"`
	SoldToday units.Shares          `json:"sold_today"`
	Remaining units.Shares          `json:"remaining"`
	Loyalty   exitguard.LoyaltyInfo `json:"loyalty"`
}

// getTrust handles GET /api/v1/claims/{id}/trust
func (s *Server) getTrust(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	scores, err := s.opts.Scorer.Evaluate(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "evaluate trust")
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// getTrustSnapshot handles GET /api/v1/claims/{id}/trust/snapshot, the last
// persisted scores.
func (s *Server) getTrustSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	snap, err := s.opts.Ledger.GetTrustSnapshot(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "get trust snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// getTrustHistory handles GET /api/v1/claims/{id}/trust/history?limit=
func (s *Server) getTrustHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	points, err := s.opts.Ledger.ListTrustHistory(r.Context(), id, limit)
	if err != nil {
		s.storeError(w, err, "list trust history")
		return
	}
	if points == nil {
		points = []store.TrustHistoryPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": points, "count": len(points)})
}

// rescore handles POST /api/v1/claims/{id}/rescore
func (s *Server) rescore(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	scores, err := s.opts.Scorer.Rescore(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "rescore")
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// previewBuy handles GET /api/v1/claims/{id}/{side}/buy?amount=
func (s *Server) previewBuy(w http.ResponseWriter, r *http.Request) {
	amount, err := units.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	supply, ok := s.supply(w, r)
	if !ok {
		return
	}
	preview, err := s.opts.Curve.CalculateBuy(amount, supply)
	if err != nil {
		s.curveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// previewSell handles GET /api/v1/claims/{id}/{side}/sell?shares=
func (s *Server) previewSell(w http.ResponseWriter, r *http.Request) {
	shares, err := units.ParseShares(r.URL.Query().Get("shares"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	supply, ok := s.supply(w, r)
	if !ok {
		return
	}
	preview, err := s.opts.Curve.CalculateSell(shares, supply)
	if err != nil {
		s.curveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// curveData handles GET /api/v1/claims/{id}/{side}/curve
func (s *Server) curveData(w http.ResponseWriter, r *http.Request) {
	supply, ok := s.supply(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"supply":        supply,
		"current_price": s.opts.Curve.Price(supply),
		"points":        s.opts.Curve.CurveData(supply),
	})
}

// exitLimit handles GET /api/v1/claims/{id}/{side}/exit-limit?account=
func (s *Server) exitLimit(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	side, ok := claimSide(w, r)
	if !ok {
		return
	}
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	ctx := r.Context()
	claim, err := s.opts.Ledger.GetClaim(ctx, id)
	if err != nil {
		s.storeError(w, err, "get claim")
		return
	}
	pos, err := s.opts.Ledger.GetPosition(ctx, id, side, account)
	if err != nil {
		s.storeError(w, err, "get position")
		return
	}

	now := s.now()
	sold, err := s.opts.Ledger.SoldSince(ctx, id, side, account, now.Add(-exitWindow))
	if err != nil {
		s.storeError(w, err, "sum sold shares")
		return
	}

	// the allowance is measured against the position held before today's sells
	held := units.NewShares(pos.Shares.Add(sold.Decimal))
	limit, err := s.opts.Guard.GetMaxDailySell(held, claim.Supply(side))
	if err != nil {
		s.storeError(w, err, "compute exit limit")
		return
	}

	writeJSON(w, http.StatusOK, ExitLimitResponse{
		Account:   account,
		Position:  pos.Shares,
		Limit:     limit,
		SoldToday: sold,
		Remaining: minShares(exitguard.RemainingDailySell(limit, sold), pos.Shares),
		Loyalty:   exitguard.GetLoyaltyMultiplier(pos.StakedSince, now),
	})
}

// listSellReasons handles GET /api/v1/sell-reasons
func (s *Server) listSellReasons(w http.ResponseWriter, r *http.Request) {
	reasons := exitguard.SellReasons()
	out := make([]exitguard.SellReasonConfig, 0, len(reasons))
	for _, reason := range reasons {
		out = append(out, exitguard.GetSellReasonConfig(reason))
	}
	writeJSON(w, http.StatusOK, out)
}

// getSellReason handles GET /api/v1/sell-reasons/{reason}
func (s *Server) getSellReason(w http.ResponseWriter, r *http.Request) {
	reason, err := exitguard.ParseSellReason(chi.URLParam(r, "reason"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exitguard.GetSellReasonConfig(reason))
}

func (s *Server) supply(w http.ResponseWriter, r *http.Request) (units.Shares, bool) {
	id, ok := claimID(w, r)
	if !ok {
		return units.Shares{}, false
	}
	side, ok := claimSide(w, r)
	if !ok {
		return units.Shares{}, false
	}
	claim, err := s.opts.Ledger.GetClaim(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "get claim")
		return units.Shares{}, false
	}
	return claim.Supply(side), true
}

func (s *Server) storeError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func (s *Server) curveError(w http.ResponseWriter, err error) {
	if errors.Is(err, curve.ErrNegativeAmount) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("curve quote failed", "error", err)
	writeError(w, http.StatusInternalServerError, "quote failed")
}

func claimID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return uuid.Nil, false
	}
	return id, true
}

func claimSide(w http.ResponseWriter, r *http.Request) (ledger.Side, bool) {
	side, err := ledger.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return side, true
}

func minShares(a, b units.Shares) units.Shares {
	if a.LessThan(b.Decimal) {
		return a
	}
	return b
}
