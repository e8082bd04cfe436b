package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Cyberenchanter/insurance-protocol/internal/core"
	"github.com/Cyberenchanter/insurance-protocol/internal/policy"
	"github.com/Cyberenchanter/insurance-protocol/internal/pool"
	"github.com/Cyberenchanter/insurance-protocol/internal/registry"
	"github.com/Cyberenchanter/insurance-protocol/internal/treasury"
)

type stakeRequest struct {
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

type stakeResponse struct {
	SharesMinted int64 `json:"shares_minted"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}
	provider, ok := parseUUID(w, req.Provider, "provider")
	if !ok {
		return
	}

	minted, err := s.engine.Stake(r.Context(), provider, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stakeResponse{SharesMinted: minted})
}

type unstakeRequest struct {
	Provider string `json:"provider"`
	Shares   int64  `json:"shares"`
}

type unstakeResponse struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req unstakeRequest
	if !decode(w, r, &req) {
		return
	}
	provider, ok := parseUUID(w, req.Provider, "provider")
	if !ok {
		return
	}

	amount, err := s.engine.Unstake(r.Context(), provider, req.Shares)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unstakeResponse{Amount: amount})
}

type purchaseRequest struct {
	Customer   string `json:"customer"`
	ProductID  int64  `json:"product_id"`
	PaidAmount int64  `json:"paid_amount"`
}

type purchaseResponse struct {
	PolicyID int64 `json:"policy_id"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decode(w, r, &req) {
		return
	}
	customer, ok := parseUUID(w, req.Customer, "customer")
	if !ok {
		return
	}

	policyID, err := s.engine.PurchasePolicy(r.Context(), customer, req.ProductID, req.PaidAmount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchaseResponse{PolicyID: policyID})
}

type claimResponse struct {
	Settled bool `json:"settled"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	policyID, ok := parseID(w, chi.URLParam(r, "policyID"), "policy id")
	if !ok {
		return
	}

	settled, err := s.engine.AttemptClaim(r.Context(), policyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Settled: settled})
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	policyID, ok := parseID(w, chi.URLParam(r, "policyID"), "policy id")
	if !ok {
		return
	}

	if err := s.engine.ProcessExpiry(r.Context(), policyID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "expired"})
}

type poolResponse struct {
	TotalShares       int64 `json:"total_shares"`
	TotalLiquidity    int64 `json:"total_liquidity"`
	TotalLocked       int64 `json:"total_locked"`
	MaxUtilizationPct int64 `json:"max_utilization_pct"`
}

func (s *Server) handlePoolTotals(w http.ResponseWriter, r *http.Request) {
	t := s.engine.PoolTotals()
	writeJSON(w, http.StatusOK, poolResponse{
		TotalShares:       t.TotalShares,
		TotalLiquidity:    t.TotalLiquidity,
		TotalLocked:       t.TotalLocked,
		MaxUtilizationPct: s.engine.MaxUtilizationPct(),
	})
}

type productResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Premium    int64  `json:"premium"`
	Liability  int64  `json:"liability"`
	DurationMS int64  `json:"duration_ms"`
}

func productToResponse(p registry.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		Premium:    p.Premium,
		Liability:  p.Liability,
		DurationMS: p.Duration.Milliseconds(),
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products := s.engine.Products()
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productToResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(w, chi.URLParam(r, "productID"), "product id")
	if !ok {
		return
	}

	p, err := s.engine.Product(productID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(p))
}

type policyResponse struct {
	ID         int64     `json:"id"`
	Customer   string    `json:"customer"`
	ProductID  int64     `json:"product_id"`
	StartTime  time.Time `json:"start_time"`
	ExpiryTime time.Time `json:"expiry_time"`
	State      string    `json:"state"`
	IsClaimed  bool      `json:"is_claimed"`
	IsActive   bool      `json:"is_active"`
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := parseID(w, chi.URLParam(r, "policyID"), "policy id")
	if !ok {
		return
	}

	p, err := s.engine.Policy(policyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse{
		ID:         p.ID,
		Customer:   p.Customer.String(),
		ProductID:  p.ProductID,
		StartTime:  p.StartTime,
		ExpiryTime: p.ExpiryTime,
		State:      p.State().String(),
		IsClaimed:  p.IsClaimed,
		IsActive:   p.IsActive,
	})
}

type providerSharesResponse struct {
	Shares             int64 `json:"shares"`
	WithdrawableShares int64 `json:"withdrawable_shares"`
	RedeemableValue    int64 `json:"redeemable_value"`
}

func (s *Server) handleProviderShares(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseUUID(w, chi.URLParam(r, "providerID"), "provider id")
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, providerSharesResponse{
		Shares:             s.engine.SharesOf(provider),
		WithdrawableShares: s.engine.WithdrawableSharesOf(provider),
		RedeemableValue:    s.engine.RedeemableValueOf(provider),
	})
}

type eventResponse struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid since parameter"))
			return
		}
		since = parsed
	}

	out := make([]eventResponse, 0)
	for _, env := range s.events.Events() {
		if env.Sequence <= since {
			continue
		}
		out = append(out, eventResponse{
			Sequence:  env.Sequence,
			EventType: env.Type.String(),
			Timestamp: env.Timestamp,
			Payload:   env.Payload,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+field))
		return uuid.UUID{}, false
	}
	return id, true
}

func parseID(w http.ResponseWriter, raw, field string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+field))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps domain errors to HTTP status codes. The error kind is
// part of the public contract, so the body carries a stable code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	type errorResponse struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}

	var status int
	var code string

	switch {
	case errors.Is(err, registry.ErrInvalidProduct):
		status, code = http.StatusNotFound, "invalid_product"
	case errors.Is(err, policy.ErrPolicyNotFound):
		status, code = http.StatusNotFound, "policy_not_found"
	case errors.Is(err, pool.ErrZeroAmount):
		status, code = http.StatusBadRequest, "zero_amount"
	case errors.Is(err, pool.ErrZeroShares):
		status, code = http.StatusBadRequest, "zero_shares"
	case errors.Is(err, core.ErrPremiumTooLow):
		status, code = http.StatusBadRequest, "premium_too_low"
	case errors.Is(err, pool.ErrPoolDrained):
		status, code = http.StatusUnprocessableEntity, "pool_drained"
	case errors.Is(err, pool.ErrInsufficientShares):
		status, code = http.StatusUnprocessableEntity, "insufficient_shares"
	case errors.Is(err, pool.ErrRiskLimitExceeded):
		status, code = http.StatusUnprocessableEntity, "risk_limit_exceeded"
	case errors.Is(err, pool.ErrConcentrationLimit):
		status, code = http.StatusUnprocessableEntity, "liability_exceeds_concentration_limit"
	case errors.Is(err, policy.ErrPolicyInactive):
		status, code = http.StatusConflict, "policy_inactive"
	case errors.Is(err, policy.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "already_claimed"
	case errors.Is(err, policy.ErrPolicyExpired):
		status, code = http.StatusConflict, "policy_expired"
	case errors.Is(err, policy.ErrNotYetExpired):
		status, code = http.StatusConflict, "not_yet_expired"
	case errors.Is(err, treasury.ErrTransferFailed):
		status, code = http.StatusUnprocessableEntity, "transfer_failed"
	case errors.Is(err, core.ErrReentrantCall):
		status, code = http.StatusConflict, "reentrant_call"
	default:
		status, code = http.StatusInternalServerError, "internal"
		s.log.Error().Err(err).Msg("unexpected engine error")
	}

	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}
