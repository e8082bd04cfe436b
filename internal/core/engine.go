package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cyberenchanter/insurance-protocol/internal/event"
	"github.com/Cyberenchanter/insurance-protocol/internal/observability"
	"github.com/Cyberenchanter/insurance-protocol/internal/oracle"
	"github.com/Cyberenchanter/insurance-protocol/internal/policy"
	"github.com/Cyberenchanter/insurance-protocol/internal/pool"
	"github.com/Cyberenchanter/insurance-protocol/internal/registry"
	"github.com/Cyberenchanter/insurance-protocol/internal/treasury"
)

// Engine is the single long-lived aggregate owning the product catalog,
// the liquidity pool, and the policy table. Every public operation runs
// under one mutex, strictly serial, and is all-or-nothing: a failed
// operation restores every
// mutation it applied and emits nothing.
type Engine struct {
	mu    sync.Mutex
	guard Guard

	registry *registry.Registry
	pool     *pool.Pool
	policies *policy.Ledger
	treasury treasury.Treasury

	sequence int64
	sink     event.Sink

	metrics *observability.Metrics
	log     zerolog.Logger

	// Ledger time source. Wall clock in production, steppable in tests.
	now func() time.Time
}

// ProductSpec is one entry of the order-significant init catalog.
type ProductSpec struct {
	Name      string
	Premium   int64
	Liability int64
	Duration  time.Duration
	Gateway   oracle.Gateway
}

// Config carries the initialization parameters. The product catalog is
// given as parallel arrays, order-significant and equal-length, matching
// the deployment parameter layout.
type Config struct {
	// Per-policy concentration bound, whole percent 0-100.
	MaxUtilizationPct int64

	Names       []string
	Premiums    []int64
	Liabilities []int64
	Durations   []time.Duration
	Oracles     []oracle.Gateway

	Treasury treasury.Treasury
	Sink     event.Sink
	Metrics  *observability.Metrics
	Logger   zerolog.Logger

	// Now overrides the ledger time source. Defaults to time.Now.
	Now func() time.Time
}

// NewEngine validates the init parameters, registers the product
// catalog in order, and seals the registry.
func NewEngine(cfg Config) (*Engine, error) {
	n := len(cfg.Names)
	if len(cfg.Premiums) != n || len(cfg.Liabilities) != n ||
		len(cfg.Durations) != n || len(cfg.Oracles) != n {
		return nil, fmt.Errorf("%w: names=%d premiums=%d liabilities=%d durations=%d oracles=%d",
			registry.ErrLengthMismatch, n, len(cfg.Premiums), len(cfg.Liabilities),
			len(cfg.Durations), len(cfg.Oracles))
	}

	p, err := pool.NewPool(cfg.MaxUtilizationPct)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry()
	for i := 0; i < n; i++ {
		if _, err := reg.Register(cfg.Names[i], cfg.Premiums[i], cfg.Liabilities[i], cfg.Durations[i], cfg.Oracles[i]); err != nil {
			return nil, err
		}
	}
	reg.Seal()

	tr := cfg.Treasury
	if tr == nil {
		tr = treasury.NewVault()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = event.NewLog()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		registry: reg,
		pool:     p,
		policies: policy.NewLedger(),
		treasury: tr,
		sink:     sink,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		now:      now,
	}, nil
}

// Stake deposits amount into the pool and mints proportional shares.
func (e *Engine) Stake(ctx context.Context, provider uuid.UUID, amount int64) (minted int64, err error) {
	if err := e.guard.Check(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.finish("stake", start, err) }()

	minted, err = e.pool.Stake(provider, amount)
	if err != nil {
		return 0, err
	}

	e.treasury.Deposit(amount)

	e.emit(&event.Staked{
		Provider:     provider,
		Amount:       amount,
		SharesMinted: minted,
	})
	e.postCheck()

	e.log.Info().
		Str("provider", provider.String()).
		Int64("amount", amount).
		Int64("shares_minted", minted).
		Msg("stake applied")

	return minted, nil
}

// Unstake burns sharesToBurn and transfers the proportional withdrawal
// to the provider. The transfer runs after all bookkeeping mutations;
// if it fails, the bookkeeping is rolled back and nothing moves.
func (e *Engine) Unstake(ctx context.Context, provider uuid.UUID, sharesToBurn int64) (withdrawn int64, err error) {
	if err := e.guard.Check(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.finish("unstake", start, err) }()

	memo := e.pool.Snapshot()

	withdrawn, err = e.pool.Unstake(provider, sharesToBurn)
	if err != nil {
		return 0, err
	}

	if err = e.transferOut(ctx, provider, withdrawn); err != nil {
		e.pool.Restore(memo)
		return 0, err
	}

	e.emit(&event.Unstaked{
		Provider:     provider,
		Amount:       withdrawn,
		SharesBurned: sharesToBurn,
	})
	e.postCheck()

	e.log.Info().
		Str("provider", provider.String()).
		Int64("amount", withdrawn).
		Int64("shares_burned", sharesToBurn).
		Msg("unstake applied")

	return withdrawn, nil
}

// PurchasePolicy underwrites a new policy against the utilization guard
// and allocates it in the Active state. Overpayment beyond the premium
// is refunded to the customer.
func (e *Engine) PurchasePolicy(ctx context.Context, customer uuid.UUID, productID, paidAmount int64) (policyID int64, err error) {
	if err := e.guard.Check(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.finish("purchase", start, err) }()

	product, err := e.registry.Get(productID)
	if err != nil {
		return 0, err
	}

	if paidAmount < product.Premium {
		return 0, fmt.Errorf("%w: paid=%d premium=%d", ErrPremiumTooLow, paidAmount, product.Premium)
	}

	memo := e.pool.Snapshot()

	// Both utilization bounds are evaluated before the premium is added.
	if err = e.pool.Underwrite(product.Premium, product.Liability); err != nil {
		return 0, err
	}

	now := e.now()
	pol := e.policies.Create(customer, productID, now, product.Duration)

	e.treasury.Deposit(paidAmount)

	if refund := paidAmount - product.Premium; refund > 0 {
		if err = e.transferOut(ctx, customer, refund); err != nil {
			e.pool.Restore(memo)
			e.policies.Remove(pol.ID)
			e.treasury.Deposit(-paidAmount)
			return 0, err
		}
	}

	e.emit(&event.PolicyPurchased{
		PolicyID:  pol.ID,
		Customer:  customer,
		ProductID: productID,
	})
	e.postCheck()

	if e.metrics != nil {
		e.metrics.PoliciesPurchased.Inc()
	}
	e.log.Info().
		Int64("policy_id", pol.ID).
		Int64("product_id", productID).
		Str("customer", customer.String()).
		Int64("premium", product.Premium).
		Int64("liability", product.Liability).
		Msg("policy purchased")

	return pol.ID, nil
}

// AttemptClaim queries the product's oracle and settles the claim if
// the insured event occurred. A false verdict succeeds with no state
// change; the policy stays Active and claimable. Returns whether the
// claim settled.
//
// A claim attempt past the expiry time fails with ErrPolicyExpired and
// leaves the policy Active: the failing call must discard every
// mutation, including any expiry transition, so expiry via this path
// never persists. ProcessExpiry is the only durable expiry path.
func (e *Engine) AttemptClaim(ctx context.Context, policyID int64) (settled bool, err error) {
	if err := e.guard.Check(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.finish("claim", start, err) }()

	pol, err := e.policies.Get(policyID)
	if err != nil {
		return false, err
	}
	if pol.IsClaimed {
		return false, fmt.Errorf("%w: policy %d", policy.ErrAlreadyClaimed, policyID)
	}
	if !pol.IsActive {
		return false, fmt.Errorf("%w: policy %d is %s", policy.ErrPolicyInactive, policyID, pol.State())
	}
	if pol.IsExpiredAt(e.now()) {
		return false, fmt.Errorf("%w: policy %d expired at %s", policy.ErrPolicyExpired, policyID, pol.ExpiryTime)
	}

	product, err := e.registry.Get(pol.ProductID)
	if err != nil {
		// Policies only reference registered products.
		panic(fmt.Sprintf("FATAL: policy %d references unknown product %d", policyID, pol.ProductID))
	}

	payout, err := product.Gateway.IsPayoutEvent(ctx, product.ID)
	if err != nil {
		return false, fmt.Errorf("oracle query for product %d: %w", product.ID, err)
	}
	if e.metrics != nil {
		e.metrics.OracleQueries.WithLabelValues(verdictLabel(payout)).Inc()
	}

	if !payout {
		// Success with no state change and no event.
		return false, nil
	}

	memo := e.pool.Snapshot()

	e.policies.SettleClaim(pol)
	e.pool.SettleClaim(product.Liability)

	if err = e.transferOut(ctx, pol.Customer, product.Liability); err != nil {
		e.pool.Restore(memo)
		pol.IsClaimed = false
		pol.IsActive = true
		return false, err
	}

	e.emit(&event.ClaimPaid{
		PolicyID: policyID,
		Amount:   product.Liability,
	})
	e.postCheck()

	if e.metrics != nil {
		e.metrics.PoliciesClaimed.Inc()
		e.metrics.ClaimPayoutTotal.Add(float64(product.Liability))
	}
	e.log.Info().
		Int64("policy_id", policyID).
		Int64("amount", product.Liability).
		Str("customer", pol.Customer.String()).
		Msg("claim paid")

	return true, nil
}

// ProcessExpiry durably expires a policy past its expiry time and
// releases its locked liability. Permissionless: any caller may invoke it.
func (e *Engine) ProcessExpiry(ctx context.Context, policyID int64) (err error) {
	if err := e.guard.Check(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { e.finish("expire", start, err) }()

	pol, err := e.policies.Get(policyID)
	if err != nil {
		return err
	}
	if !pol.IsActive {
		return fmt.Errorf("%w: policy %d is %s", policy.ErrPolicyInactive, policyID, pol.State())
	}
	if !pol.IsExpiredAt(e.now()) {
		return fmt.Errorf("%w: policy %d expires at %s", policy.ErrNotYetExpired, policyID, pol.ExpiryTime)
	}

	product, err := e.registry.Get(pol.ProductID)
	if err != nil {
		panic(fmt.Sprintf("FATAL: policy %d references unknown product %d", policyID, pol.ProductID))
	}

	e.policies.Expire(pol)
	e.pool.ReleaseLiability(product.Liability)

	e.emit(&event.PolicyExpired{PolicyID: policyID})
	e.postCheck()

	if e.metrics != nil {
		e.metrics.PoliciesExpired.Inc()
	}
	e.log.Info().
		Int64("policy_id", policyID).
		Int64("released", product.Liability).
		Msg("policy expired")

	return nil
}

// --- Read accessors ---

// PoolTotals returns the pool's aggregate state.
func (e *Engine) PoolTotals() pool.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Totals()
}

// MaxUtilizationPct returns the per-policy concentration bound.
func (e *Engine) MaxUtilizationPct() int64 {
	return e.pool.MaxUtilizationPct()
}

// SharesOf returns a provider's share balance.
func (e *Engine) SharesOf(provider uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.SharesOf(provider)
}

// WithdrawableSharesOf returns the provider's shares minus the
// proportional locked portion.
func (e *Engine) WithdrawableSharesOf(provider uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.WithdrawableSharesOf(provider)
}

// RedeemableValueOf returns the provider's equity at the uniform share price.
func (e *Engine) RedeemableValueOf(provider uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.RedeemableValueOf(provider)
}

// Product returns a catalog entry.
func (e *Engine) Product(productID int64) (registry.Product, error) {
	return e.registry.Get(productID)
}

// Products returns the full catalog in registration order.
func (e *Engine) Products() []registry.Product {
	return e.registry.List()
}

// Policy returns a copy of a policy record.
func (e *Engine) Policy(policyID int64) (policy.Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.policies.Get(policyID)
	if err != nil {
		return policy.Policy{}, err
	}
	return *p, nil
}

// Sequence returns the number of emitted notifications.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// --- Internals ---

// transferOut moves value out of the pool with the re-entrancy guard
// armed for the whole transfer window.
func (e *Engine) transferOut(ctx context.Context, to uuid.UUID, amount int64) error {
	e.guard.arm()
	defer e.guard.disarm()

	if err := e.treasury.Transfer(ctx, to, amount); err != nil {
		return fmt.Errorf("%w: to=%s amount=%d: %v", treasury.ErrTransferFailed, to, amount, err)
	}
	return nil
}

// emit assigns the next sequence and appends the envelope. Called only
// after all fallible steps of the operation have succeeded.
func (e *Engine) emit(payload event.Event) {
	e.sequence++
	e.sink.Append(event.Envelope{
		Sequence:  e.sequence,
		Timestamp: e.now(),
		Type:      payload.EventType(),
		Payload:   payload,
	})
	if e.metrics != nil {
		e.metrics.EventsEmitted.WithLabelValues(payload.EventType().String()).Inc()
	}
}

// postCheck validates pool invariants after an applied operation.
func (e *Engine) postCheck() {
	if err := e.pool.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: pool invariant violated: %v", err))
	}
}

// finish records per-operation metrics on both exit paths.
func (e *Engine) finish(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reasonFor(err)).Inc()
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	t := e.pool.Totals()
	e.metrics.SetPoolGauges(t.TotalLiquidity, t.TotalLocked, t.TotalShares)
}

func verdictLabel(payout bool) string {
	if payout {
		return "payout"
	}
	return "no_payout"
}

// reasonFor maps a rejection to a stable metric label.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, pool.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, pool.ErrZeroShares):
		return "zero_shares"
	case errors.Is(err, pool.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, pool.ErrRiskLimitExceeded):
		return "risk_limit"
	case errors.Is(err, pool.ErrConcentrationLimit):
		return "concentration_limit"
	case errors.Is(err, ErrPremiumTooLow):
		return "premium_too_low"
	case errors.Is(err, registry.ErrInvalidProduct):
		return "invalid_product"
	case errors.Is(err, policy.ErrPolicyNotFound):
		return "policy_not_found"
	case errors.Is(err, policy.ErrPolicyInactive):
		return "policy_inactive"
	case errors.Is(err, policy.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, policy.ErrPolicyExpired):
		return "policy_expired"
	case errors.Is(err, policy.ErrNotYetExpired):
		return "not_yet_expired"
	case errors.Is(err, treasury.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant_call"
	default:
		return "other"
	}
}
