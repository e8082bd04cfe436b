package pool

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Cyberenchanter/insurance-protocol/internal/fpmath"
)

var (
	// ErrInvalidConfig is returned when the utilization parameter is
	// outside [0,100] whole percent.
	ErrInvalidConfig = errors.New("max utilization percent outside [0,100]")

	// ErrZeroAmount rejects non-positive stake amounts.
	ErrZeroAmount = errors.New("stake amount must be positive")

	// ErrZeroShares rejects non-positive share burns.
	ErrZeroShares = errors.New("shares to burn must be positive")

	// ErrInsufficientShares is returned when a burn exceeds the
	// provider's withdrawable shares.
	ErrInsufficientShares = errors.New("insufficient withdrawable shares")

	// ErrRiskLimitExceeded is returned when total locked capital plus a
	// candidate liability would exceed total liquidity.
	ErrRiskLimitExceeded = errors.New("liability exceeds available liquidity")

	// ErrConcentrationLimit is returned when a single liability exceeds
	// the per-policy percentage bound of total liquidity.
	ErrConcentrationLimit = errors.New("liability exceeds concentration limit")

	// ErrPoolDrained is returned when a stake arrives while shares are
	// outstanding but liquidity is zero. The share price is undefined in
	// that state, so no mint ratio exists.
	ErrPoolDrained = errors.New("shares outstanding with zero liquidity")
)

// Totals is a read snapshot of the pool's aggregate state.
type Totals struct {
	TotalShares    int64
	TotalLiquidity int64
	TotalLocked    int64
}

// Pool is the share ledger: total capital, total shares, and
// per-provider share balances. The share map is the sole source of
// truth for provider equity. Not safe for concurrent use; the engine
// serializes all access.
type Pool struct {
	totalShares    int64
	totalLiquidity int64
	totalLocked    int64
	shares         map[uuid.UUID]int64

	// Per-policy concentration bound, whole percent 0-100.
	maxUtilizationPct int64
}

func NewPool(maxUtilizationPct int64) (*Pool, error) {
	if maxUtilizationPct < 0 || maxUtilizationPct > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConfig, maxUtilizationPct)
	}
	return &Pool{
		shares:            make(map[uuid.UUID]int64),
		maxUtilizationPct: maxUtilizationPct,
	}, nil
}

// Stake deposits amount and mints shares. The first stake bootstraps a
// 1:1 share price; later stakes mint amount * totalShares / totalLiquidity,
// truncating so existing holders are never diluted.
func (p *Pool) Stake(provider uuid.UUID, amount int64) (minted int64, err error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrZeroAmount, amount)
	}

	if p.totalShares == 0 {
		minted = amount
	} else {
		// A full payout can drain liquidity to zero while shares remain.
		// Minting against a zero price would value the deposit at nothing.
		if p.totalLiquidity == 0 {
			return 0, fmt.Errorf("%w: shares=%d", ErrPoolDrained, p.totalShares)
		}
		minted = fpmath.MulDiv(amount, p.totalShares, p.totalLiquidity)
	}

	p.shares[provider] += minted
	p.totalShares += minted
	p.totalLiquidity += amount

	return minted, nil
}

// Unstake burns sharesToBurn and returns the withdrawal amount. The
// provider's locked portion is a proportional allocation of system-wide
// locked capital, not a per-policy attribution.
func (p *Pool) Unstake(provider uuid.UUID, sharesToBurn int64) (withdrawn int64, err error) {
	if sharesToBurn <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrZeroShares, sharesToBurn)
	}

	withdrawable := p.WithdrawableSharesOf(provider)
	if sharesToBurn > withdrawable {
		return 0, fmt.Errorf("%w: burn=%d withdrawable=%d", ErrInsufficientShares, sharesToBurn, withdrawable)
	}

	withdrawn = fpmath.MulDiv(sharesToBurn, p.totalLiquidity, p.totalShares)

	p.shares[provider] -= sharesToBurn
	if p.shares[provider] == 0 {
		delete(p.shares, provider)
	}
	p.totalShares -= sharesToBurn
	p.totalLiquidity -= withdrawn

	return withdrawn, nil
}

// Underwrite admits a new policy's liability against the utilization
// guard and, on success, adds the premium to liquidity and the
// liability to locked capital. Both bounds are evaluated before the
// premium is added.
func (p *Pool) Underwrite(premium, liability int64) error {
	if p.totalLocked+liability > p.totalLiquidity {
		return fmt.Errorf("%w: locked=%d liability=%d liquidity=%d",
			ErrRiskLimitExceeded, p.totalLocked, liability, p.totalLiquidity)
	}
	if liability > fpmath.PercentOf(p.totalLiquidity, p.maxUtilizationPct) {
		return fmt.Errorf("%w: liability=%d bound=%d (%d%% of %d)",
			ErrConcentrationLimit, liability,
			fpmath.PercentOf(p.totalLiquidity, p.maxUtilizationPct),
			p.maxUtilizationPct, p.totalLiquidity)
	}

	p.totalLiquidity += premium
	p.totalLocked += liability

	return nil
}

// SettleClaim pays out a liability: locked and liquidity both decrease.
func (p *Pool) SettleClaim(liability int64) {
	p.totalLocked -= liability
	p.totalLiquidity -= liability
}

// ReleaseLiability unlocks an expired policy's liability.
func (p *Pool) ReleaseLiability(liability int64) {
	p.totalLocked -= liability
}

// SharesOf returns the provider's share balance.
func (p *Pool) SharesOf(provider uuid.UUID) int64 {
	return p.shares[provider]
}

// WithdrawableSharesOf returns shares minus the provider's proportional
// locked portion.
func (p *Pool) WithdrawableSharesOf(provider uuid.UUID) int64 {
	held := p.shares[provider]
	if held == 0 || p.totalLiquidity == 0 {
		return held
	}
	lockedPortion := fpmath.MulDiv(held, p.totalLocked, p.totalLiquidity)
	return held - lockedPortion
}

// RedeemableValueOf returns shares * totalLiquidity / totalShares, the
// uniform share price applied to the provider's balance.
func (p *Pool) RedeemableValueOf(provider uuid.UUID) int64 {
	if p.totalShares == 0 {
		return 0
	}
	return fpmath.MulDiv(p.shares[provider], p.totalLiquidity, p.totalShares)
}

// Totals returns the aggregate pool state.
func (p *Pool) Totals() Totals {
	return Totals{
		TotalShares:    p.totalShares,
		TotalLiquidity: p.totalLiquidity,
		TotalLocked:    p.totalLocked,
	}
}

// MaxUtilizationPct returns the per-policy concentration bound.
func (p *Pool) MaxUtilizationPct() int64 {
	return p.maxUtilizationPct
}

// CheckInvariants validates the pool's structural invariants:
// totalLocked <= totalLiquidity and sum(shares) == totalShares.
func (p *Pool) CheckInvariants() error {
	if p.totalLocked > p.totalLiquidity {
		return fmt.Errorf("locked %d exceeds liquidity %d", p.totalLocked, p.totalLiquidity)
	}
	var sum int64
	for _, s := range p.shares {
		sum += s
	}
	if sum != p.totalShares {
		return fmt.Errorf("share sum %d != totalShares %d", sum, p.totalShares)
	}
	return nil
}

// Snapshot captures the full pool state for operation rollback.
type Snapshot struct {
	TotalShares    int64
	TotalLiquidity int64
	TotalLocked    int64
	Shares         map[uuid.UUID]int64
}

func (p *Pool) Snapshot() Snapshot {
	shares := make(map[uuid.UUID]int64, len(p.shares))
	for k, v := range p.shares {
		shares[k] = v
	}
	return Snapshot{
		TotalShares:    p.totalShares,
		TotalLiquidity: p.totalLiquidity,
		TotalLocked:    p.totalLocked,
		Shares:         shares,
	}
}

// Restore resets the pool to a prior snapshot.
func (p *Pool) Restore(s Snapshot) {
	p.totalShares = s.TotalShares
	p.totalLiquidity = s.TotalLiquidity
	p.totalLocked = s.TotalLocked
	p.shares = make(map[uuid.UUID]int64, len(s.Shares))
	for k, v := range s.Shares {
		p.shares[k] = v
	}
}
