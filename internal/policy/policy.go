package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPolicyNotFound is returned for an unknown policy id.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyInactive is returned for operations on a policy that has
	// already left the Active state.
	ErrPolicyInactive = errors.New("policy is not active")

	// ErrAlreadyClaimed is returned for a claim attempt on a settled policy.
	ErrAlreadyClaimed = errors.New("policy already claimed")

	// ErrPolicyExpired is returned by a claim attempt past the expiry time.
	ErrPolicyExpired = errors.New("policy expired")

	// ErrNotYetExpired is returned by ProcessExpiry before the expiry time.
	ErrNotYetExpired = errors.New("policy not yet expired")
)

// State of a policy's lifecycle. Claimed and Expired are terminal.
type State int32

const (
	StateActive State = iota
	StateClaimed
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "Active"
	case StateClaimed:
		return "Claimed"
	case StateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Policy is a purchased coverage record. Created Active; mutated exactly
// once more, by claim settlement or expiry; never deleted.
type Policy struct {
	ID         int64
	Customer   uuid.UUID
	ProductID  int64
	StartTime  time.Time
	ExpiryTime time.Time
	IsClaimed  bool
	IsActive   bool
}

// State derives the lifecycle state from the record flags.
func (p *Policy) State() State {
	switch {
	case p.IsClaimed:
		return StateClaimed
	case p.IsActive:
		return StateActive
	default:
		return StateExpired
	}
}

// IsExpiredAt reports whether the coverage window has passed. Expiry is
// exclusive of the boundary: a claim exactly at ExpiryTime still settles.
func (p *Policy) IsExpiredAt(now time.Time) bool {
	return now.After(p.ExpiryTime)
}

// Ledger records policies and assigns sequential ids from 1. Records
// are retained forever as history. Not safe for concurrent use; the
// engine serializes all access.
type Ledger struct {
	policies map[int64]*Policy
	nextID   int64
}

func NewLedger() *Ledger {
	return &Ledger{
		policies: make(map[int64]*Policy),
		nextID:   1,
	}
}

// Create allocates a new Active policy and returns it.
func (l *Ledger) Create(customer uuid.UUID, productID int64, start time.Time, duration time.Duration) *Policy {
	p := &Policy{
		ID:         l.nextID,
		Customer:   customer,
		ProductID:  productID,
		StartTime:  start,
		ExpiryTime: start.Add(duration),
		IsActive:   true,
	}
	l.policies[p.ID] = p
	l.nextID++
	return p
}

// Get returns the policy for an id.
func (l *Ledger) Get(policyID int64) (*Policy, error) {
	p, ok := l.policies[policyID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPolicyNotFound, policyID)
	}
	return p, nil
}

// SettleClaim transitions Active -> Claimed.
func (l *Ledger) SettleClaim(p *Policy) {
	p.IsClaimed = true
	p.IsActive = false
}

// Expire transitions Active -> Expired.
func (l *Ledger) Expire(p *Policy) {
	p.IsActive = false
}

// Remove deletes a policy record. Only used by the engine to undo a
// Create inside a failing purchase; committed policies are never removed.
func (l *Ledger) Remove(policyID int64) {
	delete(l.policies, policyID)
	if policyID == l.nextID-1 {
		l.nextID--
	}
}

// Count returns the number of recorded policies.
func (l *Ledger) Count() int64 {
	return int64(len(l.policies))
}
