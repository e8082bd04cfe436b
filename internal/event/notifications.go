package event

import "github.com/google/uuid"

// Staked is emitted when a provider deposits liquidity into the pool.
type Staked struct {
	Provider     uuid.UUID `json:"provider"`
	Amount       int64     `json:"amount"` // Fixed-point
	SharesMinted int64     `json:"shares_minted"`
}

func (s *Staked) EventType() EventType {
	return EventTypeStaked
}

// Unstaked is emitted when a provider burns shares and withdraws.
type Unstaked struct {
	Provider     uuid.UUID `json:"provider"`
	Amount       int64     `json:"amount"`
	SharesBurned int64     `json:"shares_burned"`
}

func (u *Unstaked) EventType() EventType {
	return EventTypeUnstaked
}

// PolicyPurchased is emitted when a new policy enters the Active state.
type PolicyPurchased struct {
	PolicyID  int64     `json:"policy_id"`
	Customer  uuid.UUID `json:"customer"`
	ProductID int64     `json:"product_id"`
}

func (p *PolicyPurchased) EventType() EventType {
	return EventTypePolicyPurchased
}

// ClaimPaid is emitted when a claim settles and the liability pays out.
type ClaimPaid struct {
	PolicyID int64 `json:"policy_id"`
	Amount   int64 `json:"amount"`
}

func (c *ClaimPaid) EventType() EventType {
	return EventTypeClaimPaid
}

// PolicyExpired is emitted when a policy durably transitions to Expired.
type PolicyExpired struct {
	PolicyID int64 `json:"policy_id"`
}

func (p *PolicyExpired) EventType() EventType {
	return EventTypePolicyExpired
}
