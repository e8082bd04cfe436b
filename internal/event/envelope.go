package event

import (
	"time"
)

// EventType discriminator for notification payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeStaked
	EventTypeUnstaked
	EventTypePolicyPurchased
	EventTypeClaimPaid
	EventTypePolicyExpired
)

// Envelope wraps every emitted notification in the log
type Envelope struct {
	// Monotonic sequence assigned by the engine at emit time
	Sequence int64

	// Ledger time of the emitting operation
	Timestamp time.Time

	// Event type discriminator
	Type EventType

	// Event-specific data
	Payload Event
}

// Event is the interface all notification payloads implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType
}

func (et EventType) String() string {
	switch et {
	case EventTypeStaked:
		return "Staked"
	case EventTypeUnstaked:
		return "Unstaked"
	case EventTypePolicyPurchased:
		return "PolicyPurchased"
	case EventTypeClaimPaid:
		return "ClaimPaid"
	case EventTypePolicyExpired:
		return "PolicyExpired"
	default:
		return "Unknown"
	}
}
