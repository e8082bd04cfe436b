package oracle

import (
	"context"
	"sync"
)

// Deterministic is a scripted gateway: it answers with a fixed verdict
// that the owner can flip at any time. Used as the test double and for
// products whose payout condition is toggled operationally.
type Deterministic struct {
	mu     sync.RWMutex
	answer bool
}

func NewDeterministic(answer bool) *Deterministic {
	return &Deterministic{answer: answer}
}

// SetAnswer changes the verdict for subsequent claim attempts.
func (d *Deterministic) SetAnswer(answer bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answer = answer
}

func (d *Deterministic) IsPayoutEvent(_ context.Context, _ int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.answer, nil
}
