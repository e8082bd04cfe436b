package oracle

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// Probability answers true with a fixed probability expressed in basis
// points (0-10000). Note the unit: basis points here, whole percent in
// the pool's utilization bound. The two scales are independent.
type Probability struct {
	mu  sync.Mutex
	rng *rand.Rand
	bps int64
}

// NewProbability creates a probability gateway. The seed makes test
// runs reproducible; pass a time-derived seed in production wiring.
func NewProbability(bps int64, seed int64) (*Probability, error) {
	if bps < 0 || bps > 10_000 {
		return nil, fmt.Errorf("payout probability %d outside [0,10000] basis points", bps)
	}
	return &Probability{
		rng: rand.New(rand.NewSource(seed)),
		bps: bps,
	}, nil
}

func (p *Probability) IsPayoutEvent(_ context.Context, _ int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Int63n(10_000) < p.bps, nil
}
