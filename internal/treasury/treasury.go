// Package treasury models the value-custody collaborator: the capability
// that moves the pool asset between the pool and external accounts. The
// host ledger guarantees each move is atomic; a failed Transfer moves
// nothing and aborts the enclosing operation.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrTransferFailed is returned when an outbound transfer cannot
// complete: insufficient pool balance or recipient rejection.
var ErrTransferFailed = errors.New("transfer failed")

// Treasury is the narrow capability surface the engine depends on.
type Treasury interface {
	// Deposit records value moved into the pool's custody. A negative
	// amount reverses an earlier deposit when the enclosing ledger
	// operation aborts.
	Deposit(amount int64)

	// Transfer moves value out of the pool to an external account.
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error

	// Balance returns the pool's custodial balance.
	Balance() int64
}

// Vault is the in-memory treasury: one pool account plus external
// recipient balances. It rejects overdrafts.
type Vault struct {
	mu       sync.Mutex
	pool     int64
	accounts map[uuid.UUID]int64
}

func NewVault() *Vault {
	return &Vault{
		accounts: make(map[uuid.UUID]int64),
	}
}

func (v *Vault) Deposit(amount int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pool += amount
}

func (v *Vault) Transfer(_ context.Context, to uuid.UUID, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("%w: non-positive amount %d", ErrTransferFailed, amount)
	}
	if v.pool < amount {
		return fmt.Errorf("%w: pool balance %d below %d", ErrTransferFailed, v.pool, amount)
	}

	v.pool -= amount
	v.accounts[to] += amount

	return nil
}

func (v *Vault) Balance() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pool
}

// AccountBalance returns the received total for an external account.
func (v *Vault) AccountBalance(id uuid.UUID) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accounts[id]
}
