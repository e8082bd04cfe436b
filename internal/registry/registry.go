package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/Cyberenchanter/insurance-protocol/internal/oracle"
)

var (
	// ErrInvalidProduct is returned for a product id that is zero,
	// negative, or beyond the registered range.
	ErrInvalidProduct = errors.New("invalid product id")

	// ErrLengthMismatch is returned when the parallel init arrays
	// differ in length.
	ErrLengthMismatch = errors.New("product init arrays differ in length")

	// ErrSealed is returned when Register is called after initialization.
	ErrSealed = errors.New("product registry is sealed")
)

// Product is an immutable catalog entry. Ids are sequential from 1.
type Product struct {
	ID        int64
	Name      string
	Premium   int64 // Fixed-point
	Liability int64 // Fixed-point
	Duration  time.Duration
	Gateway   oracle.Gateway
}

// Registry is the immutable product catalog. It is populated once at
// engine initialization and sealed; no update or remove operation exists.
type Registry struct {
	products []Product
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a product and assigns the next sequential id.
// Only valid during initialization, before Seal.
func (r *Registry) Register(name string, premium, liability int64, duration time.Duration, gw oracle.Gateway) (int64, error) {
	if r.sealed {
		return 0, ErrSealed
	}
	if gw == nil {
		return 0, fmt.Errorf("product %q: oracle gateway must not be nil", name)
	}

	id := int64(len(r.products)) + 1
	r.products = append(r.products, Product{
		ID:        id,
		Name:      name,
		Premium:   premium,
		Liability: liability,
		Duration:  duration,
		Gateway:   gw,
	})

	return id, nil
}

// Seal freezes the catalog. Called once after all products are registered.
func (r *Registry) Seal() {
	r.sealed = true
}

// Get returns the product for an id. Ids start at 1.
func (r *Registry) Get(productID int64) (Product, error) {
	if productID < 1 || productID > int64(len(r.products)) {
		return Product{}, fmt.Errorf("%w: %d", ErrInvalidProduct, productID)
	}
	return r.products[productID-1], nil
}

// Count returns the number of registered products.
func (r *Registry) Count() int64 {
	return int64(len(r.products))
}

// List returns all products in registration order.
func (r *Registry) List() []Product {
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out
}
