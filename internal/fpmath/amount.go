package fpmath

import (
	"math/big"
	"sync"
)

// Amounts are int64 fixed-point values with 8 decimal places.
// One whole unit of the pool asset ("1 E") is Unit.
const (
	DecimalPrecision = 8
	Unit             = int64(100_000_000)
)

// Int128 is a pooled big.Int for intermediate a*b products that can
// overflow int64 before the division brings them back in range.
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MulDiv computes a * b / c with a 128-bit intermediate product,
// truncating toward zero. Truncation is load-bearing for share minting:
// the minted count is always <= the exact proportional value, so
// existing holders are never diluted by rounding.
// Panics if c == 0; callers guard the denominator.
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		panic("fpmath: MulDiv division by zero")
	}

	product := getInt128()
	product.Mul(big.NewInt(a), big.NewInt(b))
	product.Quo(product, big.NewInt(c))

	result := product.Int64()
	putInt128(product)

	return result
}

// PercentOf computes amount * pct / 100 (whole percent, truncating).
// The pool's utilization bound uses whole percent 0-100; oracle
// probability uses basis points; the two scales are never mixed here.
func PercentOf(amount, pct int64) int64 {
	return MulDiv(amount, pct, 100)
}

// BasisPointsOf computes amount * bps / 10_000 (truncating).
func BasisPointsOf(amount, bps int64) int64 {
	return MulDiv(amount, bps, 10_000)
}
