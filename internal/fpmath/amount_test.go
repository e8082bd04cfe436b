package fpmath_test

import (
	"math"
	"testing"

	"github.com/Cyberenchanter/insurance-protocol/internal/fpmath"
)

func TestMulDiv_Truncates(t *testing.T) {
	// 7 * 3 / 2 = 10.5 -> truncates to 10
	if got := fpmath.MulDiv(7, 3, 2); got != 10 {
		t.Errorf("got %d, want 10", got)
	}
}

func TestMulDiv_NoOverflow(t *testing.T) {
	// a*b overflows int64 but the quotient fits
	a := int64(math.MaxInt64 / 2)
	got := fpmath.MulDiv(a, 4, 2)
	if got != a*2 {
		t.Errorf("got %d, want %d", got, a*2)
	}
}

func TestMulDiv_ZeroDenominatorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on zero denominator")
		}
	}()
	fpmath.MulDiv(1, 1, 0)
}

func TestPercentOf(t *testing.T) {
	// 20% of 10 E
	if got := fpmath.PercentOf(10*fpmath.Unit, 20); got != 2*fpmath.Unit {
		t.Errorf("got %d, want %d", got, 2*fpmath.Unit)
	}
}

func TestBasisPointsOf(t *testing.T) {
	// 250 bp of 10 E = 0.25 E
	want := fpmath.Unit / 4
	if got := fpmath.BasisPointsOf(10*fpmath.Unit, 250); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}
