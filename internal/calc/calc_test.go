package calc

import (
	"math"
	"testing"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestComputeLiquidityUnitsZeroCases(t *testing.T) {
	cases := []struct {
		name                  string
		upper, lower, current float64
	}{
		{"inverted band", 90, 110, 100},
		{"empty band", 100, 100, 100},
		{"below band", 110, 90, 80},
		{"above band", 110, 90, 120},
		{"zero lower", 110, 0, 100},
	}
	for _, tc := range cases {
		if got := ComputeLiquidityUnits(10, 1000, tc.upper, tc.lower, tc.current); got != 0 {
			t.Fatalf("%s: expected 0, got %v", tc.name, got)
		}
	}
}

func TestComputeLiquidityUnitsInsideIsMinOfSides(t *testing.T) {
	lower, upper, current := 0.08, 0.12, 0.10
	l := 1000.0
	a, b := AmountsForLiquidity(l, lower, upper, current)

	got := ComputeLiquidityUnits(a, b, upper, lower, current)
	if !approx(got, l, 1e-9) {
		t.Fatalf("expected %v, got %v", l, got)
	}

	// Extra token B does not raise liquidity beyond what token A supports.
	if got := ComputeLiquidityUnits(a, b*2, upper, lower, current); !approx(got, l, 1e-9) {
		t.Fatalf("expected token A bound %v, got %v", l, got)
	}
}

func TestComputeLiquidityUnitsContinuousAtBoundaries(t *testing.T) {
	lower, upper := 90.0, 110.0
	l := 500.0

	aEdge, _ := AmountsForLiquidity(l, lower, upper, lower)
	atLower := ComputeLiquidityUnits(aEdge, 0, upper, lower, lower)
	nearA, nearB := AmountsForLiquidity(l, lower, upper, lower*(1+1e-9))
	nearLower := ComputeLiquidityUnits(nearA, nearB, upper, lower, lower*(1+1e-9))
	if !approx(atLower, nearLower, 1e-3) {
		t.Fatalf("discontinuity at lower bound: %v vs %v", atLower, nearLower)
	}

	_, bEdge := AmountsForLiquidity(l, lower, upper, upper)
	atUpper := ComputeLiquidityUnits(0, bEdge, upper, lower, upper)
	nearA, nearB = AmountsForLiquidity(l, lower, upper, upper*(1-1e-9))
	nearUpper := ComputeLiquidityUnits(nearA, nearB, upper, lower, upper*(1-1e-9))
	if !approx(atUpper, nearUpper, 1e-3) {
		t.Fatalf("discontinuity at upper bound: %v vs %v", atUpper, nearUpper)
	}
	if !approx(atLower, l, 1e-9) || !approx(atUpper, l, 1e-9) {
		t.Fatalf("edge liquidity mismatch: %v %v", atLower, atUpper)
	}
}

func TestAmountsForLiquidityOutsideBand(t *testing.T) {
	a, b := AmountsForLiquidity(100, 4, 9, 1)
	if b != 0 || !approx(a, 100*(1.0/2-1.0/3), 1e-12) {
		t.Fatalf("below band: got a=%v b=%v", a, b)
	}
	a, b = AmountsForLiquidity(100, 4, 9, 16)
	if a != 0 || !approx(b, 100, 1e-12) {
		t.Fatalf("above band: got a=%v b=%v", a, b)
	}
}

func TestComputeUserAprAndFee(t *testing.T) {
	got := ComputeUserAprAndFee(10, 1000, 1_000_000, 0.003, 500)
	if !approx(got.ExpectedDailyFeeUSD, 30, 1e-9) {
		t.Fatalf("daily fee: expected 30, got %v", got.ExpectedDailyFeeUSD)
	}
	if !approx(got.UserAPR, 30.0/500*365, 1e-9) {
		t.Fatalf("apr: got %v", got.UserAPR)
	}
}

func TestComputeUserAprAndFeeZeroInputs(t *testing.T) {
	cases := []struct {
		name                         string
		deltaL, totalL, userValueUSD float64
	}{
		{"zero delta", 0, 1000, 500},
		{"zero pool", 10, 0, 500},
		{"negative value", 10, 1000, -1},
	}
	for _, tc := range cases {
		if got := ComputeUserAprAndFee(tc.deltaL, tc.totalL, 1e6, 0.003, tc.userValueUSD); got != (AprFee{}) {
			t.Fatalf("%s: expected zero value, got %+v", tc.name, got)
		}
	}
}
