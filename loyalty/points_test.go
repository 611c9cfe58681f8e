package loyalty_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// POINT RULE TESTS
// =============================================================================

func TestCalculatePoints_TierBoundaries(t *testing.T) {
	// GIVEN: The tiered rule (0 up to 50, 1/unit to 100, 2/unit above)
	// THEN: Boundary amounts produce the standard values

	cases := []struct {
		amount string
		want   int
	}{
		{"0", 0},
		{"10", 0},
		{"50", 0},
		{"51", 1},
		{"75", 25},
		{"100", 50},
		{"101", 52},
		{"120", 90},
		{"200", 250},
	}

	for _, c := range cases {
		amount := decimal.RequireFromString(c.amount)
		if got := loyalty.CalculatePoints(amount); got != c.want {
			t.Errorf("CalculatePoints(%s) = %d, want %d", c.amount, got, c.want)
		}
	}
}

func TestCalculatePoints_NegativeAmountYieldsZero(t *testing.T) {
	// Negative amounts are rejected upstream; the rule itself just
	// refuses to award points for them.
	if got := loyalty.CalculatePoints(decimal.NewFromInt(-5)); got != 0 {
		t.Errorf("CalculatePoints(-5) = %d, want 0", got)
	}
}

func TestCalculatePoints_FractionalAmountsFloor(t *testing.T) {
	cases := []struct {
		amount string
		want   int
	}{
		{"50.99", 0},   // floor(0.99)
		{"100.70", 51}, // floor(2*0.70 + 50) = floor(51.40)
		{"120.50", 91}, // floor(2*20.50 + 50) = 91
	}

	for _, c := range cases {
		amount := decimal.RequireFromString(c.amount)
		if got := loyalty.CalculatePoints(amount); got != c.want {
			t.Errorf("CalculatePoints(%s) = %d, want %d", c.amount, got, c.want)
		}
	}
}

func TestCalculatePoints_Deterministic(t *testing.T) {
	amount := decimal.RequireFromString("87.65")
	first := loyalty.CalculatePoints(amount)
	for i := 0; i < 10; i++ {
		if got := loyalty.CalculatePoints(amount); got != first {
			t.Fatalf("CalculatePoints not deterministic: %d then %d", first, got)
		}
	}
}
