/*
points.go - The point rule

PURPOSE:
  Converts a transaction's monetary amount into whole reward points.
  This is the only derivation rule in the system; everything the Ledger
  stores in RewardTotal rows is a sum of this function over transactions.

THE RULE (tiered, matching standard loyalty schemes):
  - portion of the amount up to 50:        0 points
  - portion from 50 to 100:                1 point per currency unit
  - portion above 100:                     2 points per currency unit

  points = floor( 2*max(amount-100, 0) + max(min(amount,100)-50, 0) )

EXAMPLES:
  amount  50 ->  0
  amount  75 -> 25
  amount 100 -> 50
  amount 120 -> 90   (2*20 + 50)

CONTRACT:
  Total, pure, deterministic, no failure modes. Amounts <= 0 yield 0;
  callers are expected to reject negative amounts before persisting, the
  rule merely refuses to award points for them.
*/
package loyalty

import "github.com/shopspring/decimal"

var (
	tierOneFloor = decimal.NewFromInt(50)
	tierTwoFloor = decimal.NewFromInt(100)
	two          = decimal.NewFromInt(2)
)

// CalculatePoints maps a monetary amount to whole reward points.
func CalculatePoints(amount decimal.Decimal) int {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0
	}

	// 2 points per unit above 100.
	over := decimal.Max(amount.Sub(tierTwoFloor), decimal.Zero)

	// 1 point per unit between 50 and 100.
	mid := decimal.Max(decimal.Min(amount, tierTwoFloor).Sub(tierOneFloor), decimal.Zero)

	points := over.Mul(two).Add(mid)
	return int(points.Floor().IntPart())
}
