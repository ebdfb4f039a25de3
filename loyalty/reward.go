/*
reward.go - Reward selection and discount computation

PURPOSE:
  Computes the discount one reward produces against a base, given the
  points available to fund it. Pure arithmetic: no balance is touched
  here. The engine commits point deductions only after every reward
  for the order has been resolved, so a failed later reward can never
  leave an account partially debited.

GUARANTEES:
  - amount >= 0
  - amount <= base (a discount never exceeds what it targets)
  - amount <= MaxAmount when the cap is set
  - points consumed never exceed the available balance

PER-POINT REDEMPTION:
  The caller may redeem fewer points than available when the base is
  smaller than full redemption would cover. Points needed to reach
  the base are rounded UP (you cannot redeem a fraction of a point to
  shave the last cent), and the resulting amount is clipped back to
  the base. An e-wallet holding 6e66 points against a $100 order
  consumes exactly 100 points, not the full balance.

ROUNDING:
  Final amounts are truncated to currency cents AFTER capping, so
  rounding can only shrink an amount, never push it past a cap or
  base.

SEE ALSO:
  - engine.go: Tracks remaining bases across stacked rewards
  - program.go: Reward definition
*/
package loyalty

import (
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ComputeDiscount resolves one reward against a base amount.
//
// Returns the discount amount and the points consumed, or ok=false
// when the reward is not applicable: the available points cannot fund
// RequiredPoints, or the computation yields nothing to discount.
func ComputeDiscount(reward Reward, base, availablePoints decimal.Decimal) (amount, points decimal.Decimal, ok bool) {
	if availablePoints.LessThan(reward.RequiredPoints) {
		return decimal.Zero, decimal.Zero, false
	}
	if !base.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}

	switch reward.DiscountMode {
	case DiscountPercent:
		amount = base.Mul(reward.Discount).Div(oneHundred)
		points = reward.RequiredPoints

	case DiscountFixed:
		amount = decimal.Min(reward.Discount, base)
		points = reward.RequiredPoints

	case DiscountPerPoint:
		if !reward.Discount.IsPositive() {
			return decimal.Zero, decimal.Zero, false
		}
		// Points needed to cover the whole base, rounded up.
		needed := base.Div(reward.Discount).Ceil()
		if needed.LessThan(reward.RequiredPoints) {
			needed = reward.RequiredPoints
		}
		points = decimal.Min(availablePoints, needed)
		amount = decimal.Min(reward.Discount.Mul(points), base)

	default:
		// Unreachable for validated programs.
		return decimal.Zero, decimal.Zero, false
	}

	if reward.MaxAmount.IsPositive() {
		amount = decimal.Min(amount, reward.MaxAmount)
	}
	amount = decimal.Min(amount, base).Truncate(2)

	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	return amount, points, true
}

// =============================================================================
// BASE TRACKER - Remaining discountable bases during composition
// =============================================================================

// baseTracker holds the remaining discountable value of each order
// line and of the shipping charge. Stacked rewards compose additively
// against these bases: each applied discount shrinks the base the
// next reward sees, so no combination of rewards can drive a line or
// the shipping charge negative.
type baseTracker struct {
	lines    []decimal.Decimal
	shipping decimal.Decimal
}

func newBaseTracker(order Order) *baseTracker {
	t := &baseTracker{
		lines:    make([]decimal.Decimal, len(order.Lines)),
		shipping: order.DeliveryCost,
	}
	for i, l := range order.Lines {
		t.lines[i] = l.Subtotal()
	}
	return t
}

// base returns the remaining base for a target. For TargetProducts
// only lines matching the filter count.
func (t *baseTracker) base(order Order, target DiscountTarget, productIDs []ProductID) decimal.Decimal {
	switch target {
	case TargetShipping:
		return t.shipping
	case TargetProducts:
		total := decimal.Zero
		for i, line := range order.Lines {
			if containsProduct(productIDs, line.ProductID) {
				total = total.Add(t.lines[i])
			}
		}
		return total
	default: // TargetOrder
		total := decimal.Zero
		for _, remaining := range t.lines {
			total = total.Add(remaining)
		}
		return total
	}
}

// consume reduces the remaining base by an applied discount amount.
// Line bases drain in line order; the invariant amount <= base means
// the walk always terminates with nothing left to drain.
func (t *baseTracker) consume(order Order, target DiscountTarget, productIDs []ProductID, amount decimal.Decimal) {
	if target == TargetShipping {
		t.shipping = t.shipping.Sub(amount)
		if t.shipping.IsNegative() {
			t.shipping = decimal.Zero
		}
		return
	}
	for i, line := range order.Lines {
		if target == TargetProducts && !containsProduct(productIDs, line.ProductID) {
			continue
		}
		if !amount.IsPositive() {
			return
		}
		take := decimal.Min(amount, t.lines[i])
		t.lines[i] = t.lines[i].Sub(take)
		amount = amount.Sub(take)
	}
}

func containsProduct(ids []ProductID, id ProductID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
