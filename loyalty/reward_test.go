package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPUTE DISCOUNT - MODES
// =============================================================================

func TestComputeDiscount_Percent(t *testing.T) {
	// GIVEN: A 50% order discount costing 1 point
	// WHEN: Applied to a base of 200 with enough points
	// THEN: The amount is 100 and exactly RequiredPoints are consumed

	reward := Reward{
		DiscountMode:   DiscountPercent,
		Discount:       dec(50),
		RequiredPoints: dec(1),
	}
	amount, points, ok := ComputeDiscount(reward, dec(200), dec(10))
	if !ok {
		t.Fatal("reward should apply")
	}
	if !amount.Equal(dec(100)) {
		t.Errorf("expected amount 100, got %s", amount)
	}
	if !points.Equal(dec(1)) {
		t.Errorf("expected 1 point consumed, got %s", points)
	}
}

func TestComputeDiscount_Fixed_ClampedToBase(t *testing.T) {
	// GIVEN: A fixed $80 discount
	// WHEN: The remaining base is only 30
	// THEN: The amount clips to the base

	reward := Reward{
		DiscountMode:   DiscountFixed,
		Discount:       dec(80),
		RequiredPoints: dec(1),
	}
	amount, _, ok := ComputeDiscount(reward, dec(30), dec(1))
	if !ok || !amount.Equal(dec(30)) {
		t.Fatalf("expected amount 30, got %s (ok=%v)", amount, ok)
	}
}

func TestComputeDiscount_PerPoint_EnormousBalance(t *testing.T) {
	// GIVEN: An e-wallet holding 6e66 points at $1 per point
	// WHEN: Redeemed against a $100 base
	// THEN: Exactly 100 points are consumed, not the full balance

	reward := Reward{
		DiscountMode:   DiscountPerPoint,
		Discount:       dec(1),
		RequiredPoints: dec(1),
	}
	wallet := decimal.RequireFromString("6e66")

	amount, points, ok := ComputeDiscount(reward, dec(100), wallet)
	if !ok {
		t.Fatal("reward should apply")
	}
	if !amount.Equal(dec(100)) {
		t.Errorf("expected amount 100, got %s", amount)
	}
	if !points.Equal(dec(100)) {
		t.Errorf("expected exactly 100 points consumed, got %s", points)
	}
}

func TestComputeDiscount_PerPoint_LimitedByBalance(t *testing.T) {
	// GIVEN: A per-point reward with only 40 points available
	// WHEN: The base is 100
	// THEN: All 40 points convert to a $40 discount

	reward := Reward{
		DiscountMode:   DiscountPerPoint,
		Discount:       dec(1),
		RequiredPoints: dec(1),
	}
	amount, points, ok := ComputeDiscount(reward, dec(100), dec(40))
	if !ok || !amount.Equal(dec(40)) || !points.Equal(dec(40)) {
		t.Fatalf("expected 40/40, got amount=%s points=%s ok=%v", amount, points, ok)
	}
}

func TestComputeDiscount_PerPoint_RoundsNeededUp(t *testing.T) {
	// GIVEN: A fractional base that is not a whole multiple of the rate
	// WHEN: Covering a $10.50 base at $1 per point
	// THEN: 11 points are needed but the amount clips back to 10.50

	reward := Reward{
		DiscountMode:   DiscountPerPoint,
		Discount:       dec(1),
		RequiredPoints: dec(1),
	}
	base := decimal.RequireFromString("10.50")
	amount, points, ok := ComputeDiscount(reward, base, dec(1000))
	if !ok {
		t.Fatal("reward should apply")
	}
	if !points.Equal(dec(11)) {
		t.Errorf("expected 11 points, got %s", points)
	}
	if !amount.Equal(base) {
		t.Errorf("expected amount 10.50, got %s", amount)
	}
}

// =============================================================================
// COMPUTE DISCOUNT - CAPS AND REFUSALS
// =============================================================================

func TestComputeDiscount_MaxAmountCap(t *testing.T) {
	// GIVEN: Free shipping capped at $75
	// WHEN: The shipping charge is $100
	// THEN: The discount is exactly 75

	reward := Reward{
		DiscountMode:   DiscountPercent,
		Discount:       dec(100),
		MaxAmount:      dec(75),
		RequiredPoints: dec(1),
	}
	amount, _, ok := ComputeDiscount(reward, dec(100), dec(1))
	if !ok || !amount.Equal(dec(75)) {
		t.Fatalf("expected amount 75, got %s (ok=%v)", amount, ok)
	}
}

func TestComputeDiscount_InsufficientPoints_NotApplicable(t *testing.T) {
	// GIVEN: A reward costing 10 points
	// WHEN: Only 9 are available
	// THEN: The reward is skipped whole, nothing partial

	reward := Reward{
		DiscountMode:   DiscountPercent,
		Discount:       dec(100),
		RequiredPoints: dec(10),
	}
	amount, points, ok := ComputeDiscount(reward, dec(100), dec(9))
	if ok || !amount.IsZero() || !points.IsZero() {
		t.Fatalf("underfunded reward must not apply: amount=%s points=%s ok=%v", amount, points, ok)
	}
}

func TestComputeDiscount_ZeroBase_NotApplicable(t *testing.T) {
	// GIVEN: A base already consumed by earlier rewards
	// WHEN: Another reward targets it
	// THEN: Not applicable

	reward := Reward{
		DiscountMode:   DiscountFixed,
		Discount:       dec(10),
		RequiredPoints: dec(1),
	}
	if _, _, ok := ComputeDiscount(reward, decimal.Zero, dec(100)); ok {
		t.Error("reward applied against a zero base")
	}
}

func TestComputeDiscount_TruncatesToCents(t *testing.T) {
	// GIVEN: A percentage producing a sub-cent amount
	// WHEN: 33% of 9.99
	// THEN: The amount truncates down to cents (3.29, never rounded up)

	reward := Reward{
		DiscountMode:   DiscountPercent,
		Discount:       dec(33),
		RequiredPoints: dec(1),
	}
	amount, _, ok := ComputeDiscount(reward, decimal.RequireFromString("9.99"), dec(1))
	if !ok {
		t.Fatal("reward should apply")
	}
	if !amount.Equal(decimal.RequireFromString("3.29")) {
		t.Errorf("expected 3.29, got %s", amount)
	}
}

// =============================================================================
// BASE TRACKER
// =============================================================================

func TestBaseTracker_OrderBaseShrinks(t *testing.T) {
	// GIVEN: An order with two lines totaling 150
	// WHEN: 120 is consumed against the order target
	// THEN: The next reward sees a base of 30 and lines drained in order

	order := Order{Lines: []OrderLine{line("a", 1, 100), line("b", 1, 50)}}
	tracker := newBaseTracker(order)

	if got := tracker.base(order, TargetOrder, nil); !got.Equal(dec(150)) {
		t.Fatalf("initial base should be 150, got %s", got)
	}
	tracker.consume(order, TargetOrder, nil, dec(120))
	if got := tracker.base(order, TargetOrder, nil); !got.Equal(dec(30)) {
		t.Errorf("remaining base should be 30, got %s", got)
	}
	// First line fully drained, remainder on the second.
	if !tracker.lines[0].IsZero() || !tracker.lines[1].Equal(dec(30)) {
		t.Errorf("lines drained out of order: %v", tracker.lines)
	}
}

func TestBaseTracker_ShippingIndependentOfOrder(t *testing.T) {
	// GIVEN: An order with a delivery cost
	// WHEN: The order base is consumed
	// THEN: The shipping base is untouched, and vice versa

	order := Order{
		Lines:        []OrderLine{line("a", 1, 100)},
		DeliveryCost: dec(20),
	}
	tracker := newBaseTracker(order)
	tracker.consume(order, TargetOrder, nil, dec(100))

	if got := tracker.base(order, TargetShipping, nil); !got.Equal(dec(20)) {
		t.Errorf("shipping base should be 20, got %s", got)
	}
	tracker.consume(order, TargetShipping, nil, dec(20))
	if got := tracker.base(order, TargetShipping, nil); !got.IsZero() {
		t.Errorf("shipping base should be drained, got %s", got)
	}
}

func TestBaseTracker_SpecificProducts(t *testing.T) {
	// GIVEN: A product-targeted reward filter
	// WHEN: The base is read and consumed
	// THEN: Only matching lines count; other lines keep their base

	order := Order{Lines: []OrderLine{line("a", 1, 100), line("b", 1, 50)}}
	tracker := newBaseTracker(order)
	filter := []ProductID{"b"}

	if got := tracker.base(order, TargetProducts, filter); !got.Equal(dec(50)) {
		t.Fatalf("product base should be 50, got %s", got)
	}
	tracker.consume(order, TargetProducts, filter, dec(50))
	if got := tracker.base(order, TargetOrder, nil); !got.Equal(dec(100)) {
		t.Errorf("unfiltered line should keep its base, got %s", got)
	}
}
