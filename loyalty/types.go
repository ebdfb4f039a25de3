/*
Package loyalty provides the core rewards evaluation engine.

PURPOSE:
  This package contains the domain types and algorithms for evaluating
  loyalty programs against a shopping order: which accrual rules fire,
  which rewards apply, how large each discount is, and which point
  balances move. Gift cards, e-wallets, and promotions all run through
  the same engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Order/OrderLine: The order snapshot under evaluation (read-only)
  - Accrual: Points earned by a rule match, attributed to a basis
  - AppliedReward: A computed discount with its target and point cost
  - Evaluation: The full result of one engine pass over an order

DESIGN PRINCIPLES:
  1. Purity: Evaluate never mutates balances; Commit does, atomically
  2. Precision: Uses decimal.Decimal - balances can be astronomically
     large (promotional e-wallets) and must never lose precision
  3. Determinism: Identical input snapshots produce identical results
  4. Type Safety: Strong typing for IDs prevents mixing program,
     account, and product identifiers

USAGE:
  order := loyalty.Order{
      Lines:        []loyalty.OrderLine{{ProductID: "plumbus", Quantity: three, UnitPrice: hundred}},
      DeliveryCost: five,
  }
  eval := engine.Evaluate(loyalty.EvaluateInput{Order: order, Programs: programs, Accounts: accounts})

SEE ALSO:
  - program.go: Program/Rule/Reward configuration model
  - rules.go: Accrual rule evaluation
  - reward.go: Discount computation
  - engine.go: Multi-program composition and commit
*/
package loyalty

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProgramID string
type AccountID string
type ProductID string
type CarrierID string
type RuleID string
type RewardID string

// =============================================================================
// ORDER - External snapshot, consumed read-mostly
// =============================================================================

// OrderLine is one product line of the order under evaluation.
// Subtotals are already computed by the order subsystem; the engine
// never re-prices lines.
type OrderLine struct {
	ProductID ProductID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity * unit price for this line.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Order is the snapshot the engine evaluates. The delivery cost is a
// pseudo-line with its own discount target ("shipping") and is never
// part of the product-line subtotal.
type Order struct {
	ID           string
	Lines        []OrderLine
	CarrierID    CarrierID
	DeliveryCost decimal.Decimal
}

// Subtotal returns the sum of all product-line subtotals.
// Delivery cost is excluded.
func (o Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// TotalQuantity returns the summed quantity across all lines.
func (o Order) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

// =============================================================================
// ACCRUAL - Points earned by a rule match
// =============================================================================

// Accrual records points earned on the order by one rule. When the
// rule's split flag is set, one Accrual is emitted per matching line
// (LineIndex >= 0) so redemption bookkeeping can attribute points to
// specific purchases. Aggregate accruals use LineIndex == -1.
type Accrual struct {
	ProgramID ProgramID
	RuleID    RuleID
	AccountID AccountID // account to credit at commit; empty if none bound
	LineIndex int       // -1 for whole-order accrual
	ProductID ProductID // set when LineIndex >= 0
	Points    decimal.Decimal
}

// =============================================================================
// APPLIED REWARD - Engine output, transient
// =============================================================================

// DiscountTarget identifies which base a discount reduces.
type DiscountTarget string

const (
	TargetOrder    DiscountTarget = "order"
	TargetShipping DiscountTarget = "shipping"
	TargetProducts DiscountTarget = "specific_products"
)

// AppliedReward is one resolved discount. Amount is guaranteed to be
// non-negative, never larger than the remaining base it targets, and
// never larger than the reward's max-amount cap.
type AppliedReward struct {
	ProgramID      ProgramID
	RewardID       RewardID
	AccountID      AccountID // empty for earn-and-burn promotions with no card
	Target         DiscountTarget
	ProductIDs     []ProductID // populated when Target == TargetProducts
	Amount         decimal.Decimal
	PointsConsumed decimal.Decimal
	Description    string
}

// =============================================================================
// REJECTION - Per-order errors surfaced in the result
// =============================================================================

// Rejection reports a redemption the engine refused. Code-triggered
// redemptions the user explicitly asked for are never dropped
// silently; they come back here. Auto-triggered programs are skipped
// without a Rejection.
type Rejection struct {
	Code   string
	Reason string
	Err    error
}

// =============================================================================
// EVALUATION - Result of one engine pass
// =============================================================================

// AccountSnapshot records the balance and version an evaluation was
// computed against. Commit uses it to detect concurrent modification.
type AccountSnapshot struct {
	AccountID AccountID
	Points    decimal.Decimal
	Version   int64
}

// Evaluation is the complete output of Engine.Evaluate. It is pure
// computation: nothing has been debited or credited yet. The caller
// applies Applied to the order's displayed totals and invokes
// Engine.Commit once the order is guaranteed to finalize.
type Evaluation struct {
	ID         string
	OrderID    string
	Applied    []AppliedReward
	Accruals   []Accrual
	Rejections []Rejection
	Snapshots  []AccountSnapshot
}

// TotalDiscount returns the summed discount for a target.
func (e *Evaluation) TotalDiscount(target DiscountTarget) decimal.Decimal {
	total := decimal.Zero
	for _, ar := range e.Applied {
		if ar.Target == target {
			total = total.Add(ar.Amount)
		}
	}
	return total
}

// PointsConsumed returns the total points an account spends in this
// evaluation.
func (e *Evaluation) PointsConsumed(id AccountID) decimal.Decimal {
	total := decimal.Zero
	for _, ar := range e.Applied {
		if ar.AccountID == id {
			total = total.Add(ar.PointsConsumed)
		}
	}
	return total
}

// PointsAccrued returns the total points an account earns in this
// evaluation.
func (e *Evaluation) PointsAccrued(id AccountID) decimal.Decimal {
	if id == "" {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, a := range e.Accruals {
		if a.AccountID == id {
			total = total.Add(a.Points)
		}
	}
	return total
}
