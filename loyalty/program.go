/*
program.go - Program, Rule, and Reward configuration model

PURPOSE:
  Defines the administrative configuration the engine evaluates:
  a Program bundles accrual Rules and redeemable Rewards under a
  trigger mode and applicability scope. Configuration is created by
  an administrator, mutated rarely (activation toggling), and never
  changes during an evaluation.

VALIDATION CONTRACT:
  Configuration must be validated ONCE, at load time, via Validate().
  A malformed mode or negative amount is fatal to that program's
  activation and is never surfaced mid-order. The engine assumes
  every Program it receives has passed Validate.

PROGRAM TYPES:
  gift_card:  Point balance purchased as a product; points are
              currency-equivalent (per_point redemption)
  ewallet:    Prepaid/promotional balance, same redemption shape
  promotion:  No backing card; earns points on the current order and
              burns them in the same evaluation (earn-and-burn)

EARN-AND-BURN:
  Whether points earned on the current order are spendable within the
  same checkout is program policy, not engine policy. EarnAndBurn is
  the explicit per-program flag. Promotions set it; stored-value
  programs (gift cards, e-wallets) normally do not - their accruals
  are credited at commit and spendable on future orders.

SEE ALSO:
  - rules.go: How Rules produce Accruals
  - reward.go: How Rewards produce discounts
  - factory/program.go: JSON records -> validated Programs
*/
package loyalty

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// ProgramType classifies the commercial shape of a program.
type ProgramType string

const (
	ProgramGiftCard  ProgramType = "gift_card"
	ProgramEWallet   ProgramType = "ewallet"
	ProgramPromotion ProgramType = "promotion"
)

// AppliesOn scopes a program's accruals: current-order benefits or
// points banked for future orders.
type AppliesOn string

const (
	AppliesCurrent AppliesOn = "current"
	AppliesFuture  AppliesOn = "future"
)

// Trigger determines whether a program participates automatically or
// only when the shopper enters a matching account code.
type Trigger string

const (
	TriggerAuto Trigger = "auto"
	TriggerCode Trigger = "code"
)

// PointMode is the accrual basis for a rule.
type PointMode string

const (
	PointsPerMoney PointMode = "money" // points per currency unit of matching subtotal
	PointsPerUnit  PointMode = "unit"  // points per matching quantity
	PointsPerOrder PointMode = "order" // flat points, once per order
)

// RewardType classifies the redeemable benefit.
type RewardType string

const (
	RewardDiscount RewardType = "discount"
	RewardShipping RewardType = "shipping"
	RewardProduct  RewardType = "product"
)

// DiscountMode determines how a reward's discount amount is computed.
type DiscountMode string

const (
	DiscountPercent  DiscountMode = "percent"
	DiscountFixed    DiscountMode = "fixed"
	DiscountPerPoint DiscountMode = "per_point"
)

// =============================================================================
// RULE - Condition + point-accrual formula
// =============================================================================

// Rule earns points on qualifying orders. A Rule belongs to exactly
// one Program.
type Rule struct {
	ID RuleID

	// MinimumQuantity gates the rule: it does not fire unless the
	// summed matching quantity meets it. Zero means no threshold.
	MinimumQuantity decimal.Decimal

	// PointAmount is the points earned per unit of the accrual basis.
	PointAmount decimal.Decimal

	// PointMode selects the accrual basis (money, unit, order).
	PointMode PointMode

	// Split reports accrual per matching line instead of once per
	// order, so points can be attributed to specific purchases.
	Split bool

	// ProductIDs restricts which lines count toward accrual.
	// Empty means all lines count.
	ProductIDs []ProductID
}

// matches reports whether a line counts toward this rule.
func (r Rule) matches(line OrderLine) bool {
	if len(r.ProductIDs) == 0 {
		return true
	}
	for _, id := range r.ProductIDs {
		if id == line.ProductID {
			return true
		}
	}
	return false
}

// =============================================================================
// REWARD - Redeemable benefit costing points
// =============================================================================

// Reward is a redeemable benefit. A Reward belongs to exactly one
// Program.
type Reward struct {
	ID            RewardID
	RewardType    RewardType
	DiscountMode  DiscountMode
	Discount      decimal.Decimal // percent rate, flat amount, or per-point rate
	Applicability DiscountTarget
	ProductIDs    []ProductID // for TargetProducts applicability

	// MaxAmount caps the final computed amount in currency units,
	// regardless of mode. Zero means uncapped.
	MaxAmount decimal.Decimal

	// RequiredPoints is the cost to redeem. Always > 0.
	RequiredPoints decimal.Decimal

	// Description is the user-facing label ("PAY WITH GIFT CARD").
	Description string
}

// =============================================================================
// PROGRAM - Rules + Rewards under one trigger and scope
// =============================================================================

// Program is a named configuration bundling accrual rules and
// redeemable rewards. An inactive Program never contributes rules or
// rewards to evaluation.
type Program struct {
	ID          ProgramID
	Name        string
	ProgramType ProgramType
	AppliesOn   AppliesOn
	Trigger     Trigger
	Active      bool

	// EarnAndBurn makes points earned on the current order spendable
	// within the same evaluation. See package comment.
	EarnAndBurn bool

	Rules   []Rule
	Rewards []Reward
}

// =============================================================================
// LOAD-TIME VALIDATION
// =============================================================================

// Validate checks the program definition. It is called once at load
// time; evaluation never re-validates. Any failure wraps
// ErrConfiguration and is fatal to the program's activation.
func (p *Program) Validate() error {
	switch p.ProgramType {
	case ProgramGiftCard, ProgramEWallet, ProgramPromotion:
	default:
		return &ConfigurationError{ProgramID: p.ID, Field: "program_type", Detail: string(p.ProgramType)}
	}
	switch p.AppliesOn {
	case AppliesCurrent, AppliesFuture:
	default:
		return &ConfigurationError{ProgramID: p.ID, Field: "applies_on", Detail: string(p.AppliesOn)}
	}
	switch p.Trigger {
	case TriggerAuto, TriggerCode:
	default:
		return &ConfigurationError{ProgramID: p.ID, Field: "trigger", Detail: string(p.Trigger)}
	}

	for _, r := range p.Rules {
		switch r.PointMode {
		case PointsPerMoney, PointsPerUnit, PointsPerOrder:
		default:
			return &ConfigurationError{ProgramID: p.ID, Field: "reward_point_mode", Detail: string(r.PointMode)}
		}
		if r.PointAmount.IsNegative() {
			return &ConfigurationError{ProgramID: p.ID, Field: "reward_point_amount", Detail: "must be >= 0"}
		}
		if r.MinimumQuantity.IsNegative() {
			return &ConfigurationError{ProgramID: p.ID, Field: "minimum_quantity", Detail: "must be >= 0"}
		}
	}

	for _, rw := range p.Rewards {
		switch rw.RewardType {
		case RewardDiscount, RewardShipping, RewardProduct:
		default:
			return &ConfigurationError{ProgramID: p.ID, Field: "reward_type", Detail: string(rw.RewardType)}
		}
		switch rw.DiscountMode {
		case DiscountPercent, DiscountFixed, DiscountPerPoint:
		default:
			return &ConfigurationError{ProgramID: p.ID, Field: "discount_mode", Detail: string(rw.DiscountMode)}
		}
		switch rw.Applicability {
		case TargetOrder, TargetShipping, TargetProducts:
		default:
			return &ConfigurationError{ProgramID: p.ID, Field: "discount_applicability", Detail: string(rw.Applicability)}
		}
		if rw.Discount.IsNegative() {
			return &ConfigurationError{ProgramID: p.ID, Field: "discount", Detail: "must be >= 0"}
		}
		if rw.MaxAmount.IsNegative() {
			return &ConfigurationError{ProgramID: p.ID, Field: "discount_max_amount", Detail: "must be >= 0"}
		}
		if !rw.RequiredPoints.IsPositive() {
			return &ConfigurationError{ProgramID: p.ID, Field: "required_points", Detail: "must be > 0"}
		}
		if rw.Applicability == TargetProducts && len(rw.ProductIDs) == 0 {
			return &ConfigurationError{ProgramID: p.ID, Field: "discount_applicability", Detail: "specific_products requires product ids"}
		}
	}

	return nil
}

// ValidatePrograms validates a whole candidate set and returns the
// first failure.
func ValidatePrograms(programs []*Program) error {
	for _, p := range programs {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
