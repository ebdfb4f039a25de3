/*
Package factory provides JSON to Go program conversion.

PURPOSE:
  Converts JSON program definitions into loyalty.Program values. This
  enables program configuration without code changes - marketing can
  define programs in JSON, and the factory creates validated Go
  structs.

JSON SCHEMA:
  {
    "id": "gift-cards",
    "name": "Gift Cards",
    "program_type": "gift_card",
    "applies_on": "future",
    "trigger": "auto",
    "rules": [{
      "reward_point_amount": 1,
      "reward_point_mode": "money",
      "reward_point_split": true,
      "product_ids": ["gift-card-product"]
    }],
    "rewards": [{
      "reward_type": "discount",
      "discount_mode": "per_point",
      "discount": 1,
      "discount_applicability": "order",
      "required_points": 1,
      "description": "PAY WITH GIFT CARD"
    }]
  }

DEFAULTS:
  Omitted fields get the administrative defaults: programs are active,
  applies_on "current", trigger "auto"; rules earn 1 point per order;
  rewards are order discounts in percent mode costing 1 point. A
  shipping-type reward defaults to a 100% discount on the shipping
  charge - "free shipping up to the max amount" is expressible as just
  {"reward_type": "shipping", "discount_max_amount": 75}.

  earn_and_burn defaults from applies_on: "current" programs may
  spend points earned on the order being evaluated, "future" programs
  bank them.

VALIDATION:
  Every parsed program runs loyalty.Program.Validate() before being
  returned. A malformed record fails here, at load time - never
  mid-order.

SEE ALSO:
  - loyalty/program.go: Target types and validation rules
  - api/handlers.go: Accepts these records over HTTP
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProgramJSON is the JSON representation of a program.
type ProgramJSON struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ProgramType string       `json:"program_type"`
	AppliesOn   string       `json:"applies_on,omitempty"`
	Trigger     string       `json:"trigger,omitempty"`
	Active      *bool        `json:"active,omitempty"`
	EarnAndBurn *bool        `json:"earn_and_burn,omitempty"`
	Rules       []RuleJSON   `json:"rules,omitempty"`
	Rewards     []RewardJSON `json:"rewards,omitempty"`
}

// RuleJSON represents one accrual rule.
type RuleJSON struct {
	ID              string   `json:"id,omitempty"`
	MinimumQuantity float64  `json:"minimum_qty,omitempty"`
	PointAmount     *float64 `json:"reward_point_amount,omitempty"`
	PointMode       string   `json:"reward_point_mode,omitempty"`
	Split           bool     `json:"reward_point_split,omitempty"`
	ProductIDs      []string `json:"product_ids,omitempty"`
}

// RewardJSON represents one redeemable reward.
type RewardJSON struct {
	ID             string   `json:"id,omitempty"`
	RewardType     string   `json:"reward_type,omitempty"`
	DiscountMode   string   `json:"discount_mode,omitempty"`
	Discount       *float64 `json:"discount,omitempty"`
	Applicability  string   `json:"discount_applicability,omitempty"`
	ProductIDs     []string `json:"discount_product_ids,omitempty"`
	MaxAmount      float64  `json:"discount_max_amount,omitempty"`
	RequiredPoints *float64 `json:"required_points,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// =============================================================================
// PROGRAM FACTORY
// =============================================================================

// ProgramFactory converts JSON programs to Go structs.
type ProgramFactory struct{}

// NewProgramFactory creates a new program factory.
func NewProgramFactory() *ProgramFactory {
	return &ProgramFactory{}
}

// ParseProgram parses a JSON string into a validated Program.
func (f *ProgramFactory) ParseProgram(jsonStr string) (*loyalty.Program, error) {
	var pj ProgramJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse program JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts a decoded record into a validated Program.
func (f *ProgramFactory) FromJSON(pj ProgramJSON) (*loyalty.Program, error) {
	if pj.ID == "" {
		return nil, &loyalty.ConfigurationError{Field: "id", Detail: "required"}
	}

	program := &loyalty.Program{
		ID:          loyalty.ProgramID(pj.ID),
		Name:        pj.Name,
		ProgramType: loyalty.ProgramType(defaultStr(pj.ProgramType, string(loyalty.ProgramPromotion))),
		AppliesOn:   loyalty.AppliesOn(defaultStr(pj.AppliesOn, string(loyalty.AppliesCurrent))),
		Trigger:     loyalty.Trigger(defaultStr(pj.Trigger, string(loyalty.TriggerAuto))),
		Active:      true,
	}
	if pj.Active != nil {
		program.Active = *pj.Active
	}
	if pj.EarnAndBurn != nil {
		program.EarnAndBurn = *pj.EarnAndBurn
	} else {
		program.EarnAndBurn = program.AppliesOn == loyalty.AppliesCurrent
	}

	for i, rj := range pj.Rules {
		program.Rules = append(program.Rules, f.ruleFromJSON(pj.ID, i, rj))
	}
	for i, rwj := range pj.Rewards {
		program.Rewards = append(program.Rewards, f.rewardFromJSON(pj.ID, i, rwj))
	}

	if err := program.Validate(); err != nil {
		return nil, err
	}
	return program, nil
}

func (f *ProgramFactory) ruleFromJSON(programID string, index int, rj RuleJSON) loyalty.Rule {
	rule := loyalty.Rule{
		ID:              loyalty.RuleID(defaultStr(rj.ID, fmt.Sprintf("%s-rule-%d", programID, index+1))),
		MinimumQuantity: decimal.NewFromFloat(rj.MinimumQuantity),
		PointAmount:     decimal.NewFromInt(1),
		PointMode:       loyalty.PointMode(defaultStr(rj.PointMode, string(loyalty.PointsPerOrder))),
		Split:           rj.Split,
	}
	if rj.PointAmount != nil {
		rule.PointAmount = decimal.NewFromFloat(*rj.PointAmount)
	}
	for _, id := range rj.ProductIDs {
		rule.ProductIDs = append(rule.ProductIDs, loyalty.ProductID(id))
	}
	return rule
}

func (f *ProgramFactory) rewardFromJSON(programID string, index int, rwj RewardJSON) loyalty.Reward {
	reward := loyalty.Reward{
		ID:             loyalty.RewardID(defaultStr(rwj.ID, fmt.Sprintf("%s-reward-%d", programID, index+1))),
		RewardType:     loyalty.RewardType(defaultStr(rwj.RewardType, string(loyalty.RewardDiscount))),
		DiscountMode:   loyalty.DiscountMode(defaultStr(rwj.DiscountMode, string(loyalty.DiscountPercent))),
		Discount:       decimal.NewFromInt(100),
		Applicability:  loyalty.DiscountTarget(defaultStr(rwj.Applicability, string(loyalty.TargetOrder))),
		MaxAmount:      decimal.NewFromFloat(rwj.MaxAmount),
		RequiredPoints: decimal.NewFromInt(1),
		Description:    rwj.Description,
	}
	if rwj.Discount != nil {
		reward.Discount = decimal.NewFromFloat(*rwj.Discount)
	}
	if rwj.RequiredPoints != nil {
		reward.RequiredPoints = decimal.NewFromFloat(*rwj.RequiredPoints)
	}
	for _, id := range rwj.ProductIDs {
		reward.ProductIDs = append(reward.ProductIDs, loyalty.ProductID(id))
	}

	// A shipping reward is "free shipping" unless told otherwise:
	// applicability follows the reward type, and an unset discount
	// means 100% of the (possibly capped) shipping charge.
	if reward.RewardType == loyalty.RewardShipping && rwj.Applicability == "" {
		reward.Applicability = loyalty.TargetShipping
	}

	return reward
}

// ToJSON converts a Program back into its JSON record, the inverse of
// FromJSON. Used by the API to echo stored configuration.
func (f *ProgramFactory) ToJSON(p *loyalty.Program) ProgramJSON {
	active := p.Active
	earnAndBurn := p.EarnAndBurn
	pj := ProgramJSON{
		ID:          string(p.ID),
		Name:        p.Name,
		ProgramType: string(p.ProgramType),
		AppliesOn:   string(p.AppliesOn),
		Trigger:     string(p.Trigger),
		Active:      &active,
		EarnAndBurn: &earnAndBurn,
	}
	for _, r := range p.Rules {
		amount, _ := r.PointAmount.Float64()
		minQty, _ := r.MinimumQuantity.Float64()
		rj := RuleJSON{
			ID:              string(r.ID),
			MinimumQuantity: minQty,
			PointAmount:     &amount,
			PointMode:       string(r.PointMode),
			Split:           r.Split,
		}
		for _, id := range r.ProductIDs {
			rj.ProductIDs = append(rj.ProductIDs, string(id))
		}
		pj.Rules = append(pj.Rules, rj)
	}
	for _, rw := range p.Rewards {
		discount, _ := rw.Discount.Float64()
		required, _ := rw.RequiredPoints.Float64()
		maxAmount, _ := rw.MaxAmount.Float64()
		rwj := RewardJSON{
			ID:             string(rw.ID),
			RewardType:     string(rw.RewardType),
			DiscountMode:   string(rw.DiscountMode),
			Discount:       &discount,
			Applicability:  string(rw.Applicability),
			MaxAmount:      maxAmount,
			RequiredPoints: &required,
			Description:    rw.Description,
		}
		for _, id := range rw.ProductIDs {
			rwj.ProductIDs = append(rwj.ProductIDs, string(id))
		}
		pj.Rewards = append(pj.Rewards, rwj)
	}
	return pj
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
