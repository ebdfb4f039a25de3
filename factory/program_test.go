package factory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

func TestParseProgram_GiftCard(t *testing.T) {
	// GIVEN: The gift-card record as marketing would write it
	// WHEN: Parsed
	// THEN: Rules and rewards carry the configured modes and filters

	jsonStr := `{
		"id": "gift-cards",
		"name": "Gift Cards",
		"program_type": "gift_card",
		"applies_on": "future",
		"rules": [{
			"reward_point_amount": 1,
			"reward_point_mode": "money",
			"reward_point_split": true,
			"product_ids": ["gift-card-50"]
		}],
		"rewards": [{
			"reward_type": "discount",
			"discount_mode": "per_point",
			"discount": 1,
			"discount_applicability": "order",
			"description": "PAY WITH GIFT CARD"
		}]
	}`

	pf := NewProgramFactory()
	program, err := pf.ParseProgram(jsonStr)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if program.ProgramType != loyalty.ProgramGiftCard {
		t.Errorf("expected gift_card type, got %s", program.ProgramType)
	}
	if program.EarnAndBurn {
		t.Error("applies_on future should not default to earn-and-burn")
	}
	if len(program.Rules) != 1 || !program.Rules[0].Split {
		t.Fatalf("unexpected rules: %+v", program.Rules)
	}
	if program.Rules[0].PointMode != loyalty.PointsPerMoney {
		t.Errorf("expected money mode, got %s", program.Rules[0].PointMode)
	}
	if len(program.Rewards) != 1 || program.Rewards[0].DiscountMode != loyalty.DiscountPerPoint {
		t.Fatalf("unexpected rewards: %+v", program.Rewards)
	}
	if !program.Rewards[0].RequiredPoints.Equal(decimal.NewFromInt(1)) {
		t.Errorf("required_points should default to 1, got %s", program.Rewards[0].RequiredPoints)
	}
}

func TestParseProgram_ShippingShorthand(t *testing.T) {
	// GIVEN: The minimal "free shipping up to $75" record
	// WHEN: Parsed
	// THEN: Applicability, mode and cap are filled in from the type

	jsonStr := `{
		"id": "free-ship",
		"rules": [{"minimum_qty": 3}],
		"rewards": [{"reward_type": "shipping", "discount_max_amount": 75}]
	}`

	pf := NewProgramFactory()
	program, err := pf.ParseProgram(jsonStr)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	reward := program.Rewards[0]
	if reward.Applicability != loyalty.TargetShipping {
		t.Errorf("shipping reward should target shipping, got %s", reward.Applicability)
	}
	if reward.DiscountMode != loyalty.DiscountPercent || !reward.Discount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected default 100%% discount, got %s %s", reward.DiscountMode, reward.Discount)
	}
	if !reward.MaxAmount.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected $75 cap, got %s", reward.MaxAmount)
	}

	rule := program.Rules[0]
	if !rule.MinimumQuantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected minimum quantity 3, got %s", rule.MinimumQuantity)
	}
	if rule.PointMode != loyalty.PointsPerOrder || !rule.PointAmount.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected default flat 1 point per order, got %+v", rule)
	}
}

func TestParseProgram_Defaults(t *testing.T) {
	pf := NewProgramFactory()
	program, err := pf.ParseProgram(`{"id": "bare"}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if program.ProgramType != loyalty.ProgramPromotion {
		t.Errorf("default type should be promotion, got %s", program.ProgramType)
	}
	if program.AppliesOn != loyalty.AppliesCurrent || program.Trigger != loyalty.TriggerAuto {
		t.Errorf("unexpected defaults: %s/%s", program.AppliesOn, program.Trigger)
	}
	if !program.Active {
		t.Error("programs should default to active")
	}
	if !program.EarnAndBurn {
		t.Error("applies_on current should default to earn-and-burn")
	}
}

func TestParseProgram_GeneratedIDs(t *testing.T) {
	pf := NewProgramFactory()
	program, err := pf.ParseProgram(`{
		"id": "promo",
		"rules": [{}, {}],
		"rewards": [{}]
	}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if program.Rules[0].ID != "promo-rule-1" || program.Rules[1].ID != "promo-rule-2" {
		t.Errorf("unexpected rule ids: %q, %q", program.Rules[0].ID, program.Rules[1].ID)
	}
	if program.Rewards[0].ID != "promo-reward-1" {
		t.Errorf("unexpected reward id: %q", program.Rewards[0].ID)
	}
}

func TestParseProgram_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		jsonStr string
	}{
		{"missing id", `{"name": "anonymous"}`},
		{"bad point mode", `{"id": "x", "rules": [{"reward_point_mode": "vibes"}]}`},
		{"bad discount mode", `{"id": "x", "rewards": [{"discount_mode": "vibes"}]}`},
		{"zero required points", `{"id": "x", "rewards": [{"required_points": 0}]}`},
		{"negative discount", `{"id": "x", "rewards": [{"discount": -5}]}`},
		{"malformed json", `{"id": `},
	}

	pf := NewProgramFactory()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pf.ParseProgram(tc.jsonStr)
			if err == nil {
				t.Fatal("expected a parse or validation error")
			}
		})
	}
}

func TestParseProgram_ConfigurationErrorDetail(t *testing.T) {
	// Load-time failures identify the program and field.
	pf := NewProgramFactory()
	_, err := pf.ParseProgram(`{"id": "broken", "rules": [{"reward_point_mode": "vibes"}]}`)

	var cfgErr *loyalty.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.ProgramID != "broken" || cfgErr.Field != "reward_point_mode" {
		t.Errorf("unexpected error detail: %+v", cfgErr)
	}
	if !errors.Is(err, loyalty.ErrConfiguration) {
		t.Error("error should unwrap to ErrConfiguration")
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	// GIVEN: A parsed program
	// WHEN: Converted back to its record and parsed again
	// THEN: The semantics survive

	pf := NewProgramFactory()
	original, err := pf.ParseProgram(`{
		"id": "promo",
		"trigger": "code",
		"rules": [{"minimum_qty": 3, "reward_point_amount": 2, "reward_point_mode": "unit"}],
		"rewards": [{"reward_type": "shipping", "discount_max_amount": 75}]
	}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	reparsed, err := pf.FromJSON(pf.ToJSON(original))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if reparsed.Trigger != loyalty.TriggerCode {
		t.Errorf("trigger lost in round trip: %s", reparsed.Trigger)
	}
	if !reparsed.Rules[0].PointAmount.Equal(original.Rules[0].PointAmount) {
		t.Errorf("point amount lost: %s vs %s", reparsed.Rules[0].PointAmount, original.Rules[0].PointAmount)
	}
	if !reparsed.Rewards[0].MaxAmount.Equal(original.Rewards[0].MaxAmount) {
		t.Errorf("cap lost: %s vs %s", reparsed.Rewards[0].MaxAmount, original.Rewards[0].MaxAmount)
	}
	if reparsed.EarnAndBurn != original.EarnAndBurn {
		t.Error("earn-and-burn flag lost in round trip")
	}
}
