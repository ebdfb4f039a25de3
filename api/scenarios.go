/*
scenarios.go - Loadable demo scenarios

PURPOSE:
  Seeds the store and catalog with ready-made program configurations
  so the API can be exercised without hand-assembling fixtures. Each
  scenario mirrors a real storefront setup: gift cards paying for an
  order (and its delivery fees), a promotional e-wallet with an
  enormous balance, and a quantity-gated shipping discount.

SCENARIOS:
  gift-cards:
    Gift card program (split money accrual on the gift-card product,
    per-point order discount) plus a 50,000 point card, code 123456.

  ewallet:
    eWallet program with a 6e66 point balance, code
    infinite-money-glitch. Redeeming against any realistic order must
    consume only enough points to cover it.

  shipping-discount:
    "Buy 3, get up to $75 discount on shipping": minimum quantity 3,
    shipping reward capped at $75, carrier priced at $100.

SEE ALSO:
  - handlers.go: /api/scenarios endpoints
  - loyalty/engine_test.go: The same fixtures drive the engine tests
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/catalog"
	"github.com/warp/loyalty-engine/loyalty"
)

// ScenarioManager loads demo fixtures into the store and catalog.
type ScenarioManager struct {
	store   loyalty.Store
	catalog *catalog.Catalog
}

func NewScenarioManager(store loyalty.Store, cat *catalog.Catalog) *ScenarioManager {
	return &ScenarioManager{store: store, catalog: cat}
}

// List returns the available scenarios.
func (sm *ScenarioManager) List() []ScenarioDTO {
	return []ScenarioDTO{
		{
			ID:          "gift-cards",
			Name:        "Gift Cards",
			Description: "Gift card program with a 50,000 point card (code 123456) paying order totals per point",
		},
		{
			ID:          "ewallet",
			Name:        "eWallet",
			Description: "Promotional e-wallet with an effectively unlimited balance (code infinite-money-glitch)",
		},
		{
			ID:          "shipping-discount",
			Name:        "Shipping Discount",
			Description: "Buy 3, get up to $75 discount on shipping; carrier priced at $100",
		},
	}
}

// Load seeds one scenario. Loading is additive: programs and carriers
// with the same ids are replaced, accounts get fresh ids.
func (sm *ScenarioManager) Load(ctx context.Context, id string) error {
	sm.seedCatalog()

	switch id {
	case "gift-cards":
		return sm.loadGiftCards(ctx)
	case "ewallet":
		return sm.loadEWallet(ctx)
	case "shipping-discount":
		return sm.loadShippingDiscount(ctx)
	default:
		return errBadRequest(fmt.Sprintf("unknown scenario %q", id))
	}
}

func (sm *ScenarioManager) seedCatalog() {
	sm.catalog.AddProduct(catalog.Product{
		ID: "plumbus", Name: "Plumbus",
		ListPrice: decimal.NewFromInt(100), Published: true,
	})
	sm.catalog.AddProduct(catalog.Product{
		ID: "gift-card-50", Name: "TEST - Gift Card",
		ListPrice: decimal.NewFromInt(50), Published: true,
	})
	sm.catalog.AddCarrier(catalog.Carrier{
		ID: "normal-delivery", Name: "delivery1",
		FixedPrice: decimal.NewFromInt(5), Published: true,
	})
	sm.catalog.AddCarrier(catalog.Carrier{
		ID: "normal-delivery-2", Name: "delivery2",
		FixedPrice: decimal.NewFromInt(10), Published: true,
	})
}

func (sm *ScenarioManager) loadGiftCards(ctx context.Context) error {
	program := &loyalty.Program{
		ID:          "gift-cards",
		Name:        "Gift Cards",
		ProgramType: loyalty.ProgramGiftCard,
		AppliesOn:   loyalty.AppliesFuture,
		Trigger:     loyalty.TriggerAuto,
		Active:      true,
		Rules: []loyalty.Rule{{
			ID:          "gift-cards-rule-1",
			PointAmount: decimal.NewFromInt(1),
			PointMode:   loyalty.PointsPerMoney,
			Split:       true,
			ProductIDs:  []loyalty.ProductID{"gift-card-50"},
		}},
		Rewards: []loyalty.Reward{{
			ID:             "gift-cards-reward-1",
			RewardType:     loyalty.RewardDiscount,
			DiscountMode:   loyalty.DiscountPerPoint,
			Discount:       decimal.NewFromInt(1),
			Applicability:  loyalty.TargetOrder,
			RequiredPoints: decimal.NewFromInt(1),
			Description:    "PAY WITH GIFT CARD",
		}},
	}
	if err := sm.store.SaveProgram(ctx, program); err != nil {
		return err
	}
	return sm.issue(ctx, program.ID, "123456", decimal.NewFromInt(50000))
}

func (sm *ScenarioManager) loadEWallet(ctx context.Context) error {
	program := &loyalty.Program{
		ID:          "ewallet",
		Name:        "eWallet",
		ProgramType: loyalty.ProgramEWallet,
		AppliesOn:   loyalty.AppliesFuture,
		Trigger:     loyalty.TriggerAuto,
		Active:      true,
		Rewards: []loyalty.Reward{{
			ID:             "ewallet-reward-1",
			RewardType:     loyalty.RewardDiscount,
			DiscountMode:   loyalty.DiscountPerPoint,
			Discount:       decimal.NewFromInt(1),
			Applicability:  loyalty.TargetOrder,
			RequiredPoints: decimal.NewFromInt(1),
			Description:    "Pay with eWallet",
		}},
	}
	if err := sm.store.SaveProgram(ctx, program); err != nil {
		return err
	}
	return sm.issue(ctx, program.ID, "infinite-money-glitch",
		decimal.RequireFromString("6e66"))
}

func (sm *ScenarioManager) loadShippingDiscount(ctx context.Context) error {
	sm.catalog.AddCarrier(catalog.Carrier{
		ID: "normal-delivery", Name: "delivery1",
		FixedPrice: decimal.NewFromInt(100), Published: true,
	})

	program := &loyalty.Program{
		ID:          "shipping-discount",
		Name:        "Buy 3, get up to $75 discount on shipping",
		ProgramType: loyalty.ProgramPromotion,
		AppliesOn:   loyalty.AppliesCurrent,
		Trigger:     loyalty.TriggerAuto,
		Active:      true,
		EarnAndBurn: true,
		Rules: []loyalty.Rule{{
			ID:              "shipping-discount-rule-1",
			MinimumQuantity: decimal.NewFromInt(3),
			PointAmount:     decimal.NewFromInt(1),
			PointMode:       loyalty.PointsPerOrder,
		}},
		Rewards: []loyalty.Reward{{
			ID:             "shipping-discount-reward-1",
			RewardType:     loyalty.RewardShipping,
			DiscountMode:   loyalty.DiscountPercent,
			Discount:       decimal.NewFromInt(100),
			Applicability:  loyalty.TargetShipping,
			MaxAmount:      decimal.NewFromInt(75),
			RequiredPoints: decimal.NewFromInt(1),
			Description:    "Free shipping (up to $75)",
		}},
	}
	return sm.store.SaveProgram(ctx, program)
}

func (sm *ScenarioManager) issue(ctx context.Context, programID loyalty.ProgramID, code string, points decimal.Decimal) error {
	account := loyalty.PointAccount{
		ID:        loyalty.AccountID(uuid.NewString()),
		ProgramID: programID,
		Code:      code,
		Points:    points,
		Active:    true,
	}
	opening := &loyalty.Entry{
		ID:             uuid.NewString(),
		AccountID:      account.ID,
		ProgramID:      programID,
		Delta:          points,
		Type:           loyalty.EntryIssuance,
		Description:    "opening balance",
		IdempotencyKey: "issue:" + string(account.ID),
		CreatedAt:      time.Now().UTC(),
	}
	err := sm.store.CreateAccount(ctx, account, opening)
	if err == loyalty.ErrDuplicateCode {
		// Scenario reloaded; the existing card stands.
		return nil
	}
	return err
}
