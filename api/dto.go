/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Point and currency values are decimal.Decimal, which marshals as a
  quoted decimal string. Balances in this domain can be far beyond
  float64 precision (promotional e-wallets), so the API never carries
  them as JSON numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/program.go: ProgramJSON is the program wire format
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/factory"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// PROGRAM TYPES
// =============================================================================

// CreateProgramRequest is the request to register a program.
type CreateProgramRequest struct {
	Config factory.ProgramJSON `json:"config"`
}

// SetProgramActiveRequest toggles a program's activation flag.
type SetProgramActiveRequest struct {
	Active bool `json:"active"`
}

// ProgramDTO represents a program in API responses.
type ProgramDTO struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Active bool                `json:"active"`
	Config factory.ProgramJSON `json:"config"`
}

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

// IssueAccountRequest creates a new point account (gift card,
// e-wallet). An omitted code is generated.
type IssueAccountRequest struct {
	ProgramID string          `json:"program_id"`
	Points    decimal.Decimal `json:"points"`
	Code      string          `json:"code,omitempty"`
}

// AccountDTO represents a point account in API responses.
type AccountDTO struct {
	ID        string          `json:"id"`
	ProgramID string          `json:"program_id"`
	Code      string          `json:"code"`
	Points    decimal.Decimal `json:"points"`
	Active    bool            `json:"active"`
}

// ClaimCodeRequest resolves a user-entered redemption code.
type ClaimCodeRequest struct {
	Code string `json:"code"`
}

// EntryDTO represents one ledger entry.
type EntryDTO struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id,omitempty"`
	Delta       decimal.Decimal `json:"delta"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// =============================================================================
// ORDER / EVALUATION TYPES
// =============================================================================

// OrderLineRequest is one product line of the order snapshot. An
// omitted unit price falls back to the catalog list price.
type OrderLineRequest struct {
	ProductID string           `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// EvaluateOrderRequest is the input to evaluate and commit endpoints.
// An omitted delivery cost is resolved from the carrier's fixed price.
type EvaluateOrderRequest struct {
	OrderID      string             `json:"order_id"`
	Lines        []OrderLineRequest `json:"lines"`
	CarrierID    string             `json:"carrier_id,omitempty"`
	DeliveryCost *decimal.Decimal   `json:"delivery_cost,omitempty"`
	Codes        []string           `json:"codes,omitempty"`
}

// AppliedRewardDTO is one resolved discount.
type AppliedRewardDTO struct {
	ProgramID      string          `json:"program_id"`
	RewardID       string          `json:"reward_id"`
	AccountID      string          `json:"account_id,omitempty"`
	Target         string          `json:"target"`
	Amount         decimal.Decimal `json:"amount"`
	PointsConsumed decimal.Decimal `json:"points_consumed"`
	Description    string          `json:"description,omitempty"`
}

// AccrualDTO is one point grant earned on the order.
type AccrualDTO struct {
	ProgramID string          `json:"program_id"`
	RuleID    string          `json:"rule_id"`
	AccountID string          `json:"account_id,omitempty"`
	ProductID string          `json:"product_id,omitempty"`
	Points    decimal.Decimal `json:"points"`
}

// RejectionDTO is a refused code-redemption.
type RejectionDTO struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// EvaluationDTO is the full result of one evaluation pass.
type EvaluationDTO struct {
	ID               string             `json:"id"`
	OrderID          string             `json:"order_id"`
	OrderSubtotal    decimal.Decimal    `json:"order_subtotal"`
	DeliveryCost     decimal.Decimal    `json:"delivery_cost"`
	OrderDiscount    decimal.Decimal    `json:"order_discount"`
	ShippingDiscount decimal.Decimal    `json:"shipping_discount"`
	Applied          []AppliedRewardDTO `json:"applied"`
	Accruals         []AccrualDTO       `json:"accruals"`
	Rejections       []RejectionDTO     `json:"rejections,omitempty"`
	Committed        bool               `json:"committed"`
}

// =============================================================================
// CATALOG TYPES
// =============================================================================

// ProductDTO represents a catalog product.
type ProductDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	ListPrice decimal.Decimal `json:"list_price"`
	Published bool            `json:"published"`
}

// CarrierDTO represents a delivery carrier.
type CarrierDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	FixedPrice decimal.Decimal `json:"fixed_price"`
	Published  bool            `json:"published"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func accountDTO(a loyalty.PointAccount) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		ProgramID: string(a.ProgramID),
		Code:      a.Code,
		Points:    a.Points,
		Active:    a.Active,
	}
}

func evaluationDTO(order loyalty.Order, eval *loyalty.Evaluation, committed bool) EvaluationDTO {
	dto := EvaluationDTO{
		ID:               eval.ID,
		OrderID:          eval.OrderID,
		OrderSubtotal:    order.Subtotal(),
		DeliveryCost:     order.DeliveryCost,
		OrderDiscount:    eval.TotalDiscount(loyalty.TargetOrder),
		ShippingDiscount: eval.TotalDiscount(loyalty.TargetShipping),
		Applied:          []AppliedRewardDTO{},
		Accruals:         []AccrualDTO{},
		Committed:        committed,
	}
	for _, ar := range eval.Applied {
		dto.Applied = append(dto.Applied, AppliedRewardDTO{
			ProgramID:      string(ar.ProgramID),
			RewardID:       string(ar.RewardID),
			AccountID:      string(ar.AccountID),
			Target:         string(ar.Target),
			Amount:         ar.Amount,
			PointsConsumed: ar.PointsConsumed,
			Description:    ar.Description,
		})
	}
	for _, a := range eval.Accruals {
		dto.Accruals = append(dto.Accruals, AccrualDTO{
			ProgramID: string(a.ProgramID),
			RuleID:    string(a.RuleID),
			AccountID: string(a.AccountID),
			ProductID: string(a.ProductID),
			Points:    a.Points,
		})
	}
	for _, r := range eval.Rejections {
		dto.Rejections = append(dto.Rejections, RejectionDTO{Code: r.Code, Reason: r.Reason})
	}
	return dto
}
