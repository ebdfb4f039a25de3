/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Program registration and activation over HTTP
- Account issuance and the opening-balance entry
- The evaluate/commit order flow end to end
- Error status mapping and scenario loading
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/catalog"
	"github.com/warp/loyalty-engine/loyalty/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	handler := NewHandler(mem, catalog.New())
	return NewRouter(handler, []string{"*"}), mem
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func giftCardConfig() map[string]any {
	return map[string]any{
		"config": map[string]any{
			"id":           "gift-cards",
			"name":         "Gift Cards",
			"program_type": "gift_card",
			"applies_on":   "future",
			"rewards": []map[string]any{{
				"reward_type":            "discount",
				"discount_mode":          "per_point",
				"discount":               1,
				"discount_applicability": "order",
				"description":            "PAY WITH GIFT CARD",
			}},
		},
	}
}

func seedGiftCard(t *testing.T, router http.Handler, points string) AccountDTO {
	t.Helper()
	if rec := doJSON(t, router, "POST", "/api/programs", giftCardConfig()); rec.Code != http.StatusCreated {
		t.Fatalf("create program: %d %s", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, router, "POST", "/api/accounts", map[string]any{
		"program_id": "gift-cards",
		"points":     points,
		"code":       "123456",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue account: %d %s", rec.Code, rec.Body.String())
	}
	var account AccountDTO
	decodeInto(t, rec, &account)
	return account
}

// =============================================================================
// PROGRAM ENDPOINTS
// =============================================================================

func TestCreateAndGetProgram(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/programs", giftCardConfig())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, "GET", "/api/programs/gift-cards", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var program ProgramDTO
	decodeInto(t, rec, &program)
	if program.Name != "Gift Cards" || !program.Active {
		t.Errorf("unexpected program: %+v", program)
	}
	if len(program.Config.Rewards) != 1 {
		t.Errorf("config should echo the reward, got %+v", program.Config)
	}
}

func TestGetProgram_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "GET", "/api/programs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateProgram_InvalidConfig(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/programs", map[string]any{
		"config": map[string]any{
			"id":    "broken",
			"rules": []map[string]any{{"reward_point_mode": "vibes"}},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("configuration errors should map to 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetProgramActive(t *testing.T) {
	router, mem := newTestRouter(t)
	doJSON(t, router, "POST", "/api/programs", giftCardConfig())

	rec := doJSON(t, router, "POST", "/api/programs/gift-cards/activate", map[string]any{"active": false})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	program, err := mem.GetProgram(context.Background(), "gift-cards")
	if err != nil {
		t.Fatalf("get program: %v", err)
	}
	if program.Active {
		t.Error("program should be deactivated")
	}
}

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

func TestIssueAccount_WritesOpeningBalance(t *testing.T) {
	router, _ := newTestRouter(t)
	account := seedGiftCard(t, router, "50000")

	if !account.Points.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("expected 50000 points, got %s", account.Points)
	}

	rec := doJSON(t, router, "GET", "/api/accounts/"+account.ID+"/entries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []EntryDTO
	decodeInto(t, rec, &entries)
	if len(entries) != 1 || entries[0].Type != "issuance" {
		t.Fatalf("expected one issuance entry, got %+v", entries)
	}
	if !entries[0].Delta.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("opening balance delta should be 50000, got %s", entries[0].Delta)
	}
}

func TestIssueAccount_UnknownProgram(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/accounts", map[string]any{
		"program_id": "missing", "points": "10",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestClaimCode(t *testing.T) {
	router, _ := newTestRouter(t)
	seedGiftCard(t, router, "50000")

	rec := doJSON(t, router, "POST", "/api/codes/claim", map[string]any{"code": "123456"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var account AccountDTO
	decodeInto(t, rec, &account)
	if account.Code != "123456" || account.ProgramID != "gift-cards" {
		t.Errorf("unexpected account: %+v", account)
	}

	rec = doJSON(t, router, "POST", "/api/codes/claim", map[string]any{"code": "bogus"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown code should map to 422, got %d", rec.Code)
	}
}

// =============================================================================
// ORDER FLOW
// =============================================================================

func orderRequest() map[string]any {
	return map[string]any{
		"order_id": "order-1",
		"lines": []map[string]any{{
			"product_id": "plumbus",
			"quantity":   "3",
			"unit_price": "100",
		}},
		"delivery_cost": "5",
	}
}

func TestEvaluateOrder_DoesNotTouchBalances(t *testing.T) {
	router, _ := newTestRouter(t)
	seedGiftCard(t, router, "50000")

	rec := doJSON(t, router, "POST", "/api/orders/evaluate", orderRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var eval EvaluationDTO
	decodeInto(t, rec, &eval)

	if !eval.OrderDiscount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected $300 order discount, got %s", eval.OrderDiscount)
	}
	if !eval.ShippingDiscount.IsZero() {
		t.Errorf("shipping should be untouched, got %s", eval.ShippingDiscount)
	}
	if eval.Committed {
		t.Error("evaluate must not mark the result committed")
	}

	// Balance unchanged until commit.
	rec = doJSON(t, router, "GET", "/api/accounts", nil)
	var accounts []AccountDTO
	decodeInto(t, rec, &accounts)
	if len(accounts) != 1 || !accounts[0].Points.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("evaluate moved a balance: %+v", accounts)
	}
}

func TestCommitOrder_DebitsBalance(t *testing.T) {
	router, _ := newTestRouter(t)
	seedGiftCard(t, router, "50000")

	rec := doJSON(t, router, "POST", "/api/orders/commit", orderRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var eval EvaluationDTO
	decodeInto(t, rec, &eval)
	if !eval.Committed {
		t.Error("commit response should be marked committed")
	}

	rec = doJSON(t, router, "GET", "/api/accounts", nil)
	var accounts []AccountDTO
	decodeInto(t, rec, &accounts)
	if len(accounts) != 1 || !accounts[0].Points.Equal(decimal.NewFromInt(49700)) {
		t.Errorf("expected balance 49700 after commit, got %+v", accounts)
	}
}

func TestEvaluateOrder_UnknownProductWithoutPrice(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/orders/evaluate", map[string]any{
		"order_id": "order-1",
		"lines":    []map[string]any{{"product_id": "mystery", "quantity": "1"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unpriced unknown product, got %d", rec.Code)
	}
}

func TestEvaluateOrder_CatalogPriceFallback(t *testing.T) {
	router, _ := newTestRouter(t)
	seedGiftCard(t, router, "50000")

	rec := doJSON(t, router, "POST", "/api/catalog/products", map[string]any{
		"id": "plumbus", "name": "Plumbus", "list_price": "100", "published": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/orders/evaluate", map[string]any{
		"order_id": "order-1",
		"lines":    []map[string]any{{"product_id": "plumbus", "quantity": "2"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var eval EvaluationDTO
	decodeInto(t, rec, &eval)
	if !eval.OrderSubtotal.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected catalog-priced subtotal 200, got %s", eval.OrderSubtotal)
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_ListAndLoad(t *testing.T) {
	router, mem := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/scenarios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var scenarios []ScenarioDTO
	decodeInto(t, rec, &scenarios)
	if len(scenarios) != 3 {
		t.Fatalf("expected 3 scenarios, got %d", len(scenarios))
	}

	rec = doJSON(t, router, "POST", "/api/scenarios/load", map[string]any{"id": "gift-cards"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	ctx := context.Background()
	account, err := mem.GetAccountByCode(ctx, "123456")
	if err != nil {
		t.Fatalf("scenario should seed the 123456 card: %v", err)
	}
	if !account.Points.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("expected 50000 points on the demo card, got %s", account.Points)
	}
	if _, err := mem.GetProgram(ctx, "gift-cards"); err != nil {
		t.Errorf("scenario should register the program: %v", err)
	}
}

func TestScenarios_UnknownID(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/scenarios/load", map[string]any{"id": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
