/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements the HTTP surface over the loyalty engine: program
  administration, account issuance, code claiming, and the two-step
  evaluate/commit order flow consumed by the checkout collaborator.

EVALUATE vs COMMIT:
  POST /api/orders/evaluate is read-only: it computes discounts and
  accruals against a balance snapshot (what the checkout displays).
  POST /api/orders/commit re-evaluates the same request server-side
  and atomically applies the point movements. Callers invoke commit
  only once the order is guaranteed to finalize; an aborted payment
  means no commit and therefore no balance change.

ERROR MAPPING:
  loyalty.IsClientError -> 422, loyalty.IsNotFound -> 404,
  everything else -> 500. Rejected codes are NOT HTTP errors: they
  ride inside the evaluation result so checkout can present them.

SEE ALSO:
  - server.go: Route wiring
  - dto.go: Request/response shapes
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/catalog"
	"github.com/warp/loyalty-engine/factory"
	"github.com/warp/loyalty-engine/loyalty"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	Store   loyalty.Store
	Catalog *catalog.Catalog
	Engine  *loyalty.Engine

	factory   *factory.ProgramFactory
	scenarios *ScenarioManager
}

// NewHandler creates a handler over the given store.
func NewHandler(store loyalty.Store, cat *catalog.Catalog) *Handler {
	h := &Handler{
		Store:   store,
		Catalog: cat,
		Engine:  loyalty.NewEngine(store),
		factory: factory.NewProgramFactory(),
	}
	h.scenarios = NewScenarioManager(store, cat)
	return h
}

// =============================================================================
// PROGRAM HANDLERS
// =============================================================================

func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.Store.ListPrograms(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ProgramDTO, 0, len(programs))
	for _, p := range programs {
		dtos = append(dtos, ProgramDTO{
			ID:     string(p.ID),
			Name:   p.Name,
			Active: p.Active,
			Config: h.factory.ToJSON(p),
		})
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req CreateProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}

	program, err := h.factory.FromJSON(req.Config)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.SaveProgram(r.Context(), program); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ProgramDTO{
		ID:     string(program.ID),
		Name:   program.Name,
		Active: program.Active,
		Config: h.factory.ToJSON(program),
	})
}

func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	program, err := h.Store.GetProgram(r.Context(), loyalty.ProgramID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ProgramDTO{
		ID:     string(program.ID),
		Name:   program.Name,
		Active: program.Active,
		Config: h.factory.ToJSON(program),
	})
}

func (h *Handler) SetProgramActive(w http.ResponseWriter, r *http.Request) {
	var req SetProgramActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	id := loyalty.ProgramID(chi.URLParam(r, "id"))
	if err := h.Store.SetProgramActive(r.Context(), id, req.Active); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	programID := loyalty.ProgramID(r.URL.Query().Get("program_id"))
	accounts, err := h.Store.ListAccounts(r.Context(), programID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, accountDTO(a))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// IssueAccount creates a point account with an opening-balance ledger
// entry. This is the gift-card/e-wallet issuance path.
func (h *Handler) IssueAccount(w http.ResponseWriter, r *http.Request) {
	var req IssueAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Points.IsNegative() {
		h.writeBadRequest(w, "points must not be negative")
		return
	}
	if _, err := h.Store.GetProgram(r.Context(), loyalty.ProgramID(req.ProgramID)); err != nil {
		h.writeError(w, err)
		return
	}

	account := loyalty.PointAccount{
		ID:        loyalty.AccountID(uuid.NewString()),
		ProgramID: loyalty.ProgramID(req.ProgramID),
		Code:      req.Code,
		Points:    req.Points,
		Active:    true,
	}
	if account.Code == "" {
		account.Code = uuid.NewString()
	}

	var opening *loyalty.Entry
	if req.Points.IsPositive() {
		opening = &loyalty.Entry{
			ID:             uuid.NewString(),
			AccountID:      account.ID,
			ProgramID:      account.ProgramID,
			Delta:          req.Points,
			Type:           loyalty.EntryIssuance,
			Description:    "opening balance",
			IdempotencyKey: "issue:" + string(account.ID),
			CreatedAt:      time.Now().UTC(),
		}
	}
	if err := h.Store.CreateAccount(r.Context(), account, opening); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, accountDTO(account))
}

func (h *Handler) GetAccountEntries(w http.ResponseWriter, r *http.Request) {
	id := loyalty.AccountID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetAccount(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	entries, err := h.Store.Entries(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryDTO{
			ID:          e.ID,
			OrderID:     e.OrderID,
			Delta:       e.Delta,
			Type:        string(e.Type),
			Description: e.Description,
			CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// ClaimCode resolves a user-entered redemption code to its account.
// An unknown or ineligible code is a 422 with the reservation reason.
func (h *Handler) ClaimCode(w http.ResponseWriter, r *http.Request) {
	var req ClaimCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}

	programs, accounts, err := h.loadCandidates(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	account, err := loyalty.ResolveCode(req.Code, programs, accounts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accountDTO(account))
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// EvaluateOrder computes discounts and accruals without committing.
func (h *Handler) EvaluateOrder(w http.ResponseWriter, r *http.Request) {
	input, err := h.buildInput(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	eval := h.Engine.Evaluate(*input)
	h.writeJSON(w, http.StatusOK, evaluationDTO(input.Order, eval, false))
}

// CommitOrder evaluates and atomically applies the point movements.
func (h *Handler) CommitOrder(w http.ResponseWriter, r *http.Request) {
	input, err := h.buildInput(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	eval := h.Engine.Evaluate(*input)
	committed, err := h.Engine.Commit(r.Context(), *input, eval)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, evaluationDTO(input.Order, committed, true))
}

// buildInput assembles the evaluation input: order snapshot from the
// request plus the full candidate set of programs and accounts.
func (h *Handler) buildInput(r *http.Request) (*loyalty.EvaluateInput, error) {
	var req EvaluateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errBadRequest("invalid JSON body")
	}

	order := loyalty.Order{ID: req.OrderID, CarrierID: loyalty.CarrierID(req.CarrierID)}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	for _, lr := range req.Lines {
		line := loyalty.OrderLine{
			ProductID: loyalty.ProductID(lr.ProductID),
			Quantity:  lr.Quantity,
		}
		if lr.UnitPrice != nil {
			line.UnitPrice = *lr.UnitPrice
		} else if p, ok := h.Catalog.Product(line.ProductID); ok {
			line.UnitPrice = p.ListPrice
		} else {
			return nil, errBadRequest("unknown product " + lr.ProductID)
		}
		order.Lines = append(order.Lines, line)
	}

	switch {
	case req.DeliveryCost != nil:
		order.DeliveryCost = *req.DeliveryCost
	case req.CarrierID != "":
		cost, err := h.Catalog.DeliveryCost(order.CarrierID)
		if err != nil {
			return nil, errBadRequest(err.Error())
		}
		order.DeliveryCost = cost
	default:
		order.DeliveryCost = decimal.Zero
	}

	programs, accounts, err := h.loadCandidates(r)
	if err != nil {
		return nil, err
	}
	return &loyalty.EvaluateInput{
		Order:    order,
		Programs: programs,
		Accounts: accounts,
		Codes:    req.Codes,
	}, nil
}

func (h *Handler) loadCandidates(r *http.Request) ([]*loyalty.Program, []loyalty.PointAccount, error) {
	programs, err := h.Store.ListPrograms(r.Context())
	if err != nil {
		return nil, nil, err
	}
	accounts, err := h.Store.ListAccounts(r.Context(), "")
	if err != nil {
		return nil, nil, err
	}
	return programs, accounts, nil
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var dto ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if dto.ID == "" {
		h.writeBadRequest(w, "product id is required")
		return
	}
	h.Catalog.AddProduct(catalog.Product{
		ID:        loyalty.ProductID(dto.ID),
		Name:      dto.Name,
		ListPrice: dto.ListPrice,
		Published: dto.Published,
	})
	h.writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) CreateCarrier(w http.ResponseWriter, r *http.Request) {
	var dto CarrierDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if dto.ID == "" {
		h.writeBadRequest(w, "carrier id is required")
		return
	}
	h.Catalog.AddCarrier(catalog.Carrier{
		ID:         loyalty.CarrierID(dto.ID),
		Name:       dto.Name,
		FixedPrice: dto.FixedPrice,
		Published:  dto.Published,
	})
	h.writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scenarios.List())
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := h.scenarios.Load(r.Context(), req.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequestError(msg) }

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case loyalty.IsNotFound(err):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case loyalty.IsClientError(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		var br badRequestError
		if errors.As(err, &br) {
			h.writeBadRequest(w, err.Error())
			return
		}
		log.Printf("Internal error: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
