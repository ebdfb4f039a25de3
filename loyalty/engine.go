/*
engine.go - Multi-program evaluation and commit

PURPOSE:
  The RewardEngine. Given an order snapshot, the active program set,
  and the relevant point accounts, it determines applicable rewards,
  resolves ordering across programs, computes discount amounts, and
  emits point-balance deltas. Nothing is persisted during Evaluate;
  Commit applies the deltas atomically once the caller has accepted
  the result.

EVALUATION ORDER (deterministic):
  1. Accrual rules for all candidate programs run first. Points
     earned on the current order become spendable within the same
     evaluation only for programs with EarnAndBurn set; otherwise the
     accrual is recorded but not spendable until the order finalizes.
  2. Redemption runs next: programs in registration order, each
     program's accounts in the caller-supplied order, each account's
     rewards in configuration order. Identical inputs always produce
     identical results.

COMPOSITION:
  Shipping-targeted and order-targeted rewards compose additively
  against their respective bases. When two rewards hit the same base,
  the second sees base - previously applied amount, so no stack of
  rewards drives any charge negative.

SKIP vs SURFACE:
  A reward that cannot be funded in full is skipped whole - no
  partial grants. Auto-triggered programs with no eligible account
  are silently skipped (the user never asked for them). A code the
  user explicitly entered is never dropped silently: an unresolvable
  code, or a claimed account whose balance cannot fund any reward,
  comes back as a Rejection in the result.

COMMIT:
  Evaluate computes against balance snapshots. Commit re-checks every
  snapshot version and applies all debits, credits, and their ledger
  entries in one atomic step (ApplyDeltas). A stale snapshot triggers
  re-evaluation against fresh balances, bounded by maxCommitRetries
  to avoid live-lock. If order finalization aborts before Commit, or
  Commit returns an error, no balance has moved.

SEE ALSO:
  - rules.go: Accrual phase
  - reward.go: Per-reward discount arithmetic
  - ledger.go: ApplyDeltas contract
*/
package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxCommitRetries bounds stale-snapshot re-evaluation during Commit.
const maxCommitRetries = 3

// Engine evaluates orders against loyalty programs and commits the
// resulting point movements.
type Engine struct {
	Accounts AccountStore
}

// NewEngine creates an engine over the given store.
func NewEngine(accounts AccountStore) *Engine {
	return &Engine{Accounts: accounts}
}

// =============================================================================
// EVALUATE INPUT
// =============================================================================

// EvaluateInput is the exact candidate set for one evaluation. The
// engine holds no process-wide registry: the caller supplies programs
// (registration order) and accounts (creation order) every time.
type EvaluateInput struct {
	Order    Order
	Programs []*Program
	Accounts []PointAccount
	Codes    []string // user-entered redemption codes, if any
}

// =============================================================================
// CODE RESOLUTION
// =============================================================================

// ResolveCode resolves a user-entered code to an active account of an
// active program. Failures are ReservationError: the engine never
// silently drops a code the user explicitly entered.
func ResolveCode(code string, programs []*Program, accounts []PointAccount) (PointAccount, error) {
	for _, a := range accounts {
		if a.Code != code {
			continue
		}
		if !a.Active {
			return PointAccount{}, &ReservationError{Code: code, Reason: "account is not active"}
		}
		for _, p := range programs {
			if p.ID == a.ProgramID {
				if !p.Active {
					return PointAccount{}, &ReservationError{Code: code, Reason: "program is not active"}
				}
				return a, nil
			}
		}
		return PointAccount{}, &ReservationError{Code: code, Reason: "program is not active"}
	}
	return PointAccount{}, &ReservationError{Code: code, Reason: "unknown code"}
}

// =============================================================================
// EVALUATE
// =============================================================================

// Evaluate runs one pure pass over the order. It never touches the
// stores and never mutates balances; calling it twice on the same
// input yields identical applied rewards and accruals.
func (e *Engine) Evaluate(input EvaluateInput) *Evaluation {
	eval := &Evaluation{
		ID:      uuid.NewString(),
		OrderID: input.Order.ID,
	}

	// Resolve user-entered codes up front. Invalid codes surface as
	// rejections; valid ones mark their account as claimed.
	claimed := make(map[AccountID]bool)
	for _, code := range input.Codes {
		account, err := ResolveCode(code, input.Programs, input.Accounts)
		if err != nil {
			eval.Rejections = append(eval.Rejections, Rejection{
				Code:   code,
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}
		claimed[account.ID] = true
	}

	// Snapshot every supplied account for the commit-time stale check.
	for _, a := range input.Accounts {
		eval.Snapshots = append(eval.Snapshots, a.Snapshot())
	}

	// Phase 1: accrual for all participating programs.
	for _, program := range input.Programs {
		if !e.participates(program, input.Accounts, claimed) {
			continue
		}
		accruals := EvaluateRules(input.Order, program)
		if len(accruals) == 0 {
			continue
		}
		target := accrualAccount(program, input.Accounts, claimed)
		for i := range accruals {
			accruals[i].AccountID = target
		}
		eval.Accruals = append(eval.Accruals, accruals...)
	}

	// Phase 2: redemption, programs in registration order.
	tracker := newBaseTracker(input.Order)
	for _, program := range input.Programs {
		if !e.participates(program, input.Accounts, claimed) {
			continue
		}
		if len(program.Rewards) == 0 {
			continue
		}

		redeemed := false
		for _, account := range input.Accounts {
			if account.ProgramID != program.ID || !account.Active {
				continue
			}
			if program.Trigger == TriggerCode && !claimed[account.ID] {
				continue
			}
			applied, refusal := e.redeem(eval, tracker, input.Order, program, account.ID, e.available(eval, program, account))
			redeemed = true

			// A claimed code whose balance cannot fund any reward is a
			// user-visible refusal, never a silent skip.
			if program.Trigger == TriggerCode && claimed[account.ID] && !applied && refusal != nil {
				eval.Rejections = append(eval.Rejections, Rejection{
					Code:   account.Code,
					Reason: refusal.Error(),
					Err:    refusal,
				})
			}
		}

		// Earn-and-burn promotions carry no card: points earned this
		// order fund the reward directly.
		if !redeemed && program.EarnAndBurn {
			e.redeem(eval, tracker, input.Order, program, "", e.earnedBy(eval, program.ID))
		}
	}

	return eval
}

// participates reports whether a program contributes to this
// evaluation at all. Inactive programs never do. Code-triggered
// programs require a claimed account; auto-triggered programs with
// no eligible account are skipped without error during redemption
// but still accrue.
func (e *Engine) participates(program *Program, accounts []PointAccount, claimed map[AccountID]bool) bool {
	if !program.Active {
		return false
	}
	if program.Trigger == TriggerCode {
		for _, a := range accounts {
			if a.ProgramID == program.ID && claimed[a.ID] {
				return true
			}
		}
		return false
	}
	return true
}

// available returns the points an account can spend in this
// evaluation: the snapshot balance, plus same-order accruals when the
// program allows earn-and-burn, minus anything already consumed by
// earlier rewards in this pass.
func (e *Engine) available(eval *Evaluation, program *Program, account PointAccount) decimal.Decimal {
	points := account.Points
	if program.EarnAndBurn {
		points = points.Add(eval.PointsAccrued(account.ID))
	}
	return points.Sub(eval.PointsConsumed(account.ID))
}

// earnedBy sums unattributed accruals of a program (no backing
// account), the funding source for card-less promotions.
func (e *Engine) earnedBy(eval *Evaluation, programID ProgramID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range eval.Accruals {
		if a.ProgramID == programID && a.AccountID == "" {
			total = total.Add(a.Points)
		}
	}
	return total
}

// redeem applies every affordable reward of a program for one funding
// source, shrinking the remaining bases as it goes. It reports whether
// any reward applied and, when the balance could not fund a reward,
// the first shortage (so claimed codes can surface it).
func (e *Engine) redeem(eval *Evaluation, tracker *baseTracker, order Order, program *Program, accountID AccountID, available decimal.Decimal) (applied bool, refusal *InsufficientPointsError) {
	for _, reward := range program.Rewards {
		if available.LessThan(reward.RequiredPoints) {
			if refusal == nil {
				refusal = &InsufficientPointsError{
					AccountID: accountID,
					Available: available.String(),
					Requested: reward.RequiredPoints.String(),
				}
			}
			continue
		}
		base := tracker.base(order, reward.Applicability, reward.ProductIDs)
		amount, points, ok := ComputeDiscount(reward, base, available)
		if !ok {
			continue
		}

		grant := AppliedReward{
			ProgramID:      program.ID,
			RewardID:       reward.ID,
			AccountID:      accountID,
			Target:         reward.Applicability,
			Amount:         amount,
			PointsConsumed: points,
			Description:    reward.Description,
		}
		if reward.Applicability == TargetProducts {
			grant.ProductIDs = append([]ProductID(nil), reward.ProductIDs...)
		}
		eval.Applied = append(eval.Applied, grant)

		tracker.consume(order, reward.Applicability, reward.ProductIDs, amount)
		available = available.Sub(points)
		applied = true
	}
	return applied, refusal
}

// =============================================================================
// COMMIT
// =============================================================================

// Commit atomically applies the point movements of an accepted
// evaluation: debits for consumed rewards, credits for accruals
// attributed to accounts, and the ledger entries explaining both.
// Balance writes and entries land in one store-level step, so a
// failed Commit leaves every balance exactly where Evaluate saw it.
// If any balance changed since the evaluation's snapshot, the order
// is re-evaluated against fresh balances and the commit retried, at
// most maxCommitRetries times.
//
// The returned evaluation is the one actually committed; after a
// stale retry it may differ from the one passed in.
func (e *Engine) Commit(ctx context.Context, input EvaluateInput, eval *Evaluation) (*Evaluation, error) {
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		changes, err := e.buildChanges(eval)
		if err != nil {
			return nil, err
		}

		if len(changes) == 0 {
			return eval, nil
		}

		err = e.Accounts.ApplyDeltas(ctx, changes, e.buildEntries(eval))
		if err == nil {
			return eval, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}

		// Stale snapshot: re-read balances and re-run the evaluation.
		fresh, refreshErr := e.refreshAccounts(ctx, input.Accounts)
		if refreshErr != nil {
			return nil, refreshErr
		}
		input.Accounts = fresh
		eval = e.Evaluate(input)
	}
	return nil, fmt.Errorf("commit for order %s: %w", input.Order.ID, ErrStaleSnapshot)
}

// buildChanges turns an evaluation into guarded balance writes. All
// consumption routes through PointAccount.Debit so the points >= 0
// invariant is enforced in exactly one place.
func (e *Engine) buildChanges(eval *Evaluation) ([]BalanceChange, error) {
	var changes []BalanceChange
	for _, snap := range eval.Snapshots {
		credit := eval.PointsAccrued(snap.AccountID)
		debit := eval.PointsConsumed(snap.AccountID)
		if credit.IsZero() && debit.IsZero() {
			continue
		}

		account := PointAccount{ID: snap.AccountID, Points: snap.Points, Version: snap.Version}
		if err := account.Credit(credit); err != nil {
			return nil, err
		}
		if err := account.Debit(debit); err != nil {
			return nil, err
		}

		changes = append(changes, BalanceChange{
			AccountID:       snap.AccountID,
			Points:          account.Points,
			ExpectedVersion: snap.Version,
		})
	}
	return changes, nil
}

// buildEntries assembles the audit trail for an evaluation, applied
// alongside the balance writes. Idempotency keys derive from the
// evaluation id, so a replayed commit cannot double-book.
func (e *Engine) buildEntries(eval *Evaluation) []Entry {
	now := time.Now().UTC()
	var entries []Entry

	for _, snap := range eval.Snapshots {
		credit := eval.PointsAccrued(snap.AccountID)
		if !credit.IsPositive() {
			continue
		}
		entries = append(entries, Entry{
			ID:             uuid.NewString(),
			AccountID:      snap.AccountID,
			OrderID:        eval.OrderID,
			Delta:          credit,
			Type:           EntryAccrual,
			Description:    "points earned on order",
			IdempotencyKey: fmt.Sprintf("%s:accrual:%s", eval.ID, snap.AccountID),
			CreatedAt:      now,
		})
	}

	for i, applied := range eval.Applied {
		if applied.AccountID == "" || !applied.PointsConsumed.IsPositive() {
			continue
		}
		entries = append(entries, Entry{
			ID:             uuid.NewString(),
			AccountID:      applied.AccountID,
			ProgramID:      applied.ProgramID,
			OrderID:        eval.OrderID,
			Delta:          applied.PointsConsumed.Neg(),
			Type:           EntryRedemption,
			Description:    applied.Description,
			IdempotencyKey: fmt.Sprintf("%s:redeem:%d", eval.ID, i),
			CreatedAt:      now,
		})
	}

	return entries
}

// refreshAccounts re-reads the current state of every account in the
// input set, preserving the caller's ordering.
func (e *Engine) refreshAccounts(ctx context.Context, accounts []PointAccount) ([]PointAccount, error) {
	fresh := make([]PointAccount, 0, len(accounts))
	for _, a := range accounts {
		current, err := e.Accounts.GetAccount(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		fresh = append(fresh, current)
	}
	return fresh, nil
}

// accrualAccount picks the account a program's accruals credit: the
// first active account bound to the program (claimed first for
// code-triggered programs). Empty when the program has no card; such
// accruals fund earn-and-burn or are reported for issuance handling.
func accrualAccount(program *Program, accounts []PointAccount, claimed map[AccountID]bool) AccountID {
	if program.Trigger == TriggerCode {
		for _, a := range accounts {
			if a.ProgramID == program.ID && a.Active && claimed[a.ID] {
				return a.ID
			}
		}
		return ""
	}
	for _, a := range accounts {
		if a.ProgramID == program.ID && a.Active {
			return a.ID
		}
	}
	return ""
}
