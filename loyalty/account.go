/*
account.go - Point account bookkeeping

PURPOSE:
  PointAccount is the only mutable shared state the engine touches:
  a balance of points on one card or wallet, identified by a unique
  redemption code, bound to one program. Many accounts can reference
  the same program.

THE ONE GUARD:
  Debit is the sole invariant-preserving guard in the whole engine.
  Every other component routes point consumption through it rather
  than mutating balances directly. Debit refuses (does not mutate) if
  the requested points exceed the balance, so points >= 0 holds at
  all times.

  Credit has no upper bound: promotional e-wallet balances in this
  domain can represent very large nominal values (the fixtures use
  6e66 points), which is why balances are decimal, not float64.

VERSIONING:
  Version is the optimistic-concurrency token. Evaluation computes
  against a snapshot (balance + version); commit applies only if the
  version is unchanged, otherwise the store reports ErrStaleSnapshot
  and the engine re-evaluates.

SEE ALSO:
  - ledger.go: AccountStore and the append-only entry log
  - engine.go: Snapshot-then-commit orchestration
*/
package loyalty

import (
	"github.com/shopspring/decimal"
)

// PointAccount is a balance of points on one card or wallet.
// Invariant: Points >= 0 at all times.
type PointAccount struct {
	ID        AccountID
	ProgramID ProgramID
	Code      string // unique redemption token
	Points    decimal.Decimal
	Active    bool
	Version   int64
}

// Snapshot captures the balance and version for a later stale check.
func (a PointAccount) Snapshot() AccountSnapshot {
	return AccountSnapshot{AccountID: a.ID, Points: a.Points, Version: a.Version}
}

// Debit removes points from the balance. It refuses to mutate if the
// requested points exceed the balance, returning
// InsufficientPointsError. A negative debit is rejected outright.
func (a *PointAccount) Debit(points decimal.Decimal) error {
	if points.IsNegative() {
		return ErrNegativeAmount
	}
	if points.GreaterThan(a.Points) {
		return &InsufficientPointsError{
			AccountID: a.ID,
			Available: a.Points.String(),
			Requested: points.String(),
		}
	}
	a.Points = a.Points.Sub(points)
	return nil
}

// Credit adds points to the balance. There is no upper bound.
func (a *PointAccount) Credit(points decimal.Decimal) error {
	if points.IsNegative() {
		return ErrNegativeAmount
	}
	a.Points = a.Points.Add(points)
	return nil
}
