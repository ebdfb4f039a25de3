/*
ledger.go - Storage interfaces and the append-only point log

PURPOSE:
  Defines the interfaces between the engine and persistence. Account
  balances are stored state guarded by a version counter; every
  balance change additionally appends an immutable Entry, so any
  balance can be explained from its history.

APPEND-ONLY CONTRACT:
  The Ledger has no Update and no Delete. Corrections are made by
  appending compensating entries. Every commit-produced entry carries
  an idempotency key derived from the evaluation id, so a retried
  commit cannot double-book.

OPTIMISTIC CONCURRENCY:
  UpdateBalance(id, points, expectedVersion) applies only when the
  stored version matches. Two shoppers racing to redeem the same gift
  card cannot both succeed past the available balance: the loser gets
  ErrStaleSnapshot and the engine re-evaluates against the fresh
  balance.

IMPLEMENTATIONS:
  - loyalty/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite, for production

SEE ALSO:
  - engine.go: The only writer of redemption/accrual entries
*/
package loyalty

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER ENTRY - Immutable record of one balance change
// =============================================================================

type EntryType string

const (
	EntryIssuance   EntryType = "issuance"   // opening balance at account creation
	EntryAccrual    EntryType = "accrual"    // points earned by rules
	EntryRedemption EntryType = "redemption" // points spent on a reward
	EntryAdjustment EntryType = "adjustment" // manual admin correction
)

// Entry is one immutable ledger record. Delta is positive for credits
// and negative for debits.
type Entry struct {
	ID             string
	AccountID      AccountID
	ProgramID      ProgramID
	OrderID        string
	Delta          decimal.Decimal
	Type           EntryType
	Description    string
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// AccountStore persists point accounts.
type AccountStore interface {
	// CreateAccount inserts a new account, atomically appending the
	// opening-balance entry when one is given: either both land or
	// neither does. Fails with ErrDuplicateCode if the code is already
	// in use.
	CreateAccount(ctx context.Context, account PointAccount, opening *Entry) error

	// GetAccount returns the account by id, or ErrAccountNotFound.
	GetAccount(ctx context.Context, id AccountID) (PointAccount, error)

	// GetAccountByCode resolves a redemption code, or ErrAccountNotFound.
	GetAccountByCode(ctx context.Context, code string) (PointAccount, error)

	// ListAccounts returns accounts for a program in creation order.
	// An empty program id lists every account.
	ListAccounts(ctx context.Context, programID ProgramID) ([]PointAccount, error)

	// UpdateBalance sets the balance if the stored version still equals
	// expectedVersion, incrementing the version. Returns
	// ErrStaleSnapshot on a version mismatch.
	UpdateBalance(ctx context.Context, id AccountID, points decimal.Decimal, expectedVersion int64) error

	// ApplyDeltas applies balance changes to several accounts and
	// appends their ledger entries in one atomic step. Every change is
	// guarded by its expected version; any mismatch, or any entry
	// failure, rolls the whole batch back (version mismatches with
	// ErrStaleSnapshot), so an error means no balance moved. Entries
	// whose idempotency key was already written are skipped, keeping
	// replayed commits from double-booking. This is the commit step at
	// order granularity.
	ApplyDeltas(ctx context.Context, changes []BalanceChange, entries []Entry) error
}

// BalanceChange is one guarded balance write within an atomic commit.
type BalanceChange struct {
	AccountID       AccountID
	Points          decimal.Decimal // new balance, not a delta
	ExpectedVersion int64
}

// Ledger is the append-only log of balance changes.
type Ledger interface {
	// Append adds one entry. Fails with ErrDuplicateIdempotencyKey if
	// the key was already written. This is the ONLY write operation.
	Append(ctx context.Context, entry Entry) error

	// AppendBatch adds multiple entries atomically.
	AppendBatch(ctx context.Context, entries []Entry) error

	// Entries returns all entries for an account, oldest first.
	Entries(ctx context.Context, accountID AccountID) ([]Entry, error)

	// Exists checks whether an idempotency key was already written.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// ProgramStore persists program configuration. Programs are written
// by administrators and read by the evaluation path; activation
// toggling is the only mutation.
type ProgramStore interface {
	// SaveProgram inserts or replaces a program. The program must have
	// passed Validate().
	SaveProgram(ctx context.Context, program *Program) error

	// GetProgram returns a program by id, or ErrProgramNotFound.
	GetProgram(ctx context.Context, id ProgramID) (*Program, error)

	// ListPrograms returns programs in registration order. Evaluation
	// order across programs follows this order.
	ListPrograms(ctx context.Context) ([]*Program, error)

	// SetProgramActive toggles the activation flag.
	SetProgramActive(ctx context.Context, id ProgramID, active bool) error
}

// Store bundles everything a full deployment needs.
type Store interface {
	AccountStore
	Ledger
	ProgramStore
}
