// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements loyalty.Store with maps. Account writes honor the
// same optimistic-versioning contract as the SQLite store, so the
// engine's stale-snapshot path is exercisable in tests.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[loyalty.AccountID]loyalty.PointAccount
	accountOrder []loyalty.AccountID
	byCode       map[string]loyalty.AccountID
	entries      map[loyalty.AccountID][]loyalty.Entry
	idempotency  map[string]bool
	programs     map[loyalty.ProgramID]*loyalty.Program
	programOrder []loyalty.ProgramID
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[loyalty.AccountID]loyalty.PointAccount),
		byCode:      make(map[string]loyalty.AccountID),
		entries:     make(map[loyalty.AccountID][]loyalty.Entry),
		idempotency: make(map[string]bool),
		programs:    make(map[loyalty.ProgramID]*loyalty.Program),
	}
}

var _ loyalty.Store = (*Memory)(nil)

// -----------------------------------------------------------------------------
// AccountStore
// -----------------------------------------------------------------------------

func (m *Memory) CreateAccount(_ context.Context, account loyalty.PointAccount, opening *loyalty.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[account.Code]; exists {
		return loyalty.ErrDuplicateCode
	}
	if opening != nil {
		if err := m.appendLocked(*opening); err != nil {
			return err
		}
	}
	m.accounts[account.ID] = account
	m.accountOrder = append(m.accountOrder, account.ID)
	m.byCode[account.Code] = account.ID
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id loyalty.AccountID) (loyalty.PointAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return loyalty.PointAccount{}, loyalty.ErrAccountNotFound
	}
	return account, nil
}

func (m *Memory) GetAccountByCode(_ context.Context, code string) (loyalty.PointAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return loyalty.PointAccount{}, loyalty.ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *Memory) ListAccounts(_ context.Context, programID loyalty.ProgramID) ([]loyalty.PointAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []loyalty.PointAccount
	for _, id := range m.accountOrder {
		account := m.accounts[id]
		if programID == "" || account.ProgramID == programID {
			result = append(result, account)
		}
	}
	return result, nil
}

func (m *Memory) UpdateBalance(_ context.Context, id loyalty.AccountID, points decimal.Decimal, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(id, points, expectedVersion)
}

func (m *Memory) ApplyDeltas(_ context.Context, changes []loyalty.BalanceChange, entries []loyalty.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Verify every version first (atomic check) so a mismatch on the
	// last account cannot leave earlier accounts half-committed.
	for _, c := range changes {
		account, ok := m.accounts[c.AccountID]
		if !ok {
			return loyalty.ErrAccountNotFound
		}
		if account.Version != c.ExpectedVersion {
			return loyalty.ErrStaleSnapshot
		}
	}
	for _, c := range changes {
		if err := m.updateBalanceLocked(c.AccountID, c.Points, c.ExpectedVersion); err != nil {
			return err
		}
	}
	for _, entry := range entries {
		// Already-written keys mean a replayed commit; the entry is
		// already booked, so skip rather than fail the batch.
		if entry.IdempotencyKey != "" && m.idempotency[entry.IdempotencyKey] {
			continue
		}
		if err := m.appendLocked(entry); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) updateBalanceLocked(id loyalty.AccountID, points decimal.Decimal, expectedVersion int64) error {
	account, ok := m.accounts[id]
	if !ok {
		return loyalty.ErrAccountNotFound
	}
	if account.Version != expectedVersion {
		return loyalty.ErrStaleSnapshot
	}
	if points.IsNegative() {
		return loyalty.ErrNegativeAmount
	}
	account.Points = points
	account.Version++
	m.accounts[id] = account
	return nil
}

// -----------------------------------------------------------------------------
// Ledger
// -----------------------------------------------------------------------------

func (m *Memory) Append(_ context.Context, entry loyalty.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry)
}

func (m *Memory) AppendBatch(_ context.Context, entries []loyalty.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check).
	for _, entry := range entries {
		if entry.IdempotencyKey != "" && m.idempotency[entry.IdempotencyKey] {
			return loyalty.ErrDuplicateIdempotencyKey
		}
	}
	for _, entry := range entries {
		if err := m.appendLocked(entry); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(entry loyalty.Entry) error {
	if entry.IdempotencyKey != "" {
		if m.idempotency[entry.IdempotencyKey] {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		m.idempotency[entry.IdempotencyKey] = true
	}
	m.entries[entry.AccountID] = append(m.entries[entry.AccountID], entry)
	return nil
}

func (m *Memory) Entries(_ context.Context, accountID loyalty.AccountID) ([]loyalty.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]loyalty.Entry, len(m.entries[accountID]))
	copy(result, m.entries[accountID])
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// -----------------------------------------------------------------------------
// ProgramStore
// -----------------------------------------------------------------------------

func (m *Memory) SaveProgram(_ context.Context, program *loyalty.Program) error {
	if err := program.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.programs[program.ID]; !exists {
		m.programOrder = append(m.programOrder, program.ID)
	}
	clone := *program
	m.programs[program.ID] = &clone
	return nil
}

func (m *Memory) GetProgram(_ context.Context, id loyalty.ProgramID) (*loyalty.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	program, ok := m.programs[id]
	if !ok {
		return nil, loyalty.ErrProgramNotFound
	}
	clone := *program
	return &clone, nil
}

func (m *Memory) ListPrograms(_ context.Context) ([]*loyalty.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*loyalty.Program, 0, len(m.programOrder))
	for _, id := range m.programOrder {
		clone := *m.programs[id]
		result = append(result, &clone)
	}
	return result, nil
}

func (m *Memory) SetProgramActive(_ context.Context, id loyalty.ProgramID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	program, ok := m.programs[id]
	if !ok {
		return loyalty.ErrProgramNotFound
	}
	program.Active = active
	return nil
}
