/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements loyalty.Store (AccountStore, Ledger, ProgramStore) using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  programs:  Program configuration as JSON rows, in registration order
  accounts:  Point balances with a version column for optimistic
             concurrency
  entries:   Immutable log of balance changes

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE ever touches the entries table. Corrections are
  appended as compensating entries.

OPTIMISTIC CONCURRENCY:
  Balance writes are guarded:

    UPDATE accounts SET points = ?, version = version + 1
     WHERE id = ? AND version = ?

  Zero rows affected means the snapshot the evaluation was computed
  against is stale, and loyalty.ErrStaleSnapshot is returned.
  ApplyDeltas wraps all of an order's balance writes AND its ledger
  entries in one database transaction, so two shoppers racing to
  redeem the same gift card can never both succeed past the available
  balance, and a failed commit never leaves a debit without its entry.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't
  block during commits.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := loyalty.NewEngine(store)

SEE ALSO:
  - loyalty/ledger.go: Interface definitions
  - loyalty/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

// Store implements loyalty.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ loyalty.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Programs (configuration, registration order preserved)
	CREATE TABLE IF NOT EXISTS programs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Point accounts (gift cards, e-wallets)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		points TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_program
		ON accounts(program_id);

	-- Entries (append-only log of balance changes)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		program_id TEXT,
		order_id TEXT,
		delta TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		description TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account
		ON entries(account_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account loyalty.PointAccount, opening *loyalty.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin account creation: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, program_id, code, points, active, version, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM accounts), ?)`,
		string(account.ID), string(account.ProgramID), account.Code,
		account.Points.String(), boolToInt(account.Active), account.Version,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return loyalty.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	// The opening-balance entry rides the same transaction, so a
	// failed insert rolls the account back too.
	if opening != nil {
		if err := insertEntry(ctx, tx, *opening, false); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, id loyalty.AccountID) (loyalty.PointAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program_id, code, points, active, version
		  FROM accounts WHERE id = ?`, string(id))
	return scanAccount(row)
}

func (s *Store) GetAccountByCode(ctx context.Context, code string) (loyalty.PointAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program_id, code, points, active, version
		  FROM accounts WHERE code = ?`, code)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context, programID loyalty.ProgramID) ([]loyalty.PointAccount, error) {
	query := `
		SELECT id, program_id, code, points, active, version
		  FROM accounts`
	args := []any{}
	if programID != "" {
		query += ` WHERE program_id = ?`
		args = append(args, string(programID))
	}
	query += ` ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []loyalty.PointAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateBalance(ctx context.Context, id loyalty.AccountID, points decimal.Decimal, expectedVersion int64) error {
	return s.applyChange(ctx, s.db, loyalty.BalanceChange{
		AccountID:       id,
		Points:          points,
		ExpectedVersion: expectedVersion,
	})
}

func (s *Store) ApplyDeltas(ctx context.Context, changes []loyalty.BalanceChange, entries []loyalty.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	for _, change := range changes {
		if err := s.applyChange(ctx, tx, change); err != nil {
			return err
		}
	}
	// Entries land in the same transaction as the balance writes.
	// Already-written idempotency keys mean a replayed commit, so
	// those entries are skipped rather than failing the batch.
	for _, entry := range entries {
		if err := insertEntry(ctx, tx, entry, true); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) applyChange(ctx context.Context, db execer, change loyalty.BalanceChange) error {
	if change.Points.IsNegative() {
		return loyalty.ErrNegativeAmount
	}
	result, err := db.ExecContext(ctx, `
		UPDATE accounts SET points = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		change.Points.String(), string(change.AccountID), change.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return loyalty.ErrStaleSnapshot
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) Append(ctx context.Context, entry loyalty.Entry) error {
	return s.AppendBatch(ctx, []loyalty.Entry{entry})
}

func (s *Store) AppendBatch(ctx context.Context, entries []loyalty.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if err := insertEntry(ctx, tx, entry, false); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// insertEntry writes one ledger row. With skipDuplicateKey the insert
// becomes a no-op when the idempotency key was already written;
// without it a duplicate key is ErrDuplicateIdempotencyKey.
func insertEntry(ctx context.Context, db execer, entry loyalty.Entry, skipDuplicateKey bool) error {
	key := sql.NullString{String: entry.IdempotencyKey, Valid: entry.IdempotencyKey != ""}
	query := `
		INSERT INTO entries (id, account_id, program_id, order_id, delta, entry_type, description, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if skipDuplicateKey {
		query += ` ON CONFLICT(idempotency_key) DO NOTHING`
	}
	_, err := db.ExecContext(ctx, query,
		entry.ID, string(entry.AccountID), string(entry.ProgramID), entry.OrderID,
		entry.Delta.String(), string(entry.Type), entry.Description, key,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return loyalty.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, accountID loyalty.AccountID) ([]loyalty.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, program_id, order_id, delta, entry_type, description, idempotency_key, created_at
		  FROM entries WHERE account_id = ? ORDER BY created_at, id`,
		string(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var entries []loyalty.Entry
	for rows.Next() {
		var (
			entry     loyalty.Entry
			accID     string
			progID    string
			delta     string
			entryType string
			key       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &accID, &progID, &entry.OrderID, &delta, &entryType, &entry.Description, &key, &createdAt); err != nil {
			return nil, err
		}
		entry.AccountID = loyalty.AccountID(accID)
		entry.ProgramID = loyalty.ProgramID(progID)
		entry.Type = loyalty.EntryType(entryType)
		entry.IdempotencyKey = key.String
		entry.Delta, err = decimal.NewFromString(delta)
		if err != nil {
			return nil, fmt.Errorf("corrupt delta %q: %w", delta, err)
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE idempotency_key = ?`, idempotencyKey,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// PROGRAM STORE
// =============================================================================

func (s *Store) SaveProgram(ctx context.Context, program *loyalty.Program) error {
	if err := program.Validate(); err != nil {
		return err
	}
	configJSON, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to encode program: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO programs (id, name, config_json, active, position, created_at)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM programs), ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			active = excluded.active`,
		string(program.ID), program.Name, string(configJSON),
		boolToInt(program.Active), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save program: %w", err)
	}
	return nil
}

func (s *Store) GetProgram(ctx context.Context, id loyalty.ProgramID) (*loyalty.Program, error) {
	var configJSON string
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json, active FROM programs WHERE id = ?`, string(id),
	).Scan(&configJSON, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loyalty.ErrProgramNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	return decodeProgram(configJSON, active)
}

func (s *Store) ListPrograms(ctx context.Context) ([]*loyalty.Program, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT config_json, active FROM programs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	var programs []*loyalty.Program
	for rows.Next() {
		var configJSON string
		var active int
		if err := rows.Scan(&configJSON, &active); err != nil {
			return nil, err
		}
		program, err := decodeProgram(configJSON, active)
		if err != nil {
			return nil, err
		}
		programs = append(programs, program)
	}
	return programs, rows.Err()
}

func (s *Store) SetProgramActive(ctx context.Context, id loyalty.ProgramID, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE programs SET active = ? WHERE id = ?`, boolToInt(active), string(id))
	if err != nil {
		return fmt.Errorf("failed to toggle program: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return loyalty.ErrProgramNotFound
	}
	// The active column overrides the JSON config on every read, so
	// one UPDATE is the whole toggle.
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeProgram(configJSON string, active int) (*loyalty.Program, error) {
	var program loyalty.Program
	if err := json.Unmarshal([]byte(configJSON), &program); err != nil {
		return nil, fmt.Errorf("corrupt program config: %w", err)
	}
	program.Active = active != 0
	return &program, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (loyalty.PointAccount, error) {
	var (
		id      string
		progID  string
		code    string
		points  string
		active  int
		version int64
	)
	err := row.Scan(&id, &progID, &code, &points, &active, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return loyalty.PointAccount{}, loyalty.ErrAccountNotFound
	}
	if err != nil {
		return loyalty.PointAccount{}, fmt.Errorf("failed to scan account: %w", err)
	}

	balance, err := decimal.NewFromString(points)
	if err != nil {
		return loyalty.PointAccount{}, fmt.Errorf("corrupt balance %q: %w", points, err)
	}
	return loyalty.PointAccount{
		ID:        loyalty.AccountID(id),
		ProgramID: loyalty.ProgramID(progID),
		Code:      code,
		Points:    balance,
		Active:    active != 0,
		Version:   version,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
