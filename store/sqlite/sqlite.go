/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements loyalty.Store (customers, transactions, reward totals)
  using SQLite. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  customers:     Registered accounts, unique email
  transactions:  Purchases; mutated in place on edit, removed on delete
  reward_points: Derived monthly point buckets

INDEXES:
  idx_customers_email:        Login lookup + uniqueness
  idx_transactions_customer_date: Reconciliation range scans (hot path)
  idx_reward_points_bucket:   Unique (customer, month, year). The legacy
    data model tolerated duplicate bucket rows; new data cannot produce
    them, but readers stay defensive (see loyalty.Ledger).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := loyalty.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - loyalty/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/loyalty"
)

const dateLayout = "2006-01-02"

// Store implements loyalty.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

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
	-- Customers
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_email
		ON customers(email);

	-- Transactions (mutable: edited in place, removed on delete)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		amount TEXT NOT NULL,
		spent_details TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_customer
		ON transactions(customer_id);

	-- Composite index for reconciliation range scans (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_customer_date
		ON transactions(customer_id, date);

	-- Monthly reward point buckets
	CREATE TABLE IF NOT EXISTS reward_points (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reward_points_customer
		ON reward_points(customer_id);

	-- One row per (customer, month, year). Readers still tolerate
	-- duplicates from data predating this index.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_points_bucket
		ON reward_points(customer_id, month, year);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CUSTOMER STORE (loyalty.CustomerStore interface)
// =============================================================================

// SaveCustomer upserts a customer.
func (s *Store) SaveCustomer(ctx context.Context, c loyalty.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO customers (id, first_name, last_name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			password_hash = excluded.password_hash
	`

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		string(c.ID), c.FirstName, c.LastName, c.Email, c.PasswordHash,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("email already in use: %w", loyalty.ErrConstraintViolation)
		}
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by ID.
func (s *Store) GetCustomer(ctx context.Context, id loyalty.CustomerID) (*loyalty.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanCustomer(s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, email, password_hash, created_at FROM customers WHERE id = ?",
		string(id),
	))
}

// GetCustomerByEmail retrieves a customer by email.
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*loyalty.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanCustomer(s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, email, password_hash, created_at FROM customers WHERE email = ?",
		email,
	))
}

func (s *Store) scanCustomer(row *sql.Row) (*loyalty.Customer, error) {
	var c loyalty.Customer
	var id, createdAt string

	err := row.Scan(&id, &c.FirstName, &c.LastName, &c.Email, &c.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}

	c.ID = loyalty.CustomerID(id)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// TRANSACTION STORE (loyalty.TransactionStore interface)
// =============================================================================

// SaveTransaction upserts a transaction.
func (s *Store) SaveTransaction(ctx context.Context, tx loyalty.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions (id, customer_id, amount, spent_details, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			spent_details = excluded.spent_details,
			date = excluded.date
	`

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		string(tx.ID), string(tx.CustomerID),
		tx.Amount.String(), tx.SpentDetails,
		tx.Date.Format(dateLayout),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) || isForeignKeyError(err) {
			return fmt.Errorf("transaction rejected: %w", loyalty.ErrConstraintViolation)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// ListTransactions returns all of a customer's transactions.
func (s *Store) ListTransactions(ctx context.Context, customerID loyalty.CustomerID) ([]loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, amount, spent_details, date, created_at
		FROM transactions
		WHERE customer_id = ?
		ORDER BY date ASC, created_at ASC
	`

	return s.queryTransactions(ctx, query, string(customerID))
}

// GetTransaction resolves a transaction scoped to a customer.
func (s *Store) GetTransaction(ctx context.Context, customerID loyalty.CustomerID, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, amount, spent_details, date, created_at
		FROM transactions
		WHERE customer_id = ? AND id = ?
	`

	txs, err := s.queryTransactions(ctx, query, string(customerID), string(id))
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// ListTransactionsInRange returns transactions dated within [from, to].
func (s *Store) ListTransactionsInRange(ctx context.Context, customerID loyalty.CustomerID, from, to time.Time) ([]loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, amount, spent_details, date, created_at
		FROM transactions
		WHERE customer_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC
	`

	return s.queryTransactions(ctx, query, string(customerID),
		from.Format(dateLayout), to.Format(dateLayout))
}

// DeleteTransaction removes a transaction.
func (s *Store) DeleteTransaction(ctx context.Context, customerID loyalty.CustomerID, id loyalty.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE customer_id = ? AND id = ?",
		string(customerID), string(id),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("transaction could not be deleted: %w", loyalty.ErrConstraintViolation)
		}
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]loyalty.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []loyalty.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (loyalty.Transaction, error) {
	var (
		tx           loyalty.Transaction
		id           string
		customerID   string
		amount       string
		spentDetails sql.NullString
		date         string
		createdAt    string
	)

	err := rows.Scan(&id, &customerID, &amount, &spentDetails, &date, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = loyalty.TransactionID(id)
	tx.CustomerID = loyalty.CustomerID(customerID)
	tx.Amount = mustParseDecimal(amount)
	tx.SpentDetails = spentDetails.String
	tx.Date, _ = time.Parse(dateLayout, date)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

// =============================================================================
// REWARD TOTAL STORE (loyalty.RewardTotalStore interface)
// =============================================================================

// SaveRewardTotal upserts a bucket row.
func (s *Store) SaveRewardTotal(ctx context.Context, rt loyalty.RewardTotal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reward_points (id, customer_id, month, year, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			points = excluded.points
	`

	createdAt := rt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		rt.ID, string(rt.CustomerID), rt.Month, rt.Year, rt.Points,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) || isForeignKeyError(err) {
			return fmt.Errorf("reward total rejected: %w", loyalty.ErrConstraintViolation)
		}
		return fmt.Errorf("failed to save reward total: %w", err)
	}
	return nil
}

// FindRewardTotals returns the bucket rows for an exact key.
func (s *Store) FindRewardTotals(ctx context.Context, customerID loyalty.CustomerID, month, year int) ([]loyalty.RewardTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, month, year, points, created_at
		FROM reward_points
		WHERE customer_id = ? AND month = ? AND year = ?
		ORDER BY created_at ASC
	`

	return s.queryRewardTotals(ctx, query, string(customerID), month, year)
}

// ListRewardTotals returns all bucket rows for a customer.
func (s *Store) ListRewardTotals(ctx context.Context, customerID loyalty.CustomerID) ([]loyalty.RewardTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, month, year, points, created_at
		FROM reward_points
		WHERE customer_id = ?
		ORDER BY created_at ASC, year ASC, month ASC
	`

	return s.queryRewardTotals(ctx, query, string(customerID))
}

func (s *Store) queryRewardTotals(ctx context.Context, query string, args ...any) ([]loyalty.RewardTotal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward totals: %w", err)
	}
	defer rows.Close()

	var totals []loyalty.RewardTotal
	for rows.Next() {
		var rt loyalty.RewardTotal
		var customerID, createdAt string
		if err := rows.Scan(&rt.ID, &customerID, &rt.Month, &rt.Year, &rt.Points, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward total: %w", err)
		}
		rt.CustomerID = loyalty.CustomerID(customerID)
		rt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		totals = append(totals, rt)
	}

	return totals, rows.Err()
}

// Helper functions

func mustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
