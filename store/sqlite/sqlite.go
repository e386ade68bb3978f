/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists clients, contract history, and payments. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

NO DERIVED LOGIC IN THE DATABASE:
  The original system computed current-period and variance formulas
  inside database views AND in client code, with no reconciliation
  between the two. Here the tables hold raw records only; every derived
  value (current period, expected fee, variance, compliance ledger)
  comes from the billing package. One source of truth.

KEY TABLES:
  clients:    plan sponsors
  contracts:  append-only fee agreement history (supersession never
              deletes; the old record is deactivated, the new one
              appended with a later start date)
  payments:   recorded remittances (mutable: operator corrections)

MONEY COLUMNS:
  Stored as TEXT and parsed through decimal.NewFromString. REAL columns
  would reintroduce the float drift the engine exists to avoid.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/fees.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/store.go: interface definition
  - store/memory:   in-memory implementation for testing
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

	"github.com/warp/fee-engine/billing"
	"github.com/warp/fee-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		full_name TEXT,
		ima_signed_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Contract history is append-only: supersession deactivates the old
	-- row and inserts a new one. No row is ever deleted.
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id),
		contract_number TEXT,
		provider_name TEXT,
		fee_type TEXT NOT NULL,
		percent_rate TEXT,
		flat_rate TEXT,
		payment_schedule TEXT NOT NULL,
		start_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_client
		ON contracts(client_id, start_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		client_id TEXT NOT NULL REFERENCES clients(id),
		received_date TEXT NOT NULL,
		total_assets TEXT,
		expected_fee TEXT,
		actual_fee TEXT NOT NULL,
		applied_period_type TEXT NOT NULL,
		applied_period INTEGER NOT NULL,
		applied_year INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Ledger joins look payments up by client + applied period (hot path)
	CREATE INDEX IF NOT EXISTS idx_payments_client_period
		ON payments(client_id, applied_period_type, applied_year, applied_period);
	CREATE INDEX IF NOT EXISTS idx_payments_received
		ON payments(client_id, received_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c billing.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, display_name, full_name, ima_signed_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			full_name = excluded.full_name,
			ima_signed_date = excluded.ima_signed_date
	`,
		c.ID, c.DisplayName, c.FullName, nullDate(c.IMASignedDate), createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, full_name, ima_signed_date, created_at
		FROM clients WHERE id = ?
	`, id)

	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return billing.Client{}, store.ErrClientNotFound
	}
	return c, err
}

func (s *Store) ListClients(ctx context.Context) ([]billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, full_name, ima_signed_date, created_at
		FROM clients ORDER BY display_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []billing.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (billing.Client, error) {
	var (
		c         billing.Client
		fullName  sql.NullString
		imaSigned sql.NullString
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.DisplayName, &fullName, &imaSigned, &createdAt); err != nil {
		return c, err
	}
	c.FullName = fullName.String
	if imaSigned.Valid {
		if t, err := time.Parse(time.RFC3339, imaSigned.String); err == nil {
			c.IMASignedDate = &t
		}
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// =============================================================================
// CONTRACTS - Append-only supersession
// =============================================================================

func (s *Store) AppendContract(ctx context.Context, c billing.Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clients WHERE id = ?", c.ClientID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check client: %w", err)
	}
	if exists == 0 {
		return store.ErrClientNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Deactivate and insert in one transaction so there is no window
	// where a client has zero or two active contracts.
	if _, err := tx.ExecContext(ctx,
		"UPDATE contracts SET is_active = FALSE WHERE client_id = ?", c.ClientID); err != nil {
		return fmt.Errorf("failed to deactivate prior contracts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contracts
		(id, client_id, contract_number, provider_name, fee_type, percent_rate,
		 flat_rate, payment_schedule, start_date, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?)
	`,
		c.ID, c.ClientID, c.ContractNumber, c.ProviderName, c.FeeType,
		nullDecimal(c.PercentRate), nullDecimal(c.FlatRate),
		c.PaymentSchedule, c.StartDate.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to append contract: %w", err)
	}

	return tx.Commit()
}

func (s *Store) ContractHistory(ctx context.Context, clientID billing.ClientID) ([]billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contractHistory(ctx, clientID)
}

func (s *Store) contractHistory(ctx context.Context, clientID billing.ClientID) ([]billing.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, contract_number, provider_name, fee_type,
		       percent_rate, flat_rate, payment_schedule, start_date, is_active
		FROM contracts
		WHERE client_id = ?
		ORDER BY start_date ASC, created_at ASC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []billing.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func (s *Store) ActiveContract(ctx context.Context, clientID billing.ClientID, asOf time.Time) (billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, err := s.contractHistory(ctx, clientID)
	if err != nil {
		return billing.Contract{}, err
	}
	c, ok := store.ActiveOf(history, asOf)
	if !ok {
		return billing.Contract{}, store.ErrContractNotFound
	}
	return c, nil
}

func scanContract(rows *sql.Rows) (billing.Contract, error) {
	var (
		c              billing.Contract
		contractNumber sql.NullString
		providerName   sql.NullString
		percentRate    sql.NullString
		flatRate       sql.NullString
		startDate      string
	)
	err := rows.Scan(&c.ID, &c.ClientID, &contractNumber, &providerName,
		&c.FeeType, &percentRate, &flatRate, &c.PaymentSchedule, &startDate, &c.IsActive)
	if err != nil {
		return c, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.ContractNumber = contractNumber.String
	c.ProviderName = providerName.String
	if c.PercentRate, err = parseNullDecimal(percentRate); err != nil {
		return c, err
	}
	if c.FlatRate, err = parseNullDecimal(flatRate); err != nil {
		return c, err
	}
	c.StartDate, _ = time.Parse(time.RFC3339, startDate)
	return c, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) RecordPayment(ctx context.Context, p billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments
		(id, contract_id, client_id, received_date, total_assets, expected_fee,
		 actual_fee, applied_period_type, applied_period, applied_year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.ContractID, p.ClientID, p.ReceivedDate.Format(time.RFC3339),
		nullDecimal(p.TotalAssets), nullDecimal(p.ExpectedFee), p.ActualFee.String(),
		p.AppliedPeriodType, p.AppliedPeriod, p.AppliedYear, now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

func (s *Store) UpdatePayment(ctx context.Context, p billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET
			received_date = ?, total_assets = ?, expected_fee = ?, actual_fee = ?,
			applied_period_type = ?, applied_period = ?, applied_year = ?, updated_at = ?
		WHERE id = ?
	`,
		p.ReceivedDate.Format(time.RFC3339), nullDecimal(p.TotalAssets),
		nullDecimal(p.ExpectedFee), p.ActualFee.String(),
		p.AppliedPeriodType, p.AppliedPeriod, p.AppliedYear,
		time.Now().UTC().Format(time.RFC3339), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id billing.PaymentID) (billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, client_id, received_date, total_assets, expected_fee,
		       actual_fee, applied_period_type, applied_period, applied_year
		FROM payments WHERE id = ?
	`, id)
	if err != nil {
		return billing.Payment{}, fmt.Errorf("failed to query payment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return billing.Payment{}, err
		}
		return billing.Payment{}, store.ErrPaymentNotFound
	}
	return scanPayment(rows)
}

func (s *Store) Payments(ctx context.Context, clientID billing.ClientID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, client_id, received_date, total_assets, expected_fee,
		       actual_fee, applied_period_type, applied_period, applied_year
		FROM payments
		WHERE client_id = ?
		ORDER BY received_date DESC, created_at DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(rows *sql.Rows) (billing.Payment, error) {
	var (
		p            billing.Payment
		receivedDate string
		totalAssets  sql.NullString
		expectedFee  sql.NullString
		actualFee    string
	)
	err := rows.Scan(&p.ID, &p.ContractID, &p.ClientID, &receivedDate,
		&totalAssets, &expectedFee, &actualFee,
		&p.AppliedPeriodType, &p.AppliedPeriod, &p.AppliedYear)
	if err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.ReceivedDate, _ = time.Parse(time.RFC3339, receivedDate)
	if p.TotalAssets, err = parseNullDecimal(totalAssets); err != nil {
		return p, err
	}
	if p.ExpectedFee, err = parseNullDecimal(expectedFee); err != nil {
		return p, err
	}
	if p.ActualFee, err = decimal.NewFromString(actualFee); err != nil {
		return p, fmt.Errorf("failed to parse actual fee: %w", err)
	}
	return p, nil
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data. Used by demo scenario loaders only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payments", "contracts", "clients"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse decimal column: %w", err)
	}
	return &d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
