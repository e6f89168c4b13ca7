package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tingoai/payment-gateway/internal/transaction"
)

// SQLiteStore implements Store using an embedded SQLite database. Suitable
// for single-instance deployments that need durability without an external
// database server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows a single writer; serialize access through one connection
	// to avoid SQLITE_BUSY under concurrent reconciliation updates.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			merchant_reference TEXT NOT NULL UNIQUE,
			processor_reference TEXT,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			customer_first_name TEXT NOT NULL,
			customer_last_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_address TEXT,
			status TEXT NOT NULL,
			checkout_url TEXT,
			access_code TEXT,
			response_code TEXT,
			response_message TEXT,
			payment_date TIMESTAMP,
			payment_channel TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_processor_reference ON transactions (processor_reference);
		CREATE INDEX IF NOT EXISTS idx_transactions_currency ON transactions (currency);
		CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status);
		CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	return nil
}

// Insert persists a new transaction record.
func (s *SQLiteStore) Insert(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO transactions (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transactionColumns)

	_, err := s.db.ExecContext(ctx, query, insertArgs(tx.Snapshot())...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update overwrites an existing transaction record.
func (s *SQLiteStore) Update(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	snap := tx.Snapshot()
	query := `UPDATE transactions SET
			processor_reference = ?, status = ?, checkout_url = ?, access_code = ?,
			response_code = ?, response_message = ?, payment_date = ?, payment_channel = ?,
			updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		nullable(snap.ProcessorReference),
		string(snap.Status),
		nullable(snap.CheckoutURL),
		nullable(snap.AccessCode),
		nullable(snap.ResponseCode),
		nullable(snap.ResponseMessage),
		nullableTime(snap.PaymentDate),
		nullable(snap.PaymentChannel),
		snap.UpdatedAt.UTC(),
		snap.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a transaction by its internal id.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "id = ?", id)
}

// GetByMerchantReference retrieves a transaction by its merchant reference.
func (s *SQLiteStore) GetByMerchantReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "merchant_reference = ?", ref)
}

// GetByProcessorReference retrieves a transaction by the processor's reference.
func (s *SQLiteStore) GetByProcessorReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "processor_reference = ?", ref)
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg interface{}) (*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM transactions WHERE %s", transactionColumns, where)
	row := s.db.QueryRowContext(ctx, query, arg)

	snap, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return transaction.Restore(snap), nil
}

// Query returns a page of matching transactions (newest first) plus the total match count.
func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]*transaction.Transaction, int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	filter.normalize()

	var conds []string
	var args []interface{}

	if filter.StartDate != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.Name != "" {
		needle := "%" + strings.ToLower(strings.TrimSpace(filter.Name)) + "%"
		conds = append(conds, "(LOWER(customer_first_name) LIKE ? OR LOWER(customer_last_name) LIKE ?)")
		args = append(args, needle, needle)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		transactionColumns, where)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs, err := collectRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ListByDateRange returns all transactions created within [start, end], newest first.
func (s *SQLiteStore) ListByDateRange(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at DESC`, transactionColumns)

	rows, err := s.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list transactions by date range: %w", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// ListAll returns every transaction, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM transactions ORDER BY created_at DESC", transactionColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
