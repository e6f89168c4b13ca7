package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tingoai/payment-gateway/internal/config"
	"github.com/tingoai/payment-gateway/internal/transaction"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool
}

const pqUniqueViolation = "23505"

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(connectionString string, poolConfig config.PostgresPoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		// Close() error during initialization cleanup is not actionable; the
		// connection failure is the error worth returning.
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	store := &PostgresStore{db: db, ownsDB: true}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB creates a PostgreSQL-backed store using an existing
// connection pool shared with other repositories.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db, ownsDB: false}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

// createTables creates the transactions table and its indexes if missing.
// The unique index on merchant_reference is the correctness-critical
// constraint: the core generates references optimistically and relies on the
// store to reject collisions.
func (s *PostgresStore) createTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			merchant_reference TEXT NOT NULL UNIQUE,
			processor_reference TEXT,
			amount NUMERIC(20,4) NOT NULL,
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
			payment_date TIMESTAMPTZ,
			payment_channel TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
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

const transactionColumns = `id, merchant_reference, processor_reference, amount, currency,
	customer_first_name, customer_last_name, customer_email, customer_phone, customer_address,
	status, checkout_url, access_code, response_code, response_message,
	payment_date, payment_channel, created_at, updated_at`

// Insert persists a new transaction record.
func (s *PostgresStore) Insert(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	snap := tx.Snapshot()
	query := fmt.Sprintf(`INSERT INTO transactions (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		transactionColumns)

	_, err := s.db.ExecContext(ctx, query, insertArgs(snap)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update overwrites an existing transaction record.
func (s *PostgresStore) Update(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	snap := tx.Snapshot()
	query := `UPDATE transactions SET
			processor_reference = $2, status = $3, checkout_url = $4, access_code = $5,
			response_code = $6, response_message = $7, payment_date = $8, payment_channel = $9,
			updated_at = $10
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		snap.ID,
		nullable(snap.ProcessorReference),
		string(snap.Status),
		nullable(snap.CheckoutURL),
		nullable(snap.AccessCode),
		nullable(snap.ResponseCode),
		nullable(snap.ResponseMessage),
		nullableTime(snap.PaymentDate),
		nullable(snap.PaymentChannel),
		snap.UpdatedAt.UTC(),
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
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "id = $1", id)
}

// GetByMerchantReference retrieves a transaction by its merchant reference.
func (s *PostgresStore) GetByMerchantReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "merchant_reference = $1", ref)
}

// GetByProcessorReference retrieves a transaction by the processor's reference.
func (s *PostgresStore) GetByProcessorReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "processor_reference = $1", ref)
}

func (s *PostgresStore) getOne(ctx context.Context, where string, arg interface{}) (*transaction.Transaction, error) {
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
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]*transaction.Transaction, int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	filter.normalize()

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StartDate != nil {
		conds = append(conds, "created_at >= "+arg(filter.StartDate.UTC()))
	}
	if filter.EndDate != nil {
		conds = append(conds, "created_at <= "+arg(filter.EndDate.UTC()))
	}
	if filter.Name != "" {
		needle := "%" + strings.TrimSpace(filter.Name) + "%"
		p := arg(needle)
		conds = append(conds, fmt.Sprintf("(customer_first_name ILIKE %s OR customer_last_name ILIKE %s)", p, p))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transactions" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	limit := arg(filter.PageSize)
	offset := arg((filter.Page - 1) * filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT %s OFFSET %s",
		transactionColumns, where, limit, offset)

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
func (s *PostgresStore) ListByDateRange(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC`, transactionColumns)

	rows, err := s.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list transactions by date range: %w", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// ListAll returns every transaction, newest first.
func (s *PostgresStore) ListAll(ctx context.Context) ([]*transaction.Transaction, error) {
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

// Close closes the connection pool when this store owns it.
func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTransaction reads one row into a snapshot. Shared by the postgres and
// sqlite backends, whose column layouts are identical.
func scanTransaction(row rowScanner) (transaction.Snapshot, error) {
	var (
		snap         transaction.Snapshot
		amountRaw    string
		processorRef sql.NullString
		address      sql.NullString
		checkoutURL  sql.NullString
		accessCode   sql.NullString
		responseCode sql.NullString
		responseMsg  sql.NullString
		paymentDate  sql.NullTime
		channel      sql.NullString
	)

	err := row.Scan(
		&snap.ID,
		&snap.MerchantReference,
		&processorRef,
		&amountRaw,
		&snap.Currency,
		&snap.CustomerFirstName,
		&snap.CustomerLastName,
		&snap.CustomerEmail,
		&snap.CustomerPhone,
		&address,
		&snap.Status,
		&checkoutURL,
		&accessCode,
		&responseCode,
		&responseMsg,
		&paymentDate,
		&channel,
		&snap.CreatedAt,
		&snap.UpdatedAt,
	)
	if err != nil {
		return transaction.Snapshot{}, err
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return transaction.Snapshot{}, fmt.Errorf("parse stored amount %q: %w", amountRaw, err)
	}
	snap.Amount = amount
	snap.ProcessorReference = processorRef.String
	snap.CustomerAddress = address.String
	snap.CheckoutURL = checkoutURL.String
	snap.AccessCode = accessCode.String
	snap.ResponseCode = responseCode.String
	snap.ResponseMessage = responseMsg.String
	snap.PaymentChannel = channel.String
	if paymentDate.Valid {
		t := paymentDate.Time
		snap.PaymentDate = &t
	}
	return snap, nil
}

func collectRows(rows *sql.Rows) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for rows.Next() {
		snap, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, transaction.Restore(snap))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func insertArgs(snap transaction.Snapshot) []interface{} {
	return []interface{}{
		snap.ID,
		snap.MerchantReference,
		nullable(snap.ProcessorReference),
		snap.Amount.String(),
		snap.Currency,
		snap.CustomerFirstName,
		snap.CustomerLastName,
		snap.CustomerEmail,
		snap.CustomerPhone,
		nullable(snap.CustomerAddress),
		string(snap.Status),
		nullable(snap.CheckoutURL),
		nullable(snap.AccessCode),
		nullable(snap.ResponseCode),
		nullable(snap.ResponseMessage),
		nullableTime(snap.PaymentDate),
		nullable(snap.PaymentChannel),
		snap.CreatedAt.UTC(),
		snap.UpdatedAt.UTC(),
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
