package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tingoai/payment-gateway/internal/config"
	"github.com/tingoai/payment-gateway/internal/transaction"
)

// ErrNotFound is returned when a requested transaction is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicateReference is returned when an insert violates the merchant
// reference uniqueness constraint. The reconciliation core relies on this
// being distinguishable so it can regenerate the reference.
var ErrDuplicateReference = errors.New("storage: duplicate merchant reference")

// DefaultPageSize is applied when a query requests a non-positive page size.
const DefaultPageSize = 10

// MaxPageSize caps a single query page.
const MaxPageSize = 100

// Filter narrows a transaction query.
type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Name      string // case-insensitive substring match on customer first/last name
	Page      int    // 1-based; values < 1 are treated as 1
	PageSize  int    // values <= 0 fall back to DefaultPageSize
}

// normalize clamps pagination to sane bounds.
func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// Store captures the persistence requirements for transaction records.
// Merchant reference uniqueness is enforced by the store itself; the core
// generates references optimistically without a pre-check.
type Store interface {
	// Insert persists a new transaction. Returns ErrDuplicateReference when
	// the merchant reference is already taken.
	Insert(ctx context.Context, tx *transaction.Transaction) error

	// Update overwrites an existing record. Returns ErrNotFound when absent.
	Update(ctx context.Context, tx *transaction.Transaction) error

	GetByID(ctx context.Context, id string) (*transaction.Transaction, error)
	GetByMerchantReference(ctx context.Context, ref string) (*transaction.Transaction, error)
	GetByProcessorReference(ctx context.Context, ref string) (*transaction.Transaction, error)

	// Query returns a page of matching transactions (newest first) plus the
	// total match count.
	Query(ctx context.Context, filter Filter) ([]*transaction.Transaction, int, error)

	// ListByDateRange returns all transactions created within [start, end].
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error)

	// ListAll returns every transaction, newest first. Used by the summary
	// engine when no date range is given.
	ListAll(ctx context.Context) ([]*transaction.Transaction, error)

	Close() error
}

// StoreConfig holds storage backend configuration.
type StoreConfig struct {
	Backend         string // "memory", "postgres", "mongodb", or "sqlite"
	PostgresURL     string
	MongoDBURL      string
	MongoDBDatabase string
	SQLitePath      string
	PostgresPool    config.PostgresPoolConfig
}

// NewStore creates a Store instance based on the provided configuration.
func NewStore(cfg StoreConfig) (Store, error) {
	return NewStoreWithDB(cfg, nil)
}

// NewStoreWithDB creates a Store instance with an optional shared database
// pool for the postgres backend. Pass nil to create a new connection pool.
func NewStoreWithDB(cfg StoreConfig, sharedDB *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "memory":
		// Memory backend loses all records on restart. Development and
		// testing only.
		return NewMemoryStore(), nil
	case "":
		// Auto-detect backend from provided configuration.
		// Priority order: postgres > mongodb > sqlite > memory.
		if cfg.PostgresURL != "" {
			return newPostgres(cfg, sharedDB)
		}
		if cfg.MongoDBURL != "" {
			if cfg.MongoDBDatabase == "" {
				cfg.MongoDBDatabase = "payment_gateway"
			}
			return NewMongoDBStore(cfg.MongoDBURL, cfg.MongoDBDatabase)
		}
		if cfg.SQLitePath != "" {
			return NewSQLiteStore(cfg.SQLitePath)
		}
		return NewMemoryStore(), nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres backend requires postgres_url")
		}
		return newPostgres(cfg, sharedDB)
	case "mongodb":
		if cfg.MongoDBURL == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_url")
		}
		if cfg.MongoDBDatabase == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_database")
		}
		return NewMongoDBStore(cfg.MongoDBURL, cfg.MongoDBDatabase)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite backend requires sqlite_path")
		}
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func newPostgres(cfg StoreConfig, sharedDB *sql.DB) (Store, error) {
	if sharedDB != nil {
		return NewPostgresStoreWithDB(sharedDB)
	}
	return NewPostgresStore(cfg.PostgresURL, cfg.PostgresPool)
}

// MemoryStore is an in-memory Store implementation suitable for tests and
// single-instance development deployments.
type MemoryStore struct {
	mu             sync.RWMutex
	byID           map[string]transaction.Snapshot
	byMerchantRef  map[string]string // merchant reference -> id
	byProcessorRef map[string]string // processor reference -> id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:           make(map[string]transaction.Snapshot),
		byMerchantRef:  make(map[string]string),
		byProcessorRef: make(map[string]string),
	}
}

// Insert persists a new transaction, enforcing merchant reference uniqueness.
func (m *MemoryStore) Insert(ctx context.Context, tx *transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := tx.Snapshot()
	if _, exists := m.byMerchantRef[snap.MerchantReference]; exists {
		return ErrDuplicateReference
	}
	if _, exists := m.byID[snap.ID]; exists {
		return fmt.Errorf("storage: transaction %s already exists", snap.ID)
	}

	m.byID[snap.ID] = snap
	m.byMerchantRef[snap.MerchantReference] = snap.ID
	if snap.ProcessorReference != "" {
		m.byProcessorRef[snap.ProcessorReference] = snap.ID
	}
	return nil
}

// Update overwrites an existing record.
func (m *MemoryStore) Update(ctx context.Context, tx *transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := tx.Snapshot()
	if _, ok := m.byID[snap.ID]; !ok {
		return ErrNotFound
	}
	m.byID[snap.ID] = snap
	if snap.ProcessorReference != "" {
		m.byProcessorRef[snap.ProcessorReference] = snap.ID
	}
	return nil
}

// GetByID retrieves a transaction by its internal id.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return transaction.Restore(snap), nil
}

// GetByMerchantReference retrieves a transaction by its merchant reference.
func (m *MemoryStore) GetByMerchantReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byMerchantRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return transaction.Restore(m.byID[id]), nil
}

// GetByProcessorReference retrieves a transaction by the processor's reference.
func (m *MemoryStore) GetByProcessorReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byProcessorRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return transaction.Restore(m.byID[id]), nil
}

// Query returns a page of matching transactions plus the total match count.
func (m *MemoryStore) Query(ctx context.Context, filter Filter) ([]*transaction.Transaction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	filter.normalize()

	m.mu.RLock()
	matched := make([]transaction.Snapshot, 0, len(m.byID))
	for _, snap := range m.byID {
		if filterMatches(filter, snap) {
			matched = append(matched, snap)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	page := make([]*transaction.Transaction, 0, end-start)
	for _, snap := range matched[start:end] {
		page = append(page, transaction.Restore(snap))
	}
	return page, total, nil
}

// ListByDateRange returns all transactions created within [start, end], newest first.
func (m *MemoryStore) ListByDateRange(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*transaction.Transaction
	for _, snap := range m.byID {
		if !snap.CreatedAt.Before(start) && !snap.CreatedAt.After(end) {
			out = append(out, transaction.Restore(snap))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAll returns every transaction, newest first.
func (m *MemoryStore) ListAll(ctx context.Context) ([]*transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*transaction.Transaction, 0, len(m.byID))
	for _, snap := range m.byID {
		out = append(out, transaction.Restore(snap))
	}
	sortNewestFirst(out)
	return out, nil
}

// Close implements the Store interface.
func (m *MemoryStore) Close() error {
	return nil
}

func filterMatches(f Filter, snap transaction.Snapshot) bool {
	if f.StartDate != nil && snap.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && snap.CreatedAt.After(*f.EndDate) {
		return false
	}
	if f.Name != "" {
		needle := strings.ToLower(strings.TrimSpace(f.Name))
		first := strings.ToLower(snap.CustomerFirstName)
		last := strings.ToLower(snap.CustomerLastName)
		if !strings.Contains(first, needle) && !strings.Contains(last, needle) {
			return false
		}
	}
	return true
}

func sortNewestFirst(txs []*transaction.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt().After(txs[j].CreatedAt())
	})
}
