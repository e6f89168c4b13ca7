package reporting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tingoai/payment-gateway/internal/storage"
	"github.com/tingoai/payment-gateway/internal/transaction"
)

func seedTransaction(t *testing.T, store storage.Store, amount int64, currency string, status transaction.Status) *transaction.Transaction {
	t.Helper()
	ref := fmt.Sprintf("TINGO-%s-%d-%d", currency, amount, time.Now().UnixNano())
	tx, err := transaction.New(ref, decimal.NewFromInt(amount), currency, transaction.Customer{
		FirstName: "Ada",
		LastName:  "Okafor",
		Email:     "ada@example.com",
		Phone:     "+2348012345678",
	})
	if err != nil {
		t.Fatalf("transaction.New: %v", err)
	}
	if status != transaction.StatusPending {
		tx.UpdatePaymentStatus(status, "00", "", nil, "card")
	}
	if err := store.Insert(context.Background(), tx); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return tx
}

func TestSummarize(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store)

	seedTransaction(t, store, 1000, "NGN", transaction.StatusSuccessful)
	seedTransaction(t, store, 2500, "NGN", transaction.StatusSuccessful)
	seedTransaction(t, store, 400, "NGN", transaction.StatusFailed)
	seedTransaction(t, store, 70, "USD", transaction.StatusSuccessful)
	seedTransaction(t, store, 30, "USD", transaction.StatusPending)

	summary, err := svc.Summarize(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if summary.TotalTransactions != 5 {
		t.Errorf("TotalTransactions = %d", summary.TotalTransactions)
	}
	if summary.SuccessfulTransactions != 3 {
		t.Errorf("SuccessfulTransactions = %d", summary.SuccessfulTransactions)
	}
	if summary.FailedTransactions != 1 {
		t.Errorf("FailedTransactions = %d", summary.FailedTransactions)
	}
	if summary.PendingTransactions != 1 {
		t.Errorf("PendingTransactions = %d", summary.PendingTransactions)
	}
	if summary.SuccessRate != 60 {
		t.Errorf("SuccessRate = %v", summary.SuccessRate)
	}

	// Amounts sum successful transactions only; counts include every status.
	if !summary.TotalAmountByCurrency["NGN"].Equal(decimal.NewFromInt(3500)) {
		t.Errorf("NGN amount = %s", summary.TotalAmountByCurrency["NGN"])
	}
	if !summary.TotalAmountByCurrency["USD"].Equal(decimal.NewFromInt(70)) {
		t.Errorf("USD amount = %s", summary.TotalAmountByCurrency["USD"])
	}
	if summary.TransactionCountByCurrency["NGN"] != 3 {
		t.Errorf("NGN count = %d", summary.TransactionCountByCurrency["NGN"])
	}
	if summary.TransactionCountByCurrency["USD"] != 2 {
		t.Errorf("USD count = %d", summary.TransactionCountByCurrency["USD"])
	}

	// Currencies with no transactions still appear with zero values.
	if amount, ok := summary.TotalAmountByCurrency["EUR"]; !ok || !amount.IsZero() {
		t.Errorf("EUR amount = %v present=%v", amount, ok)
	}
	if count, ok := summary.TransactionCountByCurrency["GBP"]; !ok || count != 0 {
		t.Errorf("GBP count = %v present=%v", count, ok)
	}
}

func TestSummarize_EmptyStore(t *testing.T) {
	svc := NewService(storage.NewMemoryStore())

	summary, err := svc.Summarize(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.TotalTransactions != 0 {
		t.Errorf("TotalTransactions = %d", summary.TotalTransactions)
	}
	if summary.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, division by zero must yield 0", summary.SuccessRate)
	}
}

func TestQuery_PaginationDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store)

	for i := 0; i < 15; i++ {
		seedTransaction(t, store, int64(100+i), "NGN", transaction.StatusPending)
	}

	// Non-positive page size falls back to the default.
	result, err := svc.Query(context.Background(), QueryParams{PageSize: -3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.PageSize != storage.DefaultPageSize {
		t.Errorf("PageSize = %d", result.PageSize)
	}
	if len(result.Items) != storage.DefaultPageSize {
		t.Errorf("len(Items) = %d", len(result.Items))
	}
	if result.TotalCount != 15 {
		t.Errorf("TotalCount = %d", result.TotalCount)
	}
	if result.Page != 1 {
		t.Errorf("Page = %d", result.Page)
	}

	// Second page carries the remainder.
	result, err = svc.Query(context.Background(), QueryParams{Page: 2})
	if err != nil {
		t.Fatalf("Query page 2: %v", err)
	}
	if len(result.Items) != 5 {
		t.Errorf("Page 2 len(Items) = %d", len(result.Items))
	}

	// Oversized page sizes are clamped.
	result, err = svc.Query(context.Background(), QueryParams{PageSize: 100000})
	if err != nil {
		t.Fatalf("Query oversized: %v", err)
	}
	if result.PageSize != storage.MaxPageSize {
		t.Errorf("PageSize = %d, want clamp to %d", result.PageSize, storage.MaxPageSize)
	}
}

func TestQuery_WithSummary(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store)

	seedTransaction(t, store, 500, "NGN", transaction.StatusSuccessful)
	seedTransaction(t, store, 700, "NGN", transaction.StatusFailed)

	result, err := svc.Query(context.Background(), QueryParams{IncludeSummary: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Summary == nil {
		t.Fatal("Expected summary")
	}
	if result.Summary.TotalTransactions != 2 {
		t.Errorf("Summary.TotalTransactions = %d", result.Summary.TotalTransactions)
	}
	if result.Summary.SuccessRate != 50 {
		t.Errorf("Summary.SuccessRate = %v", result.Summary.SuccessRate)
	}

	result, err = svc.Query(context.Background(), QueryParams{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Summary != nil {
		t.Error("Summary should be omitted unless requested")
	}
}

func TestGetByID(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store)
	tx := seedTransaction(t, store, 900, "EUR", transaction.StatusSuccessful)

	view, err := svc.GetByID(context.Background(), tx.ID())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if view.ID != tx.ID() {
		t.Errorf("ID = %q", view.ID)
	}
	if view.PaymentStatus != "Successful" {
		t.Errorf("PaymentStatus = %q", view.PaymentStatus)
	}
	if !view.Amount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Amount = %s", view.Amount)
	}

	if _, err := svc.GetByID(context.Background(), "missing-id"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
