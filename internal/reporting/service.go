// Package reporting implements the transaction query and summary engine.
package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tingoai/payment-gateway/internal/storage"
	"github.com/tingoai/payment-gateway/internal/transaction"
)

// TransactionView is the read-model projection of a transaction returned by
// the query and verify endpoints.
type TransactionView struct {
	ID                 string          `json:"id"`
	MerchantReference  string          `json:"merchantTransactionReference"`
	ProcessorReference string          `json:"processorTransactionReference,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	CustomerFirstName  string          `json:"customerFirstName"`
	CustomerLastName   string          `json:"customerLastName"`
	CustomerEmail      string          `json:"customerEmail"`
	CustomerPhone      string          `json:"customerPhone"`
	CustomerAddress    string          `json:"customerAddress,omitempty"`
	PaymentStatus      string          `json:"paymentStatus"`
	CheckoutURL        string          `json:"checkoutUrl,omitempty"`
	PaymentDate        *time.Time      `json:"paymentDate,omitempty"`
	PaymentChannel     string          `json:"paymentChannel,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NewTransactionView projects a transaction entity into its API shape.
func NewTransactionView(tx *transaction.Transaction) TransactionView {
	customer := tx.Customer()
	return TransactionView{
		ID:                 tx.ID(),
		MerchantReference:  tx.MerchantReference(),
		ProcessorReference: tx.ProcessorReference(),
		Amount:             tx.Amount(),
		Currency:           tx.Currency(),
		CustomerFirstName:  customer.FirstName,
		CustomerLastName:   customer.LastName,
		CustomerEmail:      customer.Email,
		CustomerPhone:      customer.Phone,
		CustomerAddress:    customer.Address,
		PaymentStatus:      string(tx.Status()),
		CheckoutURL:        tx.CheckoutURL(),
		PaymentDate:        tx.PaymentDate(),
		PaymentChannel:     tx.PaymentChannel(),
		CreatedAt:          tx.CreatedAt(),
		UpdatedAt:          tx.UpdatedAt(),
	}
}

// Summary aggregates transaction counts and per-currency totals. Amounts sum
// only successful transactions; counts include every status.
type Summary struct {
	TotalTransactions          int                        `json:"totalTransactions"`
	SuccessfulTransactions     int                        `json:"successfulTransactions"`
	FailedTransactions         int                        `json:"failedTransactions"`
	PendingTransactions        int                        `json:"pendingTransactions"`
	SuccessRate                float64                    `json:"successRate"`
	TotalAmountByCurrency      map[string]decimal.Decimal `json:"totalAmountByCurrency"`
	TransactionCountByCurrency map[string]int             `json:"transactionCountByCurrency"`
}

// QueryParams narrows and paginates a transaction query.
type QueryParams struct {
	Name           string
	StartDate      *time.Time
	EndDate        *time.Time
	Page           int
	PageSize       int
	IncludeSummary bool
}

// QueryResult is one page of matching transactions with the total match
// count and, when requested, a summary over the same date range.
type QueryResult struct {
	Items      []TransactionView `json:"items"`
	TotalCount int               `json:"totalCount"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Summary    *Summary          `json:"summary,omitempty"`
}

// Service answers read-only questions about the transaction store.
type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// GetByID fetches a single transaction. Returns storage.ErrNotFound when the
// id is unknown.
func (s *Service) GetByID(ctx context.Context, id string) (TransactionView, error) {
	tx, err := s.store.GetByID(ctx, id)
	if err != nil {
		return TransactionView{}, err
	}
	return NewTransactionView(tx), nil
}

// Query returns a page of transactions matching the filters, newest first.
func (s *Service) Query(ctx context.Context, params QueryParams) (QueryResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = storage.DefaultPageSize
	}
	if params.PageSize > storage.MaxPageSize {
		params.PageSize = storage.MaxPageSize
	}

	items, total, err := s.store.Query(ctx, storage.Filter{
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Name:      params.Name,
		Page:      params.Page,
		PageSize:  params.PageSize,
	})
	if err != nil {
		return QueryResult{}, err
	}

	views := make([]TransactionView, 0, len(items))
	for _, tx := range items {
		views = append(views, NewTransactionView(tx))
	}

	result := QueryResult{
		Items:      views,
		TotalCount: total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	}

	if params.IncludeSummary {
		summary, err := s.Summarize(ctx, params.StartDate, params.EndDate)
		if err != nil {
			return QueryResult{}, err
		}
		result.Summary = &summary
	}
	return result, nil
}

// Summarize aggregates counts, success rate, and per-currency totals. When
// both dates are given only transactions created inside the range count;
// otherwise the whole store is summarized.
func (s *Service) Summarize(ctx context.Context, startDate, endDate *time.Time) (Summary, error) {
	var (
		items []*transaction.Transaction
		err   error
	)
	if startDate != nil && endDate != nil {
		items, err = s.store.ListByDateRange(ctx, *startDate, *endDate)
	} else {
		items, err = s.store.ListAll(ctx)
	}
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalAmountByCurrency:      make(map[string]decimal.Decimal, len(transaction.SupportedCurrencies)),
		TransactionCountByCurrency: make(map[string]int, len(transaction.SupportedCurrencies)),
	}
	for _, currency := range transaction.SupportedCurrencies {
		summary.TotalAmountByCurrency[currency] = decimal.Zero
		summary.TransactionCountByCurrency[currency] = 0
	}

	for _, tx := range items {
		summary.TotalTransactions++
		switch tx.Status() {
		case transaction.StatusSuccessful:
			summary.SuccessfulTransactions++
		case transaction.StatusFailed:
			summary.FailedTransactions++
		case transaction.StatusPending:
			summary.PendingTransactions++
		}

		currency := tx.Currency()
		if _, ok := summary.TransactionCountByCurrency[currency]; !ok {
			continue
		}
		summary.TransactionCountByCurrency[currency]++
		if tx.Status() == transaction.StatusSuccessful {
			summary.TotalAmountByCurrency[currency] = summary.TotalAmountByCurrency[currency].Add(tx.Amount())
		}
	}

	if summary.TotalTransactions > 0 {
		summary.SuccessRate = float64(summary.SuccessfulTransactions) / float64(summary.TotalTransactions) * 100
	}
	return summary, nil
}
