package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/tingoai/payment-gateway/internal/errors"
	"github.com/tingoai/payment-gateway/internal/logger"
	"github.com/tingoai/payment-gateway/internal/reporting"
	"github.com/tingoai/payment-gateway/internal/storage"
	"github.com/tingoai/payment-gateway/pkg/responders"
)

// queryTransactions answers GET /api/transaction. When transactionId is
// given every other filter is ignored and a single transaction (or 404)
// comes back; otherwise the result is a filtered, paginated page.
func (h handlers) queryTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if id := query.Get("transactionId"); id != "" {
		view, err := h.reporting.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				apierrors.WriteSimpleError(w, apierrors.ErrCodeTransactionNotFound, "Transaction not found")
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("http.transaction_lookup_failed")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "Unable to fetch transaction")
			return
		}
		responders.JSON(w, http.StatusOK, view)
		return
	}

	params := reporting.QueryParams{
		Name:           query.Get("name"),
		Page:           parseIntParam(query.Get("page"), 1),
		PageSize:       parseIntParam(query.Get("pageSize"), storage.DefaultPageSize),
		IncludeSummary: query.Get("includeSummary") == "true",
	}

	var ok bool
	if params.StartDate, ok = parseDateParam(w, query.Get("startDate"), "startDate"); !ok {
		return
	}
	if params.EndDate, ok = parseDateParam(w, query.Get("endDate"), "endDate"); !ok {
		return
	}

	result, err := h.reporting.Query(r.Context(), params)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("http.transaction_query_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "Unable to query transactions")
		return
	}
	responders.JSON(w, http.StatusOK, result)
}

// transactionSummary answers GET /api/transaction/summary with aggregate
// counts and per-currency totals, optionally bounded by a date range.
func (h handlers) transactionSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	startDate, ok := parseDateParam(w, query.Get("startDate"), "startDate")
	if !ok {
		return
	}
	endDate, ok := parseDateParam(w, query.Get("endDate"), "endDate")
	if !ok {
		return
	}

	summary, err := h.reporting.Summarize(r.Context(), startDate, endDate)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("http.transaction_summary_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "Unable to build transaction summary")
		return
	}
	responders.JSON(w, http.StatusOK, summary)
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseDateParam accepts RFC 3339 timestamps or bare dates. On a malformed
// value it writes a 400 and reports !ok.
func parseDateParam(w http.ResponseWriter, raw, field string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, true
		}
	}
	apierrors.WriteError(w, apierrors.ErrCodeValidation, "Invalid date value", map[string]interface{}{
		"field": field,
		"value": raw,
	})
	return nil, false
}
