package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apierrors "github.com/tingoai/payment-gateway/internal/errors"
	"github.com/tingoai/payment-gateway/internal/logger"
	"github.com/tingoai/payment-gateway/internal/payments"
	"github.com/tingoai/payment-gateway/internal/reporting"
	"github.com/tingoai/payment-gateway/internal/transaction"
	"github.com/tingoai/payment-gateway/internal/webhook"
	"github.com/tingoai/payment-gateway/pkg/responders"
)

// initiatePaymentRequest is the POST /api/payment/initiate body. The merchant
// reference is never accepted from the caller; it is generated server-side.
type initiatePaymentRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CustomerFirstName string          `json:"customerFirstName"`
	CustomerLastName  string          `json:"customerLastName"`
	CustomerEmail     string          `json:"customerEmail"`
	CustomerPhone     string          `json:"customerPhone"`
	CustomerAddress   string          `json:"customerAddress"`
}

func (h handlers) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMalformedPayload, "Request body is not valid JSON")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Str("customer_email", logger.RedactEmail(req.CustomerEmail)).
		Msg("http.initiate_payment")

	result, err := h.payments.InitiatePayment(r.Context(), payments.InitiateRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Customer: transaction.Customer{
			FirstName: req.CustomerFirstName,
			LastName:  req.CustomerLastName,
			Email:     req.CustomerEmail,
			Phone:     req.CustomerPhone,
			Address:   req.CustomerAddress,
		},
	})
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeValidation, err.Error())
		return
	}

	if !result.Success {
		// The request was well-formed but the processor declined it.
		responders.JSON(w, http.StatusBadRequest, result)
		return
	}
	responders.JSON(w, http.StatusOK, result)
}

func (h handlers) verifyTransaction(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "Transaction reference is required")
		return
	}

	// Verification failures all resolve to not-found; the service logs the
	// underlying cause.
	tx, err := h.payments.VerifyTransaction(r.Context(), reference)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeTransactionNotFound, "Transaction not found")
		return
	}

	responders.JSON(w, http.StatusOK, reporting.NewTransactionView(tx))
}

// webhookPayload is the POST /api/payment/webhook envelope.
type webhookPayload struct {
	EncryptedData string `json:"encryptedData"`
}

func (h handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.EncryptedData == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMalformedPayload, "Webhook envelope must carry encryptedData")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Msg("http.webhook_received")

	_, err := h.payments.ProcessWebhook(r.Context(), payload.EncryptedData)
	if err != nil {
		var decErr *webhook.DecryptionError
		switch {
		case errors.As(err, &decErr):
			log.Warn().Err(err).Msg("http.webhook_decryption_failed")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeDecryptionFailed, "Unable to decrypt webhook payload")
		case errors.Is(err, payments.ErrNotFound):
			apierrors.WriteSimpleError(w, apierrors.ErrCodeTransactionNotFound, "Transaction not found")
		default:
			log.Warn().Err(err).Msg("http.webhook_rejected")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeMalformedPayload, "Unable to process webhook notification")
		}
		return
	}

	responders.JSON(w, http.StatusOK, map[string]string{"message": "Webhook processed successfully"})
}
