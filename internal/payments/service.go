// Package payments implements the reconciliation core: payment initiation
// against the processor, status verification, and webhook-driven updates.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tingoai/payment-gateway/internal/events"
	"github.com/tingoai/payment-gateway/internal/globalpay"
	"github.com/tingoai/payment-gateway/internal/logger"
	"github.com/tingoai/payment-gateway/internal/metrics"
	"github.com/tingoai/payment-gateway/internal/storage"
	"github.com/tingoai/payment-gateway/internal/transaction"
	"github.com/tingoai/payment-gateway/internal/webhook"
)

// ProcessorClient is the slice of the GlobalPay client the reconciliation
// core needs. Narrowed to an interface so tests can substitute a fake.
type ProcessorClient interface {
	GenerateCheckout(ctx context.Context, req globalpay.CheckoutRequest) globalpay.CheckoutResult
	QueryByMerchantReference(ctx context.Context, merchantReference string) (*globalpay.TransactionStatus, error)
}

// ErrNotFound is returned by VerifyTransaction when no stored transaction
// matches the reference under any resolution strategy.
var ErrNotFound = errors.New("transaction not found")

// Service coordinates the processor client, the transaction store, the
// webhook decryptor, and the event publisher.
type Service struct {
	store     storage.Store
	processor ProcessorClient
	decryptor *webhook.Decryptor
	publisher events.Publisher
	metrics   *metrics.Metrics
	refPrefix string
}

// NewService creates the payments service. The publisher may be nil when
// event publishing is disabled; metrics may be nil in tests.
func NewService(store storage.Store, processor ProcessorClient, decryptor *webhook.Decryptor, publisher events.Publisher, m *metrics.Metrics, refPrefix string) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if refPrefix == "" {
		refPrefix = "TINGO"
	}
	return &Service{
		store:     store,
		processor: processor,
		decryptor: decryptor,
		publisher: publisher,
		metrics:   m,
		refPrefix: refPrefix,
	}
}

// InitiateRequest carries the caller's payment details. The merchant
// reference is always generated server-side, never accepted from the caller.
type InitiateRequest struct {
	Amount   decimal.Decimal
	Currency string
	Customer transaction.Customer
}

// InitiateResult is the outcome of a payment initiation. A processor-side
// rejection produces Success false with the diagnostic in Message; it is not
// an error because the request itself was well-formed.
type InitiateResult struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	CheckoutURL          string `json:"checkoutUrl,omitempty"`
	AccessCode           string `json:"accessCode,omitempty"`
	TransactionReference string `json:"transactionReference,omitempty"`
	TransactionID        string `json:"transactionId,omitempty"`
}

// newMerchantReference builds a reference like "TINGO-<32 hex chars>".
func (s *Service) newMerchantReference() string {
	return s.refPrefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// InitiatePayment validates the request, asks the processor for a checkout
// link, and persists the pending transaction. A checkout that the processor
// accepted is reported as successful even if persistence fails; losing the
// local record is recoverable through reconciliation, losing the checkout
// link is not.
func (s *Service) InitiatePayment(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	merchantRef := s.newMerchantReference()
	tx, err := transaction.New(merchantRef, req.Amount, req.Currency, req.Customer)
	if err != nil {
		return InitiateResult{}, err
	}

	checkout := s.processor.GenerateCheckout(ctx, globalpay.CheckoutRequest{
		Amount:                       tx.Amount(),
		MerchantTransactionReference: merchantRef,
		Customer: globalpay.CheckoutCustomer{
			FirstName:    req.Customer.FirstName,
			LastName:     req.Customer.LastName,
			Currency:     tx.Currency(),
			PhoneNumber:  req.Customer.Phone,
			Address:      req.Customer.Address,
			EmailAddress: req.Customer.Email,
		},
	})

	if s.metrics != nil {
		s.metrics.ObserveInitiation(tx.Currency(), checkout.Succeeded(), time.Since(start))
	}

	if !checkout.Succeeded() {
		message := checkout.Error
		if message == "" {
			message = "Failed to generate payment link"
		}
		log.Warn().
			Str("merchant_reference", merchantRef).
			Str("reason", message).
			Msg("payments.initiate_rejected")
		return InitiateResult{Success: false, Message: message}, nil
	}

	if err := tx.SetCheckoutDetails(checkout.CheckoutURL, checkout.AccessCode, checkout.Ref); err != nil {
		return InitiateResult{}, fmt.Errorf("record checkout details: %w", err)
	}

	s.persistNewTransaction(ctx, tx)

	log.Info().
		Str("transaction_id", tx.ID()).
		Str("merchant_reference", tx.MerchantReference()).
		Str("currency", tx.Currency()).
		Msg("payments.initiated")

	return InitiateResult{
		Success:              true,
		Message:              "Payment link generated successfully",
		CheckoutURL:          checkout.CheckoutURL,
		AccessCode:           checkout.AccessCode,
		TransactionReference: tx.MerchantReference(),
		TransactionID:        tx.ID(),
	}, nil
}

// persistNewTransaction inserts the transaction. Persistence failures are
// logged and counted but never propagated; the processor already holds the
// checkout and the caller must receive its URL. That includes a merchant
// reference collision: the processor bound this reference at checkout time,
// so swapping in a fresh one here would leave a record the processor cannot
// be queried for.
func (s *Service) persistNewTransaction(ctx context.Context, tx *transaction.Transaction) {
	log := logger.FromContext(ctx)

	if err := s.store.Insert(ctx, tx); err != nil {
		if s.metrics != nil {
			s.metrics.ObservePersistenceWarning()
		}
		log.Warn().
			Err(err).
			Str("transaction_id", tx.ID()).
			Str("merchant_reference", tx.MerchantReference()).
			Msg("payments.persist_after_checkout_failed")
	}
}

// VerifyTransaction resolves a reference against the store, queries the
// processor for the current status, and reconciles the stored transaction.
// Resolution order: internal id, merchant reference, processor reference.
// Every failure resolves to ErrNotFound: verification never surfaces hard
// errors, so a store fault looks like an unknown reference to the caller
// while the underlying cause goes to the log.
func (s *Service) VerifyTransaction(ctx context.Context, reference string) (*transaction.Transaction, error) {
	log := logger.FromContext(ctx)

	tx, err := s.resolve(ctx, reference)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().
				Err(err).
				Str("reference", reference).
				Msg("payments.verify_resolve_failed")
		}
		return nil, ErrNotFound
	}

	status, err := s.processor.QueryByMerchantReference(ctx, tx.MerchantReference())
	if err != nil {
		log.Warn().
			Err(err).
			Str("merchant_reference", tx.MerchantReference()).
			Msg("payments.verify_query_failed")
	}

	result := s.reconcile(ctx, tx, status, "verify")
	if s.metrics != nil {
		s.metrics.ObserveReconciliation("verify", result)
	}
	return tx, nil
}

func (s *Service) resolve(ctx context.Context, reference string) (*transaction.Transaction, error) {
	if _, err := uuid.Parse(reference); err == nil {
		if tx, err := s.store.GetByID(ctx, reference); err == nil {
			return tx, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	tx, err := s.store.GetByMerchantReference(ctx, reference)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	tx, err = s.store.GetByProcessorReference(ctx, reference)
	if err == nil {
		return tx, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return nil, err
}

// reconcile applies a processor status report to a stored transaction and
// returns "updated", "unchanged", or "skipped" (no processor response). The
// status update itself is idempotent; only real transitions publish events.
func (s *Service) reconcile(ctx context.Context, tx *transaction.Transaction, status *globalpay.TransactionStatus, source string) string {
	if status == nil {
		return "skipped"
	}
	log := logger.FromContext(ctx)

	previous := tx.Status()
	var paymentDate *time.Time
	if status.PaymentDate != "" {
		if parsed, err := parsePaymentDate(status.PaymentDate); err == nil {
			paymentDate = &parsed
		}
	}

	tx.UpdatePaymentStatus(
		transaction.ParseProcessorStatus(status.PaymentStatus),
		status.ResponseCode,
		status.SuccessMessage,
		paymentDate,
		status.TransactionChannel,
	)

	if err := s.store.Update(ctx, tx); err != nil {
		log.Warn().
			Err(err).
			Str("transaction_id", tx.ID()).
			Msg("payments.reconcile_update_failed")
		return "skipped"
	}

	if tx.Status() == previous {
		return "unchanged"
	}

	if s.metrics != nil {
		s.metrics.ObserveStatusTransition(string(previous), string(tx.Status()))
	}
	log.Info().
		Str("transaction_id", tx.ID()).
		Str("from", string(previous)).
		Str("to", string(tx.Status())).
		Str("source", source).
		Msg("payments.status_changed")

	event := events.StatusChanged{
		TransactionID:      tx.ID(),
		MerchantReference:  tx.MerchantReference(),
		ProcessorReference: tx.ProcessorReference(),
		Amount:             tx.Amount(),
		Currency:           tx.Currency(),
		PreviousStatus:     string(previous),
		NewStatus:          string(tx.Status()),
		Source:             source,
		OccurredAt:         time.Now().UTC(),
	}
	err := s.publisher.PublishStatusChanged(ctx, event)
	if s.metrics != nil {
		s.metrics.ObserveEventPublished(string(tx.Status()), err)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("transaction_id", tx.ID()).
			Msg("payments.event_publish_failed")
	}

	return "updated"
}

// webhookNotification is the decrypted webhook body: the same shape the
// status query endpoint returns.
type webhookNotification struct {
	Txnref             string `json:"txnref"`
	MerchantTxnref     string `json:"merchantTxnref"`
	PaymentDate        string `json:"paymentDate"`
	PaymentStatus      string `json:"paymentStatus"`
	TransactionChannel string `json:"transactionChannel"`
	SuccessMessage     string `json:"successMessage"`
	ResponseCode       string `json:"responseCode"`
	IsSuccessful       bool   `json:"isSuccessful"`
}

// ProcessWebhook decrypts an encrypted notification and reconciles the
// referenced transaction. Decryption failures return *webhook.DecryptionError,
// parse failures a plain error, and an unknown reference ErrNotFound, so
// handlers can answer 401, 400, and 404 respectively.
func (s *Service) ProcessWebhook(ctx context.Context, encryptedData string) (*transaction.Transaction, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveWebhook(outcome, time.Since(start))
		}
	}()

	plaintext, err := s.decryptor.Decrypt(encryptedData)
	if err != nil {
		return nil, err
	}

	var notification webhookNotification
	if err := json.Unmarshal(plaintext, &notification); err != nil {
		return nil, fmt.Errorf("parse webhook notification: %w", err)
	}

	reference := notification.MerchantTxnref
	if reference == "" {
		reference = notification.Txnref
	}
	if reference == "" {
		return nil, fmt.Errorf("webhook notification carries no transaction reference")
	}

	tx, err := s.resolve(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			outcome = "unknown_reference"
		}
		return nil, err
	}

	result := s.reconcile(ctx, tx, &globalpay.TransactionStatus{
		Txnref:             notification.Txnref,
		MerchantTxnref:     notification.MerchantTxnref,
		PaymentDate:        notification.PaymentDate,
		PaymentStatus:      notification.PaymentStatus,
		TransactionChannel: notification.TransactionChannel,
		SuccessMessage:     notification.SuccessMessage,
		ResponseCode:       notification.ResponseCode,
		IsSuccessful:       notification.IsSuccessful,
	}, "webhook")
	if s.metrics != nil {
		s.metrics.ObserveReconciliation("webhook", result)
	}
	outcome = result
	return tx, nil
}

// parsePaymentDate accepts the handful of timestamp layouts GlobalPay has
// been seen to emit.
func parsePaymentDate(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized payment date %q", raw)
}
