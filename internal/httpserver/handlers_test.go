package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tingoai/payment-gateway/internal/config"
	"github.com/tingoai/payment-gateway/internal/globalpay"
	"github.com/tingoai/payment-gateway/internal/payments"
	"github.com/tingoai/payment-gateway/internal/reporting"
	"github.com/tingoai/payment-gateway/internal/storage"
	"github.com/tingoai/payment-gateway/internal/webhook"
)

var testWebhookKey = "0123456789abcdef0123456789abcdef"

type fakeProcessor struct {
	checkoutResult globalpay.CheckoutResult
	queryResult    *globalpay.TransactionStatus
}

func (f *fakeProcessor) GenerateCheckout(context.Context, globalpay.CheckoutRequest) globalpay.CheckoutResult {
	return f.checkoutResult
}

func (f *fakeProcessor) QueryByMerchantReference(context.Context, string) (*globalpay.TransactionStatus, error) {
	return f.queryResult, nil
}

func testConfig(authEnabled bool) *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			Enabled:  authEnabled,
			Username: "merchant",
			Password: "s3cret",
		},
		Storage: config.StorageConfig{Backend: "memory"},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, processor *fakeProcessor) (chi.Router, storage.Store) {
	t.Helper()

	store := storage.NewMemoryStore()
	decryptor, err := webhook.NewDecryptor([]byte(testWebhookKey))
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	router := chi.NewRouter()
	ConfigureRouter(router, handlers{
		cfg:       cfg,
		payments:  payments.NewService(store, processor, decryptor, nil, nil, "TINGO"),
		reporting: reporting.NewService(store),
		logger:    zerolog.Nop(),
	})
	return router, store
}

func initiateBody() string {
	return `{
		"amount": 5000,
		"currency": "NGN",
		"customerFirstName": "Ada",
		"customerLastName": "Okafor",
		"customerEmail": "ada@example.com",
		"customerPhone": "+2348012345678"
	}`
}

func okCheckout() globalpay.CheckoutResult {
	return globalpay.CheckoutResult{
		CheckoutURL:  "https://pay.example/c/1",
		AccessCode:   "AC1",
		Ref:          "GP-1",
		IsSuccessful: true,
	}
}

func TestInitiateEndpoint_Success(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{checkoutResult: okCheckout()})

	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}

	var result payments.InitiateResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false: %+v", result)
	}
	if result.CheckoutURL != "https://pay.example/c/1" {
		t.Errorf("CheckoutURL = %q", result.CheckoutURL)
	}
	if !strings.HasPrefix(result.TransactionReference, "TINGO-") {
		t.Errorf("TransactionReference = %q", result.TransactionReference)
	}
}

func TestInitiateEndpoint_ValidationError(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{checkoutResult: okCheckout()})

	body := `{"amount": -1, "currency": "NGN", "customerFirstName": "Ada", "customerLastName": "Okafor", "customerEmail": "a@b.c", "customerPhone": "1"}`
	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "validation_error") {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestInitiateEndpoint_ProcessorRejection(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{
		checkoutResult: globalpay.CheckoutResult{Error: "declined"},
	})

	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d", w.Code)
	}

	var result payments.InitiateResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Success || result.Message != "declined" {
		t.Errorf("Result = %+v", result)
	}
}

func TestInitiateEndpoint_MalformedJSON(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{checkoutResult: okCheckout()})

	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d", w.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	processor := &fakeProcessor{checkoutResult: okCheckout()}
	router, _ := newTestRouter(t, testConfig(false), processor)

	// Create a transaction through the API, then verify it.
	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var created payments.InitiateResult
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode initiate response: %v", err)
	}

	processor.queryResult = &globalpay.TransactionStatus{
		PaymentStatus: "successful",
		IsSuccessful:  true,
	}

	req = httptest.NewRequest("GET", "/api/payment/verify/"+created.TransactionReference, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}

	var view reporting.TransactionView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if view.PaymentStatus != "Successful" {
		t.Errorf("PaymentStatus = %q", view.PaymentStatus)
	}
	if view.MerchantReference != created.TransactionReference {
		t.Errorf("MerchantReference = %q", view.MerchantReference)
	}
}

func TestVerifyEndpoint_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{})

	req := httptest.NewRequest("GET", "/api/payment/verify/unknown-ref", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "transaction_not_found") {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestWebhookEndpoint_MalformedEnvelope(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{})

	req := httptest.NewRequest("POST", "/api/payment/webhook", strings.NewReader(`{"somethingElse": true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d", w.Code)
	}
}

func TestWebhookEndpoint_DecryptionFailure(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{})

	req := httptest.NewRequest("POST", "/api/payment/webhook", strings.NewReader(`{"encryptedData": "!!!"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "decryption_failed") {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestQueryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{checkoutResult: okCheckout()})

	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	req = httptest.NewRequest("GET", "/api/transaction?includeSummary=true", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}

	var result reporting.QueryResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode query response: %v", err)
	}
	if result.TotalCount != 1 || len(result.Items) != 1 {
		t.Errorf("TotalCount = %d, len(Items) = %d", result.TotalCount, len(result.Items))
	}
	if result.PageSize != storage.DefaultPageSize {
		t.Errorf("PageSize = %d", result.PageSize)
	}
	if result.Summary == nil || result.Summary.TotalTransactions != 1 {
		t.Errorf("Summary = %+v", result.Summary)
	}
	if !result.Items[0].Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Amount = %s", result.Items[0].Amount)
	}
}

func TestQueryEndpoint_ByTransactionID(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{checkoutResult: okCheckout()})

	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var created payments.InitiateResult
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode initiate response: %v", err)
	}

	req = httptest.NewRequest("GET", "/api/transaction?transactionId="+created.TransactionID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	var view reporting.TransactionView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.ID != created.TransactionID {
		t.Errorf("ID = %q", view.ID)
	}

	req = httptest.NewRequest("GET", "/api/transaction?transactionId=missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Status for unknown id = %d", w.Code)
	}
}

func TestQueryEndpoint_BadDate(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{})

	req := httptest.NewRequest("GET", "/api/transaction?startDate=yesterday", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d", w.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{checkoutResult: okCheckout()})

	req := httptest.NewRequest("GET", "/api/transaction/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	var summary reporting.Summary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalTransactions != 0 || summary.SuccessRate != 0 {
		t.Errorf("Summary = %+v", summary)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(false), &fakeProcessor{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(true), &fakeProcessor{checkoutResult: okCheckout()})

	req := httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status without credentials = %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	req.SetBasicAuth("merchant", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status with bad credentials = %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/payment/initiate", strings.NewReader(initiateBody()))
	req.SetBasicAuth("merchant", "s3cret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Status with good credentials = %d, body %s", w.Code, w.Body.String())
	}

	// The transaction query surface stays open; webhooks authenticate by key.
	req = httptest.NewRequest("GET", "/api/transaction", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Query status without credentials = %d", w.Code)
	}
}
