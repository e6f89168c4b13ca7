package globalpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tingoai/payment-gateway/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GlobalPayConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: config.Duration{Duration: 5 * time.Second},
	}, nil, nil)
}

func TestGenerateCheckout_Success(t *testing.T) {
	var gotAuth string
	var gotBody CheckoutRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate-payment-link" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"checkoutUrl":"https://pay.example/c/1","ref":"GP-1","isSuccessful":true}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result := client.GenerateCheckout(context.Background(), CheckoutRequest{
		Amount:                       decimal.NewFromInt(5000),
		MerchantTransactionReference: "TINGO-abc123",
		Customer: CheckoutCustomer{
			FirstName:    "Ada",
			LastName:     "Okafor",
			Currency:     "NGN",
			EmailAddress: "ada@example.com",
		},
	})

	if !result.Succeeded() {
		t.Fatalf("Expected successful checkout, got %+v", result)
	}
	if result.CheckoutURL != "https://pay.example/c/1" {
		t.Errorf("CheckoutURL = %q", result.CheckoutURL)
	}
	if result.Ref != "GP-1" {
		t.Errorf("Ref = %q", result.Ref)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.MerchantTransactionReference != "TINGO-abc123" {
		t.Errorf("MerchantTransactionReference = %q", gotBody.MerchantTransactionReference)
	}
	if !gotBody.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Amount = %s", gotBody.Amount)
	}
}

func TestGenerateCheckout_ProcessorRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid currency"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result := client.GenerateCheckout(context.Background(), CheckoutRequest{
		Amount: decimal.NewFromInt(100),
	})

	if result.Succeeded() {
		t.Fatal("Expected failed checkout")
	}
	if !strings.Contains(result.Error, "Status: 400") {
		t.Errorf("Error should carry the status code, got %q", result.Error)
	}
	if !strings.Contains(result.Error, "invalid currency") {
		t.Errorf("Error should carry the response body, got %q", result.Error)
	}
}

func TestGenerateCheckout_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL)
	result := client.GenerateCheckout(context.Background(), CheckoutRequest{})

	if result.Succeeded() {
		t.Fatal("Expected failed checkout")
	}
	if result.Error == "" {
		t.Error("Expected a diagnostic in Error")
	}
}

func TestQueryByMerchantReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/query-single-transaction-by-merchant-reference/TINGO-abc"
		if r.URL.Path != want {
			t.Errorf("Path = %q, want %q", r.URL.Path, want)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"txnref":"GP-9","merchantTxnref":"TINGO-abc","amount":2500.50,"paymentStatus":"successful","isSuccessful":true}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.QueryByMerchantReference(context.Background(), "TINGO-abc")
	if err != nil {
		t.Fatalf("QueryByMerchantReference() error = %v", err)
	}
	if status == nil {
		t.Fatal("Expected transaction data")
	}
	if status.Txnref != "GP-9" {
		t.Errorf("Txnref = %q", status.Txnref)
	}
	if status.PaymentStatus != "successful" {
		t.Errorf("PaymentStatus = %q", status.PaymentStatus)
	}
	if !status.Amount.Equal(decimal.NewFromFloat(2500.50)) {
		t.Errorf("Amount = %s", status.Amount)
	}
}

func TestQuery_NonOKStatusReturnsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.QueryByReference(context.Background(), "missing")
	if err != nil {
		t.Fatalf("QueryByReference() error = %v", err)
	}
	if status != nil {
		t.Errorf("Expected nil status, got %+v", status)
	}
}

func TestQuery_MalformedBodyReturnsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.QueryByReference(context.Background(), "GP-1")
	if err != nil {
		t.Fatalf("QueryByReference() error = %v", err)
	}
	if status != nil {
		t.Errorf("Expected nil status, got %+v", status)
	}
}
