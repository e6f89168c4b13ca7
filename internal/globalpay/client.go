package globalpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tingoai/payment-gateway/internal/circuitbreaker"
	"github.com/tingoai/payment-gateway/internal/config"
	"github.com/tingoai/payment-gateway/internal/httputil"
	"github.com/tingoai/payment-gateway/internal/logger"
	"github.com/tingoai/payment-gateway/internal/metrics"
)

// maxResponseBody caps how much of a processor response we read. GlobalPay
// bodies are small JSON documents; anything bigger is a misbehaving endpoint.
const maxResponseBody = 1 << 20

// Client calls the GlobalPay API. All calls go through the circuit breaker so
// a dead processor trips fast instead of tying up request goroutines.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breakers   *circuitbreaker.Manager
	metrics    *metrics.Metrics
}

// NewClient creates a GlobalPay client from configuration. The breaker manager
// and metrics collector may be nil, in which case calls pass through unguarded
// and unobserved.
func NewClient(cfg config.GlobalPayConfig, breakers *circuitbreaker.Manager, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httputil.NewClient(timeout),
		breakers:   breakers,
		metrics:    m,
	}
}

// GenerateCheckout asks GlobalPay for a hosted checkout link. Failures never
// surface as errors: network faults, non-2xx statuses, and unparseable bodies
// all come back as a CheckoutResult with IsSuccessful false and a diagnostic
// in Error, so the caller has one path for surfacing the outcome.
func (c *Client) GenerateCheckout(ctx context.Context, req CheckoutRequest) CheckoutResult {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(req)
	if err != nil {
		return CheckoutResult{Error: fmt.Sprintf("encode checkout request: %v", err)}
	}

	start := time.Now()
	status, body, err := c.do(ctx, http.MethodPost, "generate-payment-link", payload)
	if c.metrics != nil {
		c.metrics.ObserveProcessorCall("generate_checkout", err, time.Since(start))
	}
	if err != nil {
		log.Error().Err(err).Msg("globalpay.generate_checkout_failed")
		return CheckoutResult{Error: err.Error()}
	}

	if status < 200 || status >= 300 {
		log.Warn().
			Int("status", status).
			Str("body", string(body)).
			Msg("globalpay.generate_checkout_rejected")
		return CheckoutResult{
			Error: fmt.Sprintf("Status: %d %s; Body: %s", status, http.StatusText(status), string(body)),
		}
	}

	result := normalizeCheckoutBody(body)
	log.Info().
		Bool("is_successful", result.IsSuccessful).
		Str("ref", result.Ref).
		Msg("globalpay.generate_checkout_completed")
	return result
}

// QueryByReference fetches a transaction by the processor's own reference.
// A nil result with nil error means the processor had nothing to say; callers
// treat that as "leave the stored status alone".
func (c *Client) QueryByReference(ctx context.Context, reference string) (*TransactionStatus, error) {
	return c.query(ctx, "query-single-transaction/"+url.PathEscape(reference))
}

// QueryByMerchantReference fetches a transaction by the merchant reference
// this gateway generated at initiation.
func (c *Client) QueryByMerchantReference(ctx context.Context, merchantReference string) (*TransactionStatus, error) {
	return c.query(ctx, "query-single-transaction-by-merchant-reference/"+url.PathEscape(merchantReference))
}

func (c *Client) query(ctx context.Context, path string) (*TransactionStatus, error) {
	log := logger.FromContext(ctx)

	start := time.Now()
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if c.metrics != nil {
		c.metrics.ObserveProcessorCall("query_transaction", err, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("query globalpay transaction: %w", err)
	}

	if status < 200 || status >= 300 {
		log.Warn().
			Int("status", status).
			Str("body", string(body)).
			Msg("globalpay.query_rejected")
		return nil, nil
	}

	var envelope struct {
		Data *TransactionStatus `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Warn().Err(err).Msg("globalpay.query_parse_failed")
		return nil, nil
	}
	return envelope.Data, nil
}

// do executes one HTTP round trip through the circuit breaker and returns the
// status code and body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	call := func() (interface{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return httpResult{status: resp.StatusCode, body: body}, nil
	}

	var (
		out interface{}
		err error
	)
	if c.breakers != nil {
		out, err = c.breakers.Execute(circuitbreaker.ServiceGlobalPay, call)
	} else {
		out, err = call()
	}
	if err != nil {
		return 0, nil, err
	}
	result := out.(httpResult)
	return result.status, result.body, nil
}

type httpResult struct {
	status int
	body   []byte
}
