// Package events publishes transaction status changes to a Kafka topic so
// downstream consumers (notifications, analytics) can react without polling
// the gateway.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatusChanged is emitted whenever reconciliation moves a transaction out of
// its current status.
type StatusChanged struct {
	TransactionID      string          `json:"transactionId"`
	MerchantReference  string          `json:"merchantReference"`
	ProcessorReference string          `json:"processorReference,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	PreviousStatus     string          `json:"previousStatus"`
	NewStatus          string          `json:"newStatus"`
	Source             string          `json:"source"`
	OccurredAt         time.Time       `json:"occurredAt"`
}

// Publisher delivers status change events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
	Close() error
}

// NoopPublisher discards events. Used when event publishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }

func (NoopPublisher) Close() error { return nil }
