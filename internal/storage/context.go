package storage

import (
	"context"
	"time"
)

// DefaultQueryTimeout is the maximum time allowed for database queries when
// the caller has not set a deadline of its own.
const DefaultQueryTimeout = 5 * time.Second

// withQueryTimeout wraps the context with a query timeout if one isn't
// already set, so no store operation can hang indefinitely.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultQueryTimeout)
}
