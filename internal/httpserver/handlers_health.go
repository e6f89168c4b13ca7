package httpserver

import (
	"net/http"
	"time"

	"github.com/tingoai/payment-gateway/internal/circuitbreaker"
	"github.com/tingoai/payment-gateway/pkg/responders"
)

// health reports liveness plus the processor breaker state. An open breaker
// degrades the report without failing it; the gateway can still serve
// queries and webhooks while the processor is down.
func (h handlers) health(w http.ResponseWriter, r *http.Request) {
	processorState := "disabled"
	if h.breakers != nil {
		processorState = h.breakers.State(circuitbreaker.ServiceGlobalPay)
	}

	status := "ok"
	if processorState == "open" {
		status = "degraded"
	}

	responders.JSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"uptime":         time.Since(serverStartTime).String(),
		"processor":      processorState,
		"storageBackend": h.cfg.Storage.Backend,
	})
}
