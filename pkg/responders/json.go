// Package responders holds the JSON response writer shared by the gateway's
// HTTP handlers.
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload as an application/json response with the given status.
// A nil payload writes the headers only. Checkout URLs pass through here, so
// HTML escaping stays off to keep query separators intact.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
