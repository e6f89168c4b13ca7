package globalpay

import (
	"encoding/json"
)

// checkoutPayload mirrors the strict response shape. Used for the first-pass
// decode before the tolerant merge fills in whatever it missed.
type checkoutPayload struct {
	CheckoutURL    string `json:"checkoutUrl"`
	Ref            string `json:"ref"`
	AccessCode     string `json:"accessCode"`
	ResponseCode   string `json:"responseCode"`
	SuccessMessage string `json:"successMessage"`
	IsSuccessful   bool   `json:"isSuccessful"`
	Error          string `json:"error"`
}

type checkoutEnvelope struct {
	Data *checkoutPayload `json:"data"`
}

type rawObject map[string]json.RawMessage

// normalizeCheckoutBody turns a raw GlobalPay response body into a
// CheckoutResult. Resolution order per field: the strict decode of the "data"
// object wins, then the tolerant scan of "data", then the root object.
// isSuccessful is OR-ed across all three so a true anywhere counts.
func normalizeCheckoutBody(body []byte) CheckoutResult {
	var strict checkoutEnvelope
	_ = json.Unmarshal(body, &strict) // best effort, merged below

	var root rawObject
	if err := json.Unmarshal(body, &root); err != nil {
		if strict.Data != nil {
			return resultFromPayload(*strict.Data)
		}
		return CheckoutResult{Error: "Unable to parse GlobalPay response body."}
	}

	var data rawObject
	if raw, ok := root["data"]; ok {
		_ = json.Unmarshal(raw, &data) // non-object data stays nil
	}
	scopes := []rawObject{data, root}

	result := CheckoutResult{
		CheckoutURL:    resolveString(scopes, "checkoutUrl"),
		AccessCode:     resolveString(scopes, "accessCode"),
		Ref:            resolveString(scopes, "transactionReference", "ref"),
		ResponseCode:   resolveString(scopes, "responseCode"),
		SuccessMessage: resolveString(scopes, "successMessage"),
		IsSuccessful:   resolveBool(scopes, "isSuccessful"),
		Error:          resolveString(scopes, "error"),
	}

	if strict.Data != nil {
		merged := resultFromPayload(*strict.Data)
		if merged.CheckoutURL == "" {
			merged.CheckoutURL = result.CheckoutURL
		}
		if merged.AccessCode == "" {
			merged.AccessCode = result.AccessCode
		}
		if merged.Ref == "" {
			merged.Ref = result.Ref
		}
		if merged.ResponseCode == "" {
			merged.ResponseCode = result.ResponseCode
		}
		if merged.SuccessMessage == "" {
			merged.SuccessMessage = result.SuccessMessage
		}
		if merged.Error == "" {
			merged.Error = result.Error
		}
		merged.IsSuccessful = merged.IsSuccessful || result.IsSuccessful
		return merged
	}

	return result
}

func resultFromPayload(p checkoutPayload) CheckoutResult {
	return CheckoutResult{
		CheckoutURL:    p.CheckoutURL,
		Ref:            p.Ref,
		AccessCode:     p.AccessCode,
		ResponseCode:   p.ResponseCode,
		SuccessMessage: p.SuccessMessage,
		IsSuccessful:   p.IsSuccessful,
		Error:          p.Error,
	}
}

// resolveString returns the first non-empty string found by scanning each
// scope in order and each key in order within a scope.
func resolveString(scopes []rawObject, keys ...string) string {
	for _, scope := range scopes {
		if scope == nil {
			continue
		}
		for _, key := range keys {
			raw, ok := scope[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
	}
	return ""
}

// resolveBool ORs the named boolean across every scope it appears in.
func resolveBool(scopes []rawObject, key string) bool {
	for _, scope := range scopes {
		if scope == nil {
			continue
		}
		raw, ok := scope[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil && b {
			return true
		}
	}
	return false
}
