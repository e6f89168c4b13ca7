package globalpay

import (
	"testing"
)

func TestNormalizeCheckoutBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want CheckoutResult
	}{
		{
			name: "fields nested under data",
			body: `{"data":{"checkoutUrl":"https://pay.example/c/abc","accessCode":"AC1","ref":"GP-1","responseCode":"00","successMessage":"Approved","isSuccessful":true}}`,
			want: CheckoutResult{
				CheckoutURL:    "https://pay.example/c/abc",
				AccessCode:     "AC1",
				Ref:            "GP-1",
				ResponseCode:   "00",
				SuccessMessage: "Approved",
				IsSuccessful:   true,
			},
		},
		{
			name: "fields at root only",
			body: `{"checkoutUrl":"https://pay.example/c/xyz","ref":"GP-2","isSuccessful":true}`,
			want: CheckoutResult{
				CheckoutURL:  "https://pay.example/c/xyz",
				Ref:          "GP-2",
				IsSuccessful: true,
			},
		},
		{
			name: "root fills gaps left by data",
			body: `{"checkoutUrl":"https://pay.example/c/root","responseCode":"00","data":{"ref":"GP-3","isSuccessful":true}}`,
			want: CheckoutResult{
				CheckoutURL:  "https://pay.example/c/root",
				Ref:          "GP-3",
				ResponseCode: "00",
				IsSuccessful: true,
			},
		},
		{
			name: "transactionReference preferred over ref",
			body: `{"data":{"transactionReference":"GP-TR","ref":"GP-REF","checkoutUrl":"https://pay.example/c/1","isSuccessful":true}}`,
			want: CheckoutResult{
				CheckoutURL:  "https://pay.example/c/1",
				Ref:          "GP-TR",
				IsSuccessful: true,
			},
		},
		{
			name: "isSuccessful true at root wins over false in data",
			body: `{"isSuccessful":true,"data":{"checkoutUrl":"https://pay.example/c/2","isSuccessful":false}}`,
			want: CheckoutResult{
				CheckoutURL:  "https://pay.example/c/2",
				IsSuccessful: true,
			},
		},
		{
			name: "failure with error message",
			body: `{"data":{"isSuccessful":false,"error":"insufficient merchant balance"}}`,
			want: CheckoutResult{
				Error: "insufficient merchant balance",
			},
		},
		{
			name: "non-object data falls back to root",
			body: `{"data":null,"checkoutUrl":"https://pay.example/c/3","isSuccessful":true}`,
			want: CheckoutResult{
				CheckoutURL:  "https://pay.example/c/3",
				IsSuccessful: true,
			},
		},
		{
			name: "unparseable body",
			body: `<html>gateway timeout</html>`,
			want: CheckoutResult{
				Error: "Unable to parse GlobalPay response body.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeCheckoutBody([]byte(tt.body))
			if got != tt.want {
				t.Errorf("normalizeCheckoutBody() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckoutResultSucceeded(t *testing.T) {
	tests := []struct {
		name   string
		result CheckoutResult
		want   bool
	}{
		{"successful with url", CheckoutResult{IsSuccessful: true, CheckoutURL: "https://pay.example/c/1"}, true},
		{"successful without url", CheckoutResult{IsSuccessful: true}, false},
		{"url without success flag", CheckoutResult{CheckoutURL: "https://pay.example/c/1"}, false},
		{"empty", CheckoutResult{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}
