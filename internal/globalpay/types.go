// Package globalpay implements the HTTP client for the GlobalPay payment
// processor: checkout link generation and transaction status queries.
//
// GlobalPay responses are not stable across environments. The same endpoint
// sometimes nests fields under a "data" object and sometimes puts them at the
// root, and the transaction reference appears as either "transactionReference"
// or "ref". The normalization layer in normalize.go absorbs all of that so the
// rest of the gateway sees one shape.
package globalpay

import (
	"github.com/shopspring/decimal"
)

// CheckoutRequest is the payload sent to generate a checkout link.
type CheckoutRequest struct {
	Amount                       decimal.Decimal  `json:"amount"`
	MerchantTransactionReference string           `json:"merchantTransactionReference"`
	Customer                     CheckoutCustomer `json:"customer"`
}

// CheckoutCustomer carries the customer details GlobalPay requires.
type CheckoutCustomer struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Currency     string `json:"currency"`
	PhoneNumber  string `json:"phoneNumber"`
	Address      string `json:"address"`
	EmailAddress string `json:"emailAddress"`
}

// CheckoutResult is the normalized outcome of a checkout link request.
// Failures are encoded in the result rather than returned as errors: a
// processor rejection carries its diagnostic in Error with IsSuccessful false,
// so callers always get something they can log and surface.
type CheckoutResult struct {
	CheckoutURL    string
	Ref            string
	AccessCode     string
	ResponseCode   string
	SuccessMessage string
	IsSuccessful   bool
	Error          string
}

// Succeeded reports whether the processor produced a usable checkout link.
func (r CheckoutResult) Succeeded() bool {
	return r.IsSuccessful && r.CheckoutURL != ""
}

// TransactionStatus is the normalized result of a status query.
type TransactionStatus struct {
	Txnref             string          `json:"txnref"`
	MerchantTxnref     string          `json:"merchantTxnref"`
	Amount             decimal.Decimal `json:"amount"`
	PaymentDate        string          `json:"paymentDate"`
	PaymentStatus      string          `json:"paymentStatus"`
	TransactionChannel string          `json:"transactionChannel"`
	SuccessMessage     string          `json:"successMessage"`
	ResponseCode       string          `json:"responseCode"`
	IsSuccessful       bool            `json:"isSuccessful"`
}
