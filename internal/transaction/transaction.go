package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a transaction.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusSuccessful Status = "Successful"
	StatusFailed     Status = "Failed"
	StatusCancelled  Status = "Cancelled"
)

// ParseProcessorStatus maps a processor-reported status string onto Status.
// Unrecognized or missing values are treated as still pending, never as an error.
func ParseProcessorStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "successful":
		return StatusSuccessful
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// SupportedCurrencies is the fixed set of currencies the gateway accepts.
var SupportedCurrencies = []string{"NGN", "USD", "EUR", "GBP"}

// NormalizeCurrency validates a currency code case-insensitively and returns
// the uppercase form.
func NormalizeCurrency(currency string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(currency))
	for _, c := range SupportedCurrencies {
		if normalized == c {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("transaction: currency must be one of %s", strings.Join(SupportedCurrencies, ", "))
}

// Customer holds the payer details captured at initiation.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string // optional
}

func (c Customer) validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return fmt.Errorf("transaction: customer first name is required")
	}
	if strings.TrimSpace(c.LastName) == "" {
		return fmt.Errorf("transaction: customer last name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("transaction: customer email is required")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("transaction: customer phone is required")
	}
	return nil
}

// Transaction is the sole persisted entity. Fields are private; state changes
// go through the mutators below so invariants hold on every write.
type Transaction struct {
	id                string
	merchantReference string
	processorRef      string
	amount            decimal.Decimal
	currency          string
	customer          Customer
	status            Status
	checkoutURL       string
	accessCode        string
	responseCode      string
	responseMessage   string
	paymentDate       *time.Time
	paymentChannel    string
	createdAt         time.Time
	updatedAt         time.Time
}

// New constructs a Pending transaction, validating the entity invariants.
func New(merchantReference string, amount decimal.Decimal, currency string, customer Customer) (*Transaction, error) {
	if strings.TrimSpace(merchantReference) == "" {
		return nil, fmt.Errorf("transaction: merchant reference is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("transaction: amount must be greater than zero")
	}
	normalized, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if err := customer.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Transaction{
		id:                uuid.NewString(),
		merchantReference: merchantReference,
		amount:            amount,
		currency:          normalized,
		customer:          customer,
		status:            StatusPending,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// SetCheckoutDetails records the checkout link issued by the processor. The
// three fields are an atomic triple assigned exactly once.
func (t *Transaction) SetCheckoutDetails(checkoutURL, accessCode, processorRef string) error {
	if checkoutURL == "" {
		return fmt.Errorf("transaction: checkout url is required")
	}
	if t.checkoutURL != "" {
		return fmt.Errorf("transaction: checkout details already set")
	}
	t.checkoutURL = checkoutURL
	t.accessCode = accessCode
	t.processorRef = processorRef
	t.updatedAt = time.Now().UTC()
	return nil
}

// UpdatePaymentStatus applies a status-reconciliation event. Reconciliation
// metadata is last-write-wins; repeated identical updates leave observable
// state unchanged. A transaction never re-enters Pending once settled.
func (t *Transaction) UpdatePaymentStatus(status Status, responseCode, responseMessage string, paymentDate *time.Time, paymentChannel string) {
	if t.status != StatusPending && status == StatusPending {
		// A settled transaction cannot go back to pending; keep the terminal state.
		status = t.status
	}
	t.status = status
	t.responseCode = responseCode
	t.responseMessage = responseMessage
	t.paymentDate = paymentDate
	t.paymentChannel = paymentChannel
	t.updatedAt = time.Now().UTC()
}

func (t *Transaction) ID() string                { return t.id }
func (t *Transaction) MerchantReference() string { return t.merchantReference }
func (t *Transaction) ProcessorReference() string {
	return t.processorRef
}
func (t *Transaction) Amount() decimal.Decimal { return t.amount }
func (t *Transaction) Currency() string        { return t.currency }
func (t *Transaction) Customer() Customer      { return t.customer }
func (t *Transaction) Status() Status          { return t.status }
func (t *Transaction) CheckoutURL() string     { return t.checkoutURL }
func (t *Transaction) AccessCode() string      { return t.accessCode }
func (t *Transaction) ResponseCode() string    { return t.responseCode }
func (t *Transaction) ResponseMessage() string { return t.responseMessage }
func (t *Transaction) PaymentDate() *time.Time { return t.paymentDate }
func (t *Transaction) PaymentChannel() string  { return t.paymentChannel }
func (t *Transaction) CreatedAt() time.Time    { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time    { return t.updatedAt }

// Snapshot is the serializable view of a transaction, used by storage
// backends and API responses.
type Snapshot struct {
	ID                 string          `json:"id" bson:"_id"`
	MerchantReference  string          `json:"merchantReference" bson:"merchant_reference"`
	ProcessorReference string          `json:"processorReference,omitempty" bson:"processor_reference,omitempty"`
	Amount             decimal.Decimal `json:"amount" bson:"amount"`
	Currency           string          `json:"currency" bson:"currency"`
	CustomerFirstName  string          `json:"customerFirstName" bson:"customer_first_name"`
	CustomerLastName   string          `json:"customerLastName" bson:"customer_last_name"`
	CustomerEmail      string          `json:"customerEmail" bson:"customer_email"`
	CustomerPhone      string          `json:"customerPhone" bson:"customer_phone"`
	CustomerAddress    string          `json:"customerAddress,omitempty" bson:"customer_address,omitempty"`
	Status             Status          `json:"status" bson:"status"`
	CheckoutURL        string          `json:"checkoutUrl,omitempty" bson:"checkout_url,omitempty"`
	AccessCode         string          `json:"accessCode,omitempty" bson:"access_code,omitempty"`
	ResponseCode       string          `json:"responseCode,omitempty" bson:"response_code,omitempty"`
	ResponseMessage    string          `json:"responseMessage,omitempty" bson:"response_message,omitempty"`
	PaymentDate        *time.Time      `json:"paymentDate,omitempty" bson:"payment_date,omitempty"`
	PaymentChannel     string          `json:"paymentChannel,omitempty" bson:"payment_channel,omitempty"`
	CreatedAt          time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" bson:"updated_at"`
}

// Snapshot returns the serializable view of the transaction.
func (t *Transaction) Snapshot() Snapshot {
	return Snapshot{
		ID:                 t.id,
		MerchantReference:  t.merchantReference,
		ProcessorReference: t.processorRef,
		Amount:             t.amount,
		Currency:           t.currency,
		CustomerFirstName:  t.customer.FirstName,
		CustomerLastName:   t.customer.LastName,
		CustomerEmail:      t.customer.Email,
		CustomerPhone:      t.customer.Phone,
		CustomerAddress:    t.customer.Address,
		Status:             t.status,
		CheckoutURL:        t.checkoutURL,
		AccessCode:         t.accessCode,
		ResponseCode:       t.responseCode,
		ResponseMessage:    t.responseMessage,
		PaymentDate:        t.paymentDate,
		PaymentChannel:     t.paymentChannel,
		CreatedAt:          t.createdAt,
		UpdatedAt:          t.updatedAt,
	}
}

// Restore rebuilds a transaction from a persisted snapshot. It bypasses
// construction validation: rows already in the store are trusted.
func Restore(s Snapshot) *Transaction {
	return &Transaction{
		id:                s.ID,
		merchantReference: s.MerchantReference,
		processorRef:      s.ProcessorReference,
		amount:            s.Amount,
		currency:          s.Currency,
		customer: Customer{
			FirstName: s.CustomerFirstName,
			LastName:  s.CustomerLastName,
			Email:     s.CustomerEmail,
			Phone:     s.CustomerPhone,
			Address:   s.CustomerAddress,
		},
		status:          s.Status,
		checkoutURL:     s.CheckoutURL,
		accessCode:      s.AccessCode,
		responseCode:    s.ResponseCode,
		responseMessage: s.ResponseMessage,
		paymentDate:     s.PaymentDate,
		paymentChannel:  s.PaymentChannel,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
	}
}
