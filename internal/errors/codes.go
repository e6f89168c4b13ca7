package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Validation errors (rejected before any external call)
const (
	ErrCodeValidation      ErrorCode = "validation_error"
	ErrCodeMissingField    ErrorCode = "missing_field"
	ErrCodeInvalidAmount   ErrorCode = "invalid_amount"
	ErrCodeInvalidCurrency ErrorCode = "invalid_currency"
)

// Resource/state errors
const (
	ErrCodeTransactionNotFound ErrorCode = "transaction_not_found"
)

// Webhook errors
const (
	// Decryption failure is a security/config issue, reported distinctly
	// from resolution failures.
	ErrCodeDecryptionFailed ErrorCode = "decryption_failed"
	ErrCodeMalformedPayload ErrorCode = "malformed_payload"
)

// External service errors
const (
	ErrCodeProcessorError       ErrorCode = "processor_error"
	ErrCodeProcessorUnavailable ErrorCode = "processor_unavailable"
)

// Rate limiting
const (
	ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
)

// Internal/system errors
const (
	ErrCodeInternalError      ErrorCode = "internal_error"
	ErrCodeDatabaseError      ErrorCode = "database_error"
	ErrCodeDuplicateReference ErrorCode = "duplicate_reference"
	ErrCodeUnauthorized       ErrorCode = "unauthorized"
)

// IsRetryable returns whether an error code represents a retryable condition.
// Transient service faults are retryable; validation failures are not.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeProcessorError,
		ErrCodeProcessorUnavailable,
		ErrCodeDatabaseError,
		ErrCodeRateLimitExceeded:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrCodeValidation,
		ErrCodeMissingField,
		ErrCodeInvalidAmount,
		ErrCodeInvalidCurrency,
		ErrCodeMalformedPayload:
		return 400

	case ErrCodeUnauthorized,
		ErrCodeDecryptionFailed:
		return 401

	case ErrCodeTransactionNotFound:
		return 404

	case ErrCodeDuplicateReference:
		return 409

	case ErrCodeRateLimitExceeded:
		return 429

	case ErrCodeProcessorError,
		ErrCodeProcessorUnavailable:
		return 502

	default:
		return 500
	}
}
