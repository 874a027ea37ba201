package domain

import "errors"

// Error kinds surfaced on PhoneVerification.LastError.
const (
	ErrKindInvalidFormat    = "invalid_format"
	ErrKindBadLength        = "bad_length"
	ErrKindInvalidCode      = "invalid_code"
	ErrKindProviderRejected = "provider_rejected"
	ErrKindNetworkError     = "network_error"
)

var (
	// ErrInvalidPhone is returned when the input does not reduce to exactly 10 digits.
	ErrInvalidPhone = errors.New("phone must contain exactly 10 digits")
	// ErrBadCodeLength is returned when an OTP code is not exactly 6 digits.
	ErrBadCodeLength = errors.New("otp code must be exactly 6 digits")
	// ErrInvalidCode is returned when the provider rejects an entered OTP.
	ErrInvalidCode = errors.New("otp code rejected")
	// ErrProviderRejected indicates an explicit negative response from a collaborator.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrNotVerified is returned when a gated step runs before phone verification.
	ErrNotVerified = errors.New("phone not verified")
	// ErrValidation is returned when required identity fields are missing.
	ErrValidation = errors.New("required fields missing")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrBankEmpty indicates a draw was requested from a bank with no questions.
	ErrBankEmpty = errors.New("question bank is empty")
	// ErrAttemptFinalized is returned when answers arrive after scoring.
	ErrAttemptFinalized = errors.New("attempt already finalized")
	// ErrAttemptIncomplete is returned on bulk submit with unanswered questions.
	ErrAttemptIncomplete = errors.New("attempt has unanswered questions")
	// ErrNotPassed guards credential issuance against failing attempts.
	ErrNotPassed = errors.New("attempt did not pass")
	// ErrFlowState is returned when an operation is invalid for the current stage.
	ErrFlowState = errors.New("operation not allowed in current flow stage")
)
