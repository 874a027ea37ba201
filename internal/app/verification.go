package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lead-gate-service/internal/domain"
)

// VerifyOutcome is the typed result of an OTP check. Adapters translate
// whatever the provider answers into this shape so the loose wire contract
// stays out of the state machine.
type VerifyOutcome struct {
	Verified bool
	Reason   string
}

// OTPProvider abstracts the external SMS code service.
type OTPProvider interface {
	SendCode(ctx context.Context, phoneE164 string) error
	VerifyCode(ctx context.Context, phoneE164, code string) (VerifyOutcome, error)
}

// NormalizePhone reduces raw input to the trailing 10 digits and prefixes the
// Indian country code. Inputs with fewer than 10 digits are rejected.
func NormalizePhone(raw string) (string, error) {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) < 10 {
		return "", domain.ErrInvalidPhone
	}
	return "+91" + string(digits[len(digits)-10:]), nil
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// PhoneVerifier drives one phone number through the OTP lifecycle:
// Idle -> Sending -> Sent -> Verified, with Failed -> Idle on retry and
// Sent -> Sent on resend. Verified is terminal until the phone is edited.
type PhoneVerifier struct {
	provider OTPProvider

	mu    sync.Mutex
	state domain.PhoneVerification
}

func NewPhoneVerifier(provider OTPProvider) *PhoneVerifier {
	return &PhoneVerifier{
		provider: provider,
		state:    domain.PhoneVerification{Status: domain.VerificationIdle},
	}
}

// State returns a copy of the current verification record.
func (v *PhoneVerifier) State() domain.PhoneVerification {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Verified reports whether the phone has been confirmed this session.
func (v *PhoneVerifier) Verified() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Status == domain.VerificationVerified
}

// RequestCode validates the raw phone and asks the provider to send an OTP.
// Calling it again while in Sent is a resend and is allowed.
func (v *PhoneVerifier) RequestCode(ctx context.Context, rawPhone string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Status == domain.VerificationVerified {
		return domain.ErrFlowState
	}

	e164, err := NormalizePhone(rawPhone)
	if err != nil {
		v.state.LastError = domain.ErrKindInvalidFormat
		return err
	}

	v.state.RawInput = rawPhone
	v.state.NormalizedE164 = e164
	v.state.Status = domain.VerificationSending
	v.state.LastError = ""

	if err := v.provider.SendCode(ctx, e164); err != nil {
		v.state.Status = domain.VerificationFailed
		if errors.Is(err, domain.ErrProviderRejected) {
			v.state.LastError = domain.ErrKindProviderRejected
		} else {
			v.state.LastError = domain.ErrKindNetworkError
		}
		return fmt.Errorf("send otp: %w", err)
	}

	v.state.Status = domain.VerificationSent
	return nil
}

// ConfirmCode checks a 6-digit code with the provider. A rejected code leaves
// the machine in Sent so the user can re-enter; a network error leaves the
// state untouched entirely.
func (v *PhoneVerifier) ConfirmCode(ctx context.Context, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Status != domain.VerificationSent {
		return domain.ErrFlowState
	}
	if !isSixDigits(code) {
		v.state.LastError = domain.ErrKindBadLength
		return domain.ErrBadCodeLength
	}

	outcome, err := v.provider.VerifyCode(ctx, v.state.NormalizedE164, code)
	if err != nil {
		v.state.LastError = domain.ErrKindNetworkError
		return fmt.Errorf("verify otp: %w", err)
	}
	if !outcome.Verified {
		v.state.LastError = domain.ErrKindInvalidCode
		return domain.ErrInvalidCode
	}

	v.state.Status = domain.VerificationVerified
	v.state.LastError = ""
	return nil
}

// EditPhone resets the machine to Idle. Editing after verification must drop
// the Verified status; it is never re-entered without a fresh OTP round.
func (v *PhoneVerifier) EditPhone() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = domain.PhoneVerification{Status: domain.VerificationIdle}
}
