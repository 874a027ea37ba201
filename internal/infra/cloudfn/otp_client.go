package cloudfn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// OTPClient talks to the external OTP Cloud Functions. The provider's wire
// contract is deliberately loose (verify success is signalled by either a
// "success" type or a message containing "verified"); that parsing lives
// only here and is translated into the typed app.VerifyOutcome.
type OTPClient struct {
	client    *resty.Client
	sendURL   string
	verifyURL string
}

func NewOTPClient(sendURL, verifyURL string, timeout time.Duration) *OTPClient {
	return &OTPClient{
		client:    resty.New().SetTimeout(timeout),
		sendURL:   sendURL,
		verifyURL: verifyURL,
	}
}

type sendResponse struct {
	Success bool `json:"success"`
}

// SendCode asks the provider to SMS a code to the phone. Success is
// {success:true}; any other shape or status is a provider rejection.
func (c *OTPClient) SendCode(ctx context.Context, phoneE164 string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"phone": phoneE164}).
		Post(c.sendURL)
	if err != nil {
		return fmt.Errorf("otp send request: %w", err)
	}

	var body sendResponse
	if resp.IsSuccess() {
		if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Success {
			return nil
		}
	}
	return fmt.Errorf("otp send status %d: %w", resp.StatusCode(), domain.ErrProviderRejected)
}

type verifyResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// VerifyCode checks a code with the provider. Rejections come back as a
// non-verified outcome, not an error; errors are reserved for transport
// failures.
func (c *OTPClient) VerifyCode(ctx context.Context, phoneE164, code string) (app.VerifyOutcome, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"phone": phoneE164, "otp": code}).
		Post(c.verifyURL)
	if err != nil {
		return app.VerifyOutcome{}, fmt.Errorf("otp verify request: %w", err)
	}

	var body verifyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return app.VerifyOutcome{Reason: fmt.Sprintf("status %d", resp.StatusCode())}, nil
	}
	if body.Type == "success" || strings.Contains(strings.ToLower(body.Message), "verified") {
		return app.VerifyOutcome{Verified: true}, nil
	}
	reason := body.Message
	if reason == "" {
		reason = body.Type
	}
	return app.VerifyOutcome{Reason: reason}, nil
}
