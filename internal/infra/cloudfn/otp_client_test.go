package cloudfn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lead-gate-service/internal/domain"
)

func TestSendCodeSuccess(t *testing.T) {
	var gotPhone string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPhone = body["phone"]
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := NewOTPClient(server.URL, server.URL, 5*time.Second)
	if err := client.SendCode(context.Background(), "+919876543210"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPhone != "+919876543210" {
		t.Fatalf("expected E164 phone in payload, got %q", gotPhone)
	}
}

func TestSendCodeRejectedShapes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"success false", http.StatusOK, `{"success":false}`},
		{"wrong shape", http.StatusOK, `{"ok":true}`},
		{"server error", http.StatusInternalServerError, `{"success":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewOTPClient(server.URL, server.URL, 5*time.Second)
			err := client.SendCode(context.Background(), "+919876543210")
			if !errors.Is(err, domain.ErrProviderRejected) {
				t.Fatalf("expected provider rejection, got %v", err)
			}
		})
	}
}

func TestVerifyCodeLooseContract(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		verified bool
	}{
		{"type success", `{"type":"success"}`, true},
		{"message verified", `{"type":"info","message":"Phone Verified successfully"}`, true},
		{"message verified uppercase", `{"message":"VERIFIED"}`, true},
		{"rejected", `{"type":"error","message":"Invalid OTP"}`, false},
		{"empty", `{}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewOTPClient(server.URL, server.URL, 5*time.Second)
			outcome, err := client.VerifyCode(context.Background(), "+919876543210", "123456")
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if outcome.Verified != tc.verified {
				t.Fatalf("expected verified=%v, got %+v", tc.verified, outcome)
			}
		})
	}
}

func TestVerifyCodeRejectionCarriesReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"error","message":"Invalid OTP"}`))
	}))
	defer server.Close()

	client := NewOTPClient(server.URL, server.URL, 5*time.Second)
	outcome, err := client.VerifyCode(context.Background(), "+919876543210", "000000")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Verified || outcome.Reason != "Invalid OTP" {
		t.Fatalf("expected rejection with reason, got %+v", outcome)
	}
}

func TestVerifyCodeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // closed on purpose

	client := NewOTPClient(server.URL, server.URL, time.Second)
	if _, err := client.VerifyCode(context.Background(), "+919876543210", "123456"); err == nil {
		t.Fatalf("expected transport error")
	}
}
