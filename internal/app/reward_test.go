package app_test

import (
	"errors"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/domain"
)

func TestIssueRequiresPass(t *testing.T) {
	issuer := app.NewIssuer("SCH", "26", 15*time.Minute)

	if _, err := issuer.Issue(domain.OutcomeFail); !errors.Is(err, domain.ErrNotPassed) {
		t.Fatalf("expected not-passed error, got %v", err)
	}
}

func TestIssueCodeFormatAndWindow(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	issuer := app.NewIssuerWithClock("SCH", "26", 15*time.Minute, rand.NewSource(1), func() time.Time { return fixed })

	credential, err := issuer.Issue(domain.OutcomePass)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !regexp.MustCompile(`^SCH-\d{4}-26$`).MatchString(credential.Code) {
		t.Fatalf("unexpected code format %q", credential.Code)
	}
	if !credential.IssuedAt.Equal(fixed) {
		t.Fatalf("expected issuedAt %v, got %v", fixed, credential.IssuedAt)
	}
	if !credential.ExpiresAt.Equal(fixed.Add(15 * time.Minute)) {
		t.Fatalf("expected 15m window, got %v", credential.ExpiresAt)
	}
	if credential.Claimed {
		t.Fatalf("fresh credential must not be claimed")
	}
}

func TestExpiryIsDerived(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	issuer := app.NewIssuerWithClock("JOB", "26", 15*time.Minute, rand.NewSource(1), func() time.Time { return fixed })

	credential, err := issuer.Issue(domain.OutcomePass)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if credential.Expired(fixed.Add(14 * time.Minute)) {
		t.Fatalf("credential expired too early")
	}
	if !credential.Expired(fixed.Add(16 * time.Minute)) {
		t.Fatalf("credential should be expired after the window")
	}
}
