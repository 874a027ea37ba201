package app

import (
	"fmt"
	"math/rand"
	"time"

	"lead-gate-service/internal/domain"
)

// Issuer mints credential codes for passing attempts. Codes are of the form
// PREFIX-XXXX-SUFFIX with a fresh random 4-digit segment per issue, and carry
// a fixed claim window from the moment of issue.
type Issuer struct {
	prefix string
	suffix string
	ttl    time.Duration
	rnd    *rand.Rand
	now    func() time.Time
}

func NewIssuer(prefix, suffix string, ttl time.Duration) *Issuer {
	return &Issuer{
		prefix: prefix,
		suffix: suffix,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// NewIssuerWithClock is test-only for deterministic codes and timestamps.
func NewIssuerWithClock(prefix, suffix string, ttl time.Duration, src rand.Source, now func() time.Time) *Issuer {
	return &Issuer{prefix: prefix, suffix: suffix, ttl: ttl, rnd: rand.New(src), now: now}
}

// Issue mints a credential for a passing outcome. Any other outcome is
// refused outright; the gate lives here, not in the caller.
func (i *Issuer) Issue(outcome domain.Outcome) (domain.RewardCredential, error) {
	if outcome != domain.OutcomePass {
		return domain.RewardCredential{}, domain.ErrNotPassed
	}
	issuedAt := i.now()
	return domain.RewardCredential{
		Code:      fmt.Sprintf("%s-%04d-%s", i.prefix, i.rnd.Intn(10000), i.suffix),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(i.ttl),
	}, nil
}
