package domain

import "time"

// VerificationStatus tracks where a phone number is in the OTP lifecycle.
type VerificationStatus string

const (
	VerificationIdle     VerificationStatus = "idle"
	VerificationSending  VerificationStatus = "sending"
	VerificationSent     VerificationStatus = "sent"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// PhoneVerification is the state record for one phone being verified.
type PhoneVerification struct {
	RawInput       string             `json:"rawInput"`
	NormalizedE164 string             `json:"normalizedE164"`
	Status         VerificationStatus `json:"status"`
	LastError      string             `json:"lastError,omitempty"`
}

// Question models an MCQ question with exactly one correct option index.
type Question struct {
	ID           int      `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Category     string   `json:"category,omitempty"`
}

// QuestionBank is the immutable pool of questions for one gated feature.
type QuestionBank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// QuestionByID looks up a question in the bank.
func (b QuestionBank) QuestionByID(id int) (Question, bool) {
	for i := range b.Questions {
		if b.Questions[i].ID == id {
			return b.Questions[i], true
		}
	}
	return Question{}, false
}

// IDs returns the ids of every question in bank order.
func (b QuestionBank) IDs() []int {
	ids := make([]int, 0, len(b.Questions))
	for i := range b.Questions {
		ids = append(ids, b.Questions[i].ID)
	}
	return ids
}

// RunnerMode selects how an attempt steps through its questions.
type RunnerMode string

const (
	// ModeSequential advances one question per answer with no going back.
	ModeSequential RunnerMode = "sequential"
	// ModeFreeNav lets the user answer in any order and submit once complete.
	ModeFreeNav RunnerMode = "freenav"
)

// Unanswered marks a question slot with no recorded choice.
const Unanswered = -1

// Outcome is the terminal classification of a scored attempt.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// RewardCredential is a human-presentable code minted for a passing attempt.
type RewardCredential struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Claimed   bool      `json:"claimed"`
}

// Expired reports whether the claim window has closed. Purely derived; the
// credential record itself is never mutated on expiry.
func (c RewardCredential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Identity is the lead-capture form data tied to a verified phone.
type Identity struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	State    string `json:"state,omitempty"`
	City     string `json:"city,omitempty"`
	Course   string `json:"course"`
	ToolName string `json:"toolName,omitempty"`
}

// GatedSession is the persisted proof that a visitor already passed the gate.
type GatedSession struct {
	Identity   Identity  `json:"identity"`
	VerifiedAt time.Time `json:"verifiedAt"`
}
