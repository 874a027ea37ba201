package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"lead-gate-service/internal/domain"
)

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// SessionStore abstracts gated-session persistence (in-memory, Redis, etc).
type SessionStore interface {
	Load(ctx context.Context, phone string) (domain.GatedSession, bool, error)
	Save(ctx context.Context, session domain.GatedSession) error
	Clear(ctx context.Context, phone string) error
}

// Notification is an outbound email to the counselor channel.
type Notification struct {
	Recipients []string
	Subject    string
	Body       string
}

// Notifier sends counselor notifications. Callers treat it as best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FeatureConfig describes one gated feature (scholarship test, careers test,
// tool gate) composed from the shared engines.
type FeatureConfig struct {
	BankID        string
	BatchSize     int
	PassThreshold float64
	Mode          domain.RunnerMode
	RewardPrefix  string
	RewardSuffix  string
	RewardTTL     time.Duration
	Recipients    []string
}

// Stage is the coarse view the orchestrator is currently in.
type Stage string

const (
	StageLanding    Stage = "landing"
	StageForm       Stage = "form"
	StageAssessment Stage = "assessment"
	StageResult     Stage = "result"
)

// FlowService composes verification, sampling, scoring, and issuance into the
// per-feature gated flow. It is the only component that talks to the
// notifier, and it never lets a notification failure block the user.
type FlowService struct {
	banks    BankRepository
	sessions SessionStore
	otp      OTPProvider
	notifier Notifier
	sampler  *Sampler
	features map[string]FeatureConfig
}

func NewFlowService(banks BankRepository, sessions SessionStore, otp OTPProvider, notifier Notifier, features map[string]FeatureConfig) *FlowService {
	return &FlowService{
		banks:    banks,
		sessions: sessions,
		otp:      otp,
		notifier: notifier,
		sampler:  NewSampler(),
		features: features,
	}
}

// Flow is the state machine for one visitor working through one feature.
type Flow struct {
	featureID string
	feature   FeatureConfig

	mu         sync.Mutex
	stage      Stage
	verifier   *PhoneVerifier
	identity   domain.Identity
	bank       domain.QuestionBank
	used       map[int]struct{}
	attempt    *Attempt
	outcome    domain.Outcome
	score      int
	credential *domain.RewardCredential
	issuer     *Issuer
	bypassed   bool
}

// QuestionView is a question as shown to the visitor; the correct index never
// leaves the server.
type QuestionView struct {
	Index   int      `json:"index"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Chosen  int      `json:"chosen"`
}

// FlowSnapshot is the client-facing view of a flow.
type FlowSnapshot struct {
	Feature      string                   `json:"feature"`
	Stage        Stage                    `json:"stage"`
	Verification domain.PhoneVerification `json:"verification"`
	Bypassed     bool                     `json:"bypassed"`
	Mode         domain.RunnerMode        `json:"mode,omitempty"`
	CurrentIndex int                      `json:"currentIndex,omitempty"`
	Total        int                      `json:"total,omitempty"`
	Question     *QuestionView            `json:"question,omitempty"`
	Questions    []QuestionView           `json:"questions,omitempty"`
	Outcome      domain.Outcome           `json:"outcome,omitempty"`
	Score        int                      `json:"score"`
	Credential   *domain.RewardCredential `json:"credential,omitempty"`
}

// Start opens a flow for a feature. A previously saved gated session for
// phoneHint bypasses the gate entirely: the flow lands straight in the
// assessment without any OTP traffic.
func (s *FlowService) Start(ctx context.Context, featureID, phoneHint string) (*Flow, error) {
	feature, ok := s.features[featureID]
	if !ok {
		return nil, fmt.Errorf("feature %q: %w", featureID, domain.ErrBankNotFound)
	}

	// Preload the bank; flows never open against unknown content.
	bank, err := s.banks.GetBank(ctx, feature.BankID)
	if err != nil {
		return nil, err
	}

	flow := &Flow{
		featureID: featureID,
		feature:   feature,
		stage:     StageLanding,
		verifier:  NewPhoneVerifier(s.otp),
		bank:      bank,
		used:      map[int]struct{}{},
		issuer:    NewIssuer(feature.RewardPrefix, feature.RewardSuffix, feature.RewardTTL),
	}

	if phoneHint != "" {
		if e164, err := NormalizePhone(phoneHint); err == nil {
			if session, found, err := s.sessions.Load(ctx, e164); err == nil && found {
				flow.identity = session.Identity
				flow.bypassed = true
				if err := s.startAttemptLocked(flow); err != nil {
					return nil, err
				}
			}
		}
	}
	return flow, nil
}

// Begin moves a fresh flow from the landing view to the identity form.
func (s *FlowService) Begin(flow *Flow) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageLanding {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	flow.stage = StageForm
	return flow.snapshotLocked(), nil
}

// RequestOTP runs phone validation and asks the provider to send a code.
func (s *FlowService) RequestOTP(ctx context.Context, flow *Flow, rawPhone string) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageForm {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	err := flow.verifier.RequestCode(ctx, rawPhone)
	return flow.snapshotLocked(), err
}

// ConfirmOTP checks the entered code against the provider.
func (s *FlowService) ConfirmOTP(ctx context.Context, flow *Flow, code string) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageForm {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	err := flow.verifier.ConfirmCode(ctx, code)
	return flow.snapshotLocked(), err
}

// EditPhone resets verification when the visitor changes the number, even
// after it was verified.
func (s *FlowService) EditPhone(flow *Flow) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageForm {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	flow.verifier.EditPhone()
	return flow.snapshotLocked(), nil
}

// SubmitIdentity accepts the lead form once the phone is verified, persists
// the gated session, fires the registration notification, and starts the
// assessment. The session is saved before the notification so a flaky email
// channel never costs the visitor their gate bypass.
func (s *FlowService) SubmitIdentity(ctx context.Context, flow *Flow, identity domain.Identity) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageForm {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	if !flow.verifier.Verified() {
		return flow.snapshotLocked(), domain.ErrNotVerified
	}
	if identity.Name == "" || identity.Course == "" {
		return flow.snapshotLocked(), domain.ErrValidation
	}
	identity.Phone = flow.verifier.State().NormalizedE164
	flow.identity = identity

	session := domain.GatedSession{Identity: identity, VerifiedAt: time.Now()}
	if err := s.sessions.Save(ctx, session); err != nil {
		log.Printf("save gated session for %s: %v", identity.Phone, err)
	}

	s.notify(ctx, flow.feature.Recipients,
		fmt.Sprintf("New registration: %s", flow.featureID),
		fmt.Sprintf("Name: %s\nPhone: %s\nEmail: %s\nCourse: %s\nCity: %s, %s",
			identity.Name, identity.Phone, identity.Email, identity.Course, identity.City, identity.State))

	if err := s.startAttemptLocked(flow); err != nil {
		return flow.snapshotLocked(), err
	}
	return flow.snapshotLocked(), nil
}

// Answer records the choice for the current question in a sequential flow and
// finalizes the attempt after the last one.
func (s *FlowService) Answer(ctx context.Context, flow *Flow, optionIndex int) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageAssessment {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	done, err := flow.attempt.Answer(optionIndex)
	if err != nil {
		return flow.snapshotLocked(), err
	}
	if done {
		if err := s.finalizeLocked(ctx, flow); err != nil {
			return flow.snapshotLocked(), err
		}
	}
	return flow.snapshotLocked(), nil
}

// AnswerAt records a choice for any question in a free-navigation flow.
func (s *FlowService) AnswerAt(flow *Flow, questionIndex, optionIndex int) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageAssessment {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	err := flow.attempt.AnswerAt(questionIndex, optionIndex)
	return flow.snapshotLocked(), err
}

// SubmitAnswers finalizes a free-navigation attempt; every question must be
// answered first.
func (s *FlowService) SubmitAnswers(ctx context.Context, flow *Flow) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageAssessment {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	if flow.attempt.Mode != domain.ModeFreeNav {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	if err := s.finalizeLocked(ctx, flow); err != nil {
		return flow.snapshotLocked(), err
	}
	return flow.snapshotLocked(), nil
}

// Retry discards a failed attempt and draws a fresh batch. Used ids carry
// over so questions do not repeat until the pool is exhausted.
func (s *FlowService) Retry(flow *Flow) (FlowSnapshot, error) {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.stage != StageResult || flow.outcome != domain.OutcomeFail {
		return flow.snapshotLocked(), domain.ErrFlowState
	}
	flow.outcome = ""
	flow.score = 0
	if err := s.startAttemptLocked(flow); err != nil {
		return flow.snapshotLocked(), err
	}
	return flow.snapshotLocked(), nil
}

// Snapshot returns the current client-facing view.
func (s *FlowService) Snapshot(flow *Flow) FlowSnapshot {
	flow.mu.Lock()
	defer flow.mu.Unlock()
	return flow.snapshotLocked()
}

func (s *FlowService) startAttemptLocked(flow *Flow) error {
	selected, newUsed, err := s.sampler.DrawBatch(flow.bank, flow.used, flow.feature.BatchSize)
	if err != nil {
		return err
	}
	flow.used = newUsed
	flow.attempt = StartAttempt(selected, flow.feature.Mode)
	flow.stage = StageAssessment
	return nil
}

func (s *FlowService) finalizeLocked(ctx context.Context, flow *Flow) error {
	score, err := flow.attempt.Finalize(flow.bank)
	if err != nil {
		return err
	}
	flow.score = score
	flow.outcome = Classify(score, len(flow.attempt.QuestionIDs), flow.feature.PassThreshold)
	flow.stage = StageResult

	if flow.outcome == domain.OutcomePass {
		credential, err := flow.issuer.Issue(flow.outcome)
		if err != nil {
			return err
		}
		flow.credential = &credential
		s.notify(ctx, flow.feature.Recipients,
			fmt.Sprintf("Assessment passed: %s", flow.featureID),
			fmt.Sprintf("Name: %s\nPhone: %s\nScore: %d/%d\nCode: %s",
				flow.identity.Name, flow.identity.Phone, score, len(flow.attempt.QuestionIDs), credential.Code))
	}
	return nil
}

// notify is best-effort: failures are logged and swallowed so the channel
// never blocks the visitor's progress.
func (s *FlowService) notify(ctx context.Context, recipients []string, subject, body string) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, Notification{Recipients: recipients, Subject: subject, Body: body}); err != nil {
		log.Printf("notify %q: %v", subject, err)
	}
}

func (f *Flow) snapshotLocked() FlowSnapshot {
	snapshot := FlowSnapshot{
		Feature:      f.featureID,
		Stage:        f.stage,
		Verification: f.verifier.State(),
		Bypassed:     f.bypassed,
		Outcome:      f.outcome,
		Score:        f.score,
		Credential:   f.credential,
	}
	if f.attempt != nil {
		snapshot.Mode = f.attempt.Mode
		snapshot.CurrentIndex = f.attempt.CurrentIndex
		snapshot.Total = len(f.attempt.QuestionIDs)
	}
	if f.stage == StageAssessment {
		switch f.attempt.Mode {
		case domain.ModeSequential:
			if f.attempt.CurrentIndex < len(f.attempt.QuestionIDs) {
				view := f.questionView(f.attempt.CurrentIndex)
				snapshot.Question = &view
			}
		case domain.ModeFreeNav:
			views := make([]QuestionView, 0, len(f.attempt.QuestionIDs))
			for i := range f.attempt.QuestionIDs {
				views = append(views, f.questionView(i))
			}
			snapshot.Questions = views
		}
	}
	return snapshot
}

func (f *Flow) questionView(index int) QuestionView {
	question, _ := f.bank.QuestionByID(f.attempt.QuestionIDs[index])
	return QuestionView{
		Index:   index,
		Prompt:  question.Prompt,
		Options: question.Options,
		Chosen:  f.attempt.Answers[index],
	}
}
