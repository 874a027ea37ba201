package app

import (
	"lead-gate-service/internal/domain"
)

// Attempt is one pass through a drawn batch of questions. Question order is
// fixed at start; once finalized the attempt is immutable and a retry must
// start a fresh attempt.
type Attempt struct {
	QuestionIDs  []int             `json:"questionIds"`
	Answers      []int             `json:"answers"`
	CurrentIndex int               `json:"currentIndex"`
	Mode         domain.RunnerMode `json:"mode"`
	Score        int               `json:"score"`
	Finalized    bool              `json:"finalized"`
}

// StartAttempt builds a new attempt over the selected ids with every answer
// unset.
func StartAttempt(selectedIDs []int, mode domain.RunnerMode) *Attempt {
	answers := make([]int, len(selectedIDs))
	for i := range answers {
		answers[i] = domain.Unanswered
	}
	return &Attempt{
		QuestionIDs: append([]int(nil), selectedIDs...),
		Answers:     answers,
		Mode:        mode,
	}
}

// Answer records a choice for the current question and advances. Sequential
// mode only; the step is irreversible. Returns true when the attempt is
// complete.
func (a *Attempt) Answer(optionIndex int) (bool, error) {
	if a.Finalized {
		return false, domain.ErrAttemptFinalized
	}
	if a.Mode != domain.ModeSequential {
		return false, domain.ErrFlowState
	}
	if a.CurrentIndex >= len(a.QuestionIDs) {
		return true, nil
	}
	a.Answers[a.CurrentIndex] = optionIndex
	a.CurrentIndex++
	return a.CurrentIndex == len(a.QuestionIDs), nil
}

// AnswerAt records a choice for an arbitrary question, overwriting any prior
// choice. Free-navigation mode only.
func (a *Attempt) AnswerAt(questionIndex, optionIndex int) error {
	if a.Finalized {
		return domain.ErrAttemptFinalized
	}
	if a.Mode != domain.ModeFreeNav {
		return domain.ErrFlowState
	}
	if questionIndex < 0 || questionIndex >= len(a.QuestionIDs) {
		return domain.ErrFlowState
	}
	a.Answers[questionIndex] = optionIndex
	return nil
}

// Complete reports whether every question has a recorded answer.
func (a *Attempt) Complete() bool {
	for _, choice := range a.Answers {
		if choice == domain.Unanswered {
			return false
		}
	}
	return true
}

// ScoreAttempt counts correct answers against the bank. Pure; safe to call
// repeatedly with the same result.
func ScoreAttempt(a *Attempt, bank domain.QuestionBank) int {
	score := 0
	for i, id := range a.QuestionIDs {
		question, ok := bank.QuestionByID(id)
		if !ok {
			continue
		}
		if a.Answers[i] == question.CorrectIndex {
			score++
		}
	}
	return score
}

// Classify maps a score to a terminal outcome. Pass iff score/total meets the
// threshold; failing is a valid result, not an error.
func Classify(score, total int, passThreshold float64) domain.Outcome {
	if total == 0 {
		return domain.OutcomeFail
	}
	if float64(score)/float64(total) >= passThreshold {
		return domain.OutcomePass
	}
	return domain.OutcomeFail
}

// Finalize scores the attempt once and freezes it.
func (a *Attempt) Finalize(bank domain.QuestionBank) (int, error) {
	if a.Finalized {
		return a.Score, nil
	}
	if a.Mode == domain.ModeFreeNav && !a.Complete() {
		return 0, domain.ErrAttemptIncomplete
	}
	a.Score = ScoreAttempt(a, bank)
	a.Finalized = true
	return a.Score, nil
}
