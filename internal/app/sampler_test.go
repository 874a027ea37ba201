package app_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/domain"
)

func makeBank(size int) domain.QuestionBank {
	bank := domain.QuestionBank{ID: "bank"}
	for i := 1; i <= size; i++ {
		bank.Questions = append(bank.Questions, domain.Question{
			ID:           i,
			Prompt:       fmt.Sprintf("question %d", i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 1,
		})
	}
	return bank
}

func TestDrawBatchNoRepeatsUntilExhaustion(t *testing.T) {
	sampler := app.NewSamplerWithSource(rand.NewSource(42))
	bank := makeBank(20)

	used := map[int]struct{}{}
	seen := map[int]struct{}{}
	for draw := 0; draw < 4; draw++ {
		selected, newUsed, err := sampler.DrawBatch(bank, used, 5)
		if err != nil {
			t.Fatalf("draw %d: %v", draw, err)
		}
		if len(selected) != 5 {
			t.Fatalf("draw %d: expected 5 ids, got %d", draw, len(selected))
		}
		inBatch := map[int]struct{}{}
		for _, id := range selected {
			if _, dup := inBatch[id]; dup {
				t.Fatalf("draw %d: id %d repeated within batch", draw, id)
			}
			inBatch[id] = struct{}{}
			if _, repeat := seen[id]; repeat {
				t.Fatalf("draw %d: id %d repeated before exhaustion", draw, id)
			}
			seen[id] = struct{}{}
		}
		used = newUsed
	}
	if len(used) != 20 {
		t.Fatalf("expected full pool used after 4 draws, got %d", len(used))
	}

	// Fifth draw exhausts the pool: history resets to exactly the new batch.
	selected, newUsed, err := sampler.DrawBatch(bank, used, 5)
	if err != nil {
		t.Fatalf("exhausted draw: %v", err)
	}
	if len(newUsed) != 5 {
		t.Fatalf("expected hard reset to 5 used ids, got %d", len(newUsed))
	}
	for _, id := range selected {
		if _, ok := newUsed[id]; !ok {
			t.Fatalf("used set must equal the fresh batch, missing %d", id)
		}
	}
}

func TestDrawBatchDoesNotMutateInput(t *testing.T) {
	sampler := app.NewSamplerWithSource(rand.NewSource(1))
	bank := makeBank(10)

	used := map[int]struct{}{1: {}, 2: {}}
	if _, _, err := sampler.DrawBatch(bank, used, 5); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(used) != 2 {
		t.Fatalf("input used set mutated, now %d entries", len(used))
	}
}

func TestDrawBatchClampsOversizedBatch(t *testing.T) {
	sampler := app.NewSamplerWithSource(rand.NewSource(7))
	bank := makeBank(3)

	selected, _, err := sampler.DrawBatch(bank, nil, 5)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("expected clamp to bank size 3, got %d", len(selected))
	}
}

func TestDrawBatchEmptyBank(t *testing.T) {
	sampler := app.NewSamplerWithSource(rand.NewSource(7))

	_, _, err := sampler.DrawBatch(domain.QuestionBank{}, nil, 5)
	if !errors.Is(err, domain.ErrBankEmpty) {
		t.Fatalf("expected empty bank error, got %v", err)
	}
}
