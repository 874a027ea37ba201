package app

import (
	"math/rand"
	"time"

	"lead-gate-service/internal/domain"
)

// Sampler draws fixed-size, non-repeating batches of question ids from a
// bank. Used ids are carried across draws until the remaining pool cannot
// fill a batch, at which point the whole bank is reshuffled and history is
// reset to exactly the new batch.
type Sampler struct {
	rnd *rand.Rand
}

func NewSampler() *Sampler {
	return NewSamplerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSamplerWithSource allows deterministic draws in tests.
func NewSamplerWithSource(src rand.Source) *Sampler {
	return &Sampler{rnd: rand.New(src)}
}

// DrawBatch returns the selected ids and the replacement used-id set. The
// input set is not mutated. Batch size is clamped to the bank size; drawing
// from an empty bank errors.
func (s *Sampler) DrawBatch(bank domain.QuestionBank, used map[int]struct{}, batchSize int) ([]int, map[int]struct{}, error) {
	all := bank.IDs()
	if len(all) == 0 {
		return nil, nil, domain.ErrBankEmpty
	}
	if batchSize > len(all) {
		batchSize = len(all)
	}

	remaining := make([]int, 0, len(all))
	for _, id := range all {
		if _, taken := used[id]; !taken {
			remaining = append(remaining, id)
		}
	}

	if len(remaining) >= batchSize {
		s.rnd.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})
		selected := append([]int(nil), remaining[:batchSize]...)

		newUsed := make(map[int]struct{}, len(used)+batchSize)
		for id := range used {
			newUsed[id] = struct{}{}
		}
		for _, id := range selected {
			newUsed[id] = struct{}{}
		}
		return selected, newUsed, nil
	}

	// Pool exhausted: reshuffle the entire bank and restart history from the
	// fresh batch alone. Old history is discarded, not blended.
	s.rnd.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	selected := append([]int(nil), all[:batchSize]...)
	newUsed := make(map[int]struct{}, batchSize)
	for _, id := range selected {
		newUsed[id] = struct{}{}
	}
	return selected, newUsed, nil
}
