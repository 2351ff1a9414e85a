package nucleus

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Persona is the tokenized trait list a conversation is conditioned on.
type Persona struct {
	ID     string
	Traits [][]int
}

// LanguageModel produces the reply tokens for the current history.
type LanguageModel interface {
	Sample(ctx context.Context, persona Persona, history []Utterance, cfg SamplingConfig) ([]int, error)
}

// Scorer is the opaque next-token capability: given the full input
// sequence it returns one logit per vocabulary entry.
type Scorer interface {
	NextLogits(ctx context.Context, input []int) ([]float64, error)
}

// Sampler implements LanguageModel on top of a Scorer.
type Sampler struct {
	scorer  Scorer
	special SpecialTokens

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler. A zero seed draws one from the clock.
func NewSampler(scorer Scorer, special SpecialTokens, seed int64) *Sampler {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Sampler{
		scorer:  scorer,
		special: special,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Sample decodes at most cfg.MaxLength tokens. Below cfg.MinLength control
// tokens are skipped unless the filtered distribution leaves nothing else.
func (s *Sampler) Sample(ctx context.Context, persona Persona, history []Utterance, cfg SamplingConfig) ([]int, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := make([]int, 0, cfg.MaxLength)
	for i := 0; i < cfg.MaxLength; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &ModelError{Backend: "sampler", Err: err}
		}

		input := BuildInput(persona, history, out, s.special)
		logits, err := s.scorer.NextLogits(ctx, input)
		if err != nil {
			return nil, &ModelError{Backend: "sampler", Err: err}
		}
		if len(logits) == 0 {
			return nil, &ModelError{Backend: "sampler", Err: errors.New("scorer returned no logits")}
		}

		scaled := make([]float64, len(logits))
		for j, v := range logits {
			scaled[j] = v / cfg.Temperature
		}
		probs := SoftmaxProbs(FilterLogits(scaled, cfg.TopK, cfg.TopP))

		next := s.pick(probs, cfg.NoSample, nil)
		if i < cfg.MinLength && s.special.IsSpecial(next) {
			if alt, ok := s.pickNonSpecial(probs, cfg.NoSample); ok {
				next = alt
			} else {
				log.Printf("[nucleus] model generating special token with probability 1 at step %d", i)
			}
		}
		if s.special.IsSpecial(next) {
			break
		}
		out = append(out, next)
	}
	return out, nil
}

func (s *Sampler) pick(probs []float64, greedy bool, mask func(int) bool) int {
	if greedy {
		best, bestP := -1, -1.0
		for i, p := range probs {
			if mask != nil && mask(i) {
				continue
			}
			if p > bestP {
				best, bestP = i, p
			}
		}
		return best
	}

	total := 0.0
	for i, p := range probs {
		if mask != nil && mask(i) {
			continue
		}
		total += p
	}

	s.mu.Lock()
	r := s.rng.Float64() * total
	s.mu.Unlock()

	last := -1
	acc := 0.0
	for i, p := range probs {
		if mask != nil && mask(i) {
			continue
		}
		if p <= 0 {
			continue
		}
		last = i
		acc += p
		if acc >= r {
			return i
		}
	}
	return last
}

// pickNonSpecial draws again with control tokens masked out. It fails when
// the remaining candidates carry no probability mass.
func (s *Sampler) pickNonSpecial(probs []float64, greedy bool) (int, bool) {
	mass := 0.0
	for i, p := range probs {
		if !s.special.IsSpecial(i) {
			mass += p
		}
	}
	if mass <= 0 {
		return 0, false
	}
	next := s.pick(probs, greedy, s.special.IsSpecial)
	return next, next >= 0
}

// BuildInput lays out the model input: <bos> and the persona traits, then
// every utterance prefixed by its speaker token, then the partial reply.
func BuildInput(persona Persona, history []Utterance, reply []int, special SpecialTokens) []int {
	size := 2 + len(reply)
	for _, t := range persona.Traits {
		size += len(t)
	}
	for _, u := range history {
		size += 1 + len(u.Tokens)
	}

	input := make([]int, 0, size)
	input = append(input, special.BOS)
	for _, t := range persona.Traits {
		input = append(input, t...)
	}
	for _, u := range history {
		if u.Role == RoleModel {
			input = append(input, special.Speaker2)
		} else {
			input = append(input, special.Speaker1)
		}
		input = append(input, u.Tokens...)
	}
	input = append(input, special.Speaker2)
	input = append(input, reply...)
	return input
}

// FilterLogits applies top-k and then nucleus (top-p) filtering. Removed
// entries are set to -Inf; at least one entry always survives.
func FilterLogits(logits []float64, topK int, topP float64) []float64 {
	out := append([]float64(nil), logits...)
	if len(out) == 0 {
		return out
	}

	negInf := math.Inf(-1)
	if topK > 0 && topK < len(out) {
		sorted := append([]float64(nil), out...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		threshold := sorted[topK-1]
		for i, v := range out {
			if v < threshold {
				out[i] = negInf
			}
		}
	}

	if topP > 0 {
		idx := make([]int, len(out))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return out[idx[a]] > out[idx[b]]
		})

		sortedLogits := make([]float64, len(idx))
		for i, j := range idx {
			sortedLogits[i] = out[j]
		}
		probs := SoftmaxProbs(sortedLogits)

		// keep the token that crosses the threshold, drop the rest
		cum := 0.0
		for rank, j := range idx {
			if rank > 0 && cum > topP {
				out[j] = negInf
			}
			cum += probs[rank]
		}
	}
	return out
}

// SoftmaxProbs converts logits to probabilities; -Inf entries get zero.
func SoftmaxProbs(logits []float64) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}

	maxVal := math.Inf(-1)
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		uniform := 1 / float64(len(logits))
		for i := range probs {
			probs[i] = uniform
		}
		return probs
	}

	total := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - maxVal)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}
