package nucleus

import (
	"context"
	"errors"
	"math"
)

// Dialogue is a training example: the persona traits and the turns of one
// conversation, oldest first. The last turn belongs to the persona.
type Dialogue struct {
	Persona []string
	Turns   []string
}

const (
	lambdaTri  = 0.55
	lambdaBi   = 0.30
	lambdaUni  = 0.13
	lambdaFlat = 0.02

	// PersonaBoost is added to the logit of tokens that occur in the traits.
	PersonaBoost = 1.5
)

// NGram is an interpolated trigram scorer. It stands in for the pretrained
// transformer and conditions on the persona by boosting trait tokens.
type NGram struct {
	vocab   int
	special SpecialTokens

	uni   []int
	total int
	bi    map[int]map[int]int
	biN   map[int]int
	tri   map[uint64]map[int]int
	triN  map[uint64]int
}

// NewNGram returns an untrained scorer over a vocabulary of the given size.
func NewNGram(vocab int, special SpecialTokens) *NGram {
	return &NGram{
		vocab:   vocab,
		special: special,
		uni:     make([]int, vocab),
		bi:      make(map[int]map[int]int),
		biN:     make(map[int]int),
		tri:     make(map[uint64]map[int]int),
		triN:    make(map[uint64]int),
	}
}

func pairKey(a, b int) uint64 {
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

// Fit counts n-grams over the dialogues. Each turn is framed by its
// speaker token and terminated by <eos> so the scorer learns to stop.
func (m *NGram) Fit(tok Tokenizer, dialogues []Dialogue) (int, error) {
	if tok.VocabSize() != m.vocab {
		return 0, errors.New("tokenizer vocabulary does not match scorer")
	}

	seen := 0
	for _, d := range dialogues {
		for i, turn := range d.Turns {
			ids, err := tok.Encode(turn)
			if err != nil {
				continue
			}
			speaker := m.special.Speaker1
			if (len(d.Turns)-1-i)%2 == 0 {
				speaker = m.special.Speaker2
			}
			seq := make([]int, 0, len(ids)+2)
			seq = append(seq, speaker)
			seq = append(seq, ids...)
			seq = append(seq, m.special.EOS)
			m.observe(seq)
			seen++
		}
	}
	return seen, nil
}

func (m *NGram) observe(seq []int) {
	for i := 1; i < len(seq); i++ {
		w := seq[i]
		if w < 0 || w >= m.vocab {
			continue
		}
		m.uni[w]++
		m.total++

		b := seq[i-1]
		if m.bi[b] == nil {
			m.bi[b] = make(map[int]int)
		}
		m.bi[b][w]++
		m.biN[b]++

		if i >= 2 {
			k := pairKey(seq[i-2], b)
			if m.tri[k] == nil {
				m.tri[k] = make(map[int]int)
			}
			m.tri[k][w]++
			m.triN[k]++
		}
	}
}

// NextLogits scores every vocabulary entry given the tail of input.
func (m *NGram) NextLogits(ctx context.Context, input []int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) == 0 {
		return nil, errors.New("empty input")
	}

	probs := make([]float64, m.vocab)
	flat := lambdaFlat / float64(m.vocab)
	for i := range probs {
		probs[i] = flat
	}

	uniWeight := lambdaUni
	biWeight := lambdaBi
	b := input[len(input)-1]
	if m.biN[b] == 0 {
		uniWeight += biWeight
		biWeight = 0
	}
	triWeight := lambdaTri
	var k uint64
	if len(input) >= 2 {
		k = pairKey(input[len(input)-2], b)
	}
	if len(input) < 2 || m.triN[k] == 0 {
		if biWeight > 0 {
			biWeight += triWeight
		} else {
			uniWeight += triWeight
		}
		triWeight = 0
	}

	if m.total > 0 {
		for w, c := range m.uni {
			if c > 0 {
				probs[w] += uniWeight * float64(c) / float64(m.total)
			}
		}
	} else {
		for i := range probs {
			probs[i] += uniWeight / float64(m.vocab)
		}
	}
	if biWeight > 0 {
		n := float64(m.biN[b])
		for w, c := range m.bi[b] {
			probs[w] += biWeight * float64(c) / n
		}
	}
	if triWeight > 0 {
		n := float64(m.triN[k])
		for w, c := range m.tri[k] {
			probs[w] += triWeight * float64(c) / n
		}
	}

	logits := make([]float64, m.vocab)
	for i, p := range probs {
		logits[i] = math.Log(p)
	}
	for _, w := range m.personaTokens(input) {
		if w >= 0 && w < m.vocab {
			logits[w] += PersonaBoost
		}
	}
	return logits, nil
}

// personaTokens returns the word tokens between <bos> and the first
// speaker token.
func (m *NGram) personaTokens(input []int) []int {
	if len(input) == 0 || input[0] != m.special.BOS {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, id := range input[1:] {
		if id == m.special.Speaker1 || id == m.special.Speaker2 {
			break
		}
		if id < firstWordID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// VocabSize returns the number of scored entries.
func (m *NGram) VocabSize() int {
	return m.vocab
}

// Observations returns the number of counted tokens.
func (m *NGram) Observations() int {
	return m.total
}
