package nucleus

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) string
	Specials() SpecialTokens
	VocabSize() int
}

// Special token strings, in id order after the byte range.
const (
	TokenBOS      = "<bos>"
	TokenEOS      = "<eos>"
	TokenSpeaker1 = "<speaker1>"
	TokenSpeaker2 = "<speaker2>"
	TokenPAD      = "<pad>"
)

const (
	byteTokens   = 256
	specialCount = 5
	firstWordID  = byteTokens + specialCount
)

// SpecialTokens holds the ids of the control tokens.
type SpecialTokens struct {
	BOS      int
	EOS      int
	Speaker1 int
	Speaker2 int
	PAD      int
}

// IsSpecial reports whether id is one of the control tokens.
func (s SpecialTokens) IsSpecial(id int) bool {
	return id == s.BOS || id == s.EOS || id == s.Speaker1 || id == s.Speaker2 || id == s.PAD
}

// IDs returns the control token ids.
func (s SpecialTokens) IDs() []int {
	return []int{s.BOS, s.EOS, s.Speaker1, s.Speaker2, s.PAD}
}

var defaultSpecials = SpecialTokens{
	BOS:      byteTokens,
	EOS:      byteTokens + 1,
	Speaker1: byteTokens + 2,
	Speaker2: byteTokens + 3,
	PAD:      byteTokens + 4,
}

var specialNames = map[int]string{
	defaultSpecials.BOS:      TokenBOS,
	defaultSpecials.EOS:      TokenEOS,
	defaultSpecials.Speaker1: TokenSpeaker1,
	defaultSpecials.Speaker2: TokenSpeaker2,
	defaultSpecials.PAD:      TokenPAD,
}

// pieceRE splits text GPT-2 style: a word keeps its leading space so that
// concatenating the pieces always restores the input.
var pieceRE = regexp.MustCompile(`'(?:s|t|re|ve|m|ll|d)| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// WordTokenizer maps frequent pieces to word ids and falls back to raw
// bytes for everything else, so any valid UTF-8 text round-trips.
type WordTokenizer struct {
	words []string
	index map[string]int
}

// NewWordTokenizer builds a tokenizer over an explicit word list.
func NewWordTokenizer(words []string) *WordTokenizer {
	t := &WordTokenizer{index: make(map[string]int, len(words))}
	for _, w := range words {
		if w == "" || len(w) == 1 {
			// single bytes are already covered by the byte range
			continue
		}
		if _, ok := t.index[w]; ok {
			continue
		}
		t.index[w] = firstWordID + len(t.words)
		t.words = append(t.words, w)
	}
	return t
}

// BuildTokenizer learns the maxWords most frequent pieces of corpus.
func BuildTokenizer(corpus []string, maxWords int) *WordTokenizer {
	counts := make(map[string]int)
	for _, line := range corpus {
		for _, p := range pieceRE.FindAllString(line, -1) {
			if len(p) > 1 {
				counts[p]++
			}
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return NewWordTokenizer(words)
}

// Words returns the learned vocabulary in id order.
func (t *WordTokenizer) Words() []string {
	return append([]string(nil), t.words...)
}

func (t *WordTokenizer) Specials() SpecialTokens {
	return defaultSpecials
}

func (t *WordTokenizer) VocabSize() int {
	return firstWordID + len(t.words)
}

// Encode tokenizes text. Invalid UTF-8, blank input and control characters
// other than tab and newline are rejected with an *EncodingError.
func (t *WordTokenizer) Encode(text string) ([]int, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(text)/3+1)
	for _, p := range pieceRE.FindAllString(text, -1) {
		if id, ok := t.index[p]; ok {
			ids = append(ids, id)
			continue
		}
		for i := 0; i < len(p); i++ {
			ids = append(ids, int(p[i]))
		}
	}
	return ids, nil
}

// Decode renders ids back to text, skipping control tokens and unknown ids.
func (t *WordTokenizer) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		switch {
		case id >= 0 && id < byteTokens:
			b.WriteByte(byte(id))
		case id >= firstWordID && id < t.VocabSize():
			b.WriteString(t.words[id-firstWordID])
		}
	}
	return strings.ToValidUTF8(b.String(), "")
}

// TokenString returns a printable form of a single id, used in logs.
func (t *WordTokenizer) TokenString(id int) string {
	if name, ok := specialNames[id]; ok {
		return name
	}
	return t.Decode([]int{id})
}

// ValidateText applies the input rules Encode enforces without tokenizing.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return &EncodingError{Input: text, Reason: "invalid UTF-8"}
	}
	if strings.TrimSpace(text) == "" {
		return &EncodingError{Input: text, Reason: "empty input"}
	}
	for _, r := range text {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) {
			return &EncodingError{Input: text, Reason: "control character in input"}
		}
	}
	return nil
}
