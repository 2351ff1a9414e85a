package nucleus

// Role tags the speaker of an utterance.
type Role int

const (
	RoleUser Role = iota
	RoleModel
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModel:
		return "model"
	default:
		return "unknown"
	}
}

// Utterance is one tokenized turn.
type Utterance struct {
	Role   Role
	Tokens []int
}

// History is an oldest-first list of utterances that never grows beyond
// its limit. Appending past the limit drops the oldest entries.
type History struct {
	limit int
	items []Utterance
}

// NewHistory returns an empty history bounded to 2*maxHistory+1 entries.
func NewHistory(maxHistory int) *History {
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &History{limit: 2*maxHistory + 1}
}

// Append adds u and trims the history back to its limit.
func (h *History) Append(u Utterance) {
	h.items = append(h.items, u)
	if over := len(h.items) - h.limit; over > 0 {
		h.items = append([]Utterance(nil), h.items[over:]...)
	}
}

// Len returns the number of retained utterances.
func (h *History) Len() int {
	return len(h.items)
}

// Limit returns the maximum number of retained utterances.
func (h *History) Limit() int {
	return h.limit
}

// Items returns a copy of the retained utterances, oldest first.
func (h *History) Items() []Utterance {
	out := make([]Utterance, len(h.items))
	for i, u := range h.items {
		out[i] = Utterance{Role: u.Role, Tokens: append([]int(nil), u.Tokens...)}
	}
	return out
}

// view exposes the backing slice to the sampling path without copying.
func (h *History) view() []Utterance {
	return h.items
}

// snapshot and restore let a failed turn leave the history untouched.
// Append never writes inside the region a snapshot covers.
func (h *History) snapshot() []Utterance {
	return h.items[:len(h.items):len(h.items)]
}

func (h *History) restore(items []Utterance) {
	h.items = items
}
