package nucleus

import (
	"context"
	"errors"
	"strings"
)

// State is the lifecycle state of a Session.
type State int

const (
	// Idle means no utterance has been recorded yet.
	Idle State = iota
	// Active means the history holds at least one utterance.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Session owns the bounded dialogue history of one user and one persona.
// It is not safe for concurrent use; callers serialize Converse calls.
type Session struct {
	persona Persona
	cfg     SamplingConfig
	model   LanguageModel
	tok     Tokenizer
	history *History
}

// NewSession validates cfg and returns an idle session bound to persona.
func NewSession(persona Persona, cfg SamplingConfig, model LanguageModel, tok Tokenizer) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		persona: persona,
		cfg:     cfg,
		model:   model,
		tok:     tok,
		history: NewHistory(cfg.MaxHistory),
	}, nil
}

// EncodePersona tokenizes trait sentences. Blank traits are skipped.
func EncodePersona(id string, traits []string, tok Tokenizer) (Persona, error) {
	p := Persona{ID: id, Traits: make([][]int, 0, len(traits))}
	for _, trait := range traits {
		if strings.TrimSpace(trait) == "" {
			continue
		}
		ids, err := tok.Encode(trait)
		if err != nil {
			return Persona{}, err
		}
		p.Traits = append(p.Traits, ids)
	}
	return p, nil
}

// Converse records userText, asks the model for a reply, records the reply
// and returns it as text. A rejected input or a failed model call leaves
// the history exactly as it was.
func (s *Session) Converse(ctx context.Context, userText string) (string, error) {
	ids, err := s.tok.Encode(strings.TrimSpace(userText))
	if err != nil {
		return "", err
	}

	before := s.history.snapshot()
	s.history.Append(Utterance{Role: RoleUser, Tokens: ids})

	out, err := s.model.Sample(ctx, s.persona, s.history.view(), s.cfg)
	if err != nil {
		s.history.restore(before)
		var cfgErr *ConfigError
		var modelErr *ModelError
		if errors.As(err, &cfgErr) || errors.As(err, &modelErr) {
			return "", err
		}
		return "", &ModelError{Backend: "session", Err: err}
	}

	out = s.clean(out)
	s.history.Append(Utterance{Role: RoleModel, Tokens: out})

	return strings.TrimSpace(s.tok.Decode(out)), nil
}

// clean cuts model output at the first control token and at max_length.
func (s *Session) clean(out []int) []int {
	special := s.tok.Specials()
	cleaned := make([]int, 0, min(len(out), s.cfg.MaxLength))
	for _, id := range out {
		if special.IsSpecial(id) || len(cleaned) == s.cfg.MaxLength {
			break
		}
		cleaned = append(cleaned, id)
	}
	return cleaned
}

// State reports whether the session has recorded anything yet.
func (s *Session) State() State {
	if s.history.Len() == 0 {
		return Idle
	}
	return Active
}

// History returns a copy of the retained utterances, oldest first.
func (s *Session) History() []Utterance {
	return s.history.Items()
}

// Persona returns the persona the session is bound to.
func (s *Session) Persona() Persona {
	return s.persona
}

// Config returns the session's sampling configuration.
func (s *Session) Config() SamplingConfig {
	return s.cfg
}
