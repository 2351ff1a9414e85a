package nucleus

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks an invalid sampling configuration.
	ErrConfig = errors.New("invalid sampling config")
	// ErrEncoding marks user input that cannot be tokenized.
	ErrEncoding = errors.New("input cannot be encoded")
	// ErrModelUnavailable marks a language model that could not produce a reply.
	ErrModelUnavailable = errors.New("language model unavailable")
)

// ConfigError describes the offending SamplingConfig field.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sampling config %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// EncodingError is returned when user text is rejected by the tokenizer.
type EncodingError struct {
	Input  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %q: %s", truncate(e.Input, 32), e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return ErrEncoding
}

// ModelError wraps a failure of the LanguageModel capability. It always
// matches ErrModelUnavailable and keeps the underlying cause reachable.
type ModelError struct {
	Backend string
	Err     error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("language model %s: %v", e.Backend, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) Is(target error) bool {
	return target == ErrModelUnavailable
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
