package nucleus

import "math"

// SamplingConfig holds the decoding parameters of a conversation. It is
// passed by value at construction and never mutated afterwards.
type SamplingConfig struct {
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	TopK        int     `json:"topK" mapstructure:"top_k"`
	TopP        float64 `json:"topP" mapstructure:"top_p"`
	MinLength   int     `json:"minLength" mapstructure:"min_length"`
	MaxLength   int     `json:"maxLength" mapstructure:"max_length"`
	MaxHistory  int     `json:"maxHistory" mapstructure:"max_history"`
	NoSample    bool    `json:"noSample" mapstructure:"no_sample"`
}

// DefaultSamplingConfig mirrors the defaults Autama shipped with.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature: 0.7,
		TopK:        0,
		TopP:        0.9,
		MinLength:   1,
		MaxLength:   20,
		MaxHistory:  2,
		NoSample:    false,
	}
}

// Validate reports the first invalid field as a *ConfigError.
func (c SamplingConfig) Validate() error {
	if math.IsNaN(c.Temperature) || c.Temperature <= 0 {
		return &ConfigError{Field: "temperature", Value: c.Temperature, Message: "must be greater than 0"}
	}
	if c.TopK < 0 {
		return &ConfigError{Field: "top_k", Value: c.TopK, Message: "must be >= 0 (0 disables)"}
	}
	if math.IsNaN(c.TopP) || c.TopP > 1 {
		return &ConfigError{Field: "top_p", Value: c.TopP, Message: "must be <= 1 (<= 0 disables)"}
	}
	if c.MinLength < 0 {
		return &ConfigError{Field: "min_length", Value: c.MinLength, Message: "must be >= 0"}
	}
	if c.MaxLength < 1 {
		return &ConfigError{Field: "max_length", Value: c.MaxLength, Message: "must be >= 1"}
	}
	if c.MinLength > c.MaxLength {
		return &ConfigError{Field: "min_length", Value: c.MinLength, Message: "must not exceed max_length"}
	}
	if c.MaxHistory < 0 {
		return &ConfigError{Field: "max_history", Value: c.MaxHistory, Message: "must be >= 0"}
	}
	return nil
}

// HistoryLimit is the number of utterances a session retains.
func (c SamplingConfig) HistoryLimit() int {
	return 2*c.MaxHistory + 1
}
