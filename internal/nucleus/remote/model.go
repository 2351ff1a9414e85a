// Package remote adapts a hosted chat model to the nucleus LanguageModel
// contract: token history goes out as chat messages, the reply text comes
// back as tokens.
package remote

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/autama/autama/backend/internal/nucleus"
)

// Model implements nucleus.LanguageModel with an eino chat chain.
type Model struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	tok   nucleus.Tokenizer
	name  string
}

// New compiles the persona prompt chain around chatModel.
func New(ctx context.Context, chatModel model.ChatModel, tok nucleus.Tokenizer, name string) (*Model, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if name == "" {
		name = "remote"
	}
	return &Model{chain: runnable, tok: tok, name: name}, nil
}

// Sample sends the conversation to the hosted model. Greedy mode maps to
// temperature 0; max_length caps the reply after re-tokenization.
func (m *Model) Sample(ctx context.Context, persona nucleus.Persona, history []nucleus.Utterance, cfg nucleus.SamplingConfig) ([]int, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	input := m.buildChainInput(persona, history)

	temperature := float32(cfg.Temperature)
	if cfg.NoSample {
		temperature = 0
	}
	opts := []model.Option{
		model.WithTemperature(temperature),
		// replies are short; tokens here are pieces, not provider tokens
		model.WithMaxTokens(cfg.MaxLength * 4),
	}
	if cfg.TopP > 0 && !cfg.NoSample {
		opts = append(opts, model.WithTopP(float32(cfg.TopP)))
	}

	resp, err := m.chain.Invoke(ctx, input, compose.WithChatModelOption(opts...))
	if err != nil {
		return nil, &nucleus.ModelError{Backend: m.name, Err: err}
	}
	if resp == nil {
		return nil, &nucleus.ModelError{Backend: m.name, Err: fmt.Errorf("empty response")}
	}

	text := sanitize(resp.Content)
	if text == "" {
		log.Printf("[nucleus] %s returned an empty reply for persona=%s", m.name, persona.ID)
		return nil, nil
	}
	ids, err := m.tok.Encode(text)
	if err != nil {
		return nil, &nucleus.ModelError{Backend: m.name, Err: err}
	}
	if len(ids) > cfg.MaxLength {
		ids = ids[:cfg.MaxLength]
	}
	return ids, nil
}

func (m *Model) buildChainInput(persona nucleus.Persona, history []nucleus.Utterance) map[string]any {
	query := ""
	past := history
	if n := len(history); n > 0 && history[n-1].Role == nucleus.RoleUser {
		query = m.tok.Decode(history[n-1].Tokens)
		past = history[:n-1]
	}

	return map[string]any{
		"system":  m.buildSystemPrompt(persona),
		"history": m.buildHistoryMessages(past),
		"query":   query,
	}
}

func (m *Model) buildSystemPrompt(persona nucleus.Persona) string {
	var b strings.Builder
	b.WriteString("You are an Autama, a virtual persona chatting casually with a human.\n")
	b.WriteString("Stay in character. Reply with one or two short sentences.\n")
	if len(persona.Traits) > 0 {
		b.WriteString("\nYour personality:\n")
		for _, trait := range persona.Traits {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(m.tok.Decode(trait)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) buildHistoryMessages(history []nucleus.Utterance) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, u := range history {
		text := m.tok.Decode(u.Tokens)
		switch u.Role {
		case nucleus.RoleUser:
			messages = append(messages, schema.UserMessage(text))
		case nucleus.RoleModel:
			messages = append(messages, schema.AssistantMessage(text, nil))
		}
	}
	return messages
}

// sanitize drops control characters the tokenizer would reject.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
