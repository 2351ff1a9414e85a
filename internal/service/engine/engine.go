// Package engine assembles the conversation engine from configuration:
// tokenizer, language model backend and sampling defaults.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/autama/autama/backend/internal/config"
	"github.com/autama/autama/backend/internal/dataset"
	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
	"github.com/autama/autama/backend/internal/nucleus/remote"
)

// Engine creates nucleus sessions that share one tokenizer and model.
type Engine struct {
	backend       string
	tok           nucleus.Tokenizer
	model         nucleus.LanguageModel
	sampling      nucleus.SamplingConfig
	personalities [][]string
}

// New loads the dataset, restores or trains the local model and wires the
// configured backend.
func New(ctx context.Context, cfg config.NucleusConfig, ai config.AIConfig) (*Engine, error) {
	ds, err := LoadDataset(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		tok   *nucleus.WordTokenizer
		ngram *nucleus.NGram
	)
	if cfg.ModelCheckpoint != "" {
		tok, ngram, err = nucleus.LoadCheckpoint(cfg.ModelCheckpoint)
		switch {
		case err == nil:
			log.Printf("[nucleus] restored checkpoint %s (vocab=%d)", cfg.ModelCheckpoint, tok.VocabSize())
		case errors.Is(err, os.ErrNotExist):
			tok, ngram = nil, nil
		default:
			return nil, err
		}
	}

	var lm nucleus.LanguageModel
	switch cfg.Backend {
	case config.BackendArk:
		if tok == nil {
			tok = nucleus.BuildTokenizer(ds.Corpus(), cfg.VocabSize)
		}
		chatModel, err := ai.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		lm, err = remote.New(ctx, chatModel, tok, config.BackendArk)
		if err != nil {
			return nil, err
		}
	case config.BackendLocal, "":
		if ngram == nil {
			tok, ngram, err = Train(ds, cfg.VocabSize)
			if err != nil {
				return nil, err
			}
			if cfg.ModelCheckpoint != "" {
				if err := nucleus.SaveCheckpoint(cfg.ModelCheckpoint, tok, ngram); err != nil {
					log.Printf("[nucleus] failed to save checkpoint: %v", err)
				}
			}
		}
		lm = nucleus.NewSampler(ngram, tok.Specials(), cfg.Seed)
	default:
		return nil, &nucleus.ConfigError{Field: "backend", Value: cfg.Backend, Message: "unknown backend"}
	}

	s := cfg.Sampling
	log.Printf("[nucleus] backend=%s temperature=%.2f top_k=%d top_p=%.2f min_length=%d max_length=%d max_history=%d no_sample=%v seed=%d",
		cfg.Backend, s.Temperature, s.TopK, s.TopP, s.MinLength, s.MaxLength, s.MaxHistory, s.NoSample, cfg.Seed)

	return NewFromParts(cfg.Backend, tok, lm, cfg.Sampling, ds.Personalities()), nil
}

// NewFromParts wraps already built components.
func NewFromParts(backend string, tok nucleus.Tokenizer, lm nucleus.LanguageModel, sampling nucleus.SamplingConfig, personalities [][]string) *Engine {
	if backend == "" {
		backend = config.BackendLocal
	}
	return &Engine{
		backend:       backend,
		tok:           tok,
		model:         lm,
		sampling:      sampling,
		personalities: personalities,
	}
}

// LoadDataset returns the configured corpus, or the bundled seed corpus
// when no dataset path is set.
func LoadDataset(ctx context.Context, cfg config.NucleusConfig) (*dataset.Dataset, error) {
	if cfg.DatasetPath == "" {
		return dataset.Seed()
	}
	return dataset.Load(ctx, dataset.Options{Path: cfg.DatasetPath, CachePath: cfg.DatasetCache})
}

// Train builds a vocabulary and fits the n-gram scorer on ds.
func Train(ds *dataset.Dataset, vocabSize int) (*nucleus.WordTokenizer, *nucleus.NGram, error) {
	tok := nucleus.BuildTokenizer(ds.Corpus(), vocabSize)
	ngram := nucleus.NewNGram(tok.VocabSize(), tok.Specials())
	turns, err := ngram.Fit(tok, ds.Dialogues())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to train model: %w", err)
	}
	log.Printf("[nucleus] trained n-gram model on %d turns (vocab=%d)", turns, tok.VocabSize())
	return tok, ngram, nil
}

// NewSession starts a conversation with p using the default sampling config.
func (e *Engine) NewSession(p persona.Persona) (*nucleus.Session, error) {
	return e.NewSessionWith(p, e.sampling)
}

// NewSessionWith starts a conversation with explicit sampling settings.
func (e *Engine) NewSessionWith(p persona.Persona, sampling nucleus.SamplingConfig) (*nucleus.Session, error) {
	encoded, err := nucleus.EncodePersona(p.ID, p.Traits, e.tok)
	if err != nil {
		return nil, err
	}
	return nucleus.NewSession(encoded, sampling, e.model, e.tok)
}

// Personalities returns the dataset personas available to the generator.
func (e *Engine) Personalities() [][]string {
	return e.personalities
}

func (e *Engine) Backend() string {
	return e.backend
}

func (e *Engine) Sampling() nucleus.SamplingConfig {
	return e.sampling
}
