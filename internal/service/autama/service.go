// Package autama registers Autama personas, one at a time or in bulk.
package autama

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
	"github.com/autama/autama/backend/internal/service/bacon"
)

var (
	ErrNameRequired  = errors.New("autama name is required")
	ErrInvalidAmount = errors.New("mass-produce amount out of range")
)

const (
	// DefaultAmount is how many Autamas one mass-production run creates.
	DefaultAmount = 2
	// MaxAmount caps a single mass-production run unless overridden.
	MaxAmount = 100
)

// Generator produces personalities.
type Generator interface {
	GenerateFullPersonality(ctx context.Context) (bacon.FullPersonality, error)
}

// Service wires the personality generator to the persona store.
type Service struct {
	personas  persona.Store
	generator Generator
	maxAmount int
}

func NewService(personas persona.Store, generator Generator) *Service {
	return &Service{personas: personas, generator: generator, maxAmount: MaxAmount}
}

// SetMaxAmount changes the per-run cap. Values below 1 restore MaxAmount.
func (s *Service) SetMaxAmount(n int) {
	if n < 1 {
		n = MaxAmount
	}
	s.maxAmount = n
}

// validateTraits rejects traits the conversation engine could never encode.
func validateTraits(traits []string) error {
	for _, trait := range persona.NormalizeTraits(traits) {
		if err := nucleus.ValidateText(trait); err != nil {
			return fmt.Errorf("invalid trait %q: %w", trait, err)
		}
	}
	return nil
}

// Register stores a hand-written Autama.
func (s *Service) Register(ctx context.Context, name string, traits []string, creator string) (persona.Persona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return persona.Persona{}, ErrNameRequired
	}
	if err := validateTraits(traits); err != nil {
		return persona.Persona{}, err
	}
	p, err := s.personas.Create(ctx, name, traits, creator)
	if err != nil {
		return persona.Persona{}, err
	}
	log.Printf("[autama] registered persona=%s creator=%s", p.ID, creator)
	return p, nil
}

// MassProduce generates and stores amount Autamas in sequence. On failure
// it returns the personas created so far along with the error.
func (s *Service) MassProduce(ctx context.Context, amount int, creator string) ([]persona.Persona, error) {
	if amount <= 0 || amount > s.maxAmount {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidAmount, amount, s.maxAmount)
	}

	var created []persona.Persona
	for i := 0; i < amount; i++ {
		full, err := s.generator.GenerateFullPersonality(ctx)
		if err != nil {
			return created, fmt.Errorf("failed to generate personality %d/%d: %w", i+1, amount, err)
		}
		if err := validateTraits(full.Traits); err != nil {
			return created, fmt.Errorf("generated personality %d/%d: %w", i+1, amount, err)
		}
		p, err := s.personas.Create(ctx, full.Name, full.Traits, creator)
		if err != nil {
			return created, fmt.Errorf("failed to store personality %d/%d: %w", i+1, amount, err)
		}
		created = append(created, p)
	}

	log.Printf("[autama] mass-produced %d personas for creator=%s", len(created), creator)
	return created, nil
}
