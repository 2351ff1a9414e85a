package persona

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("persona not found")
	ErrTraitsRequired = errors.New("persona needs at least one trait")
)

// Persona is an Autama profile: a name plus the trait sentences the
// conversational engine is conditioned on. Personas never change once stored.
type Persona struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Traits    []string  `json:"traits"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeTraits trims every trait and drops empty ones.
func NormalizeTraits(traits []string) []string {
	out := make([]string, 0, len(traits))
	for _, trait := range traits {
		if trait = strings.TrimSpace(trait); trait != "" {
			out = append(out, trait)
		}
	}
	return out
}

func (p Persona) clone() Persona {
	p.Traits = append([]string(nil), p.Traits...)
	return p
}

// Seed provides the Autamas available on a fresh install.
func Seed() []Persona {
	created := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	return []Persona{
		{
			ID:        "a7c1f1d4-3c55-4d0e-9b1a-2f0d8f9a0001",
			Name:      "Marlo",
			Traits:    []string{"i love my dog.", "i work as a chef.", "i live in a small town.", "my favorite food is pasta."},
			Creator:   "system",
			CreatedAt: created,
		},
		{
			ID:        "a7c1f1d4-3c55-4d0e-9b1a-2f0d8f9a0002",
			Name:      "Juniper",
			Traits:    []string{"i like to read books.", "i have two cats.", "i drink a lot of tea.", "i am a teacher."},
			Creator:   "system",
			CreatedAt: created,
		},
		{
			ID:        "a7c1f1d4-3c55-4d0e-9b1a-2f0d8f9a0003",
			Name:      "Rook",
			Traits:    []string{"i play the guitar.", "i am a college student.", "i love rock music.", "i have a younger sister."},
			Creator:   "system",
			CreatedAt: created,
		},
	}
}
