// Package bacon generates Autama personalities.
package bacon

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

// FullPersonality is everything needed to register an Autama.
type FullPersonality struct {
	Name   string   `json:"name"`
	Traits []string `json:"traits"`
}

// Generator draws personalities from dataset personas when available and
// composes them from the trait pool otherwise.
type Generator struct {
	mu            sync.Mutex
	rng           *rand.Rand
	pool          Pool
	personalities [][]string
}

// New builds a Generator. A zero seed seeds from the clock.
func New(pool Pool, personalities [][]string, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if pool.TraitsPerPersona == 0 {
		pool.TraitsPerPersona = 4
	}
	return &Generator{
		rng:           rand.New(rand.NewSource(seed)),
		pool:          pool,
		personalities: personalities,
	}
}

// GenerateFullPersonality returns a fresh name and trait list.
func (g *Generator) GenerateFullPersonality(ctx context.Context) (FullPersonality, error) {
	if err := ctx.Err(); err != nil {
		return FullPersonality{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	full := FullPersonality{
		Name:   g.name(),
		Traits: g.traits(),
	}
	log.Printf("[bacon] generated personality name=%s traits=%d", full.Name, len(full.Traits))
	return full, nil
}

// GeneratePersonality returns only the trait list.
func (g *Generator) GeneratePersonality(ctx context.Context) ([]string, error) {
	full, err := g.GenerateFullPersonality(ctx)
	if err != nil {
		return nil, err
	}
	return full.Traits, nil
}

func (g *Generator) name() string {
	first := g.pool.Names.First[g.rng.Intn(len(g.pool.Names.First))]
	if len(g.pool.Names.Last) == 0 {
		return first
	}
	return first + " " + g.pool.Names.Last[g.rng.Intn(len(g.pool.Names.Last))]
}

func (g *Generator) traits() []string {
	if len(g.personalities) > 0 {
		picked := g.personalities[g.rng.Intn(len(g.personalities))]
		return append([]string(nil), picked...)
	}

	order := g.rng.Perm(len(g.pool.Categories))
	traits := make([]string, 0, g.pool.TraitsPerPersona)
	for _, idx := range order {
		if len(traits) == g.pool.TraitsPerPersona {
			break
		}
		options := g.pool.Categories[idx].Traits
		if len(options) == 0 {
			continue
		}
		traits = append(traits, options[g.rng.Intn(len(options))])
	}
	return traits
}
