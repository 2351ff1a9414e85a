package bacon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed data/traits.toml
var embeddedPool []byte

// Pool is the name and trait material personalities are composed from.
type Pool struct {
	TraitsPerPersona int        `toml:"traits_per_persona"`
	Names            Names      `toml:"names"`
	Categories       []Category `toml:"category"`
}

type Names struct {
	First []string `toml:"first"`
	Last  []string `toml:"last"`
}

// Category groups mutually exclusive traits; a persona takes at most one
// trait per category.
type Category struct {
	Name   string   `toml:"name"`
	Traits []string `toml:"traits"`
}

// DefaultPool returns the bundled pool.
func DefaultPool() (Pool, error) {
	return ParsePool(embeddedPool)
}

// LoadPool reads a pool file, falling back to the bundled pool when path
// is empty.
func LoadPool(path string) (Pool, error) {
	if path == "" {
		return DefaultPool()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Pool{}, fmt.Errorf("failed to read trait pool: %w", err)
	}
	return ParsePool(data)
}

// ParsePool decodes and validates a TOML pool.
func ParsePool(data []byte) (Pool, error) {
	var pool Pool
	if _, err := toml.Decode(string(data), &pool); err != nil {
		return Pool{}, fmt.Errorf("failed to parse trait pool: %w", err)
	}
	if err := pool.validate(); err != nil {
		return Pool{}, err
	}
	return pool, nil
}

func (p Pool) validate() error {
	if len(p.Names.First) == 0 {
		return errors.New("trait pool needs at least one first name")
	}
	nonEmpty := 0
	for _, c := range p.Categories {
		if len(c.Traits) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return errors.New("trait pool needs at least one trait")
	}
	if p.TraitsPerPersona < 0 {
		return fmt.Errorf("invalid traits_per_persona %d", p.TraitsPerPersona)
	}
	return nil
}
