package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/autama/autama/backend/internal/model/persona"
)

// PersonaStore implements persona.Store.
type PersonaStore struct {
	db *sql.DB
}

var _ persona.Store = (*PersonaStore)(nil)

func (s *PersonaStore) Create(ctx context.Context, name string, traits []string, creator string) (persona.Persona, error) {
	traits = persona.NormalizeTraits(traits)
	if len(traits) == 0 {
		return persona.Persona{}, persona.ErrTraitsRequired
	}

	p := persona.Persona{
		ID:        uuid.NewString(),
		Name:      name,
		Traits:    traits,
		Creator:   creator,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.insert(ctx, p, false); err != nil {
		return persona.Persona{}, err
	}
	return p, nil
}

// Seed inserts personas whose ids are not stored yet.
func (s *PersonaStore) Seed(ctx context.Context, items []persona.Persona) error {
	for _, p := range items {
		if err := s.insert(ctx, p, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *PersonaStore) insert(ctx context.Context, p persona.Persona, ignoreExisting bool) error {
	traits, err := sonic.MarshalString(p.Traits)
	if err != nil {
		return fmt.Errorf("failed to encode traits: %w", err)
	}

	stmt := `INSERT INTO personas (id, name, traits, creator, created_at) VALUES (?, ?, ?, ?, ?)`
	if ignoreExisting {
		stmt = `INSERT OR IGNORE INTO personas (id, name, traits, creator, created_at) VALUES (?, ?, ?, ?, ?)`
	}
	if _, err := s.db.ExecContext(ctx, stmt, p.ID, p.Name, traits, p.Creator, toUnix(p.CreatedAt)); err != nil {
		return fmt.Errorf("failed to store persona: %w", err)
	}
	return nil
}

func (s *PersonaStore) List(ctx context.Context) ([]persona.Persona, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, traits, creator, created_at FROM personas ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	var out []persona.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PersonaStore) FindByID(ctx context.Context, id string) (persona.Persona, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, traits, creator, created_at FROM personas WHERE id = ?`, id)
	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persona.Persona{}, persona.ErrNotFound
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPersona(row scanner) (persona.Persona, error) {
	var (
		p       persona.Persona
		traits  string
		created int64
	)
	if err := row.Scan(&p.ID, &p.Name, &traits, &p.Creator, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persona.Persona{}, err
		}
		return persona.Persona{}, fmt.Errorf("failed to scan persona: %w", err)
	}
	if err := sonic.UnmarshalString(traits, &p.Traits); err != nil {
		return persona.Persona{}, fmt.Errorf("failed to decode traits of %s: %w", p.ID, err)
	}
	p.CreatedAt = fromUnix(created)
	return p, nil
}
