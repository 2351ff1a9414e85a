// Package app assembles the Autama services from configuration. It is
// shared by the API server and the command-line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/autama/autama/backend/internal/config"
	"github.com/autama/autama/backend/internal/handler"
	"github.com/autama/autama/backend/internal/model/chat"
	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/model/user"
	"github.com/autama/autama/backend/internal/service/account"
	"github.com/autama/autama/backend/internal/service/autama"
	"github.com/autama/autama/backend/internal/service/bacon"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/internal/service/engine"
	"github.com/autama/autama/backend/internal/storage/sqlstore"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Engine   *engine.Engine
	Personas persona.Store
	Users    user.Store
	Messages chat.MessageStore
	Autamas  *autama.Service
	Accounts *account.Service
	Chat     *chatservice.Service

	db *sqlstore.DB
}

// New opens storage, prepares the conversation engine and wires services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, cfg.Nucleus, cfg.AI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start conversation engine: %w", err)
	}
	a.Engine = eng

	generator, err := NewGenerator(cfg, eng.Personalities())
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Autamas = autama.NewService(a.Personas, generator)
	a.Autamas.SetMaxAmount(cfg.Bacon.MaxAmount)
	a.Accounts = account.NewService(a.Users, cfg.Auth.BcryptCost)
	a.Chat = chatservice.NewService(a.Personas, a.Messages, eng, cfg.Nucleus.ModelTimeout)

	if err := a.ensureAdmin(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewGenerator builds the personality generator from the configured trait
// pool and the dataset personalities.
func NewGenerator(cfg *config.Config, personalities [][]string) (*bacon.Generator, error) {
	var (
		pool bacon.Pool
		err  error
	)
	if cfg.Bacon.TraitsFile != "" {
		pool, err = bacon.LoadPool(cfg.Bacon.TraitsFile)
	} else {
		pool, err = bacon.DefaultPool()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trait pool: %w", err)
	}
	return bacon.New(pool, personalities, cfg.Nucleus.Seed), nil
}

func (a *App) openStores(ctx context.Context) error {
	driver := a.Config.Store.Driver
	if driver == "memory" {
		a.Personas = persona.NewMemoryStore(persona.Seed())
		a.Users = user.NewMemoryStore()
		a.Messages = chat.NewMemoryMessageStore()
		log.Println("[app] using in-memory storage")
		return nil
	}

	db, err := sqlstore.Open(ctx, driver, a.Config.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	personas := db.Personas()
	if err := personas.Seed(ctx, persona.Seed()); err != nil {
		db.Close()
		return fmt.Errorf("failed to seed personas: %w", err)
	}

	a.db = db
	a.Personas = personas
	a.Users = db.Users()
	a.Messages = db.Messages()
	log.Printf("[app] using %s storage at %s", driver, a.Config.Store.DSN)
	return nil
}

// ensureAdmin creates the configured staff account when it is missing.
func (a *App) ensureAdmin(ctx context.Context) error {
	auth := a.Config.Auth
	if auth.AdminUsername == "" {
		return nil
	}
	_, err := a.Accounts.Register(ctx, auth.AdminUsername, auth.AdminPassword, true)
	switch {
	case err == nil:
		log.Printf("[app] created staff account %s", auth.AdminUsername)
		return nil
	case errors.Is(err, user.ErrDuplicate):
		return nil
	default:
		return fmt.Errorf("failed to create staff account: %w", err)
	}
}

// Handler returns the HTTP API for the wired services.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(handler.Services{
		Personas:      a.Personas,
		Autamas:       a.Autamas,
		Accounts:      a.Accounts,
		Chat:          a.Chat,
		DefaultAmount: a.Config.Bacon.Amount,
	})
}

// Close releases storage.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
