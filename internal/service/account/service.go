// Package account handles sign-up, password login and API tokens.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/autama/autama/backend/internal/model/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// Service manages accounts on top of a user.Store.
type Service struct {
	users user.Store
	cost  int
}

// NewService returns a Service hashing with the given bcrypt cost; zero
// selects bcrypt.DefaultCost.
func NewService(users user.Store, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost}
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, username, password string, staff bool) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return user.User{}, ErrUsernameRequired
	}
	if len(password) < minPasswordLength {
		return user.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return user.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Username:     username,
		IsStaff:      staff,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		PasswordHash: string(hash),
	})
	if err != nil {
		return user.User{}, err
	}
	log.Printf("[account] registered user=%s staff=%v", u.Username, u.IsStaff)
	return u, nil
}

// Login checks the password and returns the user's token, issuing one on
// first login.
func (s *Service) Login(ctx context.Context, username, password string) (user.Token, error) {
	u, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, user.ErrNotFound) {
		return user.Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return user.Token{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.Token{}, ErrInvalidCredentials
	}

	token, err := s.users.TokenForUser(ctx, u.ID)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.Token{}, err
	}

	key, err := newTokenKey()
	if err != nil {
		return user.Token{}, err
	}
	token = user.Token{Key: key, UserID: u.ID, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	if err := s.users.SaveToken(ctx, token); err != nil {
		return user.Token{}, err
	}
	return token, nil
}

// Authenticate resolves a token key to its user.
func (s *Service) Authenticate(ctx context.Context, key string) (user.User, error) {
	if key == "" {
		return user.User{}, ErrInvalidToken
	}
	token, err := s.users.FindToken(ctx, key)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, ErrInvalidToken
	}
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.FindByID(ctx, token.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, ErrInvalidToken
	}
	return u, err
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.users.List(ctx)
}

// newTokenKey returns 40 hex characters.
func newTokenKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
