// Package authflow keeps the two session-scoped values of a login round trip:
// the pending redirect and the CSRF state token.
package authflow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/storage"
)

const (
	redirectKey = "auth_redirect_after"
	stateKey    = "auth_state"

	stateLength = 32
)

// DefaultRedirect is where a user lands after login when no destination was recorded.
const DefaultRedirect = "/dashboard"

type Store struct {
	session storage.Storage
}

func New(session storage.Storage) *Store {
	return &Store{session: session}
}

// RememberRedirect records path as the pending redirect, replacing any previous one.
func (s *Store) RememberRedirect(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.session.Set(ctx, redirectKey, path); err != nil {
		return fmt.Errorf("[authflow RememberRedirect] %w", err)
	}
	return nil
}

// PendingRedirect returns the recorded path without consuming it.
func (s *Store) PendingRedirect(ctx context.Context) (string, error) {
	path, err := s.session.Get(ctx, redirectKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return path, err
}

// ConsumeRedirect returns the pending redirect (or DefaultRedirect) and deletes it.
func (s *Store) ConsumeRedirect(ctx context.Context) (string, error) {
	path, err := s.PendingRedirect(ctx)
	if err != nil {
		return DefaultRedirect, fmt.Errorf("[authflow ConsumeRedirect] %w", err)
	}
	if err := s.session.Delete(ctx, redirectKey); err != nil {
		return DefaultRedirect, fmt.Errorf("[authflow ConsumeRedirect] %w", err)
	}
	if path == "" {
		return DefaultRedirect, nil
	}
	return path, nil
}

// NewState generates and persists a fresh CSRF state token.
func (s *Store) NewState(ctx context.Context) (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[authflow NewState] %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	if err := s.session.Set(ctx, stateKey, state); err != nil {
		return "", fmt.Errorf("[authflow NewState] %w", err)
	}
	return state, nil
}

// VerifyState compares the callback state with the persisted one. The persisted
// token is consumed whatever the outcome, so a state can be checked only once.
// A state that could not be consumed is rejected.
func (s *Store) VerifyState(ctx context.Context, state string) error {
	saved, err := s.session.Get(ctx, stateKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Join(errors.ErrCSRFMismatch, err)
	}
	if saved == "" {
		return errors.ErrCSRFMismatch
	}
	if err := s.session.Delete(ctx, stateKey); err != nil {
		return errors.Join(errors.ErrCSRFMismatch, fmt.Errorf("[authflow VerifyState] consume state: %w", err))
	}

	if state == "" || subtle.ConstantTimeCompare([]byte(saved), []byte(state)) != 1 {
		return errors.ErrCSRFMismatch
	}
	return nil
}

// Clear drops both values.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.session.Delete(ctx, stateKey); err != nil {
		return fmt.Errorf("[authflow Clear] %w", err)
	}
	if err := s.session.Delete(ctx, redirectKey); err != nil {
		return fmt.Errorf("[authflow Clear] %w", err)
	}
	return nil
}
