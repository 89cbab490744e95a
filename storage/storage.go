// Package storage is the key/value capability behind the per-browser
// "local" (persistent) and "session" (short-lived) scopes.
package storage

import (
	"context"
	"strings"

	"github.com/jrsteele09/recovery-portal/internal/errors"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.ErrNotFound

type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type scoped struct {
	parent Storage
	prefix string
}

// Scope namespaces every key of parent under the given segments, e.g.
// Scope(local, "browser", id) stores "token" as "browser:<id>:token".
func Scope(parent Storage, segments ...string) Storage {
	return &scoped{parent: parent, prefix: strings.Join(segments, ":") + ":"}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.parent.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.parent.Delete(ctx, s.prefix+key)
}
