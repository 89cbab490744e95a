package token

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/rs/zerolog/log"
)

// StorageKey is where the sealed record lives in the local scope.
const StorageKey = "rup_token"

// LegacyStorageKey is the plaintext key used by earlier releases.
const LegacyStorageKey = "google_token"

type location struct {
	st  storage.Storage
	key string
}

// Store persists one encrypted Record per browser.
type Store struct {
	primary storage.Storage
	cipher  Cipher
	legacy  []location
}

type StoreOption func(*Store)

// WithLegacyLocation registers an additional location that Clear must wipe.
func WithLegacyLocation(st storage.Storage, key string) StoreOption {
	return func(s *Store) {
		s.legacy = append(s.legacy, location{st: st, key: key})
	}
}

func NewStore(primary storage.Storage, cipher Cipher, options ...StoreOption) *Store {
	s := &Store{primary: primary, cipher: cipher}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Save replaces whatever was stored before.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("[token Save] marshal: %w", err)
	}
	sealed, err := s.cipher.Seal(payload)
	if err != nil {
		return err
	}
	if err := s.primary.Set(ctx, StorageKey, sealed); err != nil {
		return fmt.Errorf("[token Save] %w", err)
	}
	return nil
}

// Load returns nil, nil when nothing usable is stored. A payload that cannot be
// decrypted or decoded is wiped and reported as absent.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	sealed, err := s.primary.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[token Load] %w", err)
	}

	rec, err := s.decode(sealed)
	if err != nil {
		log.Debug().Err(err).Msg("Discarding unreadable token record")
		if clearErr := s.Clear(ctx); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	return rec, nil
}

func (s *Store) decode(sealed string) (*Record, error) {
	plaintext, err := s.cipher.Open(sealed)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, errors.Join(errors.ErrDecryption, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.Join(errors.ErrDecryption, err)
	}
	return &rec, nil
}

// Clear removes the record from every location ever used. It is idempotent.
func (s *Store) Clear(ctx context.Context) error {
	var firstErr error
	all := append([]location{{st: s.primary, key: StorageKey}}, s.legacy...)
	for _, loc := range all {
		if err := loc.st.Delete(ctx, loc.key); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("[token Clear] %s: %w", loc.key, err)
		}
	}
	return firstErr
}
