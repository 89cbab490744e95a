package token

import (
	"time"

	"github.com/jrsteele09/recovery-portal/internal/errors"
)

// Record is the persisted result of a code exchange or refresh. Timestamps are
// milliseconds since the Unix epoch.
type Record struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"` // Empty when the provider issued none
	TokenType    string   `json:"token_type"`
	IssuedAt     int64    `json:"issued_at"`
	Expiry       int64    `json:"expiry"` // IssuedAt + expires_in*1000
	Scope        []string `json:"scope,omitempty"`
	StoredAt     int64    `json:"stored_at"`
	SessionID    string   `json:"session_id"` // Unique per login, kept across refreshes
}

// Validate rejects records that must never be stored.
func (r *Record) Validate() error {
	if r == nil || r.AccessToken == "" {
		return errors.Wrapf(errors.ErrInvalidRecord, "[token Validate] missing access_token")
	}
	return nil
}

// ExpiresAt returns Expiry as a time.Time.
func (r *Record) ExpiresAt() time.Time {
	return time.UnixMilli(r.Expiry)
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Scope = append([]string(nil), r.Scope...)
	return &c
}

// ExpiryFrom derives the absolute expiry from the issue time and the provider's expires_in (seconds).
func ExpiryFrom(issuedAt time.Time, expiresIn int64) int64 {
	return issuedAt.UnixMilli() + expiresIn*1000
}
