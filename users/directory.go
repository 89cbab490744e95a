package users

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/recovery-portal/internal/errors"
)

// RouteByEmail is the backend endpoint resolving a profile from an email address.
const RouteByEmail = "/users/by-email"

// Directory looks profiles up in the recovery units backend, authenticating
// with the user's own access token.
type Directory struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

type DirectoryOption func(*Directory)

func WithHTTPClient(c *http.Client) DirectoryOption {
	return func(d *Directory) {
		d.httpClient = c
	}
}

func NewDirectory(baseURL string, options ...DirectoryOption) *Directory {
	d := &Directory{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		validate:   newValidator(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// newValidator accepts only roles that have a dashboard.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("portal_role", func(fl validator.FieldLevel) bool {
		role := Role(fl.Field().String())
		return slices.Contains(Roles(), role)
	})
	return v
}

// LookupByEmail fetches and validates the profile registered for email.
// Every failure is reported as ErrProfileFetch.
func (d *Directory) LookupByEmail(ctx context.Context, accessToken, email string) (*Profile, error) {
	if email == "" {
		return nil, errors.Wrapf(errors.ErrProfileFetch, "[users LookupByEmail] empty email")
	}

	u := d.baseURL + RouteByEmail + "?" + url.Values{"email": {email}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Join(errors.ErrProfileFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(errors.ErrProfileFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Wrapf(errors.ErrProfileFetch, "[users LookupByEmail] backend returned %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, errors.Join(errors.ErrProfileFetch, fmt.Errorf("decode profile: %w", err))
	}
	if err := d.validate.Struct(&profile); err != nil {
		return nil, errors.Join(errors.ErrProfileFetch, err)
	}
	return &profile, nil
}
