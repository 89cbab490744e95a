package users

import (
	"encoding/json"
	"slices"
)

// Role is the portal role held by a profile in the recovery units backend.
type Role string

const (
	RoleStudent     Role = "student"
	RoleTeacher     Role = "teacher"
	RoleTreasury    Role = "treasury"
	RoleWelfare     Role = "welfare"
	RoleSecretariat Role = "secretariat"
)

// Roles lists every role with a dashboard.
func Roles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleTreasury, RoleWelfare, RoleSecretariat}
}

// In reports whether r is one of allowed. An empty allowed set means any role.
func (r Role) In(allowed ...Role) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, r)
}

// Profile is the backend's view of a user, looked up by email after login.
type Profile struct {
	ID             string `json:"id,omitempty"`
	Role           Role   `json:"role" validate:"required,portal_role"`
	DocumentNumber string `json:"document_number" validate:"required"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`

	// Extra keeps backend fields this package does not model (career, semester, ...).
	Extra map[string]any `json:"-"`
}

var profileFields = []string{"id", "role", "document_number", "name", "email"}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, f := range profileFields {
		delete(all, f)
	}
	*p = Profile(known)
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+len(profileFields))
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.ID != "" {
		out["id"] = p.ID
	}
	out["role"] = p.Role
	out["document_number"] = p.DocumentNumber
	if p.Name != "" {
		out["name"] = p.Name
	}
	if p.Email != "" {
		out["email"] = p.Email
	}
	return json.Marshal(out)
}

// Clone returns a deep copy; Extra values are copied shallowly.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Extra != nil {
		c.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
