package session

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// Profile is the business-level user record attached to a session. Profiles
// are replaced, never mutated, once published.
type Profile struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Role        UserRole `json:"role"`
	Active      bool     `json:"active"`
}

// Validate will run validation rules
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.UserID,
			validation.Required,
		),
		validation.Field(
			&p.Role,
			validation.Required,
			validation.In(RoleAuditor, RoleViewer, RoleSupervisorIT, RoleAdmin),
		),
	)
}

// Clone returns a copy so published profiles stay immutable.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cloned := *p
	return &cloned
}

// DefaultProfile is the least-privilege fallback used when no profile can be
// resolved and no cached copy exists. It keeps the application usable in
// read-only mode during backend outages.
func DefaultProfile(userID string) *Profile {
	return &Profile{
		UserID:      userID,
		DisplayName: "",
		Role:        DefaultRole,
		Active:      true,
	}
}
