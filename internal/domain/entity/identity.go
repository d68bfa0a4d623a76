package entity

import "time"

// Identity is the authenticated principal as reported by the external
// identity provider. It is read-only from this service's perspective;
// the provider owns credentials and verification state.
type Identity struct {
	ID              string
	Email           string
	EmailVerifiedAt *time.Time
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmailVerified reports whether the provider has confirmed the email.
func (i *Identity) EmailVerified() bool {
	return i != nil && i.EmailVerifiedAt != nil && !i.EmailVerifiedAt.IsZero()
}
