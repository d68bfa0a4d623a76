package entity

import "time"

// Profile statuses and roles as stored in the profiles table.
const (
	StatusActive = "active"
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Profile is the application-owned per-user record, keyed 1:1 by the
// provider identity id. Created out-of-band at account provisioning,
// read on every session establishment, mutated only through the
// profile service.
type Profile struct {
	ID                     string // identity provider user id
	Name                   string
	Email                  string
	Phone                  string
	Address                string
	City                   string
	Postcode               string
	Country                string
	Status                 string
	Role                   string
	RequiresPasswordChange bool
	PasswordChangedAt      *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// IsActive reports whether the account is in the active status.
func (p *Profile) IsActive() bool {
	return p != nil && p.Status == StatusActive
}
