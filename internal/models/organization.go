package models

import "time"

// Organization is a tenant: a school network or institution holding its own
// admissions, students and users.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TenantScope is the tenant predicate derived from the caller's claims.
// A zero OrganizationID with AllTenants set means the caller may see every
// organization (SUPERADMIN).
type TenantScope struct {
	OrganizationID string
	AllTenants     bool
}

// Allows reports whether the scope covers the given organization.
func (s TenantScope) Allows(organizationID string) bool {
	if s.AllTenants {
		return true
	}
	return s.OrganizationID != "" && s.OrganizationID == organizationID
}
