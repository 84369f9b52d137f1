package models

import "time"

// OrgType classifies an organization.
type OrgType string

const (
	OrgTypeIndividual OrgType = "individual"
	OrgTypeTeam       OrgType = "team"
	OrgTypeEnterprise OrgType = "enterprise"
)

// MemberRole is a user's role within an organization (or the system).
type MemberRole string

const (
	RoleAdmin MemberRole = "admin"
	RoleUser  MemberRole = "user"
)

// OrganizationMember binds a user to an organization with a role.
type OrganizationMember struct {
	UserID string     `json:"user_id"`
	Role   MemberRole `json:"role"`
}

// Organization groups users, documents and configuration. Invariant: at
// least one member holds the admin role, and names are unique
// case-insensitively across the system.
type Organization struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Type      OrgType              `json:"type"`
	Members   []OrganizationMember `json:"members"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// HasAdmin reports whether at least one member is an admin.
func (o *Organization) HasAdmin() bool {
	for _, m := range o.Members {
		if m.Role == RoleAdmin {
			return true
		}
	}
	return false
}

// RoleOf returns the role of the given user, or "" if not a member.
func (o *Organization) RoleOf(userID string) MemberRole {
	for _, m := range o.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

// User is a system account. At least one user with the system admin role
// must always exist.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          MemberRole `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	HasPassword   bool       `json:"has_password"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AccessToken is an opaque bearer token. OrganizationID nil means the token
// is account-level and cannot act on org-scoped endpoints. The raw token is
// stored encrypted; TokenHash is the SHA-256 lookup key.
type AccessToken struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	TokenEncrypted string    `json:"-"`
	TokenHash      string    `json:"-"`
	TokenPrefix    string    `json:"token_prefix"`
	Lifetime       int64     `json:"lifetime"` // seconds; 0 = no expiry
	CreatedAt      time.Time `json:"created_at"`
}

// ExpiresAt returns the expiry time, or zero time when the token never
// expires.
func (t *AccessToken) ExpiresAt() time.Time {
	if t.Lifetime <= 0 {
		return time.Time{}
	}
	return t.CreatedAt.Add(time.Duration(t.Lifetime) * time.Second)
}

// Invitation is a pending org membership invitation. Mail transport is an
// external collaborator; only the record is persisted here.
type Invitation struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	Role           MemberRole `json:"role"`
	Token          string     `json:"-"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EmailVerification is a pending email verification token.
type EmailVerification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
