package access

import (
	"strconv"
	"time"

	"verdant/internal/audit"
	id "verdant/pkg/domain"
)

// WildcardCapability satisfies every resource/action pair. Only the seeded
// Admin role carries it.
const WildcardCapability id.Capability = "*:*"

// Role is a named set of capabilities. Built-in roles are seeded at startup
// and cannot be modified or deleted; custom roles carry arbitrary sets.
type Role struct {
	ID          id.RoleID
	Name        string
	Description string
	Permissions []id.Capability
	BuiltIn     bool
}

// Grants reports whether the role's capability set covers resource:action.
func (r *Role) Grants(resource id.ResourceType, action id.Action) bool {
	want := id.NewCapability(resource, action)
	for _, capability := range r.Permissions {
		if capability == want || capability == WildcardCapability {
			return true
		}
	}
	return false
}

// AuditSnapshot flattens the role's tracked fields for diffing.
func (r *Role) AuditSnapshot() audit.Snapshot {
	perms := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		perms[i] = p.String()
	}
	return audit.Snapshot{
		"Name":        r.Name,
		"Description": r.Description,
		"Permissions": audit.JoinSet(perms),
	}
}

// User is a platform user as the governance core sees one: role membership,
// activity flag, and an optional standing-access expiry.
type User struct {
	ID              id.UserID
	Name            string
	Email           string
	RoleIDs         []id.RoleID
	IsActive        bool
	AccessExpiresAt *time.Time
}

// AccessExpired reports whether the user's standing access has lapsed. An
// unset expiry never lapses.
func (u *User) AccessExpired(now time.Time) bool {
	return u.AccessExpiresAt != nil && u.AccessExpiresAt.Before(now)
}

// AuditSnapshot flattens the user's tracked fields for diffing.
func (u *User) AuditSnapshot() audit.Snapshot {
	roles := make([]string, len(u.RoleIDs))
	for i, r := range u.RoleIDs {
		roles[i] = r.String()
	}
	expires := ""
	if u.AccessExpiresAt != nil {
		expires = u.AccessExpiresAt.UTC().Format(time.RFC3339)
	}
	return audit.Snapshot{
		"Name":            u.Name,
		"Email":           u.Email,
		"RoleIds":         audit.JoinSet(roles),
		"IsActive":        strconv.FormatBool(u.IsActive),
		"AccessExpiresAt": expires,
	}
}

// SectionAccessGrant confers section-scoped access to a user outside their
// role's default scope. Expired grants are inert but retained for their audit
// value.
type SectionAccessGrant struct {
	SectionID id.SectionID
	UserID    id.UserID
	GrantedBy id.UserID
	GrantedAt time.Time
	ExpiresAt *time.Time
}

// IsActive reports whether the grant currently confers access.
func (g SectionAccessGrant) IsActive(now time.Time) bool {
	return g.ExpiresAt == nil || !g.ExpiresAt.Before(now)
}

// AuditSnapshot flattens the grant's tracked fields for diffing.
func (g SectionAccessGrant) AuditSnapshot() audit.Snapshot {
	expires := ""
	if g.ExpiresAt != nil {
		expires = g.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return audit.Snapshot{
		"SectionId": g.SectionID.String(),
		"UserId":    g.UserID.String(),
		"GrantedBy": g.GrantedBy.String(),
		"ExpiresAt": expires,
	}
}

// Decision is the structured outcome of a permission check. Denials are a
// first-class result, never an error.
type Decision struct {
	Allowed        bool
	DenialReason   string
	EvaluatedRoles []string
}

// Matrix is the resolved role → resource → actions projection used by
// administration surfaces. Derivable purely from role definitions.
type Matrix struct {
	Roles         map[string]map[id.ResourceType][]id.Action
	ResourceTypes []id.ResourceType
	Actions       []id.Action
}
