package access

import (
	"context"

	id "verdant/pkg/domain"
)

// RoleStore persists role definitions.
type RoleStore interface {
	Save(ctx context.Context, role *Role) error
	FindByID(ctx context.Context, roleID id.RoleID) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Delete(ctx context.Context, roleID id.RoleID) error
}

// UserStore persists platform users as the governance core sees them.
type UserStore interface {
	Save(ctx context.Context, user *User) error
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
}

// GrantStore persists section access grants. Grants are never deleted on
// expiry; revocation removes them explicitly (and is audited by the service).
type GrantStore interface {
	Save(ctx context.Context, grant SectionAccessGrant) error
	Find(ctx context.Context, sectionID id.SectionID, userID id.UserID) (*SectionAccessGrant, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]SectionAccessGrant, error)
	Remove(ctx context.Context, sectionID id.SectionID, userID id.UserID) error
}
