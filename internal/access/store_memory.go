package access

import (
	"context"
	"strings"
	"sync"

	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
)

// InMemoryRoleStore keeps role definitions for the process lifetime.
type InMemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[id.RoleID]*Role
}

func NewInMemoryRoleStore() *InMemoryRoleStore {
	return &InMemoryRoleStore{roles: make(map[id.RoleID]*Role)}
}

func (s *InMemoryRoleStore) Save(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *role
	copied.Permissions = append([]id.Capability(nil), role.Permissions...)
	s.roles[role.ID] = &copied
	return nil
}

func (s *InMemoryRoleStore) FindByID(_ context.Context, roleID id.RoleID) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[roleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRole(role), nil
}

func (s *InMemoryRoleStore) FindByName(_ context.Context, name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if strings.EqualFold(role.Name, name) {
			return copyRole(role), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryRoleStore) List(_ context.Context) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]*Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, copyRole(role))
	}
	return roles, nil
}

func (s *InMemoryRoleStore) Delete(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if role.BuiltIn {
		return sentinel.ErrImmutable
	}
	delete(s.roles, roleID)
	return nil
}

func copyRole(role *Role) *Role {
	copied := *role
	copied.Permissions = append([]id.Capability(nil), role.Permissions...)
	return &copied
}

// InMemoryUserStore keeps users for the process lifetime.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*User)}
}

func (s *InMemoryUserStore) Save(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyUser(user), nil
}

func copyUser(user *User) *User {
	copied := *user
	copied.RoleIDs = append([]id.RoleID(nil), user.RoleIDs...)
	if user.AccessExpiresAt != nil {
		t := *user.AccessExpiresAt
		copied.AccessExpiresAt = &t
	}
	return &copied
}

type grantKey struct {
	section id.SectionID
	user    id.UserID
}

// InMemoryGrantStore keeps section access grants for the process lifetime.
// One grant per (section, user); re-granting overwrites the expiry.
type InMemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]SectionAccessGrant
}

func NewInMemoryGrantStore() *InMemoryGrantStore {
	return &InMemoryGrantStore{grants: make(map[grantKey]SectionAccessGrant)}
}

func (s *InMemoryGrantStore) Save(_ context.Context, grant SectionAccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{grant.SectionID, grant.UserID}] = grant
	return nil
}

func (s *InMemoryGrantStore) Find(_ context.Context, sectionID id.SectionID, userID id.UserID) (*SectionAccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantKey{sectionID, userID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &grant, nil
}

func (s *InMemoryGrantStore) ListByUser(_ context.Context, userID id.UserID) ([]SectionAccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []SectionAccessGrant
	for key, grant := range s.grants {
		if key.user == userID {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

func (s *InMemoryGrantStore) Remove(_ context.Context, sectionID id.SectionID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{sectionID, userID}
	if _, ok := s.grants[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.grants, key)
	return nil
}
