package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verdant/internal/audit"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/requestcontext"
)

// =============================================================================
// Permission Engine Test Suite
// =============================================================================
// Justification for unit tests: permission evaluation combines role union,
// temporal expiry, grant fallback, and audit emission; the combinations are
// impractical to exercise through HTTP tests alone.

type EngineSuite struct {
	suite.Suite
	roles      *InMemoryRoleStore
	users      *InMemoryUserStore
	grants     *InMemoryGrantStore
	auditStore *audit.InMemoryStore
	engine     *Engine
	ctx        context.Context
	now        time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.roles = NewInMemoryRoleStore()
	s.users = NewInMemoryUserStore()
	s.grants = NewInMemoryGrantStore()
	s.auditStore = audit.NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.Require().NoError(SeedBuiltInRoles(s.ctx, s.roles))

	var err error
	s.engine, err = New(s.roles, s.users, s.grants, audit.NewLog(s.auditStore), audit.NewDiffer())
	s.Require().NoError(err)
}

func (s *EngineSuite) userWithRole(roleName string) *User {
	role, err := s.roles.FindByName(s.ctx, roleName)
	s.Require().NoError(err)
	user := &User{
		ID:       id.NewUserID(),
		Name:     "Test User",
		Email:    "user@example.com",
		RoleIDs:  []id.RoleID{role.ID},
		IsActive: true,
	}
	s.Require().NoError(s.users.Save(s.ctx, user))
	return user
}

func (s *EngineSuite) checkEntries() []audit.Entry {
	entries, err := s.auditStore.List(s.ctx, audit.Filter{EntityType: audit.EntityPermission})
	s.Require().NoError(err)
	return entries
}

// =============================================================================
// CheckPermission
// =============================================================================

func (s *EngineSuite) TestCheckPermission() {
	s.Run("unknown user is denied with user not found", func() {
		decision, err := s.engine.CheckPermission(s.ctx, id.NewUserID(), id.ResourceExports, id.ActionExport)
		s.Require().NoError(err)
		s.False(decision.Allowed)
		s.Equal("User not found", decision.DenialReason)
	})

	s.Run("contributor cannot export", func() {
		user := s.userWithRole(RoleContributor)
		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceExports, id.ActionExport)
		s.Require().NoError(err)
		s.False(decision.Allowed)
		s.Contains(decision.DenialReason, "Missing required permission")
		s.Equal([]string{RoleContributor}, decision.EvaluatedRoles)
	})

	s.Run("compliance officer can export", func() {
		user := s.userWithRole(RoleComplianceOfficer)
		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceExports, id.ActionExport)
		s.Require().NoError(err)
		s.True(decision.Allowed)
	})

	s.Run("admin satisfies every resource action pair", func() {
		user := s.userWithRole(RoleAdmin)
		for _, resource := range id.AllResourceTypes() {
			for _, action := range id.AllActions() {
				decision, err := s.engine.CheckPermission(s.ctx, user.ID, resource, action)
				s.Require().NoError(err)
				s.True(decision.Allowed, "expected admin to be allowed %s:%s", resource, action)
			}
		}
	})

	s.Run("expired standing access denies regardless of role", func() {
		user := s.userWithRole(RoleAdmin)
		expired := s.now.Add(-time.Hour)
		user.AccessExpiresAt = &expired
		s.Require().NoError(s.users.Save(s.ctx, user))

		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceSections, id.ActionView)
		s.Require().NoError(err)
		s.False(decision.Allowed)
		s.Contains(decision.DenialReason, "expired")
	})

	s.Run("inactive user is denied", func() {
		user := s.userWithRole(RoleAdmin)
		user.IsActive = false
		s.Require().NoError(s.users.Save(s.ctx, user))

		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceSections, id.ActionView)
		s.Require().NoError(err)
		s.False(decision.Allowed)
	})

	s.Run("permissions union across multiple roles", func() {
		contributor, err := s.roles.FindByName(s.ctx, RoleContributor)
		s.Require().NoError(err)
		officer, err := s.roles.FindByName(s.ctx, RoleComplianceOfficer)
		s.Require().NoError(err)
		user := &User{
			ID:       id.NewUserID(),
			Name:     "Dual Role",
			RoleIDs:  []id.RoleID{contributor.ID, officer.ID},
			IsActive: true,
		}
		s.Require().NoError(s.users.Save(s.ctx, user))

		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceExports, id.ActionExport)
		s.Require().NoError(err)
		s.True(decision.Allowed)
	})

	s.Run("unknown resource type is denied by default", func() {
		user := s.userWithRole(RoleContributor)
		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceType("invoices"), id.ActionView)
		s.Require().NoError(err)
		s.False(decision.Allowed)
	})
}

func (s *EngineSuite) TestCheckPermissionAuditTrail() {
	s.Run("every check appends an audit entry", func() {
		user := s.userWithRole(RoleContributor)
		before := len(s.checkEntries())

		_, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceExports, id.ActionExport)
		s.Require().NoError(err)
		_, err = s.engine.CheckPermission(s.ctx, user.ID, id.ResourceSections, id.ActionView)
		s.Require().NoError(err)

		s.Len(s.checkEntries(), before+2)
	})

	s.Run("denied checks record the denial reason", func() {
		user := s.userWithRole(RoleContributor)
		_, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceExports, id.ActionExport)
		s.Require().NoError(err)

		entries, err := s.auditStore.List(s.ctx, audit.Filter{
			EntityType: audit.EntityPermission,
			Action:     audit.ActionPermissionCheckDenied,
		})
		s.Require().NoError(err)
		s.Require().NotEmpty(entries)

		last := entries[len(entries)-1]
		fields := map[string]string{}
		for _, c := range last.Changes {
			fields[c.Field] = c.NewValue
		}
		s.Equal("exports", fields["ResourceType"])
		s.Equal("export", fields["Action"])
		s.Equal("false", fields["Allowed"])
		s.Contains(fields["DenialReason"], "Missing required permission")
	})
}

// =============================================================================
// Grants
// =============================================================================

func (s *EngineSuite) TestSectionGrants() {
	sectionID := id.NewSectionID()

	s.Run("unexpired grant confers section access", func() {
		user := s.userWithRole(RoleExternalAdvisorRead)
		expires := s.now.Add(24 * time.Hour)
		_, err := s.engine.GrantSectionAccess(s.ctx, sectionID, user.ID, id.NewUserID(), &expires)
		s.Require().NoError(err)

		ok, err := s.engine.HasSectionAccess(s.ctx, user.ID, sectionID)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("expired grant never contributes", func() {
		user := s.userWithRole(RoleExternalAdvisorRead)
		expired := s.now.Add(-time.Minute)
		_, err := s.engine.GrantSectionAccess(s.ctx, sectionID, user.ID, id.NewUserID(), &expired)
		s.Require().NoError(err)

		ok, err := s.engine.HasSectionAccess(s.ctx, user.ID, sectionID)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("grant without expiry does not expire", func() {
		user := s.userWithRole(RoleExternalAdvisorRead)
		_, err := s.engine.GrantSectionAccess(s.ctx, sectionID, user.ID, id.NewUserID(), nil)
		s.Require().NoError(err)

		ok, err := s.engine.HasSectionAccess(s.ctx, user.ID, sectionID)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("grant satisfies view when standing roles lack it", func() {
		// A user with no roles at all, only a grant.
		user := &User{ID: id.NewUserID(), Name: "Granted Only", IsActive: true}
		s.Require().NoError(s.users.Save(s.ctx, user))
		_, err := s.engine.GrantSectionAccess(s.ctx, sectionID, user.ID, id.NewUserID(), nil)
		s.Require().NoError(err)

		decision, err := s.engine.CheckPermission(s.ctx, user.ID, id.ResourceSections, id.ActionView)
		s.Require().NoError(err)
		s.True(decision.Allowed)

		// The grant does not extend to edit-class actions.
		decision, err = s.engine.CheckPermission(s.ctx, user.ID, id.ResourceSections, id.ActionEdit)
		s.Require().NoError(err)
		s.False(decision.Allowed)
	})

	s.Run("revoking an absent grant is a structured not found", func() {
		err := s.engine.RevokeSectionAccess(s.ctx, id.NewSectionID(), id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Contains(err.Error(), "not found")
	})
}

type staticResolver map[id.SectionID]id.PeriodID

func (r staticResolver) SectionPeriod(_ context.Context, sectionID id.SectionID) (id.PeriodID, error) {
	period, ok := r[sectionID]
	if !ok {
		return id.PeriodID{}, dErrors.New(dErrors.CodeNotFound, "section not found")
	}
	return period, nil
}

func (s *EngineSuite) TestGetAccessibleSections() {
	periodA := id.NewPeriodID()
	periodB := id.NewPeriodID()
	secInA := id.NewSectionID()
	secInB := id.NewSectionID()
	secExpired := id.NewSectionID()

	engine, err := New(s.roles, s.users, s.grants, audit.NewLog(s.auditStore), audit.NewDiffer(),
		WithSectionResolver(staticResolver{secInA: periodA, secInB: periodB, secExpired: periodA}))
	s.Require().NoError(err)

	user := s.userWithRole(RoleExternalAdvisorRead)
	granter := id.NewUserID()
	expired := s.now.Add(-time.Minute)

	_, err = engine.GrantSectionAccess(s.ctx, secInA, user.ID, granter, nil)
	s.Require().NoError(err)
	_, err = engine.GrantSectionAccess(s.ctx, secInB, user.ID, granter, nil)
	s.Require().NoError(err)
	_, err = engine.GrantSectionAccess(s.ctx, secExpired, user.ID, granter, &expired)
	s.Require().NoError(err)

	sections, err := engine.GetAccessibleSections(s.ctx, user.ID, periodA)
	s.Require().NoError(err)
	s.Equal([]id.SectionID{secInA}, sections)
}

// =============================================================================
// Permission matrix
// =============================================================================

func (s *EngineSuite) TestGetPermissionMatrix() {
	matrix, err := s.engine.GetPermissionMatrix(s.ctx)
	s.Require().NoError(err)

	s.Run("covers every seeded role", func() {
		for _, name := range []string{RoleAdmin, RoleComplianceOfficer, RoleContributor, RoleDataOwner, RoleReviewer} {
			s.Contains(matrix.Roles, name)
		}
	})

	s.Run("admin resolves to every action on every resource", func() {
		admin := matrix.Roles[RoleAdmin]
		for _, resource := range matrix.ResourceTypes {
			s.Len(admin[resource], len(matrix.Actions))
		}
	})

	s.Run("contributor has no export action anywhere", func() {
		for _, actions := range matrix.Roles[RoleContributor] {
			s.NotContains(actions, id.ActionExport)
		}
	})

	s.Run("global vocabularies are present", func() {
		s.NotEmpty(matrix.ResourceTypes)
		s.NotEmpty(matrix.Actions)
	})
}

// =============================================================================
// Role management
// =============================================================================

func (s *EngineSuite) TestRoleManagement() {
	s.Run("custom role create and diffed update", func() {
		role, err := s.engine.CreateRole(s.ctx, "Auditor", "External auditor", []string{"audit-log:view"})
		s.Require().NoError(err)

		// Identical values: no audit entry appended.
		before, err := s.auditStore.List(s.ctx, audit.Filter{EntityType: audit.EntityRole})
		s.Require().NoError(err)
		_, err = s.engine.UpdateRole(s.ctx, role.ID, "Auditor", "External auditor", []string{"audit-log:view"})
		s.Require().NoError(err)
		after, err := s.auditStore.List(s.ctx, audit.Filter{EntityType: audit.EntityRole})
		s.Require().NoError(err)
		s.Len(after, len(before))

		// A changed permission set: exactly one new entry with the diff.
		_, err = s.engine.UpdateRole(s.ctx, role.ID, "Auditor", "External auditor", []string{"audit-log:view", "exports:export"})
		s.Require().NoError(err)
		after, err = s.auditStore.List(s.ctx, audit.Filter{EntityType: audit.EntityRole})
		s.Require().NoError(err)
		s.Require().Len(after, len(before)+1)

		change := after[len(after)-1].Changes
		s.Require().Len(change, 1)
		s.Equal("Permissions", change[0].Field)
	})

	s.Run("built-in roles are immutable", func() {
		admin, err := s.roles.FindByName(s.ctx, RoleAdmin)
		s.Require().NoError(err)

		_, err = s.engine.UpdateRole(s.ctx, admin.ID, "Admin", "changed", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		err = s.engine.DeleteRole(s.ctx, admin.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("duplicate role name conflicts", func() {
		_, err := s.engine.CreateRole(s.ctx, "Duplicate Role", "", nil)
		s.Require().NoError(err)
		_, err = s.engine.CreateRole(s.ctx, "Duplicate Role", "", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("malformed capability is rejected", func() {
		_, err := s.engine.CreateRole(s.ctx, "Broken", "", []string{"no-colon"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
