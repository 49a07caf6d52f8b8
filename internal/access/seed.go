package access

import (
	"context"

	id "verdant/pkg/domain"
)

// Built-in role names. These are seeded at startup and immutable thereafter.
const (
	RoleAdmin               = "Admin"
	RoleComplianceOfficer   = "Compliance Officer"
	RoleContributor         = "Contributor"
	RoleDataOwner           = "Data Owner"
	RoleReviewer            = "Reviewer"
	RoleExternalAdvisorRead = "External Advisor (Read)"
	RoleExternalAdvisorEdit = "External Advisor (Edit)"
)

func caps(pairs ...id.Capability) []id.Capability { return pairs }

// SeedBuiltInRoles installs the built-in role set. Idempotent per process:
// callers run it once at startup before serving traffic.
func SeedBuiltInRoles(ctx context.Context, roles RoleStore) error {
	builtIns := []*Role{
		{
			ID:          id.NewRoleID(),
			Name:        RoleAdmin,
			Description: "Full access to every resource and action",
			Permissions: caps(WildcardCapability),
			BuiltIn:     true,
		},
		{
			ID:          id.NewRoleID(),
			Name:        RoleComplianceOfficer,
			Description: "Oversees disclosures: reviews, approves, and exports",
			Permissions: caps(
				id.NewCapability(id.ResourcePeriods, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionApprove),
				id.NewCapability(id.ResourceDataPoints, id.ActionView),
				id.NewCapability(id.ResourceApprovals, id.ActionView),
				id.NewCapability(id.ResourceApprovals, id.ActionApprove),
				id.NewCapability(id.ResourceExports, id.ActionExport),
				id.NewCapability(id.ResourceAuditLog, id.ActionView),
			),
			BuiltIn: true,
		},
		{
			ID:          id.NewRoleID(),
			Name:        RoleContributor,
			Description: "Authors section content and data points",
			Permissions: caps(
				id.NewCapability(id.ResourcePeriods, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionEdit),
				id.NewCapability(id.ResourceDataPoints, id.ActionView),
				id.NewCapability(id.ResourceDataPoints, id.ActionCreate),
				id.NewCapability(id.ResourceDataPoints, id.ActionEdit),
			),
			BuiltIn: true,
		},
		{
			ID:          id.NewRoleID(),
			Name:        RoleDataOwner,
			Description: "Owns assigned sections end to end, including submission",
			Permissions: caps(
				id.NewCapability(id.ResourcePeriods, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionEdit),
				id.NewCapability(id.ResourceSections, id.ActionSubmit),
				id.NewCapability(id.ResourceDataPoints, id.ActionView),
				id.NewCapability(id.ResourceDataPoints, id.ActionCreate),
				id.NewCapability(id.ResourceDataPoints, id.ActionEdit),
				id.NewCapability(id.ResourceDataPoints, id.ActionDelete),
			),
			BuiltIn: true,
		},
		{
			ID:          id.NewRoleID(),
			Name:        RoleReviewer,
			Description: "Reviews submitted sections and requests changes",
			Permissions: caps(
				id.NewCapability(id.ResourcePeriods, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionApprove),
				id.NewCapability(id.ResourceDataPoints, id.ActionView),
				id.NewCapability(id.ResourceApprovals, id.ActionView),
			),
			BuiltIn: true,
		},
		{
			ID:          id.NewRoleID(),
			Name:        RoleExternalAdvisorRead,
			Description: "External advisor with read-only access to granted sections",
			Permissions: caps(
				id.NewCapability(id.ResourceSections, id.ActionView),
				id.NewCapability(id.ResourceDataPoints, id.ActionView),
			),
			BuiltIn: true,
		},
		{
			ID:          id.NewRoleID(),
			Name:        RoleExternalAdvisorEdit,
			Description: "External advisor who may edit granted sections",
			Permissions: caps(
				id.NewCapability(id.ResourceSections, id.ActionView),
				id.NewCapability(id.ResourceSections, id.ActionEdit),
				id.NewCapability(id.ResourceDataPoints, id.ActionView),
				id.NewCapability(id.ResourceDataPoints, id.ActionEdit),
			),
			BuiltIn: true,
		},
	}

	for _, role := range builtIns {
		if existing, err := roles.FindByName(ctx, role.Name); err == nil && existing != nil {
			continue
		}
		if err := roles.Save(ctx, role); err != nil {
			return err
		}
	}
	return nil
}
