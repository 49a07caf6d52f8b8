package domain

import (
	"strings"

	dErrors "verdant/pkg/domain-errors"
)

// ResourceType names a class of governed resources. The permission matrix is
// keyed by resource type; unknown types are denied by default.
type ResourceType string

// Governed resource types.
const (
	ResourceOrganizations ResourceType = "organizations"
	ResourcePeriods       ResourceType = "periods"
	ResourceSections      ResourceType = "sections"
	ResourceDataPoints    ResourceType = "data-points"
	ResourceApprovals     ResourceType = "approvals"
	ResourceExports       ResourceType = "exports"
	ResourceTemplates     ResourceType = "templates"
	ResourceUsers         ResourceType = "users"
	ResourceRoles         ResourceType = "roles"
	ResourceAuditLog      ResourceType = "audit-log"
)

// AllResourceTypes enumerates every resource type known to the system, in the
// order administration surfaces present them.
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceOrganizations,
		ResourcePeriods,
		ResourceSections,
		ResourceDataPoints,
		ResourceApprovals,
		ResourceExports,
		ResourceTemplates,
		ResourceUsers,
		ResourceRoles,
		ResourceAuditLog,
	}
}

// Action names an operation on a resource type.
type Action string

// Actions recognised by the permission matrix.
const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
	ActionManage  Action = "manage"
)

// AllActions enumerates every action known to the system.
func AllActions() []Action {
	return []Action{
		ActionView,
		ActionCreate,
		ActionEdit,
		ActionDelete,
		ActionSubmit,
		ActionApprove,
		ActionExport,
		ActionManage,
	}
}

// Capability is a "resourceType:action" permission string as stored on roles.
type Capability string

// NewCapability combines a resource type and action into a capability string.
func NewCapability(resource ResourceType, action Action) Capability {
	return Capability(string(resource) + ":" + string(action))
}

// ParseCapability validates and splits a capability string.
func ParseCapability(s string) (Capability, error) {
	resource, action, ok := strings.Cut(s, ":")
	if !ok || resource == "" || action == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "capability must be of the form resource:action")
	}
	return Capability(s), nil
}

// Resource returns the resource-type half of the capability.
func (c Capability) Resource() ResourceType {
	resource, _, _ := strings.Cut(string(c), ":")
	return ResourceType(resource)
}

// Action returns the action half of the capability.
func (c Capability) Action() Action {
	_, action, _ := strings.Cut(string(c), ":")
	return Action(action)
}

func (c Capability) String() string { return string(c) }
