package audit

import (
	"sort"
	"strings"
)

// Snapshot is a flattened view of an entity's audit-tracked fields. Entities
// expose one via an AuditSnapshot method; collection-valued fields must be
// canonicalized with JoinSet so equality is by content, not order.
type Snapshot map[string]string

// JoinSet canonicalizes a collection value for snapshotting. Elements are
// sorted and joined so two collections with the same content produce the same
// snapshot value regardless of ordering.
func JoinSet(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Differ computes field-level differences between entity snapshots. The
// tracked-field policy enumerates, per entity type, which fields are audited
// and in what order they appear in the resulting change list. Fields absent
// from the policy are internal bookkeeping and never audited.
type Differ struct {
	tracked map[string][]string
}

// NewDiffer returns a differ preloaded with the tracked-field policy for
// every governed entity type.
func NewDiffer() *Differ {
	return &Differ{
		tracked: map[string][]string{
			EntityRole: {
				"Name",
				"Description",
				"Permissions",
			},
			EntityUser: {
				"Name",
				"Email",
				"RoleIds",
				"IsActive",
				"AccessExpiresAt",
			},
			EntitySectionGrant: {
				"SectionId",
				"UserId",
				"GrantedBy",
				"ExpiresAt",
			},
			EntitySection: {
				"Title",
				"Content",
				"Status",
				"VersionNumber",
				"OwnerId",
			},
			EntityDataPoint: {
				"Title",
				"Value",
				"Unit",
				"Content",
				"Category",
				"SourcePeriodId",
				"SourceDataPointId",
			},
			EntityBreakGlassSession: {
				"Reason",
				"AuthenticationMethod",
				"IpAddress",
				"IsActive",
				"DeactivationNote",
			},
		},
	}
}

// Diff returns the ordered field changes between the prior and proposed
// snapshots of an entity. An empty result means the update is a no-op and the
// caller must not append an audit entry for it.
//
// No side effects; safe for concurrent use.
func (d *Differ) Diff(entityType string, old, new Snapshot) []FieldChange {
	fields, ok := d.tracked[entityType]
	if !ok {
		return nil
	}
	var changes []FieldChange
	for _, field := range fields {
		oldVal, newVal := old[field], new[field]
		if oldVal == newVal {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    field,
			OldValue: oldVal,
			NewValue: newVal,
		})
	}
	return changes
}

// TrackedFields returns the audited field names for an entity type, in change
// ordering. Exposed for administration surfaces and tests.
func (d *Differ) TrackedFields(entityType string) []string {
	return append([]string(nil), d.tracked[entityType]...)
}
