package audit

import (
	"time"

	id "verdant/pkg/domain"
)

// Action is the verb tag recorded on an audit entry.
type Action string

// Actions recorded by the governance core.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	ActionSubmitForApproval Action = "submit-for-approval"
	ActionApprove           Action = "approve"
	ActionRequestChanges    Action = "request-changes"
	ActionCreateRevision    Action = "create-revision"

	ActionActivateBreakGlass   Action = "activate-break-glass"
	ActionDeactivateBreakGlass Action = "deactivate-break-glass"

	ActionPermissionCheckAllowed Action = "permission-check-allowed"
	ActionPermissionCheckDenied  Action = "permission-check-denied"

	ActionGrantSectionAccess  Action = "grant-section-access"
	ActionRevokeSectionAccess Action = "revoke-section-access"

	ActionRollover Action = "rollover"
)

// Entity types appearing in the ledger. Kept as plain strings so surrounding
// subsystems can append entries for entities the core does not model.
const (
	EntityRole              = "Role"
	EntityUser              = "User"
	EntityPermission        = "Permission"
	EntitySectionGrant      = "SectionAccessGrant"
	EntityBreakGlassSession = "BreakGlassSession"
	EntitySection           = "ReportSection"
	EntityDataPoint         = "DataPoint"
)

// FieldChange records a single field-level difference between an entity's
// prior and new state.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Entry is one immutable record in the audit ledger. Entries are never
// updated or deleted; corrections are new entries.
//
// Seq is assigned at append time and strictly increases per process. It
// exists to make the newest-first, stable-on-ties query ordering explicit
// rather than relying on slice iteration order.
type Entry struct {
	ID                  string        `json:"id"`
	Seq                 uint64        `json:"-"`
	Timestamp           time.Time     `json:"timestamp"`
	Action              Action        `json:"action"`
	EntityType          string        `json:"entity_type"`
	EntityID            string        `json:"entity_id"`
	UserID              id.UserID     `json:"user_id"`
	UserName            string        `json:"user_name"`
	ChangeNote          string        `json:"change_note,omitempty"`
	Changes             []FieldChange `json:"changes,omitempty"`
	IsBreakGlassAction  bool          `json:"is_break_glass_action"`
	BreakGlassSessionID *id.SessionID `json:"break_glass_session_id,omitempty"`
}

// Filter narrows a ledger query. All supplied fields must match (AND
// semantics); zero values mean "any". Date bounds are inclusive.
type Filter struct {
	EntityType     string
	EntityID       string
	UserID         *id.UserID
	Action         Action
	Start          *time.Time
	End            *time.Time
	BreakGlassOnly bool
}

// Matches reports whether the entry satisfies every supplied filter field.
func (f Filter) Matches(e Entry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Start != nil && e.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.Timestamp.After(*f.End) {
		return false
	}
	if f.BreakGlassOnly && !e.IsBreakGlassAction {
		return false
	}
	return true
}
