package report

import (
	"strconv"
	"time"

	"verdant/internal/audit"
	id "verdant/pkg/domain"
)

// Status is a section's position in the approval workflow.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted-for-approval"
	StatusApproved         Status = "approved"
	StatusChangesRequested Status = "changes-requested"
)

// CanTransitionTo reports whether the workflow permits moving from this
// status to the target. The graph is intentionally small: drafts and
// change-requested sections may be submitted, submitted sections resolve to
// approved or changes-requested, and approved sections only move by opening
// a new revision (which lands back in draft).
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft, StatusChangesRequested:
		return target == StatusSubmitted
	case StatusSubmitted:
		return target == StatusApproved || target == StatusChangesRequested
	case StatusApproved:
		return target == StatusDraft
	}
	return false
}

// Editable reports whether content changes are allowed in this status.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusChangesRequested
}

// Period is a reporting window (for example a fiscal year) that sections and
// data points belong to.
type Period struct {
	ID        id.PeriodID `json:"id"`
	Name      string      `json:"name"`
	StartDate time.Time   `json:"startDate"`
	EndDate   time.Time   `json:"endDate"`
}

// Section is a governed unit of disclosure content. Its status gates every
// content mutation; its version number counts approved revisions.
type Section struct {
	ID            id.SectionID `json:"id"`
	PeriodID      id.PeriodID  `json:"periodId"`
	CatalogCode   string       `json:"catalogCode,omitempty"`
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	Status        Status       `json:"status"`
	VersionNumber int          `json:"versionNumber"`
	OwnerID       id.UserID    `json:"ownerId"`

	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	SubmittedBy     *id.UserID `json:"submittedBy,omitempty"`
	SubmittedByName string     `json:"submittedByName,omitempty"`

	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy     *id.UserID `json:"approvedBy,omitempty"`
	ApprovedByName string     `json:"approvedByName,omitempty"`

	ChangeRequestNote string `json:"changeRequestNote,omitempty"`
}

// AuditSnapshot flattens the section's tracked fields for change diffing.
func (s *Section) AuditSnapshot() audit.Snapshot {
	return audit.Snapshot{
		"Title":         s.Title,
		"Content":       s.Content,
		"Status":        string(s.Status),
		"VersionNumber": strconv.Itoa(s.VersionNumber),
		"OwnerId":       s.OwnerID.String(),
	}
}

// SectionVersion is an immutable snapshot of a section's approved content.
// Captured at approval time; never updated afterwards.
type SectionVersion struct {
	SectionID      id.SectionID `json:"sectionId"`
	VersionNumber  int          `json:"versionNumber"`
	Title          string       `json:"title"`
	Content        string       `json:"content"`
	CapturedAt     time.Time    `json:"capturedAt"`
	ApprovedBy     id.UserID    `json:"approvedBy"`
	ApprovedByName string       `json:"approvedByName"`
}

// DataPoint is a single disclosed figure or narrative within a section. The
// Source* and Rollover* fields form its cross-period lineage: a data point
// carried into a new period keeps a durable pointer to the one it came from.
type DataPoint struct {
	ID        id.DataPointID `json:"id"`
	SectionID id.SectionID   `json:"sectionId"`
	PeriodID  id.PeriodID    `json:"periodId"`
	Title     string         `json:"title"`
	Value     string         `json:"value"`
	Unit      string         `json:"unit,omitempty"`
	Content   string         `json:"content,omitempty"`
	Category  string         `json:"category,omitempty"`

	SourcePeriodID          *id.PeriodID    `json:"sourcePeriodId,omitempty"`
	SourcePeriodName        string          `json:"sourcePeriodName,omitempty"`
	SourceDataPointID       *id.DataPointID `json:"sourceDataPointId,omitempty"`
	RolloverTimestamp       *time.Time      `json:"rolloverTimestamp,omitempty"`
	RolloverPerformedBy     *id.UserID      `json:"rolloverPerformedBy,omitempty"`
	RolloverPerformedByName string          `json:"rolloverPerformedByName,omitempty"`
}

// IsRolledOver reports whether this data point was carried over from a prior
// period rather than authored fresh.
func (d *DataPoint) IsRolledOver() bool {
	return d.SourceDataPointID != nil
}

// AuditSnapshot flattens the data point's tracked fields for change diffing.
func (d *DataPoint) AuditSnapshot() audit.Snapshot {
	snapshot := audit.Snapshot{
		"Title":    d.Title,
		"Value":    d.Value,
		"Unit":     d.Unit,
		"Content":  d.Content,
		"Category": d.Category,
	}
	if d.SourcePeriodID != nil {
		snapshot["SourcePeriodId"] = d.SourcePeriodID.String()
	} else {
		snapshot["SourcePeriodId"] = ""
	}
	if d.SourceDataPointID != nil {
		snapshot["SourceDataPointId"] = d.SourceDataPointID.String()
	} else {
		snapshot["SourceDataPointId"] = ""
	}
	return snapshot
}
