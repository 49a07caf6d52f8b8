package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verdant/internal/audit"
	"verdant/internal/report"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/requestcontext"
)

// =============================================================================
// Workflow Machine Test Suite
// =============================================================================
// Justification for unit tests: transition legality, completeness re-checks,
// and snapshot capture are state-machine invariants; a failed transition must
// provably leave the section untouched, which only direct store inspection
// can show.

type MachineSuite struct {
	suite.Suite
	sections   *report.InMemorySectionStore
	versions   *report.InMemoryVersionStore
	dataPoints *report.InMemoryDataPointStore
	auditStore *audit.InMemoryStore
	machine    *Machine
	ctx        context.Context
	now        time.Time
	actor      id.UserID
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.sections = report.NewInMemorySectionStore()
	s.versions = report.NewInMemoryVersionStore()
	s.dataPoints = report.NewInMemoryDataPointStore()
	s.auditStore = audit.NewInMemoryStore()
	s.now = time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)
	s.actor = id.NewUserID()

	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, s.actor)
	s.ctx = requestcontext.WithUserName(ctx, "Dana Reviewer")

	var err error
	s.machine, err = New(s.sections, s.versions, s.dataPoints, audit.NewLog(s.auditStore), audit.NewDiffer())
	s.Require().NoError(err)
}

func (s *MachineSuite) seedSection(status report.Status, withDataPoint bool) *report.Section {
	section := &report.Section{
		ID:            id.NewSectionID(),
		PeriodID:      id.NewPeriodID(),
		Title:         "Scope 1 Emissions",
		Content:       "Direct emissions from owned sources.",
		Status:        status,
		VersionNumber: 1,
		OwnerID:       id.NewUserID(),
	}
	if status == report.StatusSubmitted {
		submitted := s.now.Add(-time.Hour)
		submitter := id.NewUserID()
		section.SubmittedAt = &submitted
		section.SubmittedBy = &submitter
		section.SubmittedByName = "Sam Contributor"
	}
	if status == report.StatusApproved {
		approved := s.now.Add(-time.Hour)
		approver := id.NewUserID()
		section.ApprovedAt = &approved
		section.ApprovedBy = &approver
		section.ApprovedByName = "Alex Officer"
	}
	s.Require().NoError(s.sections.Save(s.ctx, section))

	if withDataPoint {
		s.Require().NoError(s.dataPoints.Save(s.ctx, &report.DataPoint{
			ID:        id.NewDataPointID(),
			SectionID: section.ID,
			PeriodID:  section.PeriodID,
			Title:     "Total tCO2e",
			Value:     "1250",
			Unit:      "tCO2e",
		}))
	}
	return section
}

func (s *MachineSuite) storedSection(sectionID id.SectionID) *report.Section {
	section, err := s.sections.FindByID(s.ctx, sectionID)
	s.Require().NoError(err)
	return section
}

// =============================================================================
// Submit for approval
// =============================================================================

func (s *MachineSuite) TestSubmitForApproval() {
	s.Run("draft section with content submits", func() {
		section := s.seedSection(report.StatusDraft, true)

		submitted, err := s.machine.SubmitForApproval(s.ctx, section.ID, "ready for review")
		s.Require().NoError(err)

		s.Equal(report.StatusSubmitted, submitted.Status)
		s.Require().NotNil(submitted.SubmittedAt)
		s.Equal(s.now, *submitted.SubmittedAt)
		s.Require().NotNil(submitted.SubmittedBy)
		s.Equal(s.actor, *submitted.SubmittedBy)
		s.Equal("Dana Reviewer", submitted.SubmittedByName)
	})

	s.Run("changes-requested section may be resubmitted", func() {
		section := s.seedSection(report.StatusChangesRequested, true)
		submitted, err := s.machine.SubmitForApproval(s.ctx, section.ID, "")
		s.Require().NoError(err)
		s.Equal(report.StatusSubmitted, submitted.Status)
		s.Empty(submitted.ChangeRequestNote)
	})

	s.Run("submitting twice conflicts", func() {
		section := s.seedSection(report.StatusSubmitted, true)
		_, err := s.machine.SubmitForApproval(s.ctx, section.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "already submitted")
	})

	s.Run("approved sections direct the caller to a new revision", func() {
		section := s.seedSection(report.StatusApproved, true)
		_, err := s.machine.SubmitForApproval(s.ctx, section.ID, "")
		s.Require().Error(err)
		s.Contains(err.Error(), "already approved")
		s.Contains(err.Error(), "new revision")
	})

	s.Run("completeness is re-checked at the transition", func() {
		section := s.seedSection(report.StatusDraft, false)
		_, err := s.machine.SubmitForApproval(s.ctx, section.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "at least one data point")

		// Refused submissions leave the section in draft.
		s.Equal(report.StatusDraft, s.storedSection(section.ID).Status)
	})

	s.Run("unknown section is a structured not found", func() {
		_, err := s.machine.SubmitForApproval(s.ctx, id.NewSectionID(), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Approve
// =============================================================================

func (s *MachineSuite) TestApprove() {
	s.Run("submitted section approves and captures a snapshot", func() {
		section := s.seedSection(report.StatusSubmitted, true)

		approved, err := s.machine.Approve(s.ctx, section.ID, "meets disclosure standard")
		s.Require().NoError(err)

		s.Equal(report.StatusApproved, approved.Status)
		s.Require().NotNil(approved.ApprovedAt)
		s.Equal(s.now, *approved.ApprovedAt)
		s.Equal("Dana Reviewer", approved.ApprovedByName)

		versions, err := s.machine.ListVersions(s.ctx, section.ID)
		s.Require().NoError(err)
		s.Require().Len(versions, 1)
		s.Equal(1, versions[0].VersionNumber)
		s.Equal(section.Title, versions[0].Title)
		s.Equal(section.Content, versions[0].Content)
		s.Equal(s.actor, versions[0].ApprovedBy)
	})

	s.Run("approving a draft fails without mutating it", func() {
		section := s.seedSection(report.StatusDraft, true)

		_, err := s.machine.Approve(s.ctx, section.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "must be submitted for approval")

		stored := s.storedSection(section.ID)
		s.Equal(report.StatusDraft, stored.Status)
		s.Nil(stored.ApprovedAt)

		versions, err := s.machine.ListVersions(s.ctx, section.ID)
		s.Require().NoError(err)
		s.Empty(versions)
	})
}

// =============================================================================
// Request changes
// =============================================================================

func (s *MachineSuite) TestRequestChanges() {
	s.Run("submitted section returns to its author", func() {
		section := s.seedSection(report.StatusSubmitted, true)

		returned, err := s.machine.RequestChanges(s.ctx, section.ID, "figures need third-party assurance")
		s.Require().NoError(err)

		s.Equal(report.StatusChangesRequested, returned.Status)
		s.Equal("figures need third-party assurance", returned.ChangeRequestNote)
		s.Nil(returned.SubmittedAt)
		s.Nil(returned.SubmittedBy)
		s.Empty(returned.SubmittedByName)
	})

	s.Run("non-submitted sections are refused", func() {
		section := s.seedSection(report.StatusDraft, true)
		_, err := s.machine.RequestChanges(s.ctx, section.ID, "some note")
		s.Require().Error(err)
		s.Contains(err.Error(), "Only submitted sections")
	})

	s.Run("a note is mandatory", func() {
		section := s.seedSection(report.StatusSubmitted, true)
		_, err := s.machine.RequestChanges(s.ctx, section.ID, "   ")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Create revision
// =============================================================================

func (s *MachineSuite) TestCreateRevision() {
	s.Run("approved section reopens as the next version", func() {
		section := s.seedSection(report.StatusApproved, true)

		revised, err := s.machine.CreateRevision(s.ctx, section.ID)
		s.Require().NoError(err)

		s.Equal(report.StatusDraft, revised.Status)
		s.Equal(2, revised.VersionNumber)
		s.Nil(revised.SubmittedAt)
		s.Empty(revised.ChangeRequestNote)
		// The historical approval stays on record.
		s.NotNil(revised.ApprovedAt)
	})

	s.Run("version number increments by exactly one per revision", func() {
		section := s.seedSection(report.StatusApproved, true)
		revised, err := s.machine.CreateRevision(s.ctx, section.ID)
		s.Require().NoError(err)
		s.Equal(section.VersionNumber+1, revised.VersionNumber)
	})

	s.Run("non-approved sections are refused", func() {
		section := s.seedSection(report.StatusSubmitted, true)
		_, err := s.machine.CreateRevision(s.ctx, section.ID)
		s.Require().Error(err)
		s.Contains(err.Error(), "Only approved sections")
		s.Equal(1, s.storedSection(section.ID).VersionNumber)
	})
}

// =============================================================================
// Edit gate
// =============================================================================

func (s *MachineSuite) TestCanEditSection() {
	s.Run("draft and changes-requested are editable", func() {
		for _, status := range []report.Status{report.StatusDraft, report.StatusChangesRequested} {
			section := s.seedSection(status, true)
			editable, reason, err := s.machine.CanEditSection(s.ctx, section.ID)
			s.Require().NoError(err)
			s.True(editable)
			s.Empty(reason)
		}
	})

	s.Run("submitted sections name the submitter", func() {
		section := s.seedSection(report.StatusSubmitted, true)
		editable, reason, err := s.machine.CanEditSection(s.ctx, section.ID)
		s.Require().NoError(err)
		s.False(editable)
		s.Contains(reason, "Sam Contributor")
	})

	s.Run("approved sections instruct a revision", func() {
		section := s.seedSection(report.StatusApproved, true)
		editable, reason, err := s.machine.CanEditSection(s.ctx, section.ID)
		s.Require().NoError(err)
		s.False(editable)
		s.Contains(reason, "new revision")
	})

	s.Run("unknown sections are a structured not found", func() {
		_, _, err := s.machine.CanEditSection(s.ctx, id.NewSectionID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Audit trail
// =============================================================================

func (s *MachineSuite) TestTransitionsAreAudited() {
	section := s.seedSection(report.StatusDraft, true)

	_, err := s.machine.SubmitForApproval(s.ctx, section.ID, "ready")
	s.Require().NoError(err)
	_, err = s.machine.RequestChanges(s.ctx, section.ID, "tighten methodology")
	s.Require().NoError(err)
	_, err = s.machine.SubmitForApproval(s.ctx, section.ID, "")
	s.Require().NoError(err)
	_, err = s.machine.Approve(s.ctx, section.ID, "")
	s.Require().NoError(err)
	_, err = s.machine.CreateRevision(s.ctx, section.ID)
	s.Require().NoError(err)

	entries, err := s.auditStore.List(s.ctx, audit.Filter{
		EntityType: audit.EntitySection,
		EntityID:   section.ID.String(),
	})
	s.Require().NoError(err)
	s.Require().Len(entries, 5)

	var actions []audit.Action
	for _, e := range entries {
		actions = append(actions, e.Action)
		s.Equal(s.actor, e.UserID)
	}
	s.Equal([]audit.Action{
		audit.ActionSubmitForApproval,
		audit.ActionRequestChanges,
		audit.ActionSubmitForApproval,
		audit.ActionApprove,
		audit.ActionCreateRevision,
	}, actions)

	// The request-changes entry carries the reviewer's note and records the
	// status change field-by-field.
	s.Equal("tighten methodology", entries[1].ChangeNote)
	var statusChange *audit.FieldChange
	for _, c := range entries[1].Changes {
		if c.Field == "Status" {
			statusChange = &c
			break
		}
	}
	s.Require().NotNil(statusChange)
	s.Equal(string(report.StatusSubmitted), statusChange.OldValue)
	s.Equal(string(report.StatusChangesRequested), statusChange.NewValue)
}
