// Package workflow is the single source of truth for section state: which
// transitions exist, what each one requires, and whether a section's current
// state permits content edits.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"verdant/internal/audit"
	"verdant/internal/report"
	wfmetrics "verdant/internal/workflow/metrics"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/requestcontext"
)

// Machine drives sections through the approval workflow. Transitions are
// check-then-act sequences; each runs inside the section store's Execute
// critical section so concurrent transitions cannot interleave.
type Machine struct {
	sections   report.SectionStore
	versions   report.VersionStore
	dataPoints report.DataPointStore

	bgSessions report.SessionTagger

	auditLog *audit.Log
	differ   *audit.Differ
	logger   *slog.Logger
	metrics  *wfmetrics.Metrics
}

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

func WithMetrics(metrics *wfmetrics.Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

// WithSessionTagger enables break-glass tagging of transition audit entries.
func WithSessionTagger(tagger report.SessionTagger) Option {
	return func(m *Machine) { m.bgSessions = tagger }
}

func New(sections report.SectionStore, versions report.VersionStore, dataPoints report.DataPointStore,
	auditLog *audit.Log, differ *audit.Differ, opts ...Option) (*Machine, error) {
	if sections == nil || versions == nil || dataPoints == nil {
		return nil, errors.New("section, version, and data point stores are required")
	}
	if auditLog == nil {
		return nil, errors.New("audit log is required")
	}
	if differ == nil {
		return nil, errors.New("change differ is required")
	}

	m := &Machine{
		sections:   sections,
		versions:   versions,
		dataPoints: dataPoints,
		auditLog:   auditLog,
		differ:     differ,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SubmitForApproval moves a draft or changes-requested section into review.
// Completeness is re-checked at the transition itself, regardless of how the
// section reached its current state: a submission needs a title and at least
// one data point.
func (m *Machine) SubmitForApproval(ctx context.Context, sectionID id.SectionID, note string) (*report.Section, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)
	actorName := requestcontext.UserName(ctx)

	var before audit.Snapshot
	section, err := m.sections.Execute(ctx, sectionID,
		func(s *report.Section) error {
			switch s.Status {
			case report.StatusSubmitted:
				return dErrors.New(dErrors.CodeConflict, "section is already submitted for approval")
			case report.StatusApproved:
				return dErrors.New(dErrors.CodeConflict, "section is already approved; create a new revision to make changes")
			}
			if !s.Status.CanTransitionTo(report.StatusSubmitted) {
				return dErrors.New(dErrors.CodeInvariantViolation,
					fmt.Sprintf("cannot submit a section in status %q", s.Status))
			}
			if strings.TrimSpace(s.Title) == "" {
				return dErrors.New(dErrors.CodeValidation, "section must have a title before submission")
			}
			dataPoints, err := m.dataPoints.ListBySection(ctx, sectionID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check section completeness")
			}
			if len(dataPoints) == 0 {
				return dErrors.New(dErrors.CodeValidation, "section must have at least one data point before submission")
			}
			before = s.AuditSnapshot()
			return nil
		},
		func(s *report.Section) {
			s.Status = report.StatusSubmitted
			s.SubmittedAt = &now
			s.SubmittedBy = &actor
			s.SubmittedByName = actorName
			s.ChangeRequestNote = ""
		},
	)
	if err != nil {
		return nil, m.transitionErr(err, report.StatusSubmitted)
	}

	m.appendTransition(ctx, audit.ActionSubmitForApproval, section, before, note)
	return section, nil
}

// Approve accepts a submitted section and captures an immutable snapshot of
// its approved content. Failed approvals leave the section untouched.
func (m *Machine) Approve(ctx context.Context, sectionID id.SectionID, note string) (*report.Section, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)
	actorName := requestcontext.UserName(ctx)

	var before audit.Snapshot
	section, err := m.sections.Execute(ctx, sectionID,
		func(s *report.Section) error {
			if s.Status != report.StatusSubmitted {
				return dErrors.New(dErrors.CodeConflict, "section must be submitted for approval before it can be approved")
			}
			before = s.AuditSnapshot()
			return nil
		},
		func(s *report.Section) {
			s.Status = report.StatusApproved
			s.ApprovedAt = &now
			s.ApprovedBy = &actor
			s.ApprovedByName = actorName
		},
	)
	if err != nil {
		return nil, m.transitionErr(err, report.StatusApproved)
	}

	version := report.SectionVersion{
		SectionID:      section.ID,
		VersionNumber:  section.VersionNumber,
		Title:          section.Title,
		Content:        section.Content,
		CapturedAt:     now,
		ApprovedBy:     actor,
		ApprovedByName: actorName,
	}
	if err := m.versions.Save(ctx, version); err != nil {
		// The transition stands; a lost snapshot is an operational defect,
		// not a reason to unwind the approval.
		m.logger.ErrorContext(ctx, "failed to capture approved section version",
			"error", err, "section_id", section.ID, "version", section.VersionNumber)
	}

	m.appendTransition(ctx, audit.ActionApprove, section, before, note)
	return section, nil
}

// RequestChanges returns a submitted section to its author with a note and
// clears the submission metadata.
func (m *Machine) RequestChanges(ctx context.Context, sectionID id.SectionID, note string) (*report.Section, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a note explaining the requested changes is required")
	}

	var before audit.Snapshot
	section, err := m.sections.Execute(ctx, sectionID,
		func(s *report.Section) error {
			if s.Status != report.StatusSubmitted {
				return dErrors.New(dErrors.CodeConflict, "Only submitted sections can have changes requested")
			}
			before = s.AuditSnapshot()
			return nil
		},
		func(s *report.Section) {
			s.Status = report.StatusChangesRequested
			s.ChangeRequestNote = note
			s.SubmittedAt = nil
			s.SubmittedBy = nil
			s.SubmittedByName = ""
		},
	)
	if err != nil {
		return nil, m.transitionErr(err, report.StatusChangesRequested)
	}

	m.appendTransition(ctx, audit.ActionRequestChanges, section, before, note)
	return section, nil
}

// CreateRevision reopens an approved section for editing as the next
// version. The prior version's approval timestamp stays on record in the
// version snapshot; the live section starts its new cycle clean.
func (m *Machine) CreateRevision(ctx context.Context, sectionID id.SectionID) (*report.Section, error) {
	var before audit.Snapshot
	section, err := m.sections.Execute(ctx, sectionID,
		func(s *report.Section) error {
			if s.Status != report.StatusApproved {
				return dErrors.New(dErrors.CodeConflict, "Only approved sections can start a new revision")
			}
			before = s.AuditSnapshot()
			return nil
		},
		func(s *report.Section) {
			s.VersionNumber++
			s.Status = report.StatusDraft
			s.SubmittedAt = nil
			s.SubmittedBy = nil
			s.SubmittedByName = ""
			s.ChangeRequestNote = ""
		},
	)
	if err != nil {
		return nil, m.transitionErr(err, report.StatusDraft)
	}

	m.appendTransition(ctx, audit.ActionCreateRevision, section, before, "")
	return section, nil
}

// CanEditSection reports whether the section's workflow state permits
// content changes, with a human-readable reason when it does not.
func (m *Machine) CanEditSection(ctx context.Context, sectionID id.SectionID) (bool, string, error) {
	section, err := m.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, "", dErrors.New(dErrors.CodeNotFound, "section not found")
		}
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to find section")
	}

	switch section.Status {
	case report.StatusDraft, report.StatusChangesRequested:
		return true, "", nil
	case report.StatusSubmitted:
		submitter := section.SubmittedByName
		if submitter == "" {
			submitter = "another user"
		}
		return false, fmt.Sprintf("Section is awaiting approval (submitted by %s) and cannot be edited", submitter), nil
	case report.StatusApproved:
		return false, "Section is approved; create a new revision to make changes", nil
	}
	return false, fmt.Sprintf("Section is in an unknown workflow state %q", section.Status), nil
}

// ListVersions returns the section's approved snapshots, oldest first.
func (m *Machine) ListVersions(ctx context.Context, sectionID id.SectionID) ([]report.SectionVersion, error) {
	versions, err := m.versions.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list section versions")
	}
	return versions, nil
}

func (m *Machine) appendTransition(ctx context.Context, action audit.Action, section *report.Section, before audit.Snapshot, note string) {
	entry := audit.Entry{
		Action:     action,
		EntityType: audit.EntitySection,
		EntityID:   section.ID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		ChangeNote: strings.TrimSpace(note),
		Changes:    m.differ.Diff(audit.EntitySection, before, section.AuditSnapshot()),
	}
	m.tagBreakGlass(ctx, &entry)
	m.auditLog.Append(ctx, entry)

	if m.metrics != nil {
		m.metrics.Transitions.WithLabelValues(string(section.Status)).Inc()
	}
	m.logger.InfoContext(ctx, "section transitioned",
		"section_id", section.ID,
		"action", string(action),
		"status", string(section.Status),
	)
}

func (m *Machine) tagBreakGlass(ctx context.Context, entry *audit.Entry) {
	if m.bgSessions == nil {
		return
	}
	actor := requestcontext.UserID(ctx)
	session, err := m.bgSessions.GetActiveSession(ctx, actor)
	if err != nil {
		m.logger.ErrorContext(ctx, "break-glass session lookup failed", "error", err, "user_id", actor)
		return
	}
	if session == nil {
		return
	}
	sessionID := session.ID
	entry.IsBreakGlassAction = true
	entry.BreakGlassSessionID = &sessionID
	m.bgSessions.IncrementActionCount(ctx, sessionID)
}

func (m *Machine) transitionErr(err error, target report.Status) error {
	if m.metrics != nil && (dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeValidation)) {
		m.metrics.TransitionsRefused.WithLabelValues(string(target)).Inc()
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "section not found")
	}
	return err
}
