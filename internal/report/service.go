package report

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"verdant/internal/access"
	"verdant/internal/audit"
	"verdant/internal/breakglass"
	reportmetrics "verdant/internal/report/metrics"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/requestcontext"
)

// PermissionChecker is the slice of the permission engine content mutations
// consult. Satisfied by *access.Engine.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID id.UserID, resource id.ResourceType, action id.Action) (access.Decision, error)
}

// EditGate answers whether a section's workflow state currently permits
// content changes. Satisfied by *workflow.Machine; the workflow package is
// the single source of truth for editability.
type EditGate interface {
	CanEditSection(ctx context.Context, sectionID id.SectionID) (bool, string, error)
}

// SessionTagger exposes the break-glass state needed to tag emergency
// mutations. Satisfied by *breakglass.Controller.
type SessionTagger interface {
	GetActiveSession(ctx context.Context, userID id.UserID) (*breakglass.Session, error)
	IncrementActionCount(ctx context.Context, sessionID id.SessionID)
}

// Service owns report content: periods, sections, and data points. Every
// mutation runs the same pipeline of permission check, workflow edit gate,
// diff, apply, and audit, so nothing reaches a store unexamined.
type Service struct {
	periods    PeriodStore
	sections   SectionStore
	versions   VersionStore
	dataPoints DataPointStore

	permissions PermissionChecker
	editGate    EditGate
	bgSessions  SessionTagger

	auditLog *audit.Log
	differ   *audit.Differ
	logger   *slog.Logger
	metrics  *reportmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *reportmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEditGate wires the workflow machine in as the editability authority.
// Without it, sections gate edits on their stored status directly.
func WithEditGate(gate EditGate) Option {
	return func(s *Service) { s.editGate = gate }
}

// WithSessionTagger enables break-glass tagging of content mutations.
func WithSessionTagger(tagger SessionTagger) Option {
	return func(s *Service) { s.bgSessions = tagger }
}

func New(periods PeriodStore, sections SectionStore, versions VersionStore, dataPoints DataPointStore,
	permissions PermissionChecker, auditLog *audit.Log, differ *audit.Differ, opts ...Option) (*Service, error) {
	if periods == nil || sections == nil || versions == nil || dataPoints == nil {
		return nil, errors.New("all report stores are required")
	}
	if permissions == nil {
		return nil, errors.New("permission checker is required")
	}
	if auditLog == nil {
		return nil, errors.New("audit log is required")
	}
	if differ == nil {
		return nil, errors.New("change differ is required")
	}

	s := &Service{
		periods:     periods,
		sections:    sections,
		versions:    versions,
		dataPoints:  dataPoints,
		permissions: permissions,
		auditLog:    auditLog,
		differ:      differ,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// Periods
// -----------------------------------------------------------------------------

func (s *Service) CreatePeriod(ctx context.Context, period *Period) error {
	if strings.TrimSpace(period.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "period name is required")
	}
	if period.ID.IsNil() {
		period.ID = id.NewPeriodID()
	}
	if err := s.periods.Save(ctx, period); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save period")
	}
	return nil
}

func (s *Service) GetPeriod(ctx context.Context, periodID id.PeriodID) (*Period, error) {
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "period not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find period")
	}
	return period, nil
}

func (s *Service) ListPeriods(ctx context.Context) ([]*Period, error) {
	periods, err := s.periods.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list periods")
	}
	return periods, nil
}

// -----------------------------------------------------------------------------
// Sections
// -----------------------------------------------------------------------------

// CreateSection opens a new draft section in the given period.
func (s *Service) CreateSection(ctx context.Context, periodID id.PeriodID, catalogCode, title, content string, ownerID id.UserID) (*Section, error) {
	actor := requestcontext.UserID(ctx)
	if err := s.requirePermission(ctx, actor, id.ResourceSections, id.ActionCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "section title is required")
	}
	if _, err := s.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}

	section := &Section{
		ID:            id.NewSectionID(),
		PeriodID:      periodID,
		CatalogCode:   strings.TrimSpace(catalogCode),
		Title:         strings.TrimSpace(title),
		Content:       content,
		Status:        StatusDraft,
		VersionNumber: 1,
		OwnerID:       ownerID,
	}
	if err := s.sections.Save(ctx, section); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save section")
	}

	entry := audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntitySection,
		EntityID:   section.ID.String(),
		UserID:     actor,
		UserName:   requestcontext.UserName(ctx),
		Changes:    s.differ.Diff(audit.EntitySection, audit.Snapshot{}, section.AuditSnapshot()),
	}
	s.tagBreakGlass(ctx, &entry, actor)
	s.auditLog.Append(ctx, entry)
	return section, nil
}

func (s *Service) GetSection(ctx context.Context, sectionID id.SectionID) (*Section, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "section not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find section")
	}
	return section, nil
}

func (s *Service) ListSections(ctx context.Context, periodID id.PeriodID) ([]*Section, error) {
	sections, err := s.sections.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sections")
	}
	return sections, nil
}

// SectionPeriod resolves the period a section belongs to. Implements the
// permission engine's section resolver port.
func (s *Service) SectionPeriod(ctx context.Context, sectionID id.SectionID) (id.PeriodID, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.PeriodID{}, dErrors.New(dErrors.CodeNotFound, "section not found")
		}
		return id.PeriodID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find section")
	}
	return section.PeriodID, nil
}

// -----------------------------------------------------------------------------
// Data points
// -----------------------------------------------------------------------------

// DataPointUpdate carries the editable fields of a data point. All fields
// are full replacements; the differ decides what actually changed.
type DataPointUpdate struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Unit     string `json:"unit"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// CreateDataPoint adds a data point to a section, subject to the same
// permission and workflow gates as an update.
func (s *Service) CreateDataPoint(ctx context.Context, sectionID id.SectionID, update DataPointUpdate) (*DataPoint, error) {
	actor := requestcontext.UserID(ctx)
	if err := s.requirePermission(ctx, actor, id.ResourceDataPoints, id.ActionCreate); err != nil {
		return nil, err
	}
	section, err := s.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEditable(ctx, section); err != nil {
		return nil, err
	}
	if strings.TrimSpace(update.Title) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "data point title is required")
	}

	dataPoint := &DataPoint{
		ID:        id.NewDataPointID(),
		SectionID: sectionID,
		PeriodID:  section.PeriodID,
		Title:     strings.TrimSpace(update.Title),
		Value:     update.Value,
		Unit:      update.Unit,
		Content:   update.Content,
		Category:  update.Category,
	}
	if err := s.dataPoints.Save(ctx, dataPoint); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save data point")
	}

	entry := audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityDataPoint,
		EntityID:   dataPoint.ID.String(),
		UserID:     actor,
		UserName:   requestcontext.UserName(ctx),
		Changes:    s.differ.Diff(audit.EntityDataPoint, audit.Snapshot{}, dataPoint.AuditSnapshot()),
	}
	s.tagBreakGlass(ctx, &entry, actor)
	s.auditLog.Append(ctx, entry)
	return dataPoint, nil
}

func (s *Service) GetDataPoint(ctx context.Context, dataPointID id.DataPointID) (*DataPoint, error) {
	dataPoint, err := s.dataPoints.FindByID(ctx, dataPointID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "data point not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find data point")
	}
	return dataPoint, nil
}

func (s *Service) ListDataPoints(ctx context.Context, sectionID id.SectionID) ([]*DataPoint, error) {
	dataPoints, err := s.dataPoints.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list data points")
	}
	return dataPoints, nil
}

// UpdateDataPoint runs the full governance pipeline for a content change:
// permission check, workflow edit gate, diff, apply, audit. An update that
// changes nothing appends no audit entry and touches no break-glass tally.
func (s *Service) UpdateDataPoint(ctx context.Context, dataPointID id.DataPointID, update DataPointUpdate, note string) (*DataPoint, error) {
	actor := requestcontext.UserID(ctx)
	if err := s.requirePermission(ctx, actor, id.ResourceDataPoints, id.ActionEdit); err != nil {
		return nil, err
	}

	existing, err := s.GetDataPoint(ctx, dataPointID)
	if err != nil {
		return nil, err
	}
	section, err := s.GetSection(ctx, existing.SectionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEditable(ctx, section); err != nil {
		return nil, err
	}

	before := existing.AuditSnapshot()
	updated, err := s.dataPoints.Execute(ctx, dataPointID,
		func(*DataPoint) error { return nil },
		func(d *DataPoint) {
			d.Title = strings.TrimSpace(update.Title)
			d.Value = update.Value
			d.Unit = update.Unit
			d.Content = update.Content
			d.Category = update.Category
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "data point not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update data point")
	}

	changes := s.differ.Diff(audit.EntityDataPoint, before, updated.AuditSnapshot())
	if len(changes) == 0 {
		return updated, nil
	}

	entry := audit.Entry{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityDataPoint,
		EntityID:   updated.ID.String(),
		UserID:     actor,
		UserName:   requestcontext.UserName(ctx),
		ChangeNote: strings.TrimSpace(note),
		Changes:    changes,
	}
	s.tagBreakGlass(ctx, &entry, actor)
	s.auditLog.Append(ctx, entry)

	if s.metrics != nil {
		s.metrics.DataPointUpdates.Inc()
	}
	return updated, nil
}

// RolloverDataPoint carries a data point into a target period, copying its
// content and stamping the full lineage in one step. The copy lands in the
// target section as a fresh draft-period data point pointing back at its
// source.
func (s *Service) RolloverDataPoint(ctx context.Context, sourceID id.DataPointID, targetSectionID id.SectionID) (*DataPoint, error) {
	actor := requestcontext.UserID(ctx)
	if err := s.requirePermission(ctx, actor, id.ResourceDataPoints, id.ActionCreate); err != nil {
		return nil, err
	}

	source, err := s.GetDataPoint(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	sourcePeriod, err := s.GetPeriod(ctx, source.PeriodID)
	if err != nil {
		return nil, err
	}
	targetSection, err := s.GetSection(ctx, targetSectionID)
	if err != nil {
		return nil, err
	}
	if targetSection.PeriodID == source.PeriodID {
		return nil, dErrors.New(dErrors.CodeValidation, "rollover target must be in a different period")
	}
	if err := s.requireEditable(ctx, targetSection); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	sourcePeriodID := source.PeriodID
	sourceDataPointID := source.ID
	rolled := &DataPoint{
		ID:        id.NewDataPointID(),
		SectionID: targetSection.ID,
		PeriodID:  targetSection.PeriodID,
		Title:     source.Title,
		Value:     source.Value,
		Unit:      source.Unit,
		Content:   source.Content,
		Category:  source.Category,

		SourcePeriodID:          &sourcePeriodID,
		SourcePeriodName:        sourcePeriod.Name,
		SourceDataPointID:       &sourceDataPointID,
		RolloverTimestamp:       &now,
		RolloverPerformedBy:     &actor,
		RolloverPerformedByName: requestcontext.UserName(ctx),
	}
	if err := s.dataPoints.Save(ctx, rolled); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rolled-over data point")
	}

	entry := audit.Entry{
		Action:     audit.ActionRollover,
		EntityType: audit.EntityDataPoint,
		EntityID:   rolled.ID.String(),
		UserID:     actor,
		UserName:   requestcontext.UserName(ctx),
		Changes:    s.differ.Diff(audit.EntityDataPoint, audit.Snapshot{}, rolled.AuditSnapshot()),
	}
	s.tagBreakGlass(ctx, &entry, actor)
	s.auditLog.Append(ctx, entry)

	if s.metrics != nil {
		s.metrics.Rollovers.Inc()
	}
	s.logger.InfoContext(ctx, "data point rolled over",
		"source_id", source.ID,
		"target_id", rolled.ID,
		"target_period", targetSection.PeriodID,
	)
	return rolled, nil
}

// -----------------------------------------------------------------------------
// Pipeline gates
// -----------------------------------------------------------------------------

func (s *Service) requirePermission(ctx context.Context, actor id.UserID, resource id.ResourceType, action id.Action) error {
	decision, err := s.permissions.CheckPermission(ctx, actor, resource, action)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		if s.metrics != nil {
			s.metrics.EditsBlocked.WithLabelValues("permission").Inc()
		}
		return dErrors.New(dErrors.CodeForbidden, decision.DenialReason)
	}
	return nil
}

func (s *Service) requireEditable(ctx context.Context, section *Section) error {
	if s.editGate != nil {
		editable, reason, err := s.editGate.CanEditSection(ctx, section.ID)
		if err != nil {
			return err
		}
		if !editable {
			if s.metrics != nil {
				s.metrics.EditsBlocked.WithLabelValues("workflow").Inc()
			}
			return dErrors.New(dErrors.CodeConflict, reason)
		}
		return nil
	}
	if !section.Status.Editable() {
		if s.metrics != nil {
			s.metrics.EditsBlocked.WithLabelValues("workflow").Inc()
		}
		return dErrors.New(dErrors.CodeConflict, "section is not editable in its current workflow state")
	}
	return nil
}

func (s *Service) tagBreakGlass(ctx context.Context, entry *audit.Entry, actor id.UserID) {
	if s.bgSessions == nil {
		return
	}
	session, err := s.bgSessions.GetActiveSession(ctx, actor)
	if err != nil {
		s.logger.ErrorContext(ctx, "break-glass session lookup failed", "error", err, "user_id", actor)
		return
	}
	if session == nil {
		return
	}
	sessionID := session.ID
	entry.IsBreakGlassAction = true
	entry.BreakGlassSessionID = &sessionID
	s.bgSessions.IncrementActionCount(ctx, sessionID)
}
