package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verdant/internal/access"
	"verdant/internal/audit"
	"verdant/internal/breakglass"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/requestcontext"
)

// stubGate lets the suite script the workflow answer without importing the
// workflow package (which would be an import cycle from here).
type stubGate struct {
	editable bool
	reason   string
}

func (g stubGate) CanEditSection(context.Context, id.SectionID) (bool, string, error) {
	return g.editable, g.reason, nil
}

// =============================================================================
// Report Service Test Suite
// =============================================================================
// Justification for unit tests: the update pipeline chains four gates
// (permission, workflow, diff, audit); each refusal path and the skip-on-empty
// -diff rule need direct verification against the stores and the ledger.

type ReportServiceSuite struct {
	suite.Suite
	periods    *InMemoryPeriodStore
	sections   *InMemorySectionStore
	dataPoints *InMemoryDataPointStore
	users      *access.InMemoryUserStore
	roles      *access.InMemoryRoleStore
	auditStore *audit.InMemoryStore
	engine     *access.Engine
	svc        *Service
	ctx        context.Context
	now        time.Time

	period  *Period
	section *Section
}

func TestReportServiceSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceSuite))
}

func (s *ReportServiceSuite) SetupTest() {
	s.periods = NewInMemoryPeriodStore()
	s.sections = NewInMemorySectionStore()
	s.dataPoints = NewInMemoryDataPointStore()
	s.roles = access.NewInMemoryRoleStore()
	s.users = access.NewInMemoryUserStore()
	s.auditStore = audit.NewInMemoryStore()
	s.now = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.Require().NoError(access.SeedBuiltInRoles(s.ctx, s.roles))

	auditLog := audit.NewLog(s.auditStore)
	var err error
	s.engine, err = access.New(s.roles, s.users, access.NewInMemoryGrantStore(), auditLog, audit.NewDiffer())
	s.Require().NoError(err)
	s.svc, err = New(s.periods, s.sections, NewInMemoryVersionStore(), s.dataPoints,
		s.engine, auditLog, audit.NewDiffer(),
		WithEditGate(stubGate{editable: true}))
	s.Require().NoError(err)

	s.period = &Period{ID: id.NewPeriodID(), Name: "FY2026",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.periods.Save(s.ctx, s.period))

	s.section = &Section{
		ID:            id.NewSectionID(),
		PeriodID:      s.period.ID,
		Title:         "Energy Consumption",
		Status:        StatusDraft,
		VersionNumber: 1,
	}
	s.Require().NoError(s.sections.Save(s.ctx, s.section))
}

func (s *ReportServiceSuite) actorCtx(roleName string) (context.Context, *access.User) {
	user := &access.User{
		ID:       id.NewUserID(),
		Name:     "Casey Author",
		IsActive: true,
	}
	if roleName != "" {
		role, err := s.roles.FindByName(s.ctx, roleName)
		s.Require().NoError(err)
		user.RoleIDs = []id.RoleID{role.ID}
	}
	s.Require().NoError(s.users.Save(s.ctx, user))
	ctx := requestcontext.WithUserID(s.ctx, user.ID)
	return requestcontext.WithUserName(ctx, user.Name), user
}

func (s *ReportServiceSuite) seedDataPoint() *DataPoint {
	dataPoint := &DataPoint{
		ID:        id.NewDataPointID(),
		SectionID: s.section.ID,
		PeriodID:  s.period.ID,
		Title:     "Grid electricity",
		Value:     "420",
		Unit:      "MWh",
		Category:  "energy",
	}
	s.Require().NoError(s.dataPoints.Save(s.ctx, dataPoint))
	return dataPoint
}

func (s *ReportServiceSuite) dataPointEntries(action audit.Action) []audit.Entry {
	entries, err := s.auditStore.List(s.ctx, audit.Filter{
		EntityType: audit.EntityDataPoint,
		Action:     action,
	})
	s.Require().NoError(err)
	return entries
}

// =============================================================================
// UpdateDataPoint pipeline
// =============================================================================

func (s *ReportServiceSuite) TestUpdateDataPoint() {
	s.Run("contributor updates a draft-section data point", func() {
		ctx, user := s.actorCtx(access.RoleContributor)
		dataPoint := s.seedDataPoint()

		updated, err := s.svc.UpdateDataPoint(ctx, dataPoint.ID, DataPointUpdate{
			Title: "Grid electricity", Value: "455", Unit: "MWh", Category: "energy",
		}, "restated after meter audit")
		s.Require().NoError(err)
		s.Equal("455", updated.Value)

		entries := s.dataPointEntries(audit.ActionUpdate)
		s.Require().Len(entries, 1)
		entry := entries[0]
		s.Equal(user.ID, entry.UserID)
		s.Equal("restated after meter audit", entry.ChangeNote)
		s.False(entry.IsBreakGlassAction)
		s.Require().Len(entry.Changes, 1)
		s.Equal("Value", entry.Changes[0].Field)
		s.Equal("420", entry.Changes[0].OldValue)
		s.Equal("455", entry.Changes[0].NewValue)
	})

	s.Run("identical values append no audit entry", func() {
		ctx, _ := s.actorCtx(access.RoleContributor)
		dataPoint := s.seedDataPoint()
		before := len(s.dataPointEntries(audit.ActionUpdate))

		_, err := s.svc.UpdateDataPoint(ctx, dataPoint.ID, DataPointUpdate{
			Title: dataPoint.Title, Value: dataPoint.Value, Unit: dataPoint.Unit,
			Category: dataPoint.Category,
		}, "no-op")
		s.Require().NoError(err)
		s.Len(s.dataPointEntries(audit.ActionUpdate), before)
	})

	s.Run("reviewer lacks the edit capability", func() {
		ctx, _ := s.actorCtx(access.RoleReviewer)
		dataPoint := s.seedDataPoint()

		_, err := s.svc.UpdateDataPoint(ctx, dataPoint.ID, DataPointUpdate{Title: "x", Value: "1"}, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Contains(err.Error(), "Missing required permission")
	})

	s.Run("workflow gate refusal surfaces its reason", func() {
		gated, err := New(s.periods, s.sections, NewInMemoryVersionStore(), s.dataPoints,
			s.engine, audit.NewLog(s.auditStore), audit.NewDiffer(),
			WithEditGate(stubGate{editable: false,
				reason: "Section is awaiting approval (submitted by Sam Contributor) and cannot be edited"}))
		s.Require().NoError(err)

		ctx, _ := s.actorCtx(access.RoleContributor)
		dataPoint := s.seedDataPoint()

		_, err = gated.UpdateDataPoint(ctx, dataPoint.ID, DataPointUpdate{Title: "x", Value: "1"}, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "Sam Contributor")

		// The refused update never reached the store.
		stored, err := s.dataPoints.FindByID(s.ctx, dataPoint.ID)
		s.Require().NoError(err)
		s.Equal("420", stored.Value)
	})

	s.Run("unknown data point is a structured not found", func() {
		ctx, _ := s.actorCtx(access.RoleContributor)
		_, err := s.svc.UpdateDataPoint(ctx, id.NewDataPointID(), DataPointUpdate{Title: "x"}, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// recordingTagger reports a fixed active session and counts increments.
type recordingTagger struct {
	sessionID  *id.SessionID
	increments int
}

func (t *recordingTagger) GetActiveSession(context.Context, id.UserID) (*breakglass.Session, error) {
	if t.sessionID == nil {
		return nil, nil
	}
	return &breakglass.Session{ID: *t.sessionID, IsActive: true}, nil
}

func (t *recordingTagger) IncrementActionCount(context.Context, id.SessionID) {
	t.increments++
}

func (s *ReportServiceSuite) TestUpdateDataPointBreakGlassTagging() {
	sessionID := id.NewSessionID()
	tagger := &recordingTagger{sessionID: &sessionID}

	svc, err := New(s.periods, s.sections, NewInMemoryVersionStore(), s.dataPoints,
		s.engine, audit.NewLog(s.auditStore), audit.NewDiffer(),
		WithEditGate(stubGate{editable: true}),
		WithSessionTagger(tagger))
	s.Require().NoError(err)

	ctx, _ := s.actorCtx(access.RoleContributor)
	dataPoint := s.seedDataPoint()

	_, err = svc.UpdateDataPoint(ctx, dataPoint.ID, DataPointUpdate{
		Title: dataPoint.Title, Value: "999", Unit: dataPoint.Unit, Category: dataPoint.Category,
	}, "emergency correction before filing")
	s.Require().NoError(err)

	entries := s.dataPointEntries(audit.ActionUpdate)
	s.Require().NotEmpty(entries)
	entry := entries[len(entries)-1]
	s.True(entry.IsBreakGlassAction)
	s.Require().NotNil(entry.BreakGlassSessionID)
	s.Equal(sessionID, *entry.BreakGlassSessionID)
	s.Equal(1, tagger.increments)
}

// =============================================================================
// Rollover
// =============================================================================

func (s *ReportServiceSuite) TestRolloverDataPoint() {
	nextPeriod := &Period{ID: id.NewPeriodID(), Name: "FY2027",
		StartDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.periods.Save(s.ctx, nextPeriod))

	nextSection := &Section{
		ID:            id.NewSectionID(),
		PeriodID:      nextPeriod.ID,
		Title:         "Energy Consumption",
		Status:        StatusDraft,
		VersionNumber: 1,
	}
	s.Require().NoError(s.sections.Save(s.ctx, nextSection))

	s.Run("copies content and stamps the full lineage", func() {
		ctx, user := s.actorCtx(access.RoleContributor)
		source := s.seedDataPoint()

		rolled, err := s.svc.RolloverDataPoint(ctx, source.ID, nextSection.ID)
		s.Require().NoError(err)

		s.NotEqual(source.ID, rolled.ID)
		s.Equal(nextPeriod.ID, rolled.PeriodID)
		s.Equal(source.Value, rolled.Value)
		s.True(rolled.IsRolledOver())
		s.Require().NotNil(rolled.SourcePeriodID)
		s.Equal(s.period.ID, *rolled.SourcePeriodID)
		s.Equal("FY2026", rolled.SourcePeriodName)
		s.Require().NotNil(rolled.SourceDataPointID)
		s.Equal(source.ID, *rolled.SourceDataPointID)
		s.Require().NotNil(rolled.RolloverTimestamp)
		s.Equal(s.now, *rolled.RolloverTimestamp)
		s.Require().NotNil(rolled.RolloverPerformedBy)
		s.Equal(user.ID, *rolled.RolloverPerformedBy)

		// The source is untouched.
		stored, err := s.dataPoints.FindByID(s.ctx, source.ID)
		s.Require().NoError(err)
		s.False(stored.IsRolledOver())

		entries := s.dataPointEntries(audit.ActionRollover)
		s.Require().Len(entries, 1)
		s.Equal(rolled.ID.String(), entries[0].EntityID)
	})

	s.Run("rollover into the same period is rejected", func() {
		ctx, _ := s.actorCtx(access.RoleContributor)
		source := s.seedDataPoint()

		_, err := s.svc.RolloverDataPoint(ctx, source.ID, s.section.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Section resolution and creation gates
// =============================================================================

func (s *ReportServiceSuite) TestSectionPeriod() {
	periodID, err := s.svc.SectionPeriod(s.ctx, s.section.ID)
	s.Require().NoError(err)
	s.Equal(s.period.ID, periodID)

	_, err = s.svc.SectionPeriod(s.ctx, id.NewSectionID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ReportServiceSuite) TestCreateDataPoint() {
	s.Run("requires the create capability", func() {
		ctx, _ := s.actorCtx(access.RoleReviewer)
		_, err := s.svc.CreateDataPoint(ctx, s.section.ID, DataPointUpdate{Title: "New figure"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("creates and audits in an editable section", func() {
		ctx, _ := s.actorCtx(access.RoleContributor)
		dataPoint, err := s.svc.CreateDataPoint(ctx, s.section.ID, DataPointUpdate{
			Title: "Renewable share", Value: "34", Unit: "%",
		})
		s.Require().NoError(err)
		s.Equal(s.period.ID, dataPoint.PeriodID)

		entries := s.dataPointEntries(audit.ActionCreate)
		s.Require().NotEmpty(entries)
		s.Equal(dataPoint.ID.String(), entries[len(entries)-1].EntityID)
	})
}
