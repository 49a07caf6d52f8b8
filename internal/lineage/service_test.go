package lineage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verdant/internal/report"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

// =============================================================================
// Lineage Tracker Test Suite
// =============================================================================
// Justification for unit tests: the backward walk's ordering, origin
// detection, and broken-chain handling are pure derivations over store state;
// exercising them needs hand-built chains, not HTTP round trips.

type TrackerSuite struct {
	suite.Suite
	dataPoints *report.InMemoryDataPointStore
	periods    *report.InMemoryPeriodStore
	tracker    *Tracker
	ctx        context.Context
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.dataPoints = report.NewInMemoryDataPointStore()
	s.periods = report.NewInMemoryPeriodStore()
	s.ctx = context.Background()

	var err error
	s.tracker, err = New(s.dataPoints, s.periods)
	s.Require().NoError(err)
}

func (s *TrackerSuite) seedPeriod(name string, year int) *report.Period {
	period := &report.Period{
		ID:        id.NewPeriodID(),
		Name:      name,
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.periods.Save(s.ctx, period))
	return period
}

func (s *TrackerSuite) seedDataPoint(period *report.Period, value string, source *report.DataPoint) *report.DataPoint {
	dataPoint := &report.DataPoint{
		ID:        id.NewDataPointID(),
		SectionID: id.NewSectionID(),
		PeriodID:  period.ID,
		Title:     "Total emissions",
		Value:     value,
	}
	if source != nil {
		sourcePeriodID := source.PeriodID
		sourceID := source.ID
		dataPoint.SourcePeriodID = &sourcePeriodID
		dataPoint.SourceDataPointID = &sourceID
	}
	s.Require().NoError(s.dataPoints.Save(s.ctx, dataPoint))
	return dataPoint
}

func (s *TrackerSuite) TestGetCrossPeriodLineage() {
	s.Run("three-period chain walks back to the origin", func() {
		fy24 := s.seedPeriod("FY2024", 2024)
		fy25 := s.seedPeriod("FY2025", 2025)
		fy26 := s.seedPeriod("FY2026", 2026)

		origin := s.seedDataPoint(fy24, "1000", nil)
		middle := s.seedDataPoint(fy25, "1100", origin)
		latest := s.seedDataPoint(fy26, "1250", middle)

		lineage, err := s.tracker.GetCrossPeriodLineage(s.ctx, latest.ID)
		s.Require().NoError(err)

		s.Equal(latest.ID, lineage.DataPointID)
		s.Equal(3, lineage.TotalPeriods)
		s.False(lineage.HasMoreHistory)

		s.Equal("FY2026", lineage.CurrentVersion.PeriodName)
		s.True(lineage.CurrentVersion.IsRolledOver)

		// Nearest ancestor first; the origin closes the list and is the only
		// version not marked as rolled over.
		s.Require().Len(lineage.PreviousVersions, 2)
		s.Equal(middle.ID, lineage.PreviousVersions[0].DataPointID)
		s.Equal("FY2025", lineage.PreviousVersions[0].PeriodName)
		s.True(lineage.PreviousVersions[0].IsRolledOver)
		s.Equal(origin.ID, lineage.PreviousVersions[1].DataPointID)
		s.Equal("FY2024", lineage.PreviousVersions[1].PeriodName)
		s.False(lineage.PreviousVersions[1].IsRolledOver)
	})

	s.Run("fresh data point has a single-period lineage", func() {
		fy26 := s.seedPeriod("FY2026-b", 2026)
		fresh := s.seedDataPoint(fy26, "42", nil)

		lineage, err := s.tracker.GetCrossPeriodLineage(s.ctx, fresh.ID)
		s.Require().NoError(err)
		s.Equal(1, lineage.TotalPeriods)
		s.Empty(lineage.PreviousVersions)
		s.False(lineage.CurrentVersion.IsRolledOver)
		s.False(lineage.HasMoreHistory)
	})

	s.Run("unknown starting point is a structured not found", func() {
		_, err := s.tracker.GetCrossPeriodLineage(s.ctx, id.NewDataPointID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("dangling source link truncates with HasMoreHistory", func() {
		fy26 := s.seedPeriod("FY2026-c", 2026)
		missing := id.NewDataPointID()
		orphan := &report.DataPoint{
			ID:                id.NewDataPointID(),
			SectionID:         id.NewSectionID(),
			PeriodID:          fy26.ID,
			Title:             "Imported figure",
			Value:             "7",
			SourceDataPointID: &missing,
		}
		s.Require().NoError(s.dataPoints.Save(s.ctx, orphan))

		lineage, err := s.tracker.GetCrossPeriodLineage(s.ctx, orphan.ID)
		s.Require().NoError(err)
		s.Equal(1, lineage.TotalPeriods)
		s.True(lineage.HasMoreHistory)
	})

	s.Run("cyclic links stop at the depth cap", func() {
		fy := s.seedPeriod("FY-cycle", 2026)
		a := s.seedDataPoint(fy, "1", nil)
		b := s.seedDataPoint(fy, "2", a)

		// Corrupt a to point back at b.
		bID := b.ID
		a.SourceDataPointID = &bID
		s.Require().NoError(s.dataPoints.Save(s.ctx, a))

		lineage, err := s.tracker.GetCrossPeriodLineage(s.ctx, b.ID)
		s.Require().NoError(err)
		s.True(lineage.HasMoreHistory)
		s.Equal(1+MaxDepth, lineage.TotalPeriods)
	})

	s.Run("long legitimate chains resolve fully under the cap", func() {
		fy := s.seedPeriod("FY-long", 2026)
		var prev *report.DataPoint
		var last *report.DataPoint
		for i := 0; i < 10; i++ {
			last = s.seedDataPoint(fy, fmt.Sprintf("%d", i), prev)
			prev = last
		}

		lineage, err := s.tracker.GetCrossPeriodLineage(s.ctx, last.ID)
		s.Require().NoError(err)
		s.Equal(10, lineage.TotalPeriods)
		s.False(lineage.HasMoreHistory)
	})
}
