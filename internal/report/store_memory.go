package report

import (
	"context"
	"sort"
	"sync"
	"time"

	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
)

// InMemoryPeriodStore keeps periods in a map guarded by a RWMutex.
type InMemoryPeriodStore struct {
	mu      sync.RWMutex
	periods map[id.PeriodID]*Period
}

func NewInMemoryPeriodStore() *InMemoryPeriodStore {
	return &InMemoryPeriodStore{periods: make(map[id.PeriodID]*Period)}
}

func (s *InMemoryPeriodStore) Save(_ context.Context, period *Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *period
	s.periods[period.ID] = &p
	return nil
}

func (s *InMemoryPeriodStore) FindByID(_ context.Context, periodID id.PeriodID) (*Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	period, ok := s.periods[periodID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := *period
	return &p, nil
}

func (s *InMemoryPeriodStore) List(_ context.Context) ([]*Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Period, 0, len(s.periods))
	for _, period := range s.periods {
		p := *period
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// InMemorySectionStore keeps sections in a map guarded by a RWMutex.
// Execute runs validation and mutation under the write lock.
type InMemorySectionStore struct {
	mu       sync.RWMutex
	sections map[id.SectionID]*Section
}

func NewInMemorySectionStore() *InMemorySectionStore {
	return &InMemorySectionStore{sections: make(map[id.SectionID]*Section)}
}

func (s *InMemorySectionStore) Save(_ context.Context, section *Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[section.ID] = copySection(section)
	return nil
}

func (s *InMemorySectionStore) FindByID(_ context.Context, sectionID id.SectionID) (*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	section, ok := s.sections[sectionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySection(section), nil
}

func (s *InMemorySectionStore) ListByPeriod(_ context.Context, periodID id.PeriodID) ([]*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Section
	for _, section := range s.sections {
		if section.PeriodID == periodID {
			out = append(out, copySection(section))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *InMemorySectionStore) Execute(_ context.Context, sectionID id.SectionID, validate func(*Section) error, mutate func(*Section)) (*Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, ok := s.sections[sectionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(section); err != nil {
		return nil, err
	}
	mutate(section)
	return copySection(section), nil
}

func copySection(section *Section) *Section {
	out := *section
	out.SubmittedAt = copyTime(section.SubmittedAt)
	out.SubmittedBy = copyUserID(section.SubmittedBy)
	out.ApprovedAt = copyTime(section.ApprovedAt)
	out.ApprovedBy = copyUserID(section.ApprovedBy)
	return &out
}

// InMemoryVersionStore keeps approved-section snapshots append-only.
type InMemoryVersionStore struct {
	mu       sync.RWMutex
	versions []SectionVersion
}

func NewInMemoryVersionStore() *InMemoryVersionStore {
	return &InMemoryVersionStore{}
}

func (s *InMemoryVersionStore) Save(_ context.Context, version SectionVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, version)
	return nil
}

func (s *InMemoryVersionStore) ListBySection(_ context.Context, sectionID id.SectionID) ([]SectionVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SectionVersion
	for _, version := range s.versions {
		if version.SectionID == sectionID {
			out = append(out, version)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VersionNumber < out[j].VersionNumber
	})
	return out, nil
}

// InMemoryDataPointStore keeps data points in a map guarded by a RWMutex.
type InMemoryDataPointStore struct {
	mu         sync.RWMutex
	dataPoints map[id.DataPointID]*DataPoint
}

func NewInMemoryDataPointStore() *InMemoryDataPointStore {
	return &InMemoryDataPointStore{dataPoints: make(map[id.DataPointID]*DataPoint)}
}

func (s *InMemoryDataPointStore) Save(_ context.Context, dataPoint *DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataPoints[dataPoint.ID] = copyDataPoint(dataPoint)
	return nil
}

func (s *InMemoryDataPointStore) FindByID(_ context.Context, dataPointID id.DataPointID) (*DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dataPoint, ok := s.dataPoints[dataPointID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyDataPoint(dataPoint), nil
}

func (s *InMemoryDataPointStore) ListBySection(_ context.Context, sectionID id.SectionID) ([]*DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DataPoint
	for _, dataPoint := range s.dataPoints {
		if dataPoint.SectionID == sectionID {
			out = append(out, copyDataPoint(dataPoint))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *InMemoryDataPointStore) Execute(_ context.Context, dataPointID id.DataPointID, validate func(*DataPoint) error, mutate func(*DataPoint)) (*DataPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dataPoint, ok := s.dataPoints[dataPointID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(dataPoint); err != nil {
		return nil, err
	}
	mutate(dataPoint)
	return copyDataPoint(dataPoint), nil
}

func copyDataPoint(dataPoint *DataPoint) *DataPoint {
	out := *dataPoint
	if dataPoint.SourcePeriodID != nil {
		v := *dataPoint.SourcePeriodID
		out.SourcePeriodID = &v
	}
	if dataPoint.SourceDataPointID != nil {
		v := *dataPoint.SourceDataPointID
		out.SourceDataPointID = &v
	}
	out.RolloverTimestamp = copyTime(dataPoint.RolloverTimestamp)
	out.RolloverPerformedBy = copyUserID(dataPoint.RolloverPerformedBy)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyUserID(u *id.UserID) *id.UserID {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}
