package report

import (
	"context"

	id "verdant/pkg/domain"
)

// PeriodStore persists reporting periods.
type PeriodStore interface {
	Save(ctx context.Context, period *Period) error
	FindByID(ctx context.Context, periodID id.PeriodID) (*Period, error)
	List(ctx context.Context) ([]*Period, error)
}

// SectionStore persists sections. Execute holds the lock across both
// validation and mutation so workflow transitions cannot interleave.
type SectionStore interface {
	Save(ctx context.Context, section *Section) error
	FindByID(ctx context.Context, sectionID id.SectionID) (*Section, error)
	ListByPeriod(ctx context.Context, periodID id.PeriodID) ([]*Section, error)
	Execute(ctx context.Context, sectionID id.SectionID, validate func(*Section) error, mutate func(*Section)) (*Section, error)
}

// VersionStore persists immutable approved-section snapshots.
type VersionStore interface {
	Save(ctx context.Context, version SectionVersion) error
	ListBySection(ctx context.Context, sectionID id.SectionID) ([]SectionVersion, error)
}

// DataPointStore persists data points.
type DataPointStore interface {
	Save(ctx context.Context, dataPoint *DataPoint) error
	FindByID(ctx context.Context, dataPointID id.DataPointID) (*DataPoint, error)
	ListBySection(ctx context.Context, sectionID id.SectionID) ([]*DataPoint, error)
	Execute(ctx context.Context, dataPointID id.DataPointID, validate func(*DataPoint) error, mutate func(*DataPoint)) (*DataPoint, error)
}
