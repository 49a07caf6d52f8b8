// Package lineage answers where a data point's value came from: the chain of
// rollovers that carried it across reporting periods, back to the period in
// which it was first authored.
package lineage

import (
	"context"
	"errors"
	"log/slog"

	"verdant/internal/report"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/sentinel"
)

// MaxDepth caps the backward walk. Genuine histories are a handful of
// periods deep; the cap exists so a corrupted cyclic source link cannot spin
// the walk forever.
const MaxDepth = 100

// Version is one data point's appearance in one period.
type Version struct {
	DataPointID  id.DataPointID `json:"dataPointId"`
	PeriodName   string         `json:"periodName"`
	Value        string         `json:"value"`
	Content      string         `json:"content,omitempty"`
	IsRolledOver bool           `json:"isRolledOver"`
}

// Lineage is the full cross-period history of a data point.
// PreviousVersions runs nearest-ancestor first; the last element is the
// origin unless HasMoreHistory is set.
type Lineage struct {
	DataPointID      id.DataPointID `json:"dataPointId"`
	Title            string         `json:"title"`
	CurrentVersion   Version        `json:"currentVersion"`
	PreviousVersions []Version      `json:"previousVersions"`
	TotalPeriods     int            `json:"totalPeriods"`
	HasMoreHistory   bool           `json:"hasMoreHistory"`
}

// Tracker walks data point source links. Read-only: lineage is derived
// entirely from the rollover stamps on the data points themselves.
type Tracker struct {
	dataPoints report.DataPointStore
	periods    report.PeriodStore
	logger     *slog.Logger
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func New(dataPoints report.DataPointStore, periods report.PeriodStore, opts ...Option) (*Tracker, error) {
	if dataPoints == nil || periods == nil {
		return nil, errors.New("data point and period stores are required")
	}
	t := &Tracker{
		dataPoints: dataPoints,
		periods:    periods,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// GetCrossPeriodLineage walks the source chain from the given data point back
// to its origin.
func (t *Tracker) GetCrossPeriodLineage(ctx context.Context, dataPointID id.DataPointID) (*Lineage, error) {
	current, err := t.dataPoints.FindByID(ctx, dataPointID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "data point not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find data point")
	}

	result := &Lineage{
		DataPointID:    current.ID,
		Title:          current.Title,
		CurrentVersion: t.version(ctx, current),
	}

	cursor := current
	for depth := 0; cursor.SourceDataPointID != nil; depth++ {
		if depth >= MaxDepth {
			result.HasMoreHistory = true
			break
		}
		ancestor, err := t.dataPoints.FindByID(ctx, *cursor.SourceDataPointID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Dangling source link: the chain points further back than
				// the stores can resolve.
				t.logger.WarnContext(ctx, "lineage chain broken",
					"data_point_id", cursor.ID,
					"missing_source_id", cursor.SourceDataPointID)
				result.HasMoreHistory = true
				break
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to walk lineage")
		}
		result.PreviousVersions = append(result.PreviousVersions, t.version(ctx, ancestor))
		cursor = ancestor
	}

	result.TotalPeriods = 1 + len(result.PreviousVersions)
	return result, nil
}

func (t *Tracker) version(ctx context.Context, dataPoint *report.DataPoint) Version {
	periodName := ""
	if period, err := t.periods.FindByID(ctx, dataPoint.PeriodID); err == nil {
		periodName = period.Name
	}
	return Version{
		DataPointID:  dataPoint.ID,
		PeriodName:   periodName,
		Value:        dataPoint.Value,
		Content:      dataPoint.Content,
		IsRolledOver: dataPoint.IsRolledOver(),
	}
}
