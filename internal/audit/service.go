package audit

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	auditmetrics "verdant/internal/audit/metrics"
	"verdant/pkg/requestcontext"
)

// Log is the append-only, queryable audit ledger. Every mutating operation in
// the governance core appends through it.
//
// Append never fails at this boundary: the caller's business operation has
// already been validated and applied, and a mutation without its ledger entry
// is worse than a delayed mirror. Store errors are surfaced through logs and
// metrics instead.
type Log struct {
	store   Store
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
	mirror  chan<- Entry

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	lastTS  time.Time
	seq     uint64
}

// Option configures the Log.
type Option func(*Log)

// WithLogger sets a logger for store/mirror failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

// WithMirror attaches an out-of-process delivery channel. Every appended
// entry is offered to the channel without blocking; a full channel drops the
// mirror copy (recorded in metrics), never the in-process append.
func WithMirror(inbox chan<- Entry) Option {
	return func(l *Log) {
		l.mirror = inbox
	}
}

// NewLog constructs the audit ledger over the given store.
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{
		store:   store,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append assigns the entry's ID and timestamp and stores it. Timestamps are
// monotonically non-decreasing per process so the ledger has a total order
// even when the wall clock steps backwards; Seq breaks exact-timestamp ties.
func (l *Log) Append(ctx context.Context, entry Entry) Entry {
	l.mu.Lock()
	now := requestcontext.Now(ctx)
	if now.Before(l.lastTS) {
		now = l.lastTS
	}
	l.lastTS = now
	l.seq++
	entry.Seq = l.seq
	entry.Timestamp = now
	entry.ID = ulid.MustNew(ulid.Timestamp(now), l.entropy).String()
	l.mu.Unlock()

	if err := l.store.Append(ctx, entry); err != nil {
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "audit store append failed",
				"entry_id", entry.ID,
				"action", entry.Action,
				"entity_type", entry.EntityType,
				"error", err,
			)
		}
	}

	if l.metrics != nil {
		l.metrics.IncrementAppended(string(entry.Action), entry.IsBreakGlassAction)
	}

	if l.mirror != nil {
		select {
		case l.mirror <- entry:
		default:
			if l.metrics != nil {
				l.metrics.IncrementMirrorFailures()
			}
			if l.logger != nil {
				l.logger.WarnContext(ctx, "audit mirror inbox full, dropping mirror copy",
					"entry_id", entry.ID,
				)
			}
		}
	}

	return entry
}

// Query returns entries matching all supplied filters, newest first. Ties in
// timestamp break in reverse insertion order. Callers may rely on this
// ordering without re-sorting.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].Seq > entries[j].Seq
	})
	return entries, nil
}
