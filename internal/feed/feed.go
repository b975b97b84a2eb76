// Package feed keeps the console's copy of the robot event list current.
//
// The robot backend owns the list. A Feed polls it at a fixed interval,
// replaces its copy when the content changes, and publishes a single
// "events replaced" notification so views re-derive instead of polling
// themselves. Fetch failures are logged and the previous list is kept.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cdtdelta/spyconsole/internal/model"
	"github.com/cdtdelta/spyconsole/internal/notify"
	"github.com/cdtdelta/spyconsole/internal/tracing"
)

// DefaultInterval matches the dashboard's refresh cadence.
const DefaultInterval = 5 * time.Second

// Source fetches the full event list.
type Source interface {
	Logs(ctx context.Context) ([]*model.Event, error)
}

// Archive receives a copy of every replaced list.
type Archive interface {
	UpsertEvents(events []*model.Event, onProgress func(int)) (int, error)
}

// Observer is told about every poll and replacement.
type Observer interface {
	PollDone(err error, d time.Duration, n int)
	Replaced(version uint64)
}

// Status describes the last poll.
type Status struct {
	Version   uint64    `json:"version"`
	Count     int       `json:"count"`
	Pending   int       `json:"pending"`
	LastPoll  time.Time `json:"lastPoll"`
	LastError string    `json:"lastError,omitempty"`
}

// Feed is the event-list provider.
type Feed struct {
	src      Source
	pub      notify.Notifier
	archive  Archive
	obs      Observer
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	events      []*model.Event
	pending     []*model.Event
	version     uint64
	fingerprint [sha256.Size]byte
	lastPoll    time.Time
	lastErr     error
}

// Option configures a Feed.
type Option func(*Feed)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithNotifier sets where "list replaced" notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(f *Feed) { f.pub = n }
}

// WithArchive mirrors every replaced list into a.
func WithArchive(a Archive) Option {
	return func(f *Feed) { f.archive = a }
}

// WithObserver reports polls to o.
func WithObserver(o Observer) Option {
	return func(f *Feed) { f.obs = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.log = l
		}
	}
}

// New creates a Feed reading from src.
func New(src Source, opts ...Option) *Feed {
	f := &Feed{
		src:      src,
		log:      slog.Default(),
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	f.log = f.log.With("component", "feed")
	return f
}

// Interval returns the polling interval.
func (f *Feed) Interval() time.Duration {
	return f.interval
}

// Run polls immediately and then every interval until ctx is done.
// It always returns nil; fetch errors never stop the loop.
func (f *Feed) Run(ctx context.Context) error {
	f.log.Info("polling robot event log", "interval", f.interval)
	f.Poll(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Poll(ctx)
		}
	}
}

// Poll fetches the list once and reports whether it replaced the current one.
func (f *Feed) Poll(ctx context.Context) bool {
	ctx, span := tracing.Tracer().Start(ctx, "feed.poll")
	defer span.End()

	start := f.now()
	events, err := f.src.Logs(ctx)
	elapsed := f.now().Sub(start)
	span.SetAttributes(attribute.Int("events.count", len(events)))

	if f.obs != nil {
		f.obs.PollDone(err, elapsed, len(events))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		f.mu.Lock()
		f.lastPoll = start
		f.lastErr = err
		f.mu.Unlock()
		if ctx.Err() == nil {
			f.log.Warn("fetching events failed", "error", err)
		}
		return false
	}

	version, replaced := f.replace(start, events)
	span.SetAttributes(attribute.Bool("events.replaced", replaced))
	if !replaced {
		return false
	}

	f.log.Debug("event list replaced", "version", version, "count", len(events))
	if f.obs != nil {
		f.obs.Replaced(version)
	}
	if f.archive != nil {
		if _, err := f.archive.UpsertEvents(events, nil); err != nil {
			f.log.Warn("mirroring events failed", "error", err)
		}
	}
	f.publish(ctx, notify.Message{Kind: notify.EventsReplaced, Version: version, Count: len(events)})
	return true
}

func (f *Feed) replace(at time.Time, events []*model.Event) (uint64, bool) {
	sum := fingerprint(events)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPoll = at
	f.lastErr = nil
	if f.version > 0 && sum == f.fingerprint {
		return f.version, false
	}
	f.events = events
	f.fingerprint = sum
	// The backend list now includes whatever the operator added.
	f.pending = nil
	f.version++
	return f.version, true
}

// Add records an operator event before the backend list catches up.
// It is shown until the next replacement.
func (f *Feed) Add(ctx context.Context, e *model.Event) uint64 {
	f.mu.Lock()
	f.pending = append(f.pending, e)
	f.version++
	version := f.version
	f.mu.Unlock()

	f.publish(ctx, notify.Message{Kind: notify.EventAdded, Version: version, ID: string(e.ID)})
	return version
}

// Snapshot returns the current version and the list including pending
// operator events. The slice is fresh; events are shared and must not be
// modified.
func (f *Feed) Snapshot() (uint64, []*model.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*model.Event, 0, len(f.events)+len(f.pending))
	out = append(out, f.events...)
	out = append(out, f.pending...)
	return f.version, out
}

// Status reports the last poll result.
func (f *Feed) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Status{
		Version:  f.version,
		Count:    len(f.events) + len(f.pending),
		Pending:  len(f.pending),
		LastPoll: f.lastPoll,
	}
	if f.lastErr != nil {
		s.LastError = f.lastErr.Error()
	}
	return s
}

func (f *Feed) publish(ctx context.Context, m notify.Message) {
	if f.pub == nil {
		return
	}
	if err := f.pub.Publish(ctx, m); err != nil {
		f.log.Warn("publishing notification failed", "kind", m.Kind, "error", err)
	}
}

func fingerprint(events []*model.Event) [sha256.Size]byte {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, e := range events {
		// Encoding a model.Event cannot fail.
		_ = enc.Encode(e)
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
