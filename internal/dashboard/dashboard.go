// Package dashboard holds the operations behind the spy console: the
// filtered console view, timeline markers and timeframes, robot commands and
// the archive. The HTTP server and the desktop shell are thin bindings over
// a Service.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cdtdelta/spyconsole/internal/console"
	"github.com/cdtdelta/spyconsole/internal/database"
	"github.com/cdtdelta/spyconsole/internal/export"
	"github.com/cdtdelta/spyconsole/internal/feed"
	"github.com/cdtdelta/spyconsole/internal/logimport"
	"github.com/cdtdelta/spyconsole/internal/model"
	"github.com/cdtdelta/spyconsole/internal/notify"
	"github.com/cdtdelta/spyconsole/internal/query"
	"github.com/cdtdelta/spyconsole/internal/robot"
	"github.com/cdtdelta/spyconsole/internal/sensor"
	"github.com/cdtdelta/spyconsole/internal/timeline"
)

var (
	// ErrReviewMode is returned for movement commands while reviewing.
	ErrReviewMode = errors.New("dashboard: movement is disabled in review mode")
	// ErrNoArchive is returned by archive operations when no store is open.
	ErrNoArchive = errors.New("dashboard: no archive open")
	// ErrEmptyDescription is returned when adding an event with no text.
	ErrEmptyDescription = errors.New("dashboard: event description is empty")
	// ErrInvalidSpeed is returned for speeds outside 1..100.
	ErrInvalidSpeed = errors.New("dashboard: speed must be between 1 and 100")
	// ErrInvalidMode is returned for modes other than live and review.
	ErrInvalidMode = errors.New("dashboard: mode must be live or review")
	// ErrInvalidField is returned for archive fields that are not event columns.
	ErrInvalidField = errors.New("dashboard: unknown archive field")
	// ErrInvalidFilter is returned for archive filters with a bad operator or match.
	ErrInvalidFilter = errors.New("dashboard: invalid archive filter")
	// ErrInvalidGesture is returned for unknown track gesture kinds.
	ErrInvalidGesture = errors.New("dashboard: unknown track gesture")
)

// DensityBins is the number of bins in the marker density strip.
const DensityBins = 60

// Robot is the subset of the robot client the dashboard drives.
type Robot interface {
	AddEvent(ctx context.Context, description string) (*model.Event, error)
	Move(ctx context.Context, action robot.Action, speed int) (string, error)
	SetSpeed(ctx context.Context, speed int) (string, error)
	Distance(ctx context.Context) (float64, error)
	Status(ctx context.Context) (shutdown bool, err error)
	Latest(ctx context.Context) (string, error)
	RecordingURL(name string) string
	PlaySound(ctx context.Context) (string, error)
	Dead(ctx context.Context) (string, error)
}

// Feed is the event-list provider.
type Feed interface {
	Snapshot() (uint64, []*model.Event)
	Add(ctx context.Context, e *model.Event) uint64
	Status() feed.Status
}

// Recorder receives operator activity for metrics.
type Recorder interface {
	CommandSent(action string, err error)
	TimeframeMarked()
}

// Config holds the dashboard settings.
type Config struct {
	// Window is the review window length in seconds.
	Window  float64
	Console console.Options
}

// Service implements every dashboard operation.
type Service struct {
	robot    Robot
	feed     Feed
	notifier notify.Notifier
	rec      Recorder
	log      *slog.Logger
	view     *console.View
	window   float64

	gestureMu sync.Mutex
	selector  *timeline.Selector

	mu     sync.Mutex
	store  database.Store
	mode   model.Mode
	speed  int
	frames []model.Timeframe // used when no archive is open
}

// Option configures a Service.
type Option func(*Service)

// WithStore attaches the archive.
func WithStore(s database.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithNotifier publishes timeframe notifications to n.
func WithNotifier(n notify.Notifier) Option {
	return func(svc *Service) { svc.notifier = n }
}

// WithRecorder reports commands and timeframes to r.
func WithRecorder(r Recorder) Option {
	return func(svc *Service) { svc.rec = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// New constructs a Service in live mode at medium speed.
func New(r Robot, f Feed, cfg Config, opts ...Option) (*Service, error) {
	if cfg.Window == 0 {
		cfg.Window = timeline.DefaultWindow
	}
	sel, err := timeline.NewSelector(cfg.Window, nil, nil)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		robot:  r,
		feed:   f,
		log:    slog.Default(),
		view:   console.NewView(cfg.Console),
		window: cfg.Window,
		mode:   model.Live,
		speed:  robot.SpeedPresets[1].Speed,
	}
	svc.selector = sel
	for _, o := range opts {
		o(svc)
	}
	return svc, nil
}

// Window returns the review window length in seconds.
func (s *Service) Window() float64 { return s.window }

// Location returns the zone used to interpret timestamps.
func (s *Service) Location() *time.Location { return s.view.Options().Location }

// Status reports the feed state.
func (s *Service) Status() feed.Status { return s.feed.Status() }

// -- Console --

// Entry is one console line.
type Entry struct {
	Event  *model.Event `json:"event"`
	Tier   console.Tier `json:"tier"`
	Prefix string       `json:"prefix"`
	Color  string       `json:"color"`
	Time   string       `json:"time"`
}

// ConsoleResult is the filtered console view.
type ConsoleResult struct {
	Version uint64               `json:"version"`
	Filter  console.Selector     `json:"filter"`
	Search  string               `json:"search"`
	Total   int                  `json:"total"`
	Entries []Entry              `json:"entries"`
	Counts  map[console.Tier]int `json:"counts"`
}

// Console returns the current event list filtered by selector and search,
// newest first. An empty filter means all.
func (s *Service) Console(filter, search string) (*ConsoleResult, error) {
	sel, err := console.ParseSelector(filter)
	if err != nil {
		return nil, err
	}
	version, events := s.feed.Snapshot()
	shown, counts := s.view.ApplyCounted(version, events, sel, search)

	opts := s.view.Options()
	entries := make([]Entry, 0, len(shown))
	for _, e := range shown {
		tier := console.Classify(e)
		entries = append(entries, Entry{
			Event:  e,
			Tier:   tier,
			Prefix: console.Prefix(tier),
			Color:  console.Color(tier),
			Time:   opts.FormatTimestamp(e),
		})
	}
	return &ConsoleResult{
		Version: version,
		Filter:  sel,
		Search:  search,
		Total:   len(events),
		Entries: entries,
		Counts:  counts,
	}, nil
}

// ExportCSV writes the filtered console view as CSV.
func (s *Service) ExportCSV(w io.Writer, filter, search string) error {
	sel, err := console.ParseSelector(filter)
	if err != nil {
		return err
	}
	version, events := s.feed.Snapshot()
	return export.WriteEvents(w, s.view.Apply(version, events, sel, search), s.view.Options())
}

// -- Timeline --

// MarkersResult is the event track for one window.
type MarkersResult struct {
	Version  uint64            `json:"version"`
	Duration float64           `json:"duration"`
	Markers  []timeline.Marker `json:"markers"`
	Density  []int             `json:"density"`
}

// Markers places the current events on a track of the given duration.
// A zero duration uses the configured window.
func (s *Service) Markers(duration float64) (*MarkersResult, error) {
	if duration == 0 {
		duration = s.window
	}
	track, err := timeline.NewTrack(duration)
	if err != nil {
		return nil, err
	}
	track.Location = s.Location()

	version, events := s.feed.Snapshot()
	markers := track.Markers(events)
	return &MarkersResult{
		Version:  version,
		Duration: duration,
		Markers:  markers,
		Density:  timeline.Density(markers, DensityBins),
	}, nil
}

// Position is a pointer position resolved to a time in the window.
type Position struct {
	Time    float64 `json:"time"`
	Clock   string  `json:"clock"`
	Percent float64 `json:"percent"`
}

// PositionToTime resolves a pointer x coordinate on the track.
func (s *Service) PositionToTime(clientX float64, r timeline.Rect, duration float64) Position {
	if duration == 0 {
		duration = s.window
	}
	t := timeline.PositionToTime(clientX, r, duration)
	return Position{
		Time:    t,
		Clock:   timeline.FormatClock(t),
		Percent: timeline.PlayheadPercent(t, duration),
	}
}

// GestureKind names a pointer or touch event on the review track.
type GestureKind string

const (
	GestureDown  GestureKind = "down"
	GestureMove  GestureKind = "move"
	GestureUp    GestureKind = "up"
	GestureLeave GestureKind = "leave"
	GestureClick GestureKind = "click"
)

// Gesture is one pointer event on the track. Touch events use the same
// kinds for the first touch point.
type Gesture struct {
	Kind    GestureKind   `json:"kind"`
	ClientX float64       `json:"clientX"`
	Rect    timeline.Rect `json:"rect"`
}

// GestureResult is the track state after a gesture. Timeframe is set when
// the gesture committed a selection and Seek when it was a plain click.
type GestureResult struct {
	State     string            `json:"state"`
	Overlay   *timeline.Overlay `json:"overlay,omitempty"`
	Seek      *Position         `json:"seek,omitempty"`
	Timeframe *model.Timeframe  `json:"timeframe,omitempty"`
}

// TrackGesture feeds one gesture to the shared track selector. A drag that
// ends after moving is committed through MarkTimeframe.
func (s *Service) TrackGesture(ctx context.Context, g Gesture) (*GestureResult, error) {
	var (
		marked     bool
		start, end float64
		seek       *Position
	)

	s.gestureMu.Lock()
	sel := s.selector
	sel.OnMarkTimeframe = func(a, b float64) { marked, start, end = true, a, b }
	sel.OnTimeChange = func(t float64) {
		seek = &Position{
			Time:    t,
			Clock:   timeline.FormatClock(t),
			Percent: timeline.PlayheadPercent(t, s.window),
		}
	}
	switch g.Kind {
	case GestureDown:
		sel.Down(g.ClientX, g.Rect)
	case GestureMove:
		sel.Move(g.ClientX, g.Rect)
	case GestureUp:
		sel.Up()
	case GestureLeave:
		sel.Leave()
	case GestureClick:
		sel.Click(g.ClientX, g.Rect)
	default:
		s.gestureMu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrInvalidGesture, g.Kind)
	}
	res := &GestureResult{State: sel.State().String(), Seek: seek}
	if ov, ok := sel.SelectionOverlay(); ok {
		res.Overlay = &ov
	}
	s.gestureMu.Unlock()

	if !marked {
		return res, nil
	}
	tf, err := s.MarkTimeframe(ctx, start, end, "")
	if err != nil {
		return res, err
	}
	res.Timeframe = tf
	return res, nil
}

// MarkTimeframe commits a timeline selection. The ends are clamped to the
// window and ordered.
func (s *Service) MarkTimeframe(ctx context.Context, start, end float64, note string) (*model.Timeframe, error) {
	start, end = timeline.Normalize(start, end, s.window)
	tf := &model.Timeframe{Start: start, End: end, Note: strings.TrimSpace(note)}

	s.mu.Lock()
	store := s.store
	if store == nil {
		tf.ID = uuid.NewString()
		tf.CreatedAt = time.Now().UTC()
		s.frames = append(s.frames, *tf)
	}
	s.mu.Unlock()

	if store != nil {
		if err := store.InsertTimeframe(tf); err != nil {
			return nil, fmt.Errorf("saving timeframe: %w", err)
		}
	}

	if s.rec != nil {
		s.rec.TimeframeMarked()
	}
	s.log.Info("timeframe marked", "id", tf.ID, "start", tf.Start, "end", tf.End)
	s.publish(ctx, notify.Message{Kind: notify.TimeframeMarked, ID: tf.ID})
	return tf, nil
}

// Timeframes lists committed timeframes by start.
func (s *Service) Timeframes() ([]model.Timeframe, error) {
	s.mu.Lock()
	store := s.store
	if store == nil {
		out := make([]model.Timeframe, len(s.frames))
		copy(out, s.frames)
		s.mu.Unlock()
		sortTimeframes(out)
		return out, nil
	}
	s.mu.Unlock()
	return store.ListTimeframes()
}

// DeleteTimeframe removes a committed timeframe.
func (s *Service) DeleteTimeframe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store.DeleteTimeframe(id)
	}
	for i, tf := range s.frames {
		if tf.ID == id {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("timeframe %s: %w", id, database.ErrNotFound)
}

func sortTimeframes(frames []model.Timeframe) {
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Start < frames[j].Start })
}

// -- Events and robot --

// AddEvent records an operator annotation with the robot and shows it in
// the console until the next list replacement.
func (s *Service) AddEvent(ctx context.Context, description string) (*model.Event, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	e, err := s.robot.AddEvent(ctx, description)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("adding event: robot returned no event")
	}
	if e.Type == "" {
		e.Type = model.Manual
	}
	s.feed.Add(ctx, e)
	return e, nil
}

// Mode returns the dashboard mode.
func (s *Service) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between live and review.
func (s *Service) SetMode(m model.Mode) error {
	if m != model.Live && m != model.Review {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return nil
}

// Speed returns the current movement speed.
func (s *Service) Speed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Move sends a movement command. action may be a backend action name or an
// arrow-pad direction.
func (s *Service) Move(ctx context.Context, action string) (string, error) {
	s.mu.Lock()
	mode, speed := s.mode, s.speed
	s.mu.Unlock()
	if mode == model.Review {
		return "", ErrReviewMode
	}

	a, err := robot.ParseAction(action)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, action)
	}
	msg, err := s.robot.Move(ctx, a, speed)
	if s.rec != nil {
		s.rec.CommandSent(string(a), err)
	}
	if err != nil {
		return "", err
	}
	return msg, nil
}

// SetSpeed changes the movement speed on the robot and locally.
func (s *Service) SetSpeed(ctx context.Context, speed int) (string, error) {
	if speed < 1 || speed > 100 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidSpeed, speed)
	}
	msg, err := s.robot.SetSpeed(ctx, speed)
	if s.rec != nil {
		s.rec.CommandSent("speed", err)
	}
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
	return msg, nil
}

// Reading samples the ultrasonic sensor.
func (s *Service) Reading(ctx context.Context) (sensor.Reading, error) {
	d, err := s.robot.Distance(ctx)
	if err != nil {
		return sensor.NewReading(sensor.NoReading), err
	}
	return sensor.NewReading(d), nil
}

// RobotState is the backend's power state and newest recording.
type RobotState struct {
	Shutdown     bool   `json:"shutdown"`
	Recording    string `json:"recording,omitempty"`
	RecordingURL string `json:"recordingUrl,omitempty"`
}

// RobotState reads the backend status and its latest recording. A robot
// that has shut down is reported without asking for recordings.
func (s *Service) RobotState(ctx context.Context) (*RobotState, error) {
	shutdown, err := s.robot.Status(ctx)
	if err != nil {
		return nil, err
	}
	st := &RobotState{Shutdown: shutdown}
	if shutdown {
		return st, nil
	}
	name, err := s.robot.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if name != "" {
		st.Recording = name
		st.RecordingURL = s.robot.RecordingURL(name)
	}
	return st, nil
}

// PlaySound plays a distraction sound. Allowed in review mode.
func (s *Service) PlaySound(ctx context.Context) (string, error) {
	msg, err := s.robot.PlaySound(ctx)
	if s.rec != nil {
		s.rec.CommandSent("play_sound", err)
	}
	return msg, err
}

// PlayDead puts the robot's legs up. Like movement it is rejected in
// review mode.
func (s *Service) PlayDead(ctx context.Context) (string, error) {
	if s.Mode() == model.Review {
		return "", ErrReviewMode
	}
	msg, err := s.robot.Dead(ctx)
	if s.rec != nil {
		s.rec.CommandSent("dead", err)
	}
	return msg, err
}

// -- Archive --

// SetStore swaps the archive. The previous store is returned so the caller
// can close it.
func (s *Service) SetStore(store database.Store) database.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.store
	s.store = store
	return prev
}

func (s *Service) archive() (database.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNoArchive
	}
	return s.store, nil
}

// Histogram buckets archived events, optionally limited to [from, to] and
// to one event type. A zero time leaves that end open at the earliest or
// latest archived event.
func (s *Service) Histogram(from, to time.Time, eventType string) ([]database.HistogramBucket, error) {
	store, err := s.archive()
	if err != nil {
		return nil, err
	}

	var preds []*query.Predicate
	if !from.IsZero() || !to.IsZero() {
		first, last, err := store.GetMinMaxDate()
		if err != nil {
			return nil, fmt.Errorf("reading archive range: %w", err)
		}
		if first == "" {
			return []database.HistogramBucket{}, nil
		}
		if !from.IsZero() {
			first = database.FormatOccurredAt(from)
		}
		if !to.IsZero() {
			last = database.FormatOccurredAt(to)
		}
		preds = append(preds, query.DateRange(first, last))
	}
	if eventType != "" {
		p := query.Simple("type", query.Equal, eventType)
		if p == nil {
			return nil, fmt.Errorf("invalid event type filter %q", eventType)
		}
		preds = append(preds, p)
	}

	where, args := "", []interface{}(nil)
	if p := query.Combine(preds, query.AND); p != nil {
		next := 0
		where, args = p.WhereClauseFor(store.Dialect(), &next)
	}
	return store.Histogram(where, args)
}

// ArchiveSummary describes what the archive holds. Types and Severities
// count events per distinct value and feed the archive filter choices.
type ArchiveSummary struct {
	Total      int64            `json:"total"`
	First      string           `json:"first,omitempty"`
	Last       string           `json:"last,omitempty"`
	Types      map[string]int64 `json:"types"`
	Severities map[string]int64 `json:"severities"`
}

// ArchiveSummary counts archived events by type and severity and reports
// the span of their timestamps.
func (s *Service) ArchiveSummary() (*ArchiveSummary, error) {
	store, err := s.archive()
	if err != nil {
		return nil, err
	}
	sum := &ArchiveSummary{}
	if sum.Total, err = store.CountEvents("", nil); err != nil {
		return nil, fmt.Errorf("counting archive: %w", err)
	}
	if sum.First, sum.Last, err = store.GetMinMaxDate(); err != nil {
		return nil, fmt.Errorf("reading archive range: %w", err)
	}
	if sum.Types, err = store.GetDistinctValues("type"); err != nil {
		return nil, fmt.Errorf("listing event types: %w", err)
	}
	if sum.Severities, err = store.GetDistinctValues("severity"); err != nil {
		return nil, fmt.Errorf("listing severities: %w", err)
	}
	return sum, nil
}

// ReindexArchive replaces the archive's event indexes. No fields restores
// the default set.
func (s *Service) ReindexArchive(fields []string) error {
	store, err := s.archive()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		fields = database.DefaultIndexFields
	}
	for _, f := range fields {
		if !slices.Contains(model.Fields, f) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
	}
	if err := store.RebuildIndexes(fields); err != nil {
		return fmt.Errorf("rebuilding indexes: %w", err)
	}
	s.log.Info("archive reindexed", "fields", fields)
	return nil
}

// ArchivePage is a page of archived events.
type ArchivePage struct {
	Events     []*model.Event `json:"events"`
	TotalCount int64          `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
}

// SearchArchive queries archived events whose description or severity
// contains search, newest first. page is 1-based.
func (s *Service) SearchArchive(search string, page, pageSize int) (*ArchivePage, error) {
	store, err := s.archive()
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 500
	}

	q := query.New(pageSize)
	q.SetDialect(store.Dialect())
	if search = strings.TrimSpace(search); search != "" {
		q.SetLogic(query.OR)
		q.AddPredicate(query.Simple("description", query.Like, search))
		q.AddPredicate(query.Simple("severity", query.Like, search))
	}
	if err := q.OrderBy("occurred_at", true); err != nil {
		return nil, err
	}
	q.SetPage(page)

	sqlStr, args := q.Build()
	events, err := store.ExecuteQuery(sqlStr, args)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	countSQL, countArgs := q.BuildCount()
	total, err := store.ExecuteCountQuery(countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("counting archive: %w", err)
	}
	return &ArchivePage{Events: events, TotalCount: total, Page: q.PageNumber(), PageSize: pageSize}, nil
}

// FieldFilter is one condition of an archive query. Op is one of =, !=,
// LIKE, NOT LIKE, >= or <=.
type FieldFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// ArchiveQuery filters archived events field by field. Match is "all"
// (the default) or "any".
type ArchiveQuery struct {
	Filters  []FieldFilter `json:"filters"`
	Match    string        `json:"match"`
	OrderBy  string        `json:"orderBy"`
	Desc     bool          `json:"desc"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// ArchiveQueryResult is a page of matches plus the fields the filters
// touched.
type ArchiveQueryResult struct {
	ArchivePage
	Fields []string `json:"fields"`
}

// QueryArchive runs a structured filter over the archive. Results are
// ordered by occurred_at unless OrderBy names another field.
func (s *Service) QueryArchive(aq ArchiveQuery) (*ArchiveQueryResult, error) {
	store, err := s.archive()
	if err != nil {
		return nil, err
	}

	q := query.New(0)
	q.SetDialect(store.Dialect())
	switch strings.ToLower(strings.TrimSpace(aq.Match)) {
	case "", "all":
	case "any":
		q.SetLogic(query.OR)
	default:
		return nil, fmt.Errorf("%w: match %q", ErrInvalidFilter, aq.Match)
	}
	for _, f := range aq.Filters {
		op, ok := query.ParseOperator(f.Op)
		if !ok {
			return nil, fmt.Errorf("%w: operator %q", ErrInvalidFilter, f.Op)
		}
		p := query.Simple(f.Field, op, f.Value)
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		q.AddPredicate(p)
	}
	if aq.OrderBy == "" {
		aq.OrderBy = "occurred_at"
	}
	if err := q.OrderBy(aq.OrderBy, aq.Desc); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, aq.OrderBy)
	}
	if aq.PageSize <= 0 {
		aq.PageSize = 500
	}
	q.SetPage(aq.Page)
	page := q.PageNumber()

	orderBy := aq.OrderBy
	if aq.Desc {
		orderBy += " DESC"
	}
	where, args := q.Where()
	events, err := store.QueryEvents(where, args, orderBy, aq.PageSize, (page-1)*aq.PageSize)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	total, err := store.CountEvents(where, args)
	if err != nil {
		return nil, fmt.Errorf("counting archive: %w", err)
	}
	fields := q.PredicateFields()
	if fields == nil {
		fields = []string{}
	}
	return &ArchiveQueryResult{
		ArchivePage: ArchivePage{Events: events, TotalCount: total, Page: page, PageSize: aq.PageSize},
		Fields:      fields,
	}, nil
}

// ImportResult summarizes a log import.
type ImportResult struct {
	Read     int `json:"read"`
	Excluded int `json:"excluded"`
	Stored   int `json:"stored"`
}

// ImportLog reads a robot log file into the archive. onProgress receives
// the phase and a running count.
func (s *Service) ImportLog(path string, onProgress func(phase string, count int)) (*ImportResult, error) {
	store, err := s.archive()
	if err != nil {
		return nil, err
	}
	if onProgress == nil {
		onProgress = func(string, int) {}
	}

	if err := logimport.ValidateFile(path); err != nil {
		return nil, fmt.Errorf("invalid log file: %w", err)
	}
	result, err := logimport.ReadEvents(path, func(n int) { onProgress("reading", n) })
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	stored, err := store.UpsertEvents(result.Events, func(n int) { onProgress("storing", n) })
	if err != nil {
		return nil, fmt.Errorf("storing events: %w", err)
	}
	onProgress("done", stored)
	s.log.Info("log imported", "path", path, "read", result.Count, "excluded", result.Excluded, "stored", stored)
	return &ImportResult{Read: result.Count, Excluded: result.Excluded, Stored: stored}, nil
}

// SavedFilters lists the saved console filters.
func (s *Service) SavedFilters() ([]database.SavedFilter, error) {
	store, err := s.archive()
	if err != nil {
		return nil, err
	}
	return store.GetSavedFilters()
}

// SaveFilter stores a named console filter. The selector is validated.
func (s *Service) SaveFilter(f database.SavedFilter) error {
	store, err := s.archive()
	if err != nil {
		return err
	}
	sel, err := console.ParseSelector(f.Selector)
	if err != nil {
		return err
	}
	f.Selector = string(sel)
	return store.SaveFilter(f)
}

// DeleteFilter removes a saved console filter.
func (s *Service) DeleteFilter(name string) error {
	store, err := s.archive()
	if err != nil {
		return err
	}
	return store.DeleteFilter(name)
}

func (s *Service) publish(ctx context.Context, m notify.Message) {
	if s.notifier == nil {
		return
	}
	m.At = time.Now().UTC()
	if err := s.notifier.Publish(ctx, m); err != nil {
		s.log.Warn("publishing notification failed", "kind", m.Kind, "error", err)
	}
}
