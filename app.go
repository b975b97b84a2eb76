package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/cdtdelta/spyconsole/internal/bootstrap"
	"github.com/cdtdelta/spyconsole/internal/config"
	"github.com/cdtdelta/spyconsole/internal/dashboard"
	"github.com/cdtdelta/spyconsole/internal/database"
	"github.com/cdtdelta/spyconsole/internal/export"
	"github.com/cdtdelta/spyconsole/internal/feed"
	"github.com/cdtdelta/spyconsole/internal/logging"
	"github.com/cdtdelta/spyconsole/internal/model"
	"github.com/cdtdelta/spyconsole/internal/robot"
	"github.com/cdtdelta/spyconsole/internal/sensor"
	"github.com/cdtdelta/spyconsole/internal/timeline"
)

// App is the main application struct that Wails binds to the frontend.
// All exported methods become callable from JavaScript.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	stack  *bootstrap.Stack
	log    *slog.Logger
	err    error
}

// NewApp creates a new App instance.
func NewApp() *App {
	return &App{}
}

// startup is called when the app starts. It loads the config named by
// SPYCONSOLE_CONFIG, opens the archive and starts polling the robot.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load(os.Getenv("SPYCONSOLE_CONFIG"))
	if err != nil {
		a.err = fmt.Errorf("loading config: %w", err)
		return
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
		cfg.Store.DSN = defaultArchivePath()
	}
	a.log = logging.Init(false, logging.ParseLevel(cfg.Log.Level))

	st, err := bootstrap.Build(cfg, a.log)
	if err != nil {
		a.err = err
		a.log.Error("startup failed", "error", err)
		return
	}
	a.stack = st

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.forwardNotifications(runCtx)
	go func() {
		if err := st.Run(runCtx); err != nil {
			a.log.Error("background tasks stopped", "error", err)
		}
	}()
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.stack != nil {
		a.stack.Close()
	}
}

// forwardNotifications re-emits bus messages as frontend events named after
// their kind, e.g. "events.replaced".
func (a *App) forwardNotifications(ctx context.Context) {
	msgs, cancel := a.stack.Bus.Subscribe(a.stack.Config.Server.WSBuffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			runtime.EventsEmit(a.ctx, string(m.Kind), m)
		}
	}
}

func defaultArchivePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "spyconsole", "archive.db")
}

func (a *App) service() (*dashboard.Service, error) {
	if a.stack == nil {
		if a.err != nil {
			return nil, a.err
		}
		return nil, fmt.Errorf("console is not running")
	}
	return a.stack.Service, nil
}

// -- Console --

// GetConsole returns the filtered console view.
func (a *App) GetConsole(filter, search string) (*dashboard.ConsoleResult, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.Console(filter, search)
}

// ExportCSV opens a save dialog and writes the filtered console view.
func (a *App) ExportCSV(filter, search string) (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}

	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Export Console as CSV",
		DefaultFilename: "spy_console.csv",
		Filters: []runtime.FileFilter{
			{DisplayName: "CSV Files (*.csv)", Pattern: "*.csv"},
		},
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil // user cancelled
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if err := svc.ExportCSV(f, filter, search); err != nil {
		f.Close()
		return "", fmt.Errorf("exporting: %w", err)
	}
	return path, f.Close()
}

// -- Timeline --

// GetMarkers places events on the review track. Pass 0 for the configured
// window.
func (a *App) GetMarkers(duration float64) (*dashboard.MarkersResult, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.Markers(duration)
}

// PositionToTime resolves a pointer x coordinate on the track.
func (a *App) PositionToTime(clientX, left, width, duration float64) (dashboard.Position, error) {
	svc, err := a.service()
	if err != nil {
		return dashboard.Position{}, err
	}
	return svc.PositionToTime(clientX, timeline.Rect{Left: left, Width: width}, duration), nil
}

// TrackGesture forwards a pointer or touch event on the track. kind is one
// of down, move, up, leave or click.
func (a *App) TrackGesture(kind string, clientX, left, width float64) (*dashboard.GestureResult, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.TrackGesture(a.ctx, dashboard.Gesture{
		Kind:    dashboard.GestureKind(kind),
		ClientX: clientX,
		Rect:    timeline.Rect{Left: left, Width: width},
	})
}

// MarkTimeframe commits a timeline selection.
func (a *App) MarkTimeframe(start, end float64, note string) (*model.Timeframe, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.MarkTimeframe(a.ctx, start, end, note)
}

// ListTimeframes returns committed timeframes ordered by start.
func (a *App) ListTimeframes() ([]model.Timeframe, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.Timeframes()
}

// DeleteTimeframe removes a committed timeframe.
func (a *App) DeleteTimeframe(id string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.DeleteTimeframe(id)
}

// ExportTimeframes opens a save dialog and writes the timeframes as CSV.
func (a *App) ExportTimeframes() (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	frames, err := svc.Timeframes()
	if err != nil {
		return "", err
	}

	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Export Timeframes",
		DefaultFilename: "timeframes.csv",
		Filters: []runtime.FileFilter{
			{DisplayName: "CSV Files (*.csv)", Pattern: "*.csv"},
		},
	})
	if err != nil || path == "" {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	ptrs := make([]*model.Timeframe, len(frames))
	for i := range frames {
		ptrs[i] = &frames[i]
	}
	if err := export.WriteTimeframes(f, ptrs); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// -- Robot --

// AddEvent records an operator annotation.
func (a *App) AddEvent(description string) (*model.Event, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.AddEvent(a.ctx, description)
}

// SendCommand sends a movement command by action or arrow-pad direction.
func (a *App) SendCommand(action string) (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	return svc.Move(a.ctx, action)
}

// SendKey maps a keyboard key to a movement command. Unbound keys are
// ignored and return an empty message.
func (a *App) SendKey(key string) (string, error) {
	action, ok := robot.ActionForKey(key)
	if !ok {
		return "", nil
	}
	return a.SendCommand(string(action))
}

// SetSpeed changes the movement speed.
func (a *App) SetSpeed(speed int) (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	return svc.SetSpeed(a.ctx, speed)
}

// GetSpeedPresets returns the speed slider stops.
func (a *App) GetSpeedPresets() []robot.SpeedPreset {
	return robot.SpeedPresets
}

// GetMode returns "live" or "review".
func (a *App) GetMode() (model.Mode, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	return svc.Mode(), nil
}

// SetMode switches between live and review.
func (a *App) SetMode(mode string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.SetMode(model.Mode(mode))
}

// GetReading samples the distance sensor.
func (a *App) GetReading() (sensor.Reading, error) {
	svc, err := a.service()
	if err != nil {
		return sensor.Reading{}, err
	}
	return svc.Reading(a.ctx)
}

// GetRobotState reports whether the robot is up and its newest recording.
func (a *App) GetRobotState() (*dashboard.RobotState, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.RobotState(a.ctx)
}

// PlaySound plays a distraction sound on the robot.
func (a *App) PlaySound() (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	return svc.PlaySound(a.ctx)
}

// PlayDead puts the robot's legs up.
func (a *App) PlayDead() (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	return svc.PlayDead(a.ctx)
}

// GetStatus reports the last poll of the robot event log.
func (a *App) GetStatus() (feed.Status, error) {
	svc, err := a.service()
	if err != nil {
		return feed.Status{}, err
	}
	return svc.Status(), nil
}

// -- Archive --

// ImportLog opens a file dialog and imports a robot log into the archive.
func (a *App) ImportLog() (*dashboard.ImportResult, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}

	path, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Import Robot Log",
		Filters: []runtime.FileFilter{
			{DisplayName: "Robot Logs (*.json, *.jsonl, *.csv)", Pattern: "*.json;*.jsonl;*.csv"},
			{DisplayName: "All Files (*.*)", Pattern: "*.*"},
		},
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	return svc.ImportLog(path, func(phase string, count int) {
		runtime.EventsEmit(a.ctx, "import:progress", map[string]interface{}{
			"phase": phase, "count": count,
		})
	})
}

// GetHistogram buckets archived events. from and to are optional
// timestamps in any accepted layout.
func (a *App) GetHistogram(from, to, eventType string) ([]database.HistogramBucket, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	fromT, err := parseOptionalTime(from, svc.Location())
	if err != nil {
		return nil, err
	}
	toT, err := parseOptionalTime(to, svc.Location())
	if err != nil {
		return nil, err
	}
	return svc.Histogram(fromT, toT, eventType)
}

// SearchArchive pages through archived events matching search.
func (a *App) SearchArchive(search string, page, pageSize int) (*dashboard.ArchivePage, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.SearchArchive(search, page, pageSize)
}

// GetArchiveSummary reports the archive's span and its type and severity
// counts.
func (a *App) GetArchiveSummary() (*dashboard.ArchiveSummary, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.ArchiveSummary()
}

// QueryArchive runs a field-by-field archive filter.
func (a *App) QueryArchive(aq dashboard.ArchiveQuery) (*dashboard.ArchiveQueryResult, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.QueryArchive(aq)
}

// ReindexArchive rebuilds the archive indexes on fields, or the defaults
// when fields is empty.
func (a *App) ReindexArchive(fields []string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.ReindexArchive(fields)
}

// GetSavedFilters returns all saved console filters.
func (a *App) GetSavedFilters() ([]database.SavedFilter, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	return svc.SavedFilters()
}

// SaveFilter stores a named console filter.
func (a *App) SaveFilter(name, selector, search string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.SaveFilter(database.SavedFilter{Name: name, Selector: selector, Search: search})
}

// DeleteFilter removes a saved console filter.
func (a *App) DeleteFilter(name string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.DeleteFilter(name)
}

// GetVersion returns the application version string.
func (a *App) GetVersion() string {
	return Version
}

func parseOptionalTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := model.ParseTimestamp(s, loc)
	if !ok {
		return time.Time{}, fmt.Errorf("unparseable time %q", s)
	}
	return t, nil
}
