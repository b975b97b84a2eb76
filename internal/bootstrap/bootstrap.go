// Package bootstrap assembles the spyconsole components from a Config. The
// headless server and the desktop shell both start from a Stack.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cdtdelta/spyconsole/internal/config"
	"github.com/cdtdelta/spyconsole/internal/console"
	"github.com/cdtdelta/spyconsole/internal/dashboard"
	"github.com/cdtdelta/spyconsole/internal/database"
	"github.com/cdtdelta/spyconsole/internal/feed"
	"github.com/cdtdelta/spyconsole/internal/metrics"
	"github.com/cdtdelta/spyconsole/internal/notify"
	"github.com/cdtdelta/spyconsole/internal/robot"
	"github.com/cdtdelta/spyconsole/internal/tracing"
)

// Stack is every long-lived component of a running console.
type Stack struct {
	Config   *config.Config
	Log      *slog.Logger
	Robot    *robot.Client
	Store    database.Store // nil when no archive is configured
	Bus      *notify.Bus
	Relay    *notify.Redis // nil without a Redis address
	Feed     *feed.Feed
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Service  *dashboard.Service

	rdb *redis.Client
}

// Build constructs a Stack. Nothing is started; call Run.
func Build(cfg *config.Config, log *slog.Logger) (*Stack, error) {
	if log == nil {
		log = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st := &Stack{
		Config:   cfg,
		Log:      log,
		Bus:      notify.NewBus(),
		Registry: prometheus.NewRegistry(),
	}
	st.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	st.Metrics = metrics.New(st.Registry)

	st.Robot = robot.New(cfg.Robot.BaseURL,
		robot.WithHTTPClient(tracing.Client(cfg.Robot.Timeout)),
		robot.WithRetries(*cfg.Robot.Retries),
	)

	if cfg.Store.Driver != "" {
		if cfg.Store.Driver == "sqlite" {
			if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("creating archive directory: %w", err)
			}
		}
		store, err := database.CreateStore(cfg.Store.Driver, cfg.Store.DSN, nil)
		if err != nil {
			return nil, fmt.Errorf("opening %s archive: %w", cfg.Store.Driver, err)
		}
		store.SetLocation(loc)
		st.Store = store
		log.Info("archive open", "driver", cfg.Store.Driver, "path", store.Path())
	}

	var pub notify.Notifier = st.Bus
	if cfg.Notify.RedisAddr != "" {
		st.rdb = redis.NewClient(&redis.Options{Addr: cfg.Notify.RedisAddr})
		st.Relay = notify.NewRedis(st.rdb, cfg.Notify.Channel, st.Bus, log)
		// Local subscribers hear our own messages through the relay.
		pub = st.Relay
	}

	feedOpts := []feed.Option{
		feed.WithInterval(cfg.Robot.PollInterval),
		feed.WithNotifier(pub),
		feed.WithObserver(st.Metrics),
		feed.WithLogger(log),
	}
	if st.Store != nil {
		feedOpts = append(feedOpts, feed.WithArchive(st.Store))
	}
	st.Feed = feed.New(st.Robot, feedOpts...)

	svcOpts := []dashboard.Option{
		dashboard.WithNotifier(pub),
		dashboard.WithRecorder(st.Metrics),
		dashboard.WithLogger(log),
	}
	if st.Store != nil {
		svcOpts = append(svcOpts, dashboard.WithStore(st.Store))
	}
	st.Service, err = dashboard.New(st.Robot, st.Feed, dashboard.Config{
		Window:  cfg.Timeline.Window,
		Console: console.Options{Location: loc, Layout: cfg.Console.Layout},
	}, svcOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// Run polls the robot and relays notifications until ctx is cancelled or a
// component fails. Extra functions run in the same group.
func (st *Stack) Run(ctx context.Context, extra ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Feed.Run(ctx) })
	if st.Relay != nil {
		g.Go(func() error { return st.Relay.Run(ctx) })
	}
	for _, fn := range extra {
		g.Go(func() error { return fn(ctx) })
	}
	return g.Wait()
}

// Close releases the archive, the Redis client and the bus.
func (st *Stack) Close() error {
	var firstErr error
	if st.rdb != nil {
		if err := st.rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if st.Store != nil {
		if err := st.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	st.Bus.Close()
	return firstErr
}
