// Command spyconsole-server runs the spy console headless: it polls the
// robot backend, serves the dashboard API, and pushes change notifications
// to browsers over a websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cdtdelta/spyconsole/internal/bootstrap"
	"github.com/cdtdelta/spyconsole/internal/config"
	"github.com/cdtdelta/spyconsole/internal/logging"
	"github.com/cdtdelta/spyconsole/internal/server"
	"github.com/cdtdelta/spyconsole/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("spyconsole-server", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "spyconsole-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	st, err := bootstrap.Build(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(st.Service, st.Bus,
		server.WithObserver(st.Metrics),
		server.WithGatherer(st.Registry),
		server.WithLogger(log),
		server.WithWSBuffer(cfg.Server.WSBuffer),
	)

	log.Info("spyconsole-server starting", "version", version, "robot", cfg.Robot.BaseURL, "addr", cfg.Server.Addr)
	if err := st.Run(ctx, func(ctx context.Context) error {
		return srv.Run(ctx, cfg.Server.Addr)
	}); err != nil {
		return err
	}
	log.Info("spyconsole-server stopped")
	return nil
}
