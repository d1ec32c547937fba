package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/flatsite/internal/config"
	"git.home.luguber.info/inful/flatsite/internal/freeze"
	"git.home.luguber.info/inful/flatsite/internal/history"
	"git.home.luguber.info/inful/flatsite/internal/logfields"
	"git.home.luguber.info/inful/flatsite/internal/metrics"
	"git.home.luguber.info/inful/flatsite/internal/server"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		Port  int  `short:"p" help:"Override the configured port"`
		Watch bool `short:"w" help:"Mark the site dirty on filesystem changes"`
	} `cmd:"" help:"Serve the site with development-mode revalidation"`

	Freeze struct {
		Output string `short:"o" help:"Override the output directory"`
	} `cmd:"" help:"Render the whole site to the output directory"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`

	Builds struct {
		Limit int `default:"10" help:"Number of history records to show"`
	} `cmd:"" help:"Show recent freeze history"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch kctx.Command() {
	case "serve":
		runServe()
	case "freeze":
		runFreeze()
	case "init":
		if err := config.WriteStarter(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("failed to write starter config", logfields.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", CLI.Config)
	case "builds":
		runBuilds()
	default:
		slog.Error("unknown command", slog.String("command", kctx.Command()))
		os.Exit(1)
	}
}

// loadConfig falls back to the conventional defaults when no config file
// exists, so a bare site directory serves without ceremony.
func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		if _, statErr := os.Stat(CLI.Config); os.IsNotExist(statErr) {
			slog.Debug("no config file, using defaults", logfields.Path(CLI.Config))
			return config.Default()
		}
		slog.Error("failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}
	return cfg
}

func newServer(cfg *config.Config) (*server.Server, *prom.Registry) {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var registry *prom.Registry
	if cfg.Metrics {
		registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	srv, err := server.New(cfg, recorder, registry)
	if err != nil {
		slog.Error("failed to initialize site", logfields.Error(err))
		os.Exit(1)
	}
	return srv, registry
}

func runServe() {
	cfg := loadConfig()
	cfg.Verbose = cfg.Verbose || CLI.Verbose
	if CLI.Serve.Port != 0 {
		cfg.Port = CLI.Serve.Port
	}

	srv, _ := newServer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if CLI.Serve.Watch {
		go func() {
			if err := srv.Watch(ctx); err != nil {
				slog.Error("watcher stopped", logfields.Error(err))
			}
		}()
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server failed", logfields.Error(err))
		os.Exit(1)
	}
}

func runFreeze() {
	cfg := loadConfig()
	cfg.Verbose = cfg.Verbose || CLI.Verbose
	// Freezing is a production build: no per-request revalidation.
	cfg.Debug = false
	if CLI.Freeze.Output != "" {
		cfg.Output = CLI.Freeze.Output
	}

	srv, _ := newServer(cfg)

	var store *history.Store
	if cfg.History.Enabled {
		var err error
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			slog.Error("failed to open build history", logfields.Error(err))
			os.Exit(1)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics {
		recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
	}

	report, err := freeze.New(cfg, srv, recorder, store).Freeze(ctx)
	if err != nil {
		slog.Error("freeze failed", logfields.Error(err))
		os.Exit(1)
	}
	fmt.Printf("Froze %d files to %s in %s\n", report.Files, cfg.Output, report.Duration.Round(time.Millisecond))
}

func runBuilds() {
	cfg := loadConfig()
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Error("failed to open build history", logfields.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), CLI.Builds.Limit)
	if err != nil {
		slog.Error("failed to read build history", logfields.Error(err))
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No builds recorded yet.")
		return
	}
	for _, rec := range records {
		fmt.Printf("%s  %-7s  %4d files  %8s  %s\n",
			rec.StartedAt.Format("2006-01-02 15:04:05"), rec.Outcome, rec.Files, rec.Duration.Round(time.Millisecond), rec.ID)
	}
}
