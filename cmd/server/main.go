package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/headless-pm/cloudtask/internal/database"
	"github.com/headless-pm/cloudtask/internal/dispatch"
	"github.com/headless-pm/cloudtask/internal/events"
	"github.com/headless-pm/cloudtask/internal/service"
	"github.com/headless-pm/cloudtask/internal/storage"
	"github.com/headless-pm/cloudtask/pkg/config"
)

var (
	Version    = "dev"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "cloudtask",
		Short:   "Multi-tenant task and project management server",
		Version: Version,
		RunE:    runServe,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to optional config file (.toml or .json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(deadlinesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := log.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
	}
	if cfg.Format == "json" {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(os.Stderr, opts), nil
}

// app holds the wired stores shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     *log.Logger
	db         *database.Database
	dispatcher *dispatch.Dispatcher
	svc        *service.Service
	relay      *events.Relay
	nats       *events.NatsSender
}

func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(cfg.Database.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	files, err := storage.NewFileStorage(cfg.Storage.UploadDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	a.dispatcher = dispatch.New(db, logger)
	a.svc = service.NewService(db, files, a.dispatcher, logger)

	if cfg.Events.Enabled() {
		sender, err := events.ConnectNATS(cfg.Events.NatsURL, "cloudtask")
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.nats = sender
		a.relay = events.NewRelay(sender, events.Options{
			Prefix:     cfg.Events.Prefix,
			Workers:    cfg.Events.Workers,
			QueueSize:  cfg.Events.QueueSize,
			MaxRetries: cfg.Events.MaxRetries,
		}, logger)
		a.relay.Start()
		a.dispatcher.SetPublisher(a.relay)
		logger.Info("activity relay enabled", "url", cfg.Events.NatsURL, "prefix", cfg.Events.Prefix)
	}
	return a, nil
}

// Close drains the relay before releasing the connections.
func (a *app) Close() {
	if a.relay != nil {
		a.relay.Stop()
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "err", err)
	}
}
