package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/parthrao/sqlite-mcp/pkg/config"
	"github.com/parthrao/sqlite-mcp/pkg/dbmanager"
	"github.com/parthrao/sqlite-mcp/pkg/gateway"
	"github.com/parthrao/sqlite-mcp/pkg/mcpserver"
	"github.com/parthrao/sqlite-mcp/pkg/policy"
)

var (
	configPath = flag.String("config", "", "Path to a YAML or TOML config file")
	dataDir    = flag.String("data-dir", config.DefaultDataDir, "The directory to store the databases in")
	transport  = flag.String("transport", config.DefaultTransport, "MCP transport: stdio, sse or http")
	addr       = flag.String("addr", config.DefaultAddr, "Listen address for the sse and http transports")
	logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn or error")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			cfg.Storage.DataDir = *dataDir
		case "transport":
			cfg.Server.Transport = *transport
		case "addr":
			cfg.Server.Addr = *addr
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	return cfg, cfg.Validate()
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := dbmanager.New(cfg.Storage.DataDir, dbmanager.Options{
		BusyTimeout: cfg.Storage.BusyTimeout,
		IdleTimeout: cfg.Storage.IdleTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open data dir: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("failed to close databases", "error", err)
		}
	}()

	pol, err := policy.New(policy.Config{
		AllowedStatements: cfg.Policy.AllowedStatements,
		Constraints:       cfg.Policy.Constraints,
	})
	if err != nil {
		return fmt.Errorf("failed to build policy: %w", err)
	}

	gw, err := gateway.New(gateway.Options{
		Databases:       mgr,
		Policy:          pol,
		DefaultDatabase: cfg.Storage.DefaultDatabase,
		MaxResults:      cfg.Storage.MaxResults,
		Enabled:         cfg.Policy.EnabledOperations,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	srv := mcpserver.New(gw, mcpserver.Config{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
		Logger:  logger,
	})

	logger.Info("starting sqlite mcp server",
		"data_dir", mgr.RootDir(),
		"default_database", cfg.Storage.DefaultDatabase,
		"transport", cfg.Server.Transport,
		"allowed_statements", pol.Allowed(),
	)
	return mcpserver.Serve(ctx, srv, cfg.Server.Transport, cfg.Server.Addr, logger)
}
