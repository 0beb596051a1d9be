package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guestpulse/matrice-engine/pkg/api"
	"github.com/guestpulse/matrice-engine/pkg/bulk"
	"github.com/guestpulse/matrice-engine/pkg/health"
	"github.com/guestpulse/matrice-engine/pkg/resort"
	"github.com/guestpulse/matrice-engine/pkg/table"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

type config struct {
	Addr          string `yaml:"addr"`
	ResortsFile   string `yaml:"resorts_file"`
	HealthDB      string `yaml:"health_db"`
	ProbeInterval string `yaml:"probe_interval"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "resolve":
		cmdResolve(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: matrice-engine <command>\n\nCommands:\n  serve     Start the HTTP + MCP server\n  resolve   Resolve one respondent from the command line\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := loadConfig(*cfgPath, logger)

	// Load the resort -> spreadsheet registry.
	reg := resort.NewRegistry(cfg.ResortsFile)
	if err := reg.Load(); err != nil {
		logger.Error("failed to load resorts", "error", err)
		os.Exit(1)
	}
	logger.Info("resorts loaded", "count", reg.Count())

	fetcher := table.NewGvizFetcher()
	svc := &api.Service{
		Registry: reg,
		Fetcher:  fetcher,
		Runner:   bulk.NewRunner(fetcher, logger),
		Logger:   logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sheet reachability probes, persisted across restarts.
	var hdb *health.DB
	if cfg.HealthDB != "" {
		var err error
		hdb, err = health.Open(cfg.HealthDB)
		if err != nil {
			logger.Error("failed to open health db", "error", err)
			os.Exit(1)
		}
		defer hdb.Close()
		if err := hdb.Seed(probeEndpoints(reg, fetcher)); err != nil {
			logger.Error("failed to seed health probes", "error", err)
			os.Exit(1)
		}
		svc.Health = hdb

		interval := 10 * time.Minute
		if cfg.ProbeInterval != "" {
			d, err := time.ParseDuration(cfg.ProbeInterval)
			if err != nil {
				logger.Error("invalid probe_interval", "value", cfg.ProbeInterval, "error", err)
				os.Exit(1)
			}
			interval = d
		}
		go health.NewChecker(hdb, logger, interval).Start(ctx)
	}

	// MCP tools share the HTTP endpoints, mounted on the same listener.
	mcpSrv := server.NewMCPServer("matrice-engine", "1.0.0")
	api.RegisterMCPTools(mcpSrv, svc)

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
	mux.Handle("/", api.NewRouter(svc))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	// SIGHUP: hot reload the resort registry.
	// SIGINT/SIGTERM: graceful shutdown.
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, reloading resorts")
			if err := reg.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
				continue
			}
			logger.Info("resorts reloaded", "count", reg.Count())
			if hdb != nil {
				if err := hdb.Seed(probeEndpoints(reg, fetcher)); err != nil {
					logger.Error("failed to re-seed health probes", "error", err)
				}
			}
		}
	}()

	go func() {
		logger.Info("matrice-engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Shutdown(context.Background())
}

// probeEndpoints maps each resort to its matrice gviz URL, the sheet the
// dashboard cannot live without.
func probeEndpoints(reg *resort.Registry, fetcher *table.GvizFetcher) map[string]string {
	endpoints := make(map[string]string)
	for _, r := range reg.List() {
		endpoints[r.ID] = fetcher.URL(r.MatriceSource())
	}
	return endpoints
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:        ":8430",
		ResortsFile: "resorts.yaml",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}
