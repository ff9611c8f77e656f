package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/api"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/config"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/pipeline"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/query"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/store"
	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	readyPingTimeout  = 2 * time.Second
	startupPingWait   = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug | info | warn | error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, *configPath)
	cancel()
	if err != nil {
		slog.Error("clickhouse-bridge stopped", "err", err)
		os.Exit(1)
	}
}

// run returns only startup failures or a server that died on its own.
// A failing scrape never reaches here.
func run(ctx context.Context, configPath string) error {
	slog.Info("clickhouse-bridge starting", "config", configPath, "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	queries := cfg.ClickHouse.EffectiveQueries()

	slog.Info("config loaded",
		"listen", cfg.HTTP.Addr(),
		"clickhouse", cfg.ClickHouse.Addr(),
		"database", cfg.ClickHouse.Database,
		"user", cfg.ClickHouse.User,
		"tls", cfg.ClickHouse.TLS.Enabled,
		"queries", len(queries),
		"prefix", cfg.Prometheus.Prefix,
		"scrape_timeout", cfg.HTTP.ScrapeTimeout,
	)
	if len(cfg.ClickHouse.Queries) == 0 {
		slog.Warn("no queries configured, serving the default query only", "query", config.DefaultQuery)
	}

	client, err := store.Open(cfg.ClickHouse)
	if err != nil {
		return err
	}
	defer client.Close()

	// ClickHouse being down at startup is not fatal; /ready reports it and
	// scrapes fail until it answers.
	pingCtx, cancelPing := context.WithTimeout(ctx, startupPingWait)
	if err := client.Ping(pingCtx); err != nil {
		slog.Warn("clickhouse not reachable yet", "addr", cfg.ClickHouse.Addr(), "err", err)
	}
	cancelPing()

	metrics := telemetry.New()
	if cfg.ClickHouse.TLS.Enabled {
		checkCert(ctx, cfg.ClickHouse, metrics)
	}

	exec := query.New(telemetry.InstrumentStore(client, queries, metrics), queries)
	handler := api.New(pipeline.New(exec, cfg.Prometheus.Prefix, metrics), api.Options{
		ScrapeTimeout: cfg.HTTP.ScrapeTimeout,
		TelemetryPath: cfg.HTTP.TelemetryPath,
		Telemetry:     metrics.Handler(),
		Health:        api.NewHealth(metrics.Registry(), client.DB(), readyPingTimeout),
	})

	// Bind before serving so an occupied port is a startup error.
	lis, err := net.Listen("tcp", cfg.HTTP.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr(), err)
	}

	go func() {
		err := config.Watch(ctx, configPath, func(*config.Config) {
			slog.Warn("config file changed on disk, restart to apply", "path", configPath)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		serveErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("clickhouse-bridge shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func checkCert(ctx context.Context, cfg config.ClickHouseConfig, metrics *telemetry.Metrics) {
	cs, err := store.CheckCert(ctx, cfg)
	if err != nil {
		slog.Warn("clickhouse certificate check failed", "addr", cfg.Addr(), "err", err)
		return
	}
	metrics.SetCertDaysLeft(cs.DaysLeft)

	attrs := []any{"addr", cfg.Addr(), "issuer", cs.Issuer, "not_after", cs.NotAfter, "days_left", cs.DaysLeft}
	if cs.Status != store.CertValid {
		slog.Warn("clickhouse certificate "+cs.Status, attrs...)
		return
	}
	slog.Info("clickhouse certificate ok", attrs...)
}
