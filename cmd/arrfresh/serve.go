package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	v1 "github.com/vmunix/arrfresh/internal/api/v1"
	"github.com/vmunix/arrfresh/internal/coalesce"
	"github.com/vmunix/arrfresh/internal/config"
	"github.com/vmunix/arrfresh/internal/events"
	"github.com/vmunix/arrfresh/internal/handlers"
	"github.com/vmunix/arrfresh/internal/migrations"
	"github.com/vmunix/arrfresh/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// One daemon per data dir. This is the process lock, not the
	// per-path coalescing lock.
	daemonLock := flock.New(filepath.Join(cfg.Server.DataDir, "arrfresh.lock"))
	locked, err := daemonLock.TryLock()
	if err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running (lock: %s)", daemonLock.Path())
	}
	defer func() { _ = daemonLock.Unlock() }()

	db, err := sql.Open("sqlite", filepath.Join(cfg.Server.DataDir, "arrfresh.db"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger.With("component", "bus"))
	defer func() { _ = bus.Close() }()

	provider := registry.NewConfigProvider(cfg.Servers, logger)
	resolver := registry.NewResolver(provider, logger)
	guard := coalesce.NewGuard(filepath.Join(cfg.Server.DataDir, coalesce.LockDirName))

	refresh := handlers.NewRefreshHandler(bus, cfg.Refresh, resolver, guard,
		logger.With("component", "refresh"))

	mux := http.NewServeMux()
	apiV1 := v1.New(v1.Deps{Bus: bus, EventLog: eventLog, Provider: provider}, logger)
	apiV1.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: v1.LogRequests(mux, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("server starting",
		"addr", addr,
		"data_dir", cfg.Server.DataDir,
		"refresh_enabled", cfg.Refresh.Enabled,
		"delay", cfg.Refresh.Delay.Duration().String(),
		"servers", len(cfg.Servers),
		"log_level", cfg.Server.LogLevel,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := refresh.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("refresh handler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
