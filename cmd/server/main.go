package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/automation"
	"github.com/douuvid/Datagouv/internal/broadcast"
	"github.com/douuvid/Datagouv/internal/config"
	"github.com/douuvid/Datagouv/internal/domain"
	"github.com/douuvid/Datagouv/internal/files"
	"github.com/douuvid/Datagouv/internal/logging"
	"github.com/douuvid/Datagouv/internal/server"
	"github.com/douuvid/Datagouv/internal/storage"
	"github.com/douuvid/Datagouv/internal/version"
	"github.com/douuvid/Datagouv/internal/worker"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config, clock clockwork.Clock) domain.Store {
	if cfg.DatabasePath == "" {
		slog.Info("Using in-memory store")
		return storage.NewMemStore(clock)
	}

	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	slog.Info("Using SQLite store", "path", cfg.DatabasePath)
	return store
}

func setupLauncher(cfg *config.Config, clock clockwork.Clock) worker.Launcher {
	if cfg.WorkerMode == config.WorkerModeProcess {
		slog.Info("Using external worker", "command", cfg.WorkerCommand)
		return worker.NewProcessLauncher(cfg.WorkerCommand)
	}

	catalog := worker.DefaultCatalog()
	if cfg.CatalogPath != "" {
		loaded, err := worker.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			slog.Error("Failed to load offer catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
		catalog = loaded
	}
	slog.Info("Using simulated worker", "offers", len(catalog))
	return worker.NewSimulatedLauncher(catalog, clock)
}

func runGracefulShutdown(srv *server.Server, controller *automation.Controller, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		controllerCtx, cancelController := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelController()
		if err := controller.Shutdown(controllerCtx); err != nil {
			slog.Error("Controller shutdown error", "error", err)
		}

		broadcaster.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	store := setupStore(cfg, clock)

	fileService, err := files.NewService(cfg.UploadDir, cfg.ScreenshotDir, clock)
	if err != nil {
		slog.Error("Failed to prepare file directories", "error", err)
		os.Exit(1)
	}

	launcher := setupLauncher(cfg, clock)
	broadcaster := broadcast.New()
	controller := automation.NewController(store, launcher, broadcaster, clock)

	srv := server.NewServer(cfg, controller, store, fileService, broadcaster, clock)

	done := runGracefulShutdown(srv, controller, broadcaster)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
