// Package server exposes the automation controller and its persistent state
// over HTTP: a JSON API under /api, a websocket event stream, health probes
// and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/douuvid/Datagouv/internal/broadcast"
	"github.com/douuvid/Datagouv/internal/config"
	"github.com/douuvid/Datagouv/internal/domain"
	"github.com/douuvid/Datagouv/internal/errors"
	"github.com/douuvid/Datagouv/internal/files"
)

// AutomationService is what the handlers need from the session controller.
type AutomationService interface {
	Start(ctx context.Context) (*domain.Session, error)
	Pause(ctx context.Context) (*domain.Session, error)
	Stop(ctx context.Context) (*domain.Session, error)
	Status(ctx context.Context) (domain.Status, error)
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	automation  AutomationService
	store       domain.Store
	files       *files.Service
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock
	startTime   time.Time
}

func NewServer(cfg *config.Config, automation AutomationService, store domain.Store, fileService *files.Service, broadcaster *broadcast.Broadcaster, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		automation:  automation,
		store:       store,
		files:       fileService,
		broadcaster: broadcaster,
		clock:       clock,
		startTime:   clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
