package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Session lifecycle
	api := s.echo.Group("/api")
	api.POST("/automation/start", s.handleStart)
	api.POST("/automation/pause", s.handlePause)
	api.POST("/automation/stop", s.handleStop)
	api.GET("/automation/status", s.handleStatus)

	// Session state
	api.GET("/sessions", s.handleListSessions)
	api.GET("/applications", s.handleListApplications)
	api.GET("/logs", s.handleListLogs)
	api.DELETE("/logs", s.handleClearLogs)
	api.GET("/logs/export", s.handleExportLogs)
	api.GET("/screenshots", s.handleListScreenshots)
	api.GET("/screenshots/:id", s.handleServeScreenshot)

	// Configuration
	api.GET("/settings", s.handleGetSettings)
	api.POST("/settings", s.handleSaveSettings)
	api.GET("/user-config", s.handleGetUserConfig)
	api.POST("/user-config", s.handleSaveUserConfig)
	api.POST("/upload/cv", s.handleUploadCV)
	api.POST("/upload/cover-letter", s.handleUploadCoverLetter)

	// Event stream
	s.echo.GET("/ws", s.handleWebSocket)
}
