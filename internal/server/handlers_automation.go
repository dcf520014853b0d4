package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleStart(c echo.Context) error {
	session, err := s.automation.Start(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Automation started",
		"session": session,
	})
}

func (s *Server) handlePause(c echo.Context) error {
	session, err := s.automation.Pause(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Automation paused",
		"session": session,
	})
}

func (s *Server) handleStop(c echo.Context) error {
	session, err := s.automation.Stop(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Automation stopped",
		"session": session,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.automation.Status(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}
