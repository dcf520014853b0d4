package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/douuvid/Datagouv/internal/errors"
)

// sessionFilter parses the optional sessionId query parameter.
func sessionFilter(c echo.Context) (*int, error) {
	raw := c.QueryParam("sessionId")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.ValidationError("sessionId must be an integer")
	}
	return &id, nil
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.store.ListSessions(c.Request().Context())
	if err != nil {
		return errors.InternalError("failed to list sessions", err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleListApplications(c echo.Context) error {
	filter, err := sessionFilter(c)
	if err != nil {
		return err
	}
	applications, err := s.store.ListApplications(c.Request().Context(), filter)
	if err != nil {
		return errors.InternalError("failed to list applications", err)
	}
	return c.JSON(http.StatusOK, applications)
}

func (s *Server) handleListLogs(c echo.Context) error {
	filter, err := sessionFilter(c)
	if err != nil {
		return err
	}
	logs, err := s.store.ListLogs(c.Request().Context(), filter)
	if err != nil {
		return errors.InternalError("failed to list logs", err)
	}
	return c.JSON(http.StatusOK, logs)
}

func (s *Server) handleClearLogs(c echo.Context) error {
	filter, err := sessionFilter(c)
	if err != nil {
		return err
	}
	if err := s.store.ClearLogs(c.Request().Context(), filter); err != nil {
		return errors.InternalError("failed to clear logs", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logs cleared"})
}

func (s *Server) handleExportLogs(c echo.Context) error {
	filter, err := sessionFilter(c)
	if err != nil {
		return err
	}
	logs, err := s.store.ListLogs(c.Request().Context(), filter)
	if err != nil {
		return errors.InternalError("failed to list logs", err)
	}

	payload, err := s.files.ExportLogs(logs)
	if err != nil {
		return errors.InternalError("failed to export logs", err)
	}

	filename := fmt.Sprintf("logs_export_%s.json", s.clock.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
}

func (s *Server) handleListScreenshots(c echo.Context) error {
	filter, err := sessionFilter(c)
	if err != nil {
		return err
	}
	screenshots, err := s.store.ListScreenshots(c.Request().Context(), filter)
	if err != nil {
		return errors.InternalError("failed to list screenshots", err)
	}
	return c.JSON(http.StatusOK, screenshots)
}

func (s *Server) handleServeScreenshot(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errors.ValidationError("screenshot id must be an integer")
	}

	screenshots, err := s.store.ListScreenshots(c.Request().Context(), nil)
	if err != nil {
		return errors.InternalError("failed to list screenshots", err)
	}

	for _, shot := range screenshots {
		if shot.ID != id {
			continue
		}
		path := shot.FilePath
		if !s.files.Exists(path) {
			path = s.files.ScreenshotPath(filepath.Base(shot.FilePath))
		}
		if !s.files.Exists(path) {
			return errors.NotFoundError("screenshot file is missing").WithContext("screenshot_id", id)
		}
		return c.File(path)
	}

	return errors.NotFoundError("screenshot not found").WithContext("screenshot_id", id)
}
