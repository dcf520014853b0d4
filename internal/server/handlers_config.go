package server

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/douuvid/Datagouv/internal/domain"
	"github.com/douuvid/Datagouv/internal/errors"
	"github.com/douuvid/Datagouv/internal/files"
)

func (s *Server) handleGetSettings(c echo.Context) error {
	settings, err := s.store.GetSettings(c.Request().Context())
	if stderrors.Is(err, domain.ErrSettingsNotFound) {
		defaults := domain.DefaultSettings()
		return c.JSON(http.StatusOK, defaults)
	}
	if err != nil {
		return errors.InternalError("failed to load settings", err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(c echo.Context) error {
	var settings domain.Settings
	if err := c.Bind(&settings); err != nil {
		return errors.ValidationError("invalid settings payload")
	}
	if err := settings.Validate(); err != nil {
		return errors.ValidationError("delayBetweenApplications and maxApplicationsPerSession must be at least 1")
	}

	ctx := c.Request().Context()
	_, err := s.store.GetSettings(ctx)
	if stderrors.Is(err, domain.ErrSettingsNotFound) {
		saved, createErr := s.store.CreateSettings(ctx, settings)
		if createErr != nil {
			return errors.InternalError("failed to save settings", createErr)
		}
		return c.JSON(http.StatusOK, saved)
	}
	if err != nil {
		return errors.InternalError("failed to load settings", err)
	}

	saved, err := s.store.UpdateSettings(ctx, settings)
	if err != nil {
		return errors.InternalError("failed to save settings", err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleGetUserConfig(c echo.Context) error {
	cfg, err := s.store.GetUserConfig(c.Request().Context())
	if stderrors.Is(err, domain.ErrUserConfigNotFound) {
		return errors.NotFoundError("no user configuration saved")
	}
	if err != nil {
		return errors.InternalError("failed to load user configuration", err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleSaveUserConfig(c echo.Context) error {
	var cfg domain.UserConfig
	if err := c.Bind(&cfg); err != nil {
		return errors.ValidationError("invalid user configuration payload")
	}
	if cfg.FirstName == "" || cfg.LastName == "" || cfg.Email == "" {
		return errors.ValidationError("firstName, lastName and email are required")
	}

	saved, err := s.store.ReplaceUserConfig(c.Request().Context(), cfg)
	if err != nil {
		return errors.InternalError("failed to save user configuration", err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleUploadCV(c echo.Context) error {
	return s.handleUpload(c, files.DocumentCV)
}

func (s *Server) handleUploadCoverLetter(c echo.Context) error {
	return s.handleUpload(c, files.DocumentCoverLetter)
}

func (s *Server) handleUpload(c echo.Context, kind files.DocumentKind) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errors.ValidationError("a file must be attached under the 'file' field")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return errors.InternalError("failed to read uploaded file", err)
	}
	defer src.Close()

	path, err := s.files.SaveDocument(src, fileHeader.Filename, kind)
	if err != nil {
		return errors.InternalError("failed to store uploaded file", err)
	}

	patch := domain.UserConfigPatch{}
	if kind == files.DocumentCV {
		patch.CVPath = &path
	} else {
		patch.CoverLetterPath = &path
	}

	ctx := c.Request().Context()
	cfg, err := s.store.UpdateUserConfig(ctx, patch)
	if stderrors.Is(err, domain.ErrUserConfigNotFound) {
		return errors.ValidationError("user configuration must be saved before uploading documents")
	}
	if err != nil {
		return errors.InternalError("failed to update user configuration", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"path":   path,
		"config": cfg,
	})
}
