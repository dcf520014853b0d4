// Package files handles document uploads, screenshot paths, and log exports.
package files

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/domain"
)

// DocumentKind names an uploadable document type.
type DocumentKind string

const (
	DocumentCV          DocumentKind = "cv"
	DocumentCoverLetter DocumentKind = "cover-letter"
)

// Service stores uploaded documents and produces log exports.
type Service struct {
	uploadDir     string
	screenshotDir string
	clock         clockwork.Clock
}

// NewService creates the file service, ensuring its directories exist.
func NewService(uploadDir, screenshotDir string, clock clockwork.Clock) (*Service, error) {
	for _, dir := range []string{uploadDir, screenshotDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Service{uploadDir: uploadDir, screenshotDir: screenshotDir, clock: clock}, nil
}

// SaveDocument writes an uploaded document under the uploads directory and
// returns its path. The original filename only contributes its extension.
func (s *Service) SaveDocument(src io.Reader, originalName string, kind DocumentKind) (string, error) {
	ext := filepath.Ext(originalName)
	filename := fmt.Sprintf("%s_%d%s", kind, s.clock.Now().UnixNano(), ext)
	path := filepath.Join(s.uploadDir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create document file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write document file: %w", err)
	}
	return path, nil
}

// ScreenshotPath resolves a screenshot filename inside the screenshot directory.
func (s *Service) ScreenshotPath(filename string) string {
	return filepath.Join(s.screenshotDir, filename)
}

// Exists reports whether a file exists at path.
func (s *Service) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogExport is the document shape produced by ExportLogs.
type LogExport struct {
	ExportDate time.Time          `json:"exportDate"`
	TotalLogs  int                `json:"totalLogs"`
	Logs       []ExportedLogEntry `json:"logs"`
}

// ExportedLogEntry is one exported log record.
type ExportedLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     domain.LogLevel `json:"level"`
	Message   string          `json:"message"`
	Metadata  map[string]any  `json:"metadata"`
}

// ExportLogs renders logs as an indented JSON document.
func (s *Service) ExportLogs(logs []domain.LogEntry) ([]byte, error) {
	export := LogExport{
		ExportDate: s.clock.Now(),
		TotalLogs:  len(logs),
		Logs:       make([]ExportedLogEntry, 0, len(logs)),
	}
	for _, e := range logs {
		export.Logs = append(export.Logs, ExportedLogEntry{
			Timestamp: e.Timestamp,
			Level:     e.Level,
			Message:   e.Message,
			Metadata:  e.Metadata,
		})
	}
	return json.MarshalIndent(export, "", "  ")
}
