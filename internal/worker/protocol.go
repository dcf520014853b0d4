package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/douuvid/Datagouv/internal/domain"
	"github.com/douuvid/Datagouv/internal/metrics"
)

// Marker prefixes structured lines on the worker's output stream. Anything
// else is treated as plain informational text.
const Marker = "JSON:"

// Wire payloads. Field names follow the worker protocol, not the REST API.

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type applicationStartedPayload struct {
	JobTitle string `json:"jobTitle"`
	Company  string `json:"company"`
	Location string `json:"location"`
}

type applicationCompletedPayload struct {
	JobTitle       string `json:"jobTitle"`
	Company        string `json:"company"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"errorMessage"`
	ScreenshotPath string `json:"screenshotPath"`
}

type screenshotCapturedPayload struct {
	ApplicationID *int   `json:"applicationId"`
	FilePath      string `json:"filePath"`
	Description   string `json:"description"`
}

type sessionStatsPayload struct {
	TotalApplications      int `json:"totalApplications"`
	SuccessfulApplications int `json:"successfulApplications"`
	FailedApplications     int `json:"failedApplications"`
}

type logPayload struct {
	Level    string         `json:"level"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
}

// ParseLine turns one worker stdout line into a typed message. Lines without
// the marker become RawLine. A marker line that fails to parse returns an
// error; the caller reports it and keeps going.
func ParseLine(line string) (Message, error) {
	if !strings.HasPrefix(line, Marker) {
		return RawLine{Text: line}, nil
	}

	raw := strings.TrimSpace(strings.TrimPrefix(line, Marker))

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		metrics.WorkerParseFailuresTotal.Inc()
		return nil, fmt.Errorf("malformed structured line: %w", err)
	}

	msg, err := decodePayload(env)
	if err != nil {
		metrics.WorkerParseFailuresTotal.Inc()
		return nil, err
	}
	return msg, nil
}

func decodePayload(env envelope) (Message, error) {
	switch env.Type {
	case "application_started":
		var p applicationStartedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ApplicationStarted{JobTitle: p.JobTitle, Company: p.Company, Location: p.Location}, nil

	case "application_completed":
		var p applicationCompletedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		status := domain.ApplicationStatus(p.Status)
		if status != domain.ApplicationSent && status != domain.ApplicationFailed && status != domain.ApplicationRetrying {
			return nil, fmt.Errorf("unknown application status %q", p.Status)
		}
		return ApplicationCompleted{
			JobTitle:       p.JobTitle,
			Company:        p.Company,
			Status:         status,
			ErrorMessage:   p.ErrorMessage,
			ScreenshotPath: p.ScreenshotPath,
		}, nil

	case "screenshot_captured":
		var p screenshotCapturedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ScreenshotCaptured{ApplicationID: p.ApplicationID, FilePath: p.FilePath, Description: p.Description}, nil

	case "session_stats":
		var p sessionStatsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return StatsUpdated{
			TotalApplications:      p.TotalApplications,
			SuccessfulApplications: p.SuccessfulApplications,
			FailedApplications:     p.FailedApplications,
		}, nil

	case "log":
		var p logPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		level := domain.LogLevel(p.Level)
		if !domain.ValidLogLevel(level) {
			level = domain.LogInfo
		}
		return LogEmitted{Level: level, Message: p.Message, Metadata: p.Metadata}, nil

	default:
		return Unrecognized{Type: env.Type}, nil
	}
}
