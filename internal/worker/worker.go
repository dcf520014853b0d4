// Package worker abstracts how automation work actually happens: spawning an
// external worker process or running the built-in simulated producer. Both
// sit behind the Launcher interface and feed the session controller a stream
// of typed messages.
package worker

import (
	"context"

	"github.com/douuvid/Datagouv/internal/domain"
)

// LaunchConfig is everything a worker needs to run one session.
type LaunchConfig struct {
	SessionID  int
	UserConfig domain.UserConfig
	Settings   domain.Settings
}

// Launcher starts a worker for a session.
type Launcher interface {
	Launch(ctx context.Context, cfg LaunchConfig) (Handle, error)
}

// Handle supervises one running worker. The message channel closes exactly
// once, after the worker has terminated; ExitCode is valid from then on.
type Handle interface {
	Messages() <-chan Message
	Terminate(force bool)
	ExitCode() int
}

// --- Message union ---

// Message is the closed set of things a worker can tell the controller.
type Message interface{ workerMessage() }

type baseMessage struct{}

func (baseMessage) workerMessage() {}

// ApplicationStarted reports a new job-application attempt.
type ApplicationStarted struct {
	baseMessage
	JobTitle string
	Company  string
	Location string
}

// ApplicationCompleted reports the outcome of an attempt.
type ApplicationCompleted struct {
	baseMessage
	JobTitle       string
	Company        string
	Status         domain.ApplicationStatus
	ErrorMessage   string
	ScreenshotPath string
}

// ScreenshotCaptured reports a saved capture.
type ScreenshotCaptured struct {
	baseMessage
	ApplicationID *int
	FilePath      string
	Description   string
}

// StatsUpdated carries the worker's rolling counters.
type StatsUpdated struct {
	baseMessage
	TotalApplications      int
	SuccessfulApplications int
	FailedApplications     int
}

// LogEmitted is a structured log line from the worker.
type LogEmitted struct {
	baseMessage
	Level    domain.LogLevel
	Message  string
	Metadata map[string]any
}

// RawLine is an unprefixed stdout line, treated as informational text.
type RawLine struct {
	baseMessage
	Text string
}

// WorkerError is raw error-stream text from the worker.
type WorkerError struct {
	baseMessage
	Text string
}

// Unrecognized is a structured message whose type is unknown. It is logged
// and otherwise ignored.
type Unrecognized struct {
	baseMessage
	Type string
}
