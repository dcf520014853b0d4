package domain

import (
	"context"
	"time"
)

// --- Session ---

// SessionStatus is the lifecycle state of an automation session.
type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionStopped   SessionStatus = "stopped"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStopped || s == SessionCompleted || s == SessionFailed
}

// Active reports whether the status counts against the one-active-session rule.
func (s SessionStatus) Active() bool {
	return s == SessionRunning || s == SessionPaused
}

// Session is one run of the automation, from start to a terminal state.
// Counters satisfy TotalApplications == SuccessfulApplications + FailedApplications
// after every stats update.
type Session struct {
	ID                     int           `json:"id"`
	Status                 SessionStatus `json:"status"`
	StartedAt              time.Time     `json:"startedAt"`
	EndedAt                *time.Time    `json:"endedAt"`
	TotalApplications      int           `json:"totalApplications"`
	SuccessfulApplications int           `json:"successfulApplications"`
	FailedApplications     int           `json:"failedApplications"`
	UserConfigID           int           `json:"userConfigId"`
	Settings               Settings      `json:"settings"`
}

// --- Application ---

// ApplicationStatus is the per-application outcome state.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationSent     ApplicationStatus = "sent"
	ApplicationFailed   ApplicationStatus = "failed"
	ApplicationRetrying ApplicationStatus = "retrying"
)

// Application is a single job-application attempt owned by a session.
type Application struct {
	ID             int               `json:"id"`
	SessionID      int               `json:"sessionId"`
	JobTitle       string            `json:"jobTitle"`
	Company        string            `json:"company"`
	Location       string            `json:"location"`
	Status         ApplicationStatus `json:"status"`
	ErrorMessage   *string           `json:"errorMessage"`
	AppliedAt      time.Time         `json:"appliedAt"`
	ScreenshotPath *string           `json:"screenshotPath"`
}

// --- LogEntry ---

// LogLevel enumerates the allowed log entry levels.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarn    LogLevel = "warn"
	LogError   LogLevel = "error"
	LogDebug   LogLevel = "debug"
	LogSuccess LogLevel = "success"
)

// ValidLogLevel reports whether l is one of the enumerated levels.
func ValidLogLevel(l LogLevel) bool {
	switch l {
	case LogInfo, LogWarn, LogError, LogDebug, LogSuccess:
		return true
	}
	return false
}

// LogEntry is an append-only session log record.
type LogEntry struct {
	ID        int            `json:"id"`
	SessionID int            `json:"sessionId"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// --- Screenshot ---

// Screenshot is a capture taken during a session. File bytes live on disk;
// only the path is tracked here.
type Screenshot struct {
	ID            int       `json:"id"`
	SessionID     int       `json:"sessionId"`
	ApplicationID *int      `json:"applicationId"`
	FilePath      string    `json:"filePath"`
	Description   string    `json:"description"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// --- Settings ---

// Settings is the deployment-wide automation configuration, snapshotted into
// each session at start.
type Settings struct {
	ID                        int       `json:"id"`
	DelayBetweenApplications  int       `json:"delayBetweenApplications"`
	MaxApplicationsPerSession int       `json:"maxApplicationsPerSession"`
	AutoFillForm              bool      `json:"autoFillForm"`
	AutoSendApplication       bool      `json:"autoSendApplication"`
	PauseBeforeSend           bool      `json:"pauseBeforeSend"`
	CaptureScreenshots        bool      `json:"captureScreenshots"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

// DefaultSettings returns the settings used when none have been saved yet.
func DefaultSettings() Settings {
	return Settings{
		DelayBetweenApplications:  30,
		MaxApplicationsPerSession: 50,
		AutoFillForm:              true,
		AutoSendApplication:       true,
		PauseBeforeSend:           false,
		CaptureScreenshots:        true,
	}
}

// Validate checks the numeric bounds on settings.
func (s Settings) Validate() error {
	if s.DelayBetweenApplications < 1 {
		return ErrInvalidSettings
	}
	if s.MaxApplicationsPerSession < 1 {
		return ErrInvalidSettings
	}
	return nil
}

// --- UserConfig ---

// UserConfig is the applicant identity and search preferences. It is owned by
// the API layer; the core reads it at session start.
type UserConfig struct {
	ID              int       `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Message         string    `json:"message"`
	CVPath          *string   `json:"cvPath"`
	CoverLetterPath *string   `json:"coverLetterPath"`
	SearchKeywords  string    `json:"searchKeywords"`
	SearchLocation  string    `json:"searchLocation"`
	JobTypes        string    `json:"jobTypes"`
	ContractTypes   string    `json:"contractTypes"`
	EducationLevel  string    `json:"educationLevel"`
	SearchRadius    string    `json:"searchRadius"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// --- Statistics ---

// Statistics summarises the current (or last) session for status reporting.
type Statistics struct {
	TotalApplications      int           `json:"totalApplications"`
	SuccessfulApplications int           `json:"successfulApplications"`
	FailedApplications     int           `json:"failedApplications"`
	ElapsedTime            time.Duration `json:"elapsedTime"`
}

// Status is the controller's answer to a status query.
type Status struct {
	IsRunning      bool       `json:"isRunning"`
	CurrentSession *Session   `json:"currentSession"`
	Statistics     Statistics `json:"statistics"`
}

// --- Persistence contract ---

// Store is the persistence port. Implementations must be safe for concurrent
// use; the reference implementation is in-memory, a durable backend can be
// substituted without touching the controller.
type Store interface {
	GetUserConfig(ctx context.Context) (*UserConfig, error)
	CreateUserConfig(ctx context.Context, cfg UserConfig) (*UserConfig, error)
	ReplaceUserConfig(ctx context.Context, cfg UserConfig) (*UserConfig, error)
	UpdateUserConfig(ctx context.Context, patch UserConfigPatch) (*UserConfig, error)

	GetSettings(ctx context.Context) (*Settings, error)
	CreateSettings(ctx context.Context, s Settings) (*Settings, error)
	UpdateSettings(ctx context.Context, s Settings) (*Settings, error)

	ListSessions(ctx context.Context) ([]Session, error)
	GetCurrentSession(ctx context.Context) (*Session, error)
	CreateSession(ctx context.Context, s Session) (*Session, error)
	UpdateSession(ctx context.Context, id int, patch SessionPatch) (*Session, error)

	ListApplications(ctx context.Context, sessionID *int) ([]Application, error)
	CreateApplication(ctx context.Context, a Application) (*Application, error)
	UpdateApplication(ctx context.Context, id int, patch ApplicationPatch) (*Application, error)

	ListLogs(ctx context.Context, sessionID *int) ([]LogEntry, error)
	CreateLog(ctx context.Context, e LogEntry) (*LogEntry, error)
	ClearLogs(ctx context.Context, sessionID *int) error

	ListScreenshots(ctx context.Context, sessionID *int) ([]Screenshot, error)
	CreateScreenshot(ctx context.Context, s Screenshot) (*Screenshot, error)
}

// SessionPatch is a partial session update. Nil fields are left untouched.
type SessionPatch struct {
	Status                 *SessionStatus
	EndedAt                *time.Time
	TotalApplications      *int
	SuccessfulApplications *int
	FailedApplications     *int
}

// ApplicationPatch is a partial application update.
type ApplicationPatch struct {
	Status         *ApplicationStatus
	ErrorMessage   *string
	ScreenshotPath *string
}

// UserConfigPatch is a partial user-config update. Only document paths are
// patched by the core (after uploads); everything else is replaced wholesale
// by the API layer.
type UserConfigPatch struct {
	CVPath          *string
	CoverLetterPath *string
}
