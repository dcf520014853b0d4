// Package automation owns the session lifecycle: exactly one session may be
// running or paused at a time, worker output is folded into persistent state,
// and every state change is pushed to the event broadcaster.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/domain"
	apperrors "github.com/douuvid/Datagouv/internal/errors"
	"github.com/douuvid/Datagouv/internal/metrics"
	"github.com/douuvid/Datagouv/internal/worker"
)

// Controller drives automation sessions. All lifecycle transitions and all
// worker message handling go through the controller mutex, so the
// one-active-session rule cannot be raced.
type Controller struct {
	store    domain.Store
	launcher worker.Launcher
	events   domain.Publisher
	clock    clockwork.Clock

	mu      sync.Mutex
	current *domain.Session
	handle  worker.Handle
	wg      sync.WaitGroup
}

// NewController wires the session controller.
func NewController(store domain.Store, launcher worker.Launcher, events domain.Publisher, clock clockwork.Clock) *Controller {
	return &Controller{
		store:    store,
		launcher: launcher,
		events:   events,
		clock:    clock,
	}
}

// Start launches a new session. It fails with a conflict while another
// session is running or paused, and with a validation error when no user
// config has been saved yet. The mutex is held across the whole
// check-create-launch sequence so two concurrent starts cannot both pass the
// active-session check.
func (c *Controller) Start(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, apperrors.ConflictError("an automation session is already active").
			WithContext("session_id", c.current.ID)
	}

	// A running or paused row left behind by a previous process has no live
	// worker and can never finish. Fail it so the slot is usable again.
	if stale, err := c.store.GetCurrentSession(ctx); err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, apperrors.InternalError("failed to check for an active session", err)
		}
	} else {
		slog.Warn("Failing stale session from a previous run", "session_id", stale.ID)
		c.finalizeSession(stale.ID, domain.SessionFailed)
	}

	userCfg, err := c.store.GetUserConfig(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUserConfigNotFound) {
			return nil, apperrors.ValidationError("user configuration must be saved before starting")
		}
		return nil, apperrors.InternalError("failed to load user configuration", err)
	}

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			return nil, apperrors.InternalError("failed to load settings", err)
		}
		defaults := domain.DefaultSettings()
		settings = &defaults
	}

	session, err := c.store.CreateSession(ctx, domain.Session{
		Status:       domain.SessionRunning,
		StartedAt:    c.clock.Now(),
		UserConfigID: userCfg.ID,
		Settings:     *settings,
	})
	if err != nil {
		return nil, apperrors.InternalError("failed to create session", err)
	}

	handle, err := c.launcher.Launch(ctx, worker.LaunchConfig{
		SessionID:  session.ID,
		UserConfig: *userCfg,
		Settings:   *settings,
	})
	if err != nil {
		c.finalizeSession(session.ID, domain.SessionFailed)
		return nil, apperrors.WorkerLaunchError("failed to launch automation worker", err).
			WithContext("session_id", session.ID)
	}

	c.current = session
	c.handle = handle
	metrics.SessionActive.Set(1)

	c.wg.Add(1)
	go c.consume(handle, session.ID)

	c.recordLog(session.ID, domain.LogInfo, "Automation session started", nil)
	c.events.Publish(domain.Event{Type: domain.EventSessionStarted, Data: session})
	slog.Info("Automation session started", "session_id", session.ID)

	return session, nil
}

// Pause suspends the running session. The worker handle is detached before
// termination, so its exit notification is discarded and the session stays
// paused instead of flipping to completed.
func (c *Controller) Pause(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()

	if c.current == nil {
		c.mu.Unlock()
		return nil, apperrors.NotFoundError("no active automation session")
	}
	if c.current.Status != domain.SessionRunning {
		id := c.current.ID
		c.mu.Unlock()
		return nil, apperrors.ConflictError("session is not running").WithContext("session_id", id)
	}

	handle := c.handle
	c.handle = nil

	status := domain.SessionPaused
	session, err := c.store.UpdateSession(ctx, c.current.ID, domain.SessionPatch{Status: &status})
	if err != nil {
		c.mu.Unlock()
		return nil, apperrors.InternalError("failed to update session", err)
	}
	c.current = session
	c.mu.Unlock()

	if handle != nil {
		handle.Terminate(false)
	}

	c.recordLog(session.ID, domain.LogInfo, "Automation session paused", nil)
	c.events.Publish(domain.Event{Type: domain.EventSessionPaused, Data: session})
	slog.Info("Automation session paused", "session_id", session.ID)

	return session, nil
}

// Stop ends the current session, whether running or paused.
func (c *Controller) Stop(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()

	if c.current == nil {
		c.mu.Unlock()
		return nil, apperrors.NotFoundError("no active automation session")
	}

	handle := c.handle
	c.handle = nil

	status := domain.SessionStopped
	endedAt := c.clock.Now()
	session, err := c.store.UpdateSession(ctx, c.current.ID, domain.SessionPatch{Status: &status, EndedAt: &endedAt})
	if err != nil {
		c.mu.Unlock()
		return nil, apperrors.InternalError("failed to update session", err)
	}
	c.current = nil
	metrics.SessionActive.Set(0)
	metrics.SessionsEndedTotal.WithLabelValues(string(domain.SessionStopped)).Inc()
	c.mu.Unlock()

	if handle != nil {
		handle.Terminate(false)
	}

	c.recordLog(session.ID, domain.LogInfo, "Automation session stopped", nil)
	c.events.Publish(domain.Event{Type: domain.EventSessionStopped, Data: session})
	slog.Info("Automation session stopped", "session_id", session.ID)

	return session, nil
}

// Status reports whether a session is running, the session in question, and
// its rolling statistics. With no active session the most recent session from
// the store is reported.
func (c *Controller) Status(ctx context.Context) (domain.Status, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		session, err := c.store.GetCurrentSession(ctx)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Status{}, apperrors.InternalError("failed to load session", err)
		}
		current = session
	}

	status := domain.Status{CurrentSession: current}
	if current != nil {
		status.IsRunning = current.Status == domain.SessionRunning
		status.Statistics = domain.Statistics{
			TotalApplications:      current.TotalApplications,
			SuccessfulApplications: current.SuccessfulApplications,
			FailedApplications:     current.FailedApplications,
		}
		if current.Status.Active() {
			status.Statistics.ElapsedTime = c.clock.Now().Sub(current.StartedAt)
		} else if current.EndedAt != nil {
			status.Statistics.ElapsedTime = current.EndedAt.Sub(current.StartedAt)
		}
	}
	return status, nil
}

// Shutdown terminates any live worker and waits for its message stream to
// drain. The session itself is left as-is in the store.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle != nil {
		handle.Terminate(false)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume folds one worker's message stream into state changes. It runs until
// the handle's channel closes, then reconciles the exit.
func (c *Controller) consume(handle worker.Handle, sessionID int) {
	defer c.wg.Done()

	for msg := range handle.Messages() {
		if !c.attached(handle) {
			slog.Debug("Discarding message from detached worker", "session_id", sessionID)
			continue
		}

		switch m := msg.(type) {
		case worker.ApplicationStarted:
			metrics.WorkerMessagesTotal.WithLabelValues("application_started").Inc()
			c.onApplicationStarted(sessionID, m)
		case worker.ApplicationCompleted:
			metrics.WorkerMessagesTotal.WithLabelValues("application_completed").Inc()
			c.onApplicationCompleted(sessionID, m)
		case worker.ScreenshotCaptured:
			metrics.WorkerMessagesTotal.WithLabelValues("screenshot_captured").Inc()
			c.onScreenshotCaptured(sessionID, m)
		case worker.StatsUpdated:
			metrics.WorkerMessagesTotal.WithLabelValues("session_stats").Inc()
			c.onStatsUpdated(sessionID, m)
		case worker.LogEmitted:
			metrics.WorkerMessagesTotal.WithLabelValues("log").Inc()
			c.recordLog(sessionID, m.Level, m.Message, m.Metadata)
		case worker.RawLine:
			c.recordLog(sessionID, domain.LogInfo, m.Text, nil)
		case worker.WorkerError:
			c.recordLog(sessionID, domain.LogError, m.Text, nil)
			c.events.Publish(domain.Event{Type: domain.EventAutomationError, Data: map[string]any{
				"sessionId": sessionID,
				"message":   m.Text,
			}})
		case worker.Unrecognized:
			slog.Debug("Unrecognized worker message type", "session_id", sessionID, "type", m.Type)
		}
	}

	c.onWorkerExit(handle, sessionID, handle.ExitCode())
}

func (c *Controller) attached(handle worker.Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle == handle
}

func (c *Controller) onApplicationStarted(sessionID int, m worker.ApplicationStarted) {
	ctx := context.Background()

	app, err := c.store.CreateApplication(ctx, domain.Application{
		SessionID: sessionID,
		JobTitle:  m.JobTitle,
		Company:   m.Company,
		Location:  m.Location,
		Status:    domain.ApplicationPending,
		AppliedAt: c.clock.Now(),
	})
	if err != nil {
		slog.Error("Failed to record application", "session_id", sessionID, "error", err)
		return
	}

	c.recordLog(sessionID, domain.LogInfo, fmt.Sprintf("Applying to %s at %s", m.JobTitle, m.Company), nil)
	c.events.Publish(domain.Event{Type: domain.EventApplicationStarted, Data: app})
}

func (c *Controller) onApplicationCompleted(sessionID int, m worker.ApplicationCompleted) {
	ctx := context.Background()

	pending := c.findPendingApplication(ctx, sessionID, m.JobTitle, m.Company)
	if pending == nil {
		slog.Debug("Completion without matching pending application",
			"session_id", sessionID, "job_title", m.JobTitle, "company", m.Company)
		return
	}

	patch := domain.ApplicationPatch{Status: &m.Status}
	if m.ErrorMessage != "" {
		patch.ErrorMessage = &m.ErrorMessage
	}
	if m.ScreenshotPath != "" {
		patch.ScreenshotPath = &m.ScreenshotPath
	}

	app, err := c.store.UpdateApplication(ctx, pending.ID, patch)
	if err != nil {
		slog.Error("Failed to update application", "application_id", pending.ID, "error", err)
		return
	}

	metrics.ApplicationsTotal.WithLabelValues(string(m.Status)).Inc()
	c.events.Publish(domain.Event{Type: domain.EventApplicationUpdated, Data: app})
}

func (c *Controller) findPendingApplication(ctx context.Context, sessionID int, jobTitle, company string) *domain.Application {
	apps, err := c.store.ListApplications(ctx, &sessionID)
	if err != nil {
		slog.Error("Failed to list applications", "session_id", sessionID, "error", err)
		return nil
	}
	for i := range apps {
		a := &apps[i]
		if a.Status == domain.ApplicationPending && a.JobTitle == jobTitle && a.Company == company {
			return a
		}
	}
	return nil
}

func (c *Controller) onScreenshotCaptured(sessionID int, m worker.ScreenshotCaptured) {
	ctx := context.Background()

	shot, err := c.store.CreateScreenshot(ctx, domain.Screenshot{
		SessionID:     sessionID,
		ApplicationID: m.ApplicationID,
		FilePath:      m.FilePath,
		Description:   m.Description,
		CapturedAt:    c.clock.Now(),
	})
	if err != nil {
		slog.Error("Failed to record screenshot", "session_id", sessionID, "error", err)
		return
	}

	c.events.Publish(domain.Event{Type: domain.EventScreenshotCaptured, Data: shot})
}

func (c *Controller) onStatsUpdated(sessionID int, m worker.StatsUpdated) {
	ctx := context.Background()

	session, err := c.store.UpdateSession(ctx, sessionID, domain.SessionPatch{
		TotalApplications:      &m.TotalApplications,
		SuccessfulApplications: &m.SuccessfulApplications,
		FailedApplications:     &m.FailedApplications,
	})
	if err != nil {
		slog.Error("Failed to update session statistics", "session_id", sessionID, "error", err)
		return
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == sessionID {
		c.current = session
	}
	c.mu.Unlock()

	c.events.Publish(domain.Event{Type: domain.EventSessionStatsUpdated, Data: session})
}

// onWorkerExit reconciles a worker's natural termination. Exits of detached
// handles have already been accounted for by Pause or Stop and are dropped.
func (c *Controller) onWorkerExit(handle worker.Handle, sessionID int, exitCode int) {
	c.mu.Lock()
	if c.handle != handle {
		c.mu.Unlock()
		slog.Debug("Ignoring exit of detached worker", "session_id", sessionID, "exit_code", exitCode)
		return
	}
	c.handle = nil
	c.current = nil
	metrics.SessionActive.Set(0)
	c.mu.Unlock()

	status := domain.SessionCompleted
	if exitCode != 0 {
		status = domain.SessionFailed
	}
	session := c.finalizeSession(sessionID, status)
	metrics.SessionsEndedTotal.WithLabelValues(string(status)).Inc()

	level := domain.LogSuccess
	message := "Automation session completed"
	if status == domain.SessionFailed {
		level = domain.LogError
		message = fmt.Sprintf("Automation worker exited with code %d", exitCode)
	}
	c.recordLog(sessionID, level, message, nil)

	if session != nil {
		c.events.Publish(domain.Event{Type: domain.EventSessionEnded, Data: session})
	}
	slog.Info("Automation session ended", "session_id", sessionID, "status", status, "exit_code", exitCode)
}

// finalizeSession marks a session terminal with the given status.
func (c *Controller) finalizeSession(sessionID int, status domain.SessionStatus) *domain.Session {
	endedAt := c.clock.Now()
	session, err := c.store.UpdateSession(context.Background(), sessionID, domain.SessionPatch{
		Status:  &status,
		EndedAt: &endedAt,
	})
	if err != nil {
		slog.Error("Failed to finalize session", "session_id", sessionID, "status", status, "error", err)
		return nil
	}
	return session
}

// recordLog persists a session log entry and pushes it to observers.
func (c *Controller) recordLog(sessionID int, level domain.LogLevel, message string, metadata map[string]any) {
	entry, err := c.store.CreateLog(context.Background(), domain.LogEntry{
		SessionID: sessionID,
		Level:     level,
		Message:   message,
		Timestamp: c.clock.Now(),
		Metadata:  metadata,
	})
	if err != nil {
		slog.Error("Failed to record log entry", "session_id", sessionID, "error", err)
		return
	}
	c.events.Publish(domain.Event{Type: domain.EventLogCreated, Data: entry})
}
