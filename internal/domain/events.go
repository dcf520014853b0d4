package domain

// EventType discriminates real-time events on the wire.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionPaused       EventType = "session_paused"
	EventSessionStopped      EventType = "session_stopped"
	EventSessionEnded        EventType = "session_ended"
	EventApplicationStarted  EventType = "application_started"
	EventApplicationUpdated  EventType = "application_updated"
	EventScreenshotCaptured  EventType = "screenshot_captured"
	EventSessionStatsUpdated EventType = "session_stats_updated"
	EventLogCreated          EventType = "log_created"
	EventAutomationError     EventType = "automation_error"
)

// Event is the single envelope shape pushed to observers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Publisher fans events out to live subscribers. Delivery is best-effort and
// must never block the caller.
type Publisher interface {
	Publish(event Event)
}
