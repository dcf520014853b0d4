// Package storage provides the persistence implementations behind the
// domain.Store contract: an in-memory reference store and a SQLite-backed
// store for deployments that want records to survive a restart.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/domain"
)

// MemStore is the in-memory reference implementation of domain.Store.
// Records are keyed by auto-incrementing id. A process restart loses
// everything, which is acceptable for session history.
type MemStore struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	nextID      int
	userConfigs map[int]domain.UserConfig
	settings    map[int]domain.Settings
	sessions    map[int]domain.Session
	apps        map[int]domain.Application
	logs        map[int]domain.LogEntry
	screenshots map[int]domain.Screenshot
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(clock clockwork.Clock) *MemStore {
	return &MemStore{
		clock:       clock,
		nextID:      1,
		userConfigs: make(map[int]domain.UserConfig),
		settings:    make(map[int]domain.Settings),
		sessions:    make(map[int]domain.Session),
		apps:        make(map[int]domain.Application),
		logs:        make(map[int]domain.LogEntry),
		screenshots: make(map[int]domain.Screenshot),
	}
}

func (m *MemStore) allocID() int {
	id := m.nextID
	m.nextID++
	return id
}

// --- UserConfig ---

func (m *MemStore) GetUserConfig(_ context.Context) (*domain.UserConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cfg := range m.userConfigs {
		c := cfg
		return &c, nil
	}
	return nil, domain.ErrUserConfigNotFound
}

func (m *MemStore) CreateUserConfig(_ context.Context, cfg domain.UserConfig) (*domain.UserConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	cfg.ID = m.allocID()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	m.userConfigs[cfg.ID] = cfg
	return &cfg, nil
}

func (m *MemStore) ReplaceUserConfig(_ context.Context, cfg domain.UserConfig) (*domain.UserConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.userConfigs {
		cfg.ID = id
		cfg.CreatedAt = existing.CreatedAt
		cfg.UpdatedAt = m.clock.Now()
		m.userConfigs[id] = cfg
		return &cfg, nil
	}

	// First save becomes the config.
	now := m.clock.Now()
	cfg.ID = m.allocID()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	m.userConfigs[cfg.ID] = cfg
	return &cfg, nil
}

func (m *MemStore) UpdateUserConfig(_ context.Context, patch domain.UserConfigPatch) (*domain.UserConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cfg := range m.userConfigs {
		if patch.CVPath != nil {
			cfg.CVPath = patch.CVPath
		}
		if patch.CoverLetterPath != nil {
			cfg.CoverLetterPath = patch.CoverLetterPath
		}
		cfg.UpdatedAt = m.clock.Now()
		m.userConfigs[id] = cfg
		return &cfg, nil
	}
	return nil, domain.ErrUserConfigNotFound
}

// --- Settings ---

func (m *MemStore) GetSettings(_ context.Context) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.settings {
		v := s
		return &v, nil
	}
	return nil, domain.ErrSettingsNotFound
}

func (m *MemStore) CreateSettings(_ context.Context, s domain.Settings) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	s.ID = m.allocID()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.settings[s.ID] = s
	return &s, nil
}

func (m *MemStore) UpdateSettings(_ context.Context, s domain.Settings) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.settings {
		s.ID = id
		s.CreatedAt = existing.CreatedAt
		s.UpdatedAt = m.clock.Now()
		m.settings[id] = s
		return &s, nil
	}
	return nil, domain.ErrSettingsNotFound
}

// --- Sessions ---

func (m *MemStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (m *MemStore) GetCurrentSession(_ context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.Status.Active() {
			v := s
			return &v, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MemStore) CreateSession(_ context.Context, s domain.Session) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = m.allocID()
	if s.StartedAt.IsZero() {
		s.StartedAt = m.clock.Now()
	}
	m.sessions[s.ID] = s
	return &s, nil
}

func (m *MemStore) UpdateSession(_ context.Context, id int, patch domain.SessionPatch) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if patch.Status != nil {
		s.Status = *patch.Status
	}
	if patch.EndedAt != nil {
		s.EndedAt = patch.EndedAt
	}
	if patch.TotalApplications != nil {
		s.TotalApplications = *patch.TotalApplications
	}
	if patch.SuccessfulApplications != nil {
		s.SuccessfulApplications = *patch.SuccessfulApplications
	}
	if patch.FailedApplications != nil {
		s.FailedApplications = *patch.FailedApplications
	}
	m.sessions[id] = s
	return &s, nil
}

// --- Applications ---

func (m *MemStore) ListApplications(_ context.Context, sessionID *int) ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Application, 0, len(m.apps))
	for _, a := range m.apps {
		if sessionID != nil && a.SessionID != *sessionID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateApplication(_ context.Context, a domain.Application) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = m.allocID()
	if a.AppliedAt.IsZero() {
		a.AppliedAt = m.clock.Now()
	}
	m.apps[a.ID] = a
	return &a, nil
}

func (m *MemStore) UpdateApplication(_ context.Context, id int, patch domain.ApplicationPatch) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.apps[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.ErrorMessage != nil {
		a.ErrorMessage = patch.ErrorMessage
	}
	if patch.ScreenshotPath != nil {
		a.ScreenshotPath = patch.ScreenshotPath
	}
	m.apps[id] = a
	return &a, nil
}

// --- Logs ---

func (m *MemStore) ListLogs(_ context.Context, sessionID *int) ([]domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.LogEntry, 0, len(m.logs))
	for _, e := range m.logs {
		if sessionID != nil && e.SessionID != *sessionID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateLog(_ context.Context, e domain.LogEntry) (*domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.allocID()
	if e.Timestamp.IsZero() {
		e.Timestamp = m.clock.Now()
	}
	m.logs[e.ID] = e
	return &e, nil
}

func (m *MemStore) ClearLogs(_ context.Context, sessionID *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.logs {
		if sessionID != nil && e.SessionID != *sessionID {
			continue
		}
		delete(m.logs, id)
	}
	return nil
}

// --- Screenshots ---

func (m *MemStore) ListScreenshots(_ context.Context, sessionID *int) ([]domain.Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Screenshot, 0, len(m.screenshots))
	for _, s := range m.screenshots {
		if sessionID != nil && s.SessionID != *sessionID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateScreenshot(_ context.Context, s domain.Screenshot) (*domain.Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = m.allocID()
	if s.CapturedAt.IsZero() {
		s.CapturedAt = m.clock.Now()
	}
	m.screenshots[s.ID] = s
	return &s, nil
}
