package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douuvid/Datagouv/internal/domain"
)

// The contract suite runs against every Store implementation.

func TestMemStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) domain.Store {
		return NewMemStore(clockwork.NewFakeClock())
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) domain.Store {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "automation.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) domain.Store) {
	ctx := context.Background()

	t.Run("user config lifecycle", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetUserConfig(ctx)
		assert.ErrorIs(t, err, domain.ErrUserConfigNotFound)

		created, err := store.CreateUserConfig(ctx, domain.UserConfig{
			FirstName: "Marie", LastName: "Dupont", Email: "marie@example.com",
			Phone: "0601020304", Message: "Bonjour", SearchKeywords: "développeur web",
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		cvPath := "uploads/cv_1.pdf"
		patched, err := store.UpdateUserConfig(ctx, domain.UserConfigPatch{CVPath: &cvPath})
		require.NoError(t, err)
		require.NotNil(t, patched.CVPath)
		assert.Equal(t, cvPath, *patched.CVPath)

		replaced, err := store.ReplaceUserConfig(ctx, domain.UserConfig{
			FirstName: "Marie", LastName: "Durand", Email: "marie@example.com",
			Phone: "0601020304", Message: "Bonjour",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, replaced.ID)
		assert.Equal(t, "Durand", replaced.LastName)
	})

	t.Run("replace creates config when none saved", func(t *testing.T) {
		store := newStore(t)

		saved, err := store.ReplaceUserConfig(ctx, domain.UserConfig{
			FirstName: "Jean", LastName: "Martin", Email: "jean@example.com",
		})
		require.NoError(t, err)
		assert.NotZero(t, saved.ID)

		got, err := store.GetUserConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Jean", got.FirstName)
	})

	t.Run("settings lifecycle", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetSettings(ctx)
		assert.ErrorIs(t, err, domain.ErrSettingsNotFound)

		created, err := store.CreateSettings(ctx, domain.DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, 30, created.DelayBetweenApplications)

		created.MaxApplicationsPerSession = 5
		updated, err := store.UpdateSettings(ctx, *created)
		require.NoError(t, err)
		assert.Equal(t, 5, updated.MaxApplicationsPerSession)
		assert.Equal(t, created.ID, updated.ID)
	})

	t.Run("current session selection", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetCurrentSession(ctx)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		done, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionCompleted})
		require.NoError(t, err)

		running, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)

		current, err := store.GetCurrentSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, running.ID, current.ID)
		assert.NotEqual(t, done.ID, current.ID)

		paused := domain.SessionPaused
		_, err = store.UpdateSession(ctx, running.ID, domain.SessionPatch{Status: &paused})
		require.NoError(t, err)

		current, err = store.GetCurrentSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionPaused, current.Status)
	})

	t.Run("session patch counters", func(t *testing.T) {
		store := newStore(t)

		sess, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)

		total, ok, failed := 4, 3, 1
		updated, err := store.UpdateSession(ctx, sess.ID, domain.SessionPatch{
			TotalApplications:      &total,
			SuccessfulApplications: &ok,
			FailedApplications:     &failed,
		})
		require.NoError(t, err)
		assert.Equal(t, updated.TotalApplications, updated.SuccessfulApplications+updated.FailedApplications)
	})

	t.Run("applications scoped by session", func(t *testing.T) {
		store := newStore(t)

		s1, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)
		s2, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionCompleted})
		require.NoError(t, err)

		_, err = store.CreateApplication(ctx, domain.Application{
			SessionID: s1.ID, JobTitle: "Développeur Go", Company: "ACME", Status: domain.ApplicationPending,
		})
		require.NoError(t, err)
		_, err = store.CreateApplication(ctx, domain.Application{
			SessionID: s2.ID, JobTitle: "Data Engineer", Company: "Globex", Status: domain.ApplicationSent,
		})
		require.NoError(t, err)

		all, err := store.ListApplications(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		scoped, err := store.ListApplications(ctx, &s1.ID)
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		assert.Equal(t, "Développeur Go", scoped[0].JobTitle)
	})

	t.Run("application patch", func(t *testing.T) {
		store := newStore(t)

		sess, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)
		app, err := store.CreateApplication(ctx, domain.Application{
			SessionID: sess.ID, JobTitle: "Dev", Company: "ACME", Status: domain.ApplicationPending,
		})
		require.NoError(t, err)

		failed := domain.ApplicationFailed
		msg := "form submission rejected"
		updated, err := store.UpdateApplication(ctx, app.ID, domain.ApplicationPatch{
			Status:       &failed,
			ErrorMessage: &msg,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationFailed, updated.Status)
		require.NotNil(t, updated.ErrorMessage)
		assert.Equal(t, msg, *updated.ErrorMessage)

		_, err = store.UpdateApplication(ctx, 9999, domain.ApplicationPatch{Status: &failed})
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("clear logs scoped by session", func(t *testing.T) {
		store := newStore(t)

		s1, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)
		s2, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionCompleted})
		require.NoError(t, err)

		for _, e := range []domain.LogEntry{
			{SessionID: s1.ID, Level: domain.LogInfo, Message: "one"},
			{SessionID: s1.ID, Level: domain.LogError, Message: "two"},
			{SessionID: s2.ID, Level: domain.LogSuccess, Message: "three"},
		} {
			_, err := store.CreateLog(ctx, e)
			require.NoError(t, err)
		}

		require.NoError(t, store.ClearLogs(ctx, &s1.ID))

		remaining, err := store.ListLogs(ctx, nil)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, s2.ID, remaining[0].SessionID)
		assert.True(t, domain.ValidLogLevel(remaining[0].Level))

		require.NoError(t, store.ClearLogs(ctx, nil))
		remaining, err = store.ListLogs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("log metadata round trip", func(t *testing.T) {
		store := newStore(t)

		sess, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)

		created, err := store.CreateLog(ctx, domain.LogEntry{
			SessionID: sess.ID,
			Level:     domain.LogInfo,
			Message:   "offer processed",
			Metadata:  map[string]any{"company": "ACME", "attempt": float64(2)},
		})
		require.NoError(t, err)

		logs, err := store.ListLogs(ctx, &sess.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, created.Message, logs[0].Message)
		assert.Equal(t, "ACME", logs[0].Metadata["company"])
		assert.Equal(t, float64(2), logs[0].Metadata["attempt"])
	})

	t.Run("screenshots", func(t *testing.T) {
		store := newStore(t)

		sess, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionRunning})
		require.NoError(t, err)
		app, err := store.CreateApplication(ctx, domain.Application{
			SessionID: sess.ID, JobTitle: "Dev", Company: "ACME", Status: domain.ApplicationPending,
		})
		require.NoError(t, err)

		_, err = store.CreateScreenshot(ctx, domain.Screenshot{
			SessionID:     sess.ID,
			ApplicationID: &app.ID,
			FilePath:      "debug_screenshots/session_1.png",
			Description:   "Avant candidature",
		})
		require.NoError(t, err)

		shots, err := store.ListScreenshots(ctx, &sess.ID)
		require.NoError(t, err)
		require.Len(t, shots, 1)
		require.NotNil(t, shots[0].ApplicationID)
		assert.Equal(t, app.ID, *shots[0].ApplicationID)
	})

	t.Run("sessions listed newest first", func(t *testing.T) {
		store := newStore(t)

		for i := 0; i < 3; i++ {
			_, err := store.CreateSession(ctx, domain.Session{Status: domain.SessionCompleted})
			require.NoError(t, err)
		}

		sessions, err := store.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		for i := 1; i < len(sessions); i++ {
			assert.False(t, sessions[i].StartedAt.After(sessions[i-1].StartedAt))
		}
	})
}
