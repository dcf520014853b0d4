package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, WorkerModeSimulated, cfg.WorkerMode)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Empty(t, cfg.DatabasePath)
}

func TestLoadProcessModeRequiresCommand(t *testing.T) {
	t.Setenv("WORKER_MODE", WorkerModeProcess)
	t.Setenv("WORKER_COMMAND", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_COMMAND")
}

func TestLoadRejectsUnknownWorkerMode(t *testing.T) {
	t.Setenv("WORKER_MODE", "telepathy")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_MODE")
}

func TestLoadProcessMode(t *testing.T) {
	t.Setenv("WORKER_MODE", WorkerModeProcess)
	t.Setenv("WORKER_COMMAND", "python3 scripts/runner.py")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, WorkerModeProcess, cfg.WorkerMode)
	assert.Equal(t, "python3 scripts/runner.py", cfg.WorkerCommand)
	assert.Equal(t, "9090", cfg.Port)
}
