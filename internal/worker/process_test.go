package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douuvid/Datagouv/internal/domain"
)

func collectMessages(t *testing.T, h Handle) []Message {
	t.Helper()

	var msgs []Message
	timeout := time.After(10 * time.Second)
	for {
		select {
		case msg, ok := <-h.Messages():
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatal("timed out waiting for worker to exit")
		}
	}
}

func TestProcessLauncherStreamsOutput(t *testing.T) {
	script := `read cfg
echo 'JSON:{"type":"log","data":{"level":"info","message":"browser ready"}}'
echo 'Configuring search filters...'
echo 'boom' 1>&2
exit 0`

	launcher := NewProcessLauncher("sh", "-c", script)
	h, err := launcher.Launch(context.Background(), LaunchConfig{SessionID: 1})
	require.NoError(t, err)

	msgs := collectMessages(t, h)
	assert.Equal(t, 0, h.ExitCode())

	var sawLog, sawRaw, sawErr bool
	for _, msg := range msgs {
		switch m := msg.(type) {
		case LogEmitted:
			sawLog = true
			assert.Equal(t, domain.LogInfo, m.Level)
			assert.Equal(t, "browser ready", m.Message)
		case RawLine:
			sawRaw = true
			assert.Equal(t, "Configuring search filters...", m.Text)
		case WorkerError:
			sawErr = true
			assert.Equal(t, "boom", m.Text)
		}
	}
	assert.True(t, sawLog)
	assert.True(t, sawRaw)
	assert.True(t, sawErr)
}

func TestProcessLauncherReceivesConfigOnStdin(t *testing.T) {
	// The worker echoes its config line back; the launcher surfaces it as a
	// raw message because it carries no marker.
	launcher := NewProcessLauncher("sh", "-c", `read cfg; echo "$cfg"`)

	cfg := LaunchConfig{
		SessionID:  7,
		UserConfig: domain.UserConfig{SearchKeywords: "développeur"},
		Settings:   domain.DefaultSettings(),
	}
	h, err := launcher.Launch(context.Background(), cfg)
	require.NoError(t, err)

	msgs := collectMessages(t, h)
	require.NotEmpty(t, msgs)
	raw, ok := msgs[0].(RawLine)
	require.True(t, ok)
	assert.Contains(t, raw.Text, `"sessionId":7`)
	assert.Contains(t, raw.Text, "développeur")
}

func TestProcessLauncherMalformedLineIsNonFatal(t *testing.T) {
	script := `read cfg
echo 'JSON:{broken'
echo 'JSON:{"type":"session_stats","data":{"totalApplications":1,"successfulApplications":1,"failedApplications":0}}'
exit 0`

	launcher := NewProcessLauncher("sh", "-c", script)
	h, err := launcher.Launch(context.Background(), LaunchConfig{SessionID: 1})
	require.NoError(t, err)

	msgs := collectMessages(t, h)

	var sawParseError, sawStats bool
	for _, msg := range msgs {
		switch m := msg.(type) {
		case LogEmitted:
			if m.Level == domain.LogError {
				sawParseError = true
			}
		case StatsUpdated:
			sawStats = true
			assert.Equal(t, 1, m.TotalApplications)
		}
	}
	assert.True(t, sawParseError)
	assert.True(t, sawStats)
	assert.Equal(t, 0, h.ExitCode())
}

func TestProcessLauncherNonZeroExit(t *testing.T) {
	launcher := NewProcessLauncher("sh", "-c", "exit 3")
	h, err := launcher.Launch(context.Background(), LaunchConfig{SessionID: 1})
	require.NoError(t, err)

	collectMessages(t, h)
	assert.Equal(t, 3, h.ExitCode())
}

func TestProcessLauncherSurvivesLaunchContextCancel(t *testing.T) {
	// The start handler's request context is cancelled as soon as the HTTP
	// response is written; the worker must keep running until Terminate.
	launcher := NewProcessLauncher("sh", "-c", `read cfg; sleep 0.3; echo survived`)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := launcher.Launch(ctx, LaunchConfig{SessionID: 1})
	require.NoError(t, err)
	cancel()

	msgs := collectMessages(t, h)
	assert.Equal(t, 0, h.ExitCode())

	var sawOutput bool
	for _, msg := range msgs {
		if m, ok := msg.(RawLine); ok && m.Text == "survived" {
			sawOutput = true
		}
	}
	assert.True(t, sawOutput)
}

func TestProcessLauncherTerminate(t *testing.T) {
	launcher := NewProcessLauncher("sh", "-c", "exec sleep 30")
	h, err := launcher.Launch(context.Background(), LaunchConfig{SessionID: 1})
	require.NoError(t, err)

	h.Terminate(false)
	collectMessages(t, h)
	assert.NotEqual(t, 0, h.ExitCode())
}
