package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"github.com/douuvid/Datagouv/internal/domain"
)

// processConfig is the single JSON object handed to the worker on stdin:
// the merged user config and settings, plus the owning session id.
type processConfig struct {
	SessionID  int               `json:"sessionId"`
	UserConfig domain.UserConfig `json:"userConfig"`
	Settings   domain.Settings   `json:"settings"`
}

// ProcessLauncher runs the automation worker as an external process.
type ProcessLauncher struct {
	command string
	args    []string
}

// NewProcessLauncher creates a launcher for the given command line.
func NewProcessLauncher(command string, args ...string) *ProcessLauncher {
	return &ProcessLauncher{command: command, args: args}
}

// Launch spawns the worker, feeds it the serialized config on stdin, and
// starts pumping its output streams. The context covers the launch itself;
// a running worker outlives it and is stopped only via Terminate.
func (l *ProcessLauncher) Launch(_ context.Context, cfg LaunchConfig) (Handle, error) {
	cmd := exec.Command(l.command, l.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn worker: %w", err)
	}

	h := &processHandle{
		cmd:   cmd,
		msgCh: make(chan Message, 64),
	}

	// Config goes out asynchronously so Launch never blocks on a worker
	// that is slow to read.
	go func() {
		defer stdin.Close()
		if err := json.NewEncoder(stdin).Encode(processConfig{
			SessionID:  cfg.SessionID,
			UserConfig: cfg.UserConfig,
			Settings:   cfg.Settings,
		}); err != nil {
			slog.Error("Failed to write worker config", "session_id", cfg.SessionID, "error", err)
		}
	}()

	var pumps sync.WaitGroup
	pumps.Add(2)

	go func() {
		defer pumps.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			msg, err := ParseLine(line)
			if err != nil {
				h.msgCh <- LogEmitted{
					Level:   domain.LogError,
					Message: fmt.Sprintf("Failed to process worker output: %v", err),
				}
				continue
			}
			h.msgCh <- msg
		}
	}()

	go func() {
		defer pumps.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if text := scanner.Text(); text != "" {
				h.msgCh <- WorkerError{Text: text}
			}
		}
	}()

	// Exactly one exit notification: the message channel closes after both
	// pumps drain and the process is reaped.
	go func() {
		pumps.Wait()
		err := cmd.Wait()
		h.exitCode = exitCodeFromWait(err)
		close(h.msgCh)
	}()

	return h, nil
}

type processHandle struct {
	cmd      *exec.Cmd
	msgCh    chan Message
	exitCode int
}

func (h *processHandle) Messages() <-chan Message { return h.msgCh }

// ExitCode is valid once Messages() has closed.
func (h *processHandle) ExitCode() int { return h.exitCode }

func (h *processHandle) Terminate(force bool) {
	proc := h.cmd.Process
	if proc == nil {
		return
	}
	if force {
		_ = proc.Kill()
		return
	}
	_ = proc.Signal(syscall.SIGTERM)
}

func exitCodeFromWait(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
