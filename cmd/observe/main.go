// Command observe tails the automation event stream of a running server,
// printing each event as a structured log line. It reconnects with backoff
// when the server drops the connection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/douuvid/Datagouv/internal/domain"
	"github.com/douuvid/Datagouv/internal/logging"
	"github.com/douuvid/Datagouv/internal/observer"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "websocket URL of the automation server")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logging.Init(*logLevel, "text")

	client := observer.NewClient(*url, observer.NewGorillaDialer(), clockwork.NewRealClock())

	logEvent := func(eventType domain.EventType) observer.Handler {
		return func(data json.RawMessage) {
			slog.Info("Event", "type", eventType, "data", string(data))
		}
	}
	for _, eventType := range []domain.EventType{
		domain.EventSessionStarted,
		domain.EventSessionPaused,
		domain.EventSessionStopped,
		domain.EventSessionEnded,
		domain.EventApplicationStarted,
		domain.EventApplicationUpdated,
		domain.EventScreenshotCaptured,
		domain.EventSessionStatsUpdated,
		domain.EventLogCreated,
		domain.EventAutomationError,
	} {
		client.On(eventType, logEvent(eventType))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		client.Close()
	}()

	if err := client.Run(ctx); err != nil {
		slog.Error("Observer stopped", "error", err)
		os.Exit(1)
	}
}
