package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douuvid/Datagouv/internal/domain"
)

func TestWebSocketReceivesPublishedEvents(t *testing.T) {
	ts := newTestServer(t)

	httpSrv := httptest.NewServer(ts.srv.echo)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The subscription is registered asynchronously; retry until the event
	// lands or the deadline passes.
	received := make(chan []byte, 1)
	go func() {
		_, payload, readErr := conn.ReadMessage()
		if readErr == nil {
			received <- payload
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		ts.srv.broadcaster.Publish(domain.Event{Type: domain.EventSessionStarted, Data: map[string]any{"id": 1}})
		select {
		case payload := <-received:
			var event domain.Event
			require.NoError(t, json.Unmarshal(payload, &event))
			assert.Equal(t, domain.EventSessionStarted, event.Type)
			return
		case <-deadline:
			t.Fatal("no event received over websocket")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
