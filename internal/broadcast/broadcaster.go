// Package broadcast fans automation events out to live observers. A single
// actor goroutine owns the subscriber set; all mutation goes through its
// command channel, so there are no locks and no shared maps.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/douuvid/Datagouv/internal/domain"
	"github.com/douuvid/Datagouv/internal/metrics"
)

const (
	cmdBuffer        = 256
	subscriberBuffer = 32
)

// --- Command types ---

type broadcastCmd interface{ broadcastCmd() }

type cmdSubscribe struct {
	sub *Subscriber
}

func (cmdSubscribe) broadcastCmd() {}

type cmdUnsubscribe struct {
	sub *Subscriber
}

func (cmdUnsubscribe) broadcastCmd() {}

type cmdPublish struct {
	payload []byte
}

func (cmdPublish) broadcastCmd() {}

// --- Subscriber ---

// Subscriber is one observer's feed of marshalled events. The channel closes
// when the subscriber is removed or the broadcaster stops; a subscriber that
// stops draining is removed rather than allowed to stall everyone else.
type Subscriber struct {
	id uuid.UUID
	ch chan []byte
}

// Events is the subscriber's receive side.
func (s *Subscriber) Events() <-chan []byte { return s.ch }

// --- Broadcaster ---

// Broadcaster is the event hub. Publish never blocks the caller: the envelope
// is marshalled once, handed to the actor, and delivered best-effort.
type Broadcaster struct {
	cmdCh    chan broadcastCmd
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New starts the broadcaster actor.
func New() *Broadcaster {
	b := &Broadcaster{
		cmdCh:  make(chan broadcastCmd, cmdBuffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers a new observer. After Stop the returned subscriber's
// channel is already closed.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{id: uuid.New(), ch: make(chan []byte, subscriberBuffer)}
	select {
	case b.cmdCh <- cmdSubscribe{sub: sub}:
	case <-b.doneCh:
		close(sub.ch)
	}
	return sub
}

// Unsubscribe removes an observer and closes its channel. Safe to call for a
// subscriber that was already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	select {
	case b.cmdCh <- cmdUnsubscribe{sub: sub}:
	case <-b.doneCh:
	}
}

// Publish implements domain.Publisher. The event is marshalled once and
// fanned out without waiting on any subscriber.
func (b *Broadcaster) Publish(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "type", event.Type, "error", err)
		return
	}
	metrics.BroadcastEventsTotal.WithLabelValues(string(event.Type)).Inc()

	select {
	case b.cmdCh <- cmdPublish{payload: payload}:
	case <-b.doneCh:
	}
}

// Stop shuts the actor down and closes every subscriber channel.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

func (b *Broadcaster) run() {
	subscribers := make(map[uuid.UUID]*Subscriber)

	defer func() {
		for _, sub := range subscribers {
			close(sub.ch)
		}
		metrics.BroadcastSubscribers.Set(0)
		close(b.doneCh)
	}()

	for {
		select {
		case <-b.stopCh:
			return
		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case cmdSubscribe:
				subscribers[c.sub.id] = c.sub
				metrics.BroadcastSubscribers.Set(float64(len(subscribers)))
			case cmdUnsubscribe:
				if _, ok := subscribers[c.sub.id]; ok {
					delete(subscribers, c.sub.id)
					close(c.sub.ch)
					metrics.BroadcastSubscribers.Set(float64(len(subscribers)))
				}
			case cmdPublish:
				for id, sub := range subscribers {
					select {
					case sub.ch <- c.payload:
					default:
						// A full buffer means the observer stopped reading.
						delete(subscribers, id)
						close(sub.ch)
						metrics.BroadcastDroppedTotal.Inc()
						metrics.BroadcastSubscribers.Set(float64(len(subscribers)))
						slog.Warn("Dropping slow event subscriber", "subscriber_id", id)
					}
				}
			}
		}
	}
}
