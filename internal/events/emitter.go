// Package events publishes matching notifications (swipes, matches, undos,
// reveals, boosts) without blocking the request that caused them.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/oggyb/muzz-matching/internal/metrics"
)

type Type string

const (
	TypeSwipe        Type = "swipe"
	TypeMatchCreated Type = "match_created"
	TypeUnmatch      Type = "unmatch"
	TypeUndo         Type = "undo"
	TypeReveal       Type = "reveal"
	TypeBoost        Type = "boost"
)

// Topic is the subject an event type is published on.
func (t Type) Topic() string { return "matching." + string(t) }

// Event is the payload of every matching notification.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	UserID     string         `json:"userId"`
	TargetID   string         `json:"targetId,omitempty"`
	MatchID    string         `json:"matchId,omitempty"`
	Action     string         `json:"action,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

const defaultBuffer = 256

// Emitter queues events in memory and publishes them from a single worker.
//
// Behavior:
//   - Emit never blocks. A full queue drops the event with a warning.
//   - Publish errors are logged and counted, never returned.
//   - No ordering or delivery guarantee relative to the state change.
//
// A nil *Emitter is valid and discards everything.
type Emitter struct {
	pub   message.Publisher
	log   *slog.Logger
	queue chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewEmitter(pub message.Publisher, log *slog.Logger, buffer int) *Emitter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	e := &Emitter{
		pub:   pub,
		log:   log,
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit enqueues ev for publishing.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- ev:
	default:
		metrics.EventsPublished.WithLabelValues(string(ev.Type), "dropped").Inc()
		e.log.Warn("event queue full, dropping event", "type", ev.Type, "user", ev.UserID)
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.queue {
		e.publish(ev)
	}
}

func (e *Emitter) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		e.log.Warn("encode event failed", "type", ev.Type, "err", err)
		return
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("type", string(ev.Type))
	msg.Metadata.Set("user_id", ev.UserID)

	if err := e.pub.Publish(ev.Type.Topic(), msg); err != nil {
		metrics.EventsPublished.WithLabelValues(string(ev.Type), "failed").Inc()
		e.log.Warn("publish event failed", "type", ev.Type, "user", ev.UserID, "err", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type), "published").Inc()
}

// Close stops accepting events, drains the queue and closes the publisher.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		e.log.Warn("event queue not drained before shutdown", "pending", len(e.queue))
	}
	return e.pub.Close()
}
