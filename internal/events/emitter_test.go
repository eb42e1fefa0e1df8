package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matching/internal/events"
	"github.com/oggyb/muzz-matching/internal/logger"
)

func TestEmitPublishesToTopic(t *testing.T) {
	log := logger.Nop()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(log))

	msgs, err := pubSub.Subscribe(context.Background(), events.TypeMatchCreated.Topic())
	require.NoError(t, err)

	em := events.NewEmitter(pubSub, log, 8)
	em.Emit(events.Event{Type: events.TypeMatchCreated, UserID: "a", TargetID: "b", MatchID: "m1"})

	select {
	case msg := <-msgs:
		var ev events.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "m1", ev.MatchID)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, "match_created", msg.Metadata.Get("type"))
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}

	require.NoError(t, em.Close(context.Background()))
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(string, ...*message.Message) error {
	p.calls++
	return errors.New("broker down")
}

func (p *failingPublisher) Close() error { return nil }

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &failingPublisher{}
	em := events.NewEmitter(pub, logger.Nop(), 8)

	em.Emit(events.Event{Type: events.TypeSwipe, UserID: "a"})
	em.Emit(events.Event{Type: events.TypeSwipe, UserID: "a"})
	require.NoError(t, em.Close(context.Background()))

	assert.Equal(t, 2, pub.calls)

	// emitting after close is a no-op
	em.Emit(events.Event{Type: events.TypeSwipe, UserID: "a"})
}

func TestNilEmitterIsSafe(t *testing.T) {
	var em *events.Emitter
	em.Emit(events.Event{Type: events.TypeUndo})
	assert.NoError(t, em.Close(context.Background()))
}
