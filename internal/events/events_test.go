package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGVoiceBot/internal/events"
	"github.com/digkill/TGVoiceBot/internal/testutil"
)

func TestNATSPublisherPublishesJSON(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("voicebot.test", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	publisher, err := events.Connect(server.ClientURL(), "voicebot.test", testutil.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(publisher.Close)

	err = publisher.PublishSubmitted(context.Background(), events.ConversionSubmitted{
		JobID:     "pred-1",
		ChatID:    42,
		ModelID:   "homer",
		VoiceName: "Homer",
		Pitch:     6,
		Duration:  12,
	})
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		var got events.ConversionSubmitted
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "pred-1", got.JobID)
		assert.Equal(t, int64(42), got.ChatID)
		assert.Equal(t, 6, got.Pitch)
		assert.NotEmpty(t, got.EventID)
		assert.False(t, got.Submitted.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestNewNATSPublisherDefaultsSubject(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	msgs := make(chan *nats.Msg, 1)
	_, err = conn.ChanSubscribe(events.DefaultSubject, msgs)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	publisher := events.NewNATSPublisher(conn, "", testutil.DiscardLogger())
	require.NoError(t, publisher.PublishSubmitted(context.Background(), events.ConversionSubmitted{JobID: "x"}))

	select {
	case msg := <-msgs:
		assert.Equal(t, events.DefaultSubject, msg.Subject)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	var p events.Publisher = events.Nop{}
	assert.NoError(t, p.PublishSubmitted(context.Background(), events.ConversionSubmitted{}))
}

func TestPublishWithoutDeadlineThenDrain(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(events.DefaultSubject, msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	publisher := events.NewNATSPublisher(conn, "", testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, hasDeadline := ctx.Deadline()
	require.False(t, hasDeadline)

	require.NoError(t, publisher.PublishSubmitted(ctx, events.ConversionSubmitted{JobID: "pred-2", ChatID: 7}))

	select {
	case msg := <-msgs:
		var got events.ConversionSubmitted
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "pred-2", got.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}

	publisher.Close()
	require.Eventually(t, conn.IsClosed, 5*time.Second, 10*time.Millisecond)
}
