package events

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesPostSubscribers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	ch, cancel := hub.Subscribe("post-1")
	defer cancel()
	other, cancelOther := hub.Subscribe("post-2")
	defer cancelOther()

	require.NoError(t, hub.Publish(ctx, Event{Type: CommentCreated, PostID: "post-1"}))

	select {
	case ev := <-ch:
		assert.Equal(t, CommentCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other post: %+v", ev)
	default:
	}
}

func TestHub_CancelUnsubscribesAndCloses(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("post-1")
	assert.Equal(t, 1, hub.Subscribers("post-1"))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers("post-1"))

	_, open := <-ch
	assert.False(t, open)

	require.NoError(t, hub.Publish(context.Background(), Event{PostID: "post-1"}))
}

func TestHub_PublishDoesNotBlockOnFullBuffer(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("post-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < hub.buffer*3; i++ {
			_ = hub.Publish(context.Background(), Event{PostID: "post-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("boom")
}

func TestMulti_PublishesToAll(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("post-1")
	defer cancel()
	failing := &failingPublisher{}

	err := Multi{failing, hub}.Publish(context.Background(), Event{Type: PostLiked, PostID: "post-1"})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, ch, 1)
}

func TestNATSPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("Skipping test - no NATS connection configured")
	}

	pub, err := ConnectNATS(url)
	require.NoError(t, err)
	defer pub.Close()

	received := make(chan Event, 1)
	sub, err := pub.Subscribe("post.*", func(ev Event) { received <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, pub.conn.Flush())

	require.NoError(t, pub.Publish(context.Background(), Event{Type: PostEchoed, PostID: "post-1", Count: 3}))

	select {
	case ev := <-received:
		assert.Equal(t, PostEchoed, ev.Type)
		assert.Equal(t, 3, ev.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}
