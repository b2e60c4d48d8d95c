package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"top-loras/internal/domain"
)

func TestPublishFetchRoutesByError(t *testing.T) {
	b := NewBroker()
	done := b.Subscribe(TopicFetchCompleted, 4)
	failed := b.Subscribe(TopicFetchFailed, 4)

	b.PublishFetch(domain.FetchEvent{Key: "cache/top_loras.json", Count: 3})
	b.PublishFetch(domain.FetchEvent{Key: "cache/top_loras.json", Err: errors.New("boom")})

	ev := <-done
	fe, ok := ev.Fetch()
	require.True(t, ok)
	assert.Equal(t, 3, fe.Count)

	ev = <-failed
	fe, ok = ev.Fetch()
	require.True(t, ok)
	assert.EqualError(t, fe.Err, "boom")
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("topic", 1)

	b.Publish("topic", 1)
	b.Publish("topic", 2)

	assert.Equal(t, 1, (<-ch).Data)
	assert.Len(t, ch, 0)
}

func TestCloseClosesSubscriptions(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("topic", 1)
	b.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op.
	b.Publish("topic", 1)
}
