package fabric

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func TestSubscriberFIFODelivery(t *testing.T) {
	f := New(16, testLogger())
	defer f.Close()

	sub := f.Subscribe(TopicPacketCount)
	for i := 0; i < 5; i++ {
		f.Publish(TopicPacketCount, i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		ev, ok := sub.Next(ctx)
		require.True(t, ok)
		assert.Equal(t, TopicPacketCount, ev.Topic)
		assert.Equal(t, i, ev.Payload)
	}
}

func TestSubscriberTopicFilter(t *testing.T) {
	f := New(16, testLogger())
	defer f.Close()

	sub := f.Subscribe(TopicDetectionResult)
	f.Publish(TopicPacketCount, 1)
	f.Publish(TopicDetectionResult, "verdict")
	f.Publish(TopicHeartbeat, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, TopicDetectionResult, ev.Topic)
	assert.Zero(t, sub.Len())
}

func TestSubscriberAllTopics(t *testing.T) {
	f := New(16, testLogger())
	defer f.Close()

	sub := f.Subscribe()
	f.Publish(TopicPacketCount, 1)
	f.Publish(TopicDetectionLog, 2)

	assert.Equal(t, 2, sub.Len())
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	f := New(4, testLogger())
	defer f.Close()

	sub := f.Subscribe(TopicPacketCount)
	for i := 0; i < 10; i++ {
		f.Publish(TopicPacketCount, i)
	}

	// Queue holds the newest four; the six oldest were dropped.
	assert.Equal(t, 4, sub.Len())
	assert.Equal(t, uint64(6), sub.Drops())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 6, ev.Payload)
}

func TestPublishNeverBlocks(t *testing.T) {
	f := New(2, testLogger())
	defer f.Close()

	// A subscriber that never drains must not slow publishers down.
	f.Subscribe(TopicPacketCount)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			f.Publish(TopicPacketCount, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestNextUnblocksOnCancel(t *testing.T) {
	f := New(16, testLogger())
	defer f.Close()

	sub := f.Subscribe(TopicPacketCount)
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan bool, 1)
	go func() {
		_, ok := sub.Next(ctx)
		result <- ok
	}()

	cancel()
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}

func TestUnsubscribeClosesSubscriber(t *testing.T) {
	f := New(16, testLogger())
	defer f.Close()

	sub := f.Subscribe(TopicPacketCount)
	assert.Equal(t, 1, f.Connections())

	f.Unsubscribe(sub.ID)
	assert.Equal(t, 0, f.Connections())

	_, ok := sub.Next(context.Background())
	assert.False(t, ok)
}

func TestSubscriberDrainsQueueAfterClose(t *testing.T) {
	f := New(16, testLogger())
	sub := f.Subscribe(TopicPacketCount)
	f.Publish(TopicPacketCount, 42)
	f.Unsubscribe(sub.ID)

	// Queued events survive the close; the stream ends after the drain.
	ev, ok := sub.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, 42, ev.Payload)

	_, ok = sub.Next(context.Background())
	assert.False(t, ok)
}

func TestHeartbeatPublishesLiveness(t *testing.T) {
	f := New(16, testLogger())
	defer f.Close()
	f.SetRunningProbe(func() bool { return true })

	sub := f.Subscribe(TopicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.RunHeartbeat(ctx, 5*time.Millisecond)

	nextCtx, nextCancel := context.WithTimeout(context.Background(), time.Second)
	defer nextCancel()
	ev, ok := sub.Next(nextCtx)
	require.True(t, ok)

	payload, isHeartbeat := ev.Payload.(HeartbeatPayload)
	require.True(t, isHeartbeat, fmt.Sprintf("unexpected payload %T", ev.Payload))
	assert.True(t, payload.Running)
	assert.Equal(t, 1, payload.Connections)
}
