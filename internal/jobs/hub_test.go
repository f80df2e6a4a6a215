package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
)

func drain(t *testing.T, sub *Subscriber) crawler.JobEvent {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return crawler.JobEvent{}
	}
}

func TestHubDeliversToSubscribedJobOnly(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	sub := hub.NewSubscriber()
	hub.Subscribe("j1", sub)

	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j1"})
	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j2"})
	hub.Publish(crawler.JobEvent{Event: crawler.EventJobProcessing, JobID: "j1"})

	require.Equal(t, crawler.EventJobCreated, drain(t, sub).Event)
	require.Equal(t, crawler.EventJobProcessing, drain(t, sub).Event)
	require.Empty(t, sub.Events())
}

func TestHubMultipleSubscribersOneJob(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	a := hub.NewSubscriber()
	b := hub.NewSubscriber()
	hub.Subscribe("j1", a)
	hub.Subscribe("j1", b)

	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCompleted, JobID: "j1"})

	require.Equal(t, "j1", drain(t, a).JobID)
	require.Equal(t, "j1", drain(t, b).JobID)
}

func TestHubOneSubscriberManyJobs(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	sub := hub.NewSubscriber()
	hub.Subscribe("j1", sub)
	hub.Subscribe("j2", sub)

	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j1"})
	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j2"})

	require.Equal(t, "j1", drain(t, sub).JobID)
	require.Equal(t, "j2", drain(t, sub).JobID)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	sub := hub.NewSubscriber()
	hub.Subscribe("j1", sub)
	hub.Unsubscribe("j1", sub)

	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j1"})
	require.Empty(t, sub.Events())
}

func TestHubDropClosesChannelAndDetaches(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	sub := hub.NewSubscriber()
	hub.Subscribe("j1", sub)
	hub.Subscribe("j2", sub)

	hub.Drop(sub)

	_, open := <-sub.Events()
	require.False(t, open)

	// Publishing after the drop must not panic on the closed channel.
	hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j1"})
}

func TestHubDropIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	sub := hub.NewSubscriber()
	hub.Subscribe("j1", sub)
	hub.Drop(sub)
	hub.Drop(sub)
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	sub := hub.NewSubscriber()
	hub.Subscribe("j1", sub)

	// Exceed the buffer without draining; Publish must return every time.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(crawler.JobEvent{Event: crawler.EventJobCreated, JobID: "j1"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	require.Len(t, sub.Events(), subscriberBuffer)
}

func TestHubCloseDropsEverySubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	a := hub.NewSubscriber()
	b := hub.NewSubscriber()
	hub.Subscribe("j1", a)
	hub.Subscribe("j1", b)

	hub.Close()

	_, open := <-a.Events()
	require.False(t, open)
	_, open = <-b.Events()
	require.False(t, open)
}
