package jobs

import (
	"sync"

	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
	"github.com/scrapegoat/scrapegoat/internal/metrics"
)

const subscriberBuffer = 16

// Subscriber is one listener's delivery queue. A subscriber may be attached
// to any number of job IDs; events for them arrive interleaved on one
// channel, each job's events in transition order.
type Subscriber struct {
	ch chan crawler.JobEvent

	closeOnce sync.Once
}

// Events returns the subscriber's delivery channel.
func (s *Subscriber) Events() <-chan crawler.JobEvent {
	return s.ch
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Hub is the pub/sub registry mapping job IDs to active subscribers.
// Subscribe, Unsubscribe, and Drop are its only mutators; Publish is a
// read-only iteration over the subscriber set at emission time.
type Hub struct {
	mu     sync.Mutex
	byJob  map[string]map[*Subscriber]struct{}
	bySub  map[*Subscriber]map[string]struct{}
	logger *zap.Logger
}

// NewHub constructs a Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		byJob:  make(map[string]map[*Subscriber]struct{}),
		bySub:  make(map[*Subscriber]map[string]struct{}),
		logger: logger,
	}
}

// NewSubscriber registers a new listener handle with the hub. It receives no
// events until it subscribes to a job ID; there is no subscribe-to-all mode.
func (h *Hub) NewSubscriber() *Subscriber {
	sub := &Subscriber{ch: make(chan crawler.JobEvent, subscriberBuffer)}
	h.mu.Lock()
	h.bySub[sub] = make(map[string]struct{})
	h.mu.Unlock()
	return sub
}

// Subscribe attaches the subscriber to one job ID.
func (h *Hub) Subscribe(jobID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids, ok := h.bySub[sub]
	if !ok {
		return
	}
	if _, dup := ids[jobID]; dup {
		return
	}
	ids[jobID] = struct{}{}
	if h.byJob[jobID] == nil {
		h.byJob[jobID] = make(map[*Subscriber]struct{})
	}
	h.byJob[jobID][sub] = struct{}{}
	metrics.AddWSSubscriptions(1)
}

// Unsubscribe detaches the subscriber from one job ID.
func (h *Hub) Unsubscribe(jobID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(jobID, sub)
}

// Drop removes the subscriber from every job it was part of and closes its
// channel, leaving no dangling references. Called on listener disconnect.
func (h *Hub) Drop(sub *Subscriber) {
	h.mu.Lock()
	ids := h.bySub[sub]
	for jobID := range ids {
		h.detach(jobID, sub)
	}
	delete(h.bySub, sub)
	h.mu.Unlock()
	sub.close()
}

// Publish delivers the event to every subscriber of its job ID. Delivery is
// in-order per job; a subscriber whose buffer is full loses the event rather
// than blocking the publisher.
func (h *Hub) Publish(evt crawler.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.byJob[evt.JobID] {
		select {
		case sub.ch <- evt:
		default:
			h.logger.Warn("job event dropped for slow subscriber",
				zap.String("job_id", evt.JobID),
				zap.String("event", string(evt.Event)),
			)
		}
	}
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.bySub))
	for sub := range h.bySub {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		h.Drop(sub)
	}
}

// detach requires h.mu held.
func (h *Hub) detach(jobID string, sub *Subscriber) {
	ids, ok := h.bySub[sub]
	if !ok {
		return
	}
	if _, subscribed := ids[jobID]; !subscribed {
		return
	}
	delete(ids, jobID)
	if set := h.byJob[jobID]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.byJob, jobID)
		}
	}
	metrics.AddWSSubscriptions(-1)
}
