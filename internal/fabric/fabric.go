package fabric

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/metrics"
)

// Topics carried by the fabric.
const (
	TopicPacketCount     = "packetCount"
	TopicTrafficData     = "trafficData"
	TopicFlowReady       = "flowReady"
	TopicDetectionLog    = "detectionLog"
	TopicDetectionResult = "detectionResult"
	TopicHeartbeat       = "heartbeat"
	TopicCaptureError    = "captureError"
)

// Event is one fabric message as delivered to subscribers.
type Event struct {
	Topic     string      `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// HeartbeatPayload is the liveness metadata published on the heartbeat topic.
type HeartbeatPayload struct {
	Running     bool `json:"running"`
	Connections int  `json:"connections"`
}

// Subscriber owns a bounded per-topic queue of events. A subscriber that
// stops draining loses its oldest messages; it never slows a publisher.
type Subscriber struct {
	ID     string
	topics map[string]struct{}

	mu     sync.Mutex
	queue  []Event
	cap    int
	closed bool
	drops  uint64

	notify chan struct{}
}

func (s *Subscriber) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true // no topic filter subscribes to everything
	}
	_, ok := s.topics[topic]
	return ok
}

// push enqueues ev, dropping the oldest queued event when full. O(1); never
// blocks.
func (s *Subscriber) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
		s.drops++
		metrics.EventsDropped.WithLabelValues(ev.Topic).Inc()
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or ctx is done. The second return
// is false once the context is cancelled or the subscriber is closed with an
// empty queue.
func (s *Subscriber) Next(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, false
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// Drops reports how many events this subscriber has lost to backpressure.
func (s *Subscriber) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Len reports the current queue depth.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Fabric is the in-process publish/subscribe broker. Publishing is
// non-blocking regardless of subscriber behavior; delivery is FIFO per
// subscriber.
type Fabric struct {
	mu       sync.RWMutex
	subs     map[string]*Subscriber
	queueCap int
	mirror   *Mirror
	log      *logrus.Entry

	// liveness probe reported in heartbeats, set by the capture supervisor
	runningProbe atomic.Value // func() bool
}

// New creates a fabric whose subscribers hold at most queueCap events each.
func New(queueCap int, logger *logrus.Entry) *Fabric {
	if queueCap <= 0 {
		queueCap = 256
	}
	return &Fabric{
		subs:     make(map[string]*Subscriber),
		queueCap: queueCap,
		log:      logger,
	}
}

// SetMirror attaches an external event mirror. May be nil.
func (f *Fabric) SetMirror(m *Mirror) {
	f.mu.Lock()
	f.mirror = m
	f.mu.Unlock()
}

// SetRunningProbe installs the capture liveness callback used in heartbeats.
func (f *Fabric) SetRunningProbe(probe func() bool) {
	f.runningProbe.Store(probe)
}

// Subscribe registers a new subscriber for the given topics. An empty topic
// list subscribes to all topics.
func (f *Fabric) Subscribe(topics ...string) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		topics: make(map[string]struct{}, len(topics)),
		cap:    f.queueCap,
		notify: make(chan struct{}, 1),
	}
	for _, t := range topics {
		if t != "" {
			sub.topics[t] = struct{}{}
		}
	}

	f.mu.Lock()
	f.subs[sub.ID] = sub
	f.mu.Unlock()
	return sub
}

// Unsubscribe removes and closes the subscriber.
func (f *Fabric) Unsubscribe(id string) {
	f.mu.Lock()
	sub, ok := f.subs[id]
	delete(f.subs, id)
	f.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Connections returns the current number of subscribers.
func (f *Fabric) Connections() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish fans the payload out to every subscriber of the topic. It never
// blocks on a slow subscriber.
func (f *Fabric) Publish(topic string, payload interface{}) {
	ev := Event{Topic: topic, Timestamp: time.Now().UTC(), Payload: payload}
	metrics.EventsPublished.WithLabelValues(topic).Inc()

	f.mu.RLock()
	mirror := f.mirror
	for _, sub := range f.subs {
		if sub.wants(topic) {
			sub.push(ev)
		}
	}
	f.mu.RUnlock()

	if mirror != nil {
		if err := mirror.Publish(ev); err != nil && f.log != nil {
			f.log.WithError(err).WithField("topic", topic).Debug("event mirror publish failed")
		}
	}
}

// RunHeartbeat publishes liveness metadata at the given cadence until ctx is
// done.
func (f *Fabric) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			running := false
			if probe, ok := f.runningProbe.Load().(func() bool); ok && probe != nil {
				running = probe()
			}
			f.Publish(TopicHeartbeat, HeartbeatPayload{
				Running:     running,
				Connections: f.Connections(),
			})
		case <-ctx.Done():
			return
		}
	}
}

// Close drops all subscribers and the mirror connection.
func (f *Fabric) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[string]*Subscriber)
	mirror := f.mirror
	f.mirror = nil
	f.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	if mirror != nil {
		mirror.Close()
	}
}
