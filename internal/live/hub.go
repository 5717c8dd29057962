package live

import (
	"context"
	"errors"
	"sync"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/metrics"

	"github.com/google/uuid"
)

var ErrHubClosed = errors.New("live hub is not running")

// SnapshotProvider builds the snapshot a new subscriber receives first.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

type SnapshotFunc func(ctx context.Context) (Snapshot, error)

func (f SnapshotFunc) Snapshot(ctx context.Context) (Snapshot, error) { return f(ctx) }

type HubConfig struct {
	BroadcastBuffer  int
	SubscriberBuffer int
}

// Subscription is one subscriber's handle. Events is closed when the subscriber
// is removed, whether by Close, by the hub dropping it, or by hub shutdown.
type Subscription struct {
	id     string
	events chan Event
	hub    *Hub
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

type Hub struct {
	subscribers map[*Subscription]struct{}
	broadcast   chan Event
	register    chan registration
	unregister  chan *Subscription
	done        chan struct{}
	running     chan struct{}
	startOnce   sync.Once
	snapshots   SnapshotProvider
	bufferSize  int
	log         *logger.Logger
	mu          sync.RWMutex
}

func NewHub(snapshots SnapshotProvider, cfg HubConfig, log *logger.Logger) *Hub {
	if cfg.BroadcastBuffer < 1 {
		cfg.BroadcastBuffer = 1
	}
	if cfg.SubscriberBuffer < 1 {
		cfg.SubscriberBuffer = 1
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		broadcast:   make(chan Event, cfg.BroadcastBuffer),
		register:    make(chan registration),
		unregister:  make(chan *Subscription),
		done:        make(chan struct{}),
		running:     make(chan struct{}),
		snapshots:   snapshots,
		bufferSize:  cfg.SubscriberBuffer,
		log:         log,
	}
}

// Run owns the subscriber set until ctx is cancelled. All subscriptions are closed
// on return.
func (h *Hub) Run(ctx context.Context) {
	h.startOnce.Do(func() { close(h.running) })
	h.log.Info("Live hub started")
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Live hub shutting down...")
			return
		case req := <-h.register:
			h.add(req)
		case sub := <-h.unregister:
			h.remove(sub)
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

type registration struct {
	ctx context.Context
	sub *Subscription
}

// add queues the snapshot and joins the subscriber set in one step on the hub
// goroutine, so every event published after the snapshot read is delivered.
func (h *Hub) add(req registration) {
	sub := req.sub
	if h.snapshots != nil {
		snap, err := h.snapshots.Snapshot(req.ctx)
		if err != nil {
			h.log.Warn("Subscriber %s connected without snapshot: %v", sub.id, err)
		} else {
			sub.events <- snap
		}
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	total := len(h.subscribers)
	h.mu.Unlock()
	metrics.LiveSubscribers.Set(float64(total))
	h.log.Info("Subscriber %s connected. Total: %d", sub.id, total)
}

func (h *Hub) deliver(ev Event) {
	metrics.LiveEventsTotal.WithLabelValues(ev.Kind()).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.events <- ev:
		default:
			err := apperr.NewSubscriberSendFailure(sub.id, errors.New("send buffer full"))
			h.log.Warn("Dropping subscriber: %v", err)
			metrics.LiveSendFailures.Inc()
			close(sub.events)
			delete(h.subscribers, sub)
		}
	}
	metrics.LiveSubscribers.Set(float64(len(h.subscribers)))
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.events)
		h.log.Info("Subscriber %s disconnected. Total: %d", sub.id, len(h.subscribers))
	}
	total := len(h.subscribers)
	h.mu.Unlock()
	metrics.LiveSubscribers.Set(float64(total))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for sub := range h.subscribers {
		close(sub.events)
		delete(h.subscribers, sub)
	}
	h.mu.Unlock()
	metrics.LiveSubscribers.Set(0)
	close(h.done)
}

// Subscribe registers a new subscriber. Its first event is the current snapshot;
// events published before registration are never replayed.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	sub := &Subscription{
		id:     uuid.NewString(),
		events: make(chan Event, h.bufferSize),
		hub:    h,
	}

	select {
	case h.register <- registration{ctx: context.WithoutCancel(ctx), sub: sub}:
		return sub, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes sub. Safe to call more than once, before Run starts and
// after shutdown.
func (h *Hub) Unsubscribe(sub *Subscription) {
	select {
	case <-h.running:
	default:
		return
	}

	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues ev for every current subscriber. It waits only for queueing, not
// for delivery, and returns false if the hub has stopped.
func (h *Hub) Publish(ev Event) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- ev:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Running reports whether Run has started and not yet returned.
func (h *Hub) Running() bool {
	select {
	case <-h.done:
		return false
	case <-h.running:
		return true
	default:
		return false
	}
}
