package traffic

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

var _ domain.Sink = (*Stream)(nil)

// Controller is the lifecycle half of a Monitor.
type Controller interface {
	Start()
	Stop()
}

type SubscriptionHandle uuid.UUID

func (h SubscriptionHandle) String() string {
	return uuid.UUID(h).String()
}

type streamEvent struct {
	epoch  uint64
	sample domain.RateSample
}

// Stream fans samples out to subscribers from its own dispatch goroutine. The
// first subscriber starts the monitor and the last one to leave stops it.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	monitor Controller
	subs    map[SubscriptionHandle]func(domain.RateSample)

	// epoch advances each time the monitor stops, so samples still queued
	// from a finished session are dropped.
	epoch  atomic.Uint64
	events chan streamEvent

	log logger.Logger
}

func NewStream(parent context.Context, log logger.Logger) *Stream {
	ctx, cancel := context.WithCancel(parent)

	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[SubscriptionHandle]func(domain.RateSample)),
		events: make(chan streamEvent, 64),
		log:    log,
	}
}

func (s *Stream) SetMonitor(c Controller) {
	s.mu.Lock()
	s.monitor = c
	s.mu.Unlock()
}

func (s *Stream) Subscribe(fn func(domain.RateSample)) SubscriptionHandle {
	h := SubscriptionHandle(uuid.New())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[h] = fn
	s.log.Debug("stream: subscribed", "handle", h, "subscribers", len(s.subs))

	if len(s.subs) == 1 && s.monitor != nil {
		s.monitor.Start()
	}

	return h
}

// Unsubscribe removes h and reports whether it was subscribed.
func (s *Stream) Unsubscribe(h SubscriptionHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[h]; !ok {
		return false
	}

	delete(s.subs, h)
	s.log.Debug("stream: unsubscribed", "handle", h, "subscribers", len(s.subs))

	if len(s.subs) == 0 {
		s.stopMonitorLocked()
	}

	return true
}

func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Deliver queues a sample for dispatch without blocking the caller.
func (s *Stream) Deliver(sample domain.RateSample) {
	ev := streamEvent{epoch: s.epoch.Load(), sample: sample}

	select {
	case <-s.ctx.Done():
	case s.events <- ev:
	default:
		s.log.Warn("stream: dispatch buffer full, dropping sample")
	}
}

func (s *Stream) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("stream: shutting down...")
			return

		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

// Stop ends dispatch, drops every subscriber and stops the monitor.
func (s *Stream) Stop() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) > 0 {
		clear(s.subs)
		s.stopMonitorLocked()
	}
}

func (s *Stream) stopMonitorLocked() {
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.epoch.Add(1)
}

func (s *Stream) dispatch(ev streamEvent) {
	s.mu.Lock()
	if ev.epoch != s.epoch.Load() {
		s.mu.Unlock()
		return
	}

	fns := make([]func(domain.RateSample), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev.sample)
	}
}
