// Package traffic turns cumulative interface byte counters into a stream of
// upload/download rate samples.
package traffic

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

const (
	DefaultInterval = time.Second
	DefaultMaxKbps  = 1_000_000
)

type Option func(*Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithMaxKbps(kbps int64) Option {
	return func(m *Monitor) {
		if kbps > 0 {
			m.maxKbps = kbps
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// Monitor samples a CounterReader once per interval and hands each RateSample
// to its Sink. The baseline lives only between Start and Stop.
type Monitor struct {
	reader  domain.CounterReader
	sink    domain.Sink
	clock   clock.Clock
	log     logger.Logger
	metrics *Metrics

	interval time.Duration
	maxKbps  int64

	// mu serializes Start and Stop.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stateMu     sync.Mutex
	previous    domain.CumulativeCounters
	isFirst     bool
	readFailing bool
}

type sampleStats struct {
	sample          domain.RateSample
	readErr         bool
	downloadReset   bool
	uploadReset     bool
	downloadClamped bool
	uploadClamped   bool
}

func NewMonitor(reader domain.CounterReader, sink domain.Sink, log logger.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		reader:   reader,
		sink:     sink,
		clock:    clock.New(),
		log:      log,
		interval: DefaultInterval,
		maxKbps:  DefaultMaxKbps,
		isFirst:  true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start resets the baseline and begins ticking. A running loop is stopped
// first.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	m.stateMu.Lock()
	m.previous = domain.CumulativeCounters{}
	m.isFirst = true
	m.readFailing = false
	m.stateMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	ticker := m.clock.Ticker(m.interval)
	done := make(chan struct{})

	m.cancel = cancel
	m.done = done

	go m.run(ctx, ticker, done)

	m.metrics.setRunning(true)
	m.log.Info("traffic: monitor started", "interval", m.interval, "max_kbps", m.maxKbps)
}

// Stop cancels the tick and waits for an in-flight sample to finish. It is a
// no-op when the monitor is not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopLocked() {
		m.log.Info("traffic: monitor stopped")
	}
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) stopLocked() bool {
	if m.cancel == nil {
		return false
	}

	m.cancel()
	<-m.done

	m.cancel = nil
	m.done = nil
	m.metrics.setRunning(false)

	return true
}

func (m *Monitor) run(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, m.interval)
			sample := m.Sample(tickCtx)
			cancel()

			// stopped while sampling
			if ctx.Err() != nil {
				return
			}

			m.sink.Deliver(sample)
		}
	}
}

// Sample reads the counters once and derives the rate since the previous
// call. The first call after Start only records a baseline and returns a
// zero sample. A failed read counts as zero counters.
func (m *Monitor) Sample(ctx context.Context) domain.RateSample {
	current, err := m.reader.Read(ctx)

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.logReadResult(err)
	if err != nil {
		current = domain.CumulativeCounters{}
	}

	stats := sampleStats{readErr: err != nil}

	if m.isFirst {
		m.previous = current
		m.isFirst = false
		m.metrics.observe(stats)

		m.log.Debug("traffic: baseline recorded", "received", current.BytesReceived, "sent", current.BytesSent)
		return stats.sample
	}

	prev := m.previous

	stats.sample.DownloadKbps, stats.downloadReset, stats.downloadClamped = derive(prev.BytesReceived, current.BytesReceived, m.interval, m.maxKbps)
	stats.sample.UploadKbps, stats.uploadReset, stats.uploadClamped = derive(prev.BytesSent, current.BytesSent, m.interval, m.maxKbps)

	if stats.downloadReset {
		m.log.Debug("traffic: download counter reset detected", "previous", prev.BytesReceived, "current", current.BytesReceived)
	}
	if stats.uploadReset {
		m.log.Debug("traffic: upload counter reset detected", "previous", prev.BytesSent, "current", current.BytesSent)
	}

	m.previous = current
	m.metrics.observe(stats)

	m.log.Debug("traffic: sample",
		"download_kbps", stats.sample.DownloadKbps,
		"upload_kbps", stats.sample.UploadKbps,
	)

	return stats.sample
}

// logReadResult warns on the first failed read of a run of failures and
// stays at debug until a read succeeds again.
func (m *Monitor) logReadResult(err error) {
	switch {
	case err != nil && !m.readFailing:
		m.readFailing = true
		m.log.Warn("traffic: counter read failed", "error", err)
	case err != nil:
		m.log.Debug("traffic: counter read failed", "error", err)
	case m.readFailing:
		m.readFailing = false
		m.log.Info("traffic: counter read recovered")
	}
}
