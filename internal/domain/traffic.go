// Package domain
package domain

import (
	"context"
	"errors"
)

var ErrNoSample = errors.New("no sample recorded yet")

// CumulativeCounters are byte totals as reported by the OS. They only grow,
// except when an interface restarts or a counter rolls over.
type CumulativeCounters struct {
	BytesReceived uint64
	BytesSent     uint64
}

// RateSample is the throughput over one sampling interval, in kbps.
type RateSample struct {
	DownloadKbps int64 `json:"downloadSpeed"`
	UploadKbps   int64 `json:"uploadSpeed"`
}

type CounterReader interface {
	Read(ctx context.Context) (CumulativeCounters, error)
}

type Sink interface {
	Deliver(s RateSample)
}

type SinkFunc func(s RateSample)

func (f SinkFunc) Deliver(s RateSample) { f(s) }
