package counter

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/net"

	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

var _ domain.CounterReader = (*NetIOReader)(nil)

// NetIOReader reads per-NIC counters through gopsutil, which covers Linux,
// the BSDs, macOS and Windows.
type NetIOReader struct {
	allow      AllowList
	log        logger.Logger
	ioCounters func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
}

func NewNetIOReader(allow AllowList, log logger.Logger) *NetIOReader {
	return &NetIOReader{
		allow:      allow,
		log:        log,
		ioCounters: net.IOCountersWithContext,
	}
}

func (r *NetIOReader) Read(ctx context.Context) (domain.CumulativeCounters, error) {
	stats, err := r.ioCounters(ctx, true)
	if err != nil {
		return domain.CumulativeCounters{}, fmt.Errorf("counter: netio: %w", err)
	}

	ifaces := make([]ifaceCounters, 0, len(stats))
	for _, s := range stats {
		ifaces = append(ifaces, ifaceCounters{name: s.Name, rx: s.BytesRecv, tx: s.BytesSent})
	}

	return sum(r.allow, ifaces, r.log)
}
