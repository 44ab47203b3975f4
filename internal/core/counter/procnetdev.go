package counter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

var _ domain.CounterReader = (*ProcReader)(nil)

// ProcReader parses the Linux /proc/net/dev table directly.
type ProcReader struct {
	path  string
	allow AllowList
	log   logger.Logger
}

func NewProcReader(path string, allow AllowList, log logger.Logger) *ProcReader {
	return &ProcReader{path: path, allow: allow, log: log}
}

func (r *ProcReader) Read(ctx context.Context) (domain.CumulativeCounters, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return domain.CumulativeCounters{}, fmt.Errorf("counter: procfs: %w", err)
	}
	defer f.Close()

	ifaces, err := parseNetDev(f, r.log)
	if err != nil {
		return domain.CumulativeCounters{}, fmt.Errorf("counter: procfs: %w", err)
	}

	return sum(r.allow, ifaces, r.log)
}

func parseNetDev(rd io.Reader, log logger.Logger) ([]ifaceCounters, error) {
	var ifaces []ifaceCounters

	scanner := bufio.NewScanner(rd)
	// skip headers (first two lines)
	for i := 0; i < 2 && scanner.Scan(); i++ {
	}

	for scanner.Scan() {
		// large counters can touch the colon: "eth0:1234 ..."
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) < 16 {
			continue
		}

		name = strings.TrimSpace(name)

		rx, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			log.Debug("counter: skipping interface with unreadable counters", "name", name, "error", err)
			continue
		}

		tx, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			log.Debug("counter: skipping interface with unreadable counters", "name", name, "error", err)
			continue
		}

		ifaces = append(ifaces, ifaceCounters{name: name, rx: rx, tx: tx})
	}

	return ifaces, scanner.Err()
}
