package counter

import (
	"math"
	"math/bits"

	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

type ifaceCounters struct {
	name string
	rx   uint64
	tx   uint64
}

// sum adds up the counters of every allowed interface.
func sum(allow AllowList, ifaces []ifaceCounters, log logger.Logger) (domain.CumulativeCounters, error) {
	var total domain.CumulativeCounters
	matched := 0

	for _, ifc := range ifaces {
		if !allow.Match(ifc.name) {
			continue
		}

		matched++
		total.BytesReceived = addSaturating(total.BytesReceived, ifc.rx, "received", log)
		total.BytesSent = addSaturating(total.BytesSent, ifc.tx, "sent", log)

		log.Debug("counter: interface", "name", ifc.name, "received", ifc.rx, "sent", ifc.tx)
	}

	if matched == 0 {
		return domain.CumulativeCounters{}, ErrNoInterfaces
	}

	log.Debug("counter: totals", "received", total.BytesReceived, "sent", total.BytesSent, "interfaces", matched)

	return total, nil
}

// addSaturating pins the total at MaxUint64 instead of wrapping, so a huge
// sum reads as a flat counter rather than a reset.
func addSaturating(total, v uint64, direction string, log logger.Logger) uint64 {
	s, carry := bits.Add64(total, v, 0)
	if carry != 0 {
		log.Debug("counter: total saturated", "direction", direction)
		return math.MaxUint64
	}
	return s
}
