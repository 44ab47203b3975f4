package traffic

import (
	"math/bits"
	"time"
)

// derive converts the growth of a cumulative byte counter over one nominal
// interval into kbps, truncating, and bounds it to [0, maxKbps]. A counter
// that went backwards is reported as zero throughput with reset set; the
// bytes moved across the reset are not recovered.
func derive(prev, cur uint64, interval time.Duration, maxKbps int64) (kbps int64, reset, clamped bool) {
	if cur < prev {
		return 0, true, false
	}

	if maxKbps <= 0 {
		return 0, false, cur > prev
	}

	us := uint64(interval.Microseconds())
	if us == 0 {
		us = 1
	}

	// bytes*8 per microsecond is 8000 bits per millisecond, i.e. kbps*1000.
	hi, lo := bits.Mul64(cur-prev, 8000)
	if hi >= us {
		// quotient does not fit in 64 bits
		return maxKbps, false, true
	}

	rate, _ := bits.Div64(hi, lo, us)
	if rate > uint64(maxKbps) {
		return maxKbps, false, true
	}

	return int64(rate), false, false
}
