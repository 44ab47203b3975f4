package traffic

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur uint64
		interval  time.Duration
		max       int64
		want      int64
		reset     bool
	}{
		{"idle", 500, 500, time.Second, DefaultMaxKbps, 0, false},
		{"one kilobyte", 1000, 2000, time.Second, DefaultMaxKbps, 8, false},
		{"truncates", 500, 700, time.Second, DefaultMaxKbps, 1, false},
		{"below one kbps", 700, 800, time.Second, DefaultMaxKbps, 0, false},
		{"reset", 2000, 500, time.Second, DefaultMaxKbps, 0, true},
		{"exactly max", 0, 125_000_000, time.Second, DefaultMaxKbps, DefaultMaxKbps, false},
		{"above max", 0, 125_000_126, time.Second, DefaultMaxKbps, DefaultMaxKbps, false},
		{"would overflow", 0, math.MaxUint64, time.Second, DefaultMaxKbps, DefaultMaxKbps, false},
		{"half second interval", 0, 1000, 500 * time.Millisecond, DefaultMaxKbps, 16, false},
		{"custom max", 0, 1_000_000, time.Second, 100, 100, false},
		{"sub millisecond interval", 0, 1000, 500 * time.Microsecond, DefaultMaxKbps, 16_000, false},
		{"fractional milliseconds", 0, 1500, 1500 * time.Microsecond, DefaultMaxKbps, 8000, false},
		{"long interval", 0, 1 << 62, 24 * time.Hour, 1 << 62, 427_007_964_669, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reset, _ := derive(tt.prev, tt.cur, tt.interval, tt.max)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.reset, reset)
		})
	}
}

func TestDeriveReportsClamping(t *testing.T) {
	_, _, clamped := derive(0, 125_000_000, time.Second, DefaultMaxKbps)
	require.False(t, clamped)

	_, _, clamped = derive(0, 125_000_001_000, time.Second, DefaultMaxKbps)
	require.True(t, clamped)
}

func TestRateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("growing counters give delta*8/1000 bounded by max", prop.ForAll(
		func(prev, delta uint64) bool {
			got, reset, _ := derive(prev, prev+delta, time.Second, DefaultMaxKbps)
			want := int64(delta * 8 / 1000)
			if want > DefaultMaxKbps {
				want = DefaultMaxKbps
			}
			return !reset && got == want
		},
		gen.UInt64Range(0, 1<<50),
		gen.UInt64Range(0, 1<<40),
	))

	properties.Property("any counters stay within [0, max]", prop.ForAll(
		func(prev, cur uint64) bool {
			got, _, _ := derive(prev, cur, time.Second, DefaultMaxKbps)
			return got >= 0 && got <= DefaultMaxKbps
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.Property("a decrease is a zero rate reset", prop.ForAll(
		func(cur, drop uint64) bool {
			if drop == 0 || cur > math.MaxUint64-drop {
				return true
			}
			got, reset, _ := derive(cur+drop, cur, time.Second, DefaultMaxKbps)
			return reset && got == 0
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
