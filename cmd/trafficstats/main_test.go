package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"trafficstats/internal/config"
	"trafficstats/internal/domain"
)

const netDev = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo:     100       1    0    0    0     0          0         0      100       1    0    0    0     0       0          0
  eth0:    5000      10    0    0    0     0          0         0     2000       8    0    0    0     0       0          0
`

func TestRunSnapshotPrintsMeasuredSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev")
	require.NoError(t, os.WriteFile(path, []byte(netDev), 0o644))

	var out bytes.Buffer
	err := run([]string{
		"--mode=" + config.ModeSnapshot,
		"--counter-source=" + config.SourceProcFS,
		"--proc-net-dev=" + path,
		"--interfaces=eth0",
		"--interval=10ms",
		"--log-level=error",
	}, &out)
	require.NoError(t, err)

	var s domain.RateSample
	require.NoError(t, json.Unmarshal(out.Bytes(), &s))
	require.Equal(t, domain.RateSample{}, s)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	err := run([]string{"--mode=daemon"}, &bytes.Buffer{})
	require.ErrorIs(t, err, config.ErrInvalidMode)

	err = run([]string{"--counter-source=snmp"}, &bytes.Buffer{})
	require.ErrorIs(t, err, config.ErrInvalidSource)
}
