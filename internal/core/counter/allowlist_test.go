package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowListMatch(t *testing.T) {
	tests := []struct {
		allow AllowList
		name  string
		want  bool
	}{
		{AllowList{"en0", "pdp_ip0"}, "en0", true},
		{AllowList{"en0", "pdp_ip0"}, "pdp_ip0", true},
		{AllowList{"en0", "pdp_ip0"}, "en1", false},
		{AllowList{"en0", "pdp_ip0"}, "lo0", false},
		{AllowList{"en0", "pdp_ip0"}, "EN0", false},
		{AllowList{"wl*"}, "wlan0", true},
		{AllowList{"wl*"}, "eth0", false},
		{AllowList{"*"}, "lo", true},
		{nil, "eth0", true},
		{nil, "lo", false},
		{nil, "lo0", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.allow.Match(tt.name), "%v match %q", tt.allow, tt.name)
	}
}
