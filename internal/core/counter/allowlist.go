// Package counter reads cumulative interface byte counters from the OS.
package counter

import (
	"errors"
	"strings"
)

var ErrNoInterfaces = errors.New("counter: no allowed interface found")

// AllowList selects the interfaces whose counters are summed. An entry ending
// in "*" matches by prefix. An empty list admits every interface except
// loopback.
type AllowList []string

func (a AllowList) Match(name string) bool {
	if len(a) == 0 {
		return !isLoopback(name)
	}

	for _, pattern := range a {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}

		if name == pattern {
			return true
		}
	}

	return false
}

func isLoopback(name string) bool {
	return name == "lo" || name == "lo0"
}
