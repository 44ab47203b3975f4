package snapshot

import "trafficstats/internal/domain"

type SampleStore struct {
	Store[domain.RateSample]
}

func NewSampleStore() *SampleStore {
	return &SampleStore{}
}
