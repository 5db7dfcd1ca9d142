package integration

import (
	"sync"
	"time"
)

// Stats collects execution accounting for one run: elapsed time, network
// calls, retries, wait time and per-type record counts. It is safe for
// use from the HTTP layer while the adapter fans pages out.
type Stats struct {
	mu sync.Mutex

	start        time.Time
	networkCalls int
	retries      int
	networkWait  time.Duration
	counts       map[string]int
}

func NewStats() *Stats {
	return &Stats{
		start:  time.Now(),
		counts: make(map[string]int),
	}
}

func (s *Stats) IncrNetworkCalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.networkCalls += n
}

func (s *Stats) IncrRetries(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retries += n
}

func (s *Stats) AddNetworkWait(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.networkWait += d
}

// SetRecordCount records how many objects of a type this run touched.
func (s *Stats) SetRecordCount(typeName string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[typeName] = n
}

// RecordCounts returns a copy of the per-type counts.
func (s *Stats) RecordCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Result renders the run metrics as the free-form result map persisted
// on the connection account.
func (s *Stats) Result() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]any, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}

	return map[string]any{
		"elapsed_seconds":      time.Since(s.start).Seconds(),
		"network_calls":        s.networkCalls,
		"retries":              s.retries,
		"network_wait_seconds": s.networkWait.Seconds(),
		"records":              counts,
	}
}
