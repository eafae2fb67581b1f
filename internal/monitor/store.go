package monitor

import (
	"context"
	"sync"

	"github.com/danmuck/picoctl/internal/protocol"
)

// DefaultCapacity bounds the measurements kept in memory.
const DefaultCapacity = 4096

// Store keeps the latest measurements and summaries. It satisfies the sink
// interface so a session can write into it directly.
type Store struct {
	mu           sync.RWMutex
	capacity     int
	measurements []protocol.Measurement
	dropped      int
	bursts       []protocol.Summary
	maxBursts    int
	device       protocol.VersionInfo
	port         string
	ready        bool
}

// NewStore keeps up to capacity measurements and as many summaries as
// capacity/16, at least 16. capacity <= 0 selects DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:  capacity,
		maxBursts: max(capacity/16, 16),
	}
}

// SetDevice records the identified instrument and marks the store ready.
func (s *Store) SetDevice(info protocol.VersionInfo, port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = info
	s.port = port
	s.ready = true
}

// Device returns the identified instrument and whether one is set.
func (s *Store) Device() (protocol.VersionInfo, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device, s.port, s.ready
}

func (s *Store) HandleMeasurement(_ context.Context, m protocol.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.measurements) == s.capacity {
		n := copy(s.measurements, s.measurements[1:])
		s.measurements = s.measurements[:n]
		s.dropped++
	}
	s.measurements = append(s.measurements, m)
	return nil
}

func (s *Store) HandleSummary(_ context.Context, sum protocol.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bursts) == s.maxBursts {
		n := copy(s.bursts, s.bursts[1:])
		s.bursts = s.bursts[:n]
	}
	s.bursts = append(s.bursts, sum)
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Measurements returns up to limit of the newest measurements, oldest
// first. curve < 0 selects every curve; limit <= 0 selects all.
func (s *Store) Measurements(limit, curve int) []protocol.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Measurement, 0, len(s.measurements))
	for _, m := range s.measurements {
		if curve >= 0 && m.Curve != curve {
			continue
		}
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Dropped is the number of measurements evicted by the capacity bound.
func (s *Store) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Bursts returns the stored summaries, oldest first.
func (s *Store) Bursts() []protocol.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.Summary(nil), s.bursts...)
}

// Burst finds a summary by ID.
func (s *Store) Burst(id string) (protocol.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.bursts) - 1; i >= 0; i-- {
		if s.bursts[i].ID == id {
			return s.bursts[i], true
		}
	}
	return protocol.Summary{}, false
}

// LatestBurst returns the most recent summary.
func (s *Store) LatestBurst() (protocol.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bursts) == 0 {
		return protocol.Summary{}, false
	}
	return s.bursts[len(s.bursts)-1], true
}
