package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i292847/bike-trip-aggregation/internal/aggregate"
)

var (
	// ErrNotFound is returned when no pipeline run matches the request.
	ErrNotFound = errors.New("no pipeline run available")
)

// Run is the persisted outcome of one pipeline execution.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Rows skipped while parsing the raw inputs, before any join.
	SkippedTripRows    int `json:"skipped_trip_rows"`
	SkippedWeatherRows int `json:"skipped_weather_rows"`

	Stats aggregate.Stats `json:"stats"`
	Rows  []aggregate.Row `json:"-"`
}

// RowCount returns the number of output rows in this run.
func (r Run) RowCount() int {
	return len(r.Rows)
}

// MemoryStore is a concurrency-safe in-memory store of pipeline runs.
type MemoryStore struct {
	mu sync.RWMutex

	// Oldest first; the newest run is the last element.
	runs []Run

	// maxHistory caps retained runs; <= 0 means unlimited.
	maxHistory int
}

// NewMemoryStore creates a MemoryStore with an optional retention cap.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{maxHistory: maxHistory}
}

// SaveRun appends a run and enforces retention.
func (s *MemoryStore) SaveRun(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, run)

	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = s.runs[over:]
	}
}

// Latest returns the most recent run.
func (s *MemoryStore) Latest() (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return Run{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// Get returns the run with the given ID.
func (s *MemoryStore) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].ID == id {
			return s.runs[i], nil
		}
	}
	return Run{}, ErrNotFound
}

// Len returns the number of retained runs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
