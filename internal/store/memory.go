package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-etl/internal/weather"
)

// ErrNotFound is returned when no run has been recorded for a feed.
var ErrNotFound = errors.New("no runs recorded for feed")

// MemoryStore keeps recent run summaries per feed, newest first.
type MemoryStore struct {
	mu    sync.RWMutex
	feeds map[string][]weather.RunSummary

	maxRuns int
	maxAge  time.Duration
	now     func() time.Time
}

var _ weather.RunStore = (*MemoryStore)(nil)

// NewMemoryStore keeps at most maxRuns runs per feed, none older than maxAge.
// Zero disables either limit. The latest run of a feed is never dropped.
func NewMemoryStore(maxRuns int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		feeds:   make(map[string][]weather.RunSummary),
		maxRuns: maxRuns,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (s *MemoryStore) SaveRun(run weather.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := append([]weather.RunSummary{run}, s.feeds[run.Feed]...)
	s.feeds[run.Feed] = s.prune(runs)
}

// prune trims a newest-first history. Runs of one feed never overlap, so
// StartedAt is descending and the age cutoff is a binary search.
func (s *MemoryStore) prune(runs []weather.RunSummary) []weather.RunSummary {
	if s.maxRuns > 0 && len(runs) > s.maxRuns {
		runs = runs[:s.maxRuns]
	}
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		keep := sort.Search(len(runs), func(i int) bool {
			return runs[i].StartedAt.Before(cutoff)
		})
		runs = runs[:max(keep, 1)]
	}
	return runs
}

func (s *MemoryStore) LatestRun(feed string) (weather.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.feeds[feed]
	if len(runs) == 0 {
		return weather.RunSummary{}, ErrNotFound
	}
	return runs[0], nil
}

// ListRuns returns up to limit runs of feed, newest first; limit <= 0 means
// all of them.
func (s *MemoryStore) ListRuns(feed string, limit int) ([]weather.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.feeds[feed]
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return append([]weather.RunSummary(nil), runs...), nil
}
