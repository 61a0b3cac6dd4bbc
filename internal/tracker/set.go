package tracker

import "sync"

// contribution is the most recent seeders/leechers reported by one tracker.
type contribution struct {
	seeders  int
	leechers int
}

// Set aggregates per-tracker swarm counts into swarm-wide totals. On every
// update from a tracker, its previous contribution is subtracted before
// the new one is added, so re-announcing trackers are never double-counted
// and a removed tracker leaves no counts behind. A tracker that stops
// reporting keeps its last contribution until it is updated or removed.
type Set struct {
	mu            sync.Mutex
	contributions map[string]contribution
	seeders       int
	leechers      int
}

// NewSet returns an empty aggregation set.
func NewSet() *Set {
	return &Set{contributions: make(map[string]contribution)}
}

// Update replaces url's contribution with (seeders, leechers) and returns
// the new swarm-wide totals.
func (s *Set) Update(url string, seeders, leechers int) (totalSeeders, totalLeechers int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.contributions[url]; ok {
		s.seeders -= prev.seeders
		s.leechers -= prev.leechers
	}
	s.contributions[url] = contribution{seeders: seeders, leechers: leechers}
	s.seeders += seeders
	s.leechers += leechers
	return s.seeders, s.leechers
}

// Remove drops url's contribution entirely, e.g. when a tracker is
// permanently stopped.
func (s *Set) Remove(url string) (totalSeeders, totalLeechers int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.contributions[url]; ok {
		s.seeders -= prev.seeders
		s.leechers -= prev.leechers
		delete(s.contributions, url)
	}
	return s.seeders, s.leechers
}

// Totals returns the current swarm-wide seeders/leechers.
func (s *Set) Totals() (seeders, leechers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeders, s.leechers
}
