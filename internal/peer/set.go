package peer

import "sync"

// Set is the torrent's collection of currently connected peers, keyed
// injectively by peer identifier. All methods are safe for concurrent
// use, though the coordinator itself only ever touches the set from its
// single logical execution context.
type Set struct {
	mu    sync.RWMutex
	peers map[ID]*Peer
}

// NewSet returns an empty peer set.
func NewSet() *Set {
	return &Set{peers: make(map[ID]*Peer)}
}

// Add inserts p, keyed by its ID. Adding an already-known peer (by ID) is
// a no-op and returns false, so that peer admission stays idempotent.
func (s *Set) Add(p *Peer) (added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[p.ID()]; ok {
		return false
	}
	s.peers[p.ID()] = p
	return true
}

// Remove deletes the peer with the given ID, if present.
func (s *Set) Remove(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

// Get returns the peer with the given ID, or nil if not present.
func (s *Set) Get(id ID) *Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[id]
}

// Has reports whether a peer with the given ID is present.
func (s *Set) Has(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.peers[id]
	return ok
}

// Len returns the number of connected peers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// List returns a snapshot slice of all connected peers.
func (s *Set) List() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Each calls fn for every connected peer. fn must not mutate the set.
func (s *Set) Each(fn func(*Peer)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.peers {
		fn(p)
	}
}
