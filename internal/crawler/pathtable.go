package crawler

import "sync"

// PathTable maps canonical absolute URLs to their mapped paths.
//
// Insertion is the single point that decides whether a URL is new, so the
// table exposes no separate "contains then insert" pair. Entries are never
// removed during a run.
type PathTable struct {
	mu    sync.Mutex
	paths map[string]string
}

// NewPathTable creates an empty table.
func NewPathTable() *PathTable {
	return &PathTable{paths: make(map[string]string)}
}

// InsertIfAbsent records path for url unless url is already present.
// It reports whether this call inserted the entry.
func (t *PathTable) InsertIfAbsent(url, path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.paths[url]; ok {
		return false
	}
	t.paths[url] = path
	return true
}

// Get returns the path recorded for url.
func (t *PathTable) Get(url string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.paths[url]
	return p, ok
}

// Len returns the number of recorded URLs.
func (t *PathTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.paths)
}

// VisitedSet records URLs whose fetch attempt has completed, successfully
// or not. It is only used for progress reporting.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Add marks url as visited and returns the new size of the set.
func (s *VisitedSet) Add(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls[url] = struct{}{}
	return len(s.urls)
}

// Contains reports whether url was visited.
func (s *VisitedSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.urls[url]
	return ok
}

// Len returns the number of visited URLs.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
