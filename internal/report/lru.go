package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used reports in memory and delegates
// to a backing Store on miss.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // front is most recent; values are *Report
	items map[string]*list.Element
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity must be >= 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches the report and writes it to the backing store.
func (s *LRUStore) Save(r *Report) error {
	s.put(r)
	return s.back.Save(r)
}

// Load checks the cache first. On miss, loads from the backing store
// and promotes the report into the cache.
func (s *LRUStore) Load(id string) (*Report, error) {
	s.mu.Lock()
	if e, ok := s.items[id]; ok {
		s.order.MoveToFront(e)
		r := e.Value.(*Report)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	r, err := s.back.Load(id)
	if err != nil {
		return nil, err
	}
	s.put(r)
	return r, nil
}

func (s *LRUStore) put(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[r.ID]; ok {
		e.Value = r
		s.order.MoveToFront(e)
		return
	}
	s.items[r.ID] = s.order.PushFront(r)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*Report).ID)
	}
}
