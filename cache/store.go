package cache

import (
	"container/list"
	"sort"
	"sync"
)

// Store is a bounded map from key to Entry with an order index used for
// eviction. Every key in the map has exactly one element in the order list.
//
// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	items   map[string]*list.Element // value is *Entry
	order   *list.List               // front is evicted first
	evictor *Evictor
}

// NewStore creates an empty store. A nil evictor uses DefaultPolicy bounds.
func NewStore(evictor *Evictor) *Store {
	if evictor == nil {
		evictor = NewEvictor(DefaultPolicy())
	}
	return &Store{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		evictor: evictor,
	}
}

// Evictor returns the store's evictor.
func (s *Store) Evictor() *Evictor { return s.evictor }

// Get returns a copy of the live entry for key. An expired entry is removed
// and reported absent.
func (s *Store) Get(key string) (Entry, bool) {
	return s.lookup(key, false)
}

// Hit is Get plus a hit increment in the same critical section. Under the
// LRU policy the entry also moves to the most recent position.
func (s *Store) Hit(key string) (Entry, bool) {
	return s.lookup(key, true)
}

func (s *Store) lookup(key string, hit bool) (Entry, bool) {
	s.mu.Lock()
	el, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return Entry{}, false
	}

	entry := el.Value.(*Entry)
	if s.evictor.Expired(*entry, s.evictor.now()) {
		s.removeElement(el)
		s.mu.Unlock()
		s.evictor.notify([]eviction{{key: key, reason: EvictExpired}})
		return Entry{}, false
	}

	if hit {
		entry.Hits++
		if s.evictor.Policy == EvictLRU {
			s.order.MoveToBack(el)
		}
	}
	out := *entry
	s.mu.Unlock()
	return out, true
}

// Put inserts or replaces entry. Capacity eviction runs before the insert,
// so Len never exceeds MaxEntries. A replaced key moves to the back.
func (s *Store) Put(entry Entry) {
	s.mu.Lock()
	evicted := s.insert(entry)
	s.mu.Unlock()
	s.evictor.notify(evicted)
}

func (s *Store) insert(entry Entry) []eviction {
	if el, ok := s.items[entry.Key]; ok {
		s.removeElement(el)
	}

	var evicted []eviction
	for s.evictor.full(s.order.Len()) {
		front := s.order.Front()
		if front == nil {
			break
		}
		key := front.Value.(*Entry).Key
		s.removeElement(front)
		evicted = append(evicted, eviction{key: key, reason: EvictCapacity})
	}

	e := entry
	s.items[e.Key] = s.order.PushBack(&e)
	return evicted
}

func (s *Store) removeElement(el *list.Element) {
	delete(s.items, el.Value.(*Entry).Key)
	s.order.Remove(el)
}

// Delete removes key. It reports whether an entry was removed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeElement(el)
	return true
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.order.Len()
	s.items = make(map[string]*list.Element)
	s.order.Init()
	return n
}

// Len returns the number of entries, including expired entries not yet
// looked up.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Entries returns copies of all entries in eviction order, front first.
// It does not expire anything.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Entry))
	}
	return out
}

// Restore replaces the contents with entries, given front first as
// Entries returns them. Under LRU the given order is the recency order and
// is kept. Under FIFO entries are put in Timestamp order when they are not
// already. Expired entries and entries with invalid keys are dropped, and
// the capacity bound is applied. It returns the number of entries kept.
// Restore does not call OnEvict.
func (s *Store) Restore(entries []Entry) int {
	sorted := make([]Entry, 0, len(entries))
	now := s.evictor.now()
	for _, e := range entries {
		if ValidateKey(e.Key) != nil || s.evictor.Expired(e, now) {
			continue
		}
		sorted = append(sorted, e)
	}
	byTime := func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	}
	if s.evictor.Policy == EvictFIFO && !sort.SliceIsSorted(sorted, byTime) {
		sort.SliceStable(sorted, byTime)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element, len(sorted))
	s.order.Init()
	for _, e := range sorted {
		if e.Size == 0 {
			e.Size = len(e.Response)
		}
		s.insert(e)
	}
	return s.order.Len()
}
