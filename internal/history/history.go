// Package history keeps the last fully decoded record list per device. Short
// frames only carry values and are rebuilt from this layout.
package history

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/qvest-digital/jmbus/internal/records"
)

// DefaultSize bounds the number of devices kept when New is given size <= 0.
const DefaultSize = 1024

// Store is a bounded device history. Entries are evicted by device count (least
// recently used first) and, when a TTL is configured, by age.
//
// Operations on the same key are serialized; different keys never share a lock.
type Store struct {
	cache *expirable.LRU[string, []records.Record]

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// New creates a store holding at most size devices for at most ttl. A ttl of
// zero or less disables expiry.
func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Store{
		cache: expirable.NewLRU[string, []records.Record](size, nil, ttl),
		locks: make(map[string]*keyLock),
	}
}

// Get returns a copy of the records stored for key.
func (s *Store) Get(key string) ([]records.Record, bool) {
	unlock := s.lock(key)
	defer unlock()
	recs, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	return clone(recs), true
}

// Put replaces the records stored for key with a copy of recs.
func (s *Store) Put(key string, recs []records.Record) {
	unlock := s.lock(key)
	defer unlock()
	s.cache.Add(key, clone(recs))
}

// Update runs fn with the current entry for key while holding the key's lock
// and stores its result. prev is a copy and may be modified by fn. When fn
// returns an error or a nil slice the entry is left unchanged.
func (s *Store) Update(key string, fn func(prev []records.Record, ok bool) ([]records.Record, error)) error {
	unlock := s.lock(key)
	defer unlock()
	prev, ok := s.cache.Get(key)
	next, err := fn(clone(prev), ok)
	if err != nil || next == nil {
		return err
	}
	s.cache.Add(key, clone(next))
	return nil
}

// Len reports the number of devices currently held.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Purge drops every entry.
func (s *Store) Purge() {
	s.cache.Purge()
}

func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func clone(recs []records.Record) []records.Record {
	if recs == nil {
		return nil
	}
	out := make([]records.Record, len(recs))
	for i, r := range recs {
		out[i] = cloneRecord(r)
	}
	return out
}

func cloneRecord(r records.Record) records.Record {
	r.DIB = append([]byte(nil), r.DIB...)
	r.VIB = append([]byte(nil), r.VIB...)
	r.Raw = append([]byte(nil), r.Raw...)
	if b, ok := r.Value.([]byte); ok {
		r.Value = append([]byte(nil), b...)
	}
	return r
}
