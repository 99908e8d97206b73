package safe_map

import "sync"

// SafeMap is a map guarded by a RWMutex.
type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SafeMap[K, V]) Load(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *SafeMap[K, V]) Store(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// LoadAndDelete removes key and returns the value it held, if any.
func (s *SafeMap[K, V]) LoadAndDelete(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	return v, ok
}

// Update replaces key's value with the result of fn, under the lock. fn
// receives the current value and whether it exists; returning keep == false
// deletes the key.
func (s *SafeMap[K, V]) Update(key K, fn func(value V, ok bool) (newValue V, keep bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.m[key]
	if v, keep := fn(old, ok); keep {
		s.m[key] = v
	} else {
		delete(s.m, key)
	}
}

func (s *SafeMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *SafeMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Range calls fn for a snapshot of the entries, outside the lock.
// Iteration stops when fn returns false.
func (s *SafeMap[K, V]) Range(fn func(key K, value V) bool) {
	s.mu.RLock()
	keys := make([]K, 0, len(s.m))
	values := make([]V, 0, len(s.m))
	for k, v := range s.m {
		keys = append(keys, k)
		values = append(values, v)
	}
	s.mu.RUnlock()

	for i := range keys {
		if !fn(keys[i], values[i]) {
			return
		}
	}
}

// Clear removes every entry.
func (s *SafeMap[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[K]V)
}
