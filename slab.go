package asqlite

// slab is a slot map: values get stable small integer keys, and freed slots
// are reused in LIFO order. Both the task registry and the connection pool
// identify their entries by slab key.
type slab[T any] struct {
	entries []slabEntry[T]
	free    []int
	count   int
}

type slabEntry[T any] struct {
	value    T
	occupied bool
}

// insert stores v and returns its key.
func (s *slab[T]) insert(v T) int {
	s.count++
	if n := len(s.free); n > 0 {
		key := s.free[n-1]
		s.free = s.free[:n-1]
		s.entries[key] = slabEntry[T]{value: v, occupied: true}
		return key
	}
	s.entries = append(s.entries, slabEntry[T]{value: v, occupied: true})
	return len(s.entries) - 1
}

// get returns the value stored under key, if any.
func (s *slab[T]) get(key int) (T, bool) {
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		var zero T
		return zero, false
	}
	return s.entries[key].value, true
}

// remove frees the slot under key and returns its value, if any.
func (s *slab[T]) remove(key int) (T, bool) {
	var zero T
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		return zero, false
	}
	v := s.entries[key].value
	s.entries[key] = slabEntry[T]{}
	s.free = append(s.free, key)
	s.count--
	return v, true
}

// len reports the number of occupied slots.
func (s *slab[T]) len() int { return s.count }

// drain removes and returns every stored value.
func (s *slab[T]) drain() []T {
	out := make([]T, 0, s.count)
	for i := range s.entries {
		if s.entries[i].occupied {
			out = append(out, s.entries[i].value)
			s.entries[i] = slabEntry[T]{}
			s.free = append(s.free, i)
		}
	}
	s.count = 0
	return out
}
