package set

type (
	// Ordered is a set that remembers insertion order.
	// Zero value is an empty set ready to use.
	Ordered[K comparable] struct {
		keys []K
		idx  map[K]int
	}
)

// Set adds k and reports whether it was not there before.
func (s *Ordered[K]) Set(k K) bool {
	if _, ok := s.idx[k]; ok {
		return false
	}

	if s.idx == nil {
		s.idx = make(map[K]int)
	}

	s.idx[k] = len(s.keys)
	s.keys = append(s.keys, k)

	return true
}

func (s Ordered[K]) IsSet(k K) bool {
	_, ok := s.idx[k]
	return ok
}

// Keys returns a copy of keys in insertion order.
func (s Ordered[K]) Keys() []K {
	if len(s.keys) == 0 {
		return nil
	}

	return append([]K(nil), s.keys...)
}
