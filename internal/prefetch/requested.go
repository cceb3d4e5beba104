package prefetch

// RequestedSet remembers which chunks were already requested in a session.
// Keys are the exact chunk text. It is not safe for concurrent use on its own;
// Coordinator guards it.
type RequestedSet struct {
	chunks map[string]struct{}
}

// NewRequestedSet returns an empty set.
func NewRequestedSet() *RequestedSet {
	return &RequestedSet{chunks: make(map[string]struct{})}
}

// TryClaim records chunk and reports whether this was its first claim.
func (s *RequestedSet) TryClaim(chunk string) bool {
	if _, seen := s.chunks[chunk]; seen {
		return false
	}
	s.chunks[chunk] = struct{}{}
	return true
}

// Forget drops chunk so the next TryClaim succeeds again.
func (s *RequestedSet) Forget(chunk string) {
	delete(s.chunks, chunk)
}

// Reset forgets every chunk.
func (s *RequestedSet) Reset() {
	s.chunks = make(map[string]struct{})
}

// Len returns the number of claimed chunks.
func (s *RequestedSet) Len() int {
	return len(s.chunks)
}
