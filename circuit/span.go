package circuit

import "sync"

// Span names a contiguous block of circuits belonging to one driver/trunk
// and is owned by a Group. It exists purely for bulk administrative
// operations: removing a span removes every circuit that was inserted
// under it.
type Span struct {
	ID string

	mu    sync.Mutex
	group *Group
	codes map[uint32]struct{}
}

// NewSpan creates a span and registers it with g.
func NewSpan(id string, g *Group) *Span {
	s := &Span{ID: id, group: g, codes: map[uint32]struct{}{}}
	if g != nil {
		g.insertSpan(s)
	}
	return s
}

func (s *Span) addCode(code uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = struct{}{}
}

func (s *Span) removeCode(code uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
}

// Codes returns the local circuit codes currently registered under this span.
func (s *Span) Codes() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	return out
}

// Close requests removal of this span from its group, deleting the circuits
// it owns. Close is the explicit terminal call for a span, so it also drops
// the span itself from the group rather than leaving an empty placeholder.
func (s *Span) Close() {
	s.mu.Lock()
	g := s.group
	s.group = nil
	s.mu.Unlock()
	if g != nil {
		g.RemoveSpan(s, true, true)
	}
}
