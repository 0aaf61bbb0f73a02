package tobytes

// namespaceFrame is one active namespace-id binding: the (name, id) pair
// a 0x07 envelope bound for the lexical extent of its body.
type namespaceFrame struct {
	name string
	id   uint64
}

// namespaceStack is the properly-nested LIFO stack of namespace-id
// bindings active during one decode operation (spec §4.3). Inner frames
// shadow outer bindings of the same id; resolution always searches from
// the top (innermost) down, so the most recently pushed binding for a
// given id wins.
type namespaceStack struct {
	frames []namespaceFrame
}

// Push activates a new (name, id) binding.
func (s *namespaceStack) Push(name string, id uint64) {
	s.frames = append(s.frames, namespaceFrame{name: name, id: id})
}

// Pop deactivates the most recently pushed binding.
func (s *namespaceStack) Pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// ResolveID returns the namespace string bound to id by the innermost
// active frame that binds it. ok is false if no active frame binds id.
func (s *namespaceStack) ResolveID(id uint64) (name string, ok bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].id == id {
			return s.frames[i].name, true
		}
	}
	return "", false
}
