package tobytes

// internFrame is one active intern table: the entries decoded so far,
// visible to later entries and to the table's body.
type internFrame struct {
	entries []Object
}

// internStack tracks the single intern frame a decode operation may
// have active at once. Spec §4.3: "at most one active
// frame per decoding path" — nesting a second table while one is active
// is a structural error, so unlike namespaceStack this is modeled as an
// optional single frame rather than a growable stack, with Push
// reporting the nesting violation itself rather than leaving it to the
// caller to notice len() > 1.
type internStack struct {
	frame *internFrame
}

// Push activates a new intern frame. It reports ok=false if a frame is
// already active (KindNestedInternTable, raised by the caller).
func (s *internStack) Push() (ok bool) {
	if s.frame != nil {
		return false
	}
	s.frame = &internFrame{}
	return true
}

// Pop deactivates the current frame.
func (s *internStack) Pop() {
	s.frame = nil
}

// Active reports whether an intern frame is currently active.
func (s *internStack) Active() bool {
	return s.frame != nil
}

// Append records a newly decoded entry in the active
// frame. The caller must check Active first.
func (s *internStack) Append(obj Object) {
	s.frame.entries = append(s.frame.entries, obj)
}

// Len reports how many entries are visible in the active frame. The
// caller must check Active first.
func (s *internStack) Len() int {
	return len(s.frame.entries)
}

// Resolve returns the entry bound at idx in the active frame. The caller
// must check Active first; ok is false if idx is out of range (a forward
// or out-of-bounds reference).
func (s *internStack) Resolve(idx uint64) (Object, bool) {
	if idx >= uint64(len(s.frame.entries)) {
		return nil, false
	}
	return s.frame.entries[idx], true
}
