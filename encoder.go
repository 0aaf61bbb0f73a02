package tobytes

import (
	"context"
	"sort"

	"golang.org/x/xerrors"

	"github.com/stestagg/tobytes/internal/wire"
)

const defaultNamespaceIDThreshold = 2

// Heuristic constants for the interning cost model (spec Design Note:
// "intern when byte cost of entries[i] x (occurrences-1) > cost of one
// reference x occurrences + table overhead"). internRefCost approximates
// the wire cost of one ext 0x06 reference envelope (fixext1 header + a
// one-byte fixint index, for the common case); internTableOverhead
// approximates the one-time ext 0x06 table envelope header cost, which
// is amortized across every qualifying group in the same message.
const (
	internRefCost       = 3
	internTableOverhead = 6
)

// EncodeOptions configures the encoder's optional interning and
// namespace-id substitution passes (spec §4.5, §4.6). The zero value
// disables both, producing plain pass-through msgpack for any message
// that uses no custom types.
type EncodeOptions struct {
	// EnableInterning turns on the intern-table pre-pass. Candidates are
	// gated by a cost-model heuristic, so enabling it never forces an
	// entry that would cost more than emitting the value inline.
	EnableInterning bool

	// InternEquality overrides the default structural-equality predicate
	// used to group interning candidates. Defaults to
	// [DefaultInternEquality] when nil.
	InternEquality func(a, b Object) bool

	// EnableNamespaceIDSubstitution turns on the ext 0x07 wrapping
	// pre-pass for namespaces used by several Custom values in the same
	// message.
	EnableNamespaceIDSubstitution bool

	// NamespaceIDThreshold is the minimum number of Custom-value
	// occurrences of a namespace within one Encode call before the
	// encoder bothers wrapping it in a namespace-id binding. Zero uses
	// the default of 2 (break-even point for the shortest possible
	// namespace string and a one-byte fixint id).
	NamespaceIDThreshold int
}

// Encode serializes obj into a tobytes message. reg resolves any [Custom]
// values encountered; opts controls the optional interning and
// namespace-id substitution passes.
func Encode(obj Object, reg *Registry, opts EncodeOptions) ([]byte, error) {
	return encode(nil, obj, reg, opts)
}

// EncodeContext is Encode with cancellation: ctx.Err() is checked
// between top-level value boundaries (array/map elements, intern
// entries) and, if non-nil, aborts the encode with KindCancelled. A
// [Custom] value's own payload is produced by its registered codec
// through an [Engine] call that does not carry ctx, so cancellation
// inside a nested tobytes message is not observed by the outer call.
func EncodeContext(ctx context.Context, obj Object, reg *Registry, opts EncodeOptions) ([]byte, error) {
	return encode(ctx, obj, reg, opts)
}

func encode(ctx context.Context, obj Object, reg *Registry, opts EncodeOptions) ([]byte, error) {
	st := newEncodeState(reg, opts)
	st.ctx = ctx
	if err := st.prepare(obj); err != nil {
		return nil, err
	}

	w := wire.NewWriter()
	if err := st.emitTop(w, obj); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// internGroup is one set of structurally-equal (under encodeState.eq)
// interning candidates found during the pre-pass.
type internGroup struct {
	sample    Object
	count     int
	firstSeen int
	index     int // assigned entries[] position, valid once qualifying
}

type encodeState struct {
	reg  *Registry
	opts EncodeOptions
	eq   func(a, b Object) bool

	nsCounts map[string]int
	nsOrder  []string
	nsActive map[string]uint64 // namespace -> assigned ext 0x07 id, qualifying namespaces only

	groups       []*internGroup
	activeGroups []*internGroup // qualifying groups, in assigned-index order

	emitPath map[any]bool // *Array/*Map pointers on the current emission path, cycle guard

	ctx context.Context // nil unless reached through EncodeContext
}

// checkCancel reports whether e.ctx (if any) has been canceled.
func (e *encodeState) checkCancel() error {
	if e.ctx == nil {
		return nil
	}
	select {
	case <-e.ctx.Done():
		return newError(KindCancelled, e.ctx.Err())
	default:
		return nil
	}
}

func newEncodeState(reg *Registry, opts EncodeOptions) *encodeState {
	eq := opts.InternEquality
	if eq == nil {
		eq = DefaultInternEquality
	}
	return &encodeState{
		reg:      reg,
		opts:     opts,
		eq:       eq,
		nsCounts: make(map[string]int),
		nsActive: make(map[string]uint64),
		emitPath: make(map[any]bool),
	}
}

// prepare runs the namespace-counting and interning-candidate pre-passes
// over obj, deciding which namespaces get an ext 0x07 binding and which
// subtrees become ext 0x06 table entries. It also detects a
// self-referential *Array/*Map built directly with Go pointers (the
// encoder's interning eligibility graph has a cycle) and fails fast with
// KindCyclicInternGraph rather than recursing forever.
func (e *encodeState) prepare(obj Object) error {
	if err := e.walk(obj, make(map[any]bool)); err != nil {
		return err
	}

	if e.opts.EnableNamespaceIDSubstitution {
		threshold := e.opts.NamespaceIDThreshold
		if threshold <= 0 {
			threshold = defaultNamespaceIDThreshold
		}
		for _, ns := range e.nsOrder {
			if e.nsCounts[ns] >= threshold {
				e.nsActive[ns] = uint64(len(e.nsActive))
			}
		}
	}

	if e.opts.EnableInterning {
		qualifying := make([]*internGroup, 0, len(e.groups))
		for _, g := range e.groups {
			if e.qualifies(g) {
				qualifying = append(qualifying, g)
			}
		}
		sort.SliceStable(qualifying, func(i, j int) bool {
			return qualifying[i].firstSeen < qualifying[j].firstSeen
		})
		e.activeGroups = e.orderByDependency(qualifying)
		for i, g := range e.activeGroups {
			g.index = i
		}
	}

	return nil
}

// walk records namespace occurrences and interning candidates. It never
// descends into a Custom value's payload: that value is opaque to these
// optimizations once handed to its codec. path tracks *Array/*Map
// pointers on the current branch so a genuine pointer cycle is reported
// as KindCyclicInternGraph instead of recursing until the stack overflows.
func (e *encodeState) walk(obj Object, path map[any]bool) error {
	switch v := obj.(type) {
	case *Array:
		if path[obj] {
			return newError(KindCyclicInternGraph, nil)
		}
		path[obj] = true
		defer delete(path, obj)

		if e.opts.EnableInterning {
			e.noteCandidate(obj)
		}
		for _, it := range v.Items {
			if err := e.checkCancel(); err != nil {
				return err
			}
			if err := e.walk(it, path); err != nil {
				return err
			}
		}
	case *Map:
		if path[obj] {
			return newError(KindCyclicInternGraph, nil)
		}
		path[obj] = true
		defer delete(path, obj)

		if e.opts.EnableInterning {
			e.noteCandidate(obj)
		}
		for _, p := range v.Pairs {
			if err := e.checkCancel(); err != nil {
				return err
			}
			if err := e.walk(p.Key, path); err != nil {
				return err
			}
			if err := e.walk(p.Value, path); err != nil {
				return err
			}
		}
	case string:
		if e.opts.EnableInterning && len(v) > 0 {
			e.noteCandidate(obj)
		}
	case []byte:
		if e.opts.EnableInterning && len(v) > 0 {
			e.noteCandidate(obj)
		}
	case Custom:
		e.noteNamespace(v.Namespace)
	case OpaqueRaw:
		if !v.HasRawNamespaceID {
			e.noteNamespace(v.Namespace)
		}
	}
	return nil
}

func (e *encodeState) noteNamespace(ns string) {
	if _, ok := e.nsCounts[ns]; !ok {
		e.nsOrder = append(e.nsOrder, ns)
	}
	e.nsCounts[ns]++
}

func (e *encodeState) noteCandidate(obj Object) {
	for _, g := range e.groups {
		if e.eq(g.sample, obj) {
			g.count++
			return
		}
	}
	e.groups = append(e.groups, &internGroup{sample: obj, count: 1, firstSeen: len(e.groups)})
}

// groupDependencies returns the qualifying groups that obj's sample
// nests and would itself be replaced by an ext 0x06 reference to, were
// obj emitted as an entries[] representative. It mirrors the real
// emission walk in encodeValue: once a subtree matches a qualifying
// group, that subtree is emitted as a bare reference and its own
// children are never visited, so containment stops there too.
func (e *encodeState) groupDependencies(obj Object, qualifying []*internGroup) []*internGroup {
	var deps []*internGroup
	seen := make(map[*internGroup]bool)

	var walk func(Object)
	walk = func(o Object) {
		for _, g := range qualifying {
			if e.eq(g.sample, o) {
				if !seen[g] {
					seen[g] = true
					deps = append(deps, g)
				}
				return
			}
		}
		switch v := o.(type) {
		case *Array:
			for _, it := range v.Items {
				walk(it)
			}
		case *Map:
			for _, p := range v.Pairs {
				walk(p.Key)
				walk(p.Value)
			}
		}
	}

	switch v := obj.(type) {
	case *Array:
		for _, it := range v.Items {
			walk(it)
		}
	case *Map:
		for _, p := range v.Pairs {
			walk(p.Key)
			walk(p.Value)
		}
	}
	return deps
}

// orderByDependency returns qualifying reordered so that every group
// appears after the groups its own sample would reference (entries may
// only reference strictly earlier entries). The input order is used as
// the tiebreak among groups with no dependency relation to one another.
// Cycles cannot occur here: a true cyclic object graph is already
// rejected by walk's pointer-identity guard before this runs.
func (e *encodeState) orderByDependency(qualifying []*internGroup) []*internGroup {
	deps := make(map[*internGroup][]*internGroup, len(qualifying))
	for _, g := range qualifying {
		deps[g] = e.groupDependencies(g.sample, qualifying)
	}

	order := make([]*internGroup, 0, len(qualifying))
	state := make(map[*internGroup]bool, len(qualifying))
	var visit func(g *internGroup)
	visit = func(g *internGroup) {
		if state[g] {
			return
		}
		state[g] = true
		for _, dep := range deps[g] {
			visit(dep)
		}
		order = append(order, g)
	}
	for _, g := range qualifying {
		visit(g)
	}
	return order
}

func (e *encodeState) qualifies(g *internGroup) bool {
	if g.count < 2 {
		return false
	}
	cb, err := internCanonicalBytes(g.sample)
	if err != nil {
		return false
	}
	entryCost := len(cb)
	return entryCost*(g.count-1) > internRefCost*g.count+internTableOverhead
}

func (e *encodeState) matchActiveGroup(obj Object) (*internGroup, bool) {
	switch obj.(type) {
	case *Array, *Map, string, []byte:
	default:
		return nil, false
	}
	for _, g := range e.activeGroups {
		if e.eq(g.sample, obj) {
			return g, true
		}
	}
	return nil, false
}

func (e *encodeState) qualifyingNamespacesInOrder() []string {
	out := make([]string, len(e.nsActive))
	for ns, id := range e.nsActive {
		out[id] = ns
	}
	return out
}

// emitTop wraps obj in namespace-id frames (outermost) and then an intern
// table (innermost, if any groups qualified), before emitting the value
// itself.
func (e *encodeState) emitTop(w *wire.Writer, obj Object) error {
	return e.emitNamespaceFrames(w, e.qualifyingNamespacesInOrder(), 0, obj)
}

func (e *encodeState) emitNamespaceFrames(w *wire.Writer, namespaces []string, i int, obj Object) error {
	if i >= len(namespaces) {
		return e.emitInternFrame(w, obj)
	}

	ns := namespaces[i]
	id := e.nsActive[ns]

	payload := wire.NewWriter()
	payload.WriteStr(ns)
	payload.WriteUint(id)
	if err := e.emitNamespaceFrames(payload, namespaces, i+1, obj); err != nil {
		return err
	}
	w.WriteExt(extNamespace, payload.Bytes())
	return nil
}

func (e *encodeState) emitInternFrame(w *wire.Writer, obj Object) error {
	if len(e.activeGroups) == 0 {
		return e.encodeValue(w, obj, false)
	}

	payload := wire.NewWriter()
	payload.WriteArrayHeader(len(e.activeGroups))
	for _, g := range e.activeGroups {
		if err := e.checkCancel(); err != nil {
			return err
		}
		if err := e.encodeValue(payload, g.sample, true); err != nil {
			return err
		}
	}
	if err := e.encodeValue(payload, obj, false); err != nil {
		return err
	}
	w.WriteExt(extIntern, payload.Bytes())
	return nil
}

// encodeValue emits obj, substituting an ext 0x06 reference for any
// subtree matching a qualifying intern group — except at isEntryRoot,
// which is true only for the single top-level call building a group's
// own entries[] representative, so that representative is never replaced
// by a reference to itself.
func (e *encodeState) encodeValue(w *wire.Writer, obj Object, isEntryRoot bool) error {
	if len(e.activeGroups) > 0 && !isEntryRoot {
		if g, ok := e.matchActiveGroup(obj); ok {
			pw := wire.NewWriter()
			pw.WriteUint(uint64(g.index))
			w.WriteExt(extIntern, pw.Bytes())
			return nil
		}
	}
	return e.encodeRaw(w, obj)
}

func (e *encodeState) encodeRaw(w *wire.Writer, obj Object) error {
	switch v := obj.(type) {
	case nil:
		w.WriteNil()
	case bool:
		w.WriteBool(v)
	case int:
		w.WriteInt(int64(v))
	case int64:
		w.WriteInt(v)
	case uint64:
		w.WriteUint(v)
	case float32:
		w.WriteFloat32(v)
	case float64:
		w.WriteFloat64(v)
	case string:
		w.WriteStr(v)
	case []byte:
		w.WriteBin(v)
	case *Array:
		if e.emitPath[obj] {
			return newError(KindCyclicInternGraph, nil)
		}
		e.emitPath[obj] = true
		defer delete(e.emitPath, obj)

		w.WriteArrayHeader(len(v.Items))
		for _, it := range v.Items {
			if err := e.checkCancel(); err != nil {
				return err
			}
			if err := e.encodeValue(w, it, false); err != nil {
				return err
			}
		}
	case *Map:
		if e.emitPath[obj] {
			return newError(KindCyclicInternGraph, nil)
		}
		e.emitPath[obj] = true
		defer delete(e.emitPath, obj)

		w.WriteMapHeader(len(v.Pairs))
		for _, p := range v.Pairs {
			if err := e.checkCancel(); err != nil {
				return err
			}
			if err := e.encodeValue(w, p.Key, false); err != nil {
				return err
			}
			if err := e.encodeValue(w, p.Value, false); err != nil {
				return err
			}
		}
	case Custom:
		return e.encodeCustom(w, v)
	case OpaqueRaw:
		return e.encodeOpaqueRaw(w, v)
	default:
		return newError(KindInvalid, xerrors.Errorf("tobytes: encode: unsupported object type %T", obj))
	}
	return nil
}

func (e *encodeState) encodeCustom(w *wire.Writer, c Custom) error {
	codec, ok := e.reg.Lookup(c.Namespace, c.TypeID)
	if !ok {
		return newRegistryError(KindUnregisteredType, c.Namespace, c.TypeID, nil)
	}

	eng := &engine{reg: e.reg, opts: e.opts}
	payload, err := codec.Encode(eng, c.Value)
	if err != nil {
		return newRegistryError(KindCodecFault, c.Namespace, c.TypeID, err)
	}

	payloadW := wire.NewWriter()
	if id, ok := e.nsActive[c.Namespace]; ok {
		payloadW.WriteUint(id)
	} else {
		payloadW.WriteStr(c.Namespace)
	}
	payloadW.WriteUint(c.TypeID)
	payloadW.WriteBin(payload)
	w.WriteExt(extCustom, payloadW.Bytes())
	return nil
}

func (e *encodeState) encodeOpaqueRaw(w *wire.Writer, o OpaqueRaw) error {
	payloadW := wire.NewWriter()
	if o.HasRawNamespaceID {
		payloadW.WriteUint(o.RawNamespaceID)
	} else {
		payloadW.WriteStr(o.Namespace)
	}
	payloadW.WriteUint(o.TypeID)
	payloadW.WriteBin(o.Bytes)
	w.WriteExt(extCustom, payloadW.Bytes())
	return nil
}

// DefaultInternEquality is the default interning-candidate equality
// predicate: structural equality of each value's canonical msgpack
// encoding. Map key order does not affect equality under this predicate
// — pairs are compared after sorting by their own canonical key bytes
// (Design Note, Open Question (c)) — even though actual wire emission
// always preserves a [Map]'s original Pairs order, so interning two
// content-equal maps written in different key order is intentional and
// collapses them to one shared entry.
func DefaultInternEquality(a, b Object) bool {
	ab, aerr := internCanonicalBytes(a)
	bb, berr := internCanonicalBytes(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(ab) == string(bb)
}

func internCanonicalBytes(obj Object) ([]byte, error) {
	w := wire.NewWriter()
	if err := encodeCanonical(w, obj); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// encodeCanonical writes obj's plain msgpack encoding for the sole
// purpose of intern-equality comparison: interning and namespace
// substitution never apply here, and *Map pairs are reordered by their
// own canonical key bytes rather than their original Pairs order.
func encodeCanonical(w *wire.Writer, obj Object) error {
	switch v := obj.(type) {
	case nil:
		w.WriteNil()
	case bool:
		w.WriteBool(v)
	case int:
		w.WriteInt(int64(v))
	case int64:
		w.WriteInt(v)
	case uint64:
		w.WriteUint(v)
	case float32:
		w.WriteFloat32(v)
	case float64:
		w.WriteFloat64(v)
	case string:
		w.WriteStr(v)
	case []byte:
		w.WriteBin(v)
	case *Array:
		w.WriteArrayHeader(len(v.Items))
		for _, it := range v.Items {
			if err := encodeCanonical(w, it); err != nil {
				return err
			}
		}
	case *Map:
		return encodeCanonicalMap(w, v)
	case Custom:
		// Opaque to canonicalization: a Custom value's wire form depends
		// on invoking its codec, which this function cannot do without
		// an Engine. A caller wanting Custom values to participate in
		// interning should supply its own EncodeOptions.InternEquality.
		return newError(KindInvalid, xerrors.New("tobytes: custom values are not canonicalizable for default interning"))
	case OpaqueRaw:
		return newError(KindInvalid, xerrors.New("tobytes: opaque raw values are not canonicalizable for default interning"))
	default:
		return newError(KindInvalid, xerrors.Errorf("tobytes: encode: unsupported object type %T", obj))
	}
	return nil
}

func encodeCanonicalMap(w *wire.Writer, m *Map) error {
	type kv struct {
		key, val Object
		keyBytes []byte
	}
	pairs := make([]kv, len(m.Pairs))
	for i, p := range m.Pairs {
		kb, err := internCanonicalBytes(p.Key)
		if err != nil {
			return err
		}
		pairs[i] = kv{key: p.Key, val: p.Value, keyBytes: kb}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return string(pairs[i].keyBytes) < string(pairs[j].keyBytes)
	})

	w.WriteMapHeader(len(pairs))
	for _, p := range pairs {
		if err := encodeCanonical(w, p.key); err != nil {
			return err
		}
		if err := encodeCanonical(w, p.val); err != nil {
			return err
		}
	}
	return nil
}
