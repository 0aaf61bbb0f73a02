package tobytes

import "reflect"

// Object is the logical value a tobytes user works with after decoding, or
// supplies before encoding. It is deliberately just `any`: the concrete
// cases are the msgpack primitives (nil, bool, int64, uint64, float32,
// float64, string, []byte), the two containers ([*Array] and [*Map]), an
// encode-side request to use a registered codec ([Custom]), whatever a
// registered [DecodeFunc] returns for a custom type (the "custom_instance"
// case — any concrete Go value the application codec chooses to produce),
// and the unknown-type fallback ([OpaqueRaw]).
type Object = any

// Array is an ordered sequence of objects, the tobytes equivalent of a
// msgpack array.
type Array struct {
	Items []Object
}

// NewArray builds an *Array from a literal slice of items.
func NewArray(items ...Object) *Array {
	return &Array{Items: items}
}

// Pair is one key/value entry in a [Map]. Order is preserved on both the
// encode and decode paths.
type Pair struct {
	Key   Object
	Value Object
}

// Map is an ordered sequence of key/value pairs, the tobytes equivalent of
// a msgpack map. A plain Go map isn't used because Object keys need not be
// comparable (a key may itself be an *Array or *Map).
type Map struct {
	Pairs []Pair
}

// NewMap builds a *Map from literal key/value pairs.
func NewMap(pairs ...Pair) *Map {
	return &Map{Pairs: pairs}
}

// Get returns the value bound to key, using Go's == where key is
// comparable, and exits early with ok=false for non-comparable keys
// (callers needing structural lookup on non-comparable keys should walk
// Pairs directly with their own equality).
func (m *Map) Get(key Object) (Object, bool) {
	if key != nil && !reflect.TypeOf(key).Comparable() {
		return nil, false
	}
	for _, p := range m.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Custom is an encode-side request to serialize Value through the codec
// registered under (Namespace, TypeID). The decoder never produces a
// Custom value; it produces whatever the registered [DecodeFunc] returns.
type Custom struct {
	Namespace string
	TypeID    uint64
	Value     any
}

// OpaqueRaw is the fallback object produced when a custom-type envelope's
// namespace or type-id is unresolvable and the active [Policy] requests
// as_raw handling. Re-encoding an OpaqueRaw reproduces the original ext
// 0x08 envelope byte-for-byte.
//
// Note that an unresolvable namespace-id (the wire envelope's first field
// was an integer with no active namespace-id binding) is always fatal
// (spec: on_unknown_namespace_id is non-configurable) and therefore never
// reaches OpaqueRaw. By the time OpaqueRaw is built, Namespace always
// holds a resolved namespace string; HasRawNamespaceID/RawNamespaceID
// additionally record whether the wire form was the integer shorthand, so
// that re-encoding can reproduce the exact original field shape rather
// than always emitting the string form.
type OpaqueRaw struct {
	// Namespace is the resolved namespace string.
	Namespace string

	// HasRawNamespaceID and RawNamespaceID record that the wire envelope
	// used the integer namespace-id shorthand, and which integer it was,
	// so re-encoding can reproduce it verbatim instead of substituting
	// the resolved string.
	HasRawNamespaceID bool
	RawNamespaceID    uint64

	TypeID uint64
	Bytes  []byte
}
