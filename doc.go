// Package tobytes implements a binary serialization framework layered on
// top of msgpack.
//
// tobytes extends msgpack with three reserved extension types:
//
//   - 0x06, intern table / intern reference — lets a repeated sub-value be
//     written once and referenced by index everywhere else it occurs.
//   - 0x07, namespace-id mapping — lets a repeated namespace string be
//     replaced by a small integer for the lexical extent of a sub-value.
//   - 0x08, custom type — carries a (namespace, type-id, payload) triple
//     dispatched through a [Registry] shared by the writer and reader.
//
// A message is a single msgpack value; the only ext ids a conformant
// message may use are 0x06, 0x07 and 0x08. Everything else (primitives,
// arrays, maps) passes through unchanged.
//
// # Layout
//
// The raw msgpack primitive codec lives in internal/wire, built on
// golang.org/x/crypto/cryptobyte. The custom-type catalog is [Registry].
// The scoping stacks that track active intern tables and namespace-id
// bindings during a single decode operation are unexported
// ([internStack], [namespaceStack]). [Decode] drives those stacks
// through the state machine described in the package's design document;
// [Encode] records its interning and namespace-id decisions in its own
// per-call state instead.
package tobytes
