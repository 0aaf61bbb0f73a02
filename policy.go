package tobytes

// UnknownAction selects how the decoder reacts to a custom-type envelope
// it cannot fully resolve (spec §4.6 / §7).
type UnknownAction uint8

const (
	// ActionError fails the decode with the corresponding KindUnknown*
	// error. The default for both unknown-namespace and
	// unknown-type-in-known-namespace handling.
	ActionError UnknownAction = iota

	// ActionAsRaw produces an [OpaqueRaw] object carrying enough
	// information to re-encode the envelope byte-for-byte.
	ActionAsRaw

	// ActionCustomHandler calls the matching Policy handler function
	// instead.
	ActionCustomHandler
)

// UnknownNamespaceHandler is invoked when
// Policy.OnUnknownNamespace == ActionCustomHandler. namespace is the
// resolved namespace string (per spec, an unresolvable namespace-id is
// always fatal and never reaches a handler).
type UnknownNamespaceHandler func(namespace string, typeID uint64, payload []byte) (Object, error)

// UnknownTypeHandler is invoked when
// Policy.OnUnknownType == ActionCustomHandler.
type UnknownTypeHandler func(namespace string, typeID uint64, payload []byte) (Object, error)

// Policy configures how the decoder reacts to custom-type envelopes it
// cannot fully resolve. The zero Policy is the spec's default behavior:
// unknown namespaces and unknown types are both fatal errors. The
// intern-equality predicate is not part of Policy; it is set on the
// encode side through [EncodeOptions].InternEquality.
//
// on_unknown_namespace_id (spec §4.6) is deliberately not configurable
// here: it is always fatal, a structural violation rather than a policy
// decision.
type Policy struct {
	// OnUnknownNamespace governs decoding a custom-type envelope whose
	// namespace the registry has nothing registered under.
	OnUnknownNamespace UnknownAction

	// UnknownNamespaceHandler is used when
	// OnUnknownNamespace == ActionCustomHandler.
	UnknownNamespaceHandler UnknownNamespaceHandler

	// OnUnknownType governs decoding a custom-type envelope in a known
	// namespace whose type-id (and no namespace fallback) matches
	// nothing registered. May be left at ActionError unconditionally,
	// per spec.
	OnUnknownType UnknownAction

	// UnknownTypeHandler is used when OnUnknownType == ActionCustomHandler.
	UnknownTypeHandler UnknownTypeHandler
}
