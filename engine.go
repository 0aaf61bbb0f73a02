package tobytes

// Engine lets a registered codec recurse into nested tobytes messages
// (spec §4.2, Design Note "recursive engine handle"). Each call begins a
// brand-new message: its own scoping stacks, exactly as a top-level
// Decode/Encode call would, giving custom-type payloads a fresh
// top-level decoding context without the decoder or encoder having to
// special-case them.
type Engine interface {
	Encode(obj Object) ([]byte, error)
	Decode(b []byte) (Object, error)
}

// engine is the concrete handle passed to every EncodeFunc/DecodeFunc
// invocation. It closes over the registry so nested custom types resolve
// against the same catalog as the enclosing message, and over the policy
// or options in effect for the call that produced it.
//
// A decode-time engine carries a zero EncodeOptions: nested encoding
// from within a decode callback runs with interning and namespace-id
// substitution both off, since a decoder has no caller-supplied
// EncodeOptions to inherit. Callers wanting those optimizations on a
// nested encode should call [Encode] directly with their own options
// instead of going through the Engine handed to a DecodeFunc.
type engine struct {
	reg  *Registry
	pol  Policy
	opts EncodeOptions
}

func (e *engine) Encode(obj Object) ([]byte, error) {
	return Encode(obj, e.reg, e.opts)
}

func (e *engine) Decode(b []byte) (Object, error) {
	return Decode(b, e.reg, e.pol)
}
