package tobytes

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

// Kind classifies a tobytes [Error].
type Kind uint8

const (
	KindInvalid Kind = iota

	// KindMalformedMsgPack means the underlying msgpack framing itself
	// was broken or truncated.
	KindMalformedMsgPack

	// KindDisallowedExtension means a message used an ext id outside
	// {0x06, 0x07, 0x08}.
	KindDisallowedExtension

	// KindMalformedInternEnvelope means a 0x06 payload was neither the
	// table shape nor the reference shape.
	KindMalformedInternEnvelope

	// KindNestedInternTable means a 0x06 table envelope was encountered
	// while another intern table was already active.
	KindNestedInternTable

	// KindNoInternFrame means a 0x06 reference was encountered with no
	// enclosing intern table.
	KindNoInternFrame

	// KindForwardInternRef means an intern reference's index was not
	// strictly less than the number of entries decoded so far.
	KindForwardInternRef

	// KindCyclicInternGraph means the encoder's interning eligibility
	// graph contained a cycle.
	KindCyclicInternGraph

	// KindUnknownNamespace means a custom-type envelope named a
	// namespace the registry has nothing registered under. Policy
	// mediated.
	KindUnknownNamespace

	// KindUnknownNamespaceID means a custom-type envelope's integer
	// namespace-id had no active binding. Always fatal.
	KindUnknownNamespaceID

	// KindUnknownTypeID means a custom-type envelope named a type-id
	// not registered in an otherwise-known namespace. Policy mediated.
	KindUnknownTypeID

	// KindUnregisteredType means the encoder was given a [Custom] value
	// naming a (namespace, type-id) the registry has no codec for.
	KindUnregisteredType

	// KindCodecFault means a registered codec function itself returned
	// an error.
	KindCodecFault

	// KindCancelled means a DecodeContext or EncodeContext call observed
	// its context done between value boundaries and aborted. Err wraps
	// the context's own error (context.Canceled or
	// context.DeadlineExceeded).
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindMalformedMsgPack:
		return "malformed msgpack"
	case KindDisallowedExtension:
		return "disallowed extension"
	case KindMalformedInternEnvelope:
		return "malformed intern envelope"
	case KindNestedInternTable:
		return "nested intern table"
	case KindNoInternFrame:
		return "no intern frame"
	case KindForwardInternRef:
		return "forward intern reference"
	case KindCyclicInternGraph:
		return "cyclic intern graph"
	case KindUnknownNamespace:
		return "unknown namespace"
	case KindUnknownNamespaceID:
		return "unknown namespace id"
	case KindUnknownTypeID:
		return "unknown type id"
	case KindUnregisteredType:
		return "unregistered type"
	case KindCodecFault:
		return "codec fault"
	case KindCancelled:
		return "cancelled"
	default:
		return "invalid"
	}
}

// Error is the concrete error type every structural or policy-mediated
// failure in this package surfaces as.
type Error struct {
	Kind Kind

	// Namespace and TypeID give context for registry-related errors
	// (KindUnknownNamespace, KindUnknownTypeID, KindUnregisteredType,
	// KindCodecFault). They are zero-valued when not applicable.
	Namespace string
	TypeID    uint64

	// Err is the underlying cause, if any (e.g. the msgpack framing
	// error from internal/wire, or the error a codec returned).
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Namespace != "" && e.Err != nil:
		return fmt.Sprintf("tobytes: %s (namespace %q, type %d): %v", e.Kind, e.Namespace, e.TypeID, e.Err)
	case e.Namespace != "":
		return fmt.Sprintf("tobytes: %s (namespace %q, type %d)", e.Kind, e.Namespace, e.TypeID)
	case e.Err != nil:
		return fmt.Sprintf("tobytes: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("tobytes: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an *Error of the given kind wrapping cause through
// xerrors.Errorf, so the error keeps a caller frame for diagnosis — the
// same discipline the teacher's rpkg package applies to every
// fmt.Errorf("...: %w", err) it raises, upgraded to the vendored xerrors
// equivalent.
func newError(kind Kind, cause error) error {
	if cause == nil {
		return xerrors.Errorf("%w", &Error{Kind: kind})
	}
	return xerrors.Errorf("%w", &Error{Kind: kind, Err: cause})
}

func newRegistryError(kind Kind, namespace string, typeID uint64, cause error) error {
	return xerrors.Errorf("%w", &Error{Kind: kind, Namespace: namespace, TypeID: typeID, Err: cause})
}

// As reports whether err is (or wraps) a tobytes *Error, writing it into
// *target on success. A thin convenience over the stdlib errors.As
// pattern for this package's one error type.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// Is reports whether err is (or wraps) a tobytes *Error of the given
// Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
