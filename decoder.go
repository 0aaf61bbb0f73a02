package tobytes

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/stestagg/tobytes/internal/wire"
)

// Decode parses b as a tobytes message and returns the object it
// encodes. reg supplies custom-type codecs; pol governs how unknown
// namespaces and types are handled. Structural violations — malformed
// framing, a disallowed extension id, broken intern or namespace
// scoping, an unresolvable namespace-id — are always fatal regardless of
// pol; only the unknown-namespace and unknown-type cases consult it.
func Decode(b []byte, reg *Registry, pol Policy) (Object, error) {
	return decode(nil, b, reg, pol)
}

// DecodeContext is Decode with cancellation: ctx.Err() is checked
// between top-level value boundaries (array/map elements, intern
// entries) and, if non-nil, aborts the decode with KindCancelled. A
// custom-type payload recursed into through an [Engine] is decoded with
// a fresh, ctx-unaware *decodeState (see engine.go) and so does not
// observe the outer ctx — only this call's own top-level traversal does.
func DecodeContext(ctx context.Context, b []byte, reg *Registry, pol Policy) (Object, error) {
	return decode(ctx, b, reg, pol)
}

func decode(ctx context.Context, b []byte, reg *Registry, pol Policy) (Object, error) {
	r := wire.NewReader(b)
	st := &decodeState{reg: reg, pol: pol, ctx: ctx}

	obj, err := st.decodeValue(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, newError(KindMalformedMsgPack, xerrors.New("trailing bytes after top-level value"))
	}
	return obj, nil
}

// decodeState owns the scoping stacks for exactly one Decode call. A
// custom-type payload that is itself a tobytes message is decoded
// through a fresh *decodeState (see engine.go), never this one, which is
// what gives it independent intern/namespace scoping.
type decodeState struct {
	reg        *Registry
	pol        Policy
	interns    internStack
	namespaces namespaceStack
	ctx        context.Context // nil unless reached through DecodeContext
}

// checkCancel reports whether s.ctx (if any) has been canceled.
func (s *decodeState) checkCancel() error {
	if s.ctx == nil {
		return nil
	}
	select {
	case <-s.ctx.Done():
		return newError(KindCancelled, s.ctx.Err())
	default:
		return nil
	}
}

func (s *decodeState) decodeValue(r *wire.Reader) (Object, error) {
	tok, err := r.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedMsgPack, err)
	}
	return s.decodeToken(r, tok)
}

func (s *decodeState) decodeToken(r *wire.Reader, tok wire.Token) (Object, error) {
	switch tok.Kind {
	case wire.KindNil:
		return nil, nil
	case wire.KindBool:
		return tok.Bool, nil
	case wire.KindInt:
		return tok.Int, nil
	case wire.KindUint:
		return tok.Uint, nil
	case wire.KindFloat32:
		return tok.Float32, nil
	case wire.KindFloat64:
		return tok.Float64, nil
	case wire.KindStr:
		return tok.Str, nil
	case wire.KindBin:
		return tok.Bin, nil
	case wire.KindArray:
		return s.decodeArray(r, tok.Count)
	case wire.KindMap:
		return s.decodeMap(r, tok.Count)
	case wire.KindExt:
		return s.decodeExt(tok)
	default:
		return nil, newError(KindMalformedMsgPack, xerrors.New("unrecognized token kind"))
	}
}

func (s *decodeState) decodeArray(r *wire.Reader, n int) (Object, error) {
	items := make([]Object, n)
	for i := 0; i < n; i++ {
		if err := s.checkCancel(); err != nil {
			return nil, err
		}
		v, err := s.decodeValue(r)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return &Array{Items: items}, nil
}

func (s *decodeState) decodeMap(r *wire.Reader, n int) (Object, error) {
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		if err := s.checkCancel(); err != nil {
			return nil, err
		}
		k, err := s.decodeValue(r)
		if err != nil {
			return nil, err
		}
		v, err := s.decodeValue(r)
		if err != nil {
			return nil, err
		}
		pairs[i] = Pair{Key: k, Value: v}
	}
	return &Map{Pairs: pairs}, nil
}

func (s *decodeState) decodeExt(tok wire.Token) (Object, error) {
	switch tok.ExtID {
	case extIntern:
		return s.decodeInternEnvelope(tok.ExtPayload)
	case extNamespace:
		return s.decodeNamespaceEnvelope(tok.ExtPayload)
	case extCustom:
		return s.decodeCustomEnvelope(tok.ExtPayload)
	default:
		return nil, newError(KindDisallowedExtension, xerrors.Errorf("ext id %d", tok.ExtID))
	}
}

// decodeInternEnvelope disambiguates a 0x06 payload by its first token:
// an array head is a table, a uint head is a reference, anything else is
// malformed (spec §4.4).
func (s *decodeState) decodeInternEnvelope(payload []byte) (Object, error) {
	pr := wire.NewReader(payload)
	head, err := pr.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedInternEnvelope, err)
	}

	switch head.Kind {
	case wire.KindArray:
		return s.decodeInternTable(pr, head.Count)
	case wire.KindUint:
		return s.decodeInternReference(head.Uint)
	default:
		return nil, newError(KindMalformedInternEnvelope, xerrors.New("ext 0x06 payload is neither a table nor a reference"))
	}
}

func (s *decodeState) decodeInternTable(pr *wire.Reader, count int) (Object, error) {
	if !s.interns.Push() {
		return nil, newError(KindNestedInternTable, nil)
	}
	defer s.interns.Pop()

	for i := 0; i < count; i++ {
		if err := s.checkCancel(); err != nil {
			return nil, err
		}
		v, err := s.decodeValue(pr)
		if err != nil {
			return nil, err
		}
		s.interns.Append(v)
	}

	return s.decodeValue(pr)
}

func (s *decodeState) decodeInternReference(idx uint64) (Object, error) {
	if !s.interns.Active() {
		return nil, newError(KindNoInternFrame, nil)
	}
	v, ok := s.interns.Resolve(idx)
	if !ok {
		return nil, newError(KindForwardInternRef, nil)
	}
	return v, nil
}

func (s *decodeState) decodeNamespaceEnvelope(payload []byte) (Object, error) {
	pr := wire.NewReader(payload)

	nameTok, err := pr.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedMsgPack, err)
	}
	if nameTok.Kind != wire.KindStr {
		return nil, newError(KindMalformedMsgPack, xerrors.New("ext 0x07 payload must start with a namespace string"))
	}

	idTok, err := pr.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedMsgPack, err)
	}
	if idTok.Kind != wire.KindUint {
		return nil, newError(KindMalformedMsgPack, xerrors.New("ext 0x07 payload's second field must be a uint id"))
	}

	s.namespaces.Push(nameTok.Str, idTok.Uint)
	defer s.namespaces.Pop()

	return s.decodeValue(pr)
}

func (s *decodeState) decodeCustomEnvelope(payload []byte) (Object, error) {
	pr := wire.NewReader(payload)

	head, err := pr.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedMsgPack, err)
	}

	var namespace string
	var hasRawID bool
	var rawID uint64

	switch head.Kind {
	case wire.KindStr:
		namespace = head.Str
	case wire.KindUint:
		hasRawID = true
		rawID = head.Uint
		name, ok := s.namespaces.ResolveID(rawID)
		if !ok {
			return nil, newError(KindUnknownNamespaceID, nil)
		}
		namespace = name
	default:
		return nil, newError(KindMalformedMsgPack, xerrors.New("ext 0x08 payload must start with a namespace string or id"))
	}

	typeTok, err := pr.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedMsgPack, err)
	}
	if typeTok.Kind != wire.KindUint {
		return nil, newError(KindMalformedMsgPack, xerrors.New("ext 0x08 payload's type-id field must be a uint"))
	}
	typeID := typeTok.Uint

	bytesTok, err := pr.ReadToken()
	if err != nil {
		return nil, newError(KindMalformedMsgPack, err)
	}
	if bytesTok.Kind != wire.KindBin {
		return nil, newError(KindMalformedMsgPack, xerrors.New("ext 0x08 payload's final field must be bin"))
	}
	payloadBytes := bytesTok.Bin

	codec, ok := s.reg.Lookup(namespace, typeID)
	if !ok {
		return s.resolveUnknown(namespace, hasRawID, rawID, typeID, payloadBytes)
	}

	eng := &engine{reg: s.reg, pol: s.pol}
	val, err := codec.Decode(eng, payloadBytes)
	if err != nil {
		return nil, newRegistryError(KindCodecFault, namespace, typeID, err)
	}
	return val, nil
}

// resolveUnknown applies Policy to a custom-type envelope the registry
// could not fully resolve. An unresolvable namespace takes
// OnUnknownNamespace; a resolvable namespace with no matching type-id (or
// fallback) takes OnUnknownType.
func (s *decodeState) resolveUnknown(namespace string, hasRawID bool, rawID, typeID uint64, payload []byte) (Object, error) {
	if !s.reg.HasNamespace(namespace) {
		switch s.pol.OnUnknownNamespace {
		case ActionAsRaw:
			return makeOpaqueRaw(namespace, hasRawID, rawID, typeID, payload), nil
		case ActionCustomHandler:
			if s.pol.UnknownNamespaceHandler == nil {
				return nil, newRegistryError(KindUnknownNamespace, namespace, typeID, xerrors.New("policy requests a custom handler but none is set"))
			}
			return s.pol.UnknownNamespaceHandler(namespace, typeID, payload)
		default:
			return nil, newRegistryError(KindUnknownNamespace, namespace, typeID, nil)
		}
	}

	switch s.pol.OnUnknownType {
	case ActionAsRaw:
		return makeOpaqueRaw(namespace, hasRawID, rawID, typeID, payload), nil
	case ActionCustomHandler:
		if s.pol.UnknownTypeHandler == nil {
			return nil, newRegistryError(KindUnknownTypeID, namespace, typeID, xerrors.New("policy requests a custom handler but none is set"))
		}
		return s.pol.UnknownTypeHandler(namespace, typeID, payload)
	default:
		return nil, newRegistryError(KindUnknownTypeID, namespace, typeID, nil)
	}
}

func makeOpaqueRaw(namespace string, hasRawID bool, rawID, typeID uint64, payload []byte) OpaqueRaw {
	return OpaqueRaw{
		Namespace:         namespace,
		HasRawNamespaceID: hasRawID,
		RawNamespaceID:    rawID,
		TypeID:            typeID,
		Bytes:             payload,
	}
}
