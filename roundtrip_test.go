package tobytes

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rsc.io/diff"

	"github.com/stestagg/tobytes/internal/wire"
)

// Property #1: round-trip without extensions. For any message using no
// tobytes ext ids, decode then re-encode yields a msgpack-equivalent byte
// sequence.
func TestRoundtripPlainPassThrough(t *testing.T) {
	obj := NewMap(
		Pair{Key: "name", Value: "tobytes"},
		Pair{Key: "count", Value: uint64(3)},
		Pair{Key: "tags", Value: NewArray("a", "b", "c")},
		Pair{Key: "nothing", Value: nil},
		Pair{Key: "ratio", Value: 0.5},
	)

	b, err := Encode(obj, NewRegistry(), EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	decoded, err := Decode(b, NewRegistry(), Policy{})
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if diff := cmp.Diff(obj, decoded); diff != "" {
		t.Fatalf("decode mismatch (-want +got):\n%s", diff)
	}

	b2, err := Encode(decoded, NewRegistry(), EncodeOptions{})
	if err != nil {
		t.Fatalf("re-Encode: unexpected error: %v", err)
	}
	if !bytes.Equal(b, b2) {
		t.Errorf("re-encode mismatch:\n%s", diff.Format(string(b), string(b2)))
	}
}

// Property #2: intern round-trip. Encoding with interning enabled then
// decoding yields an object equal to the input.
func TestRoundtripWithInterning(t *testing.T) {
	const repeated = "a string long enough to make interning pay for itself"
	obj := NewArray(
		NewMap(Pair{Key: "a", Value: repeated}, Pair{Key: "b", Value: repeated}),
		repeated,
	)

	b, err := Encode(obj, NewRegistry(), EncodeOptions{EnableInterning: true})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	got, err := Decode(b, NewRegistry(), Policy{})
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if diff := cmp.Diff(obj, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// S5: a custom type whose payload is itself a tobytes message gets a
// fresh intern frame, independent of the outer message's own scoping.
func TestRoundtripCustomTypeWithNestedMessage(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("x", 0,
		func(eng Engine, value any) ([]byte, error) {
			return Encode(value.(Object), reg, EncodeOptions{EnableInterning: true})
		},
		func(eng Engine, payload []byte) (any, error) {
			return Decode(payload, reg, Policy{})
		},
	); err != nil {
		t.Fatal(err)
	}

	const repeated = "a string long enough to make interning pay for itself"
	inner := NewArray(repeated, repeated)
	obj := Custom{Namespace: "x", TypeID: 0, Value: inner}

	b, err := Encode(obj, reg, EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	got, err := Decode(b, reg, Policy{})
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if diff := cmp.Diff(Object(inner), got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// Property #6: unknown-namespace policy. With on_unknown_namespace=as_raw,
// decoding an ext 0x08 with an unknown namespace yields an opaque value;
// re-encoding it reproduces the original bytes exactly.
func TestRoundtripUnknownNamespaceOpaque(t *testing.T) {
	payload := wire.NewWriter()
	payload.WriteStr("unseen")
	payload.WriteUint(5)
	payload.WriteBin([]byte{0x01, 0x02})

	original := wire.NewWriter()
	original.WriteExt(extCustom, payload.Bytes())

	pol := Policy{OnUnknownNamespace: ActionAsRaw}
	decoded, err := Decode(original.Bytes(), NewRegistry(), pol)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}

	reencoded, err := Encode(decoded, NewRegistry(), EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	if !bytes.Equal(original.Bytes(), reencoded) {
		t.Errorf("re-encode mismatch:\n%s", diff.Format(string(original.Bytes()), string(reencoded)))
	}
}

// Same guarantee, but the wire form used the integer namespace-id
// shorthand: re-encoding must reproduce the shorthand, not substitute the
// resolved string.
func TestRoundtripUnknownNamespaceOpaquePreservesRawID(t *testing.T) {
	custom := wire.NewWriter()
	custom.WriteUint(7)
	custom.WriteUint(1)
	custom.WriteBin([]byte{0xff})

	namespaced := wire.NewWriter()
	namespaced.WriteStr("known")
	namespaced.WriteUint(7)
	namespaced.WriteRaw(wrapExt(extCustom, custom.Bytes()))

	original := wire.NewWriter()
	original.WriteExt(extNamespace, namespaced.Bytes())

	reg := NewRegistry()
	if err := reg.Register("known", 99, // type-id 1 stays unregistered
		func(eng Engine, value any) ([]byte, error) { return nil, nil },
		func(eng Engine, payload []byte) (any, error) { return nil, nil },
	); err != nil {
		t.Fatal(err)
	}

	pol := Policy{OnUnknownType: ActionAsRaw}
	decoded, err := Decode(original.Bytes(), reg, pol)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}

	opaque, ok := decoded.(OpaqueRaw)
	if !ok {
		t.Fatalf("expected OpaqueRaw, got %T", decoded)
	}
	if !opaque.HasRawNamespaceID || opaque.RawNamespaceID != 7 {
		t.Fatalf("expected HasRawNamespaceID with id 7, got %+v", opaque)
	}

	reencoded, err := Encode(opaque, NewRegistry(), EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}
	wantExt := wrapExt(extCustom, custom.Bytes())
	if !bytes.Equal(wantExt, reencoded) {
		t.Errorf("re-encode mismatch:\n%s", diff.Format(string(wantExt), string(reencoded)))
	}
}
