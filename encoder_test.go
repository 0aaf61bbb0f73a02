package tobytes

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stestagg/tobytes/internal/wire"
)

// S2: intern of repeated sub-values (spec's own "hi","hi" example is too
// small for any realistic cost model to bother with — see
// TestEncodeSkipsInterningBelowCostThreshold — so this uses a string long
// enough that interning is unambiguously worthwhile).
func TestEncodeInternsRepeatedStrings(t *testing.T) {
	const repeated = "a string long enough to make interning pay for itself"
	obj := NewArray(repeated, repeated, repeated)
	opts := EncodeOptions{EnableInterning: true}

	b, err := Encode(obj, NewRegistry(), opts)
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	r := wire.NewReader(b)
	tok, err := r.ReadToken()
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if tok.Kind != wire.KindExt || tok.ExtID != extIntern {
		t.Fatalf("expected a top-level ext 0x06 table, got kind=%v ext=%d", tok.Kind, tok.ExtID)
	}

	got, err := Decode(b, NewRegistry(), Policy{})
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	want := NewArray(repeated, repeated, repeated)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// Below the cost-model break-even point, interning must not be applied
// even with EnableInterning set: two occurrences of a one-byte string
// cost more to reference than to inline.
func TestEncodeSkipsInterningBelowCostThreshold(t *testing.T) {
	obj := NewArray("a", "a")
	opts := EncodeOptions{EnableInterning: true}

	b, err := Encode(obj, NewRegistry(), opts)
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	r := wire.NewReader(b)
	tok, err := r.ReadToken()
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if tok.Kind == wire.KindExt && tok.ExtID == extIntern {
		t.Fatalf("expected inline array emission, got an ext 0x06 table")
	}
}

// A literal Go pointer cycle (an *Array containing itself) must be
// rejected rather than recursed into forever.
func TestEncodeDetectsCyclicInternGraph(t *testing.T) {
	arr := &Array{}
	arr.Items = []Object{arr}

	_, err := Encode(arr, NewRegistry(), EncodeOptions{EnableInterning: true})
	if !Is(err, KindCyclicInternGraph) {
		t.Errorf("Encode: expected KindCyclicInternGraph, got %v", err)
	}
}

// A value that qualifies for interning both nested inside another
// qualifying container and standalone at the same shallow depth must
// still get an entries[] index lower than the container's, since the
// container's own entry references it. Ordering by each group's
// shallowest observed depth (rather than genuine containment) can tie
// the two and let first-seen order assign the container the lower
// index, producing a forward reference that a conformant Decode rejects.
func TestEncodeInterningOrdersByDependencyNotDepth(t *testing.T) {
	const needle = "a string long enough to make interning pay for itself"
	container := NewMap(Pair{Key: "k", Value: needle})
	obj := NewArray(container, container, needle)

	b, err := Encode(obj, NewRegistry(), EncodeOptions{EnableInterning: true})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	got, err := Decode(b, NewRegistry(), Policy{})
	if err != nil {
		t.Fatalf("Decode: unexpected error (encoder likely emitted a forward intern reference): %v", err)
	}

	want := NewArray(
		NewMap(Pair{Key: "k", Value: needle}),
		NewMap(Pair{Key: "k", Value: needle}),
		needle,
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// EncodeContext aborts with KindCancelled once its context is done,
// checked between the top-level array's elements.
func TestEncodeContextCancelled(t *testing.T) {
	obj := NewArray(uint64(1), uint64(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EncodeContext(ctx, obj, NewRegistry(), EncodeOptions{})
	if !Is(err, KindCancelled) {
		t.Errorf("EncodeContext: expected KindCancelled, got %v", err)
	}
}

func TestEncodeNamespaceIDSubstitution(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("geo", 0,
		func(eng Engine, value any) ([]byte, error) { return value.([]byte), nil },
		func(eng Engine, payload []byte) (any, error) { return payload, nil },
	); err != nil {
		t.Fatal(err)
	}

	obj := NewArray(
		Custom{Namespace: "geo", TypeID: 0, Value: []byte{1}},
		Custom{Namespace: "geo", TypeID: 0, Value: []byte{2}},
	)
	opts := EncodeOptions{EnableNamespaceIDSubstitution: true, NamespaceIDThreshold: 2}

	b, err := Encode(obj, reg, opts)
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	r := wire.NewReader(b)
	tok, err := r.ReadToken()
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if tok.Kind != wire.KindExt || tok.ExtID != extNamespace {
		t.Fatalf("expected a top-level ext 0x07 binding, got kind=%v ext=%d", tok.Kind, tok.ExtID)
	}

	got, err := Decode(b, reg, Policy{})
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	want := NewArray([]byte{1}, []byte{2})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeUnregisteredTypeFails(t *testing.T) {
	_, err := Encode(Custom{Namespace: "none", TypeID: 0, Value: nil}, NewRegistry(), EncodeOptions{})
	if !Is(err, KindUnregisteredType) {
		t.Errorf("Encode: expected KindUnregisteredType, got %v", err)
	}
}

func TestEncodeCodecFaultWrapsUnderlyingError(t *testing.T) {
	reg := NewRegistry()
	sentinel := &Error{Kind: KindInvalid}
	if err := reg.Register("bad", 0,
		func(eng Engine, value any) ([]byte, error) { return nil, sentinel },
		func(eng Engine, payload []byte) (any, error) { return nil, nil },
	); err != nil {
		t.Fatal(err)
	}

	_, err := Encode(Custom{Namespace: "bad", TypeID: 0}, reg, EncodeOptions{})
	if !Is(err, KindCodecFault) {
		t.Errorf("Encode: expected KindCodecFault, got %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Encode: expected the codec's own error to be wrapped, got %v", err)
	}
}

func TestDefaultInternEqualityIgnoresMapKeyOrder(t *testing.T) {
	a := NewMap(Pair{Key: "x", Value: int64(1)}, Pair{Key: "y", Value: int64(2)})
	b := NewMap(Pair{Key: "y", Value: int64(2)}, Pair{Key: "x", Value: int64(1)})
	if !DefaultInternEquality(a, b) {
		t.Error("DefaultInternEquality: expected maps with the same pairs in different order to be equal")
	}
}
