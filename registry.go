package tobytes

import (
	"sort"
	"sync"

	"golang.org/x/xerrors"
)

// EncodeFunc serializes an application value registered under a
// (namespace, type-id) pair into the custom type's opaque payload bytes.
// eng lets the codec recurse into nested tobytes messages.
type EncodeFunc func(eng Engine, value any) ([]byte, error)

// DecodeFunc is the inverse of [EncodeFunc]: it reconstructs an
// application value from the opaque payload bytes of a custom-type
// envelope.
type DecodeFunc func(eng Engine, payload []byte) (any, error)

// Codec is a registered (encode, decode) pair.
type Codec struct {
	Encode EncodeFunc
	Decode DecodeFunc
}

type namespaceEntry struct {
	types    map[uint64]Codec
	fallback *Codec
}

// Registry is a namespaced catalog of custom-type codecs (spec §4.2). A
// zero Registry is not usable; construct one with [NewRegistry]. Registry
// is safe for concurrent Lookup/ListNamespaces calls running alongside
// Register/RegisterNamespaceFallback calls, via a read-mostly
// sync.RWMutex, mirroring the guarded type-registry pattern used by
// mightymap's msgpack storage adapter. Mutating the registry concurrently
// with an in-flight Encode/Decode that might read it is undefined — per
// spec §5, the recommended discipline is to freeze the registry (stop
// registering) before use.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*namespaceEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]*namespaceEntry)}
}

func (r *Registry) entry(namespace string) *namespaceEntry {
	ns, ok := r.namespaces[namespace]
	if !ok {
		ns = &namespaceEntry{types: make(map[uint64]Codec)}
		r.namespaces[namespace] = ns
	}
	return ns
}

// Register adds a codec for (namespace, typeID). It fails if the pair is
// already bound.
func (r *Registry) Register(namespace string, typeID uint64, encode EncodeFunc, decode DecodeFunc) error {
	if encode == nil || decode == nil {
		return xerrors.Errorf("tobytes: register(%q, %d): encode and decode functions are required", namespace, typeID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns := r.entry(namespace)
	if _, exists := ns.types[typeID]; exists {
		return xerrors.Errorf("tobytes: register(%q, %d): %w", namespace, typeID, errAlreadyRegistered)
	}
	ns.types[typeID] = Codec{Encode: encode, Decode: decode}
	return nil
}

// RegisterNamespaceFallback registers a single codec that handles every
// type-id in namespace not otherwise registered with [Registry.Register].
// It fails if a fallback is already registered for namespace.
func (r *Registry) RegisterNamespaceFallback(namespace string, encode EncodeFunc, decode DecodeFunc) error {
	if encode == nil || decode == nil {
		return xerrors.Errorf("tobytes: register namespace fallback(%q): encode and decode functions are required", namespace)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns := r.entry(namespace)
	if ns.fallback != nil {
		return xerrors.Errorf("tobytes: register namespace fallback(%q): %w", namespace, errAlreadyRegistered)
	}
	ns.fallback = &Codec{Encode: encode, Decode: decode}
	return nil
}

// Lookup returns the codec registered for (namespace, typeID), falling
// back to a namespace-wide handler if one was registered and no exact
// type-id match exists. ok is false if neither is available.
func (r *Registry) Lookup(namespace string, typeID uint64) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ns, ok := r.namespaces[namespace]
	if !ok {
		return Codec{}, false
	}
	if c, ok := ns.types[typeID]; ok {
		return c, true
	}
	if ns.fallback != nil {
		return *ns.fallback, true
	}
	return Codec{}, false
}

// HasNamespace reports whether any codec (exact or fallback) has ever
// been registered under namespace, independent of a specific type-id.
// Used to distinguish KindUnknownNamespace from KindUnknownTypeID.
func (r *Registry) HasNamespace(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.namespaces[namespace]
	return ok
}

// ListNamespaces returns the set of registered namespace strings, sorted
// for determinism.
func (r *Registry) ListNamespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

var errAlreadyRegistered = xerrors.New("already registered")
