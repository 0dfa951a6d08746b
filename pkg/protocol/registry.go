package protocol

import (
	"sort"
	"sync"
)

// Payload is the record-specific region of a variable parameter record.
// Implementations are value types; AppendTo must write exactly Size() bytes.
type Payload interface {
	Size() int
	AppendTo(dst []byte) []byte
}

// PayloadCodec decodes the body of one record shape. The body passed to Decode
// is the full record minus its 4-byte header, padding included.
type PayloadCodec struct {
	Name   string
	Decode func(body []byte) (Payload, error)
}

// Registry maps record_type codes to the codec for that shape
type Registry struct {
	mu     sync.RWMutex
	codecs map[uint16]PayloadCodec
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[uint16]PayloadCodec),
	}
}

// Register stores the codec for recordType, replacing any previous entry
func (r *Registry) Register(recordType uint16, codec PayloadCodec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[recordType] = codec
}

// Lookup returns the codec registered for recordType
func (r *Registry) Lookup(recordType uint16) (PayloadCodec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codec, ok := r.codecs[recordType]
	if !ok || codec.Decode == nil {
		return PayloadCodec{}, false
	}
	return codec, true
}

// Name returns the shape name for recordType, or "unknown"
func (r *Registry) Name(recordType uint16) string {
	if codec, ok := r.Lookup(recordType); ok && codec.Name != "" {
		return codec.Name
	}
	return "unknown"
}

// Types returns the registered record types in ascending order
func (r *Registry) Types() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]uint16, 0, len(r.codecs))
	for t := range r.codecs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the shared registry holding the built-in intercom shapes
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerIntercomShapes(defaultRegistry)
	})
	return defaultRegistry
}

func registryOrDefault(r *Registry) *Registry {
	if r == nil {
		return DefaultRegistry()
	}
	return r
}
