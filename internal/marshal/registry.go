package marshal

import (
	"github.com/roach88/cqlgate/internal/schema"
)

// NativeFunc converts a portable value to its native form.
type NativeFunc func(m *Marshaller, v any, col *schema.Column) (any, error)

// PortableFunc converts a native value back to its portable form.
type PortableFunc func(v any, col *schema.Column) (any, error)

// Codec holds both conversion directions for one abstract type.
type Codec struct {
	ToNative   NativeFunc
	ToPortable PortableFunc
}

// Registry maps abstract column types to codecs.
// Register must not be called once the registry is shared.
type Registry struct {
	codecs map[schema.Type]Codec
}

// NewRegistry returns a registry with the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[schema.Type]Codec)}

	r.Register(schema.TypeUUID, Codec{nativeUUID, portableUUID})
	r.Register(schema.TypeTimeUUID, Codec{nativeTimeUUID, portableUUID})
	r.Register(schema.TypeTimestamp, Codec{nativeTimestamp, portableTimestamp})
	r.Register(schema.TypeDate, Codec{nativeDate, portableDate})
	r.Register(schema.TypeTime, Codec{nativeTime, portableTime})
	r.Register(schema.TypeBigInt, Codec{nativeBigInt, portableBigInt})
	r.Register(schema.TypeDecimal, Codec{nativeDecimal, portableDecimal})
	r.Register(schema.TypeFloat, Codec{nativeFloat, portableFloat})
	r.Register(schema.TypeInteger, Codec{nativeIntN(32), portableInt})
	r.Register(schema.TypeSmallInt, Codec{nativeIntN(16), portableInt})
	r.Register(schema.TypeTinyInt, Codec{nativeIntN(8), portableInt})
	r.Register(schema.TypeBoolean, Codec{nativeBool, portableBool})
	r.Register(schema.TypeBinary, Codec{nativeBinary, portableBinary})
	r.Register(schema.TypeString, Codec{nativeString, portableString})

	return r
}

// Register installs or replaces the codec for t.
func (r *Registry) Register(t schema.Type, c Codec) {
	r.codecs[t] = c
}

// Lookup returns the codec for t.
func (r *Registry) Lookup(t schema.Type) (Codec, bool) {
	c, ok := r.codecs[t]
	return c, ok
}
