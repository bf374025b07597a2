package marshal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/schema"
)

// Marshaller converts values for columns using a Registry.
// It holds no per-call state and is safe for concurrent use.
type Marshaller struct {
	registry *Registry
	now      func() time.Time
	newUUID  func() (uuid.UUID, error)
}

// Option configures a Marshaller.
type Option func(*Marshaller)

// WithRegistry replaces the default codec registry.
func WithRegistry(r *Registry) Option {
	return func(m *Marshaller) { m.registry = r }
}

// WithClock sets the time source used for now() and generated time uuids.
func WithClock(now func() time.Time) Option {
	return func(m *Marshaller) { m.now = now }
}

// WithUUIDSource sets the random uuid generator.
func WithUUIDSource(gen func() (uuid.UUID, error)) Option {
	return func(m *Marshaller) { m.newUUID = gen }
}

// New creates a Marshaller with the built-in registry.
func New(opts ...Option) *Marshaller {
	m := &Marshaller{
		registry: NewRegistry(),
		now:      time.Now,
		newUUID:  uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ToNative converts a portable value to the native value bound for col.
// Types without a codec pass through unchanged.
func (m *Marshaller) ToNative(v any, col *schema.Column) (any, error) {
	if col == nil {
		return v, nil
	}
	codec, ok := m.registry.Lookup(col.Type)
	if !ok || codec.ToNative == nil {
		return v, nil
	}
	return codec.ToNative(m, v, col)
}

// ToPortable converts a native value read from the store back to a portable
// scalar. Types without a codec pass through unchanged.
func (m *Marshaller) ToPortable(v any, col *schema.Column) (any, error) {
	if col == nil || v == nil {
		return v, nil
	}
	codec, ok := m.registry.Lookup(col.Type)
	if !ok || codec.ToPortable == nil {
		return v, nil
	}
	return codec.ToPortable(v, col)
}

// IsGenerator reports whether v is the uuid()/now() generator sentinel.
func IsGenerator(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return isSentinel(s, "uuid()") || isSentinel(s, "now()")
}

func fail(col *schema.Column, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return dberr.Marshalf("field %q: %s", col.Label(), msg).With("field", col.Label())
}

func isSentinel(s, keyword string) bool {
	return strings.EqualFold(strings.TrimSpace(s), keyword)
}
