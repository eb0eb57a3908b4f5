// Package mapping holds the field descriptor hierarchy and the per-type schema
// Map that lets struct instances encode and decode their fields. A Map is built
// once during process startup, frozen before the first instance is created, and
// read-only afterwards.
package mapping

import (
	"fmt"
	"sync/atomic"

	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/wire"
)

// TypeValueError is a caller-correctable error: an invalid value passed to
// Validate/Set/Append, a duplicate field number at registration, or an
// unresolved type reference used before late binding completes.
type TypeValueError struct {
	msg string
	err error
}

// Error implements error.
func (e *TypeValueError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if any.
func (e *TypeValueError) Unwrap() error {
	return e.err
}

// TypeValueErrorf creates a *TypeValueError.
func TypeValueErrorf(format string, args ...any) *TypeValueError {
	return &TypeValueError{msg: fmt.Sprintf(format, args...)}
}

// Message is the contract the struct runtime satisfies so descriptors can
// carry nested instances without importing the structs package.
type Message interface {
	// Descriptor returns the schema Map the instance was created from.
	Descriptor() *Map
	// Unmarshal replaces the instance's contents with the decoded buffer.
	Unmarshal(data []byte) error
	// Marshal serializes the instance and refreshes its wire cache.
	Marshal() ([]byte, error)
	// Dirty reports whether the instance mutated since its last Marshal.
	Dirty() bool
	// Copy returns an independent copy of the instance.
	Copy() Message
	// EqualMessage reports value equality field by field.
	EqualMessage(o Message) bool
}

// NewMessage creates an empty Message for a Map. The structs package sets this
// at init time; function-pointer registration avoids an import cycle between
// the descriptors and the instance runtime.
var NewMessage func(m *Map) Message

// NewRepeated creates an empty repeated-field container sharing the delegate
// descriptor. Set by the structs package at init time.
var NewRepeated func(delegate FieldDescr) Repeated

// FieldDescr is the common contract of every field descriptor. Descriptors are
// immutable after their owning Map freezes and are owned exclusively by that
// Map.
type FieldDescr interface {
	// Name is the field name inside its owning struct type.
	Name() string
	// FieldNum is the positive field number, unique within the owning type.
	FieldNum() uint32
	// Kind identifies the descriptor behavior.
	Kind() field.Type
	// WireType is how the field's payload is framed on the wire.
	WireType() wire.Type
	// Tag is the varint-encoded (fieldnum << 3 | wiretype), computed once at
	// construction (and recomputed on late-binding resolution).
	Tag() []byte
	// TagValue is the decoded tag value.
	TagValue() uint64
	// Required reports the required flag. Metadata only; enforcement belongs
	// to the layers above.
	Required() bool
	// LateBound reports whether the descriptor still waits on a forward
	// type reference.
	LateBound() bool
	// DefaultOnAccess reports whether Get materializes and stores the default
	// so later mutation of the returned default is observed.
	DefaultOnAccess() bool

	// Validate coerces candidate into the decoded representation or fails
	// with a *TypeValueError.
	Validate(candidate any) (any, error)
	// ToWire encodes a decoded value into complete wire bytes for this field
	// (tag, length prefix where applicable, payload).
	ToWire(v any) ([]byte, error)
	// FromWire decodes one wire triple. container is the instance being
	// decoded into; only dynamic kinds consult it.
	FromWire(t wire.Triple, container Message) (any, error)
	// Default returns the field's default value. Container kinds build a new
	// empty container; scalars return their default by value.
	Default(container Message) any
	// IsDirty reports whether a decoded value mutated since it was last
	// encoded. Always false except for mutable container kinds.
	IsDirty(v any) bool
}

// MustNew unwraps a constructor or Validate result, panicking on error. Schema
// construction happens at process startup where a bad descriptor is fatal.
func MustNew[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// lateBinder is implemented by descriptors that may name their target type
// before it is defined.
type lateBinder interface {
	FieldDescr
	targetName() string
	resolved() bool
	resolve(target *Map)
}

// Map is a named schema: the ordered collection of field descriptors for one
// struct type, with indices by field name, field number and encoded tag.
type Map struct {
	// Name of the struct type. Also the trailing type_url component for
	// Any-envelope resolution.
	Name string

	fields  []FieldDescr
	byName  map[string]FieldDescr
	byNum   map[uint32]FieldDescr
	byTag   map[uint64]FieldDescr
	pending map[uint32]FieldDescr

	frozen atomic.Bool
}

// NewMap creates an empty schema for the named struct type.
func NewMap(name string) *Map {
	return &Map{
		Name:    name,
		byName:  map[string]FieldDescr{},
		byNum:   map[uint32]FieldDescr{},
		byTag:   map[uint64]FieldDescr{},
		pending: map[uint32]FieldDescr{},
	}
}

// Register adds a descriptor to the schema. A duplicate field number or name is
// a fatal registration error. A late-bound descriptor is indexed by name and
// number immediately but only enters the tag index once its target type
// registers.
func (m *Map) Register(d FieldDescr) error {
	if m.frozen.Load() {
		return TypeValueErrorf("type %s: cannot register field %q after the schema is frozen", m.Name, d.Name())
	}
	if _, ok := m.byNum[d.FieldNum()]; ok {
		return TypeValueErrorf("type %s: duplicate field number %d (field %q)", m.Name, d.FieldNum(), d.Name())
	}
	if _, ok := m.byName[d.Name()]; ok {
		return TypeValueErrorf("type %s: duplicate field name %q", m.Name, d.Name())
	}

	m.fields = append(m.fields, d)
	m.byNum[d.FieldNum()] = d
	m.byName[d.Name()] = d

	if lb, ok := d.(lateBinder); ok && !lb.resolved() {
		m.pending[d.FieldNum()] = d
		subscribe(lb.targetName(), func(target *Map) {
			lb.resolve(target)
			m.finalize(d)
		})
		return nil
	}
	m.byTag[d.TagValue()] = d
	return nil
}

// MustRegister is like Register but panics on error. Registration failures are
// meant to be caught at process startup, not at runtime per message.
func (m *Map) MustRegister(d FieldDescr) {
	if err := m.Register(d); err != nil {
		panic(err)
	}
}

// finalize moves a resolved late-bound descriptor into the tag index. The tag
// may have been recomputed by the resolution, so it is indexed only now.
func (m *Map) finalize(d FieldDescr) {
	delete(m.pending, d.FieldNum())
	m.byTag[d.TagValue()] = d
}

// Freeze marks the schema read-only. The first struct instance created from
// the Map freezes it implicitly; registering afterwards fails instead of
// racing instance use.
func (m *Map) Freeze() {
	m.frozen.Store(true)
}

// Frozen reports whether the schema is frozen.
func (m *Map) Frozen() bool {
	return m.frozen.Load()
}

// PendingFields returns the names of late-bound descriptors whose target type
// has not registered yet.
func (m *Map) PendingFields() []string {
	names := make([]string, 0, len(m.pending))
	for _, d := range m.pending {
		names = append(names, d.Name())
	}
	return names
}

// Fields returns the descriptors in registration order. The slice must not be
// mutated.
func (m *Map) Fields() []FieldDescr {
	return m.fields
}

// ByName retrieves a descriptor by field name.
func (m *Map) ByName(name string) (FieldDescr, bool) {
	d, ok := m.byName[name]
	return d, ok
}

// ByNum retrieves a descriptor by field number.
func (m *Map) ByNum(num uint32) (FieldDescr, bool) {
	d, ok := m.byNum[num]
	return d, ok
}

// ByTag retrieves a descriptor by decoded tag value. Late-bound descriptors do
// not appear here until resolved.
func (m *Map) ByTag(tag uint64) (FieldDescr, bool) {
	d, ok := m.byTag[tag]
	return d, ok
}
