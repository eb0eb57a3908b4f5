package mapping

import (
	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/wire"
)

// Embedded is a LENGTH_DELIMITED field whose payload is the full serialized
// form of a nested struct type. The target type is named at construction; if
// it is not registered yet, the descriptor goes late bound and resolves when
// the name registers.
type Embedded struct {
	Base
	typeName string
	target   *Map
}

// NewEmbedded creates an embedded struct field descriptor targeting the struct
// type registered (now or later) under typeName.
func NewEmbedded(name string, num uint32, typeName string, opts ...Option) (*Embedded, error) {
	b, err := newBase(name, num, field.FTStruct, wire.LengthDelimited, opts...)
	if err != nil {
		return nil, err
	}
	d := &Embedded{Base: b, typeName: typeName}
	if m, ok := LookupMessage(typeName); ok {
		d.target = m
	}
	return d, nil
}

// Target returns the resolved schema of the nested type, or nil while late
// bound.
func (d *Embedded) Target() *Map { return d.target }

func (d *Embedded) LateBound() bool { return d.target == nil }

func (d *Embedded) targetName() string { return d.typeName }
func (d *Embedded) resolved() bool     { return d.target != nil }

// resolve binds the target schema and recomputes the wire type and tag, then
// the owning Map finalizes the descriptor into its tag index.
func (d *Embedded) resolve(target *Map) {
	d.target = target
	d.setWire(wire.LengthDelimited)
}

func (d *Embedded) Validate(v any) (any, error) {
	if d.target == nil {
		return nil, TypeValueErrorf("field %q: type %q is not resolved yet", d.name, d.typeName)
	}
	m, ok := v.(Message)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a %s struct, got %T", d.name, d.typeName, v)
	}
	if m.Descriptor() != d.target {
		return nil, TypeValueErrorf("field %q: want struct type %q, got %q", d.name, d.typeName, m.Descriptor().Name)
	}
	return m, nil
}

func (d *Embedded) ToWire(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a struct, got %T", d.name, v)
	}
	payload, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	return d.appendLenDelim(nil, payload), nil
}

func (d *Embedded) FromWire(t wire.Triple, _ Message) (any, error) {
	if d.target == nil {
		return nil, TypeValueErrorf("field %q: type %q is not resolved yet", d.name, d.typeName)
	}
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	m := NewMessage(d.target)
	if err := m.Unmarshal(t.Payload); err != nil {
		return nil, err
	}
	return m, nil
}

// Default builds an empty nested instance. Stored into the owner on first
// access so mutations of the returned value are observed.
func (d *Embedded) Default(Message) any {
	if d.target == nil {
		return nil
	}
	return NewMessage(d.target)
}

func (d *Embedded) IsDirty(v any) bool {
	if m, ok := v.(Message); ok {
		return m.Dirty()
	}
	return false
}

// Dynamic is a LENGTH_DELIMITED field whose concrete nested type is chosen at
// decode time by a resolver invoked against the containing struct instance,
// typically keyed off a sibling field.
type Dynamic struct {
	Base
	resolver func(container Message) (*Map, error)
}

// NewDynamic creates a dynamically typed embedded struct field descriptor. The
// resolver table must be static and registered once, before instances exist.
func NewDynamic(name string, num uint32, resolver func(Message) (*Map, error), opts ...Option) (*Dynamic, error) {
	b, err := newBase(name, num, field.FTDynamic, wire.LengthDelimited, opts...)
	if err != nil {
		return nil, err
	}
	return &Dynamic{Base: b, resolver: resolver}, nil
}

// Validate accepts any struct instance; the concrete type is the holder's
// business until encode/decode time.
func (d *Dynamic) Validate(v any) (any, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a struct, got %T", d.name, v)
	}
	return m, nil
}

func (d *Dynamic) ToWire(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a struct, got %T", d.name, v)
	}
	payload, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	return d.appendLenDelim(nil, payload), nil
}

func (d *Dynamic) FromWire(t wire.Triple, container Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	target, err := d.resolver(container)
	if err != nil {
		return nil, wire.Errorf("field %q: cannot resolve dynamic type: %v", d.name, err)
	}
	m := NewMessage(target)
	if err := m.Unmarshal(t.Payload); err != nil {
		return nil, err
	}
	return m, nil
}

// Default resolves the concrete type against the containing instance; if the
// sibling key is not set yet there is no sensible default and nil is returned.
func (d *Dynamic) Default(container Message) any {
	target, err := d.resolver(container)
	if err != nil {
		return nil
	}
	return NewMessage(target)
}

func (d *Dynamic) IsDirty(v any) bool {
	if m, ok := v.(Message); ok {
		return m.Dirty()
	}
	return false
}
