package mapping

import (
	"github.com/google/grr-sub020/field"
	"github.com/pkg/errors"

	"github.com/google/grr-sub020/wire"
)

// Repeated is the container behind a list field. The structs package provides
// the implementation via the NewRepeated hook; this package only needs enough
// surface to move containers across the wire.
type Repeated interface {
	// Len is the number of elements, decoded or not.
	Len() int
	// Delegate is the element descriptor the container was built for.
	Delegate() FieldDescr
	// Dirty reports whether the container changed since it was last
	// serialized or deserialized.
	Dirty() bool
	// AppendWire appends one undecoded element. Used during Unmarshal of the
	// containing struct.
	AppendWire(t wire.Triple) error
	// MarshalWire encodes every element as its own tagged field, one triple
	// per element, concatenated.
	MarshalWire() ([]byte, error)
	// Equal reports element-wise equality against another container with the
	// same delegate.
	Equal(o Repeated) bool
}

// List is a repeated field. There is no packed encoding and no list-specific
// wire construct: each element is an independent tagged field carrying the
// element descriptor's tag, and element order is wire order.
type List struct {
	Base
	delegate FieldDescr
}

// NewList creates a repeated field descriptor around an element descriptor.
// The element descriptor provides the field number, name and per-element
// encoding; lists of lists are not a thing.
func NewList(delegate FieldDescr, opts ...Option) (*List, error) {
	if delegate == nil {
		return nil, errors.New("list field: element descriptor cannot be nil")
	}
	if delegate.Kind() == field.FTList {
		return nil, errors.Errorf("list field %q: nested lists are not supported", delegate.Name())
	}
	b, err := newBase(delegate.Name(), delegate.FieldNum(), field.FTList, delegate.WireType(), opts...)
	if err != nil {
		return nil, err
	}
	return &List{Base: b, delegate: delegate}, nil
}

// Delegate returns the element descriptor.
func (d *List) Delegate() FieldDescr { return d.delegate }

// A list field is late bound exactly when its element descriptor is.
func (d *List) LateBound() bool { return d.delegate.LateBound() }

func (d *List) targetName() string {
	lb, ok := d.delegate.(lateBinder)
	if !ok {
		return ""
	}
	return lb.targetName()
}

func (d *List) resolved() bool {
	lb, ok := d.delegate.(lateBinder)
	if !ok {
		return true
	}
	return lb.resolved()
}

func (d *List) resolve(target *Map) {
	if lb, ok := d.delegate.(lateBinder); ok {
		lb.resolve(target)
		d.setWire(d.delegate.WireType())
	}
}

// Validate accepts only a container built for this exact element descriptor.
func (d *List) Validate(v any) (any, error) {
	r, ok := v.(Repeated)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a repeated container, got %T", d.name, v)
	}
	if r.Delegate() != d.delegate {
		return nil, TypeValueErrorf("field %q: container belongs to another field", d.name)
	}
	return r, nil
}

// ToWire encodes the whole container, one tagged triple per element.
func (d *List) ToWire(v any) ([]byte, error) {
	r, ok := v.(Repeated)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a repeated container, got %T", d.name, v)
	}
	return r.MarshalWire()
}

// FromWire decodes a single element. The containing struct routes each triple
// for this field number into the container via AppendWire; decoding one
// element here serves the container's lazy per-element materialization.
func (d *List) FromWire(t wire.Triple, container Message) (any, error) {
	return d.delegate.FromWire(t, container)
}

// Default builds an empty container. Stored into the owner on first access so
// appends through the returned value are observed.
func (d *List) Default(Message) any {
	return NewRepeated(d.delegate)
}

func (d *List) IsDirty(v any) bool {
	if r, ok := v.(Repeated); ok {
		return r.Dirty()
	}
	return false
}
