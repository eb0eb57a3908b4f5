package mapping

import (
	"github.com/google/grr-sub020/field"
	"github.com/pkg/errors"

	"github.com/google/grr-sub020/wire"
)

// Semantic is the contract a domain value type (timestamp, URN, host
// identifier, ...) satisfies to live in a semantic-value field. The domain
// types themselves are external collaborators; this core only needs the
// declared storage kind and the two conversions.
type Semantic interface {
	// SemanticKind is the declared storage kind: one of field.FTBytes,
	// field.FTString, field.FTUint64, field.FTUint32 or field.FTInt64.
	SemanticKind() field.Type
	// ToPrimitive converts the domain value to its primitive representation
	// for the declared storage kind.
	ToPrimitive() (any, error)
}

// SemanticValue delegates wire encoding entirely to the primitive descriptor
// matching the wrapped domain type's storage kind. Encode runs two
// conversions: domain value to primitive, then primitive to wire; decode is
// the inverse composition.
type SemanticValue struct {
	Base
	// Def is the default domain value for an unset field. May be nil.
	Def Semantic

	delegate FieldDescr
	from     func(primitive any) (Semantic, error)
}

// NewSemanticValue creates a semantic-value field descriptor. kind is the
// domain type's declared storage kind; from rebuilds the domain value from its
// primitive representation.
func NewSemanticValue(name string, num uint32, kind field.Type, from func(any) (Semantic, error), opts ...Option) (*SemanticValue, error) {
	if from == nil {
		return nil, errors.Errorf("semantic field %q: from conversion cannot be nil", name)
	}
	var delegate FieldDescr
	var err error
	switch kind {
	case field.FTBytes:
		delegate, err = NewBytes(name, num)
	case field.FTString:
		delegate, err = NewString(name, num)
	case field.FTUint64:
		delegate, err = NewUint64(name, num)
	case field.FTUint32:
		delegate, err = NewUint32(name, num)
	case field.FTInt64:
		delegate, err = NewInt64(name, num)
	default:
		return nil, errors.Errorf("semantic field %q: storage kind %v is not supported", name, kind)
	}
	if err != nil {
		return nil, err
	}

	b, err := newBase(name, num, field.FTSemantic, delegate.WireType(), opts...)
	if err != nil {
		return nil, err
	}
	return &SemanticValue{Base: b, delegate: delegate, from: from}, nil
}

// StorageKind returns the delegate's primitive kind.
func (d *SemanticValue) StorageKind() field.Type {
	return d.delegate.Kind()
}

// Validate accepts a Semantic whose storage kind matches the delegate, or a
// raw primitive that coerces through the delegate and the from conversion.
func (d *SemanticValue) Validate(v any) (any, error) {
	if s, ok := v.(Semantic); ok {
		if s.SemanticKind() != d.delegate.Kind() {
			return nil, TypeValueErrorf("field %q: semantic value stores %v, field stores %v",
				d.name, s.SemanticKind(), d.delegate.Kind())
		}
		return s, nil
	}
	p, err := d.delegate.Validate(v)
	if err != nil {
		return nil, err
	}
	s, err := d.from(p)
	if err != nil {
		return nil, TypeValueErrorf("field %q: cannot build semantic value from %T: %v", d.name, v, err)
	}
	return s, nil
}

func (d *SemanticValue) ToWire(v any) ([]byte, error) {
	s, ok := v.(Semantic)
	if !ok {
		return nil, TypeValueErrorf("field %q: want a semantic value, got %T", d.name, v)
	}
	p, err := s.ToPrimitive()
	if err != nil {
		return nil, TypeValueErrorf("field %q: semantic conversion failed: %v", d.name, err)
	}
	pv, err := d.delegate.Validate(p)
	if err != nil {
		return nil, err
	}
	return d.delegate.ToWire(pv)
}

func (d *SemanticValue) FromWire(t wire.Triple, container Message) (any, error) {
	p, err := d.delegate.FromWire(t, container)
	if err != nil {
		return nil, err
	}
	s, err := d.from(p)
	if err != nil {
		return nil, wire.Errorf("field %q: cannot build semantic value from wire: %v", d.name, err)
	}
	return s, nil
}

// Default returns the Def semantic value, if one was set on the descriptor.
func (d *SemanticValue) Default(Message) any {
	if d.Def == nil {
		return nil
	}
	return d.Def
}
