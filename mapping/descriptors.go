package mapping

import (
	"math"
	"unicode/utf8"

	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/internal/conversions"
	"github.com/google/grr-sub020/wire"
	"github.com/pkg/errors"
)

// Base carries the metadata every descriptor shares. Concrete descriptor kinds
// embed it and supply the encode/decode/validate behavior.
type Base struct {
	name     string
	num      uint32
	kind     field.Type
	wt       wire.Type
	tag      []byte
	tagVal   uint64
	required bool
}

// Option adjusts descriptor metadata at construction.
type Option func(*Base)

// WithRequired flags the field required. The flag is carried as metadata for
// the layers above; this core does not enforce presence.
func WithRequired() Option {
	return func(b *Base) { b.required = true }
}

func newBase(name string, num uint32, kind field.Type, wt wire.Type, opts ...Option) (Base, error) {
	if name == "" {
		return Base{}, errors.New("field name cannot be empty")
	}
	if num == 0 || num > wire.MaxFieldNum {
		return Base{}, errors.Errorf("field %q: field number %d out of range [1, %d]", name, num, wire.MaxFieldNum)
	}
	b := Base{name: name, num: num, kind: kind}
	b.setWire(wt)
	for _, o := range opts {
		o(&b)
	}
	return b, nil
}

// setWire computes the encoded tag for the wire type. Re-run on late-binding
// resolution.
func (b *Base) setWire(wt wire.Type) {
	b.wt = wt
	b.tagVal = wire.MakeTag(b.num, wt)
	b.tag = wire.EncodeVarint(b.tagVal)
}

func (b Base) Name() string          { return b.name }
func (b Base) FieldNum() uint32      { return b.num }
func (b Base) Kind() field.Type      { return b.kind }
func (b Base) WireType() wire.Type   { return b.wt }
func (b Base) Tag() []byte           { return b.tag }
func (b Base) TagValue() uint64      { return b.tagVal }
func (b Base) Required() bool        { return b.required }
func (b Base) LateBound() bool       { return false }
func (b Base) DefaultOnAccess() bool { return field.IsContainer(b.kind) }

// IsDirty is false for every descriptor kind that hands out values by value.
// Mutable container kinds override it.
func (b Base) IsDirty(any) bool { return false }

// checkWireType rejects a triple whose framing does not match the descriptor.
func (b Base) checkWireType(t wire.Triple) error {
	if t.Type != b.wt {
		return wire.Errorf("field %q (num %d): want wire type %v, got %v", b.name, b.num, b.wt, t.Type)
	}
	return nil
}

// appendLenDelim appends tag + varint length + payload.
func (b Base) appendLenDelim(dst, payload []byte) []byte {
	dst = append(dst, b.tag...)
	dst = wire.AppendVarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// String is a LENGTH_DELIMITED field holding UTF-8 text.
type String struct {
	Base
	// Def is the default returned for an unset field.
	Def string
}

// NewString creates a string field descriptor.
func NewString(name string, num uint32, opts ...Option) (*String, error) {
	b, err := newBase(name, num, field.FTString, wire.LengthDelimited, opts...)
	if err != nil {
		return nil, err
	}
	return &String{Base: b}, nil
}

func (d *String) Validate(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		if !utf8.Valid(t) {
			return nil, TypeValueErrorf("field %q: byte value is not valid UTF-8", d.name)
		}
		return string(t), nil
	}
	return nil, TypeValueErrorf("field %q: want string, got %T", d.name, v)
}

func (d *String) ToWire(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, TypeValueErrorf("field %q: want string, got %T", d.name, v)
	}
	return d.appendLenDelim(nil, conversions.UnsafeGetBytes(s)), nil
}

func (d *String) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	if !utf8.Valid(t.Payload) {
		return nil, wire.Errorf("field %q: payload is not valid UTF-8", d.name)
	}
	return string(t.Payload), nil
}

func (d *String) Default(Message) any { return d.Def }

// Bytes is a LENGTH_DELIMITED field holding raw bytes with no transform.
type Bytes struct {
	Base
	Def []byte
}

// NewBytes creates a binary field descriptor.
func NewBytes(name string, num uint32, opts ...Option) (*Bytes, error) {
	b, err := newBase(name, num, field.FTBytes, wire.LengthDelimited, opts...)
	if err != nil {
		return nil, err
	}
	return &Bytes{Base: b}, nil
}

func (d *Bytes) Validate(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	}
	return nil, TypeValueErrorf("field %q: want []byte, got %T", d.name, v)
}

func (d *Bytes) ToWire(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, TypeValueErrorf("field %q: want []byte, got %T", d.name, v)
	}
	return d.appendLenDelim(nil, b), nil
}

func (d *Bytes) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	out := make([]byte, len(t.Payload))
	copy(out, t.Payload)
	return out, nil
}

func (d *Bytes) Default(Message) any { return d.Def }

// Uint64 is a VARINT field holding an unsigned 64-bit integer.
type Uint64 struct {
	Base
	Def uint64
}

// NewUint64 creates an unsigned integer field descriptor.
func NewUint64(name string, num uint32, opts ...Option) (*Uint64, error) {
	b, err := newBase(name, num, field.FTUint64, wire.Varint, opts...)
	if err != nil {
		return nil, err
	}
	return &Uint64{Base: b}, nil
}

func (d *Uint64) Validate(v any) (any, error) {
	u, err := coerceUnsigned(v)
	if err != nil {
		return nil, TypeValueErrorf("field %q: %v", d.name, err)
	}
	return u, nil
}

func (d *Uint64) ToWire(v any) ([]byte, error) {
	u, ok := v.(uint64)
	if !ok {
		return nil, TypeValueErrorf("field %q: want uint64, got %T", d.name, v)
	}
	return wire.AppendVarint(append([]byte(nil), d.tag...), u), nil
}

func (d *Uint64) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	u, _, err := wire.DecodeVarint(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Uint64) Default(Message) any { return d.Def }

// Uint32 is a VARINT field holding an unsigned 32-bit integer. It exists for
// the 32-bit storage kind of semantic values and the UInt32Value Any wrapper.
type Uint32 struct {
	Base
	Def uint32
}

// NewUint32 creates a 32-bit unsigned integer field descriptor.
func NewUint32(name string, num uint32, opts ...Option) (*Uint32, error) {
	b, err := newBase(name, num, field.FTUint32, wire.Varint, opts...)
	if err != nil {
		return nil, err
	}
	return &Uint32{Base: b}, nil
}

func (d *Uint32) Validate(v any) (any, error) {
	u, err := coerceUnsigned(v)
	if err != nil {
		return nil, TypeValueErrorf("field %q: %v", d.name, err)
	}
	if u > math.MaxUint32 {
		return nil, TypeValueErrorf("field %q: value %d overflows uint32", d.name, u)
	}
	return uint32(u), nil
}

func (d *Uint32) ToWire(v any) ([]byte, error) {
	u, ok := v.(uint32)
	if !ok {
		return nil, TypeValueErrorf("field %q: want uint32, got %T", d.name, v)
	}
	return wire.AppendVarint(append([]byte(nil), d.tag...), uint64(u)), nil
}

func (d *Uint32) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	u, _, err := wire.DecodeVarint(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	if u > math.MaxUint32 {
		return nil, wire.Errorf("field %q: varint %d overflows uint32", d.name, u)
	}
	return uint32(u), nil
}

func (d *Uint32) Default(Message) any { return d.Def }

// Int64 is a VARINT field holding a signed 64-bit integer encoded as its
// unsigned two's-complement pattern (not zigzag).
type Int64 struct {
	Base
	Def int64
}

// NewInt64 creates a signed integer field descriptor.
func NewInt64(name string, num uint32, opts ...Option) (*Int64, error) {
	b, err := newBase(name, num, field.FTInt64, wire.Varint, opts...)
	if err != nil {
		return nil, err
	}
	return &Int64{Base: b}, nil
}

func (d *Int64) Validate(v any) (any, error) {
	i, err := coerceSigned(v)
	if err != nil {
		return nil, TypeValueErrorf("field %q: %v", d.name, err)
	}
	return i, nil
}

func (d *Int64) ToWire(v any) ([]byte, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, TypeValueErrorf("field %q: want int64, got %T", d.name, v)
	}
	return wire.AppendSigned(append([]byte(nil), d.tag...), i), nil
}

func (d *Int64) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	i, _, err := wire.DecodeSigned(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (d *Int64) Default(Message) any { return d.Def }

// Fixed32 is a FIXED32 field: 4 raw little-endian bytes.
type Fixed32 struct {
	Base
	Def uint32
}

// NewFixed32 creates a fixed32 field descriptor.
func NewFixed32(name string, num uint32, opts ...Option) (*Fixed32, error) {
	b, err := newBase(name, num, field.FTFixed32, wire.Fixed32, opts...)
	if err != nil {
		return nil, err
	}
	return &Fixed32{Base: b}, nil
}

func (d *Fixed32) Validate(v any) (any, error) {
	u, err := coerceUnsigned(v)
	if err != nil {
		return nil, TypeValueErrorf("field %q: %v", d.name, err)
	}
	if u > math.MaxUint32 {
		return nil, TypeValueErrorf("field %q: value %d overflows fixed32", d.name, u)
	}
	return uint32(u), nil
}

func (d *Fixed32) ToWire(v any) ([]byte, error) {
	u, ok := v.(uint32)
	if !ok {
		return nil, TypeValueErrorf("field %q: want uint32, got %T", d.name, v)
	}
	return wire.AppendFixed(append([]byte(nil), d.tag...), u), nil
}

func (d *Fixed32) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	u, _, err := wire.DecodeFixed32(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Fixed32) Default(Message) any { return d.Def }

// Fixed64 is a FIXED64 field: 8 raw little-endian bytes.
type Fixed64 struct {
	Base
	Def uint64
}

// NewFixed64 creates a fixed64 field descriptor.
func NewFixed64(name string, num uint32, opts ...Option) (*Fixed64, error) {
	b, err := newBase(name, num, field.FTFixed64, wire.Fixed64, opts...)
	if err != nil {
		return nil, err
	}
	return &Fixed64{Base: b}, nil
}

func (d *Fixed64) Validate(v any) (any, error) {
	u, err := coerceUnsigned(v)
	if err != nil {
		return nil, TypeValueErrorf("field %q: %v", d.name, err)
	}
	return u, nil
}

func (d *Fixed64) ToWire(v any) ([]byte, error) {
	u, ok := v.(uint64)
	if !ok {
		return nil, TypeValueErrorf("field %q: want uint64, got %T", d.name, v)
	}
	return wire.AppendFixed(append([]byte(nil), d.tag...), u), nil
}

func (d *Fixed64) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	u, _, err := wire.DecodeFixed64(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Fixed64) Default(Message) any { return d.Def }

// Float32 is a FIXED32 field holding an IEEE-754 single.
type Float32 struct {
	Base
	Def float32
}

// NewFloat32 creates a float field descriptor.
func NewFloat32(name string, num uint32, opts ...Option) (*Float32, error) {
	b, err := newBase(name, num, field.FTFloat32, wire.Fixed32, opts...)
	if err != nil {
		return nil, err
	}
	return &Float32{Base: b}, nil
}

func (d *Float32) Validate(v any) (any, error) {
	switch t := v.(type) {
	case float32:
		return t, nil
	case float64:
		return float32(t), nil
	case int:
		return float32(t), nil
	}
	return nil, TypeValueErrorf("field %q: want float32, got %T", d.name, v)
}

func (d *Float32) ToWire(v any) ([]byte, error) {
	f, ok := v.(float32)
	if !ok {
		return nil, TypeValueErrorf("field %q: want float32, got %T", d.name, v)
	}
	return wire.AppendFixed(append([]byte(nil), d.tag...), math.Float32bits(f)), nil
}

func (d *Float32) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	u, _, err := wire.DecodeFixed32(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return math.Float32frombits(u), nil
}

func (d *Float32) Default(Message) any { return d.Def }

// Float64 is a FIXED64 field holding an IEEE-754 double.
type Float64 struct {
	Base
	Def float64
}

// NewFloat64 creates a double field descriptor.
func NewFloat64(name string, num uint32, opts ...Option) (*Float64, error) {
	b, err := newBase(name, num, field.FTFloat64, wire.Fixed64, opts...)
	if err != nil {
		return nil, err
	}
	return &Float64{Base: b}, nil
}

func (d *Float64) Validate(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	}
	return nil, TypeValueErrorf("field %q: want float64, got %T", d.name, v)
}

func (d *Float64) ToWire(v any) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, TypeValueErrorf("field %q: want float64, got %T", d.name, v)
	}
	return wire.AppendFixed(append([]byte(nil), d.tag...), math.Float64bits(f)), nil
}

func (d *Float64) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	u, _, err := wire.DecodeFixed64(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return math.Float64frombits(u), nil
}

func (d *Float64) Default(Message) any { return d.Def }

// coerceUnsigned accepts the unsigned integer widths callers plausibly hold
// and rejects negatives.
func coerceUnsigned(v any) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case uint:
		return uint64(t), nil
	case int:
		if t < 0 {
			return 0, errors.Errorf("negative value %d for unsigned field", t)
		}
		return uint64(t), nil
	case int64:
		if t < 0 {
			return 0, errors.Errorf("negative value %d for unsigned field", t)
		}
		return uint64(t), nil
	}
	return 0, errors.Errorf("want an unsigned integer, got %T", v)
}

// coerceSigned accepts the signed integer widths callers plausibly hold.
func coerceSigned(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	}
	return 0, errors.Errorf("want a signed integer, got %T", v)
}
