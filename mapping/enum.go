package mapping

import (
	"strconv"
	"strings"

	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/wire"
	"github.com/pkg/errors"
)

// EnumValue is a decoded enum field: the integer that goes on the wire plus a
// handle back to the descriptor's name table.
type EnumValue struct {
	// Number is the wire value.
	Number int64

	enum *Enum
}

// Name returns the display name for the value, or "" if the number is not in
// the descriptor's name table.
func (v EnumValue) Name() string {
	if v.enum == nil {
		return ""
	}
	return v.enum.byNum[v.Number]
}

// Bool interprets the value as a truth flag (nonzero is true).
func (v EnumValue) Bool() bool {
	return v.Number != 0
}

// String renders the display name when known, otherwise the decimal number.
func (v EnumValue) String() string {
	if n := v.Name(); n != "" {
		return n
	}
	return strconv.FormatInt(v.Number, 10)
}

// Enum is a VARINT field carrying one of a set of named integer values. The
// integer is encoded as a signed varint.
type Enum struct {
	Base
	// Def is the default wire value for an unset field.
	Def int64

	byName map[string]int64 // keys upper-cased for case-insensitive matching
	byNum  map[int64]string
}

// NewEnum creates an enum field descriptor with the given name table.
func NewEnum(name string, num uint32, values map[string]int64, opts ...Option) (*Enum, error) {
	b, err := newBase(name, num, field.FTEnum, wire.Varint, opts...)
	if err != nil {
		return nil, err
	}
	d := &Enum{
		Base:   b,
		byName: make(map[string]int64, len(values)),
		byNum:  make(map[int64]string, len(values)),
	}
	for n, v := range values {
		key := strings.ToUpper(n)
		if _, ok := d.byName[key]; ok {
			return nil, errors.Errorf("enum field %q: duplicate value name %q", name, n)
		}
		d.byName[key] = v
		// First name registered for a number wins for display purposes.
		if _, ok := d.byNum[v]; !ok {
			d.byNum[v] = n
		}
	}
	return d, nil
}

// Validate accepts an integer, a case-insensitive known name, a numeric
// string, or a bool. Unknown names fail; unknown numbers are tolerated for
// forward compatibility.
func (d *Enum) Validate(v any) (any, error) {
	switch t := v.(type) {
	case EnumValue:
		return EnumValue{Number: t.Number, enum: d}, nil
	case bool:
		if t {
			return EnumValue{Number: 1, enum: d}, nil
		}
		return EnumValue{Number: 0, enum: d}, nil
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return EnumValue{Number: n, enum: d}, nil
		}
		if n, ok := d.byName[strings.ToUpper(t)]; ok {
			return EnumValue{Number: n, enum: d}, nil
		}
		return nil, TypeValueErrorf("field %q: unknown enum name %q", d.name, t)
	}
	n, err := coerceSigned(v)
	if err != nil {
		return nil, TypeValueErrorf("field %q: %v", d.name, err)
	}
	return EnumValue{Number: n, enum: d}, nil
}

func (d *Enum) ToWire(v any) ([]byte, error) {
	ev, ok := v.(EnumValue)
	if !ok {
		return nil, TypeValueErrorf("field %q: want EnumValue, got %T", d.name, v)
	}
	return wire.AppendSigned(append([]byte(nil), d.tag...), ev.Number), nil
}

func (d *Enum) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}
	n, _, err := wire.DecodeSigned(t.Payload, 0)
	if err != nil {
		return nil, err
	}
	return EnumValue{Number: n, enum: d}, nil
}

func (d *Enum) Default(Message) any {
	return EnumValue{Number: d.Def, enum: d}
}

// Bool is the two-valued specialization of Enum: 1="True", 0="False".
type Bool struct {
	Enum
}

// NewBool creates a boolean field descriptor.
func NewBool(name string, num uint32, opts ...Option) (*Bool, error) {
	e, err := NewEnum(name, num, map[string]int64{"True": 1, "False": 0}, opts...)
	if err != nil {
		return nil, err
	}
	e.kind = field.FTBool
	return &Bool{Enum: *e}, nil
}
