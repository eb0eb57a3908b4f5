package mapping

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/wire"
)

// TypeURLPrefix is prepended to a struct type's name to form the type_url of
// an Any envelope.
const TypeURLPrefix = "type.googleapis.com/"

// The fixed set of primitive wrapper types an Any envelope may carry. Each
// wrapper exposes its payload in field 1 with the corresponding primitive wire
// encoding.
const (
	wrapperBytes  = "google.protobuf.BytesValue"
	wrapperString = "google.protobuf.StringValue"
	wrapperInt64  = "google.protobuf.Int64Value"
	wrapperUint32 = "google.protobuf.UInt32Value"
	wrapperUint64 = "google.protobuf.UInt64Value"
)

// Envelope field numbers, per the google.protobuf.Any schema.
const (
	anyTypeURLNum = 1
	anyValueNum   = 2
)

// Any is a LENGTH_DELIMITED field whose payload is itself a two-field
// envelope: type_url (string, field 1) and value (bytes, field 2). On decode,
// a type_url naming one of the primitive wrappers unwraps to the primitive;
// any other type_url resolves a struct type by its trailing name component.
type Any struct {
	Base
}

// NewAny creates a polymorphic Any-envelope field descriptor.
func NewAny(name string, num uint32, opts ...Option) (*Any, error) {
	b, err := newBase(name, num, field.FTAny, wire.LengthDelimited, opts...)
	if err != nil {
		return nil, err
	}
	return &Any{Base: b}, nil
}

// Validate accepts a struct instance or one of the primitives covered by the
// wrapper set.
func (d *Any) Validate(v any) (any, error) {
	switch t := v.(type) {
	case Message, []byte, string, int64, uint32, uint64:
		return v, nil
	case int:
		return int64(t), nil
	}
	return nil, TypeValueErrorf("field %q: type %T cannot be carried in an Any envelope", d.name, v)
}

func (d *Any) ToWire(v any) ([]byte, error) {
	var typeURL string
	var value []byte

	switch t := v.(type) {
	case []byte:
		typeURL = TypeURLPrefix + wrapperBytes
		value = appendWrapped(nil, wire.LengthDelimited, func(b []byte) []byte {
			b = wire.AppendVarint(b, uint64(len(t)))
			return append(b, t...)
		})
	case string:
		typeURL = TypeURLPrefix + wrapperString
		value = appendWrapped(nil, wire.LengthDelimited, func(b []byte) []byte {
			b = wire.AppendVarint(b, uint64(len(t)))
			return append(b, t...)
		})
	case int64:
		typeURL = TypeURLPrefix + wrapperInt64
		value = appendWrapped(nil, wire.Varint, func(b []byte) []byte {
			return wire.AppendSigned(b, t)
		})
	case uint32:
		typeURL = TypeURLPrefix + wrapperUint32
		value = appendWrapped(nil, wire.Varint, func(b []byte) []byte {
			return wire.AppendVarint(b, uint64(t))
		})
	case uint64:
		typeURL = TypeURLPrefix + wrapperUint64
		value = appendWrapped(nil, wire.Varint, func(b []byte) []byte {
			return wire.AppendVarint(b, t)
		})
	case Message:
		typeURL = TypeURLPrefix + t.Descriptor().Name
		payload, err := t.Marshal()
		if err != nil {
			return nil, err
		}
		value = payload
	default:
		return nil, TypeValueErrorf("field %q: type %T cannot be carried in an Any envelope", d.name, v)
	}

	var env []byte
	env = wire.AppendTag(env, anyTypeURLNum, wire.LengthDelimited)
	env = wire.AppendVarint(env, uint64(len(typeURL)))
	env = append(env, typeURL...)
	env = wire.AppendTag(env, anyValueNum, wire.LengthDelimited)
	env = wire.AppendVarint(env, uint64(len(value)))
	env = append(env, value...)

	return d.appendLenDelim(nil, env), nil
}

func (d *Any) FromWire(t wire.Triple, _ Message) (any, error) {
	if err := d.checkWireType(t); err != nil {
		return nil, err
	}

	var typeURL string
	var value []byte
	for ft, err := range wire.Split(t.Payload) {
		if err != nil {
			return nil, err
		}
		switch ft.FieldNum {
		case anyTypeURLNum:
			if ft.Type != wire.LengthDelimited {
				return nil, wire.Errorf("field %q: Any type_url has wire type %v", d.name, ft.Type)
			}
			if !utf8.Valid(ft.Payload) {
				return nil, wire.Errorf("field %q: Any type_url is not valid UTF-8", d.name)
			}
			typeURL = string(ft.Payload)
		case anyValueNum:
			if ft.Type != wire.LengthDelimited {
				return nil, wire.Errorf("field %q: Any value has wire type %v", d.name, ft.Type)
			}
			value = ft.Payload
		}
	}
	if typeURL == "" {
		return nil, wire.Errorf("field %q: Any envelope carries no type_url", d.name)
	}

	// The trailing name component identifies the type regardless of prefix.
	name := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		name = typeURL[i+1:]
	}

	switch name {
	case wrapperBytes:
		p, err := wrapperPayload(value, wire.LengthDelimited)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(p))
		copy(out, p)
		return out, nil
	case wrapperString:
		p, err := wrapperPayload(value, wire.LengthDelimited)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(p) {
			return nil, wire.Errorf("field %q: StringValue payload is not valid UTF-8", d.name)
		}
		return string(p), nil
	case wrapperInt64:
		p, err := wrapperPayload(value, wire.Varint)
		if err != nil {
			return nil, err
		}
		n, _, err := wire.DecodeSigned(p, 0)
		return n, err
	case wrapperUint32:
		p, err := wrapperPayload(value, wire.Varint)
		if err != nil {
			return nil, err
		}
		u, _, err := wire.DecodeVarint(p, 0)
		if err != nil {
			return nil, err
		}
		if u > math.MaxUint32 {
			return nil, wire.Errorf("field %q: UInt32Value %d overflows uint32", d.name, u)
		}
		return uint32(u), nil
	case wrapperUint64:
		p, err := wrapperPayload(value, wire.Varint)
		if err != nil {
			return nil, err
		}
		u, _, err := wire.DecodeVarint(p, 0)
		return u, err
	}

	target, ok := LookupMessage(name)
	if !ok {
		return nil, wire.Errorf("field %q: type_url %q names no known wrapper and no known struct type", d.name, typeURL)
	}
	m := NewMessage(target)
	if err := m.Unmarshal(value); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Any) Default(Message) any { return nil }

func (d *Any) IsDirty(v any) bool {
	if m, ok := v.(Message); ok {
		return m.Dirty()
	}
	return false
}

// appendWrapped builds a one-field wrapper message: field 1 with the given
// wire type, payload written by fill.
func appendWrapped(b []byte, wt wire.Type, fill func([]byte) []byte) []byte {
	b = wire.AppendTag(b, 1, wt)
	return fill(b)
}

// wrapperPayload extracts field 1 of a wrapper message. An absent field is the
// wrapper's zero value, returned as an empty payload for varints handled by
// the callers via DecodeVarint on a zero byte.
func wrapperPayload(value []byte, want wire.Type) ([]byte, error) {
	if len(value) == 0 {
		if want == wire.Varint {
			return []byte{0}, nil
		}
		return nil, nil
	}
	var payload []byte
	for t, err := range wire.Split(value) {
		if err != nil {
			return nil, err
		}
		if t.FieldNum != 1 {
			continue
		}
		if t.Type != want {
			return nil, wire.Errorf("wrapper field 1: want wire type %v, got %v", want, t.Type)
		}
		payload = t.Payload
	}
	if payload == nil {
		if want == wire.Varint {
			return []byte{0}, nil
		}
	}
	return payload, nil
}
