// Package wire implements the protocol buffer wire encoding primitives: varints,
// tags, fixed-width integers and a splitter that walks a serialized buffer one
// field at a time. Everything above this package speaks in terms of the Triple
// type it produces.
package wire

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Type is the 3-bit wire type carried in the low bits of every tag.
type Type uint8

const (
	// Varint is a base-128 variable length integer.
	Varint Type = 0
	// Fixed64 is 8 raw little-endian bytes.
	Fixed64 Type = 1
	// LengthDelimited is a varint byte length followed by that many payload bytes.
	LengthDelimited Type = 2
	// StartGroup and EndGroup are the deprecated group markers. No encoder in this
	// module emits them and every decoder rejects them.
	StartGroup Type = 3
	EndGroup   Type = 4
	// Fixed32 is 4 raw little-endian bytes.
	Fixed32 Type = 5
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Varint:
		return "VARINT"
	case Fixed64:
		return "FIXED64"
	case LengthDelimited:
		return "LENGTH_DELIMITED"
	case StartGroup:
		return "START_GROUP"
	case EndGroup:
		return "END_GROUP"
	case Fixed32:
		return "FIXED32"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// valid reports if t is a wire type this module will encode or decode.
func (t Type) valid() bool {
	switch t {
	case Varint, Fixed64, LengthDelimited, Fixed32:
		return true
	}
	return false
}

// MaxVarintLen is the maximum number of bytes a 64-bit varint can occupy.
const MaxVarintLen = 10

// MaxFieldNum is the largest field number a tag can carry (2^29 - 1).
const MaxFieldNum = 1<<29 - 1

// DecodeError indicates a malformed byte stream: a truncated varint, a bad tag,
// a clipped payload or a deprecated wire type. It is data-correctable and is
// surfaced to the caller, never swallowed.
type DecodeError struct {
	msg string
}

// Error implements error.
func (e *DecodeError) Error() string {
	return e.msg
}

// Errorf creates a *DecodeError. Exported so the layers above can report
// malformed data with the same error type the splitter uses.
func Errorf(format string, args ...any) *DecodeError {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// AppendVarint appends the base-128 encoding of v to b. Seven bits per byte,
// low group first, high bit set on every byte except the last.
func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// EncodeVarint returns the base-128 encoding of v.
func EncodeVarint(v uint64) []byte {
	return AppendVarint(make([]byte, 0, MaxVarintLen), v)
}

// DecodeVarint decodes a varint from b starting at pos. It returns the value
// and the position of the first byte after the varint. More than MaxVarintLen
// bytes without a terminator is a DecodeError.
func DecodeVarint(b []byte, pos int) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= MaxVarintLen {
			return 0, pos, Errorf("varint at offset %d exceeds %d bytes", pos, MaxVarintLen)
		}
		if pos+i >= len(b) {
			return 0, pos, Errorf("truncated varint at offset %d", pos)
		}
		c := b[pos+i]
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return v, pos + i + 1, nil
		}
		shift += 7
	}
}

// AppendSigned appends v encoded as its unsigned 64-bit two's-complement
// pattern: a negative value is mapped to v + 2^64 before the unsigned varint
// path runs. This is NOT zigzag encoding; it matches standard proto int64
// fields, where -1 always costs ten bytes.
func AppendSigned(b []byte, v int64) []byte {
	return AppendVarint(b, uint64(v))
}

// EncodeSigned returns the signed varint encoding of v. See AppendSigned.
func EncodeSigned(v int64) []byte {
	return AppendSigned(make([]byte, 0, MaxVarintLen), v)
}

// DecodeSigned is the inverse of AppendSigned: magnitudes above 2^63-1 re-wrap
// into negative space.
func DecodeSigned(b []byte, pos int) (int64, int, error) {
	u, n, err := DecodeVarint(b, pos)
	if err != nil {
		return 0, pos, err
	}
	return int64(u), n, nil
}

// FixedInt constrains the widths the fixed wire types carry: the unsigned
// 32 and 64 bit integers.
type FixedInt interface {
	constraints.Unsigned
	~uint32 | ~uint64
}

// AppendFixed appends the little-endian fixed-width encoding of v. The width
// is the byte size of the integer type: 4 for uint32, 8 for uint64.
func AppendFixed[T FixedInt](b []byte, v T) []byte {
	if unsafe.Sizeof(v) == 4 {
		u := uint32(v)
		return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	u := uint64(v)
	return append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24),
		byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
}

// DecodeFixed32 reads 4 little-endian bytes at pos.
func DecodeFixed32(b []byte, pos int) (uint32, int, error) {
	if len(b)-pos < 4 {
		return 0, pos, Errorf("truncated fixed32 at offset %d", pos)
	}
	v := uint32(b[pos]) | uint32(b[pos+1])<<8 | uint32(b[pos+2])<<16 | uint32(b[pos+3])<<24
	return v, pos + 4, nil
}

// DecodeFixed64 reads 8 little-endian bytes at pos.
func DecodeFixed64(b []byte, pos int) (uint64, int, error) {
	if len(b)-pos < 8 {
		return 0, pos, Errorf("truncated fixed64 at offset %d", pos)
	}
	v := uint64(b[pos]) | uint64(b[pos+1])<<8 | uint64(b[pos+2])<<16 | uint64(b[pos+3])<<24 |
		uint64(b[pos+4])<<32 | uint64(b[pos+5])<<40 | uint64(b[pos+6])<<48 | uint64(b[pos+7])<<56
	return v, pos + 8, nil
}

// MakeTag packs a field number and wire type into a tag value.
func MakeTag(fieldNum uint32, t Type) uint64 {
	return uint64(fieldNum)<<3 | uint64(t)
}

// SplitTag unpacks a tag value into its field number and wire type.
func SplitTag(tag uint64) (uint32, Type) {
	return uint32(tag >> 3), Type(tag & 0x7)
}

// AppendTag appends the varint encoding of the tag for (fieldNum, t).
func AppendTag(b []byte, fieldNum uint32, t Type) []byte {
	return AppendVarint(b, MakeTag(fieldNum, t))
}

// EncodeTag returns the varint encoding of the tag for (fieldNum, t).
func EncodeTag(fieldNum uint32, t Type) []byte {
	return AppendTag(make([]byte, 0, 5), fieldNum, t)
}
