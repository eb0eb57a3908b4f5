// Package protostruct is a schema-driven serialization runtime wire
// compatible with protocol buffers. Struct types are described at runtime by
// a mapping.Map of field descriptors; instances decode lazily, preserve
// unknown wire fields, and re-encode untouched fields from their cached
// bytes.
package protostruct

import (
	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/mapping"
	"github.com/google/grr-sub020/structs"
)

// FieldType identifies the behavior of a field descriptor.
type FieldType = field.Type

const (
	FTUnknown  = field.FTUnknown
	FTString   = field.FTString
	FTBytes    = field.FTBytes
	FTUint32   = field.FTUint32
	FTUint64   = field.FTUint64
	FTInt64    = field.FTInt64
	FTFixed32  = field.FTFixed32
	FTFixed64  = field.FTFixed64
	FTFloat32  = field.FTFloat32
	FTFloat64  = field.FTFloat64
	FTEnum     = field.FTEnum
	FTBool     = field.FTBool
	FTStruct   = field.FTStruct
	FTDynamic  = field.FTDynamic
	FTAny      = field.FTAny
	FTSemantic = field.FTSemantic
	FTList     = field.FTList
)

// Struct is one instance of a registered struct type.
type Struct = structs.Struct

// Map is the schema of one struct type.
type Map = mapping.Map

// New creates an empty instance of the type described by m, freezing the
// schema if this is its first instance.
func New(m *Map) *Struct {
	return structs.New(m)
}

// NewByName creates an empty instance of the named registered type.
func NewByName(name string) (*Struct, error) {
	m, ok := mapping.LookupMessage(name)
	if !ok {
		return nil, mapping.TypeValueErrorf("no struct type registered under %q", name)
	}
	return structs.New(m), nil
}

// Marshal serializes a struct instance.
func Marshal(s *Struct) ([]byte, error) {
	return s.Marshal()
}

// Unmarshal decodes data into a fresh instance of the type described by m.
func Unmarshal(m *Map, data []byte) (*Struct, error) {
	s := structs.New(m)
	if err := s.Unmarshal(data); err != nil {
		return nil, err
	}
	return s, nil
}
