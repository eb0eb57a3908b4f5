// Package field details the field kinds supported by the struct runtime. A
// kind identifies the descriptor behavior for a field; the wire type it maps
// to lives with the descriptor in the mapping package.
package field

import "fmt"

// Type represents the kind of data held in a field.
type Type uint8

const (
	FTUnknown  Type = 0  // Unknown
	FTString   Type = 1  // string
	FTBytes    Type = 2  // bytes
	FTUint32   Type = 3  // uint32
	FTUint64   Type = 4  // uint64
	FTInt64    Type = 5  // int64
	FTFixed32  Type = 6  // fixed32
	FTFixed64  Type = 7  // fixed64
	FTFloat32  Type = 8  // float32
	FTFloat64  Type = 9  // float64
	FTEnum     Type = 10 // enum
	FTBool     Type = 11 // bool
	FTStruct   Type = 12 // struct
	FTDynamic  Type = 13 // dynamic struct
	FTAny      Type = 14 // any
	FTSemantic Type = 15 // semantic value
	FTList     Type = 16 // list
)

var typeNames = map[Type]string{
	FTUnknown:  "Unknown",
	FTString:   "string",
	FTBytes:    "bytes",
	FTUint32:   "uint32",
	FTUint64:   "uint64",
	FTInt64:    "int64",
	FTFixed32:  "fixed32",
	FTFixed64:  "fixed64",
	FTFloat32:  "float32",
	FTFloat64:  "float64",
	FTEnum:     "enum",
	FTBool:     "bool",
	FTStruct:   "struct",
	FTDynamic:  "dynamic struct",
	FTAny:      "any",
	FTSemantic: "semantic value",
	FTList:     "list",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// IsContainer reports whether a kind materializes its default into the
// instance on first access so later mutation of the returned default is
// observed. Scalar kinds return defaults by value instead.
func IsContainer(t Type) bool {
	switch t {
	case FTStruct, FTDynamic, FTList:
		return true
	}
	return false
}
