// Package conversions is a set of unsafe conversions between strings and byte
// slices, used to avoid allocations on the encode hot path. Decode paths copy
// instead, because payloads alias the caller's buffer.
package conversions

import "unsafe"

// UnsafeGetBytes returns the bytes underlying s without copying. The result
// must be treated as read-only.
func UnsafeGetBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
