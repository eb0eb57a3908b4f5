package structs

import (
	"sort"

	"github.com/gostdlib/base/context"
)

// Marshal serializes the instance: known fields in ascending field number
// order, then preserved unknown fields in arrival order. Fields whose wire
// cache is still valid are emitted from the cache without re-encoding. A
// successful Marshal leaves the instance clean.
func (s *Struct) Marshal() ([]byte, error) {
	ctx := context.Background()
	buf := buffers.Get(ctx)
	buf.Reset()
	defer buffers.Put(ctx, buf)

	nums := make([]uint32, 0, len(s.fields))
	for num := range s.fields {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, num := range nums {
		b, err := s.fields[num].encoded()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	for _, u := range s.unknown {
		buf.Write(u)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	s.dirty = false
	return out, nil
}

// MustMarshal is like Marshal but panics on error.
func (s *Struct) MustMarshal() []byte {
	b, err := s.Marshal()
	if err != nil {
		panic(err)
	}
	return b
}
