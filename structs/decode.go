package structs

import (
	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/mapping"
	"github.com/google/grr-sub020/wire"
)

// Unmarshal replaces the instance's contents with the decoded buffer. Field
// payloads are cached undecoded and materialize on first access. A scalar
// field appearing more than once keeps its last occurrence; a repeated field
// accumulates every occurrence in wire order. Fields whose tag matches no
// descriptor are preserved in arrival order for the next Marshal.
func (s *Struct) Unmarshal(data []byte) error {
	fields := map[uint32]*slot{}
	var unknown [][]byte

	for t, err := range wire.Split(data) {
		if err != nil {
			return err
		}
		d, ok := s.mapping.ByTag(t.TagValue())
		if !ok {
			unknown = append(unknown, t.Bytes())
			continue
		}
		if d.Kind() == field.FTList {
			sl := fields[d.FieldNum()]
			if sl == nil {
				sl = &slot{desc: d, value: d.Default(s)}
				fields[d.FieldNum()] = sl
			}
			r, ok := sl.value.(mapping.Repeated)
			if !ok {
				return wire.Errorf("type %s: field %q is repeated but holds %T", s.mapping.Name, d.Name(), sl.value)
			}
			if err := r.AppendWire(t); err != nil {
				return err
			}
			continue
		}
		fields[d.FieldNum()] = &slot{desc: d, raw: t.Bytes()}
	}

	s.fields = fields
	s.unknown = unknown
	s.dirty = false
	return nil
}
