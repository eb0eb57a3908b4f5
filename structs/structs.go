// Package structs is the struct instance runtime: typed dynamic records built
// from a frozen mapping.Map. Fields decode lazily from their cached wire
// bytes, mutations are tracked per instance, and fields that arrive on the
// wire without a matching descriptor survive a decode/encode round trip
// byte for byte.
package structs

import (
	"bytes"

	"github.com/google/grr-sub020/mapping"
	"github.com/google/grr-sub020/wire"
)

func init() {
	mapping.NewMessage = func(m *mapping.Map) mapping.Message { return New(m) }
	mapping.NewRepeated = func(d mapping.FieldDescr) mapping.Repeated { return NewList(d) }
}

// slot is the per-field cell: the decoded value, the cached wire bytes, or
// both. raw holds the field's complete encoded form (tag included). value nil
// with raw set means not yet decoded; raw nil with value set means mutated
// since the last encode.
type slot struct {
	desc  mapping.FieldDescr
	value any
	raw   []byte
}

// encoded returns the slot's wire bytes, reusing the cache when the value has
// not changed underneath it.
func (sl *slot) encoded() ([]byte, error) {
	if sl.raw != nil && (sl.value == nil || !sl.desc.IsDirty(sl.value)) {
		return sl.raw, nil
	}
	if sl.value == nil {
		return nil, nil
	}
	b, err := sl.desc.ToWire(sl.value)
	if err != nil {
		return nil, err
	}
	sl.raw = b
	return b, nil
}

// Struct is one instance of a registered struct type.
type Struct struct {
	mapping *mapping.Map
	fields  map[uint32]*slot
	unknown [][]byte
	dirty   bool
}

// New creates an empty instance of the type described by m. Creating the
// first instance freezes the schema.
func New(m *mapping.Map) *Struct {
	m.Freeze()
	return &Struct{
		mapping: m,
		fields:  map[uint32]*slot{},
	}
}

// Descriptor returns the schema the instance was created from.
func (s *Struct) Descriptor() *mapping.Map {
	return s.mapping
}

// Get returns the decoded value of a field. An unset field yields the
// descriptor's default; for container kinds the default is stored into the
// instance so mutations of the returned value are observed.
func (s *Struct) Get(name string) (any, error) {
	d, ok := s.mapping.ByName(name)
	if !ok {
		return nil, mapping.TypeValueErrorf("type %s: no field named %q", s.mapping.Name, name)
	}
	if sl, ok := s.fields[d.FieldNum()]; ok {
		return s.materialize(sl)
	}
	def := d.Default(s)
	if d.DefaultOnAccess() && def != nil {
		s.fields[d.FieldNum()] = &slot{desc: d, value: def}
	}
	return def, nil
}

// MustGet is like Get but panics on error.
func (s *Struct) MustGet(name string) any {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// materialize decodes a slot's wire bytes into its value cache.
func (s *Struct) materialize(sl *slot) (any, error) {
	if sl.value != nil {
		return sl.value, nil
	}
	if sl.raw == nil {
		return sl.desc.Default(s), nil
	}
	t, err := wire.SplitOne(sl.raw)
	if err != nil {
		return nil, err
	}
	v, err := sl.desc.FromWire(t, s)
	if err != nil {
		return nil, err
	}
	sl.value = v
	return v, nil
}

// Set validates and stores a field value, invalidating the field's wire cache
// and marking the instance dirty. Setting nil clears the field.
func (s *Struct) Set(name string, v any) error {
	d, ok := s.mapping.ByName(name)
	if !ok {
		return mapping.TypeValueErrorf("type %s: no field named %q", s.mapping.Name, name)
	}
	if v == nil {
		if _, ok := s.fields[d.FieldNum()]; ok {
			delete(s.fields, d.FieldNum())
			s.dirty = true
		}
		return nil
	}
	val, err := d.Validate(v)
	if err != nil {
		return err
	}
	s.fields[d.FieldNum()] = &slot{desc: d, value: val}
	s.dirty = true
	return nil
}

// MustSet is like Set but panics on error.
func (s *Struct) MustSet(name string, v any) {
	if err := s.Set(name, v); err != nil {
		panic(err)
	}
}

// Has reports whether the field is set, either decoded or still in wire form.
func (s *Struct) Has(name string) bool {
	d, ok := s.mapping.ByName(name)
	if !ok {
		return false
	}
	sl, ok := s.fields[d.FieldNum()]
	return ok && (sl.value != nil || sl.raw != nil)
}

// Clear unsets a field. Clearing a set field marks the instance dirty.
func (s *Struct) Clear(name string) error {
	d, ok := s.mapping.ByName(name)
	if !ok {
		return mapping.TypeValueErrorf("type %s: no field named %q", s.mapping.Name, name)
	}
	if _, ok := s.fields[d.FieldNum()]; ok {
		delete(s.fields, d.FieldNum())
		s.dirty = true
	}
	return nil
}

// Dirty reports whether the instance changed since it was last marshaled or
// unmarshaled. A clean instance may still be dirty through a mutated nested
// container handed out by Get.
func (s *Struct) Dirty() bool {
	if s.dirty {
		return true
	}
	for _, sl := range s.fields {
		if sl.value != nil && sl.desc.IsDirty(sl.value) {
			return true
		}
	}
	return false
}

// UnknownLen is the number of preserved wire fields that matched no
// descriptor on decode.
func (s *Struct) UnknownLen() int {
	return len(s.unknown)
}

// Copy returns an independent copy. Undecoded fields copy their wire bytes;
// decoded container values are deep copied.
func (s *Struct) Copy() mapping.Message {
	n := New(s.mapping)
	for num, sl := range s.fields {
		ns := &slot{desc: sl.desc}
		if sl.raw != nil {
			ns.raw = append([]byte(nil), sl.raw...)
		}
		if sl.value != nil {
			ns.value = copyValue(sl.value)
		}
		n.fields[num] = ns
	}
	for _, u := range s.unknown {
		n.unknown = append(n.unknown, append([]byte(nil), u...))
	}
	n.dirty = s.dirty
	return n
}

// copyValue deep copies the mutable decoded representations and shares the
// immutable ones.
func copyValue(v any) any {
	switch t := v.(type) {
	case mapping.Message:
		return t.Copy()
	case *List:
		return t.Copy()
	case []byte:
		return append([]byte(nil), t...)
	}
	return v
}

// Equal reports field-by-field value equality with another instance of the
// same type. Unknown fields must match byte for byte.
func (s *Struct) Equal(o *Struct) bool {
	if o == nil {
		return false
	}
	if s.mapping != o.mapping {
		return false
	}
	for _, d := range s.mapping.Fields() {
		a, aok := s.fields[d.FieldNum()]
		b, bok := o.fields[d.FieldNum()]
		if aok != bok {
			return false
		}
		if !aok {
			continue
		}
		// Matching wire caches decide without decoding, but only while
		// neither side holds a materialized value that mutated since the
		// cache was written.
		aClean := a.value == nil || !a.desc.IsDirty(a.value)
		bClean := b.value == nil || !b.desc.IsDirty(b.value)
		if aClean && bClean && a.raw != nil && bytes.Equal(a.raw, b.raw) {
			continue
		}
		av, err := s.materialize(a)
		if err != nil {
			return false
		}
		bv, err := o.materialize(b)
		if err != nil {
			return false
		}
		if !valueEqual(av, bv) {
			return false
		}
	}
	if len(s.unknown) != len(o.unknown) {
		return false
	}
	for i := range s.unknown {
		if !bytes.Equal(s.unknown[i], o.unknown[i]) {
			return false
		}
	}
	return true
}

// EqualMessage implements the mapping.Message contract.
func (s *Struct) EqualMessage(o mapping.Message) bool {
	os, ok := o.(*Struct)
	if !ok {
		return false
	}
	return s.Equal(os)
}

// valueEqual compares two decoded field values.
func valueEqual(a, b any) bool {
	switch at := a.(type) {
	case []byte:
		bt, ok := b.([]byte)
		return ok && bytes.Equal(at, bt)
	case mapping.EnumValue:
		bt, ok := b.(mapping.EnumValue)
		return ok && at.Number == bt.Number
	case mapping.Message:
		bt, ok := b.(mapping.Message)
		return ok && at.EqualMessage(bt)
	case mapping.Repeated:
		bt, ok := b.(mapping.Repeated)
		return ok && at.Equal(bt)
	case mapping.Semantic:
		bt, ok := b.(mapping.Semantic)
		if !ok || at.SemanticKind() != bt.SemanticKind() {
			return false
		}
		ap, err := at.ToPrimitive()
		if err != nil {
			return false
		}
		bp, err := bt.ToPrimitive()
		if err != nil {
			return false
		}
		return valueEqual(ap, bp)
	}
	return a == b
}
