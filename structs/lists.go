package structs

import (
	"github.com/google/grr-sub020/mapping"
	"github.com/google/grr-sub020/wire"
)

// entry is the per-element cell of a List, mirroring the slot of a Struct:
// the decoded value, the element's complete wire bytes, or both.
type entry struct {
	value any
	raw   []byte
}

// List is the container behind a repeated field. Elements decoded from the
// wire stay undecoded until indexed; appends go through the element
// descriptor's validation. There is no packed form, so every element carries
// its own tag on the wire and order is wire order.
type List struct {
	delegate mapping.FieldDescr
	elems    []entry
	dirty    bool
}

// NewList creates an empty container for the element descriptor.
func NewList(delegate mapping.FieldDescr) *List {
	return &List{delegate: delegate}
}

// Delegate returns the element descriptor the container was built for.
func (l *List) Delegate() mapping.FieldDescr { return l.delegate }

// Len is the number of elements, decoded or not.
func (l *List) Len() int { return len(l.elems) }

// Dirty reports whether the container changed since it was last marshaled or
// filled from the wire. Nested struct elements handed out by Index count.
func (l *List) Dirty() bool {
	if l.dirty {
		return true
	}
	for i := range l.elems {
		if l.elems[i].value != nil && l.delegate.IsDirty(l.elems[i].value) {
			return true
		}
	}
	return false
}

// AppendWire appends one undecoded element during decode of the containing
// struct. It does not mark the container dirty.
func (l *List) AppendWire(t wire.Triple) error {
	if t.Type != l.delegate.WireType() {
		return wire.Errorf("field %q: repeated element has wire type %v, want %v",
			l.delegate.Name(), t.Type, l.delegate.WireType())
	}
	l.elems = append(l.elems, entry{raw: t.Bytes()})
	return nil
}

// Append validates and appends values.
func (l *List) Append(values ...any) error {
	for _, v := range values {
		val, err := l.delegate.Validate(v)
		if err != nil {
			return err
		}
		l.elems = append(l.elems, entry{value: val})
	}
	if len(values) > 0 {
		l.dirty = true
	}
	return nil
}

// MustAppend is like Append but panics on error.
func (l *List) MustAppend(values ...any) {
	if err := l.Append(values...); err != nil {
		panic(err)
	}
}

// Index returns the decoded element at i, materializing it on first access.
func (l *List) Index(i int) (any, error) {
	if i < 0 || i >= len(l.elems) {
		return nil, mapping.TypeValueErrorf("field %q: index %d out of range [0, %d)", l.delegate.Name(), i, len(l.elems))
	}
	e := &l.elems[i]
	if e.value != nil {
		return e.value, nil
	}
	t, err := wire.SplitOne(e.raw)
	if err != nil {
		return nil, err
	}
	v, err := l.delegate.FromWire(t, nil)
	if err != nil {
		return nil, err
	}
	e.value = v
	return v, nil
}

// MustIndex is like Index but panics on error.
func (l *List) MustIndex(i int) any {
	v, err := l.Index(i)
	if err != nil {
		panic(err)
	}
	return v
}

// Slice materializes every element and returns them in order. The values are
// the container's own decoded cells, not copies, so mutating a returned
// nested struct mutates the container.
func (l *List) Slice() ([]any, error) {
	out := make([]any, len(l.elems))
	for i := range l.elems {
		v, err := l.Index(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SubList returns a new container sharing the delegate, holding the elements
// in [from, to). Element cells are shared, so decode caching and nested
// struct mutation are visible through both containers.
func (l *List) SubList(from, to int) (*List, error) {
	if from < 0 || to > len(l.elems) || from > to {
		return nil, mapping.TypeValueErrorf("field %q: sublist [%d, %d) out of range [0, %d)", l.delegate.Name(), from, to, len(l.elems))
	}
	n := NewList(l.delegate)
	n.elems = append([]entry(nil), l.elems[from:to]...)
	return n, nil
}

// MarshalWire encodes every element as its own tagged field, reusing cached
// element bytes where the element has not changed. A successful encode leaves
// the container clean.
func (l *List) MarshalWire() ([]byte, error) {
	var out []byte
	for i := range l.elems {
		e := &l.elems[i]
		if e.raw != nil && (e.value == nil || !l.delegate.IsDirty(e.value)) {
			out = append(out, e.raw...)
			continue
		}
		b, err := l.delegate.ToWire(e.value)
		if err != nil {
			return nil, err
		}
		e.raw = b
		out = append(out, b...)
	}
	l.dirty = false
	return out, nil
}

// Equal reports element-wise value equality with another container for the
// same element descriptor.
func (l *List) Equal(o mapping.Repeated) bool {
	ol, ok := o.(*List)
	if !ok {
		return false
	}
	if l.delegate != ol.delegate || len(l.elems) != len(ol.elems) {
		return false
	}
	for i := range l.elems {
		a, err := l.Index(i)
		if err != nil {
			return false
		}
		b, err := ol.Index(i)
		if err != nil {
			return false
		}
		if !valueEqual(a, b) {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the container.
func (l *List) Copy() *List {
	n := NewList(l.delegate)
	n.elems = make([]entry, len(l.elems))
	for i := range l.elems {
		e := entry{}
		if l.elems[i].raw != nil {
			e.raw = append([]byte(nil), l.elems[i].raw...)
		}
		if l.elems[i].value != nil {
			e.value = copyValue(l.elems[i].value)
		}
		n.elems[i] = e
	}
	n.dirty = l.dirty
	return n
}
