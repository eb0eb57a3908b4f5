package mapping_test

import (
	"errors"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/google/grr-sub020/field"
	"github.com/google/grr-sub020/mapping"
	"github.com/google/grr-sub020/structs"
	"github.com/google/grr-sub020/wire"
)

func TestRegisterIndices(t *testing.T) {
	m := mapping.NewMap("RegisterIndices")
	name, err := mapping.NewString("name", 1)
	if err != nil {
		t.Fatalf("TestRegisterIndices: unexpected error: %s", err)
	}
	count, err := mapping.NewUint64("count", 2)
	if err != nil {
		t.Fatalf("TestRegisterIndices: unexpected error: %s", err)
	}
	m.MustRegister(name)
	m.MustRegister(count)

	if d, ok := m.ByName("count"); !ok || d.FieldNum() != 2 {
		t.Fatalf("TestRegisterIndices(ByName): got (%v, %v)", d, ok)
	}
	if d, ok := m.ByNum(1); !ok || d.Name() != "name" {
		t.Fatalf("TestRegisterIndices(ByNum): got (%v, %v)", d, ok)
	}
	// Tag of field 1 LENGTH_DELIMITED is 0x0A.
	if d, ok := m.ByTag(0x0A); !ok || d.Name() != "name" {
		t.Fatalf("TestRegisterIndices(ByTag): got (%v, %v)", d, ok)
	}
	if _, ok := m.ByTag(0x0B); ok {
		t.Fatalf("TestRegisterIndices(ByTag): lookup of unregistered tag succeeded")
	}
}

func TestRegisterErrors(t *testing.T) {
	m := mapping.NewMap("RegisterErrors")
	a := mapping.MustNew(mapping.NewString("a", 1))
	m.MustRegister(a)

	dupNum := mapping.MustNew(mapping.NewUint64("b", 1))
	if err := m.Register(dupNum); err == nil {
		t.Fatalf("TestRegisterErrors(dup number): expected error, got none")
	}
	dupName := mapping.MustNew(mapping.NewUint64("a", 2))
	if err := m.Register(dupName); err == nil {
		t.Fatalf("TestRegisterErrors(dup name): expected error, got none")
	}

	m.Freeze()
	late := mapping.MustNew(mapping.NewUint64("c", 3))
	err := m.Register(late)
	if err == nil {
		t.Fatalf("TestRegisterErrors(frozen): expected error, got none")
	}
	var tve *mapping.TypeValueError
	if !errors.As(err, &tve) {
		t.Fatalf("TestRegisterErrors(frozen): error %T is not a *TypeValueError", err)
	}

	if _, err := mapping.NewString("", 1); err == nil {
		t.Fatalf("TestRegisterErrors(empty name): expected error, got none")
	}
	if _, err := mapping.NewString("x", 0); err == nil {
		t.Fatalf("TestRegisterErrors(field number 0): expected error, got none")
	}
	if _, err := mapping.NewString("x", wire.MaxFieldNum+1); err == nil {
		t.Fatalf("TestRegisterErrors(field number too large): expected error, got none")
	}
}

func TestLateBinding(t *testing.T) {
	owner := mapping.NewMap("LateBindingOwner")
	child := mapping.MustNew(mapping.NewEmbedded("child", 1, "LateBindingChild"))
	owner.MustRegister(child)

	if !child.LateBound() {
		t.Fatalf("TestLateBinding: descriptor resolved before target registered")
	}
	if got := owner.PendingFields(); len(got) != 1 || got[0] != "child" {
		t.Fatalf("TestLateBinding(PendingFields): got %v, want [child]", got)
	}
	if _, ok := owner.ByTag(child.TagValue()); ok {
		t.Fatalf("TestLateBinding: late-bound descriptor present in tag index")
	}
	if _, err := child.Validate(nil); err == nil {
		t.Fatalf("TestLateBinding: Validate succeeded before the target resolved")
	}

	target := mapping.NewMap("LateBindingChild")
	target.MustRegister(mapping.MustNew(mapping.NewUint64("n", 1)))
	mapping.MustRegisterMessage(target)

	if child.LateBound() {
		t.Fatalf("TestLateBinding: descriptor still late bound after target registered")
	}
	if child.Target() != target {
		t.Fatalf("TestLateBinding: resolved to wrong target")
	}
	if got := owner.PendingFields(); len(got) != 0 {
		t.Fatalf("TestLateBinding(PendingFields): got %v, want none", got)
	}
	if _, ok := owner.ByTag(child.TagValue()); !ok {
		t.Fatalf("TestLateBinding: resolved descriptor missing from tag index")
	}

	// The field is encodable and decodable once resolved, with no
	// re-registration of the owning type.
	s := structs.New(owner)
	c := structs.New(target)
	c.MustSet("n", uint64(7))
	s.MustSet("child", c)
	b, err := s.Marshal()
	if err != nil {
		t.Fatalf("TestLateBinding(Marshal): unexpected error: %s", err)
	}
	tr, err := wire.SplitOne(b)
	if err != nil {
		t.Fatalf("TestLateBinding(SplitOne): unexpected error: %s", err)
	}
	if tr.TagValue() != child.TagValue() {
		t.Fatalf("TestLateBinding: emitted tag %#x, want %#x", tr.TagValue(), child.TagValue())
	}

	out := structs.New(owner)
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("TestLateBinding(Unmarshal): unexpected error: %s", err)
	}
	got := out.MustGet("child").(*structs.Struct)
	if got.MustGet("n") != uint64(7) {
		t.Fatalf("TestLateBinding(round trip): got %v, want 7", got.MustGet("n"))
	}
}

func TestRegisterMessageDup(t *testing.T) {
	m := mapping.NewMap("RegisterMessageDup")
	mapping.MustRegisterMessage(m)
	if err := mapping.RegisterMessage(mapping.NewMap("RegisterMessageDup")); err == nil {
		t.Fatalf("TestRegisterMessageDup: expected error, got none")
	}
}

func TestEnumValidate(t *testing.T) {
	d, err := mapping.NewEnum("kind", 1, map[string]int64{"CAT": 1, "DOG": 2})
	if err != nil {
		t.Fatalf("TestEnumValidate: unexpected error: %s", err)
	}

	tests := []struct {
		desc string
		in   any
		want int64
		err  bool
	}{
		{desc: "int", in: 2, want: 2},
		{desc: "int64", in: int64(1), want: 1},
		{desc: "name", in: "DOG", want: 2},
		{desc: "name case insensitive", in: "dog", want: 2},
		{desc: "numeric string", in: "7", want: 7},
		{desc: "unknown number tolerated", in: 42, want: 42},
		{desc: "bool true", in: true, want: 1},
		{desc: "unknown name", in: "FISH", err: true},
		{desc: "bad type", in: 1.5, err: true},
	}

	for _, test := range tests {
		got, err := d.Validate(test.in)
		switch {
		case err != nil && !test.err:
			t.Fatalf("TestEnumValidate(%s): unexpected error: %s", test.desc, err)
		case err == nil && test.err:
			t.Fatalf("TestEnumValidate(%s): expected error, got none", test.desc)
		case err != nil:
			var tve *mapping.TypeValueError
			if !errors.As(err, &tve) {
				t.Fatalf("TestEnumValidate(%s): error %T is not a *TypeValueError", test.desc, err)
			}
			continue
		}
		ev := got.(mapping.EnumValue)
		if ev.Number != test.want {
			t.Fatalf("TestEnumValidate(%s): got %d, want %d", test.desc, ev.Number, test.want)
		}
	}

	ev := mapping.MustNew(d.Validate("dog")).(mapping.EnumValue)
	if ev.Number != 2 || ev.Name() != "DOG" {
		t.Fatalf("TestEnumValidate(Name): got (%d, %q), want (2, DOG)", ev.Number, ev.Name())
	}
	if ev.String() != "DOG" {
		t.Fatalf("TestEnumValidate(String): got %q, want DOG", ev.String())
	}
	unknown := mapping.MustNew(d.Validate(9)).(mapping.EnumValue)
	if unknown.String() != "9" {
		t.Fatalf("TestEnumValidate(String unknown): got %q, want 9", unknown.String())
	}
}

func TestEnumWire(t *testing.T) {
	d := mapping.MustNew(mapping.NewEnum("kind", 3, map[string]int64{"NEG": -1}))

	v := mapping.MustNew(d.Validate(-1))
	b, err := d.ToWire(v)
	if err != nil {
		t.Fatalf("TestEnumWire: unexpected error: %s", err)
	}
	// Tag byte plus the ten byte two's-complement varint for -1.
	if len(b) != 11 {
		t.Fatalf("TestEnumWire: encoded length got %d, want 11", len(b))
	}

	tr, err := wire.SplitOne(b)
	if err != nil {
		t.Fatalf("TestEnumWire: unexpected error: %s", err)
	}
	got, err := d.FromWire(tr, nil)
	if err != nil {
		t.Fatalf("TestEnumWire: unexpected error: %s", err)
	}
	if got.(mapping.EnumValue).Number != -1 {
		t.Fatalf("TestEnumWire: round trip got %d, want -1", got.(mapping.EnumValue).Number)
	}
}

// epochSeconds is a minimal semantic type for the tests: a timestamp stored
// as seconds on a uint64 field.
type epochSeconds uint64

func (e epochSeconds) SemanticKind() field.Type  { return field.FTUint64 }
func (e epochSeconds) ToPrimitive() (any, error) { return uint64(e), nil }

func epochFrom(p any) (mapping.Semantic, error) {
	return epochSeconds(p.(uint64)), nil
}

func TestSemanticValue(t *testing.T) {
	d, err := mapping.NewSemanticValue("created", 1, field.FTUint64, epochFrom)
	if err != nil {
		t.Fatalf("TestSemanticValue: unexpected error: %s", err)
	}
	if d.WireType() != wire.Varint || d.StorageKind() != field.FTUint64 {
		t.Fatalf("TestSemanticValue: got (%v, %v)", d.WireType(), d.StorageKind())
	}

	// A raw primitive coerces through the storage kind.
	v, err := d.Validate(uint64(1234567890))
	if err != nil {
		t.Fatalf("TestSemanticValue(Validate): unexpected error: %s", err)
	}
	if _, ok := v.(epochSeconds); !ok {
		t.Fatalf("TestSemanticValue(Validate): got %T, want epochSeconds", v)
	}

	b, err := d.ToWire(v)
	if err != nil {
		t.Fatalf("TestSemanticValue(ToWire): unexpected error: %s", err)
	}
	tr, err := wire.SplitOne(b)
	if err != nil {
		t.Fatalf("TestSemanticValue(SplitOne): unexpected error: %s", err)
	}
	got, err := d.FromWire(tr, nil)
	if err != nil {
		t.Fatalf("TestSemanticValue(FromWire): unexpected error: %s", err)
	}
	if got.(epochSeconds) != 1234567890 {
		t.Fatalf("TestSemanticValue: round trip got %d, want 1234567890", got.(epochSeconds))
	}

	// A semantic value with the wrong storage kind is rejected.
	if _, err := d.Validate(wrongKind{}); err == nil {
		t.Fatalf("TestSemanticValue(wrong kind): expected error, got none")
	}
}

type wrongKind struct{}

func (wrongKind) SemanticKind() field.Type  { return field.FTString }
func (wrongKind) ToPrimitive() (any, error) { return "", nil }

func TestListDescriptor(t *testing.T) {
	elem := mapping.MustNew(mapping.NewString("tags", 4))
	d, err := mapping.NewList(elem)
	if err != nil {
		t.Fatalf("TestListDescriptor: unexpected error: %s", err)
	}
	if d.FieldNum() != 4 || d.WireType() != wire.LengthDelimited {
		t.Fatalf("TestListDescriptor: got (%d, %v)", d.FieldNum(), d.WireType())
	}
	if _, err := mapping.NewList(d); err == nil {
		t.Fatalf("TestListDescriptor(nested): expected error, got none")
	}

	r := d.Default(nil).(mapping.Repeated)
	if err := r.(*structs.List).Append("a", "b"); err != nil {
		t.Fatalf("TestListDescriptor(Append): unexpected error: %s", err)
	}
	b, err := d.ToWire(r)
	if err != nil {
		t.Fatalf("TestListDescriptor(ToWire): unexpected error: %s", err)
	}

	var got []string
	for tr, err := range wire.Split(b) {
		if err != nil {
			t.Fatalf("TestListDescriptor(Split): unexpected error: %s", err)
		}
		got = append(got, string(tr.Payload))
	}
	if diff := pretty.Compare([]string{"a", "b"}, got); diff != "" {
		t.Fatalf("TestListDescriptor: -want/+got:\n%s", diff)
	}
}
