package protostruct

import (
	"testing"

	"github.com/google/grr-sub020/mapping"
)

func TestFacade(t *testing.T) {
	m := mapping.NewMap("FacadeRecord")
	m.MustRegister(mapping.MustNew(mapping.NewString("name", 1)))
	m.MustRegister(mapping.MustNew(mapping.NewUint64("size", 2)))
	mapping.MustRegisterMessage(m)

	s := New(m)
	s.MustSet("name", "report")
	s.MustSet("size", uint64(128))

	b, err := Marshal(s)
	if err != nil {
		t.Fatalf("TestFacade: unexpected error: %s", err)
	}

	out, err := Unmarshal(m, b)
	if err != nil {
		t.Fatalf("TestFacade: unexpected error: %s", err)
	}
	if !s.Equal(out) {
		t.Fatalf("TestFacade: round trip differs")
	}

	byName, err := NewByName("FacadeRecord")
	if err != nil {
		t.Fatalf("TestFacade(NewByName): unexpected error: %s", err)
	}
	if byName.Descriptor() != m {
		t.Fatalf("TestFacade(NewByName): wrong descriptor")
	}
	if _, err := NewByName("NoSuchRecord"); err == nil {
		t.Fatalf("TestFacade(NewByName): lookup of unregistered type succeeded")
	}
}
