package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestSplit(t *testing.T) {
	// field 1: varint 150, field 2: "testing", field 3: fixed32, field 4: fixed64.
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 150)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("testing"))
	buf = protowire.AppendTag(buf, 3, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 7)
	buf = protowire.AppendTag(buf, 4, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, 8)

	type result struct {
		FieldNum uint32
		Type     Type
		Payload  []byte
	}
	want := []result{
		{1, Varint, []byte{0x96, 0x01}},
		{2, LengthDelimited, []byte("testing")},
		{3, Fixed32, []byte{7, 0, 0, 0}},
		{4, Fixed64, []byte{8, 0, 0, 0, 0, 0, 0, 0}},
	}

	var got []result
	var rebuilt []byte
	for tr, err := range Split(buf) {
		if err != nil {
			t.Fatalf("TestSplit: unexpected error: %s", err)
		}
		got = append(got, result{tr.FieldNum, tr.Type, tr.Payload})
		rebuilt = tr.AppendTo(rebuilt)
	}

	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("TestSplit: -want/+got:\n%s", diff)
	}

	// Concatenating the triples must reproduce the input exactly.
	if !bytes.Equal(rebuilt, buf) {
		t.Fatalf("TestSplit(rebuild): got %v, want %v", rebuilt, buf)
	}
}

func TestSplitOne(t *testing.T) {
	buf := protowire.AppendTag(nil, 5, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("hi"))

	tr, err := SplitOne(buf)
	if err != nil {
		t.Fatalf("TestSplitOne: unexpected error: %s", err)
	}
	if tr.FieldNum != 5 || tr.Type != LengthDelimited || string(tr.Payload) != "hi" {
		t.Fatalf("TestSplitOne: got (%d, %v, %q)", tr.FieldNum, tr.Type, tr.Payload)
	}
	if !bytes.Equal(tr.Bytes(), buf) {
		t.Fatalf("TestSplitOne(Bytes): got %v, want %v", tr.Bytes(), buf)
	}
}

func TestSplitMalformed(t *testing.T) {
	tests := []struct {
		desc string
		buf  []byte
	}{
		{desc: "field number zero", buf: []byte{0x00, 0x00}},
		{desc: "start group", buf: []byte{0x0B}},
		{desc: "end group", buf: []byte{0x0C}},
		{desc: "wire type 6", buf: []byte{0x0E}},
		{desc: "wire type 7", buf: []byte{0x0F}},
		{desc: "truncated varint payload", buf: []byte{0x08, 0x80}},
		{desc: "truncated fixed32 payload", buf: []byte{0x0D, 1, 2}},
		{desc: "truncated fixed64 payload", buf: []byte{0x09, 1, 2, 3}},
		{desc: "clipped length delimited", buf: []byte{0x0A, 0x05, 'h', 'i'}},
		{desc: "length prefix runs past buffer", buf: []byte{0x0A, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}

	for _, test := range tests {
		var gotErr error
		for _, err := range Split(test.buf) {
			if err != nil {
				gotErr = err
				break
			}
		}
		if gotErr == nil {
			t.Fatalf("TestSplitMalformed(%s): expected error, got none", test.desc)
		}
		var de *DecodeError
		if !errors.As(gotErr, &de) {
			t.Fatalf("TestSplitMalformed(%s): error %T is not a *DecodeError", test.desc, gotErr)
		}
	}
}

func TestSplitRestartable(t *testing.T) {
	buf := protowire.AppendTag(nil, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 1)
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 2)

	seq := Split(buf)
	for range 2 {
		count := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("TestSplitRestartable: unexpected error: %s", err)
			}
			count++
		}
		if count != 2 {
			t.Fatalf("TestSplitRestartable: got %d triples, want 2", count)
		}
	}
}
