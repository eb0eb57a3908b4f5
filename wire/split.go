package wire

import "iter"

// Triple is one field's worth of wire data: the encoded tag, the length prefix
// for LENGTH_DELIMITED fields (empty otherwise) and the payload bytes. The
// three slices are windows into the buffer handed to Split; concatenating the
// triples of a buffer in order reproduces it exactly.
type Triple struct {
	// FieldNum and Type are decoded from TagBytes.
	FieldNum uint32
	Type     Type

	TagBytes []byte
	LenBytes []byte
	Payload  []byte
}

// TagValue returns the decoded tag value (fieldnum << 3 | wiretype).
func (t Triple) TagValue() uint64 {
	return MakeTag(t.FieldNum, t.Type)
}

// Size returns the total wire size of the triple.
func (t Triple) Size() int {
	return len(t.TagBytes) + len(t.LenBytes) + len(t.Payload)
}

// Bytes returns the triple re-concatenated into a single slice. The result is
// freshly allocated and safe to retain.
func (t Triple) Bytes() []byte {
	b := make([]byte, 0, t.Size())
	b = append(b, t.TagBytes...)
	b = append(b, t.LenBytes...)
	return append(b, t.Payload...)
}

// AppendTo appends the triple's wire bytes to b.
func (t Triple) AppendTo(b []byte) []byte {
	b = append(b, t.TagBytes...)
	b = append(b, t.LenBytes...)
	return append(b, t.Payload...)
}

// Split returns a one-pass iterator over the wire triples in buf. The sequence
// is restartable (ranging again walks the buffer from the start) but not
// resumable mid-stream. On malformed data it yields a zero Triple with a
// *DecodeError and stops.
func Split(buf []byte) iter.Seq2[Triple, error] {
	return func(yield func(Triple, error) bool) {
		pos := 0
		for pos < len(buf) {
			t, next, err := nextTriple(buf, pos)
			if err != nil {
				yield(Triple{}, err)
				return
			}
			if !yield(t, nil) {
				return
			}
			pos = next
		}
	}
}

// SplitOne decodes the single triple at the start of buf. Used by the layers
// above to re-hydrate a cached wire entry without ranging.
func SplitOne(buf []byte) (Triple, error) {
	t, _, err := nextTriple(buf, 0)
	return t, err
}

func nextTriple(buf []byte, pos int) (Triple, int, error) {
	tagStart := pos
	tag, pos, err := DecodeVarint(buf, pos)
	if err != nil {
		return Triple{}, pos, err
	}
	num, wt := SplitTag(tag)
	if num == 0 || num > MaxFieldNum {
		return Triple{}, pos, Errorf("tag at offset %d has invalid field number %d", tagStart, num)
	}
	t := Triple{
		FieldNum: num,
		Type:     wt,
		TagBytes: buf[tagStart:pos],
	}

	switch wt {
	case Varint:
		_, end, err := DecodeVarint(buf, pos)
		if err != nil {
			return Triple{}, pos, err
		}
		t.Payload = buf[pos:end]
		pos = end
	case Fixed64:
		if len(buf)-pos < 8 {
			return Triple{}, pos, Errorf("field %d: truncated fixed64 payload", num)
		}
		t.Payload = buf[pos : pos+8]
		pos += 8
	case Fixed32:
		if len(buf)-pos < 4 {
			return Triple{}, pos, Errorf("field %d: truncated fixed32 payload", num)
		}
		t.Payload = buf[pos : pos+4]
		pos += 4
	case LengthDelimited:
		lenStart := pos
		size, end, err := DecodeVarint(buf, pos)
		if err != nil {
			return Triple{}, pos, err
		}
		t.LenBytes = buf[lenStart:end]
		if uint64(len(buf)-end) < size {
			return Triple{}, pos, Errorf("field %d: payload clipped, want %d bytes, have %d", num, size, len(buf)-end)
		}
		t.Payload = buf[end : end+int(size)]
		pos = end + int(size)
	case StartGroup, EndGroup:
		return Triple{}, pos, Errorf("field %d: deprecated group wire type %d", num, wt)
	default:
		return Triple{}, pos, Errorf("field %d: unknown wire type %d", num, wt)
	}
	return t, pos, nil
}
