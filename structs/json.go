package structs

import (
	"encoding/base64"

	"github.com/go-json-experiment/json"

	"github.com/google/grr-sub020/mapping"
)

// MarshalJSON renders the instance as a JSON object for logging and
// inspection. Set fields only; enums render by name when one is known, bytes
// render base64, nested structs and lists recurse. Unknown wire fields are
// not representable and are omitted.
func (s *Struct) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	for _, d := range s.mapping.Fields() {
		sl, ok := s.fields[d.FieldNum()]
		if !ok || (sl.value == nil && sl.raw == nil) {
			continue
		}
		v, err := s.materialize(sl)
		if err != nil {
			return nil, err
		}
		jv, err := jsonValue(v)
		if err != nil {
			return nil, err
		}
		m[d.Name()] = jv
	}
	return json.Marshal(m)
}

func jsonValue(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t), nil
	case mapping.EnumValue:
		if n := t.Name(); n != "" {
			return n, nil
		}
		return t.Number, nil
	case mapping.Semantic:
		p, err := t.ToPrimitive()
		if err != nil {
			return nil, err
		}
		return jsonValue(p)
	case *List:
		vals, err := t.Slice()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, e := range vals {
			je, err := jsonValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = je
		}
		return out, nil
	}
	return v, nil
}
