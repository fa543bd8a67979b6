package tabular

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Payload is one decoded API response: string keys mapping to scalars,
// nested objects or sequences of objects.
type Payload map[string]any

// Decode reads a single JSON object. Numbers are kept as json.Number so that
// integers and floats are written back out exactly as the API sent them.
func Decode(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// Object returns the nested object stored under key, if any.
func (p Payload) Object(key string) (Payload, bool) {
	return asObject(p[key])
}

// Objects returns the sequence of objects stored under key. Elements that are
// not objects are skipped.
func (p Payload) Objects(key string) ([]Payload, bool) {
	items, ok := p[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]Payload, 0, len(items))
	for _, item := range items {
		if obj, ok := asObject(item); ok {
			out = append(out, obj)
		}
	}
	return out, true
}

func asObject(v any) (Payload, bool) {
	switch m := v.(type) {
	case Payload:
		return m, true
	case map[string]any:
		return Payload(m), true
	default:
		return nil, false
	}
}
