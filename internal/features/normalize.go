package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Raw is a feature mapping as it arrives from a caller or from text
// extraction: keys in canonical or synonym spelling, values numeric, numeric
// strings or null.
type Raw map[string]any

// Vector is a normalized feature vector. Values are held in schema order;
// keys that matched nothing are kept only for echoing back to the caller.
// The zero Vector is the all-zero vector.
type Vector struct {
	values [Count]float64
	extras map[string]any
}

// ParseRaw decodes a JSON document into a Raw mapping. Numbers keep their
// textual precision until coercion. Anything other than a JSON object is
// ErrSchema.
func ParseRaw(data []byte) (Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrSchema, v)
	}
	return Raw(m), nil
}

// Normalize folds synonym keys onto canonical names and fills every missing
// or null canonical feature with 0. A measured zero and an absent value are
// indistinguishable afterwards; Missing reports which keys were filled.
//
// When both a canonical key and its synonym carry a value the canonical
// spelling wins. Among keys of the same kind that fold to one feature, an
// exact spelling beats one that needed trimming or NFC folding, then the
// lexically smallest key wins. Keys that resolve to nothing are passed
// through to Extras.
func Normalize(raw Raw) (Vector, error) {
	var v Vector
	keys := orderedKeys(raw)

	// Synonyms first so canonical keys can overwrite them.
	for _, pass := range []bool{true, false} {
		var claimed [Count]bool
		for _, key := range keys {
			val := raw[key]
			name, synonym, ok := Canonical(key)
			if !ok {
				if pass {
					if v.extras == nil {
						v.extras = make(map[string]any)
					}
					v.extras[key] = val
				}
				continue
			}
			if synonym != pass {
				continue
			}
			f, null, err := coerce(val)
			if err != nil {
				return Vector{}, &MismatchError{Key: key, Value: val}
			}
			i := index[name]
			if null || claimed[i] {
				continue
			}
			claimed[i] = true
			v.values[i] = f
		}
	}
	return v, nil
}

// orderedKeys sorts keys by precedence: exact spellings first, then
// lexically.
func orderedKeys(raw Raw) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ei, ej := foldKey(keys[i]) == keys[i], foldKey(keys[j]) == keys[j]
		if ei != ej {
			return ei
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Missing lists, in schema order, the canonical features raw leaves absent
// or null under either spelling.
func Missing(raw Raw) []string {
	var seen [Count]bool
	for key, val := range raw {
		name, _, ok := Canonical(key)
		if !ok || val == nil {
			continue
		}
		seen[index[name]] = true
	}
	var out []string
	for i, ok := range seen {
		if !ok {
			out = append(out, Names[i])
		}
	}
	return out
}

// CountPresent counts the non-null values in raw, recognised or not.
func CountPresent(raw Raw) int {
	n := 0
	for _, val := range raw {
		if val != nil {
			n++
		}
	}
	return n
}

// Array returns the values in schema order.
func (v Vector) Array() []float64 {
	out := make([]float64, Count)
	copy(out, v.values[:])
	return out
}

// Get returns the value of a canonical feature.
func (v Vector) Get(name string) (float64, bool) {
	i, ok := index[name]
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Extras returns a copy of the keys that matched no feature.
func (v Vector) Extras() map[string]any {
	if len(v.extras) == 0 {
		return nil
	}
	out := make(map[string]any, len(v.extras))
	for k, val := range v.extras {
		out[k] = val
	}
	return out
}

// Map renders the vector back into a Raw mapping with all 30 canonical keys
// plus the pass-through extras. Normalize(v.Map()) == v.
func (v Vector) Map() Raw {
	out := make(Raw, Count+len(v.extras))
	for k, val := range v.extras {
		out[k] = val
	}
	for i, name := range Names {
		out[name] = v.values[i]
	}
	return out
}

// coerce converts a decoded JSON value into a finite float64. null is
// reported through the second result, not as an error.
func coerce(val any) (float64, bool, error) {
	var f float64
	switch x := val.(type) {
	case nil:
		return 0, true, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false, err
		}
		f = parsed
	default:
		return 0, false, fmt.Errorf("unsupported type %T", val)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("non-finite value %v", f)
	}
	return f, false, nil
}
