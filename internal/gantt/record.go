package gantt

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is a backend row as the host returns it: field name to value.
// Relational values are [id, label] pairs. The mapper never modifies it.
type Record map[string]any

// ID returns the record identity from the "id" field, normalised to a string.
func (r Record) ID() string {
	return ScalarString(r["id"])
}

// Get returns the value of field and whether the field is present and not
// falsy.
func (r Record) Get(field string) (any, bool) {
	if field == "" {
		return nil, false
	}
	v, ok := r[field]
	if !ok || IsFalsy(v) {
		return nil, false
	}
	return v, true
}

// Relation splits an [id, label] pair. ok is false for anything else.
func Relation(v any) (id string, label string, ok bool) {
	var pair []any
	switch p := v.(type) {
	case []any:
		pair = p
	case []string:
		for _, s := range p {
			pair = append(pair, s)
		}
	default:
		return "", "", false
	}
	if len(pair) != 2 {
		return "", "", false
	}
	id = ScalarString(pair[0])
	if id == "" {
		return "", "", false
	}
	return id, ScalarString(pair[1]), true
}

// IsFalsy follows the host's notion of an unset value: nil, false, zero
// numbers, empty strings and empty slices.
func IsFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case int:
		return x == 0
	case int64:
		return x == 0
	case float64:
		return x == 0
	case float32:
		return x == 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// ScalarString renders a field value as the host would show an identity:
// false and nil are empty.
func ScalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		if !x {
			return ""
		}
		return "true"
	}
	return fmt.Sprint(v)
}

// Number converts the numeric encodings produced by JSON and YAML decoders.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
