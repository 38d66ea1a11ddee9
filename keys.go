package cache

import (
	"bytes"
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	keySeparator  = "|"
	digestLength  = 16
	formKeyPrefix = "form"
)

// FormState is a snapshot of a form as seen by the form engine.
type FormState struct {
	Values     map[string]any
	Errors     map[string]any
	Touched    map[string]bool
	Active     string
	Submitting bool
}

// CreateValueKey derives the cache key for value computed at path.
// Format: <path>|<digest> where digest is 16 hex chars of xxhash64 over the
// canonical msgpack encoding of value.
func CreateValueKey(path string, value any) (string, error) {
	digest, err := digestOf(value)
	if err != nil {
		return "", err
	}
	return path + keySeparator + digest, nil
}

// CreateFormStateKey derives the cache key for a form-state snapshot.
func CreateFormStateKey(state FormState) (string, error) {
	digest, err := digestOf(state)
	if err != nil {
		return "", err
	}
	return formKeyPrefix + keySeparator + digest, nil
}

// PathOfKey returns the path a value key was created for.
func PathOfKey(key string) (string, bool) {
	cut := len(key) - digestLength - len(keySeparator)
	if cut < 0 || key[cut:cut+len(keySeparator)] != keySeparator {
		return "", false
	}
	for _, r := range key[cut+len(keySeparator):] {
		if !isHex(r) {
			return "", false
		}
	}
	return key[:cut], true
}

// pathCovers reports whether candidate is path itself or nested below it,
// e.g. "items" covers "items.0.name" and "items[2]".
func pathCovers(path, candidate string) bool {
	if candidate == path {
		return true
	}
	if path == "" || !strings.HasPrefix(candidate, path) {
		return false
	}
	next := candidate[len(path)]
	return next == '.' || next == '['
}

func digestOf(value any) (string, error) {
	data, err := canonicalize(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyEncoding, err)
	}
	return fmt.Sprintf("%0*x", digestLength, xxhash.Sum64(data)), nil
}

// canonicalize encodes v so that structurally equal inputs produce equal
// bytes. msgpack sorts map[string]any keys itself; other maps are rewritten
// into that shape first.
func canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(normalize(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case FormState:
		return map[string]any{
			"values":     normalize(val.Values),
			"errors":     normalize(val.Errors),
			"touched":    normalize(val.Touched),
			"active":     val.Active,
			"submitting": val.Submitting,
		}
	case *FormState:
		if val == nil {
			return nil
		}
		return normalize(*val)
	case string, bool, int, int64, uint64, float64, []byte:
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Struct:
		if encodesItself(v) {
			return v
		}
		return normalizeStruct(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// normalizeStruct turns the exported fields of a struct into a map keyed
// like msgpack would name them, so nested maps get sorted too.
func normalizeStruct(rv reflect.Value) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("msgpack"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		fv := rv.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		out[name] = normalize(fv.Interface())
	}
	return out
}

// encodesItself reports whether msgpack encodes v through its own method
// rather than field by field.
func encodesItself(v any) bool {
	switch v.(type) {
	case time.Time, msgpack.CustomEncoder, msgpack.Marshaler, encoding.BinaryMarshaler, encoding.TextMarshaler:
		return true
	}
	return false
}

// mapKey renders a map key as a string. Non-string keys carry their type so
// that 1 and "1" stay distinct.
func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprintf("%T:%v", k.Interface(), k.Interface())
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}
