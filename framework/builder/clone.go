package builder

import (
	"reflect"
)

// Cloner lets a cached value control how copies of it are made.
type Cloner interface {
	Clone() any
}

// clone returns a copy of v. Plain data (map[string]any and []any, as
// Object and Array produce) is copied all the way down. Other values without
// a Cloner are copied shallowly: a pointer to a struct gets a new struct with
// the same field values, maps and slices get new backing storage, anything
// else is already a value.
func clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Cloner:
		return t.Clone()
	case map[string]any, []any:
		return copyData(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return v
		}
		cp := reflect.New(rv.Elem().Type())
		cp.Elem().Set(rv.Elem())
		return cp.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			cp.SetMapIndex(iter.Key(), iter.Value())
		}
		return cp.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	}
	return v
}

// copyData copies nested map[string]any and []any; leaves are shared.
func copyData(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyData(item)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyData(item)
		}
		return out
	}
	return v
}
