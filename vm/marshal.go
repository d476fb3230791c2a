package vm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// FromNative converts a host value into a runtime value. Supported inputs
// are nil, booleans, every Go numeric type, strings, json.Number, slices and
// arrays, and maps with string keys, nested arbitrarily. A Value is
// returned as a deep copy.
func FromNative(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v.Clone(), nil
	case bool:
		return Boolean(v), nil
	case string:
		return String(v), nil
	case float64:
		return Number(v), nil
	case int:
		return Number(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		return Number(f), nil
	case []any:
		out := make([]Value, len(v))
		for i, e := range v {
			ev, err := FromNative(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return NewList(out...), nil
	case map[string]any:
		return dictFromMap(reflect.ValueOf(v))
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.Bool:
		return Boolean(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return NewList(), nil
		}
		out := make([]Value, rv.Len())
		for i := range out {
			ev, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return NewList(out...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("marshal: map key type %s is not a string", rv.Type().Key())
		}
		return dictFromMap(rv)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return FromNative(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("marshal: unsupported type %T", x)
}

// dictFromMap sorts keys so the resulting dict's order is deterministic.
func dictFromMap(rv reflect.Value) (Value, error) {
	keys := rv.MapKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	sort.Strings(names)
	d := NewDict()
	for _, name := range names {
		ev, err := FromNative(rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key())).Interface())
		if err != nil {
			return nil, err
		}
		d.Set(name, ev)
	}
	return d, nil
}

// Circular stands in for a container inside itself when converting to
// plain Go data, which cannot hold cycles.
const Circular = "[Circular]"

// ToNative converts a runtime value back into plain Go data: float64,
// string, bool, nil, []any and map[string]any. Functions convert to nil.
func ToNative(v Value) any {
	return toNative(v, make(map[Value]bool))
}

// open holds the containers being converted on the current path.
func toNative(v Value, open map[Value]bool) any {
	switch t := v.(type) {
	case nil, Null, Undefined, *Function:
		return nil
	case Number:
		return float64(t)
	case String:
		return string(t)
	case Boolean:
		return bool(t)
	case *List:
		if open[t] {
			return Circular
		}
		open[t] = true
		defer delete(open, t)
		out := make([]any, len(t.Elements))
		for i, e := range t.Elements {
			out[i] = toNative(e, open)
		}
		return out
	case *Dict:
		if open[t] {
			return Circular
		}
		open[t] = true
		defer delete(open, t)
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			out[k] = toNative(t.values[k], open)
		}
		return out
	}
	return nil
}
