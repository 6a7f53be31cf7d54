package lens

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// normalize canonicalizes a path: every integer kind becomes int, strings
// stay as-is. Structurally equal paths normalize identically, which is
// what makes the cursor cache key stable across callers.
func normalize(path []any) []any {
	out := make([]any, len(path))
	for i, step := range path {
		switch v := step.(type) {
		case string:
			out[i] = v
		case int:
			out[i] = v
		case int8:
			out[i] = int(v)
		case int16:
			out[i] = int(v)
		case int32:
			out[i] = int(v)
		case int64:
			out[i] = int(v)
		case uint:
			out[i] = int(v)
		case uint8:
			out[i] = int(v)
		case uint16:
			out[i] = int(v)
		case uint32:
			out[i] = int(v)
		case uint64:
			out[i] = int(v)
		default:
			panic(fmt.Sprintf("lens: unsupported path element %T (want string or integer)", step))
		}
	}
	return out
}

// canonical renders a normalized path as the cache key suffix. Elements
// are tagged by kind, so the string "1" and the index 1 key differently,
// and length-prefixed, so no string value can forge an element boundary:
// ("a", "b") and ("as1:b") key differently.
func canonical(path []any) string {
	var b strings.Builder
	for _, step := range path {
		var tag byte
		var payload string
		switch v := step.(type) {
		case string:
			tag, payload = 's', v
		case int:
			tag, payload = 'i', strconv.Itoa(v)
		}
		b.WriteByte(tag)
		b.WriteString(strconv.Itoa(len(payload)))
		b.WriteByte(':')
		b.WriteString(payload)
	}
	return b.String()
}

// getIn returns the value at path inside v, or nil when any step is
// missing. Navigates maps, slices, arrays and exported struct fields,
// dereferencing pointers and interfaces along the way.
func getIn(v any, path []any) any {
	for _, step := range path {
		if v == nil {
			return nil
		}
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Map:
			kv := reflect.ValueOf(step)
			kt := rv.Type().Key()
			if !kv.Type().AssignableTo(kt) {
				if !kv.Type().ConvertibleTo(kt) {
					return nil
				}
				kv = kv.Convert(kt)
			}
			ev := rv.MapIndex(kv)
			if !ev.IsValid() {
				return nil
			}
			v = ev.Interface()
		case reflect.Slice, reflect.Array:
			i, ok := step.(int)
			if !ok || i < 0 || i >= rv.Len() {
				return nil
			}
			v = rv.Index(i).Interface()
		case reflect.Struct:
			name, ok := step.(string)
			if !ok {
				return nil
			}
			fv := rv.FieldByName(name)
			if !fv.IsValid() {
				return nil
			}
			v = fv.Interface()
		default:
			return nil
		}
	}
	return v
}

// updateIn returns a copy of v with the value at path replaced by newVal.
// Containers along the path are shallow-copied; everything off the path is
// shared with the original. Missing map entries are created; a nil node
// under a string step becomes a map[string]any.
func updateIn(v any, path []any, newVal any) any {
	if len(path) == 0 {
		return newVal
	}
	step, rest := path[0], path[1:]

	if v == nil {
		name, ok := step.(string)
		if !ok {
			panic(fmt.Sprintf("lens: cannot create container for index %v under nil", step))
		}
		return map[string]any{name: updateIn(nil, rest, newVal)}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return updateIn(nil, path, newVal)
		}
		out := reflect.New(rv.Type().Elem())
		assign(out.Elem(), updateIn(rv.Elem().Interface(), path, newVal))
		return out.Interface()

	case reflect.Map:
		kv := reflect.ValueOf(step)
		kt := rv.Type().Key()
		if !kv.Type().AssignableTo(kt) {
			if !kv.Type().ConvertibleTo(kt) {
				panic(fmt.Sprintf("lens: path element %v does not key a %s", step, rv.Type()))
			}
			kv = kv.Convert(kt)
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		var childOld any
		if ev := rv.MapIndex(kv); ev.IsValid() {
			childOld = ev.Interface()
		}
		child := reflect.New(rv.Type().Elem()).Elem()
		assign(child, updateIn(childOld, rest, newVal))
		out.SetMapIndex(kv, child)
		return out.Interface()

	case reflect.Slice:
		i, ok := step.(int)
		if !ok || i < 0 || i >= rv.Len() {
			panic(fmt.Sprintf("lens: index %v out of range for %s of length %d", step, rv.Type(), rv.Len()))
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		assign(out.Index(i), updateIn(rv.Index(i).Interface(), rest, newVal))
		return out.Interface()

	case reflect.Array:
		i, ok := step.(int)
		if !ok || i < 0 || i >= rv.Len() {
			panic(fmt.Sprintf("lens: index %v out of range for %s", step, rv.Type()))
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		assign(out.Index(i), updateIn(rv.Index(i).Interface(), rest, newVal))
		return out.Interface()

	case reflect.Struct:
		name, ok := step.(string)
		if !ok {
			panic(fmt.Sprintf("lens: path element %v does not name a field of %s", step, rv.Type()))
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		fv := out.FieldByName(name)
		if !fv.IsValid() || !fv.CanSet() {
			panic(fmt.Sprintf("lens: no settable field %q on %s", name, rv.Type()))
		}
		assign(fv, updateIn(rv.FieldByName(name).Interface(), rest, newVal))
		return out.Interface()

	default:
		panic(fmt.Sprintf("lens: cannot descend into %s with path element %v", rv.Type(), step))
	}
}

// assign stores child into dst, converting when necessary.
func assign(dst reflect.Value, child any) {
	if child == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return
	}
	cv := reflect.ValueOf(child)
	if cv.Type().AssignableTo(dst.Type()) {
		dst.Set(cv)
		return
	}
	if cv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(cv.Convert(dst.Type()))
		return
	}
	panic(fmt.Sprintf("lens: cannot write %T into %s", child, dst.Type()))
}
