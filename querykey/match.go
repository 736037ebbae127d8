package querykey

import (
	"reflect"
)

// PartialMatch reports whether filter selects key. Sequences match when the
// filter is a positional prefix of the key, plain objects match when every
// filter property matches the key's property of the same name, and all other
// values match when their canonical forms are equal.
//
//	PartialMatch(Key{"todos", 1}, Key{"todos"})                       // true
//	PartialMatch(Key{"todos", map[string]any{"page": 1, "q": "x"}},
//		Key{"todos", map[string]any{"page": 1}})                      // true
//	PartialMatch(Key{"todos"}, Key{"todos", 1})                       // false
func PartialMatch(key, filter Key) (bool, error) {
	// both sides are checked for cycles up front so the structural walk
	// below always terminates
	if _, err := Serialize([]any(key)); err != nil {
		return false, err
	}
	if _, err := Serialize([]any(filter)); err != nil {
		return false, err
	}
	return partialMatch([]any(key), []any(filter))
}

func partialMatch(a, b any) (bool, error) {
	if as, ok := elements(a); ok {
		if bs, ok := elements(b); ok {
			if len(bs) > len(as) {
				return false, nil
			}
			for i := range bs {
				match, err := partialMatch(as[i], bs[i])
				if err != nil || !match {
					return false, err
				}
			}
			return true, nil
		}
	}

	if ap, ok := properties(a); ok {
		if bp, ok := properties(b); ok {
			for name, bv := range bp {
				av, found := ap[name]
				if !found {
					av = Undefined{}
				}
				match, err := partialMatch(av, bv)
				if err != nil || !match {
					return false, err
				}
			}
			return true, nil
		}
	}

	af, err := Serialize(a)
	if err != nil {
		return false, err
	}
	bf, err := Serialize(b)
	if err != nil {
		return false, err
	}
	return af == bf, nil
}

// elements returns the items of an ordered sequence.
func elements(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case Key:
		return x, true
	case *List:
		if x == nil {
			return nil, false
		}
		return x.Items, true
	case Value, []byte, string:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// properties returns the string-keyed properties of a plain object.
func properties(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case *Object:
		if x == nil {
			return nil, false
		}
		props := make(map[string]any, len(x.Props)+len(x.Symbols))
		for k, val := range x.Props {
			props[k] = val
		}
		// NUL keeps symbol names apart from string keys
		for k, val := range x.Symbols {
			props["\x00"+string(k)] = val
		}
		return props, true
	case Value:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	props := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		props[iter.Key().String()] = iter.Value().Interface()
	}
	return props, true
}
