package querykey

import (
	"math"
	"math/big"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	maxSafeInteger = 1<<53 - 1
	isoLayout      = "2006-01-02T15:04:05.000Z"
)

var elementEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`)

// identity is the cycle-detection key for Go-native reference values.
// Slices are identified by their backing array and length so that
// re-slicing the same array is not mistaken for a cycle.
type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// serializer holds the in-progress collections of one top-level call.
type serializer struct {
	active map[any]struct{}
}

// Serialize returns the canonical form of v.
//
// v may be a Value variant or any Go-native value:
//
//   - nil, nil pointers, nil interfaces and nil funcs: null
//   - strings, bools: str/bool primitives
//   - integer and float kinds: num (integers beyond ±2^53 become bigint)
//   - *big.Int: bigint
//   - time.Time: date
//   - *regexp.Regexp: regexp (flags are embedded in the Go source, if any)
//   - []byte and [N]byte: typed Uint8Array
//   - other slices and arrays: sequence
//   - map[K]struct{}: set
//   - map[string]T: plain object
//   - other maps: associative map
//   - structs: plain object over exported fields, honoring json tag names;
//     embedded structs are not flattened and nest under their type name
//   - funcs: fn with the runtime function name
//   - channels, complex numbers, unsafe pointers: obj fallback tag
//
// The only failure is a *CircularReferenceError.
func Serialize(v any) (string, error) {
	s := &serializer{active: make(map[any]struct{})}
	return s.serialize(v)
}

func (s *serializer) serialize(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case Value:
		return s.value(x)
	case string:
		return quote(x), nil
	case bool:
		return formatBool(x), nil
	case int:
		return formatInt(int64(x)), nil
	case int64:
		return formatInt(x), nil
	case int32:
		return formatInt(int64(x)), nil
	case uint64:
		return formatUint(x), nil
	case float64:
		return "num:" + formatNumber(x), nil
	case float32:
		return "num:" + formatNumber(float64(x)), nil
	case *big.Int:
		if x == nil {
			return "null", nil
		}
		return "bigint:" + x.String(), nil
	case time.Time:
		return formatDate(Date{Time: x}), nil
	case *regexp.Regexp:
		if x == nil {
			return "null", nil
		}
		return "regexp:/" + x.String() + "/", nil
	case []byte:
		return formatBytes(x), nil
	}
	return s.native(reflect.ValueOf(v))
}

func (s *serializer) value(v Value) (string, error) {
	switch x := v.(type) {
	case Null:
		return "null", nil
	case Undefined:
		return "undef", nil
	case String:
		return quote(string(x)), nil
	case Number:
		return "num:" + formatNumber(float64(x)), nil
	case Bool:
		return formatBool(bool(x)), nil
	case BigInt:
		if x.Int == nil {
			return "bigint:0", nil
		}
		return "bigint:" + x.Int.String(), nil
	case Symbol:
		return "sym:" + string(x), nil
	case Func:
		return "fn:" + string(x), nil
	case Date:
		return formatDate(x), nil
	case Pattern:
		return "regexp:/" + x.Source + "/" + x.Flags, nil
	case Typed:
		elems := make([]string, len(x.Elements))
		for i, e := range x.Elements {
			elems[i] = elementEscaper.Replace(e)
		}
		return "typed:" + x.ElementKind + ":" + strings.Join(elems, ","), nil
	case Opaque:
		return "obj:" + x.Tag, nil
	case *List:
		if x == nil {
			return "null", nil
		}
		return s.sequence(x, CollectionSequence, len(x.Items), func(i int) any { return x.Items[i] })
	case *Map:
		if x == nil {
			return "null", nil
		}
		return s.assoc(x, len(x.Entries), func(i int) (any, any) {
			return x.Entries[i].Key, x.Entries[i].Value
		})
	case *Set:
		if x == nil {
			return "null", nil
		}
		return s.set(x, len(x.Items), func(i int) any { return x.Items[i] })
	case *Object:
		if x == nil {
			return "null", nil
		}
		return s.object(x, x.Props, x.Symbols)
	}
	return "obj:[object " + reflect.TypeOf(v).String() + "]", nil
}

// native handles Go values that did not match a fast path, including named
// types whose underlying kind is a primitive.
func (s *serializer) native(rv reflect.Value) (string, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return formatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return formatInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return formatUint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return "num:" + formatNumber(rv.Float()), nil
	case reflect.String:
		return quote(rv.String()), nil

	case reflect.Pointer:
		if rv.IsNil() {
			return "null", nil
		}
		id := identity{typ: rv.Type(), ptr: rv.Pointer()}
		if err := s.enter(id, collectionOf(rv.Elem())); err != nil {
			return "", err
		}
		defer s.leave(id)
		return s.serialize(rv.Elem().Interface())

	case reflect.Interface:
		if rv.IsNil() {
			return "null", nil
		}
		return s.serialize(rv.Elem().Interface())

	case reflect.Func:
		if rv.IsNil() {
			return "null", nil
		}
		return "fn:" + funcName(rv), nil

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return formatBytes(rv.Bytes()), nil
		}
		if rv.Len() == 0 {
			return "[]", nil
		}
		id := identity{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}
		return s.sequence(id, CollectionSequence, rv.Len(), func(i int) any { return rv.Index(i).Interface() })

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return formatBytes(b), nil
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			part, err := s.serialize(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts[i] = part
		}
		return "[" + strings.Join(parts, ",") + "]", nil

	case reflect.Map:
		return s.nativeMap(rv)

	case reflect.Struct:
		return s.nativeStruct(rv)
	}

	return "obj:[object " + rv.Type().String() + "]", nil
}

func (s *serializer) nativeMap(rv reflect.Value) (string, error) {
	t := rv.Type()
	var id any = identity{typ: t, ptr: rv.Pointer()}
	keys := rv.MapKeys()

	switch {
	case isSetType(t):
		if rv.IsNil() {
			return "set:[]", nil
		}
		return s.set(id, len(keys), func(i int) any { return keys[i].Interface() })

	case t.Key().Kind() == reflect.String:
		props := make(map[string]any, len(keys))
		for _, k := range keys {
			props[k.String()] = rv.MapIndex(k).Interface()
		}
		if rv.IsNil() {
			id = nil
		}
		return s.object(id, props, nil)
	}

	if rv.IsNil() {
		return "map:{}", nil
	}
	return s.assoc(id, len(keys), func(i int) (any, any) {
		return keys[i].Interface(), rv.MapIndex(keys[i]).Interface()
	})
}

func (s *serializer) nativeStruct(rv reflect.Value) (string, error) {
	t := rv.Type()
	props := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		props[name] = rv.Field(i).Interface()
	}
	// struct values have no identity of their own; cycles go through pointers
	return s.object(nil, props, nil)
}

// sequence serializes an ordered collection positionally.
func (s *serializer) sequence(id any, kind CollectionKind, n int, at func(int) any) (string, error) {
	if err := s.enter(id, kind); err != nil {
		return "", err
	}
	defer s.leave(id)

	parts := make([]string, n)
	for i := 0; i < n; i++ {
		part, err := s.serialize(at(i))
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// assoc serializes an associative map; entries are sorted by their
// serialized form so insertion order never matters.
func (s *serializer) assoc(id any, n int, at func(int) (any, any)) (string, error) {
	if err := s.enter(id, CollectionMap); err != nil {
		return "", err
	}
	defer s.leave(id)

	entries := make([]string, n)
	for i := 0; i < n; i++ {
		k, v := at(i)
		key, err := s.serialize(k)
		if err != nil {
			return "", err
		}
		val, err := s.serialize(v)
		if err != nil {
			return "", err
		}
		entries[i] = key + ":" + val
	}
	sort.Strings(entries)
	return "map:{" + strings.Join(entries, ",") + "}", nil
}

// set serializes an unordered collection: every member is serialized and
// the forms are sorted. Members with the same form are all written.
func (s *serializer) set(id any, n int, at func(int) any) (string, error) {
	if err := s.enter(id, CollectionSet); err != nil {
		return "", err
	}
	defer s.leave(id)

	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		item, err := s.serialize(at(i))
		if err != nil {
			return "", err
		}
		items = append(items, item)
	}
	sort.Strings(items)
	return "set:[" + strings.Join(items, ",") + "]", nil
}

// object serializes a plain property mapping: string keys sorted first, then
// symbol keys sorted by description. Undefined values are kept.
func (s *serializer) object(id any, props map[string]any, symbols map[Symbol]any) (string, error) {
	if err := s.enter(id, CollectionObject); err != nil {
		return "", err
	}
	defer s.leave(id)

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	syms := make([]string, 0, len(symbols))
	for k := range symbols {
		syms = append(syms, string(k))
	}
	sort.Strings(syms)

	pairs := make([]string, 0, len(keys)+len(syms))
	for _, k := range keys {
		val, err := s.serialize(props[k])
		if err != nil {
			return "", err
		}
		pairs = append(pairs, quote(k)+"=>"+val)
	}
	for _, k := range syms {
		val, err := s.serialize(symbols[Symbol(k)])
		if err != nil {
			return "", err
		}
		pairs = append(pairs, "sym:"+k+"=>"+val)
	}
	return "{" + strings.Join(pairs, ",") + "}", nil
}

// enter marks id as in progress. A nil id opts out of cycle detection.
func (s *serializer) enter(id any, kind CollectionKind) error {
	if id == nil {
		return nil
	}
	if _, ok := s.active[id]; ok {
		return &CircularReferenceError{Collection: kind}
	}
	s.active[id] = struct{}{}
	return nil
}

func (s *serializer) leave(id any) {
	if id != nil {
		delete(s.active, id)
	}
}

// collectionOf reports which collection kind a pointer target serializes as.
func collectionOf(rv reflect.Value) CollectionKind {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return CollectionSequence
	case reflect.Map:
		t := rv.Type()
		if isSetType(t) {
			return CollectionSet
		}
		if t.Key().Kind() == reflect.String {
			return CollectionObject
		}
		return CollectionMap
	}
	return CollectionObject
}

var emptyStruct = reflect.TypeOf(struct{}{})

// isSetType reports whether t is a map[K]struct{}. Named empty structs such
// as Null and Undefined are values, not set markers.
func isSetType(t reflect.Type) bool {
	return t.Elem() == emptyStruct
}

func quote(s string) string {
	return "str:" + strconv.Quote(s)
}

func formatBool(b bool) string {
	if b {
		return "bool:1"
	}
	return "bool:0"
}

func formatInt(i int64) string {
	if i > maxSafeInteger || i < -maxSafeInteger {
		return "bigint:" + strconv.FormatInt(i, 10)
	}
	return "num:" + strconv.FormatInt(i, 10)
}

func formatUint(u uint64) string {
	if u > maxSafeInteger {
		return "bigint:" + strconv.FormatUint(u, 10)
	}
	return "num:" + strconv.FormatUint(u, 10)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatDate(d Date) string {
	if d.Invalid {
		return "date:invalid"
	}
	return "date:" + d.Time.UTC().Format(isoLayout)
}

func formatBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = strconv.Itoa(int(c))
	}
	return "typed:Uint8Array:" + strings.Join(parts, ",")
}

func funcName(rv reflect.Value) string {
	if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
		return fn.Name()
	}
	return "anonymous"
}
