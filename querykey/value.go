package querykey

import (
	"math"
	"math/big"
	"reflect"
	"time"
)

// Key is an identifier: an ordered sequence of values naming a cached item.
type Key []any

// Value is the closed set of identifier kinds that have no direct Go-native
// counterpart, plus the collection types that can take part in cycles.
// Go-native values (strings, numbers, slices, maps, structs...) are accepted
// anywhere a Value is and are mapped as documented on Serialize.
type Value interface {
	kind() Kind
}

// Kind names the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindUndefined
	KindString
	KindNumber
	KindBool
	KindBigInt
	KindSymbol
	KindFunc
	KindDate
	KindPattern
	KindTyped
	KindList
	KindMap
	KindSet
	KindObject
	KindOpaque
)

var kindNames = [...]string{
	KindNull:      "null",
	KindUndefined: "undefined",
	KindString:    "string",
	KindNumber:    "number",
	KindBool:      "bool",
	KindBigInt:    "bigint",
	KindSymbol:    "symbol",
	KindFunc:      "func",
	KindDate:      "date",
	KindPattern:   "pattern",
	KindTyped:     "typed",
	KindList:      "list",
	KindMap:       "map",
	KindSet:       "set",
	KindObject:    "object",
	KindOpaque:    "opaque",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

type (
	// Null is the explicit null value.
	Null struct{}
	// Undefined marks an absent value. Inside an Object it keeps the key.
	Undefined struct{}
	// String is a string primitive.
	String string
	// Number is a float64 primitive, NaN and infinities included.
	Number float64
	// Bool is a boolean primitive.
	Bool bool
	// Symbol is a symbolic atom, compared by description.
	Symbol string
	// Func is an opaque function reference, compared by name.
	Func string
)

// BigInt is an arbitrary precision integer.
type BigInt struct {
	Int *big.Int
}

// Date is a point in time. Invalid dates serialize without a timestamp.
type Date struct {
	Time    time.Time
	Invalid bool
}

// InvalidDate returns a Date that serializes as "date:invalid".
func InvalidDate() Date { return Date{Invalid: true} }

// Pattern is a regular expression literal.
type Pattern struct {
	Source string
	Flags  string
}

// Typed is a typed byte/number array. Element order is significant.
// Backslashes and commas inside an element are escaped when serialized.
type Typed struct {
	ElementKind string
	Elements    []string
}

// Opaque is any shape the serializer does not understand. It serializes to
// its tag only, so distinct opaque values with the same tag collide.
type Opaque struct {
	Tag string
}

func (Null) kind() Kind      { return KindNull }
func (Undefined) kind() Kind { return KindUndefined }
func (String) kind() Kind    { return KindString }
func (Number) kind() Kind    { return KindNumber }
func (Bool) kind() Kind      { return KindBool }
func (BigInt) kind() Kind    { return KindBigInt }
func (Symbol) kind() Kind    { return KindSymbol }
func (Func) kind() Kind      { return KindFunc }
func (Date) kind() Kind      { return KindDate }
func (Pattern) kind() Kind   { return KindPattern }
func (Typed) kind() Kind     { return KindTyped }
func (*List) kind() Kind     { return KindList }
func (*Map) kind() Kind      { return KindMap }
func (*Set) kind() Kind      { return KindSet }
func (*Object) kind() Kind   { return KindObject }
func (Opaque) kind() Kind    { return KindOpaque }

// List is an ordered sequence. It is a pointer type so that a list may
// contain itself; such a list fails to serialize.
type List struct {
	Items []any
}

// NewList returns a list holding items in order.
func NewList(items ...any) *List {
	return &List{Items: items}
}

// Append adds items to the end of the list.
func (l *List) Append(items ...any) *List {
	l.Items = append(l.Items, items...)
	return l
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map is an associative map with arbitrary keys. Insertion order is kept
// but does not affect the serialized form.
type Map struct {
	Entries []MapEntry
}

// NewMap returns an empty associative map.
func NewMap() *Map {
	return &Map{}
}

// Set appends an entry.
func (m *Map) Set(key, value any) *Map {
	m.Entries = append(m.Entries, MapEntry{Key: key, Value: value})
	return m
}

// Set is an unordered collection of distinct members. Membership is Go
// equality: comparable values equal under == are one member, pointers are
// members by address. Two distinct pointers to equal contents are two
// members and both appear in the serialized form.
type Set struct {
	Items []any
}

// NewSet returns a set holding the distinct members of items.
func NewSet(items ...any) *Set {
	return (&Set{}).Add(items...)
}

// Add adds items that are not members yet.
func (s *Set) Add(items ...any) *Set {
	for _, item := range items {
		if !s.Has(item) {
			s.Items = append(s.Items, item)
		}
	}
	return s
}

// Has reports whether item is a member.
func (s *Set) Has(item any) bool {
	for _, member := range s.Items {
		if sameMember(member, item) {
			return true
		}
	}
	return false
}

// sameMember compares like == but never panics on uncomparable values and
// treats NaN as equal to itself.
func sameMember(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	if a == b {
		return true
	}
	switch ta.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.IsNaN(reflect.ValueOf(a).Float()) && math.IsNaN(reflect.ValueOf(b).Float())
	}
	return false
}

// Object is an unordered property mapping with string and symbol keys.
type Object struct {
	Props   map[string]any
	Symbols map[Symbol]any
}

// NewObject returns an empty property mapping.
func NewObject() *Object {
	return &Object{Props: map[string]any{}}
}

// ObjectOf returns a property mapping holding props.
func ObjectOf(props map[string]any) *Object {
	return &Object{Props: props}
}

// Set assigns a string-keyed property.
func (o *Object) Set(key string, value any) *Object {
	if o.Props == nil {
		o.Props = map[string]any{}
	}
	o.Props[key] = value
	return o
}

// SetSymbol assigns a symbol-keyed property.
func (o *Object) SetSymbol(key Symbol, value any) *Object {
	if o.Symbols == nil {
		o.Symbols = map[Symbol]any{}
	}
	o.Symbols[key] = value
	return o
}
