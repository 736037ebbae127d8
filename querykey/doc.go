// Package querykey turns structured identifiers into canonical strings.
//
// # Overview
//
// An identifier (Key) is an ordered sequence of JSON-like values. Serialize
// maps any identifier value to its canonical form and Hash prefixes that form
// with "qk:" so it can be used verbatim as a cache map key:
//
//	h, err := querykey.Hash(querykey.Key{"todos", map[string]any{"page": 1, "done": false}})
//	// h == `qk:[str:"todos",{str:"done"=>bool:0,str:"page"=>num:1}]`
//
// # Canonical Form
//
// Every kind carries its own tag so values of different kinds never collide:
//
//	null                    null
//	undef                   Undefined{}
//	str:"..."               strings (Go quoting)
//	num:1.5, num:NaN        numbers
//	bool:1, bool:0          booleans
//	bigint:123              big integers
//	sym:desc                symbols
//	fn:name                 funcs, by runtime name
//	date:<ISO>|date:invalid dates, UTC with milliseconds
//	regexp:/src/flags       patterns
//	typed:Uint8Array:1,2    byte arrays, order preserved
//	[v,v]                   sequences, order preserved
//	map:{k:v,k:v}           associative maps, entries sorted
//	set:[v,v]               sets, elements sorted
//	{str:"k"=>v,sym:s=>v}   plain objects, keys sorted
//	obj:[object T]          anything else
//
// Unordered containers are sorted by their serialized entries, so insertion
// order never changes the result. Sequences keep their order.
//
// # Limitations
//
// Two distinct closures created from the same function literal share a
// runtime name and therefore the same "fn:" form. Unsupported shapes fall
// back to a tag derived from their Go type and collide with other values of
// that type. Keys should not rely on either for uniqueness.
//
// # Cycles
//
// A collection reached again while it is still being serialized yields a
// *CircularReferenceError naming the collection kind. Reusing the same value
// in sibling positions is fine.
package querykey
