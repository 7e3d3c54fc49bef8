// Package tree provides safe navigation over decoded JSON payloads.
//
// The catalog API returns deeply nested, sparsely populated documents.
// Keys go missing, nulls appear at any level, and list-shaped fields
// collapse to a bare object when they hold one element. Node hides these
// irregularities: navigation never panics, and list-shaped fields are
// normalized through Multi.
package tree

import (
	"strconv"
	"strings"
)

// Node wraps one value of a decoded JSON document. The zero Node is the
// absence sentinel.
type Node struct {
	v any
}

// New wraps a decoded JSON value (map[string]any, []any, string,
// float64, bool or nil).
func New(v any) Node {
	return Node{v: v}
}

// Absent is the sentinel returned for missing or mistyped paths.
var Absent = Node{}

// IsAbsent is true for missing values and JSON null.
func (n Node) IsAbsent() bool {
	return n.v == nil
}

// Value returns the wrapped raw value.
func (n Node) Value() any {
	return n.v
}

// IsMap reports if the node is a JSON object.
func (n Node) IsMap() bool {
	_, ok := n.v.(map[string]any)
	return ok
}

// IsList reports if the node is a JSON array.
func (n Node) IsList() bool {
	_, ok := n.v.([]any)
	return ok
}

// Get walks the keys in order. If any step meets a non-object, or a key
// is missing, Absent is returned. Get without keys returns the node
// itself.
func (n Node) Get(keys ...string) Node {
	cur := n.v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return Absent
		}
		cur, ok = m[k]
		if !ok {
			return Absent
		}
	}
	return Node{v: cur}
}

// Has reports if the node is an object containing the key.
func (n Node) Has(key string) bool {
	m, ok := n.v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}

// String returns the scalar found at the key path as a trimmed string.
// Objects, arrays and absent values give an empty string.
func (n Node) String(keys ...string) string {
	switch v := n.Get(keys...).v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case interface{ String() string }:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

// Multi returns the node interpreted as "zero or more records".
func (n Node) Multi() Multi {
	switch v := n.v.(type) {
	case nil:
		return Multi{Shape: None}
	case []any:
		items := make([]Node, len(v))
		for i := range v {
			items[i] = Node{v: v[i]}
		}
		return Multi{Shape: Many, Items: items}
	default:
		return Multi{Shape: Single, Items: []Node{n}}
	}
}

// Items is a shortcut for Get(keys...).Multi().Items.
func (n Node) Items(keys ...string) []Node {
	return n.Get(keys...).Multi().Items
}
