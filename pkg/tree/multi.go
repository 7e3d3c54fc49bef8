package tree

// Shape tells how a list-shaped field actually arrived.
type Shape int

const (
	// None means the field was missing or null.
	None Shape = iota
	// Single means the API sent one bare record instead of an array.
	Single
	// Many means the API sent an array.
	Many
)

// String implements fmt.Stringer.
func (s Shape) String() string {
	switch s {
	case Single:
		return "single"
	case Many:
		return "many"
	default:
		return "none"
	}
}

// Multi is the normalized form of a field that may hold zero or more
// records. Items is empty for None, has one element for Single and keeps
// the original order for Many.
type Multi struct {
	Shape Shape
	Items []Node
}

// Len returns the number of items.
func (m Multi) Len() int {
	return len(m.Items)
}

// Maps returns only the items that are JSON objects. Upstream arrays
// sometimes contain stray strings or nulls.
func (m Multi) Maps() []Node {
	res := make([]Node, 0, len(m.Items))
	for _, v := range m.Items {
		if v.IsMap() {
			res = append(res, v)
		}
	}
	return res
}

// Nested unwraps the "plural: {singular: [...]}" envelope the API uses for
// most collections. When node is an object holding key, the value under
// key is normalized; otherwise node itself is normalized. Both
// `"course_attributes": [...]` and
// `"course_attributes": {"course_attribute": [...]}` give the same result.
// An empty object counts as None.
func Nested(node Node, key string) Multi {
	if node.Has(key) {
		return node.Get(key).Multi()
	}
	if m, ok := node.v.(map[string]any); ok && len(m) == 0 {
		return Multi{Shape: None}
	}
	return node.Multi()
}
