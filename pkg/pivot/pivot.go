// Package pivot folds the (name, value) attribute records of one course
// offering into a single flat row. Every distinct attribute name becomes a
// column; values of a repeated name are joined with ", ".
//
// Column names are discovered at runtime. The package does not keep global
// state: Pivot returns the columns a row uses, and callers merge them into
// a Columns accumulator that drives schema evolution before rows are
// written.
package pivot

import (
	"html"
	"slices"
	"strings"

	"github.com/clasier/catdb/pkg/tree"
	"github.com/gnames/gnlib"
)

const (
	// DefaultNameField is the attribute record key holding the attribute
	// name.
	DefaultNameField = "crse_attr_lov_descr"

	// DefaultValueField is the attribute record key holding the attribute
	// value.
	DefaultValueField = "crse_attr_value_lov_descr"

	// Separator joins values of a repeated attribute.
	Separator = ", "
)

// Engine pivots attribute records.
type Engine struct {
	nameField  string
	valueField string
	rewrites   map[string]string
}

// Option configures an Engine.
type Option func(*Engine)

// OptFields sets the record keys for attribute name and value.
func OptFields(name, value string) Option {
	return func(e *Engine) {
		if name != "" && value != "" {
			e.nameField = name
			e.valueField = value
		}
	}
}

// OptRewrites sets value rewrite rules. Keys are raw values as they come
// from the API, values are the display labels stored instead.
func OptRewrites(m map[string]string) Option {
	return func(e *Engine) {
		for k, v := range m {
			e.rewrites[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	res := &Engine{
		nameField:  DefaultNameField,
		valueField: DefaultValueField,
		rewrites:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Row is the pivoted attribute data of one offering.
type Row struct {
	// Columns lists column names in first-seen order.
	Columns []string

	// Values keeps the distinct values of each column in first-seen order.
	Values map[string][]string
}

// Get returns the stored string for a column.
func (r Row) Get(col string) string {
	return strings.Join(r.Values[col], Separator)
}

// Map returns the row as column -> stored string.
func (r Row) Map() map[string]string {
	res := make(map[string]string, len(r.Columns))
	for _, col := range r.Columns {
		res[col] = r.Get(col)
	}
	return res
}

// Pivot folds records gathered from any number of payload locations.
// Records that are not objects, or that have an empty name or value, are
// skipped. Inside one source every value is kept, repeats included. A
// value that an earlier source already gave for the column (for example
// the class listing and the course details call both carrying it) is
// stored once.
func (e *Engine) Pivot(sources ...[]tree.Node) Row {
	res := Row{Values: make(map[string][]string)}
	for _, records := range sources {
		// values per column given by earlier sources
		prior := make(map[string]int)
		for _, rec := range records {
			if !rec.IsMap() {
				continue
			}
			name := Clean(rec.String(e.nameField))
			value := e.Rewrite(Clean(rec.String(e.valueField)))
			if name == "" || value == "" {
				continue
			}
			col := ColumnName(name)
			vals, ok := res.Values[col]
			if !ok {
				res.Columns = append(res.Columns, col)
			}
			n, ok := prior[col]
			if !ok {
				n = len(vals)
				prior[col] = n
			}
			if !slices.Contains(vals[:n], value) {
				res.Values[col] = append(vals, value)
			}
		}
	}
	return res
}

// Rewrite applies the known value rewrite rules.
func (e *Engine) Rewrite(value string) string {
	if v, ok := e.rewrites[value]; ok {
		return v
	}
	return value
}

// Clean repairs broken UTF-8, decodes HTML entities and trims whitespace.
func Clean(s string) string {
	if s == "" {
		return s
	}
	s = gnlib.FixUtf8(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}
