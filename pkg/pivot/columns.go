package pivot

import (
	"errors"
	"fmt"
)

// ErrReservedColumn is returned when an attribute maps to a column name
// that the attributes table already uses for fixed data.
var ErrReservedColumn = errors.New("attribute column collides with reserved column")

// Columns is the set of dynamic attribute columns discovered during a run.
// It only grows. It is not safe for concurrent use.
type Columns struct {
	names    []string
	seen     map[string]struct{}
	reserved map[string]struct{}
}

// NewColumns creates an empty accumulator. Reserved names can never be
// registered as dynamic columns.
func NewColumns(reserved ...string) *Columns {
	res := &Columns{
		seen:     make(map[string]struct{}),
		reserved: make(map[string]struct{}, len(reserved)),
	}
	for _, v := range reserved {
		res.reserved[v] = struct{}{}
	}
	return res
}

// Add registers column names and returns the ones that were new.
// A reserved name aborts registration with ErrReservedColumn.
func (c *Columns) Add(names ...string) ([]string, error) {
	var added []string
	for _, v := range names {
		if _, ok := c.reserved[v]; ok {
			return added, fmt.Errorf("%w: %q", ErrReservedColumn, v)
		}
		if _, ok := c.seen[v]; ok {
			continue
		}
		c.seen[v] = struct{}{}
		c.names = append(c.names, v)
		added = append(added, v)
	}
	return added, nil
}

// Merge adds all names of another accumulator.
func (c *Columns) Merge(other *Columns) error {
	_, err := c.Add(other.names...)
	return err
}

// Has reports if a column was registered.
func (c *Columns) Has(name string) bool {
	_, ok := c.seen[name]
	return ok
}

// Names returns registered names in discovery order.
func (c *Columns) Names() []string {
	res := make([]string, len(c.names))
	copy(res, c.names)
	return res
}

// Len returns the number of registered columns.
func (c *Columns) Len() int {
	return len(c.names)
}
