package ioingest

import (
	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
)

// buffer keeps rows of one table keyed by primary key. A row put twice
// replaces the earlier one in place, so the flush never sees duplicate
// keys and keeps first-seen order.
type buffer struct {
	table string
	pk    string
	idx   map[string]int
	rows  []store.Row
}

func newBuffer(t store.Table) *buffer {
	return &buffer{
		table: t.Name,
		pk:    t.PrimaryKey,
		idx:   make(map[string]int),
	}
}

func (b *buffer) put(row store.Row) {
	key, _ := row[b.pk].(string)
	if i, ok := b.idx[key]; ok {
		b.rows[i] = row
		return
	}
	b.idx[key] = len(b.rows)
	b.rows = append(b.rows, row)
}

func (b *buffer) len() int {
	return len(b.rows)
}

func (b *buffer) reset() {
	b.idx = make(map[string]int)
	b.rows = nil
}

// buffers hold one subject's worth of rows.
type buffers struct {
	courses     *buffer
	offerings   *buffer
	attributes  *buffer
	classes     *buffer
	meetings    *buffer
	instructors *buffer
}

func newBuffers() *buffers {
	return &buffers{
		courses:     newBuffer(schema.CoursesTable),
		offerings:   newBuffer(schema.OfferingsTable),
		attributes:  newBuffer(schema.OfferingAttributesTable),
		classes:     newBuffer(schema.ClassListingsTable),
		meetings:    newBuffer(schema.MeetingPatternsTable),
		instructors: newBuffer(schema.InstructorsTable),
	}
}

// parentsFirst returns the buffers in flush order. The attributes
// buffer follows offerings; its columns are added right before it.
func (b *buffers) parentsFirst() []*buffer {
	return []*buffer{
		b.courses,
		b.offerings,
		b.attributes,
		b.classes,
		b.meetings,
		b.instructors,
	}
}

func (b *buffers) empty() bool {
	for _, v := range b.parentsFirst() {
		if v.len() > 0 {
			return false
		}
	}
	return true
}

func (b *buffers) reset() {
	for _, v := range b.parentsFirst() {
		v.reset()
	}
}
