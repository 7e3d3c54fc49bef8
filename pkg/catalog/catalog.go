// Package catalog defines the contracts between the ingestion pipeline and
// its collaborators: the remote curriculum API and the ingestion runner
// itself.
package catalog

import (
	"context"

	"github.com/clasier/catdb/pkg/tree"
)

// LOV field names of the curriculum API.
const (
	FieldSubject = "SUBJECT"
	FieldTerm    = "STRM"
)

// Client is the remote curriculum API.
//
// Every method returns the decoded payload as a tree. On network, status or
// decoding failures the tree is tree.Absent and the error is not nil. A
// successful call may still return a tree without the expected nested
// keys; callers treat that the same as an empty result.
type Client interface {
	// ListValues returns the list-of-values reference data for a field,
	// for example FieldSubject or FieldTerm.
	ListValues(ctx context.Context, field string) (tree.Node, error)

	// CourseListings returns every course of a subject.
	CourseListings(ctx context.Context, subject string) (tree.Node, error)

	// OfferingMetadata returns class summaries of a course in a term.
	OfferingMetadata(ctx context.Context, term, courseID string) (tree.Node, error)

	// CourseDetails returns details of one offering of a course.
	CourseDetails(ctx context.Context, courseID, offerNumber string) (tree.Node, error)
}

// Ingester runs the catalog ingestion pipeline.
type Ingester interface {
	// Ingest pulls subjects, courses and their offerings from the Client
	// and writes them to storage. Cancelling ctx stops fetching; rows
	// buffered so far are flushed before Ingest returns.
	Ingest(ctx context.Context) (Summary, error)
}

// Value is one entry of a list-of-values lookup.
type Value struct {
	Code        string
	Description string
}

// Values extracts list-of-values entries from a ListValues payload.
// Entries without a code are ignored.
func Values(node tree.Node) []Value {
	items := tree.Nested(
		node.Get("scc_lov_resp", "lovs", "lov", "values"), "value",
	)
	var res []Value
	for _, v := range items.Maps() {
		code := v.String("code")
		if code == "" {
			continue
		}
		res = append(res, Value{Code: code, Description: v.String("desc")})
	}
	return res
}
