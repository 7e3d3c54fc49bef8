// Package schema declares the fixed tables of the catalog database.
// The attributes table starts with its fixed columns only; dynamic
// attribute columns are added during ingestion.
package schema

import "github.com/clasier/catdb/pkg/store"

// Table names.
const (
	Subjects           = "subjects"
	Terms              = "terms"
	Courses            = "courses"
	Offerings          = "offerings"
	OfferingAttributes = "offering_attributes"
	ClassListings      = "class_listings"
	MeetingPatterns    = "meeting_patterns"
	Instructors        = "instructors"
	IngestProgress     = "ingest_progress"
	ProfessorRatings   = "professor_ratings"
)

func text(names ...string) []store.ColumnDef {
	res := make([]store.ColumnDef, len(names))
	for i, v := range names {
		res[i] = store.ColumnDef{Name: v, Type: store.Text}
	}
	return res
}

// SubjectsTable keeps the subject reference list.
var SubjectsTable = store.Table{
	Name:       Subjects,
	PrimaryKey: "code",
	Columns:    text("code", "description"),
}

// TermsTable keeps the term reference list.
var TermsTable = store.Table{
	Name:       Terms,
	PrimaryKey: "code",
	Columns:    text("code", "description"),
}

// CoursesTable has one row per distinct course_id.
var CoursesTable = store.Table{
	Name:       Courses,
	PrimaryKey: "course_id",
	Columns: text(
		"course_id", "subject_code", "title",
		"catalog_number", "offering_type_code",
	),
}

// OfferingsTable has one row per (course, offer number).
var OfferingsTable = store.Table{
	Name:       Offerings,
	PrimaryKey: "offering_id",
	Columns: text(
		"offering_id", "course_id", "long_description",
		"consent_description", "academic_career", "component_type",
	),
}

// OfferingAttributesTable has one row per offering. Its column set grows
// with every attribute name discovered.
var OfferingAttributesTable = store.Table{
	Name:       OfferingAttributes,
	PrimaryKey: "offering_id",
	Columns: text(
		"offering_id", "long_description", "requirement_group_description",
	),
}

// ClassListingsTable has one row per (offering, term).
var ClassListingsTable = store.Table{
	Name:       ClassListings,
	PrimaryKey: "class_id",
	Columns: text(
		"class_id", "course_id", "offer_number", "term_code",
	),
}

// MeetingPatternsTable has zero or more rows per class listing.
var MeetingPatternsTable = store.Table{
	Name:       MeetingPatterns,
	PrimaryKey: "meeting_id",
	Columns: text(
		"meeting_id", "class_id", "section_code",
		"location", "schedule_description",
	),
}

// InstructorsTable has zero or more rows per meeting pattern.
var InstructorsTable = store.Table{
	Name:       Instructors,
	PrimaryKey: "assignment_id",
	Columns: text(
		"assignment_id", "class_id", "section_code",
		"display_name", "last_name", "first_name",
	),
}

// IngestProgressTable keeps a checkpoint for every completed subject.
var IngestProgressTable = store.Table{
	Name:       IngestProgress,
	PrimaryKey: "subject_code",
	Columns: []store.ColumnDef{
		{Name: "subject_code", Type: store.Text},
		{Name: "run_id", Type: store.Text},
		{Name: "terms", Type: store.Text},
		{Name: "courses", Type: store.Integer},
		{Name: "completed_at", Type: store.Text},
	},
}

// ProfessorRatingsTable is filled by the external rating scraper.
var ProfessorRatingsTable = store.Table{
	Name:       ProfessorRatings,
	PrimaryKey: "professor_name",
	Columns: []store.ColumnDef{
		{Name: "professor_name", Type: store.Text},
		{Name: "avg_rating", Type: store.Real},
		{Name: "avg_difficulty", Type: store.Real},
		{Name: "would_take_again_pct", Type: store.Real},
		{Name: "tags", Type: store.Text},
	},
}

// CatalogTables returns the tables written by ingestion, parents first.
func CatalogTables() []store.Table {
	return []store.Table{
		SubjectsTable,
		TermsTable,
		CoursesTable,
		OfferingsTable,
		OfferingAttributesTable,
		ClassListingsTable,
		MeetingPatternsTable,
		InstructorsTable,
		IngestProgressTable,
	}
}

// AllTables returns every table of the database.
func AllTables() []store.Table {
	return append(CatalogTables(), ProfessorRatingsTable)
}

// TableNames returns the names of the given tables.
func TableNames(tables []store.Table) []string {
	res := make([]string, len(tables))
	for i, v := range tables {
		res[i] = v.Name
	}
	return res
}

// AttributeReserved returns the fixed columns of the attributes table.
// Dynamic attribute columns must not use these names.
func AttributeReserved() []string {
	return OfferingAttributesTable.ColumnNames()
}
