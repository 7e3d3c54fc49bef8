package catalog

import "time"

// Summary reports the outcome of an ingestion run.
type Summary struct {
	// RunID identifies the run in logs and progress checkpoints.
	RunID string

	// Terms are the term codes the run ingested.
	Terms []string

	// Rows counts rows written per table.
	Rows map[string]int

	// SubjectsTotal is the number of subjects selected for the run.
	SubjectsTotal int

	// SubjectsDone counts subjects that were fully processed and
	// checkpointed.
	SubjectsDone int

	// SubjectsPartial counts subjects that had fetch failures. Their rows
	// are saved but they are not checkpointed, so a resumed run retries
	// them.
	SubjectsPartial int

	// SubjectsSkipped counts administrative subjects excluded by the skip
	// rules.
	SubjectsSkipped int

	// SubjectsResumed counts subjects completed by an earlier run.
	SubjectsResumed int

	// CoursesDuplicate counts courses already seen under another subject.
	CoursesDuplicate int

	// RecordsSkipped counts listing records without a usable identifier.
	RecordsSkipped int

	// FetchErrors counts failed listing and offering fetches. The branch
	// below a failed fetch is skipped.
	FetchErrors int

	// DetailErrors counts failed course-details fetches. They only
	// reduce the attribute data of an offering.
	DetailErrors int

	// EmptyOfferings counts (course, term) pairs without offerings.
	EmptyOfferings int

	// AttributeColumns is the number of dynamic attribute columns known
	// at the end of the run.
	AttributeColumns int

	// Interrupted is true when the run was cancelled before all subjects
	// were processed.
	Interrupted bool

	// Duration is the wall time of the run.
	Duration time.Duration
}

// TotalRows returns the number of rows written to all tables.
func (s Summary) TotalRows() int {
	var res int
	for _, v := range s.Rows {
		res += v
	}
	return res
}

// HasFailures is true when any fetch failed during the run.
func (s Summary) HasFailures() bool {
	return s.FetchErrors > 0 || s.DetailErrors > 0
}
