package ioingest

import (
	"github.com/clasier/catdb/pkg/pivot"
	"github.com/clasier/catdb/pkg/store"
	"github.com/clasier/catdb/pkg/tree"
)

// courseSummaries extracts course records from a CourseListings payload.
func courseSummaries(n tree.Node) []tree.Node {
	subjects := tree.Nested(
		n.Get("ssr_get_courses_resp", "course_search_result", "subjects"),
		"subject",
	)
	var res []tree.Node
	for _, v := range subjects.Maps() {
		res = append(res,
			tree.Nested(v.Get("course_summaries"), "course_summary").Maps()...)
	}
	return res
}

// classSubject is one subject block of an OfferingMetadata payload.
type classSubject struct {
	node       tree.Node
	summaries  []tree.Node
	attributes []tree.Node
}

// classSubjects extracts subject blocks with their class summaries and
// subject-level attribute records.
func classSubjects(n tree.Node) []classSubject {
	subjects := tree.Nested(
		n.Get("ssr_get_classes_resp", "search_result", "subjects"),
		"subject",
	)
	var res []classSubject
	for _, v := range subjects.Maps() {
		cs := classSubject{
			node:       v,
			summaries:  tree.Nested(v.Get("classes_summary"), "class_summary").Maps(),
			attributes: attributeRecords(v),
		}
		if len(cs.summaries) > 0 {
			res = append(res, cs)
		}
	}
	return res
}

// attributeRecords returns the course_attributes records of a node. The
// field may be a list or a mapping holding course_attribute.
func attributeRecords(n tree.Node) []tree.Node {
	return tree.Nested(n.Get("course_attributes"), "course_attribute").Items
}

// meetingPatterns returns the meeting patterns of a class summary. Some
// payloads keep them on the subject block instead.
func meetingPatterns(listing, subject tree.Node) []tree.Node {
	res := tree.Nested(
		listing.Get("classes_meeting_patterns"), "class_meeting_pattern",
	).Maps()
	if len(res) > 0 {
		return res
	}
	return tree.Nested(
		subject.Get("classes_meeting_patterns"), "class_meeting_pattern",
	).Maps()
}

// instructorRecords returns class_instructor records of a node.
func instructorRecords(n tree.Node) []tree.Node {
	return tree.Nested(n.Get("class_instructors"), "class_instructor").Maps()
}

// details is the part of a CourseDetails payload used by ingestion.
type details struct {
	description string
	requirement string
	attributes  []tree.Node
}

func parseDetails(n tree.Node) details {
	o := n.Get("ssr_get_course_offering_resp", "course_offering_result", "course_offering")
	return details{
		description: pivot.Clean(o.String("descrlong")),
		requirement: pivot.Clean(o.String("rqrmnt_group_descr")),
		attributes:  attributeRecords(o),
	}
}

func courseRow(subject, courseID string, c tree.Node) store.Row {
	return store.Row{
		"course_id":          courseID,
		"subject_code":       subject,
		"title":              text(c, "course_title_long"),
		"catalog_number":     text(c, "catalog_nbr"),
		"offering_type_code": text(c, "ssr_crse_typoff_cd"),
	}
}

func offeringRow(offeringID, courseID string, l tree.Node) store.Row {
	return store.Row{
		"offering_id":         offeringID,
		"course_id":           courseID,
		"long_description":    text(l, "ssr_descrlong"),
		"consent_description": text(l, "consent_lov_descr"),
		"academic_career":     text(l, "acad_career"),
		"component_type":      text(l, "ssr_component"),
	}
}

// attributesRow merges fixed descriptions with pivoted attribute values.
// The course-details description wins over the listing one.
func attributesRow(
	offeringID string,
	l tree.Node,
	d details,
	p pivot.Row,
) store.Row {
	desc := d.description
	if desc == "" {
		desc = pivot.Clean(l.String("ssr_descrlong"))
	}
	res := store.Row{
		"offering_id":                   offeringID,
		"long_description":              nullable(desc),
		"requirement_group_description": nullable(d.requirement),
	}
	for k, v := range p.Map() {
		res[k] = v
	}
	return res
}

func classRow(classID, courseID, offerNumber, term string) store.Row {
	return store.Row{
		"class_id":     classID,
		"course_id":    courseID,
		"offer_number": offerNumber,
		"term_code":    term,
	}
}

func meetingRow(meetingID, classID, section string, m tree.Node) store.Row {
	return store.Row{
		"meeting_id":           meetingID,
		"class_id":             classID,
		"section_code":         nullable(section),
		"location":             text(m, "ssr_mtg_loc_long"),
		"schedule_description": text(m, "ssr_mtg_sched_long"),
	}
}

func instructorRow(assignmentID, classID, section, name string, i tree.Node) store.Row {
	return store.Row{
		"assignment_id": assignmentID,
		"class_id":      classID,
		"section_code":  nullable(section),
		"display_name":  name,
		"last_name":     text(i, "last_name"),
		"first_name":    text(i, "first_name"),
	}
}

// displayName returns name_display, or "first last" when the API left
// it empty.
func displayName(i tree.Node) string {
	if res := pivot.Clean(i.String("name_display")); res != "" {
		return res
	}
	first := pivot.Clean(i.String("first_name"))
	last := pivot.Clean(i.String("last_name"))
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// text returns the cleaned string at key, or nil when it is empty.
func text(n tree.Node, key string) any {
	return nullable(pivot.Clean(n.String(key)))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
