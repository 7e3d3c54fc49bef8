package ioingest

import (
	"context"
	"errors"

	"github.com/clasier/catdb/pkg/tree"
)

var errFake = errors.New("fake fetch failure")

// obj and list build decoded JSON the way the API client produces it.
type obj = map[string]any

func list(items ...any) []any {
	return items
}

// fakeClient serves catalog payloads from memory.
type fakeClient struct {
	subjects []string
	terms    []string
	// courses: subject -> course_summary records
	courses map[string][]any
	// classes: term/course_id -> class_summary records
	classes map[string][]any
	// subjectAttrs: term/course_id -> subject-level course_attributes
	subjectAttrs map[string]any
	// details: course_id/offer_number -> course_offering record
	details map[string]obj
	// fail lists call keys that return an error.
	fail map[string]bool
	// onCall runs before every call with its key.
	onCall func(key string)
	calls  []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		courses:      make(map[string][]any),
		classes:      make(map[string][]any),
		subjectAttrs: make(map[string]any),
		details:      make(map[string]obj),
		fail:         make(map[string]bool),
	}
}

func (f *fakeClient) call(ctx context.Context, key string) error {
	f.calls = append(f.calls, key)
	if f.onCall != nil {
		f.onCall(key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.fail[key] {
		return errFake
	}
	return nil
}

func lov(codes []string) tree.Node {
	vals := make([]any, len(codes))
	for i, v := range codes {
		vals[i] = obj{"code": v, "desc": "Description of " + v}
	}
	return tree.New(obj{"scc_lov_resp": obj{"lovs": obj{"lov": obj{
		"values": obj{"value": vals},
	}}}})
}

func (f *fakeClient) ListValues(ctx context.Context, field string) (tree.Node, error) {
	if err := f.call(ctx, "lov/"+field); err != nil {
		return tree.Absent, err
	}
	if field == "SUBJECT" {
		return lov(f.subjects), nil
	}
	return lov(f.terms), nil
}

func (f *fakeClient) CourseListings(ctx context.Context, subject string) (tree.Node, error) {
	if err := f.call(ctx, "courses/"+subject); err != nil {
		return tree.Absent, err
	}
	cs, ok := f.courses[subject]
	if !ok {
		return tree.New(obj{}), nil
	}
	return tree.New(obj{"ssr_get_courses_resp": obj{"course_search_result": obj{
		"subjects": obj{"subject": obj{
			"course_summaries": obj{"course_summary": cs},
		}},
	}}}), nil
}

func (f *fakeClient) OfferingMetadata(
	ctx context.Context,
	term, courseID string,
) (tree.Node, error) {
	key := term + "/" + courseID
	if err := f.call(ctx, "classes/"+key); err != nil {
		return tree.Absent, err
	}
	summaries, ok := f.classes[key]
	if !ok {
		return tree.New(obj{"ssr_get_classes_resp": obj{"search_result": obj{}}}), nil
	}
	subject := obj{"classes_summary": obj{"class_summary": summaries}}
	if attrs, ok := f.subjectAttrs[key]; ok {
		subject["course_attributes"] = attrs
	}
	return tree.New(obj{"ssr_get_classes_resp": obj{"search_result": obj{
		"subjects": obj{"subject": subject},
	}}}), nil
}

func (f *fakeClient) CourseDetails(
	ctx context.Context,
	courseID, offerNumber string,
) (tree.Node, error) {
	key := courseID + "/" + offerNumber
	if err := f.call(ctx, "details/"+key); err != nil {
		return tree.Absent, err
	}
	d, ok := f.details[key]
	if !ok {
		return tree.New(obj{}), nil
	}
	return tree.New(obj{"ssr_get_course_offering_resp": obj{
		"course_offering_result": obj{"course_offering": d},
	}}), nil
}

func attr(name, value string) obj {
	return obj{"crse_attr_lov_descr": name, "crse_attr_value_lov_descr": value}
}

func course(id, catalogNbr, title string) obj {
	return obj{"crse_id": id, "catalog_nbr": catalogNbr, "course_title_long": title}
}

// addCourse registers a course with one offering in every term.
func (f *fakeClient) addCourse(subject, id string, terms ...string) {
	f.courses[subject] = append(f.courses[subject], course(id, "1"+id[len(id)-2:], "Course "+id))
	for _, t := range terms {
		f.classes[t+"/"+id] = list(obj{
			"crse_offer_nbr": "1",
			"class_section":  "01",
			"ssr_descrlong":  "About " + id,
			"course_attributes": obj{"course_attribute": list(
				attr("Areas of Knowledge", "Natural Sciences"),
			)},
			"classes_meeting_patterns": obj{"class_meeting_pattern": obj{
				"ssr_mtg_loc_long":   "Room " + id,
				"ssr_mtg_sched_long": "TuTh 10:05-11:20",
				"class_instructors": obj{"class_instructor": obj{
					"name_display": "Prof " + id,
				}},
			}},
		})
	}
}
