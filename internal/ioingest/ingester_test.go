package ioingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clasier/catdb/internal/iotesting"
	"github.com/clasier/catdb/pkg/catalog"
	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/errcode"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(opts ...config.Option) *config.Config {
	cfg := config.New()
	cfg.Update(append([]config.Option{config.OptAPIRequestDelay(0)}, opts...))
	return cfg
}

func newTestIngester(
	cfg *config.Config,
	client catalog.Client,
	gw store.Gateway,
) *ingester {
	res := New(cfg, client, gw).(*ingester)
	res.progress = false
	res.flushBackoff = time.Millisecond
	return res
}

func ingest(
	t *testing.T,
	ctx context.Context,
	cfg *config.Config,
	client catalog.Client,
	gw store.Gateway,
) catalog.Summary {
	t.Helper()
	sum, err := newTestIngester(cfg, client, gw).Ingest(ctx)
	require.NoError(t, err)
	return sum
}

func selectRows(t *testing.T, gw store.Gateway, table string, filters map[string]any) []store.Row {
	t.Helper()
	rows, err := gw.Select(context.Background(), table, filters, 0)
	require.NoError(t, err)
	return rows
}

func count(t *testing.T, gw store.Gateway, table string) int {
	t.Helper()
	n, err := gw.Count(context.Background(), table)
	require.NoError(t, err)
	return n
}

func errCode(t *testing.T, err error) gn.ErrorCode {
	t.Helper()
	var gnErr *gn.Error
	require.True(t, errors.As(err, &gnErr), "expected *gn.Error")
	return gnErr.Code
}

// scenarioClient serves one subject with one course, one term and one
// offering that has one attribute, meeting pattern and instructor.
func scenarioClient() *fakeClient {
	f := newFakeClient()
	f.subjects = []string{"CSC"}
	f.terms = []string{"1940"}
	f.courses["CSC"] = list(obj{
		"crse_id":           "014361",
		"catalog_nbr":       "101",
		"course_title_long": "Intro to Programming",
	})
	f.classes["1940/014361"] = list(obj{
		"crse_offer_nbr": "1",
		"class_section":  "01",
		"ssr_descrlong":  "Learn basics",
		"course_attributes": obj{"course_attribute": attr(
			"Areas of Knowledge", "Quantitative Studies",
		)},
		"classes_meeting_patterns": obj{"class_meeting_pattern": obj{
			"ssr_mtg_loc_long":   "LSRC A156",
			"ssr_mtg_sched_long": "MWF 10:05-11:20",
			"class_instructors": obj{"class_instructor": obj{
				"name_display": "Susan Rodger",
			}},
		}},
	})
	return f
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)
	sum := ingest(t, ctx, testConfig(), scenarioClient(), gw)

	assert.False(t, sum.Interrupted)
	assert.Equal(t, []string{"1940"}, sum.Terms)
	assert.Equal(t, 1, sum.SubjectsTotal)
	assert.Equal(t, 1, sum.SubjectsDone)
	assert.Equal(t, 1, sum.AttributeColumns)
	assert.Zero(t, sum.FetchErrors)
	assert.NotEmpty(t, sum.RunID)

	courses := selectRows(t, gw, schema.Courses, nil)
	require.Len(t, courses, 1)
	assert.Equal(t, "014361", courses[0]["course_id"])
	assert.Equal(t, "CSC", courses[0]["subject_code"])
	assert.Equal(t, "Intro to Programming", courses[0]["title"])
	assert.Equal(t, "101", courses[0]["catalog_number"])

	offerings := selectRows(t, gw, schema.Offerings, nil)
	require.Len(t, offerings, 1)
	assert.Equal(t, "014361_1", offerings[0]["offering_id"])
	assert.Equal(t, "014361", offerings[0]["course_id"])
	assert.Equal(t, "Learn basics", offerings[0]["long_description"])

	attrs := selectRows(t, gw, schema.OfferingAttributes, nil)
	require.Len(t, attrs, 1)
	assert.Equal(t, "014361_1", attrs[0]["offering_id"])
	assert.Equal(t, "Quantitative Studies", attrs[0]["areas_of_knowledge"])
	assert.Equal(t, "Learn basics", attrs[0]["long_description"])

	classes := selectRows(t, gw, schema.ClassListings, nil)
	require.Len(t, classes, 1)
	assert.Equal(t, "014361_1_1940", classes[0]["class_id"])
	assert.Equal(t, "1", classes[0]["offer_number"])
	assert.Equal(t, "1940", classes[0]["term_code"])

	meetings := selectRows(t, gw, schema.MeetingPatterns, nil)
	require.Len(t, meetings, 1)
	assert.Equal(t, "014361_1_1940", meetings[0]["class_id"])
	assert.Equal(t, "LSRC A156", meetings[0]["location"])
	assert.Equal(t, "MWF 10:05-11:20", meetings[0]["schedule_description"])
	assert.Equal(t, "01", meetings[0]["section_code"])

	instructors := selectRows(t, gw, schema.Instructors, nil)
	require.Len(t, instructors, 1)
	assert.Equal(t, "014361_1_1940", instructors[0]["class_id"])
	assert.Equal(t, "Susan Rodger", instructors[0]["display_name"])

	assert.Equal(t, 1, count(t, gw, schema.Subjects))
	assert.Equal(t, 1, count(t, gw, schema.Terms))
	progress := selectRows(t, gw, schema.IngestProgress, nil)
	require.Len(t, progress, 1)
	assert.Equal(t, "CSC", progress[0]["subject_code"])
	assert.Equal(t, sum.RunID, progress[0]["run_id"])
	assert.Equal(t, "1940", progress[0]["terms"])
	assert.EqualValues(t, 1, progress[0]["courses"])

	assert.Equal(t, 1, sum.Rows[schema.Courses])
	assert.Equal(t, 1, sum.Rows[schema.Instructors])
}

func TestIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)
	f := newFakeClient()
	f.subjects = []string{"BIO", "CSC"}
	f.terms = []string{"1930", "1940"}
	f.addCourse("BIO", "000101", "1930", "1940")
	f.addCourse("BIO", "000102", "1940")
	f.addCourse("CSC", "000201", "1930", "1940")
	cfg := testConfig(config.OptIngestTermMode("all"))

	tables := schema.TableNames(schema.CatalogTables())
	counts := func() map[string]int {
		res := make(map[string]int)
		for _, v := range tables {
			if v != schema.IngestProgress {
				res[v] = count(t, gw, v)
			}
		}
		return res
	}

	first := ingest(t, ctx, cfg, f, gw)
	before := counts()
	second := ingest(t, ctx, cfg, f, gw)
	after := counts()

	assert.Equal(t, before, after)
	assert.Equal(t, 3, before[schema.Courses])
	assert.Equal(t, 3, before[schema.Offerings])
	assert.Equal(t, 5, before[schema.ClassListings])
	assert.Equal(t, 5, before[schema.MeetingPatterns])
	assert.Equal(t, 5, before[schema.Instructors])
	assert.Equal(t, first.Rows, second.Rows)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestMonotonicSchema(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)
	f := scenarioClient()
	ingest(t, ctx, testConfig(), f, gw)

	// the offering loses its attribute and gains another one
	listing := f.classes["1940/014361"][0].(obj)
	listing["course_attributes"] = list(attr("Trinity Requirements", "T"))
	sum := ingest(t, ctx, testConfig(), f, gw)
	assert.Equal(t, 1, sum.AttributeColumns)

	cols, err := gw.Columns(ctx, schema.OfferingAttributes)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"offering_id", "long_description", "requirement_group_description",
		"areas_of_knowledge", "trinity_requirements",
	}, cols)

	attrs := selectRows(t, gw, schema.OfferingAttributes, nil)
	require.Len(t, attrs, 1)
	assert.Nil(t, attrs[0]["areas_of_knowledge"])
	assert.Equal(t, "T", attrs[0]["trinity_requirements"])

	// dynamic columns are filterable
	rows := selectRows(t, gw, schema.OfferingAttributes,
		map[string]any{"trinity_requirements": "T"})
	assert.Len(t, rows, 1)
}

func TestCourseDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("details add attributes and descriptions", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := scenarioClient()
		f.subjectAttrs["1940/014361"] = obj{"course_attribute": list(
			attr("Modes of Inquiry", "QS"),
			"stray string",
		)}
		f.details["014361/1"] = obj{
			"descrlong":          "Full description &amp; more",
			"rqrmnt_group_descr": "Prereq: none",
			"course_attributes": list(
				attr("Areas of Knowledge", "Quantitative Studies"),
				attr("Modes of Inquiry", "CZ"),
				nil,
			),
		}
		sum := ingest(t, ctx, testConfig(), f, gw)
		assert.Equal(t, 2, sum.AttributeColumns)

		attrs := selectRows(t, gw, schema.OfferingAttributes, nil)
		require.Len(t, attrs, 1)
		assert.Equal(t, "Full description & more", attrs[0]["long_description"])
		assert.Equal(t, "Prereq: none", attrs[0]["requirement_group_description"])
		assert.Equal(t, "Quantitative Studies", attrs[0]["areas_of_knowledge"])
		assert.Equal(t, "QS, CZ", attrs[0]["modes_of_inquiry"])
	})

	t.Run("failed details are not fatal", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := scenarioClient()
		f.fail["details/014361/1"] = true
		cfg := testConfig(config.OptIngestContinueOnError(false))
		sum := ingest(t, ctx, cfg, f, gw)

		assert.Equal(t, 1, sum.DetailErrors)
		assert.Equal(t, 1, sum.SubjectsPartial)
		assert.Zero(t, sum.SubjectsDone)
		attrs := selectRows(t, gw, schema.OfferingAttributes, nil)
		require.Len(t, attrs, 1)
		assert.Equal(t, "Learn basics", attrs[0]["long_description"])
		assert.Equal(t, "Quantitative Studies", attrs[0]["areas_of_knowledge"])
		assert.Zero(t, count(t, gw, schema.IngestProgress))
	})

	t.Run("details can be turned off", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := scenarioClient()
		cfg := testConfig(config.OptIngestWithCourseDetails(false))
		ingest(t, ctx, cfg, f, gw)
		assert.NotContains(t, f.calls, "details/014361/1")
	})
}

func TestDedupPolicy(t *testing.T) {
	ctx := context.Background()
	setup := func() *fakeClient {
		f := newFakeClient()
		f.subjects = []string{"CSC", "MATH"}
		f.terms = []string{"1940"}
		f.courses["CSC"] = list(course("000100", "230", "Discrete Math"))
		f.courses["MATH"] = list(
			course("000100", "230", "Discrete Mathematics"),
			course("", "999", "No id"),
		)
		return f
	}

	tests := []struct {
		policy, subject, title string
	}{
		{"first", "CSC", "Discrete Math"},
		{"last", "MATH", "Discrete Mathematics"},
	}

	for _, v := range tests {
		t.Run(v.policy, func(t *testing.T) {
			gw := iotesting.NewSQLite(t, 0)
			f := setup()
			cfg := testConfig(config.OptIngestDedupPolicy(v.policy))
			sum := ingest(t, ctx, cfg, f, gw)

			assert.Equal(t, 1, sum.CoursesDuplicate)
			assert.Equal(t, 1, sum.RecordsSkipped)
			rows := selectRows(t, gw, schema.Courses, nil)
			require.Len(t, rows, 1)
			assert.Equal(t, v.subject, rows[0]["subject_code"])
			assert.Equal(t, v.title, rows[0]["title"])

			// offerings of a duplicate are fetched once
			var n int
			for _, c := range f.calls {
				if c == "classes/1940/000100" {
					n++
				}
			}
			assert.Equal(t, 1, n)
		})
	}
}

func TestSubjectSelection(t *testing.T) {
	ctx := context.Background()
	f := newFakeClient()
	f.subjects = []string{"CSC", "K_ABC", "ZZZTEST", "INCC_X", "MATH", "A_B"}
	f.terms = []string{"1940"}

	t.Run("skip rules", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		sum := ingest(t, ctx, testConfig(), f, gw)
		assert.Equal(t, 4, sum.SubjectsSkipped)
		assert.Equal(t, 2, sum.SubjectsTotal)

		rows := selectRows(t, gw, schema.IngestProgress, nil)
		var codes []any
		for _, v := range rows {
			codes = append(codes, v["subject_code"])
		}
		assert.Equal(t, []any{"CSC", "MATH"}, codes)
		assert.Equal(t, 6, count(t, gw, schema.Subjects))
	})

	t.Run("explicit subjects", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		cfg := testConfig(config.OptIngestSubjects([]string{"math", "K_ABC", "NOPE"}))
		sum := ingest(t, ctx, cfg, f, gw)
		assert.Equal(t, 2, sum.SubjectsTotal)
		assert.Zero(t, sum.SubjectsSkipped)
		assert.Equal(t, 2, count(t, gw, schema.IngestProgress))
	})
}

func TestFetchFailures(t *testing.T) {
	ctx := context.Background()
	setup := func() *fakeClient {
		f := newFakeClient()
		f.subjects = []string{"BIO", "CSC", "MATH"}
		f.terms = []string{"1940"}
		f.addCourse("BIO", "000101", "1940")
		f.addCourse("CSC", "000201", "1940")
		f.addCourse("CSC", "000202", "1940")
		f.addCourse("MATH", "000301", "1940")
		f.fail["courses/BIO"] = true
		f.fail["classes/1940/000201"] = true
		return f
	}

	t.Run("continue on error", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		sum := ingest(t, ctx, testConfig(), setup(), gw)

		assert.Equal(t, 2, sum.FetchErrors)
		assert.True(t, sum.HasFailures())
		assert.Equal(t, 1, sum.SubjectsDone)
		assert.Equal(t, 2, sum.SubjectsPartial)
		assert.Equal(t, 3, count(t, gw, schema.Courses))
		assert.Equal(t, 2, count(t, gw, schema.Offerings))

		// only clean subjects are checkpointed
		rows := selectRows(t, gw, schema.IngestProgress, nil)
		require.Len(t, rows, 1)
		assert.Equal(t, "MATH", rows[0]["subject_code"])
	})

	t.Run("fail fast", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := setup()
		delete(f.fail, "courses/BIO")
		cfg := testConfig(config.OptIngestContinueOnError(false))
		sum, err := newTestIngester(cfg, f, gw).Ingest(ctx)
		require.Error(t, err)
		assert.Equal(t, errcode.IngestFetchError, errCode(t, err))
		assert.Equal(t, 1, sum.SubjectsDone)

		// rows buffered before the failure are saved
		rows := selectRows(t, gw, schema.Courses, map[string]any{"subject_code": "CSC"})
		assert.Len(t, rows, 1)
		assert.Equal(t, 1, count(t, gw, schema.Offerings))
		assert.NotContains(t, f.calls, "courses/MATH")
	})

	t.Run("reference data", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := setup()
		f.fail["lov/SUBJECT"] = true
		_, err := newTestIngester(testConfig(), f, gw).Ingest(ctx)
		require.Error(t, err)
		assert.Equal(t, errcode.IngestReferenceDataError, errCode(t, err))
	})
}

func TestReservedColumn(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)
	f := scenarioClient()
	listing := f.classes["1940/014361"][0].(obj)
	listing["course_attributes"] = list(attr("Long Description", "clash"))

	_, err := newTestIngester(testConfig(), f, gw).Ingest(ctx)
	require.Error(t, err)
	assert.Equal(t, errcode.IngestAttributeColumnError, errCode(t, err))
}

func TestInterrupt(t *testing.T) {
	setup := func() *fakeClient {
		f := newFakeClient()
		f.subjects = []string{"BIO", "CSC", "MATH", "PHYS"}
		f.terms = []string{"1940"}
		f.addCourse("BIO", "000101", "1940")
		f.addCourse("BIO", "000102", "1940")
		f.addCourse("CSC", "000201", "1940")
		f.addCourse("CSC", "000202", "1940")
		f.addCourse("MATH", "000301", "1940")
		f.addCourse("PHYS", "000401", "1940")
		return f
	}

	t.Run("between subjects", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := setup()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.onCall = func(key string) {
			if key == "courses/MATH" {
				cancel()
			}
		}

		sum := ingest(t, ctx, testConfig(), f, gw)
		assert.True(t, sum.Interrupted)
		assert.Equal(t, 2, sum.SubjectsDone)
		assert.Equal(t, 4, count(t, gw, schema.Courses))
		assert.Equal(t, 4, count(t, gw, schema.ClassListings))
		assert.Equal(t, 2, count(t, gw, schema.IngestProgress))
		assert.NotContains(t, f.calls, "courses/PHYS")
	})

	t.Run("inside a subject", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := setup()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.onCall = func(key string) {
			if key == "classes/1940/000202" {
				cancel()
			}
		}

		sum := ingest(t, ctx, testConfig(), f, gw)
		assert.True(t, sum.Interrupted)
		assert.Equal(t, 1, sum.SubjectsDone)

		// buffered rows of CSC are saved, the subject is not checkpointed
		assert.Equal(t, 4, count(t, gw, schema.Courses))
		assert.Equal(t, 3, count(t, gw, schema.ClassListings))
		rows := selectRows(t, gw, schema.IngestProgress, nil)
		require.Len(t, rows, 1)
		assert.Equal(t, "BIO", rows[0]["subject_code"])

		// resume finishes the rest
		f.onCall = nil
		f.calls = nil
		cfg := testConfig(config.OptIngestResume(true))
		sum = ingest(t, context.Background(), cfg, f, gw)
		assert.False(t, sum.Interrupted)
		assert.Equal(t, 1, sum.SubjectsResumed)
		assert.Equal(t, 3, sum.SubjectsDone)
		assert.NotContains(t, f.calls, "courses/BIO")
		assert.Equal(t, 6, count(t, gw, schema.Courses))
		assert.Equal(t, 6, count(t, gw, schema.ClassListings))
		assert.Equal(t, 4, count(t, gw, schema.IngestProgress))
	})

	t.Run("during course details", func(t *testing.T) {
		gw := iotesting.NewSQLite(t, 0)
		f := setup()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.onCall = func(key string) {
			if key == "details/000101/1" {
				cancel()
			}
		}

		sum := ingest(t, ctx, testConfig(), f, gw)
		assert.True(t, sum.Interrupted)
		assert.Zero(t, sum.SubjectsDone)

		offerings := count(t, gw, schema.Offerings)
		assert.Zero(t, offerings)
		assert.Equal(t, offerings, count(t, gw, schema.OfferingAttributes))
		assert.Equal(t, offerings, count(t, gw, schema.ClassListings))
		assert.Zero(t, count(t, gw, schema.IngestProgress))
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	gw := iotesting.NewSQLite(t, 0)
	f := newFakeClient()
	f.subjects = []string{"CSC", "MATH"}
	f.terms = []string{"1940"}
	f.addCourse("CSC", "000201", "1940")
	f.addCourse("MATH", "000301", "1940")
	ingest(t, ctx, testConfig(), f, gw)
	assert.Equal(t, 2, count(t, gw, schema.Courses))

	cfg := testConfig(
		config.OptIngestReset(true),
		config.OptIngestSubjects([]string{"MATH"}),
	)
	ingest(t, ctx, cfg, f, gw)
	rows := selectRows(t, gw, schema.Courses, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "000301", rows[0]["course_id"])
}

func TestFlushRetry(t *testing.T) {
	ctx := context.Background()
	gw := &flakyGateway{Gateway: iotesting.NewSQLite(t, 0), failures: 2}
	sum := ingest(t, ctx, testConfig(), scenarioClient(), gw)
	assert.Equal(t, 1, sum.SubjectsDone)
	assert.Equal(t, 4, gw.batches)
	assert.Equal(t, 1, count(t, gw, schema.Instructors))

	gw = &flakyGateway{Gateway: iotesting.NewSQLite(t, 0), failures: 5}
	cfg := testConfig(config.OptDatabaseFlushRetries(1))
	_, err := newTestIngester(cfg, scenarioClient(), gw).Ingest(ctx)
	require.Error(t, err)
	assert.Equal(t, errcode.IngestFlushError, errCode(t, err))
	assert.Zero(t, count(t, gw, schema.Courses))
}

// flakyGateway fails subject batches after the first batch, which
// stores reference data.
type flakyGateway struct {
	store.Gateway
	failures int
	batches  int
}

func (g *flakyGateway) Batch(ctx context.Context, fn func(store.Writer) error) error {
	g.batches++
	if g.batches > 1 && g.batches <= g.failures+1 {
		return errors.New("disk full")
	}
	return g.Gateway.Batch(ctx, fn)
}
