// Package ioingest implements catalog.Ingester. It walks subjects,
// courses, terms and offerings of the curriculum API, builds normalized
// rows and writes them through a store.Gateway one subject at a time.
// This is an impure I/O package that implements contracts
// defined in pkg/.
package ioingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/clasier/catdb/pkg/catalog"
	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/ident"
	"github.com/clasier/catdb/pkg/pivot"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/clasier/catdb/pkg/tree"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ingester implements catalog.Ingester. It is single-threaded: fetches
// are sequential and paced by the limiter.
type ingester struct {
	cfg     *config.Config
	client  catalog.Client
	gw      store.Gateway
	engine  *pivot.Engine
	limiter *rate.Limiter

	// run state
	columns *pivot.Columns
	buf     *buffers
	seen    map[string]struct{}
	details map[string]details
	terms   []string
	sum     catalog.Summary
	last    map[string]int
	log     *slog.Logger

	progress     bool
	flushBackoff time.Duration
}

// New creates an Ingester that reads from client and writes to gw.
func New(
	cfg *config.Config,
	client catalog.Client,
	gw store.Gateway,
) catalog.Ingester {
	limit := rate.Inf
	if cfg.API.RequestDelay > 0 {
		limit = rate.Every(cfg.API.RequestDelay)
	}
	return &ingester{
		cfg:          cfg,
		client:       client,
		gw:           gw,
		engine:       pivot.New(pivot.OptRewrites(cfg.RewriteMap())),
		limiter:      rate.NewLimiter(limit, 1),
		progress:     true,
		flushBackoff: 200 * time.Millisecond,
	}
}

func (g *ingester) init() {
	runID := uuid.NewString()
	g.columns = pivot.NewColumns(schema.AttributeReserved()...)
	g.buf = newBuffers()
	g.seen = make(map[string]struct{})
	g.details = make(map[string]details)
	g.terms = nil
	g.last = nil
	g.sum = catalog.Summary{RunID: runID, Rows: make(map[string]int)}
	g.log = slog.With("run_id", runID)
}

// Ingest implements catalog.Ingester. Cancelling ctx is not an error:
// the rows buffered so far are saved and the summary reports the run as
// interrupted.
func (g *ingester) Ingest(ctx context.Context) (catalog.Summary, error) {
	start := time.Now()
	g.init()
	g.log.Info("Starting ingestion",
		"term_mode", g.cfg.Ingest.TermMode,
		"dedup_policy", g.cfg.Ingest.DedupPolicy,
		"continue_on_error", g.cfg.Ingest.ContinueOnError,
	)

	err := g.run(ctx)
	g.sum.Duration = time.Since(start)
	g.sum.AttributeColumns = g.columns.Len()
	if err != nil {
		g.log.Error("Ingestion failed", "error", err)
		return g.sum, err
	}

	g.log.Info("Ingestion complete",
		"subjects", g.sum.SubjectsDone,
		"rows", g.sum.TotalRows(),
		"fetch_errors", g.sum.FetchErrors,
		"detail_errors", g.sum.DetailErrors,
		"interrupted", g.sum.Interrupted,
		"duration", gnfmt.TimeString(g.sum.Duration.Seconds()),
	)
	return g.sum, nil
}

func (g *ingester) run(ctx context.Context) error {
	err := g.prepareSchema(ctx)
	if err != nil {
		return err
	}

	subjects, err := g.referenceData(ctx)
	if err != nil {
		if ctx.Err() != nil {
			g.sum.Interrupted = true
			return nil
		}
		return err
	}

	todo, err := g.selectSubjects(ctx, subjects)
	if err != nil {
		return err
	}
	g.sum.SubjectsTotal = len(todo)
	if g.progress {
		gn.Info("Ingesting <em>%d</em> subjects, terms: <em>%s</em>",
			len(todo), strings.Join(g.terms, ", "))
	}

	for i, subject := range todo {
		if ctx.Err() != nil {
			g.sum.Interrupted = true
			break
		}
		start := time.Now()
		failures := g.sum.FetchErrors + g.sum.DetailErrors

		err = g.processSubject(ctx, subject)
		interrupted := ctx.Err() != nil
		clean := g.sum.FetchErrors+g.sum.DetailErrors == failures
		complete := err == nil && !interrupted && clean

		if ferr := g.flush(ctx, subject, complete); ferr != nil {
			return ferr
		}
		if interrupted {
			g.sum.Interrupted = true
			g.log.Warn("Ingestion interrupted", "subject", subject)
			break
		}
		if err != nil {
			return err
		}
		if clean {
			g.sum.SubjectsDone++
		} else {
			g.sum.SubjectsPartial++
		}
		g.report(i+1, len(todo), subject, start)
	}

	if g.sum.Interrupted && g.progress {
		gn.Warn("Interrupted. Buffered rows were saved, " +
			"use <em>--resume</em> to continue.")
	}
	return nil
}

// prepareSchema drops catalog tables on reset and creates missing tables.
func (g *ingester) prepareSchema(ctx context.Context) error {
	if g.cfg.Ingest.Reset {
		names := schema.TableNames(schema.CatalogTables())
		if err := g.gw.DropTables(ctx, names...); err != nil {
			return SchemaError(strings.Join(names, ", "), err)
		}
		g.log.Info("Dropped catalog tables")
	}
	for _, v := range schema.AllTables() {
		if err := g.gw.CreateTable(ctx, v); err != nil {
			return SchemaError(v.Name, err)
		}
	}
	return nil
}

// referenceData loads subject and term lists, selects terms and stores
// both lists.
func (g *ingester) referenceData(ctx context.Context) ([]catalog.Value, error) {
	node, err := g.fetch(ctx, func(ctx context.Context) (tree.Node, error) {
		return g.client.ListValues(ctx, catalog.FieldSubject)
	})
	if err != nil {
		return nil, ReferenceDataError(catalog.FieldSubject, err)
	}
	subjects := catalog.Values(node)
	if len(subjects) == 0 {
		return nil, ReferenceDataError(catalog.FieldSubject, errors.New("empty list"))
	}

	node, err = g.fetch(ctx, func(ctx context.Context) (tree.Node, error) {
		return g.client.ListValues(ctx, catalog.FieldTerm)
	})
	if err != nil {
		return nil, ReferenceDataError(catalog.FieldTerm, err)
	}
	terms := catalog.Values(node)

	g.terms = selectTerms(g.cfg.Ingest.TermMode, g.cfg.Ingest.Terms, terms)
	if len(g.terms) == 0 {
		return nil, ReferenceDataError(catalog.FieldTerm, errors.New("no terms selected"))
	}
	g.sum.Terms = g.terms

	if err = g.writeReference(ctx, subjects, terms); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (g *ingester) processSubject(ctx context.Context, subject string) error {
	g.details = make(map[string]details)
	log := g.log.With("subject", subject)

	listing, err := g.fetch(ctx, func(ctx context.Context) (tree.Node, error) {
		return g.client.CourseListings(ctx, subject)
	})
	if err != nil {
		return g.fetchFailed(ctx, err, "courses of "+subject, "subject", subject)
	}

	courses := courseSummaries(listing)
	if len(courses) == 0 {
		log.Info("No courses found")
		return nil
	}
	log.Debug("Processing subject", "courses", len(courses))

	var bar *pb.ProgressBar
	if g.progress {
		bar = pb.Full.Start(len(courses))
		bar.Set("prefix", subject+": ")
		bar.Set(pb.CleanOnFinish, true)
		defer bar.Finish()
	}

	for _, v := range courses {
		if err = g.processCourse(ctx, subject, v); err != nil {
			return err
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return nil
}

func (g *ingester) processCourse(
	ctx context.Context,
	subject string,
	course tree.Node,
) error {
	courseID := pivot.Clean(course.String("crse_id"))
	if courseID == "" {
		g.sum.RecordsSkipped++
		g.log.Debug("Course without id", "subject", subject)
		return nil
	}

	if _, ok := g.seen[courseID]; ok {
		g.sum.CoursesDuplicate++
		if g.cfg.Ingest.DedupPolicy == "last" {
			g.buf.courses.put(courseRow(subject, courseID, course))
		}
		return nil
	}
	g.seen[courseID] = struct{}{}
	g.buf.courses.put(courseRow(subject, courseID, course))

	for _, term := range g.terms {
		if err := g.processTerm(ctx, courseID, term); err != nil {
			return err
		}
	}
	return nil
}

func (g *ingester) processTerm(ctx context.Context, courseID, term string) error {
	meta, err := g.fetch(ctx, func(ctx context.Context) (tree.Node, error) {
		return g.client.OfferingMetadata(ctx, term, courseID)
	})
	if err != nil {
		what := fmt.Sprintf("offerings of %s in %s", courseID, term)
		return g.fetchFailed(ctx, err, what, "course_id", courseID, "term", term)
	}

	blocks := classSubjects(meta)
	if len(blocks) == 0 {
		g.sum.EmptyOfferings++
		return nil
	}
	for _, b := range blocks {
		for _, l := range b.summaries {
			if err = g.processListing(ctx, courseID, term, b, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// processListing emits the offering, attributes, class listing, meeting
// and instructor rows of one class summary.
func (g *ingester) processListing(
	ctx context.Context,
	courseID, term string,
	block classSubject,
	listing tree.Node,
) error {
	offerNumber := pivot.Clean(listing.String("crse_offer_nbr"))
	if offerNumber == "" {
		g.sum.RecordsSkipped++
		g.log.Debug("Class summary without offer number",
			"course_id", courseID, "term", term)
		return nil
	}
	offeringID := ident.OfferingID(courseID, offerNumber)

	// Every fetch of a listing happens before its first row is buffered,
	// so an interrupt never leaves an offering without its children.
	d, err := g.courseDetails(ctx, courseID, offerNumber, offeringID)
	if err != nil {
		return err
	}
	g.buf.offerings.put(offeringRow(offeringID, courseID, listing))
	row := g.engine.Pivot(attributeRecords(listing), block.attributes, d.attributes)
	added, err := g.columns.Add(row.Columns...)
	if err != nil {
		return AttributeColumnError(offeringID, err)
	}
	if len(added) > 0 {
		g.log.Debug("New attribute columns",
			"offering_id", offeringID, "columns", added)
	}
	g.buf.attributes.put(attributesRow(offeringID, listing, d, row))

	classID := ident.ClassID(offeringID, term)
	g.buf.classes.put(classRow(classID, courseID, offerNumber, term))

	section := pivot.Clean(listing.String("class_section"))
	var assigned bool
	for _, m := range meetingPatterns(listing, block.node) {
		loc := pivot.Clean(m.String("ssr_mtg_loc_long"))
		sched := pivot.Clean(m.String("ssr_mtg_sched_long"))
		meetingID := ident.MeetingID(classID, section, loc, sched)
		g.buf.meetings.put(meetingRow(meetingID, classID, section, m))
		for _, v := range instructorRecords(m) {
			if g.addInstructor(classID, section, v) {
				assigned = true
			}
		}
	}
	if assigned {
		return nil
	}

	// Instructors listed outside meeting patterns.
	recs := instructorRecords(listing)
	if len(recs) == 0 {
		recs = instructorRecords(block.node)
	}
	for _, v := range recs {
		g.addInstructor(classID, section, v)
	}
	return nil
}

func (g *ingester) addInstructor(classID, section string, rec tree.Node) bool {
	name := displayName(rec)
	if name == "" {
		return false
	}
	id := ident.InstructorID(classID, section, name)
	g.buf.instructors.put(instructorRow(id, classID, section, name, rec))
	return true
}

// courseDetails fetches details of an offering once per subject. A failed
// fetch only removes the details' contribution to the attributes row.
func (g *ingester) courseDetails(
	ctx context.Context,
	courseID, offerNumber, offeringID string,
) (details, error) {
	if !g.cfg.Ingest.WithCourseDetails {
		return details{}, nil
	}
	if res, ok := g.details[offeringID]; ok {
		return res, nil
	}

	node, err := g.fetch(ctx, func(ctx context.Context) (tree.Node, error) {
		return g.client.CourseDetails(ctx, courseID, offerNumber)
	})
	if err != nil {
		if ctx.Err() != nil {
			return details{}, ctx.Err()
		}
		g.sum.DetailErrors++
		g.log.Warn("Course details fetch failed",
			"course_id", courseID,
			"offering_id", offeringID,
			"error", err,
		)
		g.details[offeringID] = details{}
		return details{}, nil
	}

	res := parseDetails(node)
	g.details[offeringID] = res
	return res, nil
}

// fetch waits for the limiter and calls the API.
func (g *ingester) fetch(
	ctx context.Context,
	call func(context.Context) (tree.Node, error),
) (tree.Node, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return tree.Absent, err
	}
	return call(ctx)
}

// fetchFailed decides what a failed fetch means. Cancellation stops the
// subject. Otherwise the failure is counted and the branch skipped, or
// the run stops when continue_on_error is off.
func (g *ingester) fetchFailed(
	ctx context.Context,
	err error,
	what string,
	attrs ...any,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !g.cfg.Ingest.ContinueOnError {
		return FetchError(what, err)
	}
	g.sum.FetchErrors++
	g.log.Warn("Fetch failed, skipping", append(attrs, "error", err)...)
	return nil
}

func (g *ingester) report(i, total int, subject string, start time.Time) {
	c := g.last
	dur := gnfmt.TimeString(time.Since(start).Seconds())
	g.log.Info("Subject ingested",
		"subject", subject,
		"courses", c[schema.Courses],
		"offerings", c[schema.Offerings],
		"classes", c[schema.ClassListings],
		"duration", dur,
	)
	if !g.progress {
		return
	}
	gn.Info("[%d/%d] <em>%s</em>: %s courses, %s offerings, %s classes in %s",
		i, total, subject,
		humanize.Comma(int64(c[schema.Courses])),
		humanize.Comma(int64(c[schema.Offerings])),
		humanize.Comma(int64(c[schema.ClassListings])),
		dur,
	)
}
