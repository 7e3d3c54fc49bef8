package ioingest

import (
	"context"
	"slices"
	"strings"

	"github.com/clasier/catdb/pkg/catalog"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/gnames/gn"
)

// selectTerms returns the term codes to ingest. Mode "all" keeps the
// reference order, "list" uses the explicit codes, and "latest" picks
// the greatest code. Term codes grow with time, so the greatest code is
// the most recent term.
func selectTerms(mode string, explicit []string, lov []catalog.Value) []string {
	switch mode {
	case "list":
		return slices.Clone(explicit)
	case "all":
		res := make([]string, len(lov))
		for i, v := range lov {
			res[i] = v.Code
		}
		return res
	default:
		var latest string
		for _, v := range lov {
			if v.Code > latest {
				latest = v.Code
			}
		}
		if latest == "" {
			return nil
		}
		return []string{latest}
	}
}

// skipSubject reports if a subject code belongs to an administrative or
// synthetic subject.
func skipSubject(code string, prefixes []string, underscore bool) bool {
	if underscore && strings.Contains(code, "_") {
		return true
	}
	for _, v := range prefixes {
		if strings.HasPrefix(code, v) {
			return true
		}
	}
	return false
}

// selectSubjects applies the explicit subject list or the skip rules,
// then drops subjects checkpointed by an earlier run when resuming.
func (g *ingester) selectSubjects(
	ctx context.Context,
	lov []catalog.Value,
) ([]string, error) {
	var res []string
	if len(g.cfg.Ingest.Subjects) > 0 {
		known := make(map[string]struct{}, len(lov))
		for _, v := range lov {
			known[v.Code] = struct{}{}
		}
		for _, v := range g.cfg.Ingest.Subjects {
			if _, ok := known[v]; !ok {
				gn.Warn("Subject <em>%s</em> is unknown, skipping", v)
				continue
			}
			res = append(res, v)
		}
	} else {
		for _, v := range lov {
			if skipSubject(v.Code, g.cfg.Ingest.SkipPrefixes, g.cfg.Ingest.SkipUnderscore) {
				g.sum.SubjectsSkipped++
				continue
			}
			res = append(res, v.Code)
		}
	}

	if !g.cfg.Ingest.Resume || g.cfg.Ingest.Reset {
		return res, nil
	}

	done, err := g.completedSubjects(ctx)
	if err != nil {
		return nil, err
	}
	todo := res[:0]
	for _, v := range res {
		if _, ok := done[v]; ok {
			g.sum.SubjectsResumed++
			continue
		}
		todo = append(todo, v)
	}
	if err = g.seedSeen(ctx, done); err != nil {
		return nil, err
	}
	g.log.Info("Resuming ingestion",
		"completed", len(done),
		"remaining", len(todo),
	)
	return todo, nil
}

// completedSubjects reads the progress checkpoints.
func (g *ingester) completedSubjects(
	ctx context.Context,
) (map[string]struct{}, error) {
	rows, err := g.gw.Select(ctx, schema.IngestProgress, nil, 0)
	if err != nil {
		return nil, err
	}
	res := make(map[string]struct{}, len(rows))
	for _, v := range rows {
		if code, ok := v["subject_code"].(string); ok {
			res[code] = struct{}{}
		}
	}
	return res, nil
}

// seedSeen marks courses stored under completed subjects as seen, so the
// dedup policy holds across resumed runs.
func (g *ingester) seedSeen(ctx context.Context, done map[string]struct{}) error {
	if len(done) == 0 {
		return nil
	}
	rows, err := g.gw.Select(ctx, schema.Courses, nil, 0)
	if err != nil {
		return err
	}
	for _, v := range rows {
		subject, _ := v["subject_code"].(string)
		if _, ok := done[subject]; !ok {
			continue
		}
		if id, ok := v["course_id"].(string); ok {
			g.seen[id] = struct{}{}
		}
	}
	return nil
}
