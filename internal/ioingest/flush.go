package ioingest

import (
	"context"
	"strings"
	"time"

	"github.com/clasier/catdb/pkg/catalog"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/sethvargo/go-retry"
)

// flush writes the buffered rows of a subject in one transaction, parents
// first, and clears the buffers. A complete subject also gets a progress
// checkpoint in the same transaction. The flush ignores cancellation of
// ctx: an interrupted run still saves what it has buffered.
func (g *ingester) flush(ctx context.Context, subject string, complete bool) error {
	g.last = nil
	if g.buf.empty() && !complete {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	var counts map[string]int
	backoff := retry.WithMaxRetries(
		uint64(g.cfg.Database.FlushRetries),
		retry.NewExponential(g.flushBackoff),
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		counts = make(map[string]int)
		err := g.gw.Batch(ctx, func(w store.Writer) error {
			return g.write(ctx, w, subject, complete, counts)
		})
		if err != nil {
			g.log.Warn("Flush failed",
				"subject", subject,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return FlushError(subject, err)
	}

	for k, v := range counts {
		g.sum.Rows[k] += v
	}
	g.last = counts
	g.buf.reset()
	return nil
}

func (g *ingester) write(
	ctx context.Context,
	w store.Writer,
	subject string,
	complete bool,
	counts map[string]int,
) error {
	for _, b := range g.buf.parentsFirst() {
		// Attribute columns must exist before rows that use them.
		if b == g.buf.attributes && g.columns.Len() > 0 {
			err := w.AddColumnsIfMissing(ctx, b.table, textColumns(g.columns.Names()))
			if err != nil {
				return err
			}
		}
		if b.len() == 0 {
			continue
		}
		n, err := w.UpsertMany(ctx, b.table, b.rows)
		if err != nil {
			return err
		}
		counts[b.table] += n
	}

	if !complete {
		return nil
	}
	checkpoint := store.Row{
		"subject_code": subject,
		"run_id":       g.sum.RunID,
		"terms":        strings.Join(g.terms, ","),
		"courses":      g.buf.courses.len(),
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	}
	n, err := w.UpsertMany(ctx, schema.IngestProgress, []store.Row{checkpoint})
	if err != nil {
		return err
	}
	counts[schema.IngestProgress] += n
	return nil
}

// writeReference stores the subject and term lists.
func (g *ingester) writeReference(
	ctx context.Context,
	subjects, terms []catalog.Value,
) error {
	counts := make(map[string]int)
	err := g.gw.Batch(ctx, func(w store.Writer) error {
		for table, vals := range map[string][]catalog.Value{
			schema.Subjects: subjects,
			schema.Terms:    terms,
		} {
			rows := make([]store.Row, len(vals))
			for i, v := range vals {
				rows[i] = store.Row{
					"code":        v.Code,
					"description": nullable(v.Description),
				}
			}
			n, err := w.UpsertMany(ctx, table, rows)
			if err != nil {
				return err
			}
			counts[table] = n
		}
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range counts {
		g.sum.Rows[k] += v
	}
	return nil
}

func textColumns(names []string) []store.ColumnDef {
	res := make([]store.ColumnDef, len(names))
	for i, v := range names {
		res[i] = store.ColumnDef{Name: v, Type: store.Text}
	}
	return res
}
