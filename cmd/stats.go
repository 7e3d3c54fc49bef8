package cmd

import (
	"context"
	"io"
	"sync"

	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// getStatsCmd returns the stats command.
func getStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print row counts of every table",
		Long: `Print row counts of every table and the number of attribute
columns discovered so far. Tables that do not exist yet are skipped.

Tables are counted concurrently, up to jobs_number at a time.

Examples:
  catdb stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runStats(cmd)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
	}
	return statsCmd
}

// tableStats is the row count of one table.
type tableStats struct {
	name  string
	count int
}

func runStats(cmd *cobra.Command) error {
	ctx := context.Background()

	gw, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()

	stats, err := countTables(ctx, gw, schema.AllTables(), cfg.JobsNumber)
	if err != nil {
		return err
	}

	attrs, err := attributeColumns(ctx, gw)
	if err != nil {
		return err
	}

	printStats(cmd.OutOrStdout(), stats)
	gn.Info("Attribute columns: <em>%d</em>", attrs)
	return nil
}

// countTables counts rows of existing tables concurrently. Results keep
// the order of tables.
func countTables(
	ctx context.Context,
	gw store.Gateway,
	tables []store.Table,
	jobs int,
) ([]tableStats, error) {
	res := make([]tableStats, len(tables))
	found := make([]bool, len(tables))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, t := range tables {
		g.Go(func() error {
			ok, err := gw.HasTable(ctx, t.Name)
			if err != nil || !ok {
				return err
			}
			n, err := gw.Count(ctx, t.Name)
			if err != nil {
				return err
			}
			mu.Lock()
			res[i] = tableStats{name: t.Name, count: n}
			found[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []tableStats
	for i, v := range res {
		if found[i] {
			out = append(out, v)
		}
	}
	return out, nil
}

// attributeColumns returns the number of dynamic columns of the
// attributes table.
func attributeColumns(ctx context.Context, gw store.Gateway) (int, error) {
	cols, err := gw.Columns(ctx, schema.OfferingAttributes)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, nil
	}
	return len(cols) - len(schema.AttributeReserved()), nil
}

func printStats(w io.Writer, stats []tableStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Rows"})
	table.SetAutoFormatHeaders(false)
	var total int
	for _, v := range stats {
		total += v.count
		table.Append([]string{v.name, humanize.Comma(int64(v.count))})
	}
	table.SetFooter([]string{"Total", humanize.Comma(int64(total))})
	table.Render()
}
