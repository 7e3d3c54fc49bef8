/*
Copyright © 2025 Dmitry Mozzherin <dmozzherin@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/clasier/catdb/internal/ioapi"
	"github.com/clasier/catdb/internal/ioingest"
	"github.com/clasier/catdb/pkg/catalog"
	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/schema"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// getIngestCmd returns the ingest command.
func getIngestCmd() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the course catalog from the curriculum API",
		Long: `Pull the course catalog from the curriculum API into the database.

This command:
  1. Creates missing tables (drops catalog tables first with --reset)
  2. Loads subject and term reference lists
  3. For every subject fetches its courses, their offerings in the
     selected terms, and optionally course details of every offering
  4. Writes one subject at a time in a single transaction

Re-running replaces stored rows instead of duplicating them.
Ctrl-C stops fetching; rows fetched so far are saved before exit.
With --resume, subjects completed by an earlier run are skipped.

The access token is read from CATDB_API_ACCESS_TOKEN or config.yaml.

Examples:
  catdb ingest
  catdb ingest --subjects COMPSCI,MATH
  catdb ingest --terms 1940,1945
  catdb ingest --all-terms --resume
  catdb ingest --reset --no-details`,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runIngest(cmd)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
	}

	f := ingestCmd.Flags()
	f.Bool("reset", false, "drop catalog tables before ingestion")
	f.Bool("resume", false, "skip subjects completed by an earlier run")
	f.StringSliceP("subjects", "s", nil, "ingest only these subject codes")
	f.StringSliceP("terms", "t", nil,
		"ingest these term codes instead of the latest term")
	f.Bool("all-terms", false, "ingest every term")
	f.Bool("no-details", false,
		"skip the course-details request of every offering")
	f.String("dedup", "",
		"which listing of a cross-listed course is kept: first or last")
	f.Bool("fail-fast", false, "stop at the first failed request")
	ingestCmd.MarkFlagsMutuallyExclusive("terms", "all-terms")

	return ingestCmd
}

// ingestOptions converts explicitly set flags to config options.
func ingestOptions(cmd *cobra.Command) []config.Option {
	f := cmd.Flags()
	var res []config.Option

	if f.Changed("reset") {
		b, _ := f.GetBool("reset")
		res = append(res, config.OptIngestReset(b))
	}
	if f.Changed("resume") {
		b, _ := f.GetBool("resume")
		res = append(res, config.OptIngestResume(b))
	}
	if f.Changed("subjects") {
		ss, _ := f.GetStringSlice("subjects")
		res = append(res, config.OptIngestSubjects(ss))
	}
	if f.Changed("terms") {
		ss, _ := f.GetStringSlice("terms")
		res = append(res, config.OptIngestTerms(ss))
	}
	if b, _ := f.GetBool("all-terms"); b {
		res = append(res, config.OptIngestTermMode("all"))
	}
	if f.Changed("no-details") {
		b, _ := f.GetBool("no-details")
		res = append(res, config.OptIngestWithCourseDetails(!b))
	}
	if f.Changed("dedup") {
		s, _ := f.GetString("dedup")
		res = append(res, config.OptIngestDedupPolicy(s))
	}
	if f.Changed("fail-fast") {
		b, _ := f.GetBool("fail-fast")
		res = append(res, config.OptIngestContinueOnError(!b))
	}
	return res
}

func runIngest(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	cfg.Update(ingestOptions(cmd))

	if cfg.API.AccessToken == "" {
		gn.Warn("No API access token, set <em>CATDB_API_ACCESS_TOKEN</em>")
	}
	if cfg.Ingest.Reset && cfg.Ingest.Resume {
		gn.Warn("<em>--reset</em> drops all checkpoints, nothing to resume")
	}

	gw, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()

	ing := ioingest.New(cfg, ioapi.New(cfg.API), gw)
	sum, err := ing.Ingest(ctx)
	printSummary(cmd.OutOrStdout(), sum)
	if err != nil {
		return err
	}

	switch {
	case sum.Interrupted:
		gn.Warn("Ingestion interrupted, run <em>catdb ingest --resume</em> to continue")
	case sum.SubjectsPartial > 0:
		gn.Warn("Some subjects are incomplete, " +
			"run <em>catdb ingest --resume</em> to retry them")
	default:
		gn.Info("Ingestion complete in %s", gnfmt.TimeString(sum.Duration.Seconds()))
	}
	return nil
}

func printSummary(w io.Writer, sum catalog.Summary) {
	fmt.Fprintf(w, "\nRun %s, terms %v\n", sum.RunID, sum.Terms)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Rows"})
	for _, v := range schema.CatalogTables() {
		n, ok := sum.Rows[v.Name]
		if !ok {
			continue
		}
		table.Append([]string{v.Name, humanize.Comma(int64(n))})
	}
	table.SetFooter([]string{"Total", humanize.Comma(int64(sum.TotalRows()))})
	table.Render()

	counts := tablewriter.NewWriter(w)
	counts.SetHeader([]string{"Counter", "Value"})
	for _, v := range []struct {
		name string
		n    int
	}{
		{"subjects selected", sum.SubjectsTotal},
		{"subjects done", sum.SubjectsDone},
		{"subjects partial", sum.SubjectsPartial},
		{"subjects skipped", sum.SubjectsSkipped},
		{"subjects resumed", sum.SubjectsResumed},
		{"duplicate courses", sum.CoursesDuplicate},
		{"records without id", sum.RecordsSkipped},
		{"fetch errors", sum.FetchErrors},
		{"detail errors", sum.DetailErrors},
		{"empty offerings", sum.EmptyOfferings},
		{"attribute columns", sum.AttributeColumns},
	} {
		counts.Append([]string{v.name, humanize.Comma(int64(v.n))})
	}
	counts.Append([]string{"interrupted", strconv.FormatBool(sum.Interrupted)})
	counts.Render()
}
