package cmd

import (
	"context"
	"fmt"

	"github.com/clasier/catdb/internal/ioratings"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/spf13/cobra"
)

// getRatingsCmd returns the ratings command with its subcommands.
func getRatingsCmd() *cobra.Command {
	ratingsCmd := &cobra.Command{
		Use:   "ratings",
		Short: "Manage professor ratings",
		Long: `Manage the professor_ratings table.

Ratings are collected by an external scraper. 'pending' prints the
instructor names that still need a rating, one per line, so they can be
fed to the scraper. 'import' loads the scraper's CSV output.

The CSV file needs a header with professor_name; avg_rating,
avg_difficulty, would_take_again_pct and tags are optional. Ratings and
difficulty must be within 0..5, the percentage within 0..100.

Examples:
  catdb ratings pending > names.txt
  catdb ratings import ratings.csv`,
	}

	ratingsCmd.AddCommand(getRatingsPendingCmd(), getRatingsImportCmd())
	return ratingsCmd
}

func getRatingsPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Print instructors without a rating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			gw, err := openStore(ctx)
			if err != nil {
				gn.PrintErrorMessage(err)
				return err
			}
			defer gw.Close()

			names, err := ioratings.Pending(ctx, gw)
			if err != nil {
				gn.PrintErrorMessage(err)
				return err
			}
			for _, v := range names {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			gn.Info("%s instructors without a rating",
				humanize.Comma(int64(len(names))))
			return nil
		},
	}
}

func getRatingsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import ratings from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			gw, err := openStore(ctx)
			if err != nil {
				gn.PrintErrorMessage(err)
				return err
			}
			defer gw.Close()

			res, err := ioratings.Import(ctx, gw, args[0])
			if err != nil {
				gn.PrintErrorMessage(err)
				return err
			}
			gn.Info("Imported <em>%s</em> ratings",
				humanize.Comma(int64(res.Imported)))
			if res.Invalid > 0 {
				gn.Warn("Skipped %d invalid records, see the log for details",
					res.Invalid)
			}
			return nil
		},
	}
}
