package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/clasier/catdb/pkg/store"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// getQueryCmd returns the query command.
func getQueryCmd() *cobra.Command {
	var (
		where []string
		limit int
	)

	queryCmd := &cobra.Command{
		Use:   "query TABLE",
		Short: "Print rows of a table",
		Long: `Print rows of a table that match all filters.

Filters compare a column to a value for equality. Rows are ordered by
the primary key of the table.

Examples:
  catdb query courses --where subject_code=COMPSCI
  catdb query offering_attributes --where areas_of_knowledge=NS -n 5
  catdb query instructors --where last_name=Rodger --where section_code=01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runQuery(cmd, args[0], where, limit)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
	}

	queryCmd.Flags().StringArrayVarP(&where, "where", "w", nil,
		"equality filter col=value, can be repeated")
	queryCmd.Flags().IntVarP(&limit, "limit", "n", 20,
		"maximum number of rows, 0 means all")

	return queryCmd
}

func runQuery(cmd *cobra.Command, table string, where []string, limit int) error {
	ctx := context.Background()

	filters, err := parseWhere(where)
	if err != nil {
		return err
	}

	gw, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()

	ok, err := gw.HasTable(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		gn.Warn("Table <em>%s</em> does not exist", table)
		return nil
	}

	cols, err := gw.Columns(ctx, table)
	if err != nil {
		return err
	}
	rows, err := gw.Select(ctx, table, filters, limit)
	if err != nil {
		return err
	}

	printRows(cmd.OutOrStdout(), cols, rows)
	gn.Info("%s rows", humanize.Comma(int64(len(rows))))
	return nil
}

func printRows(w io.Writer, cols []string, rows []store.Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(cols)
	table.SetAutoFormatHeaders(false)
	for _, row := range rows {
		line := make([]string, len(cols))
		for i, col := range cols {
			if v := row[col]; v != nil {
				line[i] = fmt.Sprint(v)
			}
		}
		table.Append(line)
	}
	table.Render()
}
