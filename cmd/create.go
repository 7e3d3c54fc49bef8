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
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/clasier/catdb/pkg/schema"
	"github.com/clasier/catdb/pkg/store"
	"github.com/gnames/gn"
	"github.com/spf13/cobra"
)

// getCreateCmd returns the create command.
// Extracted as a function to facilitate testing and dynamic
// command registration.
func getCreateCmd() *cobra.Command {
	var forceCreate bool

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create database schema",
		Long: `Create the catalog database schema.

This command:
  1. Connects to SQLite or PostgreSQL using configuration settings
  2. Checks for existing tables and prompts for confirmation
  3. Creates the fixed tables of the catalog

Attribute columns of offering_attributes are not created here,
ingestion adds them as new attribute names are discovered.

Use --force to skip confirmation and drop existing tables.

Examples:
  catdb create
  catdb create --force
  catdb create -f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runCreate(cmd, args, forceCreate)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
	}

	createCmd.Flags().BoolVarP(&forceCreate, "force", "f",
		false, "drop existing tables without confirmation")

	return createCmd
}

func runCreate(
	_ *cobra.Command,
	_ []string,
	force bool,
) error {
	ctx := context.Background()

	gw, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()

	existing, err := existingTables(ctx, gw)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		if !force {
			gn.Warn("\nWarning: Database contains existing tables: <em>%s</em>",
				strings.Join(existing, ", "))
			gn.Warn("Creating schema will drop ALL " +
				"existing tables and data.")
			fmt.Print("\nDo you want to continue? (yes/no): ")

			reader := bufio.NewReader(os.Stdin)
			response, err := reader.ReadString('\n')
			if err != nil {
				gn.Warn("Failed to read user input")
				return err
			}

			response = strings.TrimSpace(strings.ToLower(response))
			if response != "yes" && response != "y" {
				gn.Info("Aborted. No changes made.")
				return nil
			}
		}

		gn.Info("Dropping all existing tables...")
		if err = gw.DropTables(ctx, existing...); err != nil {
			return err
		}
		gn.Info("All tables dropped")
	}

	for _, v := range schema.AllTables() {
		if err = gw.CreateTable(ctx, v); err != nil {
			return err
		}
	}

	gn.Info("\nDatabase schema creation complete!")
	gn.Info("\nNext steps:")
	gn.Info("  - Run 'catdb ingest' to import the catalog")
	gn.Info("  - Run 'catdb stats' to check row counts")

	return nil
}

func existingTables(ctx context.Context, gw store.Gateway) ([]string, error) {
	var res []string
	for _, v := range schema.TableNames(schema.AllTables()) {
		ok, err := gw.HasTable(ctx, v)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, v)
		}
	}
	return res, nil
}
