package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-arndt/wolkendb"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <instance-id> <database-id> <statement>",
	Short: "Run a SQL statement against a database",
	Long: `Runs one statement in a single-use transaction. Queries print their
rows; DML prints the affected row count.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProject()
		if err != nil {
			return err
		}
		ctx, cancel := timeoutContext(2 * time.Minute)
		defer cancel()

		// A one-shot tool has no use for a warm pool.
		one := 1
		client, err := p.Client(ctx, args[0], args[1], wolkendb.SessionPoolOptions{
			MinSessions: &one,
			MaxSessions: 1,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		rs, err := client.Query(ctx, args[2], nil)
		if err != nil {
			return err
		}

		if len(rs.Columns) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", rs.RowCount)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(rs.Columns, "\t"))
		for _, row := range rs.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return w.Flush()
	},
}
