package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	databasesCmd = &cobra.Command{
		Use:   "databases",
		Short: "List, inspect and create databases",
	}

	databasesListCmd = &cobra.Command{
		Use:   "list <instance-id>",
		Short: "List the databases on an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProject()
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(30 * time.Second)
			defer cancel()

			databases, err := p.AllDatabases(ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE")
			for _, db := range databases {
				fmt.Fprintf(w, "%s\t%s\n", db.ID(), db.State())
			}
			return w.Flush()
		},
	}

	databasesGetCmd = &cobra.Command{
		Use:   "get <instance-id> <database-id>",
		Short: "Show one database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProject()
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(30 * time.Second)
			defer cancel()

			db, err := p.Database(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("database %q does not exist on instance %q", args[1], args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:  %s\n", db.Path())
			fmt.Fprintf(out, "State: %s\n", db.State())
			return nil
		},
	}

	databasesCreateCmd = &cobra.Command{
		Use:   "create <instance-id> <database-id> [ddl-statement ...]",
		Short: "Create a database and wait for it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProject()
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(30 * time.Second)
			defer cancel()

			job, err := p.CreateDatabase(ctx, args[0], args[1], args[2:]...)
			if err != nil {
				return err
			}
			if err := waitForJob(cmd, job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s ready\n", job.Database().ID())
			return nil
		},
	}
)

func init() {
	databasesCmd.AddCommand(databasesListCmd)
	databasesCmd.AddCommand(databasesGetCmd)
	databasesCmd.AddCommand(databasesCreateCmd)
}
