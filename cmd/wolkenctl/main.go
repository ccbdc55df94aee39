// wolkenctl is a small operator CLI for the Wolke managed database
// service: instance and database administration plus ad-hoc SQL.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/p-arndt/wolkendb"
)

const version = "0.3.0"

var (
	flagProject  string
	flagEndpoint string
	flagAPIKey   string

	rootCmd = &cobra.Command{
		Use:   "wolkenctl",
		Short: "manage Wolke instances and databases",
		Long: `wolkenctl talks to the Wolke managed database service.

Connection settings come from flags, the WOLKENDB_* environment, or a
.env file in the working directory, in that order of precedence.`,
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the wolkenctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wolkenctl v%s\n", version)
		},
	}
)

func init() {
	cobra.OnInitialize(func() {
		_ = godotenv.Load(".env")
	})

	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "project id (default WOLKENDB_PROJECT)")
	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "service endpoint override")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (default WOLKENDB_API_KEY)")

	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(databasesCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(versionCmd)
}

// newProject builds the client-side project handle from flags and
// environment.
func newProject() (*wolkendb.Project, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return wolkendb.NewProject(wolkendb.Options{
		Project:  flagProject,
		Endpoint: flagEndpoint,
		APIKey:   flagAPIKey,
		Logger:   logger,
	})
}

// waitForJob polls the job to completion, printing a note so long waits
// don't look hung.
func waitForJob(cmd *cobra.Command, job *wolkendb.Job) error {
	fmt.Fprintf(cmd.OutOrStdout(), "waiting on %s ...\n", job.Name())
	ctx, cancel := timeoutContext(10 * time.Minute)
	defer cancel()
	return job.Wait(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
