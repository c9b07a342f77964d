package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mcpcoder/coordinator/internal/coordinator"
	"github.com/mcpcoder/coordinator/store"
)

var (
	coordinateRepo  string
	coordinateAll   bool
	coordinateForce bool
)

// coordinateCmd runs one poll cycle.
var coordinateCmd = &cobra.Command{
	Use:   "coordinate",
	Short: "Run one poll cycle: dispatch eligible issues to the build server",
	Long: `Runs a single poll cycle over one repository (--repo) or every
configured repository (--all). For each open issue carrying exactly one
bot_pickup status label, one workflow job is submitted to the build server
and the issue's label advanced.

Exit code 0 means the poll completed, including the no-eligible-issues case;
exit code 1 means a fatal error during configuration load or a repo's
dispatch loop.

Invoke it on a schedule (e.g. cron every few minutes); mutual exclusion
between overlapping invocations is the operator's responsibility.`,
	RunE: runCoordinate,
}

func init() {
	rootCmd.AddCommand(coordinateCmd)

	coordinateCmd.Flags().StringVar(&coordinateRepo, "repo", "", "run for one named repo from coordinator.repos")
	coordinateCmd.Flags().BoolVar(&coordinateAll, "all", false, "run for all configured repos")
	coordinateCmd.Flags().BoolVar(&coordinateForce, "force-refresh", false, "bypass the issue cache TTL for this run")
	coordinateCmd.MarkFlagsMutuallyExclusive("repo", "all")
	coordinateCmd.MarkFlagsOneRequired("repo", "all")
}

func runCoordinate(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	cacheDir, err := store.DefaultDir()
	if err != nil {
		return err
	}
	cache := store.NewIssueCache(afero.NewOsFs(), cacheDir)

	coord := coordinator.New(cfg, cache, coordinateForce)
	ctx := cmd.Context()

	if coordinateAll {
		return coord.RunAll(ctx)
	}
	if err := coord.RunRepo(ctx, coordinateRepo); err != nil {
		return fmt.Errorf("coordinate %s: %w", coordinateRepo, err)
	}
	return nil
}
