package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mcpcoder/coordinator/internal/branch"
	"github.com/mcpcoder/coordinator/internal/gh"
	"github.com/mcpcoder/coordinator/internal/ui"
	"github.com/mcpcoder/coordinator/types"
)

var (
	statusBranch string
	statusBase   string
	statusRepo   string
	statusLLM    bool
)

// statusCmd reports whether the current branch is ready to advance.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report CI, rebase, and task-tracker state for a working branch",
	Long: `Assembles a branch status report for the working copy in the current
directory: latest CI outcome (with a truncated failure log when CI failed),
whether a rebase onto the base branch is needed, whether the task tracker's
implementation steps are all checked off, and the linked issue's current
status label.

Sub-collections that fail degrade to their empty value; the report is always
produced.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusBranch, "branch", "", "branch to report on (default: current branch)")
	statusCmd.Flags().StringVar(&statusBase, "base", "", "override base-branch detection")
	statusCmd.Flags().StringVar(&statusRepo, "repo", "", "owner/name for GitHub lookups (default: first configured repo)")
	statusCmd.Flags().BoolVar(&statusLLM, "llm", false, "emit the machine-oriented rendering")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	manager := branch.NewManager(workDir)

	// GitHub-backed fields are optional; without a resolvable repo the
	// report degrades to NOT_CONFIGURED CI and an empty label.
	var ci branch.CIService
	var labelSvc branch.LabelService
	if repo := resolveStatusRepo(cfg); repo != "" {
		client, err := gh.NewClient(cfg.GitHub.Token, repo)
		if err == nil {
			ci = client
			labelSvc = client
		}
	}

	collector := branch.NewCollector(manager, ci, labelSvc, afero.NewOsFs(), workDir)
	report := collector.Collect(cmd.Context(), branch.CollectOptions{
		Branch:       statusBranch,
		BaseOverride: statusBase,
	})

	if statusLLM {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderLLM(report))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderHuman(report))
	}
	return nil
}

// resolveStatusRepo picks the repo for GitHub lookups: the --repo flag, or
// the sole configured repo when there is exactly one.
func resolveStatusRepo(cfg types.AppConfig) string {
	if statusRepo != "" {
		return statusRepo
	}
	if len(cfg.Coordinator.Repos) != 1 {
		return ""
	}
	for _, rc := range cfg.Coordinator.Repos {
		if full, err := rc.FullName(); err == nil {
			return full
		}
	}
	return ""
}
