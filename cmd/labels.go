package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mcpcoder/coordinator/internal/labels"
	"github.com/mcpcoder/coordinator/models"
)

// labelsCmd prints the workflow label manifest.
var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Print the workflow label manifest",
	Long: `Prints the ten status labels that drive the workflow, with their
category and description. Useful when defining the labels on a new
repository or checking what the coordinator will treat as eligible.`,
	RunE: runLabels,
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}

var categoryStyles = map[models.StageCategory]lipgloss.Style{
	models.CategoryBotPickup:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	models.CategoryBotBusy:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	models.CategoryHumanAction: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
}

func runLabels(cmd *cobra.Command, args []string) error {
	entries, err := labels.All()
	if err != nil {
		return err
	}
	for _, e := range entries {
		category, err := labels.CategoryOf(e.Name)
		if err != nil {
			return err
		}
		style := categoryStyles[category]
		fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s  %s\n",
			e.Name, style.Render(fmt.Sprintf("%-12s", category)), e.Description)
	}
	return nil
}
