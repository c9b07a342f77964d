package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcpcoder/coordinator/internal/logger"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// logLevel is the global log verbosity (DEBUG, INFO, WARNING, ERROR).
	logLevel string
	// version is the application version.
	version = "0.3.0"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Drives GitHub issues through the automated workflow lifecycle.",
	Long: `coordinator polls configured GitHub repositories, finds issues whose
status label marks them ready for automation, and dispatches one bounded
build-server job per eligible issue per cycle. Workers and operators can ask
it for a branch status report at any time.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetCommand(cmd.Name())
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	defer logger.HandlePanic()

	logger.SetVersion(version)
	if home, err := os.UserHomeDir(); err == nil {
		logger.SetBasePath(filepath.Join(home, configDir))
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.mcp_coder/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: DEBUG, INFO, WARNING, or ERROR")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}
