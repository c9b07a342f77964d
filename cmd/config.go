package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcpcoder/coordinator/internal/logx"
	"github.com/mcpcoder/coordinator/types"
)

const (
	configName = "config"
	configDir  = ".mcp_coder"
	envPrefix  = "MCP_CODER"
)

// validate is a single instance; it caches struct info.
var validate = validator.New()

// InitConfig wires viper: .env file, environment overrides, config file
// search paths, and defaults. It runs once per invocation via
// cobra.OnInitialize; unmarshalling and validation happen in LoadConfig so
// errors can flow through RunE.
func InitConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Credential env vars override their config keys under their
	// conventional names, not the MCP_CODER prefix.
	_ = viper.BindEnv("github.token", "GITHUB_TOKEN")
	_ = viper.BindEnv("jenkins.server_url", "JENKINS_URL")
	_ = viper.BindEnv("jenkins.username", "JENKINS_USERNAME")
	_ = viper.BindEnv("jenkins.api_token", "JENKINS_API_TOKEN")

	if cfgFileFlag := viper.GetString("config"); cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(filepath.Join(home, configDir))
		viper.AddConfigPath(".")
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("coordinator.cache_refresh_minutes", 1440)
}

// LoadConfig unmarshals and validates the full application configuration,
// and installs the logger at the configured level.
func LoadConfig() (types.AppConfig, error) {
	var cfg types.AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse configuration: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logx.Setup(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}
