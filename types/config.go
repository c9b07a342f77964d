package types

import (
	"fmt"
	"strings"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Verbose     bool              `mapstructure:"verbose"`
	LogLevel    string            `mapstructure:"log_level" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator" validate:"required"`
	Jenkins     JenkinsConfig     `mapstructure:"jenkins"`
	GitHub      GitHubConfig      `mapstructure:"github"`
}

// CoordinatorConfig holds the poll-loop settings and the per-repo map.
type CoordinatorConfig struct {
	// CacheRefreshMinutes is the issue cache TTL in minutes.
	CacheRefreshMinutes int                   `mapstructure:"cache_refresh_minutes" validate:"required,min=1"`
	Repos               map[string]RepoConfig `mapstructure:"repos"`
}

// RepoConfig describes one coordinated repository.
type RepoConfig struct {
	RepoURL             string `mapstructure:"repo_url" validate:"required,url"`
	ExecutorJobPath     string `mapstructure:"executor_job_path" validate:"required"`
	GitHubCredentialsID string `mapstructure:"github_credentials_id" validate:"required"`
	ExecutorOS          string `mapstructure:"executor_os" validate:"omitempty,oneof=linux windows"`
}

// JenkinsConfig holds the build-server endpoint and credentials.
// JENKINS_URL, JENKINS_USERNAME, and JENKINS_API_TOKEN env vars override.
type JenkinsConfig struct {
	ServerURL string `mapstructure:"server_url" validate:"omitempty,url"`
	Username  string `mapstructure:"username"`
	APIToken  string `mapstructure:"api_token"`
}

// GitHubConfig holds the PAT; GITHUB_TOKEN overrides.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

// FullName derives "owner/name" from the repo clone URL, e.g.
// https://github.com/acme/svc.git -> acme/svc.
func (r RepoConfig) FullName() (string, error) {
	u := strings.TrimSuffix(strings.TrimSuffix(r.RepoURL, "/"), ".git")
	if idx := strings.Index(u, "://"); idx >= 0 {
		u = u[idx+3:]
	} else if idx := strings.Index(u, "@"); idx >= 0 {
		// git@github.com:owner/name
		u = strings.Replace(u[idx+1:], ":", "/", 1)
	}
	parts := strings.Split(u, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("cannot derive owner/name from repo_url %q", r.RepoURL)
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1], nil
}

// NormalizeOS lower-cases ExecutorOS and applies the linux default. An
// unrecognized value is a hard config error.
func (r *RepoConfig) NormalizeOS() error {
	os := strings.ToLower(strings.TrimSpace(r.ExecutorOS))
	if os == "" {
		os = "linux"
	}
	if os != "linux" && os != "windows" {
		return fmt.Errorf("invalid executor_os %q: must be linux or windows", r.ExecutorOS)
	}
	r.ExecutorOS = os
	return nil
}
