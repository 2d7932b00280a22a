// Package config provides application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Deployment modes of the release pipeline.
const (
	ModeProduction = "production"
	ModeStaging    = "staging"
)

// Config holds the application configuration loaded from environment
// variables. It is constructed once at process start and passed by
// value to every component.
type Config struct {
	// Repository identity
	Owner string
	Repo  string

	// GitHub auth: either a token, or a GitHub App installation
	GitHubToken          string
	GitHubAppID          int64
	GitHubInstallationID int64
	GitHubPrivateKey     string // PEM file contents

	// Chart layout and release policy
	ApplicationRoot string // root directory of application charts
	LibraryRoot     string // root directory of library charts
	TagTemplate     string // {name}/{version} placeholders
	IndexPath       string // repo-relative path of index.yaml
	IndexRetention  int    // versions kept per chart, 0 = unlimited
	StrictLint      bool
	Mode            string // production | staging
	PagesBranch     string

	// OCI distribution (optional)
	OCIEnabled  bool
	OCIRegistry string // e.g. "ghcr.io/acme"
	OCIUsername string
	OCIPassword string

	// Issue labels
	CreateLabels bool

	LogLevel string

	// OpenTelemetry (optional)
	OTelEnabled bool
}

// Load reads configuration from environment variables, validates
// required fields, and applies defaults.
func Load() (Config, error) {
	cfg := Config{
		ApplicationRoot: "application",
		LibraryRoot:     "library",
		TagTemplate:     "{name}-v{version}",
		IndexPath:       "index.yaml",
		Mode:            ModeProduction,
		PagesBranch:     "gh-pages",
		LogLevel:        "info",
	}

	if err := loadRepoConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadAuthConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadReleaseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadOCIConfig(&cfg); err != nil {
		return Config{}, err
	}

	cfg.CreateLabels = os.Getenv("CREATE_LABELS") == "true"
	cfg.OTelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// ReleaseDownloadURL is the base URL for release asset downloads.
func (c Config) ReleaseDownloadURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download", c.Owner, c.Repo)
}

func loadRepoConfig(cfg *Config) error {
	cfg.Owner = os.Getenv("GITHUB_OWNER")
	cfg.Repo = os.Getenv("GITHUB_REPO")

	// GitHub Actions exposes "owner/repo" in GITHUB_REPOSITORY.
	if cfg.Owner == "" || cfg.Repo == "" {
		if owner, repo, ok := strings.Cut(os.Getenv("GITHUB_REPOSITORY"), "/"); ok {
			cfg.Owner, cfg.Repo = owner, repo
		}
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return errors.New("GITHUB_OWNER and GITHUB_REPO (or GITHUB_REPOSITORY) are required")
	}
	return nil
}

func loadAuthConfig(cfg *Config) error {
	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	if cfg.GitHubToken != "" {
		return nil
	}

	// Fall back to GitHub App installation credentials.
	var err error
	cfg.GitHubAppID, err = parseRequiredInt64("GITHUB_APP_ID")
	if err != nil {
		return fmt.Errorf("no GITHUB_TOKEN set and app auth incomplete: %w", err)
	}
	cfg.GitHubInstallationID, err = parseRequiredInt64("GITHUB_INSTALLATION_ID")
	if err != nil {
		return err
	}
	cfg.GitHubPrivateKey = os.Getenv("GITHUB_PRIVATE_KEY")
	if cfg.GitHubPrivateKey == "" {
		return errors.New("GITHUB_PRIVATE_KEY is required for app auth")
	}
	return nil
}

func loadReleaseConfig(cfg *Config) error {
	if v := os.Getenv("CHART_ROOT_APPLICATION"); v != "" {
		cfg.ApplicationRoot = v
	}
	if v := os.Getenv("CHART_ROOT_LIBRARY"); v != "" {
		cfg.LibraryRoot = v
	}
	if v := os.Getenv("RELEASE_TAG_TEMPLATE"); v != "" {
		cfg.TagTemplate = v
	}
	if v := os.Getenv("INDEX_PATH"); v != "" {
		cfg.IndexPath = v
	}
	if v := os.Getenv("PAGES_BRANCH"); v != "" {
		cfg.PagesBranch = v
	}

	if v := os.Getenv("INDEX_RETENTION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid INDEX_RETENTION %q", v)
		}
		cfg.IndexRetention = n
	}

	cfg.StrictLint = os.Getenv("HELM_STRICT_LINT") == "true"

	if v := os.Getenv("DEPLOY_MODE"); v != "" {
		if v != ModeProduction && v != ModeStaging {
			return fmt.Errorf("invalid DEPLOY_MODE %q (want %s or %s)", v, ModeProduction, ModeStaging)
		}
		cfg.Mode = v
	}
	return nil
}

func loadOCIConfig(cfg *Config) error {
	cfg.OCIEnabled = os.Getenv("OCI_ENABLED") == "true"
	if !cfg.OCIEnabled {
		return nil
	}
	cfg.OCIRegistry = os.Getenv("OCI_REGISTRY")
	if cfg.OCIRegistry == "" {
		return errors.New("OCI_REGISTRY is required when OCI_ENABLED=true")
	}
	cfg.OCIUsername = os.Getenv("OCI_USERNAME")
	cfg.OCIPassword = os.Getenv("OCI_PASSWORD")
	return nil
}

func parseRequiredInt64(envKey string) (int64, error) {
	v := os.Getenv(envKey)
	if v == "" {
		return 0, fmt.Errorf("%s is required", envKey)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return id, nil
}
