package main

import (
	"context"
	"fmt"
	"log/slog"

	gogithub "github.com/google/go-github/v68/github"

	appmanifest "github.com/nathantilsley/chart-herald/internal/release/adapters/app_manifest"
	chartfs "github.com/nathantilsley/chart-herald/internal/release/adapters/chart_fs"
	"github.com/nathantilsley/chart-herald/internal/release/adapters/frontpage"
	gitcli "github.com/nathantilsley/chart-herald/internal/release/adapters/git_cli"
	githubout "github.com/nathantilsley/chart-herald/internal/release/adapters/github_out"
	helmcli "github.com/nathantilsley/chart-herald/internal/release/adapters/helm_cli"
	indexdiff "github.com/nathantilsley/chart-herald/internal/release/adapters/index_diff"
	indexstore "github.com/nathantilsley/chart-herald/internal/release/adapters/index_store"
	ocipush "github.com/nathantilsley/chart-herald/internal/release/adapters/oci_push"
	"github.com/nathantilsley/chart-herald/internal/release/app"
	"github.com/nathantilsley/chart-herald/internal/release/domain"
	"github.com/nathantilsley/chart-herald/internal/release/ports"
	"github.com/nathantilsley/chart-herald/internal/platform/config"
	ghclient "github.com/nathantilsley/chart-herald/internal/platform/github"
	"github.com/nathantilsley/chart-herald/internal/platform/telemetry"
)

// Labels ensured on the repository when CREATE_LABELS is enabled.
var releaseLabels = map[string]string{
	"chart":   "0075ca",
	"release": "a2eeef",
}

// Container holds all application dependencies.
type Container struct {
	Config         config.Config
	Logger         *slog.Logger
	GitHubClient   *gogithub.Client
	Telemetry      *telemetry.Telemetry
	Changes        ports.ChangesPort
	Locator        ports.LocatorPort
	ChartTool      ports.ChartToolPort
	IndexStore     ports.IndexStorePort
	Frontpage      ports.FrontpagePort
	ReleaseService ports.ReleaseUseCase
	UpdateService  ports.UpdateUseCase
}

// NewContainer builds and wires all dependencies for a checkout at
// repoRoot.
func NewContainer(ctx context.Context, cfg config.Config, repoRoot string, log *slog.Logger) (*Container, error) {
	tel, err := telemetry.New(ctx, cfg.OTelEnabled)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	githubClient, err := newGitHubClient(cfg)
	if err != nil {
		return nil, err
	}

	// Adapters
	changes, err := gitcli.New(repoRoot, log)
	if err != nil {
		return nil, fmt.Errorf("creating git adapter: %w", err)
	}
	chartTool, err := helmcli.New(repoRoot, log)
	if err != nil {
		return nil, fmt.Errorf("creating helm adapter: %w", err)
	}
	locator := chartfs.New(repoRoot, log)
	host := githubout.New(githubClient, cfg.Owner, cfg.Repo, log)
	store := indexstore.New(repoRoot, log)

	var registry ports.RegistryPort
	if cfg.OCIEnabled {
		log.Info("oci distribution enabled", "registry", cfg.OCIRegistry)
		registry = ocipush.New(cfg.OCIRegistry, cfg.OCIUsername, cfg.OCIPassword, log)
	}

	page, err := frontpage.New("", cfg.Repo, fmt.Sprintf("Helm charts published by %s/%s.", cfg.Owner, cfg.Repo))
	if err != nil {
		return nil, fmt.Errorf("creating frontpage renderer: %w", err)
	}

	typeRoots := map[domain.ChartType]string{
		domain.TypeApplication: cfg.ApplicationRoot,
		domain.TypeLibrary:     cfg.LibraryRoot,
	}

	releaseService, err := app.NewReleaseService(
		app.Deps{
			Changes:    changes,
			Locator:    locator,
			ChartTool:  chartTool,
			Host:       host,
			Registry:   registry,
			IndexStore: store,
			IndexDiff:  indexdiff.New(),
		},
		app.Settings{
			TypeRoots:     typeRoots,
			TagTemplate:   cfg.TagTemplate,
			Retention:     cfg.IndexRetention,
			IndexPath:     cfg.IndexPath,
			ReleaseURL:    cfg.ReleaseDownloadURL(),
			Mode:          app.Mode(cfg.Mode),
			StrictLint:    cfg.StrictLint,
			CreateLabels:  cfg.CreateLabels,
			ReleaseLabels: releaseLabels,
		},
		log, tel.Tracer, tel.Meter,
	)
	if err != nil {
		return nil, fmt.Errorf("creating release service: %w", err)
	}

	updateService := app.NewUpdateService(
		changes,
		locator,
		chartTool,
		appmanifest.New(repoRoot, log),
		typeRoots,
		cfg.TagTemplate,
		"", // commit on the current branch
		log,
	)

	return &Container{
		Config:         cfg,
		Logger:         log,
		GitHubClient:   githubClient,
		Telemetry:      tel,
		Changes:        changes,
		Locator:        locator,
		ChartTool:      chartTool,
		IndexStore:     store,
		Frontpage:      page,
		ReleaseService: releaseService,
		UpdateService:  updateService,
	}, nil
}

// Discover resolves the charts affected by a revision range without
// taking any release action.
func (c *Container) Discover(ctx context.Context, revisionRange string) (domain.Discovery, error) {
	changes, err := c.Changes.ChangedFiles(ctx, revisionRange)
	if err != nil {
		return domain.Discovery{}, fmt.Errorf("resolving changed files: %w", err)
	}
	typeRoots := map[domain.ChartType]string{
		domain.TypeApplication: c.Config.ApplicationRoot,
		domain.TypeLibrary:     c.Config.LibraryRoot,
	}
	return c.Locator.Locate(ctx, domain.MatchCandidates(changes.Paths(), typeRoots))
}

func newGitHubClient(cfg config.Config) (*gogithub.Client, error) {
	if cfg.GitHubToken != "" {
		return ghclient.NewTokenClient(cfg.GitHubToken), nil
	}
	client, err := ghclient.NewAppClient(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("creating github app client: %w", err)
	}
	return client, nil
}
