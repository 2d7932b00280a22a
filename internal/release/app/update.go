package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
	"github.com/nathantilsley/chart-herald/internal/release/ports"
)

// UpdateService implements ports.UpdateUseCase: refresh dependency
// locks for changed charts and bump the targetRevision of their
// deployment manifests, optionally committing the result.
type UpdateService struct {
	changes     ports.ChangesPort
	locator     ports.LocatorPort
	chartTool   ports.ChartToolPort
	manifests   ports.ManifestEditPort
	typeRoots   map[domain.ChartType]string
	tagTemplate string
	branch      string
	logger      *slog.Logger
}

// NewUpdateService wires the update workflow.
func NewUpdateService(
	changes ports.ChangesPort,
	locator ports.LocatorPort,
	chartTool ports.ChartToolPort,
	manifests ports.ManifestEditPort,
	typeRoots map[domain.ChartType]string,
	tagTemplate string,
	branch string,
	logger *slog.Logger,
) *UpdateService {
	return &UpdateService{
		changes:     changes,
		locator:     locator,
		chartTool:   chartTool,
		manifests:   manifests,
		typeRoots:   typeRoots,
		tagTemplate: tagTemplate,
		branch:      branch,
		logger:      logger,
	}
}

// Execute refreshes each changed chart. Per-chart failures are logged
// and skipped; the commit at the end covers whatever succeeded.
func (s *UpdateService) Execute(ctx context.Context, revisionRange string, commit bool) error {
	changes, err := s.changes.ChangedFiles(ctx, revisionRange)
	if err != nil {
		return fmt.Errorf("resolving changed files: %w", err)
	}

	candidates := domain.MatchCandidates(changes.Paths(), s.typeRoots)
	discovery, err := s.locator.Locate(ctx, candidates)
	if err != nil {
		return fmt.Errorf("locating charts: %w", err)
	}
	refs := discovery.Refs()
	if len(refs) == 0 {
		s.logger.Info("no charts changed, nothing to update")
		return nil
	}

	var touched []string
	for _, ref := range refs {
		files, err := s.updateChart(ctx, ref)
		if err != nil {
			s.logger.Error("chart update failed", "chart", ref.Name, "error", err)
			continue
		}
		touched = append(touched, files...)
	}

	if !commit || len(touched) == 0 {
		return nil
	}

	status, err := s.changes.Status(ctx)
	if err != nil {
		return fmt.Errorf("checking worktree: %w", err)
	}
	if status.Clean() {
		s.logger.Info("worktree clean, nothing to commit")
		return nil
	}

	commitID, err := s.changes.StageAndCommit(ctx, s.branch, touched,
		fmt.Sprintf("chore: update chart dependencies and target revisions (%d charts)", len(refs)))
	if err != nil {
		return fmt.Errorf("committing updates: %w", err)
	}
	s.logger.Info("updates committed", "commit", commitID, "files", len(touched))
	return nil
}

// updateChart refreshes one chart's dependency lock and application
// manifest, returning the repo-relative paths it may have touched.
func (s *UpdateService) updateChart(ctx context.Context, ref domain.ChartRef) ([]string, error) {
	manifest, err := s.locator.ReadManifest(ctx, ref.Directory)
	if err != nil {
		return nil, err
	}

	lockPath, err := s.chartTool.UpdateDependencies(ctx, ref.Directory)
	if err != nil {
		return nil, fmt.Errorf("updating dependencies: %w", err)
	}
	var files []string
	if lockPath != "" {
		files = append(files, lockPath)
	}

	tag := domain.FormatTag(s.tagTemplate, manifest.Name, manifest.Version)
	updated, err := s.manifests.BumpTargetRevision(ctx, ref.Directory, tag)
	if err != nil {
		return nil, err
	}
	if updated != "" {
		files = append(files, updated)
	}

	s.logger.Info("chart updated", "chart", manifest.Name, "tag", tag)
	return files, nil
}
