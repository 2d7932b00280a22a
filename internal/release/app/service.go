package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
	"github.com/nathantilsley/chart-herald/internal/release/ports"
)

// Mode selects whether releases are actually published.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeStaging    Mode = "staging"
)

// Settings carries the immutable release policy, constructed once at
// process start and passed in rather than read from ambient state.
type Settings struct {
	TypeRoots     map[domain.ChartType]string
	TagTemplate   string // e.g. "{name}-v{version}"
	Retention     int    // index entries kept per chart, 0 = unlimited
	IndexPath     string // repo-relative path of the global index.yaml
	ReleaseURL    string // base URL for release asset downloads
	Mode          Mode
	StrictLint    bool
	CreateLabels  bool
	ReleaseLabels map[string]string // label name -> color, ensured when CreateLabels
}

// Deps are the driven ports the service orchestrates. Registry may be
// nil when OCI distribution is disabled; IndexDiff may be nil when
// dry-run previews are not wanted.
type Deps struct {
	Changes    ports.ChangesPort
	Locator    ports.LocatorPort
	ChartTool  ports.ChartToolPort
	Host       ports.ReleaseHostPort
	Registry   ports.RegistryPort
	IndexStore ports.IndexStorePort
	IndexDiff  ports.IndexDiffPort
}

// ReleaseService implements ports.ReleaseUseCase: discover changed
// charts, validate, package, publish, and maintain the index. Each
// chart's pipeline is isolated so one failure never aborts the batch.
type ReleaseService struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
	tracer   trace.Tracer

	releasedCount metric.Int64Counter
	skippedCount  metric.Int64Counter
	failedCount   metric.Int64Counter
}

// NewReleaseService wires the release orchestrator.
func NewReleaseService(deps Deps, settings Settings, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (*ReleaseService, error) {
	released, err := meter.Int64Counter("chart_herald.charts.released")
	if err != nil {
		return nil, fmt.Errorf("creating released counter: %w", err)
	}
	skipped, err := meter.Int64Counter("chart_herald.charts.skipped")
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	failed, err := meter.Int64Counter("chart_herald.charts.failed")
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return &ReleaseService{
		deps:          deps,
		settings:      settings,
		logger:        logger,
		tracer:        tracer,
		releasedCount: released,
		skippedCount:  skipped,
		failedCount:   failed,
	}, nil
}

// Execute runs one release batch over the charts changed in
// revisionRange. It returns a summary of per-chart outcomes; the error
// is non-nil only for batch-level setup failures (diffing, packaging
// workdir, index persistence).
func (s *ReleaseService) Execute(ctx context.Context, revisionRange string) (domain.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "release.Execute")
	defer span.End()

	refs, err := s.discover(ctx, revisionRange)
	if err != nil {
		return domain.Summary{}, err
	}
	if len(refs) == 0 {
		s.logger.Info("no charts changed, nothing to release")
		return domain.Summary{}, nil
	}
	s.logger.Info("charts discovered", "count", len(refs))

	if s.settings.CreateLabels {
		if err := s.deps.Host.EnsureLabels(ctx, s.settings.ReleaseLabels); err != nil {
			s.logger.Warn("ensuring labels failed, continuing", "error", err)
		}
	}

	packageDir, err := os.MkdirTemp("", "chart-herald-packages-*")
	if err != nil {
		return domain.Summary{}, &domain.SetupError{Err: fmt.Errorf("creating package directory: %w", err)}
	}
	defer os.RemoveAll(packageDir)

	idx, err := s.deps.IndexStore.Load(ctx, s.settings.IndexPath)
	if err != nil {
		return domain.Summary{}, &domain.SetupError{Err: err}
	}
	if idx == nil {
		idx = domain.NewIndex()
	}

	var (
		results      []domain.ChartResult
		indexChanged bool
	)
	for _, ref := range refs {
		result := s.processChart(ctx, ref, packageDir, idx, &indexChanged)
		if result.Stage == domain.StageFailed {
			s.logger.Error("chart failed", "chart", ref.Name, "type", ref.Type, "error", result.Err)
		}
		results = append(results, result)
	}

	if indexChanged {
		if s.settings.Mode == ModeStaging {
			s.previewIndexChange(ctx, idx)
		} else if err := s.deps.IndexStore.Save(ctx, s.settings.IndexPath, idx); err != nil {
			return domain.Summarize(results), fmt.Errorf("persisting index: %w", err)
		}
	}

	summary := domain.Summarize(results)
	s.recordSummary(ctx, summary)
	s.logger.Info("release batch finished",
		"processed", summary.Processed,
		"released", summary.Released,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// discover resolves the changed files to confirmed charts.
func (s *ReleaseService) discover(ctx context.Context, revisionRange string) ([]domain.ChartRef, error) {
	changes, err := s.deps.Changes.ChangedFiles(ctx, revisionRange)
	if err != nil {
		return nil, fmt.Errorf("resolving changed files: %w", err)
	}

	candidates := domain.MatchCandidates(changes.Paths(), s.settings.TypeRoots)
	if len(candidates) == 0 {
		return nil, nil
	}

	discovery, err := s.deps.Locator.Locate(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("locating charts: %w", err)
	}
	return discovery.Refs(), nil
}

// processChart runs one chart through the pipeline
// DISCOVERED -> VALIDATED -> PACKAGED -> [SKIPPED_EXISTING | RELEASED] -> INDEXED.
// All failures are converted to a StageFailed result; they never
// propagate to the batch.
func (s *ReleaseService) processChart(ctx context.Context, ref domain.ChartRef, packageDir string, idx *domain.Index, indexChanged *bool) domain.ChartResult {
	ctx, span := s.tracer.Start(ctx, "release.processChart")
	defer span.End()

	failed := func(err error) domain.ChartResult {
		return domain.ChartResult{Chart: ref, Stage: domain.StageFailed, Err: err}
	}

	manifest, err := s.deps.Locator.ReadManifest(ctx, ref.Directory)
	if err != nil {
		return failed(err)
	}
	tag := domain.FormatTag(s.settings.TagTemplate, manifest.Name, manifest.Version)

	// DISCOVERED -> VALIDATED
	if err := s.deps.ChartTool.Lint(ctx, ref.Directory, s.settings.StrictLint); err != nil {
		return failed(&domain.LintError{Chart: manifest.Name, Err: err})
	}

	// VALIDATED -> PACKAGED
	artifactPath, err := s.deps.ChartTool.Package(ctx, ref.Directory, packageDir)
	if err != nil {
		return failed(fmt.Errorf("packaging %s: %w", manifest.Name, err))
	}

	entry := s.indexEntry(ref, manifest, tag, artifactPath)

	// Idempotence: a release with this tag means the version is
	// already published. Skipping is a success, but the index is
	// still healed if it lacks the entry.
	existing, err := s.deps.Host.GetReleaseByTag(ctx, tag)
	if err != nil {
		return failed(fmt.Errorf("checking release %s: %w", tag, err))
	}
	if existing != nil {
		if !idx.HasVersion(manifest.Name, manifest.Version) {
			idx.MergeInto(manifest.Name, []domain.IndexEntry{entry}, s.settings.Retention)
			*indexChanged = true
			s.logger.Info("index healed for existing release", "chart", manifest.Name, "tag", tag)
		} else {
			s.logger.Info("release exists, skipping", "chart", manifest.Name, "tag", tag)
		}
		return domain.ChartResult{Chart: ref, Stage: domain.StageSkippedExisting, Tag: tag, Version: manifest.Version}
	}

	if s.settings.Mode == ModeStaging {
		s.logger.Info("staging mode, release suppressed", "chart", manifest.Name, "tag", tag)
		idx.MergeInto(manifest.Name, []domain.IndexEntry{entry}, s.settings.Retention)
		*indexChanged = true
		return domain.ChartResult{Chart: ref, Stage: domain.StageSkippedExisting, Tag: tag, Version: manifest.Version}
	}

	// PACKAGED -> RELEASED
	body := fmt.Sprintf("%s\n\nChart version %s", manifest.Description, manifest.Version)
	release, err := s.deps.Host.CreateRelease(ctx, tag, tag, body)
	if err != nil {
		return failed(fmt.Errorf("creating release %s: %w", tag, err))
	}
	if err := s.deps.Host.UploadAsset(ctx, release.ID, artifactPath); err != nil {
		return failed(fmt.Errorf("uploading asset for %s: %w", tag, err))
	}

	if s.deps.Registry != nil {
		if err := s.deps.Registry.Push(ctx, artifactPath, manifest.Name, manifest.Version); err != nil {
			return failed(fmt.Errorf("pushing %s to oci registry: %w", manifest.Name, err))
		}
	}

	// RELEASED -> INDEXED
	idx.MergeInto(manifest.Name, []domain.IndexEntry{entry}, s.settings.Retention)
	*indexChanged = true
	if err := s.deps.IndexStore.SaveChartMetadata(ctx, ref.Directory, manifest.Name, idx.Entries[manifest.Name]); err != nil {
		s.logger.Warn("writing chart metadata failed", "chart", manifest.Name, "error", err)
	}

	return domain.ChartResult{Chart: ref, Stage: domain.StageReleased, Tag: tag, Version: manifest.Version}
}

// indexEntry builds the fresh index entry for one packaged chart.
func (s *ReleaseService) indexEntry(ref domain.ChartRef, manifest domain.ChartManifest, tag, artifactPath string) domain.IndexEntry {
	entry := domain.IndexEntry{
		Name:        manifest.Name,
		Version:     manifest.Version,
		AppVersion:  manifest.AppVersion,
		Description: manifest.Description,
		Type:        manifest.Type,
		Created:     time.Now().UTC(),
	}
	if entry.Type == "" {
		entry.Type = string(ref.Type)
	}
	if s.settings.ReleaseURL != "" {
		entry.URLs = []string{
			fmt.Sprintf("%s/%s/%s", s.settings.ReleaseURL, tag, filepath.Base(artifactPath)),
		}
	}
	return entry
}

// previewIndexChange prints the would-be index diff in staging mode.
func (s *ReleaseService) previewIndexChange(ctx context.Context, merged *domain.Index) {
	if s.deps.IndexDiff == nil {
		return
	}
	current, err := s.deps.IndexStore.Load(ctx, s.settings.IndexPath)
	if err != nil {
		s.logger.Warn("loading current index for preview failed", "error", err)
		return
	}
	preview, err := s.deps.IndexDiff.Preview(current, merged)
	if err != nil {
		s.logger.Warn("computing index preview failed", "error", err)
		return
	}
	if preview == "" {
		s.logger.Info("index unchanged")
		return
	}
	s.logger.Info("index changes (staging, not persisted)\n" + preview)
}

// ListReleases collects published releases from the host, stopping
// after limit entries. The lazy iterator means a small limit never
// fetches more than the pages it needs.
func (s *ReleaseService) ListReleases(ctx context.Context, limit int) ([]ports.Release, error) {
	var releases []ports.Release
	for release, err := range s.deps.Host.Releases(ctx) {
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
		if limit > 0 && len(releases) == limit {
			break
		}
	}
	return releases, nil
}

func (s *ReleaseService) recordSummary(ctx context.Context, summary domain.Summary) {
	s.releasedCount.Add(ctx, int64(summary.Released))
	s.skippedCount.Add(ctx, int64(summary.Skipped))
	s.failedCount.Add(ctx, int64(summary.Failed))
}
