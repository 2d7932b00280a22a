package ports

import (
	"context"
	"iter"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

// ChangesPort abstracts the version control system: which files changed
// between two revisions, and committing files back.
type ChangesPort interface {
	ChangedFiles(ctx context.Context, revisionRange string) (domain.ChangeSet, error)
	StageAndCommit(ctx context.Context, branch string, files []string, message string) (commitID string, err error)
	Status(ctx context.Context) (domain.WorktreeStatus, error)
}

// LocatorPort confirms which candidate directories are real charts
// (contain a manifest) and partitions them by type.
type LocatorPort interface {
	Locate(ctx context.Context, candidates []domain.Candidate) (domain.Discovery, error)
	ReadManifest(ctx context.Context, chartDir string) (domain.ChartManifest, error)
}

// ChartToolPort abstracts the Helm CLI. UpdateDependencies returns the
// repo-relative path of the lock file it wrote, or "" when the chart has
// no dependencies and helm produced none.
type ChartToolPort interface {
	Lint(ctx context.Context, chartDir string, strict bool) error
	Package(ctx context.Context, chartDir, destDir string) (artifactPath string, err error)
	UpdateDependencies(ctx context.Context, chartDir string) (lockPath string, err error)
	GenerateRepoIndex(ctx context.Context, dir, url, mergeWith string) error
}

// Release is a published release on the release host.
type Release struct {
	ID   int64
	Tag  string
	Name string
	URL  string
}

// ReleaseHostPort abstracts the release host (GitHub releases and labels).
// GetReleaseByTag returns nil with no error when the tag does not exist,
// so callers can distinguish "not released yet" from transport failures.
type ReleaseHostPort interface {
	GetReleaseByTag(ctx context.Context, tag string) (*Release, error)
	CreateRelease(ctx context.Context, tag, name, body string) (*Release, error)
	UploadAsset(ctx context.Context, releaseID int64, artifactPath string) error
	Releases(ctx context.Context) iter.Seq2[Release, error]
	EnsureLabels(ctx context.Context, labels map[string]string) error
}

// RegistryPort pushes a packaged chart to an OCI registry.
type RegistryPort interface {
	Push(ctx context.Context, artifactPath, reference, version string) error
}

// IndexStorePort loads and persists the repository index and the
// per-chart metadata mirrors.
type IndexStorePort interface {
	Load(ctx context.Context, path string) (*domain.Index, error)
	Save(ctx context.Context, path string, idx *domain.Index) error
	SaveChartMetadata(ctx context.Context, chartDir, chartName string, entries []domain.IndexEntry) error
}

// FrontpagePort renders the repository frontpage from the index.
type FrontpagePort interface {
	Render(ctx context.Context, idx *domain.Index) ([]byte, error)
}

// ManifestEditPort updates deployment manifests that pin a chart
// version. BumpTargetRevision returns the repo-relative path of the
// file it changed, or "" when there was nothing to update.
type ManifestEditPort interface {
	BumpTargetRevision(ctx context.Context, chartDir, tag string) (updatedPath string, err error)
}

// IndexDiffPort produces a human-readable preview of an index change,
// used in dry-run mode.
type IndexDiffPort interface {
	Preview(before, after *domain.Index) (string, error)
}
