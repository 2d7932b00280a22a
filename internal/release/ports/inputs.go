package ports

import (
	"context"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

// ReleaseUseCase is the driving port for running a chart release batch
// and inspecting published releases. ListReleases returns at most limit
// releases in the host's order; limit <= 0 returns all of them.
type ReleaseUseCase interface {
	Execute(ctx context.Context, revisionRange string) (domain.Summary, error)
	ListReleases(ctx context.Context, limit int) ([]Release, error)
}

// UpdateUseCase is the driving port for refreshing chart dependency
// locks and deployment manifests after a version bump.
type UpdateUseCase interface {
	Execute(ctx context.Context, revisionRange string, commit bool) error
}
