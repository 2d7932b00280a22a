// Package chartfs locates charts on the local filesystem by checking
// candidate directories for a Chart.yaml manifest.
package chartfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

const manifestFile = "Chart.yaml"

// Adapter implements ports.LocatorPort against a repository checkout
// rooted at repoRoot.
type Adapter struct {
	repoRoot string
	logger   *slog.Logger
}

// New creates a filesystem locator rooted at repoRoot.
func New(repoRoot string, logger *slog.Logger) *Adapter {
	return &Adapter{repoRoot: repoRoot, logger: logger}
}

// Locate confirms each candidate has a chart manifest and partitions
// the confirmed charts into the application and library buckets.
// Existence checks run concurrently since candidates are independent;
// an I/O error on a single check is logged and treated as "not a
// chart" rather than aborting discovery for the rest.
func (a *Adapter) Locate(ctx context.Context, candidates []domain.Candidate) (domain.Discovery, error) {
	var (
		mu        sync.Mutex
		discovery domain.Discovery
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			manifestPath := filepath.Join(a.repoRoot, c.Dir, manifestFile)
			if _, err := os.Stat(manifestPath); err != nil {
				if !os.IsNotExist(err) {
					a.logger.Warn("manifest check failed, treating as non-chart",
						"dir", c.Dir, "error", err)
				}
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			switch c.Type {
			case domain.TypeApplication:
				discovery.Application = append(discovery.Application, c.Dir)
			case domain.TypeLibrary:
				discovery.Library = append(discovery.Library, c.Dir)
			}
			discovery.Total++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Discovery{}, err
	}

	// Deterministic output independent of goroutine completion order.
	sort.Strings(discovery.Application)
	sort.Strings(discovery.Library)
	return discovery, nil
}

// ReadManifest parses the Chart.yaml of a confirmed chart directory.
func (a *Adapter) ReadManifest(_ context.Context, chartDir string) (domain.ChartManifest, error) {
	raw, err := os.ReadFile(filepath.Join(a.repoRoot, chartDir, manifestFile))
	if err != nil {
		return domain.ChartManifest{}, fmt.Errorf("reading chart manifest in %s: %w", chartDir, err)
	}

	var manifest domain.ChartManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return domain.ChartManifest{}, fmt.Errorf("parsing chart manifest in %s: %w", chartDir, err)
	}
	if manifest.Name == "" {
		return domain.ChartManifest{}, fmt.Errorf("chart manifest in %s has no name", chartDir)
	}
	return manifest, nil
}
