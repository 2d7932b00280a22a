// Package indexstore persists the repository index and per-chart
// metadata mirrors as YAML files.
package indexstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

// Adapter implements ports.IndexStorePort on the local filesystem.
// Index paths are resolved relative to the repository root.
type Adapter struct {
	repoRoot string
	logger   *slog.Logger
}

// New creates an index store rooted at repoRoot.
func New(repoRoot string, logger *slog.Logger) *Adapter {
	return &Adapter{repoRoot: repoRoot, logger: logger}
}

// Load reads an index file. A missing file is not an error: it returns
// (nil, nil) so the caller can treat it as a first release.
func (a *Adapter) Load(_ context.Context, path string) (*domain.Index, error) {
	raw, err := os.ReadFile(filepath.Join(a.repoRoot, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}

	var idx domain.Index
	if err := yaml.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", path, err)
	}
	return &idx, nil
}

// Save writes the index, creating parent directories as needed.
func (a *Adapter) Save(_ context.Context, path string, idx *domain.Index) error {
	raw, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("serializing index: %w", err)
	}

	full := filepath.Join(a.repoRoot, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := os.WriteFile(full, raw, 0o644); err != nil {
		return fmt.Errorf("writing index %s: %w", path, err)
	}

	a.logger.Debug("index saved", "path", path, "charts", len(idx.Entries))
	return nil
}

// SaveChartMetadata writes the per-chart metadata.yaml mirror inside
// the chart directory, listing that chart's released versions.
func (a *Adapter) SaveChartMetadata(_ context.Context, chartDir, chartName string, entries []domain.IndexEntry) error {
	doc := struct {
		Name     string              `yaml:"name"`
		Versions []domain.IndexEntry `yaml:"versions"`
	}{Name: chartName, Versions: entries}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serializing chart metadata: %w", err)
	}

	path := filepath.Join(a.repoRoot, chartDir, "metadata.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing chart metadata for %s: %w", chartName, err)
	}
	return nil
}
