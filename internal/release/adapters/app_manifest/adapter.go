// Package appmanifest updates the targetRevision of Argo CD
// application manifests when a chart's version is bumped.
package appmanifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const manifestName = "application.yaml"

// Adapter rewrites application.yaml files in chart directories.
type Adapter struct {
	repoRoot string
	logger   *slog.Logger
}

// New creates an application manifest adapter rooted at repoRoot.
func New(repoRoot string, logger *slog.Logger) *Adapter {
	return &Adapter{repoRoot: repoRoot, logger: logger}
}

// BumpTargetRevision sets spec.source.targetRevision in the chart's
// application.yaml to the given tag. Returns the repo-relative path of
// the updated file, or "" when the chart has no application manifest
// (library charts typically don't).
func (a *Adapter) BumpTargetRevision(_ context.Context, chartDir, tag string) (string, error) {
	relPath := filepath.Join(chartDir, manifestName)
	fullPath := filepath.Join(a.repoRoot, relPath)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", relPath, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parsing %s: %w", relPath, err)
	}

	revision := findMapValue(&doc, "spec", "source", "targetRevision")
	if revision == nil {
		return "", fmt.Errorf("%s has no spec.source.targetRevision", relPath)
	}
	if revision.Value == tag {
		return "", nil
	}
	revision.Value = tag
	revision.Tag = "!!str"

	updated, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("serializing %s: %w", relPath, err)
	}
	if err := os.WriteFile(fullPath, updated, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", relPath, err)
	}

	a.logger.Info("application manifest updated", "path", relPath, "targetRevision", tag)
	return relPath, nil
}

// findMapValue walks nested mapping nodes by key path and returns the
// value node at the end, or nil when any key is absent.
func findMapValue(node *yaml.Node, keys ...string) *yaml.Node {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	for _, key := range keys {
		if node.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}
