// Package helmcli shells out to the helm binary for linting, packaging,
// dependency updates, and repo index generation.
package helmcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Adapter implements ports.ChartToolPort by shelling out to the helm CLI.
type Adapter struct {
	helmBin  string
	repoRoot string
	logger   *slog.Logger
}

// New creates a new Helm CLI adapter. It verifies that the helm binary
// is available on PATH at construction time.
func New(repoRoot string, logger *slog.Logger) (*Adapter, error) {
	helmBin, err := exec.LookPath("helm")
	if err != nil {
		return nil, fmt.Errorf("helm binary not found: %w", err)
	}
	return &Adapter{helmBin: helmBin, repoRoot: repoRoot, logger: logger}, nil
}

// Lint runs `helm lint` on the chart directory.
func (a *Adapter) Lint(ctx context.Context, chartDir string, strict bool) error {
	args := []string{"lint", filepath.Join(a.repoRoot, chartDir)}
	if strict {
		args = append(args, "--strict")
	}
	_, err := a.run(ctx, args)
	return err
}

// Package runs `helm package` and returns the path of the produced
// .tgz artifact, parsed from helm's stdout.
func (a *Adapter) Package(ctx context.Context, chartDir, destDir string) (string, error) {
	args := []string{"package", filepath.Join(a.repoRoot, chartDir), "--destination", destDir}
	stdout, err := a.run(ctx, args)
	if err != nil {
		return "", err
	}

	// helm prints "Successfully packaged chart and saved it to: <path>"
	const marker = "saved it to:"
	if i := strings.LastIndex(stdout, marker); i >= 0 {
		return strings.TrimSpace(stdout[i+len(marker):]), nil
	}
	return "", fmt.Errorf("helm package output did not contain artifact path: %q", stdout)
}

// UpdateDependencies runs `helm dependency update`, refreshing the
// chart's lock file and downloaded dependency archives. Charts without
// dependencies get no Chart.lock from helm; in that case the returned
// lock path is empty.
func (a *Adapter) UpdateDependencies(ctx context.Context, chartDir string) (string, error) {
	if _, err := a.run(ctx, []string{"dependency", "update", filepath.Join(a.repoRoot, chartDir)}); err != nil {
		return "", err
	}

	lockPath := filepath.Join(chartDir, "Chart.lock")
	if _, err := os.Stat(filepath.Join(a.repoRoot, lockPath)); err != nil {
		return "", nil
	}
	return lockPath, nil
}

// GenerateRepoIndex runs `helm repo index` over a directory of packaged
// charts. When mergeWith is non-empty the existing index file is merged
// into the generated one.
func (a *Adapter) GenerateRepoIndex(ctx context.Context, dir, url, mergeWith string) error {
	args := []string{"repo", "index", dir, "--url", url}
	if mergeWith != "" {
		args = append(args, "--merge", mergeWith)
	}
	_, err := a.run(ctx, args)
	return err
}

func (a *Adapter) run(ctx context.Context, args []string) (string, error) {
	a.logger.Debug("running helm", "args", args)

	cmd := exec.CommandContext(ctx, a.helmBin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("helm %s failed: %w\nstderr: %s", args[0], err, stderr.String())
	}
	return stdout.String(), nil
}
