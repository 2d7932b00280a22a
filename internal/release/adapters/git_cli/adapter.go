// Package gitcli reads and writes repository state through the git CLI.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

// Adapter implements ports.ChangesPort against a local git checkout.
type Adapter struct {
	repoRoot string
	logger   *slog.Logger
}

// New creates a git adapter for the checkout at repoRoot. It verifies
// the git binary is available on PATH at construction time.
func New(repoRoot string, logger *slog.Logger) (*Adapter, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git binary not found: %w", err)
	}
	return &Adapter{repoRoot: repoRoot, logger: logger}, nil
}

// ChangedFiles returns the files changed across revisionRange
// (e.g. "origin/main...HEAD") mapped to their change kind.
func (a *Adapter) ChangedFiles(ctx context.Context, revisionRange string) (domain.ChangeSet, error) {
	out, err := a.run(ctx, "diff", "--name-status", revisionRange)
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", revisionRange, err)
	}
	return ParseNameStatus(out), nil
}

// StageAndCommit stages the given files on branch and commits them,
// returning the new commit hash. Files outside the worktree or with no
// changes cause git to fail, which is surfaced to the caller.
func (a *Adapter) StageAndCommit(ctx context.Context, branch string, files []string, message string) (string, error) {
	if branch != "" {
		if _, err := a.run(ctx, "checkout", branch); err != nil {
			return "", fmt.Errorf("checking out %s: %w", branch, err)
		}
	}

	addArgs := append([]string{"add", "--"}, files...)
	if _, err := a.run(ctx, addArgs...); err != nil {
		return "", fmt.Errorf("staging files: %w", err)
	}

	if _, err := a.run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	commitID, err := a.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return strings.TrimSpace(commitID), nil
}

// Status reports the worktree's modified, untracked, and deleted files.
func (a *Adapter) Status(ctx context.Context) (domain.WorktreeStatus, error) {
	out, err := a.run(ctx, "status", "--porcelain")
	if err != nil {
		return domain.WorktreeStatus{}, fmt.Errorf("reading status: %w", err)
	}
	return ParsePorcelainStatus(out), nil
}

func (a *Adapter) run(ctx context.Context, args ...string) (string, error) {
	a.logger.Debug("running git", "args", args)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w\nstderr: %s", args[0], err, stderr.String())
	}
	return stdout.String(), nil
}

// ParseNameStatus parses `git diff --name-status` output into a
// ChangeSet. Renames (R...) are treated as an add of the new path.
func ParseNameStatus(out string) domain.ChangeSet {
	changes := make(domain.ChangeSet)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status, path := fields[0], fields[1]
		switch {
		case strings.HasPrefix(status, "A"):
			changes[path] = domain.ChangeAdded
		case strings.HasPrefix(status, "M"):
			changes[path] = domain.ChangeModified
		case strings.HasPrefix(status, "D"):
			changes[path] = domain.ChangeRemoved
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			changes[fields[2]] = domain.ChangeAdded
		}
	}
	return changes
}

// ParsePorcelainStatus parses `git status --porcelain` output. Renamed
// entries ("R  old -> new") are recorded under the new path.
func ParsePorcelainStatus(out string) domain.WorktreeStatus {
	var status domain.WorktreeStatus
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code, path := line[:2], strings.TrimSpace(line[3:])
		if i := strings.LastIndex(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		switch {
		case code == "??":
			status.Untracked = append(status.Untracked, path)
		case strings.Contains(code, "D"):
			status.Deleted = append(status.Deleted, path)
		default:
			status.Modified = append(status.Modified, path)
		}
	}
	return status
}
