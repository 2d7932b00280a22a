package app

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

type mockManifestEdit struct {
	bumped map[string]string // chart dir -> tag
}

func (m *mockManifestEdit) BumpTargetRevision(_ context.Context, chartDir, tag string) (string, error) {
	if m.bumped == nil {
		m.bumped = make(map[string]string)
	}
	m.bumped[chartDir] = tag
	return chartDir + "/application.yaml", nil
}

func newUpdateService(changes *mockChanges, locator *mockLocator, chartTool *mockChartTool, manifests *mockManifestEdit) *UpdateService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	roots := map[domain.ChartType]string{
		domain.TypeApplication: "application",
		domain.TypeLibrary:     "library",
	}
	return NewUpdateService(changes, locator, chartTool, manifests, roots, "{name}-v{version}", "main", logger)
}

func TestUpdateExecuteRefreshesAndCommits(t *testing.T) {
	changes, locator := twoChartsFixture()
	changes.status = domain.WorktreeStatus{Modified: []string{"application/foo/Chart.lock"}}
	chartTool := &mockChartTool{}
	manifests := &mockManifestEdit{}

	service := newUpdateService(changes, locator, chartTool, manifests)

	if err := service.Execute(context.Background(), "origin/main...HEAD", true); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(chartTool.depUpdates) != 2 {
		t.Errorf("expected dependency update per chart, got %v", chartTool.depUpdates)
	}
	if manifests.bumped["application/foo"] != "foo-v1.0.0" {
		t.Errorf("expected targetRevision bumped to foo-v1.0.0, got %v", manifests.bumped)
	}
	if len(changes.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(changes.committed))
	}
	if len(changes.committed[0]) == 0 {
		t.Error("expected commit to include touched files")
	}
}

func TestUpdateExecuteChartWithoutLockFile(t *testing.T) {
	changes, locator := twoChartsFixture()
	delete(locator.manifests, "library/bar")
	changes.status = domain.WorktreeStatus{Modified: []string{"application/foo/application.yaml"}}

	// helm writes no Chart.lock for charts without dependencies; the
	// commit must not stage a path that does not exist.
	chartTool := &mockChartTool{noLock: map[string]bool{"application/foo": true}}
	service := newUpdateService(changes, locator, chartTool, &mockManifestEdit{})

	if err := service.Execute(context.Background(), "origin/main...HEAD", true); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(changes.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(changes.committed))
	}
	for _, file := range changes.committed[0] {
		if strings.HasSuffix(file, "Chart.lock") {
			t.Errorf("commit stages nonexistent lock file: %v", changes.committed[0])
		}
	}
	if changes.committed[0][0] != "application/foo/application.yaml" {
		t.Errorf("expected manifest staged, got %v", changes.committed[0])
	}
}

func TestUpdateExecuteNoCommitFlag(t *testing.T) {
	changes, locator := twoChartsFixture()
	service := newUpdateService(changes, locator, &mockChartTool{}, &mockManifestEdit{})

	if err := service.Execute(context.Background(), "origin/main...HEAD", false); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(changes.committed) != 0 {
		t.Errorf("expected no commit without the commit flag, got %v", changes.committed)
	}
}

func TestUpdateExecuteCleanWorktreeSkipsCommit(t *testing.T) {
	changes, locator := twoChartsFixture()
	// Status reports clean: dependency update was a no-op.
	service := newUpdateService(changes, locator, &mockChartTool{}, &mockManifestEdit{})

	if err := service.Execute(context.Background(), "origin/main...HEAD", true); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(changes.committed) != 0 {
		t.Errorf("expected no commit for clean worktree, got %v", changes.committed)
	}
}

func TestUpdateExecuteNoCharts(t *testing.T) {
	changes := &mockChanges{changes: domain.ChangeSet{"docs/readme.md": domain.ChangeModified}}
	service := newUpdateService(changes, &mockLocator{}, &mockChartTool{}, &mockManifestEdit{})

	if err := service.Execute(context.Background(), "origin/main...HEAD", true); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(changes.committed) != 0 {
		t.Errorf("expected no commit, got %v", changes.committed)
	}
}
