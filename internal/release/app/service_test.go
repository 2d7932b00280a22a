package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
	"github.com/nathantilsley/chart-herald/internal/release/ports"
)

// Mock adapters for testing

type mockChanges struct {
	changes    domain.ChangeSet
	err        error
	committed  [][]string
	commitMsgs []string
	status     domain.WorktreeStatus
}

func (m *mockChanges) ChangedFiles(_ context.Context, _ string) (domain.ChangeSet, error) {
	return m.changes, m.err
}

func (m *mockChanges) StageAndCommit(_ context.Context, _ string, files []string, message string) (string, error) {
	m.committed = append(m.committed, files)
	m.commitMsgs = append(m.commitMsgs, message)
	return "abc123", nil
}

func (m *mockChanges) Status(_ context.Context) (domain.WorktreeStatus, error) {
	return m.status, nil
}

type mockLocator struct {
	manifests map[string]domain.ChartManifest // chart dir -> manifest
}

func (m *mockLocator) Locate(_ context.Context, candidates []domain.Candidate) (domain.Discovery, error) {
	var d domain.Discovery
	for _, c := range candidates {
		if _, ok := m.manifests[c.Dir]; !ok {
			continue
		}
		switch c.Type {
		case domain.TypeApplication:
			d.Application = append(d.Application, c.Dir)
		case domain.TypeLibrary:
			d.Library = append(d.Library, c.Dir)
		}
		d.Total++
	}
	return d, nil
}

func (m *mockLocator) ReadManifest(_ context.Context, chartDir string) (domain.ChartManifest, error) {
	manifest, ok := m.manifests[chartDir]
	if !ok {
		return domain.ChartManifest{}, fmt.Errorf("no manifest in %s", chartDir)
	}
	return manifest, nil
}

type mockChartTool struct {
	lintFailures map[string]bool // chart dir -> lint fails
	noLock       map[string]bool // chart dir -> dependency update writes no Chart.lock
	depUpdates   []string
}

func (m *mockChartTool) Lint(_ context.Context, chartDir string, _ bool) error {
	if m.lintFailures[chartDir] {
		return errors.New("lint: template error")
	}
	return nil
}

func (m *mockChartTool) Package(_ context.Context, chartDir, destDir string) (string, error) {
	return filepath.Join(destDir, filepath.Base(chartDir)+".tgz"), nil
}

func (m *mockChartTool) UpdateDependencies(_ context.Context, chartDir string) (string, error) {
	m.depUpdates = append(m.depUpdates, chartDir)
	if m.noLock[chartDir] {
		return "", nil
	}
	return filepath.Join(chartDir, "Chart.lock"), nil
}

func (m *mockChartTool) GenerateRepoIndex(_ context.Context, _, _, _ string) error {
	return nil
}

type mockHost struct {
	existing map[string]*ports.Release // tag -> release
	created  []string
	uploads  []int64
	labels   map[string]string
	nextID   int64
	yielded  int
}

func (m *mockHost) GetReleaseByTag(_ context.Context, tag string) (*ports.Release, error) {
	return m.existing[tag], nil
}

func (m *mockHost) CreateRelease(_ context.Context, tag, name, _ string) (*ports.Release, error) {
	m.nextID++
	release := &ports.Release{ID: m.nextID, Tag: tag, Name: name}
	if m.existing == nil {
		m.existing = make(map[string]*ports.Release)
	}
	m.existing[tag] = release
	m.created = append(m.created, tag)
	return release, nil
}

func (m *mockHost) UploadAsset(_ context.Context, releaseID int64, _ string) error {
	m.uploads = append(m.uploads, releaseID)
	return nil
}

func (m *mockHost) Releases(_ context.Context) iter.Seq2[ports.Release, error] {
	return func(yield func(ports.Release, error) bool) {
		for _, r := range m.existing {
			m.yielded++
			if !yield(*r, nil) {
				return
			}
		}
	}
}

func (m *mockHost) EnsureLabels(_ context.Context, labels map[string]string) error {
	m.labels = labels
	return nil
}

type mockRegistry struct {
	pushed []string
	err    error
}

func (m *mockRegistry) Push(_ context.Context, _, reference, version string) error {
	if m.err != nil {
		return m.err
	}
	m.pushed = append(m.pushed, reference+":"+version)
	return nil
}

type mockIndexStore struct {
	indexes  map[string]*domain.Index
	metadata map[string][]domain.IndexEntry
	saves    int
	loadErr  error
}

func (m *mockIndexStore) Load(_ context.Context, path string) (*domain.Index, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.indexes[path], nil
}

func (m *mockIndexStore) Save(_ context.Context, path string, idx *domain.Index) error {
	if m.indexes == nil {
		m.indexes = make(map[string]*domain.Index)
	}
	m.indexes[path] = idx
	m.saves++
	return nil
}

func (m *mockIndexStore) SaveChartMetadata(_ context.Context, _, chartName string, entries []domain.IndexEntry) error {
	if m.metadata == nil {
		m.metadata = make(map[string][]domain.IndexEntry)
	}
	m.metadata[chartName] = entries
	return nil
}

// Test fixtures

func testSettings() Settings {
	return Settings{
		TypeRoots: map[domain.ChartType]string{
			domain.TypeApplication: "application",
			domain.TypeLibrary:     "library",
		},
		TagTemplate: "{name}-v{version}",
		IndexPath:   "index.yaml",
		ReleaseURL:  "https://github.com/acme/charts/releases/download",
		Mode:        ModeProduction,
	}
}

func newTestService(t *testing.T, deps Deps, settings Settings) *ReleaseService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tracer := nooptrace.NewTracerProvider().Tracer("test")
	meter := noopmetric.NewMeterProvider().Meter("test")

	service, err := NewReleaseService(deps, settings, logger, tracer, meter)
	if err != nil {
		t.Fatalf("NewReleaseService returned error: %v", err)
	}
	return service
}

func twoChartsFixture() (*mockChanges, *mockLocator) {
	changes := &mockChanges{changes: domain.ChangeSet{
		"application/foo/values.yaml": domain.ChangeModified,
		"library/bar/Chart.yaml":      domain.ChangeModified,
		"docs/readme.md":              domain.ChangeModified,
	}}
	locator := &mockLocator{manifests: map[string]domain.ChartManifest{
		"application/foo": {Name: "foo", Version: "1.0.0", Description: "foo chart"},
		"library/bar":     {Name: "bar", Version: "0.1.0", Type: "library"},
	}}
	return changes, locator
}

// Tests

func TestExecuteReleasesChangedCharts(t *testing.T) {
	changes, locator := twoChartsFixture()
	host := &mockHost{}
	registry := &mockRegistry{}
	store := &mockIndexStore{}

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator, ChartTool: &mockChartTool{},
		Host: host, Registry: registry, IndexStore: store,
	}, testSettings())

	summary, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if summary.Processed != 2 || summary.Released != 2 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(host.created) != 2 {
		t.Errorf("expected 2 releases created, got %v", host.created)
	}
	if len(host.uploads) != 2 {
		t.Errorf("expected 2 asset uploads, got %v", host.uploads)
	}
	if len(registry.pushed) != 2 {
		t.Errorf("expected 2 oci pushes, got %v", registry.pushed)
	}

	idx := store.indexes["index.yaml"]
	if idx == nil {
		t.Fatal("expected index to be persisted")
	}
	if !idx.HasVersion("foo", "1.0.0") || !idx.HasVersion("bar", "0.1.0") {
		t.Errorf("expected both versions indexed, got %v", idx.Entries)
	}
	if len(store.metadata["foo"]) != 1 {
		t.Errorf("expected per-chart metadata for foo, got %v", store.metadata)
	}
}

func TestExecuteIsolatesLintFailure(t *testing.T) {
	changes, locator := twoChartsFixture()
	host := &mockHost{}

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator,
		ChartTool:  &mockChartTool{lintFailures: map[string]bool{"application/foo": true}},
		Host:       host,
		IndexStore: &mockIndexStore{},
	}, testSettings())

	summary, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if summary.Released != 1 || summary.Failed != 1 {
		t.Errorf("expected released:1 failed:1, got %+v", summary)
	}
	if len(host.created) != 1 || host.created[0] != "bar-v0.1.0" {
		t.Errorf("expected only bar released, got %v", host.created)
	}
}

func TestExecuteSecondRunIsIdempotent(t *testing.T) {
	changes, locator := twoChartsFixture()
	// Keep only one chart to make counting obvious.
	delete(locator.manifests, "library/bar")

	host := &mockHost{}
	store := &mockIndexStore{}
	deps := Deps{Changes: changes, Locator: locator, ChartTool: &mockChartTool{}, Host: host, IndexStore: store}

	service := newTestService(t, deps, testSettings())

	first, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("first Execute returned error: %v", err)
	}
	if first.Released != 1 {
		t.Fatalf("expected first run to release, got %+v", first)
	}

	second, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("second Execute returned error: %v", err)
	}
	if second.Released != 0 || second.Skipped != 1 || second.Failed != 0 {
		t.Errorf("expected released:0 skipped:1 on rerun, got %+v", second)
	}
	if len(host.created) != 1 {
		t.Errorf("expected no duplicate release, got %v", host.created)
	}
}

func TestExecuteHealsIndexForExistingRelease(t *testing.T) {
	changes, locator := twoChartsFixture()
	delete(locator.manifests, "library/bar")

	// Release exists but the index has no entry for it.
	host := &mockHost{existing: map[string]*ports.Release{
		"foo-v1.0.0": {ID: 9, Tag: "foo-v1.0.0"},
	}}
	store := &mockIndexStore{}

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator, ChartTool: &mockChartTool{},
		Host: host, IndexStore: store,
	}, testSettings())

	summary, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected skip for existing release, got %+v", summary)
	}
	idx := store.indexes["index.yaml"]
	if idx == nil || !idx.HasVersion("foo", "1.0.0") {
		t.Error("expected index to be healed with the existing release")
	}
}

func TestExecuteStagingSuppressesRelease(t *testing.T) {
	changes, locator := twoChartsFixture()
	host := &mockHost{}
	store := &mockIndexStore{}

	settings := testSettings()
	settings.Mode = ModeStaging

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator, ChartTool: &mockChartTool{},
		Host: host, IndexStore: store,
	}, settings)

	summary, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if summary.Skipped != 2 || summary.Released != 0 {
		t.Errorf("expected all charts skipped in staging, got %+v", summary)
	}
	if len(host.created) != 0 {
		t.Errorf("expected no releases in staging, got %v", host.created)
	}
	if store.saves != 0 {
		t.Errorf("expected index not persisted in staging, got %d saves", store.saves)
	}
}

func TestExecuteNoChangedCharts(t *testing.T) {
	changes := &mockChanges{changes: domain.ChangeSet{"docs/readme.md": domain.ChangeModified}}

	service := newTestService(t, Deps{
		Changes: changes, Locator: &mockLocator{}, ChartTool: &mockChartTool{},
		Host: &mockHost{}, IndexStore: &mockIndexStore{},
	}, testSettings())

	summary, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if summary.Processed != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestExecuteIndexLoadFailureIsFatal(t *testing.T) {
	changes, locator := twoChartsFixture()

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator, ChartTool: &mockChartTool{},
		Host:       &mockHost{},
		IndexStore: &mockIndexStore{loadErr: errors.New("disk on fire")},
	}, testSettings())

	_, err := service.Execute(context.Background(), "origin/main...HEAD")
	if err == nil {
		t.Fatal("expected fatal error when index cannot be loaded")
	}
	if !domain.IsSetupError(err) {
		t.Errorf("expected SetupError, got %T: %v", err, err)
	}
}

func TestExecuteEnsuresLabelsWhenConfigured(t *testing.T) {
	changes, locator := twoChartsFixture()
	host := &mockHost{}

	settings := testSettings()
	settings.CreateLabels = true
	settings.ReleaseLabels = map[string]string{"release": "a2eeef"}

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator, ChartTool: &mockChartTool{},
		Host: host, IndexStore: &mockIndexStore{},
	}, settings)

	if _, err := service.Execute(context.Background(), "origin/main...HEAD"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if host.labels["release"] != "a2eeef" {
		t.Errorf("expected labels ensured, got %v", host.labels)
	}
}

func TestListReleasesHonorsLimit(t *testing.T) {
	host := &mockHost{existing: map[string]*ports.Release{
		"a-v1.0.0": {ID: 1, Tag: "a-v1.0.0"},
		"b-v1.0.0": {ID: 2, Tag: "b-v1.0.0"},
		"c-v1.0.0": {ID: 3, Tag: "c-v1.0.0"},
	}}

	service := newTestService(t, Deps{
		Changes: &mockChanges{}, Locator: &mockLocator{}, ChartTool: &mockChartTool{},
		Host: host, IndexStore: &mockIndexStore{},
	}, testSettings())

	limited, err := service.ListReleases(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListReleases returned error: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 releases with limit, got %d", len(limited))
	}
	if host.yielded != 2 {
		t.Errorf("expected iteration to stop at the limit, host yielded %d", host.yielded)
	}

	all, err := service.ListReleases(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListReleases returned error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected all releases with limit 0, got %d", len(all))
	}
}

func TestExecuteRetentionAppliedOnMerge(t *testing.T) {
	changes, locator := twoChartsFixture()
	delete(locator.manifests, "library/bar")
	locator.manifests["application/foo"] = domain.ChartManifest{Name: "foo", Version: "5.0.0"}

	existing := domain.NewIndex()
	existing.Entries["foo"] = []domain.IndexEntry{
		{Name: "foo", Version: "4.0.0"},
		{Name: "foo", Version: "3.0.0"},
		{Name: "foo", Version: "2.0.0"},
		{Name: "foo", Version: "1.0.0"},
	}
	store := &mockIndexStore{indexes: map[string]*domain.Index{"index.yaml": existing}}

	settings := testSettings()
	settings.Retention = 3

	service := newTestService(t, Deps{
		Changes: changes, Locator: locator, ChartTool: &mockChartTool{},
		Host: &mockHost{}, IndexStore: store,
	}, settings)

	if _, err := service.Execute(context.Background(), "origin/main...HEAD"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	entries := store.indexes["index.yaml"].Entries["foo"]
	if len(entries) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(entries))
	}
	if entries[0].Version != "5.0.0" || entries[2].Version != "3.0.0" {
		t.Errorf("expected newest 3 versions retained, got %v", entries)
	}
}
