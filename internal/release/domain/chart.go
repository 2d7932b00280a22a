package domain

// ChartType classifies a chart by its role in the repository.
type ChartType string

const (
	TypeApplication ChartType = "application"
	TypeLibrary     ChartType = "library"
)

// ChartRef identifies a chart discovered in one workflow run.
// Identity is (Type, Name); Directory is derived from the configured
// root path for the type.
type ChartRef struct {
	Type      ChartType
	Name      string
	Directory string
}

// Candidate is a possible chart directory produced by path matching,
// before the manifest existence check confirms it.
type Candidate struct {
	Type ChartType
	Dir  string
}

// ChangeKind describes how a file changed between two revisions.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ChangeSet maps changed file paths to their change kind. It is a
// read-only input built from a diff between two revisions.
type ChangeSet map[string]ChangeKind

// Paths returns the changed file paths in unspecified order.
func (c ChangeSet) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	return paths
}

// Discovery holds the located charts of one discovery pass, partitioned
// by type.
type Discovery struct {
	Application []string
	Library     []string
	Total       int
}

// Refs flattens a Discovery into ChartRefs. The chart name is the last
// path segment of each directory.
func (d Discovery) Refs() []ChartRef {
	refs := make([]ChartRef, 0, d.Total)
	for _, dir := range d.Application {
		refs = append(refs, ChartRef{Type: TypeApplication, Name: baseName(dir), Directory: dir})
	}
	for _, dir := range d.Library {
		refs = append(refs, ChartRef{Type: TypeLibrary, Name: baseName(dir), Directory: dir})
	}
	return refs
}

func baseName(dir string) string {
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[i+1:]
		}
	}
	return dir
}

// WorktreeStatus summarizes the local git worktree.
type WorktreeStatus struct {
	Modified  []string
	Untracked []string
	Deleted   []string
}

// Clean reports whether the worktree has no pending changes.
func (s WorktreeStatus) Clean() bool {
	return len(s.Modified) == 0 && len(s.Untracked) == 0 && len(s.Deleted) == 0
}

// ChartManifest is the subset of Chart.yaml this tool reads.
type ChartManifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	AppVersion  string `yaml:"appVersion,omitempty"`
	Description string `yaml:"description,omitempty"`
	Type        string `yaml:"type,omitempty"`
}
