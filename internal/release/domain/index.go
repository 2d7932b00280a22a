package domain

import (
	"sort"
	"time"

	"github.com/blang/semver/v4"
)

// Index is the Helm repository index.yaml document: all known versions
// of all charts, keyed by chart name.
type Index struct {
	APIVersion string                  `yaml:"apiVersion"`
	Entries    map[string][]IndexEntry `yaml:"entries"`
	Generated  time.Time               `yaml:"generated"`
}

// IndexEntry describes one released chart version.
type IndexEntry struct {
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	AppVersion  string    `yaml:"appVersion,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Type        string    `yaml:"type,omitempty"`
	URLs        []string  `yaml:"urls,omitempty"`
	Created     time.Time `yaml:"created,omitempty"`
	Digest      string    `yaml:"digest,omitempty"`
}

// NewIndex returns an empty index with the Helm repo apiVersion set.
func NewIndex() *Index {
	return &Index{
		APIVersion: "v1",
		Entries:    make(map[string][]IndexEntry),
		Generated:  time.Now().UTC(),
	}
}

// MergeEntries combines freshly generated index entries for one chart
// with its pre-existing entries. The result is sorted descending by
// semantic version, contains no duplicate versions (a fresh entry wins
// over an existing one for the same version, since it carries the
// latest metadata and URLs), and is truncated to the newest retention
// entries when retention > 0. A retention of 0 means unlimited.
func MergeEntries(fresh, existing []IndexEntry, retention int) []IndexEntry {
	merged := make([]IndexEntry, 0, len(fresh)+len(existing))
	seen := make(map[string]struct{}, len(fresh)+len(existing))

	// Fresh entries first so they win the version dedupe.
	for _, e := range fresh {
		if _, dup := seen[e.Version]; dup {
			continue
		}
		seen[e.Version] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range existing {
		if _, dup := seen[e.Version]; dup {
			continue
		}
		seen[e.Version] = struct{}{}
		merged = append(merged, e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return compareVersions(merged[i].Version, merged[j].Version) > 0
	})

	if retention > 0 && len(merged) > retention {
		merged = merged[:retention]
	}
	return merged
}

// MergeInto merges fresh entries for chartName into the index in place.
func (idx *Index) MergeInto(chartName string, fresh []IndexEntry, retention int) {
	if idx.Entries == nil {
		idx.Entries = make(map[string][]IndexEntry)
	}
	idx.Entries[chartName] = MergeEntries(fresh, idx.Entries[chartName], retention)
	idx.Generated = time.Now().UTC()
}

// HasVersion reports whether the index already lists the given version
// of a chart.
func (idx *Index) HasVersion(chartName, version string) bool {
	for _, e := range idx.Entries[chartName] {
		if e.Version == version {
			return true
		}
	}
	return false
}

// compareVersions orders two version strings by numeric semver
// precedence (major, minor, patch, then prerelease). A plain string
// compare is wrong for multi-digit components (2.10.0 vs 2.9.0), so
// both sides are parsed leniently; an unparseable version sorts below a
// parseable one, and two unparseable versions fall back to string
// order.
func compareVersions(a, b string) int {
	va, errA := semver.ParseTolerant(a)
	vb, errB := semver.ParseTolerant(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		switch {
		case a > b:
			return 1
		case a < b:
			return -1
		}
		return 0
	}
}
