package domain

import "testing"

func entry(version string) IndexEntry {
	return IndexEntry{Name: "test-chart", Version: version}
}

func versions(entries []IndexEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Version
	}
	return out
}

func assertVersions(t *testing.T, got []IndexEntry, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(got), versions(got))
	}
	for i, v := range want {
		if got[i].Version != v {
			t.Errorf("entry %d: expected version %s, got %s (full: %v)", i, v, got[i].Version, versions(got))
		}
	}
}

func TestMergeEntries(t *testing.T) {
	t.Run("first release with no existing entries", func(t *testing.T) {
		merged := MergeEntries([]IndexEntry{entry("1.0.0")}, nil, 0)
		assertVersions(t, merged, []string{"1.0.0"})
	})

	t.Run("new version sorts above existing descending", func(t *testing.T) {
		merged := MergeEntries([]IndexEntry{entry("2.0.0")}, []IndexEntry{entry("1.0.0")}, 0)
		assertVersions(t, merged, []string{"2.0.0", "1.0.0"})
	})

	t.Run("numeric semver compare not string compare", func(t *testing.T) {
		merged := MergeEntries(
			[]IndexEntry{entry("0.10.0")},
			[]IndexEntry{entry("0.9.0"), entry("0.2.0")},
			0,
		)
		assertVersions(t, merged, []string{"0.10.0", "0.9.0", "0.2.0"})
	})

	t.Run("fresh entry wins version tie", func(t *testing.T) {
		fresh := []IndexEntry{{Name: "test-chart", Version: "1.0.0", URLs: []string{"https://new.example/c-1.0.0.tgz"}}}
		existing := []IndexEntry{{Name: "test-chart", Version: "1.0.0", URLs: []string{"https://old.example/c-1.0.0.tgz"}}}

		merged := MergeEntries(fresh, existing, 0)
		assertVersions(t, merged, []string{"1.0.0"})
		if merged[0].URLs[0] != "https://new.example/c-1.0.0.tgz" {
			t.Errorf("expected fresh entry to win the tie, got URLs %v", merged[0].URLs)
		}
	})

	t.Run("merge is idempotent", func(t *testing.T) {
		fresh := []IndexEntry{entry("2.0.0")}
		once := MergeEntries(fresh, []IndexEntry{entry("1.0.0")}, 0)
		twice := MergeEntries(fresh, once, 0)
		assertVersions(t, twice, []string{"2.0.0", "1.0.0"})
	})

	t.Run("retention truncates to newest N", func(t *testing.T) {
		existing := []IndexEntry{entry("4.0.0"), entry("3.0.0"), entry("2.0.0"), entry("1.0.0")}
		merged := MergeEntries([]IndexEntry{entry("5.0.0")}, existing, 3)
		assertVersions(t, merged, []string{"5.0.0", "4.0.0", "3.0.0"})
	})

	t.Run("retention zero keeps everything", func(t *testing.T) {
		existing := []IndexEntry{entry("4.0.0"), entry("3.0.0"), entry("2.0.0"), entry("1.0.0")}
		merged := MergeEntries([]IndexEntry{entry("5.0.0")}, existing, 0)
		assertVersions(t, merged, []string{"5.0.0", "4.0.0", "3.0.0", "2.0.0", "1.0.0"})
	})

	t.Run("retention applies to first release too", func(t *testing.T) {
		fresh := []IndexEntry{entry("1.0.0"), entry("2.0.0"), entry("3.0.0")}
		merged := MergeEntries(fresh, nil, 2)
		assertVersions(t, merged, []string{"3.0.0", "2.0.0"})
	})

	t.Run("prerelease sorts below release", func(t *testing.T) {
		merged := MergeEntries(
			[]IndexEntry{entry("1.0.0")},
			[]IndexEntry{entry("1.0.0-rc.1")},
			0,
		)
		assertVersions(t, merged, []string{"1.0.0", "1.0.0-rc.1"})
	})
}

func TestIndexMergeInto(t *testing.T) {
	idx := NewIndex()

	idx.MergeInto("redis", []IndexEntry{entry("1.0.0")}, 0)
	idx.MergeInto("redis", []IndexEntry{entry("2.0.0")}, 0)

	assertVersions(t, idx.Entries["redis"], []string{"2.0.0", "1.0.0"})

	if !idx.HasVersion("redis", "1.0.0") {
		t.Error("expected HasVersion to find 1.0.0")
	}
	if idx.HasVersion("redis", "3.0.0") {
		t.Error("did not expect HasVersion to find 3.0.0")
	}
	if idx.HasVersion("nginx", "1.0.0") {
		t.Error("did not expect HasVersion to find entries for unknown chart")
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"2.0.0", "1.0.0", 1},
		{"1.0.0", "2.0.0", -1},
		{"1.0.0", "1.0.0", 0},
		{"0.10.0", "0.9.0", 1},
		{"1.0.0", "1.0.0-rc.1", 1},
		{"v1.2.0", "1.1.0", 1}, // tolerant parsing strips the v prefix
		{"1.0.0", "garbage", 1},
		{"garbage", "1.0.0", -1},
		{"b", "a", 1},
	}

	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.expected {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}
