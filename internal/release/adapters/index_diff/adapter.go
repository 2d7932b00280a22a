// Package indexdiff renders a unified diff between two index states,
// used to preview what a merge would change in dry-run mode.
package indexdiff

import (
	"fmt"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/chart-herald/internal/release/domain"
)

var zeroTime time.Time

// Adapter implements ports.IndexDiffPort.
type Adapter struct{}

// New creates an index diff adapter.
func New() *Adapter {
	return &Adapter{}
}

// Preview returns a unified diff of the YAML serialization of the two
// indexes. A nil index diffs as empty (first release). An empty string
// means the merge would be a no-op.
func (a *Adapter) Preview(before, after *domain.Index) (string, error) {
	beforeYAML, err := marshalStable(before)
	if err != nil {
		return "", fmt.Errorf("serializing current index: %w", err)
	}
	afterYAML, err := marshalStable(after)
	if err != nil {
		return "", fmt.Errorf("serializing merged index: %w", err)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(beforeYAML),
		B:        difflib.SplitLines(afterYAML),
		FromFile: "index.yaml (current)",
		ToFile:   "index.yaml (merged)",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("computing index diff: %w", err)
	}
	return diff, nil
}

// marshalStable serializes an index with the volatile generated
// timestamp zeroed, so the diff only shows entry changes.
func marshalStable(idx *domain.Index) (string, error) {
	if idx == nil {
		return "", nil
	}
	stable := *idx
	stable.Generated = zeroTime
	raw, err := yaml.Marshal(&stable)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
