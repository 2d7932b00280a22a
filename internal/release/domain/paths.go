package domain

import "strings"

// MatchCandidates maps changed file paths to candidate chart directories.
// A path matches a type when it starts with that type's root and has at
// least one further segment below the chart directory, i.e.
// {root}/{chartName}/... A path equal to the root itself never matches.
// Many files under the same chart directory collapse to one candidate.
func MatchCandidates(changedPaths []string, typeRoots map[ChartType]string) []Candidate {
	seen := make(map[Candidate]struct{})
	var candidates []Candidate
	for _, path := range changedPaths {
		for chartType, root := range typeRoots {
			dir, ok := chartDir(path, root)
			if !ok {
				continue
			}
			c := Candidate{Type: chartType, Dir: dir}
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// chartDir extracts {root}/{chartName} from a path under root, requiring
// a file segment below the chart directory.
func chartDir(path, root string) (string, bool) {
	prefix := root + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return root + "/" + parts[0], true
}
