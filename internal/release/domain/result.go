package domain

// Stage is the terminal state a chart reached in the release pipeline.
type Stage int

const (
	StageFailed Stage = iota
	StageSkippedExisting
	StageReleased
)

// String implements the Stringer interface.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

var stageNames = [...]string{
	StageFailed:          "Failed",
	StageSkippedExisting: "SkippedExisting",
	StageReleased:        "Released",
}

// ChartResult records the outcome of one chart's pipeline run.
type ChartResult struct {
	Chart   ChartRef
	Stage   Stage
	Tag     string
	Version string
	Err     error // set when Stage == StageFailed
}

// Summary aggregates a batch of chart results.
type Summary struct {
	Processed int
	Released  int
	Skipped   int
	Failed    int
}

// Summarize counts results by terminal stage.
func Summarize(results []ChartResult) Summary {
	s := Summary{Processed: len(results)}
	for _, r := range results {
		switch r.Stage {
		case StageReleased:
			s.Released++
		case StageSkippedExisting:
			s.Skipped++
		case StageFailed:
			s.Failed++
		}
	}
	return s
}
