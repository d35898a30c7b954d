package poller

// StageCount is the number of presentation stages a report job moves
// through, the last one being completion.
const StageCount = 7

// stageThresholds are the inclusive upper bounds for stages 0..4.
// Progress below 1.0 past the last threshold is stage 5; 1.0 and above
// is stage 6.
var stageThresholds = [...]float64{0.2, 0.3, 0.5, 0.7, 0.9}

var stageLabels = [StageCount]string{
	"Planning report structure",
	"Generating search queries",
	"Searching for relevant information",
	"Analyzing search results",
	"Writing report sections",
	"Reviewing and refining content",
	"Finalizing report",
}

// StageForProgress maps backend progress in [0,1] to a 0-based stage
// index. Boundary values belong to the lower stage.
func StageForProgress(progress float64) int {
	for i, threshold := range stageThresholds {
		if progress <= threshold {
			return i
		}
	}
	if progress < 1.0 {
		return 5
	}
	return 6
}

// StageLabel returns the display label for a stage index, clamping
// out-of-range values.
func StageLabel(stage int) string {
	if stage < 0 {
		stage = 0
	}
	if stage >= StageCount {
		stage = StageCount - 1
	}
	return stageLabels[stage]
}
