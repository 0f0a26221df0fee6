package constants

// Stage is the pipeline position for a session. It is always derived from
// which artifacts are present, never stored on its own.
type Stage string

// Ordered pipeline stages.
const (
	StageEmpty     Stage = "EMPTY"     // no source image yet
	StageAcquired  Stage = "ACQUIRED"  // source image present
	StageMasked    Stage = "MASKED"    // masked image produced
	StageAnalyzed  Stage = "ANALYZED"  // remote analysis result present
	StageTemplated Stage = "TEMPLATED" // note template generated
)

// Order returns the stage's position in the pipeline, Empty being 0.
func (s Stage) Order() int {
	switch s {
	case StageAcquired:
		return 1
	case StageMasked:
		return 2
	case StageAnalyzed:
		return 3
	case StageTemplated:
		return 4
	default:
		return 0
	}
}

// AnalysisStatus is the sub-status of the long-running analysis transition.
type AnalysisStatus string

// Stable values (persisted with the session).
const (
	AnalysisIdle    AnalysisStatus = "idle"
	AnalysisLoading AnalysisStatus = "loading"
	AnalysisSuccess AnalysisStatus = "success"
	AnalysisError   AnalysisStatus = "error"
)
