// Package pipeline owns the per-session artifact bundle and the ordered
// stages derived from it. Every artifact setter enforces the downstream-only
// invalidation rule: nothing later in the pipeline may ever reference a stale
// earlier artifact.
package pipeline

import (
	"time"

	"github.com/h-yaginuma0326/Qscan/constants"
	"github.com/h-yaginuma0326/Qscan/internal/region"
)

// Artifacts is the full state of one intake session. It is a plain
// serializable bundle; locking and generation tagging live in Service.
type Artifacts struct {
	SourceImage  []byte    `json:"source_image,omitempty"`
	SourceWidth  int       `json:"source_width,omitempty"`
	SourceHeight int       `json:"source_height,omitempty"`
	AcquiredAt   time.Time `json:"acquired_at,omitempty"`

	Regions []region.Region `json:"regions,omitempty"`

	MaskedImage       []byte `json:"masked_image,omitempty"`
	MaskedContentType string `json:"masked_content_type,omitempty"`

	AnalysisResult map[string]any           `json:"analysis_result,omitempty"`
	AnalysisStatus constants.AnalysisStatus `json:"analysis_status,omitempty"`
	AnalysisError  string                   `json:"analysis_error,omitempty"`

	GeneratedTemplate string `json:"generated_template,omitempty"`
	EditedTemplate    string `json:"edited_template,omitempty"`
}

// DeriveStage computes the pipeline stage from which artifacts are present.
// The stage is never stored separately, so the two cannot disagree.
func DeriveStage(a *Artifacts) constants.Stage {
	switch {
	case a == nil || a.SourceImage == nil:
		return constants.StageEmpty
	case a.GeneratedTemplate != "":
		return constants.StageTemplated
	case a.AnalysisResult != nil:
		return constants.StageAnalyzed
	case a.MaskedImage != nil:
		return constants.StageMasked
	default:
		return constants.StageAcquired
	}
}

// setSource replaces the source image and clears every downstream artifact.
func (a *Artifacts) setSource(data []byte, width, height int) {
	a.SourceImage = data
	a.SourceWidth = width
	a.SourceHeight = height
	a.AcquiredAt = time.Now().UTC()
	a.Regions = nil
	a.clearMasked()
}

// setMasked replaces the masked image. Regions stay; everything derived from
// the old masked image is dropped.
func (a *Artifacts) setMasked(data []byte, contentType string) {
	a.MaskedImage = data
	a.MaskedContentType = contentType
	a.clearAnalysis()
}

// setAnalysis replaces the analysis result, invalidating the templates.
func (a *Artifacts) setAnalysis(result map[string]any) {
	a.AnalysisResult = result
	a.AnalysisStatus = constants.AnalysisSuccess
	a.AnalysisError = ""
	a.clearTemplates()
}

// setGenerated stores a fresh template; the edited copy starts as the
// generated baseline.
func (a *Artifacts) setGenerated(text string) {
	a.GeneratedTemplate = text
	a.EditedTemplate = text
}

func (a *Artifacts) clearMasked() {
	a.MaskedImage = nil
	a.MaskedContentType = ""
	a.clearAnalysis()
}

func (a *Artifacts) clearAnalysis() {
	a.AnalysisResult = nil
	a.AnalysisStatus = constants.AnalysisIdle
	a.AnalysisError = ""
	a.clearTemplates()
}

func (a *Artifacts) clearTemplates() {
	a.GeneratedTemplate = ""
	a.EditedTemplate = ""
}

// resetFrom returns the bundle to the named stage, clearing everything
// produced after it, exactly as if the stage's artifact had been rewritten.
func (a *Artifacts) resetFrom(stage constants.Stage) {
	switch stage {
	case constants.StageEmpty:
		*a = Artifacts{AnalysisStatus: constants.AnalysisIdle}
	case constants.StageAcquired:
		a.Regions = nil
		a.clearMasked()
	case constants.StageMasked:
		a.clearAnalysis()
	case constants.StageAnalyzed:
		a.clearTemplates()
	case constants.StageTemplated:
		// nothing beyond the template to clear
	}
}
