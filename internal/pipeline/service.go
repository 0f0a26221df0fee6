package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/h-yaginuma0326/Qscan/constants"
	"github.com/h-yaginuma0326/Qscan/internal/common"
	"github.com/h-yaginuma0326/Qscan/internal/diaglog"
	"github.com/h-yaginuma0326/Qscan/internal/editor"
	"github.com/h-yaginuma0326/Qscan/internal/imgcodec"
	"github.com/h-yaginuma0326/Qscan/internal/mask"
	"github.com/h-yaginuma0326/Qscan/internal/region"
	"github.com/h-yaginuma0326/Qscan/internal/template"
)

// Analyzer is the remote document-analysis dependency.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType string) (map[string]any, error)
}

// Service is the authoritative owner of the session's artifact bundle. All
// mutation goes through it, each setter atomic with its invalidation.
type Service struct {
	mu  sync.Mutex
	art Artifacts

	// maskGen increments whenever the masked image slot is rewritten or
	// cleared. In-flight analyses carry the generation they were submitted
	// for; completions for an older generation are dropped silently.
	maskGen uint64

	analyzeSem *semaphore.Weighted

	detector  *region.Detector
	analyzer  Analyzer
	generator template.Generator
	diag      *diaglog.Log
	logger    *slog.Logger
}

func NewService(detector *region.Detector, analyzer Analyzer, generator template.Generator, diag *diaglog.Log, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		art:        Artifacts{AnalysisStatus: constants.AnalysisIdle},
		analyzeSem: semaphore.NewWeighted(1),
		detector:   detector,
		analyzer:   analyzer,
		generator:  generator,
		diag:       diag,
		logger:     logger,
	}
}

// Stage returns the currently derived pipeline stage.
func (s *Service) Stage() constants.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeriveStage(&s.art)
}

// Snapshot returns a copy of the artifact bundle for rendering or persisting.
// Regions, image bytes and the top level of the analysis tree are copied so
// callers cannot mutate the authoritative set; values nested inside the
// analysis tree are shared and must be treated as read-only.
func (s *Service) Snapshot() Artifacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Artifacts {
	copied := s.art
	copied.Regions = append([]region.Region(nil), s.art.Regions...)
	copied.SourceImage = append([]byte(nil), s.art.SourceImage...)
	copied.MaskedImage = append([]byte(nil), s.art.MaskedImage...)
	if s.art.AnalysisResult != nil {
		result := make(map[string]any, len(s.art.AnalysisResult))
		for k, v := range s.art.AnalysisResult {
			result[k] = v
		}
		copied.AnalysisResult = result
	}
	return copied
}

// Restore replaces the whole bundle, e.g. from the session repository after a
// restart. The stage re-derives from artifact presence.
func (s *Service) Restore(a Artifacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.AnalysisStatus == "" {
		a.AnalysisStatus = constants.AnalysisIdle
	}
	// An analysis that was mid-flight when the process died is not resumable.
	if a.AnalysisStatus == constants.AnalysisLoading {
		a.AnalysisStatus = constants.AnalysisIdle
	}
	s.art = a
	s.maskGen++
	s.logger.Info("pipeline.restore", "stage", DeriveStage(&s.art))
}

// Acquire starts a new session from image bytes with known natural
// dimensions. Every downstream artifact is invalidated.
func (s *Service) Acquire(data []byte, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.art.setSource(data, width, height)
	s.maskGen++
	s.logger.Info("pipeline.acquire", "width", width, "height", height, "bytes", len(data))
}

// AcquireBytes probes the image for its dimensions first; an undecodable
// image fails with the image-load error kind and leaves the session untouched.
func (s *Service) AcquireBytes(data []byte) error {
	width, height, err := imgcodec.Probe(data)
	if err != nil {
		s.logger.Error("pipeline.acquire.unreadable", "error", err)
		return err
	}
	s.Acquire(data, width, height)
	return nil
}

// DetectRegions replaces the RegionSet with the auto-detector's suggestions.
func (s *Service) DetectRegions(ctx context.Context) error {
	s.mu.Lock()
	width, height := s.art.SourceWidth, s.art.SourceHeight
	stage := DeriveStage(&s.art)
	s.mu.Unlock()

	if stage == constants.StageEmpty {
		return common.NewAppError("NO_SOURCE", "no source image acquired", nil)
	}
	detected, err := s.detector.Detect(ctx, width, height)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.art.Regions = detected
	s.logger.Info("pipeline.detect.ok", "regions", len(detected))
	return nil
}

// Regions implements editor.Store.
func (s *Service) Regions() []region.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]region.Region(nil), s.art.Regions...)
}

// AddRegion implements editor.Store. Zero-area regions never enter the set,
// whatever the caller.
func (s *Service) AddRegion(r region.Region) {
	if r.Width <= 0 || r.Height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.regionsMutableLocked() {
		return
	}
	s.art.Regions = append(s.art.Regions, r)
}

// UpdateRegion implements editor.Store.
func (s *Service) UpdateRegion(id string, patch editor.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.regionsMutableLocked() {
		return
	}
	for i := range s.art.Regions {
		if s.art.Regions[i].ID != id {
			continue
		}
		if patch.X != nil {
			s.art.Regions[i].X = *patch.X
		}
		if patch.Y != nil {
			s.art.Regions[i].Y = *patch.Y
		}
		if patch.Width != nil && *patch.Width > 0 {
			s.art.Regions[i].Width = *patch.Width
		}
		if patch.Height != nil && *patch.Height > 0 {
			s.art.Regions[i].Height = *patch.Height
		}
		return
	}
}

// RemoveRegion implements editor.Store.
func (s *Service) RemoveRegion(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.regionsMutableLocked() {
		return
	}
	kept := s.art.Regions[:0]
	for _, r := range s.art.Regions {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.art.Regions = kept
}

// Regions may only change before analysis has consumed the masked image.
func (s *Service) regionsMutableLocked() bool {
	switch DeriveStage(&s.art) {
	case constants.StageAcquired, constants.StageMasked:
		return s.art.AnalysisStatus != constants.AnalysisLoading
	default:
		return false
	}
}

// ApplyMask produces the masked image from the source and the current
// RegionSet. Either the whole transform succeeds or no artifact is written.
func (s *Service) ApplyMask(ctx context.Context, mode mask.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	src := s.art.SourceImage
	regions := append([]region.Region(nil), s.art.Regions...)
	s.mu.Unlock()

	if src == nil {
		return common.NewAppError("NO_SOURCE", "no source image acquired", nil)
	}

	result, err := mask.Apply(src, regions, mode)
	if err != nil {
		s.logger.Error("pipeline.mask.failed", "mode", mode, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.art.setMasked(result.Data, result.ContentType)
	s.maskGen++
	s.logger.Info("pipeline.mask.ok",
		"mode", mode,
		"regions", len(regions),
		"bytes", len(result.Data),
		"generation", s.maskGen,
	)
	return nil
}

// Analyze submits the masked image and stores the result, unless a newer
// masked image has superseded the one this call targeted, in which case the
// completion is dropped silently. Only one analysis runs at a time.
func (s *Service) Analyze(ctx context.Context) error {
	s.mu.Lock()
	img := s.art.MaskedImage
	contentType := s.art.MaskedContentType
	gen := s.maskGen
	s.mu.Unlock()

	if img == nil {
		return common.NewAppError("NO_MASKED_IMAGE", "no masked image to analyze", nil)
	}

	if !s.analyzeSem.TryAcquire(1) {
		return common.NewAppError("ANALYSIS_IN_FLIGHT", "an analysis is already running", nil)
	}
	defer s.analyzeSem.Release(1)

	s.mu.Lock()
	s.art.AnalysisStatus = constants.AnalysisLoading
	s.art.AnalysisError = ""
	s.mu.Unlock()

	result, err := s.analyzer.Analyze(ctx, img, contentType)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.maskGen {
		// The masked image changed while we were in flight; this result
		// belongs to a dead generation. Make sure the loading status dies
		// with it so region edits are not frozen.
		if s.art.AnalysisStatus == constants.AnalysisLoading {
			s.art.AnalysisStatus = constants.AnalysisIdle
		}
		s.logger.Debug("pipeline.analyze.stale_dropped", "submitted_gen", gen, "current_gen", s.maskGen)
		return nil
	}

	if err != nil {
		s.art.AnalysisStatus = constants.AnalysisError
		s.art.AnalysisError = err.Error()
		s.diagAppend("document_analysis_error", map[string]any{"error": err.Error()})
		s.logger.Error("pipeline.analyze.failed", "error", err)
		return err
	}

	s.art.setAnalysis(result)
	s.diagAppend("azure_document_analysis", map[string]any{"keys": len(result)})
	s.logger.Info("pipeline.analyze.ok", "generation", gen)
	return nil
}

// GenerateTemplate turns the analysis tree into the note template baseline.
func (s *Service) GenerateTemplate(ctx context.Context) error {
	s.mu.Lock()
	analysis := s.art.AnalysisResult
	s.mu.Unlock()

	if analysis == nil {
		return common.NewAppError("NO_ANALYSIS", "no analysis result to format", nil)
	}

	text, err := s.generator.Generate(ctx, analysis)
	if err != nil {
		s.diagAppend("llm_template_error", map[string]any{"error": err.Error()})
		s.logger.Error("pipeline.generate.failed", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.art.AnalysisResult == nil {
		// Analysis was invalidated while generating; drop the orphan text.
		s.logger.Debug("pipeline.generate.stale_dropped")
		return nil
	}
	s.art.setGenerated(text)
	s.diagAppend("llm_template_generation", map[string]any{"chars": len(text)})
	s.logger.Info("pipeline.generate.ok", "chars", len(text))
	return nil
}

// SetEditedTemplate stores the user's edits. The generated baseline is
// untouched; regeneration is the only way to replace it.
func (s *Service) SetEditedTemplate(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.art.GeneratedTemplate == "" {
		return common.NewAppError("NO_TEMPLATE", "no generated template to edit", nil)
	}
	s.art.EditedTemplate = text
	return nil
}

// ResetFrom returns the session to an earlier stage, clearing everything
// produced after it.
func (s *Service) ResetFrom(stage constants.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.art.resetFrom(stage)
	if stage.Order() < constants.StageMasked.Order() {
		s.maskGen++
	}
	s.logger.Info("pipeline.reset_from", "stage", stage, "derived", DeriveStage(&s.art))
}

// Reset destroys the whole session bundle.
func (s *Service) Reset() {
	s.ResetFrom(constants.StageEmpty)
}

func (s *Service) diagAppend(kind string, data map[string]any) {
	if s.diag == nil {
		return
	}
	if err := s.diag.Append(kind, data); err != nil {
		s.logger.Warn("pipeline.diaglog_append_failed", "error", err)
	}
}
