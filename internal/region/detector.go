package region

import (
	"context"
	"log/slog"

	"github.com/h-yaginuma0326/Qscan/internal/imgcodec"
)

// band is a candidate area expressed as fractions of the image dimensions so
// the suggestion scales with resolution.
type band struct {
	label      string
	x, y, w, h float64
}

// Intake forms put the name top-left, an insurance or patient identifier
// top-right, and the address on the line below. A real detector would find
// these from the pixels; until then these bands are fixed suggestions.
var defaultBands = []band{
	{label: "name", x: 0.10, y: 0.05, w: 0.40, h: 0.05},
	{label: "identifier", x: 0.60, y: 0.05, w: 0.30, h: 0.05},
	{label: "address", x: 0.10, y: 0.12, w: 0.60, h: 0.05},
}

// Detector proposes initial mask regions from image geometry. Its output is
// only ever a suggestion; every proposed region stays editable and removable.
type Detector struct {
	logger *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect returns heuristically placed candidate regions for an image of the
// given natural dimensions. Geometry is deterministic; only the ids are fresh.
func (d *Detector) Detect(ctx context.Context, width, height int) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := float64(width)
	h := float64(height)
	regions := make([]Region, 0, len(defaultBands))
	for _, b := range defaultBands {
		regions = append(regions, Region{
			ID:     NewID(),
			X:      b.x * w,
			Y:      b.y * h,
			Width:  b.w * w,
			Height: b.h * h,
		})
	}

	d.logger.Debug("detector.ok", "width", width, "height", height, "regions", len(regions))
	return regions, nil
}

// DetectBytes probes the image for its dimensions and then proposes regions.
// An undecodable image surfaces as common.ErrImageLoad.
func (d *Detector) DetectBytes(ctx context.Context, data []byte) ([]Region, error) {
	width, height, err := imgcodec.Probe(data)
	if err != nil {
		d.logger.Error("detector.probe_failed", "error", err)
		return nil, err
	}
	return d.Detect(ctx, width, height)
}
