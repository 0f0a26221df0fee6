// Package mask applies the pixel-level redaction that must happen before any
// image byte leaves the device.
package mask

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/h-yaginuma0326/Qscan/internal/common"
	"github.com/h-yaginuma0326/Qscan/internal/imgcodec"
	"github.com/h-yaginuma0326/Qscan/internal/region"
)

// Mode selects how region pixels are destroyed. One mode applies uniformly to
// every region in an invocation.
type Mode string

const (
	// ModeSolid overwrites region pixels with an opaque fill. Irreversible;
	// nothing of the covered pixels survives in the output.
	ModeSolid Mode = "solid"
	// ModeBlur replaces region pixels with a strong blur of themselves (not
	// of surrounding context). Approximate redaction only; callers needing a
	// compliance-grade guarantee should use ModeSolid.
	ModeBlur Mode = "blur"
)

var fill = color.NRGBA{A: 0xff} // opaque black

// Result is the redacted image artifact.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Apply redacts every region of src and returns a newly encoded image with
// the same pixel dimensions. It either succeeds completely or returns nothing:
// no partially masked image is ever produced.
func Apply(src []byte, regions []region.Region, mode Mode) (*Result, error) {
	img, format, err := imgcodec.Decode(src)
	if err != nil {
		return nil, err
	}

	out := imaging.Clone(img)
	bounds := out.Bounds()

	for _, r := range regions {
		rect := clampRect(r, bounds)
		if rect.Empty() {
			continue
		}
		switch mode {
		case ModeBlur:
			crop := imaging.Crop(out, rect)
			blurred := imaging.Blur(crop, blurSigma(rect))
			out = imaging.Paste(out, blurred, rect.Min)
		default:
			draw.Draw(out, rect, &image.Uniform{C: fill}, image.Point{}, draw.Src)
		}
	}

	// WebP sources re-encode as JPEG; see imgcodec.Encode.
	encFormat := format
	if format == "webp" {
		encFormat = "jpeg"
	}
	data, err := imgcodec.Encode(out, encFormat)
	if err != nil {
		return nil, common.WrapError(err, "encode masked image")
	}
	return &Result{
		Data:        data,
		ContentType: imgcodec.ContentType(encFormat),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func clampRect(r region.Region, bounds image.Rectangle) image.Rectangle {
	rect := image.Rect(int(r.X), int(r.Y), int(r.X+r.Width), int(r.Y+r.Height))
	return rect.Intersect(bounds)
}

// blurSigma scales the blur with the region so small regions are still
// unreadable. Floored at 10 to keep even tiny rectangles illegible.
func blurSigma(rect image.Rectangle) float64 {
	longer := rect.Dx()
	if rect.Dy() > longer {
		longer = rect.Dy()
	}
	sigma := float64(longer) / 8
	if sigma < 10 {
		sigma = 10
	}
	return sigma
}
