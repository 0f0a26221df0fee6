package editor

import (
	"image"
	"image/color"
	stddraw "image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/h-yaginuma0326/Qscan/internal/region"
)

var (
	borderColor   = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff} // red
	selectedColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff} // blue
	fillColor     = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0x4d} // translucent red
)

// Render projects the current RegionSet onto a display-scaled copy of the
// source image: borders around every region, a thicker border on the
// selection, and in read-only mode a translucent fill showing exactly what
// will be redacted. It is a pure function of its inputs and holds no state.
func Render(src image.Image, regions []region.Region, selectedID string, scale float64, readOnly bool) *image.RGBA {
	b := src.Bounds()
	dw := int(float64(b.Dx()) * scale)
	dh := int(float64(b.Dy()) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)

	for _, r := range regions {
		rect := displayRect(r, scale)
		if readOnly {
			stddraw.Draw(dst, rect, &image.Uniform{C: fillColor}, image.Point{}, stddraw.Over)
		}
		stroke := borderColor
		width := 2
		if r.ID == selectedID {
			stroke = selectedColor
			width = 3
		}
		drawBorder(dst, rect, stroke, width)
	}
	return dst
}

func displayRect(r region.Region, scale float64) image.Rectangle {
	return image.Rect(
		int(r.X*scale),
		int(r.Y*scale),
		int((r.X+r.Width)*scale),
		int((r.Y+r.Height)*scale),
	)
}

func drawBorder(dst *image.RGBA, rect image.Rectangle, c color.RGBA, width int) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for i := 0; i < width; i++ {
		top := image.Rect(rect.Min.X, rect.Min.Y+i, rect.Max.X, rect.Min.Y+i+1)
		bottom := image.Rect(rect.Min.X, rect.Max.Y-i-1, rect.Max.X, rect.Max.Y-i)
		left := image.Rect(rect.Min.X+i, rect.Min.Y, rect.Min.X+i+1, rect.Max.Y)
		right := image.Rect(rect.Max.X-i-1, rect.Min.Y, rect.Max.X-i, rect.Max.Y)
		for _, edge := range []image.Rectangle{top, bottom, left, right} {
			stddraw.Draw(dst, edge.Intersect(dst.Bounds()), &image.Uniform{C: c}, image.Point{}, stddraw.Src)
		}
	}
}
