package editor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h-yaginuma0326/Qscan/internal/region"
)

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}
	return img
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestRenderReadOnlyFillsRegions(t *testing.T) {
	src := whiteImage(100, 100)
	regions := []region.Region{{ID: "a", X: 20, Y: 20, Width: 40, Height: 40}}

	dst := Render(src, regions, "", 1.0, true)
	require.Equal(t, 100, dst.Bounds().Dx())
	require.Equal(t, 100, dst.Bounds().Dy())

	// Interior pixel carries the translucent red tint over the white base.
	inside := rgbaAt(dst, 40, 40)
	assert.NotEqual(t, uint8(0xff), inside.G, "region interior must be tinted in read-only mode")
	assert.Greater(t, inside.R, inside.B, "tint is red")

	// Pixels outside every region stay white.
	outside := rgbaAt(dst, 80, 80)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, outside)
}

func TestRenderEditableDrawsBordersOnly(t *testing.T) {
	src := whiteImage(100, 100)
	regions := []region.Region{{ID: "a", X: 20, Y: 20, Width: 40, Height: 40}}

	dst := Render(src, regions, "", 1.0, false)

	// Interior untouched: the editable view never obscures the pixels.
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, rgbaAt(dst, 40, 40))

	// Border stroked in the region color.
	assert.Equal(t, borderColor, rgbaAt(dst, 20, 40), "left edge")
	assert.Equal(t, borderColor, rgbaAt(dst, 40, 20), "top edge")
	assert.Equal(t, borderColor, rgbaAt(dst, 59, 40), "right edge, inner stroke row")
}

func TestRenderSelectedRegionThickerBorder(t *testing.T) {
	src := whiteImage(100, 100)
	regions := []region.Region{
		{ID: "a", X: 20, Y: 20, Width: 40, Height: 40},
		{ID: "b", X: 70, Y: 70, Width: 20, Height: 20},
	}

	dst := Render(src, regions, "a", 1.0, false)

	assert.Equal(t, selectedColor, rgbaAt(dst, 20, 40))
	assert.Equal(t, selectedColor, rgbaAt(dst, 22, 40), "selection stroke is three pixels wide")
	assert.Equal(t, borderColor, rgbaAt(dst, 70, 80), "unselected region keeps the plain border")
}

func TestRenderAppliesDisplayScale(t *testing.T) {
	src := whiteImage(100, 100)
	regions := []region.Region{{ID: "a", X: 20, Y: 20, Width: 40, Height: 40}}

	dst := Render(src, regions, "", 0.5, false)
	require.Equal(t, 50, dst.Bounds().Dx())
	require.Equal(t, 50, dst.Bounds().Dy())

	// The region projects to display coordinates.
	assert.Equal(t, borderColor, rgbaAt(dst, 10, 20))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, rgbaAt(dst, 45, 45))
}
