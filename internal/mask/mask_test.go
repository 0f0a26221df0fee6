package mask

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h-yaginuma0326/Qscan/internal/common"
	"github.com/h-yaginuma0326/Qscan/internal/region"
)

// testImage builds a PNG with a deterministic per-pixel pattern so masked and
// unmasked areas are easy to tell apart.
func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * ((x + y) % 2)), // checkerboard: blur cannot preserve it
				G: uint8(x % 256),
				B: uint8(y % 256),
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestSolidMaskDestroysRegionPixels(t *testing.T) {
	src := testImage(t, 200, 150)
	regions := []region.Region{
		{ID: "a", X: 20, Y: 30, Width: 60, Height: 40},
		{ID: "b", X: 120, Y: 10, Width: 50, Height: 50},
	}

	result, err := Apply(src, regions, ModeSolid)
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.ContentType)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 150, result.Height)

	original := decodePNG(t, src)
	masked := decodePNG(t, result.Data)
	require.Equal(t, original.Bounds(), masked.Bounds())

	inside := func(x, y int) bool {
		for _, r := range regions {
			if float64(x) >= r.X && float64(x) < r.X+r.Width &&
				float64(y) >= r.Y && float64(y) < r.Y+r.Height {
				return true
			}
		}
		return false
	}

	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			mr, mg, mb, _ := masked.At(x, y).RGBA()
			if inside(x, y) {
				assert.Zero(t, mr, "masked pixel (%d,%d) must be black", x, y)
				assert.Zero(t, mg)
				assert.Zero(t, mb)
			} else {
				or, og, ob, _ := original.At(x, y).RGBA()
				assert.Equal(t, or, mr, "pixel (%d,%d) outside all regions must be unchanged", x, y)
				assert.Equal(t, og, mg)
				assert.Equal(t, ob, mb)
			}
		}
	}
}

func TestSolidMaskIdempotentInEffect(t *testing.T) {
	src := testImage(t, 100, 100)
	regions := []region.Region{{ID: "a", X: 10, Y: 10, Width: 40, Height: 40}}

	first, err := Apply(src, regions, ModeSolid)
	require.NoError(t, err)
	second, err := Apply(first.Data, regions, ModeSolid)
	require.NoError(t, err)

	img := decodePNG(t, second.Data)
	for y := 10; y < 50; y++ {
		for x := 10; x < 50; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			assert.Zero(t, r+g+b, "re-masked pixel (%d,%d) still fully redacted", x, y)
		}
	}
}

func TestBlurMaskAltersOnlyRegion(t *testing.T) {
	src := testImage(t, 120, 120)
	regions := []region.Region{{ID: "a", X: 30, Y: 30, Width: 60, Height: 60}}

	result, err := Apply(src, regions, ModeBlur)
	require.NoError(t, err)
	assert.Equal(t, 120, result.Width)
	assert.Equal(t, 120, result.Height)

	original := decodePNG(t, src)
	masked := decodePNG(t, result.Data)

	// A pixel well inside the region should no longer carry its original
	// high-frequency value.
	changed := 0
	for y := 40; y < 80; y++ {
		for x := 40; x < 80; x++ {
			or, og, ob, _ := original.At(x, y).RGBA()
			mr, mg, mb, _ := masked.At(x, y).RGBA()
			if or != mr || og != mg || ob != mb {
				changed++
			}
		}
	}
	assert.Greater(t, changed, 1000, "blur must disturb the region interior")

	// Pixels away from the region are untouched.
	for _, p := range []image.Point{{X: 5, Y: 5}, {X: 110, Y: 10}, {X: 10, Y: 110}, {X: 115, Y: 115}} {
		or, og, ob, _ := original.At(p.X, p.Y).RGBA()
		mr, mg, mb, _ := masked.At(p.X, p.Y).RGBA()
		assert.Equal(t, or, mr, "pixel %v outside region must be unchanged", p)
		assert.Equal(t, og, mg)
		assert.Equal(t, ob, mb)
	}
}

func TestRegionsClampedToBounds(t *testing.T) {
	src := testImage(t, 80, 80)
	regions := []region.Region{
		{ID: "overhang", X: 60, Y: 60, Width: 100, Height: 100},
		{ID: "outside", X: 500, Y: 500, Width: 50, Height: 50},
	}

	result, err := Apply(src, regions, ModeSolid)
	require.NoError(t, err)

	masked := decodePNG(t, result.Data)
	assert.Equal(t, 80, masked.Bounds().Dx())
	assert.Equal(t, 80, masked.Bounds().Dy())

	r, g, b, _ := masked.At(70, 70).RGBA()
	assert.Zero(t, r+g+b, "overhanging region still masks its in-bounds part")
}

func TestUndecodableImageFailsCleanly(t *testing.T) {
	result, err := Apply([]byte("definitely not an image"), nil, ModeSolid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrImageLoad))
	assert.Nil(t, result, "no partial artifact on failure")
}

func TestEmptyRegionSetIsACopy(t *testing.T) {
	src := testImage(t, 50, 50)
	result, err := Apply(src, nil, ModeSolid)
	require.NoError(t, err)

	original := decodePNG(t, src)
	masked := decodePNG(t, result.Data)
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			or, og, ob, _ := original.At(x, y).RGBA()
			mr, mg, mb, _ := masked.At(x, y).RGBA()
			require.Equal(t, or, mr)
			require.Equal(t, og, mg)
			require.Equal(t, ob, mb)
		}
	}
}
