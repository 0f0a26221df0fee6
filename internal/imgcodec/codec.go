// Package imgcodec decodes and encodes the raster formats the pipeline
// accepts: PNG, JPEG and WebP. All unreadable-image failures originate here.
package imgcodec

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"

	"github.com/h-yaginuma0326/Qscan/internal/common"
)

func init() {
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// Decode decodes image bytes and reports the detected format ("png", "jpeg"
// or "webp").
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", common.WrapError(common.ErrImageLoad, err.Error())
	}
	return img, format, nil
}

// Probe returns the natural pixel dimensions without a full decode.
func Probe(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, common.WrapError(common.ErrImageLoad, err.Error())
	}
	return cfg.Width, cfg.Height, nil
}

// Encode re-encodes an image in the given source format. WebP sources come
// back as JPEG: the masked copy is an upload artifact, not a round-trip of
// the original container.
func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, common.WrapError(err, "encode png")
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
			return nil, common.WrapError(err, "encode jpeg")
		}
	}
	return buf.Bytes(), nil
}

// ContentType maps a detected format to the MIME type sent to the analysis
// service.
func ContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
