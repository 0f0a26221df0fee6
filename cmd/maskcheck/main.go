// maskcheck applies the redaction offline and writes the masked image so the
// result can be inspected before anything is ever submitted. It never opens a
// network connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/h-yaginuma0326/Qscan/internal/editor"
	"github.com/h-yaginuma0326/Qscan/internal/imgcodec"
	"github.com/h-yaginuma0326/Qscan/internal/mask"
	"github.com/h-yaginuma0326/Qscan/internal/region"
)

func main() {
	in := flag.String("in", "", "input image")
	out := flag.String("out", "", "output path for the masked image")
	mode := flag.String("mode", string(mask.ModeSolid), "masking mode: solid or blur")
	preview := flag.String("preview", "", "also write a region-overlay preview PNG here")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: maskcheck -in scan.jpg -out masked.jpg [-mode solid|blur]")
		os.Exit(2)
	}

	if err := run(*in, *out, *preview, mask.Mode(*mode), logger); err != nil {
		logger.Error("maskcheck failed", "error", err)
		os.Exit(1)
	}
}

func run(in, out, preview string, mode mask.Mode, logger *slog.Logger) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	detector := region.NewDetector(logger)
	regions, err := detector.DetectBytes(context.Background(), data)
	if err != nil {
		return err
	}

	if preview != "" {
		if err := writePreview(preview, data, regions); err != nil {
			return err
		}
		logger.Info("preview written", "path", preview, "regions", len(regions))
	}

	result, err := mask.Apply(data, regions, mode)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, result.Data, 0o644); err != nil {
		return fmt.Errorf("write masked image: %w", err)
	}

	logger.Info("masked image written",
		"path", out,
		"regions", len(regions),
		"mode", mode,
		"width", result.Width,
		"height", result.Height,
	)
	return nil
}

// writePreview renders the overlay the way the session view does: each region
// filled semi-transparently so what will be redacted is visible at a glance.
func writePreview(path string, data []byte, regions []region.Region) error {
	img, _, err := imgcodec.Decode(data)
	if err != nil {
		return err
	}
	overlay := editor.Render(img, regions, "", 1.0, true)
	encoded, err := imgcodec.Encode(overlay, "png")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}
