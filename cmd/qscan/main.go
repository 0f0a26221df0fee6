package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/h-yaginuma0326/Qscan/internal/common"
	"github.com/h-yaginuma0326/Qscan/internal/diaglog"
	"github.com/h-yaginuma0326/Qscan/internal/docintel"
	"github.com/h-yaginuma0326/Qscan/internal/export"
	"github.com/h-yaginuma0326/Qscan/internal/ingest"
	"github.com/h-yaginuma0326/Qscan/internal/mask"
	"github.com/h-yaginuma0326/Qscan/internal/pipeline"
	"github.com/h-yaginuma0326/Qscan/internal/region"
	"github.com/h-yaginuma0326/Qscan/internal/repository"
	"github.com/h-yaginuma0326/Qscan/internal/template"
)

func main() {
	imagePath := flag.String("image", "", "intake form image to process; omit to watch the inbox directory")
	maskMode := flag.String("mask-mode", string(mask.ModeSolid), "masking mode: solid or blur")
	exportPath := flag.String("export", "", "write an XLSX of the session after processing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger, *imagePath, mask.Mode(*maskMode), *exportPath); err != nil {
		logger.Error("qscan failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, imagePath string, maskMode mask.Mode, exportPath string) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	repo, err := repository.Open(ctx, cfg.Session.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("session db close failed", "error", err)
		}
	}()

	generator, err := template.NewGenerator(cfg.LLM, logger)
	if err != nil {
		return err
	}

	svc := pipeline.NewService(
		region.NewDetector(logger),
		docintel.NewClient(docintel.Config{
			Endpoint: cfg.DocIntel.Endpoint,
			ModelID:  cfg.DocIntel.ModelID,
			Key:      cfg.DocIntel.Key,
		}, logger),
		generator,
		diaglog.New(cfg.Session.LogPath),
		logger,
	)

	// Resume whatever the last run left behind; the stage re-derives from
	// which artifacts are present.
	if saved, err := repo.Load(ctx, repository.DefaultSessionID); err != nil {
		logger.Warn("saved session unusable, starting fresh", "error", err)
	} else if saved != nil {
		svc.Restore(*saved)
	}

	switch {
	case imagePath != "":
		if err := processImage(ctx, svc, repo, logger, imagePath, maskMode); err != nil {
			return err
		}
	case cfg.Session.InboxDir != "":
		if err := watchInbox(ctx, svc, repo, logger, cfg.Session.InboxDir, maskMode); err != nil {
			return err
		}
	default:
		return fmt.Errorf("either -image or QSCAN_INBOX_DIR is required")
	}

	if exportPath != "" {
		rows := []export.Row{{SessionID: repository.DefaultSessionID, Bundle: svc.Snapshot()}}
		data, err := export.NewService(logger).SessionsXLSX(rows)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportPath, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		logger.Info("export written", "path", exportPath)
	}
	return nil
}

func processImage(ctx context.Context, svc *pipeline.Service, repo *repository.SessionRepository, logger *slog.Logger, path string, maskMode mask.Mode) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	if err := svc.AcquireBytes(data); err != nil {
		return err
	}
	if err := svc.DetectRegions(ctx); err != nil {
		return err
	}
	if err := svc.ApplyMask(ctx, maskMode); err != nil {
		return err
	}
	if err := svc.Analyze(ctx); err != nil {
		return err
	}
	if err := svc.GenerateTemplate(ctx); err != nil {
		return err
	}
	if err := repo.Save(ctx, repository.DefaultSessionID, svc.Snapshot()); err != nil {
		return err
	}

	snap := svc.Snapshot()
	logger.Info("session complete", "stage", pipeline.DeriveStage(&snap))
	fmt.Println(snap.EditedTemplate)
	return nil
}

func watchInbox(ctx context.Context, svc *pipeline.Service, repo *repository.SessionRepository, logger *slog.Logger, dir string, maskMode mask.Mode) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{Dir: dir}, logger)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok && err != nil {
				logger.Error("inbox watcher error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("inbox acquisition", "path", path)
			if err := processImage(ctx, svc, repo, logger, path, maskMode); err != nil {
				// A bad drop must not kill the watcher; the session stays at
				// whatever stage the failure left well-defined.
				logger.Error("processing failed", "path", path, "error", err, "stage", svc.Stage())
			}
		}
	}
}
