// Package export produces an XLSX hand-off of finished sessions: when the
// note text leaves this tool for the records system, it goes as a workbook
// row, never as raw image bytes.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/h-yaginuma0326/Qscan/internal/pipeline"
)

// Row is one exported session.
type Row struct {
	SessionID string
	Bundle    pipeline.Artifacts
}

// Service renders sessions to XLSX bytes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// SessionsXLSX returns a workbook with one row per session: when it was
// acquired, the derived stage, region count, and the edited note text.
// Only the template text is exported; image artifacts stay on the device.
func (s *Service) SessionsXLSX(rows []Row) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Sessions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet excelize creates.
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Session",
		"Acquired At",
		"Stage",
		"Masked Regions",
		"Note Template",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowIdx := 2
	for _, r := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.SessionID)
		if !r.Bundle.AcquiredAt.IsZero() {
			write(2, r.Bundle.AcquiredAt.Format("2006-01-02 15:04"))
		} else {
			write(2, "")
		}
		write(3, string(pipeline.DeriveStage(&r.Bundle)))
		write(4, len(r.Bundle.Regions))

		note := r.Bundle.EditedTemplate
		if note == "" {
			note = r.Bundle.GeneratedTemplate
		}
		write(5, note)

		rowIdx++
	}

	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "B", 18)
	_ = f.SetColWidth(sheet, "C", "C", 12)
	_ = f.SetColWidth(sheet, "D", "D", 14)
	_ = f.SetColWidth(sheet, "E", "E", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
