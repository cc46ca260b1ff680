package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var reportHeaders = []string{
	"卷號", "章節", "原始文本", "翻譯結果", "使用回退", "回退層級", "實際卷號", "實際章節",
}

// ReportFileName builds the merged report name from the volumes covered
// and the run date: 上下文引導翻譯報告_卷001_20250101.xlsx for a single
// volume, 上下文引導翻譯報告_卷001-卷007_20250101.xlsx for a range.
func ReportFileName(volumes []int, now time.Time) string {
	lo, hi := util.MinMax(util.Unique(volumes))
	date := now.Format("20060102")
	if lo == hi {
		return fmt.Sprintf("上下文引導翻譯報告_卷%03d_%s.xlsx", lo, date)
	}
	return fmt.Sprintf("上下文引導翻譯報告_卷%03d-卷%03d_%s.xlsx", lo, hi, date)
}

// WriteReport saves the merged translation report and returns its path.
func WriteReport(records []domain.TranslationRecord, outputDir string, now time.Time, logger *zap.Logger) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no records to report")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &reportHeaders); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}

	for i, rec := range records {
		usedFallback := "否"
		if rec.UsedFallback {
			usedFallback = "是"
		}

		row := []any{
			rec.Volume,
			rec.Section,
			rec.Term,
			rec.Translation,
			usedFallback,
			rec.FallbackLevel,
			rec.ActualVolume,
			rec.ActualSection,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("write report row %d: %w", i+2, err)
		}
	}

	volumes := make([]int, 0, len(records))
	for _, rec := range records {
		volumes = append(volumes, rec.Volume)
	}

	path := filepath.Join(outputDir, ReportFileName(volumes, now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report %s: %w", path, err)
	}

	logger.Info("Report written",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)

	return path, nil
}
