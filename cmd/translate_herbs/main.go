package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lcwen/tcm-pipeline-go/internal/batch"
	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/constants"
	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/prompt"
	"github.com/lcwen/tcm-pipeline-go/internal/service/ai"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	herbNameColumn    = "標準化名稱"
	englishNameColumn = "英文標準化名稱"
)

// CLI flags
var (
	inputFile    = flag.String("input", "", "Cleaned herb list xlsx with a 標準化名稱 column")
	outputFile   = flag.String("output", "", "Output xlsx (default: 對照表_含英文_YYYYMMDD.xlsx next to the input)")
	progressFile = flag.String("progress", "translation_progress.json", "Resume checkpoint path")
	saveEvery    = flag.Int("save-every", 100, "Checkpoint interval in rows")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "translate_herbs: -input is required")
		flag.Usage()
		os.Exit(1)
	}
	if *saveEvery <= 0 {
		*saveEvery = 1
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	outPath := *outputFile
	if outPath == "" {
		name := fmt.Sprintf("對照表_含英文_%s.xlsx", time.Now().Format("20060102"))
		outPath = filepath.Join(filepath.Dir(*inputFile), name)
	}

	logger.Info("Herb name translation starting...",
		zap.String("input", *inputFile),
		zap.String("output", outPath),
		zap.String("model", cfg.Model.Name),
	)

	ctx := context.Background()

	engine, err := ai.NewEngine(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AI engine", zap.Error(err))
		os.Exit(1)
	}

	tokenizer, err := ai.NewTokenizer(constants.TokenBudget.Encoding)
	if err != nil {
		logger.Error("Failed to initialize tokenizer", zap.Error(err))
		os.Exit(1)
	}

	f, err := excelize.OpenFile(*inputFile)
	if err != nil {
		logger.Error("Failed to open input workbook", zap.String("path", *inputFile), zap.Error(err))
		os.Exit(1)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		logger.Error("Failed to read input workbook", zap.Error(err))
		os.Exit(1)
	}
	if len(rows) == 0 {
		logger.Error("Input workbook is empty", zap.String("path", *inputFile))
		os.Exit(1)
	}

	cols, err := util.HeaderIndex(rows[0], herbNameColumn)
	if err != nil {
		logger.Error("Input workbook missing required column", zap.Error(err))
		os.Exit(1)
	}
	nameIdx := cols[herbNameColumn]

	herbs := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		herbs = append(herbs, util.CellAt(row, nameIdx))
	}
	total := len(herbs)
	logger.Info("Loaded herb names", zap.Int("count", total))

	progress := loadProgress(*progressFile, logger)
	start := progress.LastIndex + 1
	if start > 0 && (start > total || len(progress.Completed) != start) {
		logger.Warn("Progress checkpoint out of step with input, starting over",
			zap.Int("checkpoint_rows", len(progress.Completed)),
			zap.Int("input_rows", total),
		)
		progress = domain.NewHerbProgress()
		start = 0
	}
	if start > 0 {
		logger.Info("Resuming from checkpoint",
			zap.Int("next_row", start+1),
			zap.Int("total", total),
		)
	}

	translations := progress.Completed
	policy := batch.RetryPolicy{
		MaxAttempts: constants.RetryConfig.MaxAttempts,
		BaseDelay:   constants.RetryConfig.BaseDelay,
	}
	prompts := prompt.NewPromptBuilder()

	for idx := start; idx < total; idx++ {
		name := herbs[idx]
		english := translateHerb(ctx, engine, tokenizer, prompts, policy, name, logger)
		translations = append(translations, english)

		logger.Info("Translated herb",
			zap.Int("index", idx+1),
			zap.Int("total", total),
			zap.String("herb", name),
			zap.String("english", english),
		)

		if (idx+1)%*saveEvery == 0 {
			progress.Completed = translations
			progress.LastIndex = idx
			if err := saveProgress(*progressFile, progress); err != nil {
				logger.Error("Failed to save progress", zap.Error(err))
			} else {
				logger.Info("Progress saved", zap.Int("completed", idx+1), zap.Int("total", total))
			}
		}

		if cfg.Model.RequestDelay > 0 && idx < total-1 {
			time.Sleep(cfg.Model.RequestDelay)
		}
	}

	engCol, err := excelize.ColumnNumberToName(len(rows[0]) + 1)
	if err != nil {
		logger.Error("Failed to place English column", zap.Error(err))
		os.Exit(1)
	}
	if err := f.SetCellValue(sheet, engCol+"1", englishNameColumn); err != nil {
		logger.Error("Failed to write English column header", zap.Error(err))
		os.Exit(1)
	}
	for i, english := range translations {
		cell := fmt.Sprintf("%s%d", engCol, i+2)
		if err := f.SetCellValue(sheet, cell, english); err != nil {
			logger.Error("Failed to write translation cell", zap.String("cell", cell), zap.Error(err))
			os.Exit(1)
		}
	}
	if err := f.SaveAs(outPath); err != nil {
		logger.Error("Failed to save output workbook", zap.String("path", outPath), zap.Error(err))
		os.Exit(1)
	}

	failed := 0
	for _, t := range translations {
		if domain.IsHerbError(t) {
			failed++
		}
	}

	fields := []zap.Field{
		zap.String("output", outPath),
		zap.Int("translated", total-failed),
		zap.Int("failed", failed),
	}
	if total > 0 {
		fields = append(fields, zap.String("success_rate", fmt.Sprintf("%.1f%%", float64(total-failed)/float64(total)*100)))
	}
	logger.Info("Herb translation finished", fields...)

	if err := os.Remove(*progressFile); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to remove progress file", zap.Error(err))
		}
	} else {
		logger.Info("Progress file removed", zap.String("path", *progressFile))
	}
}

// translateHerb asks the model for the standard English name of one
// herb. Failures come back as error sentinels so the output keeps one
// row per input herb.
func translateHerb(
	ctx context.Context,
	engine *ai.Engine,
	tokenizer *ai.Tokenizer,
	prompts *prompt.PromptBuilder,
	policy batch.RetryPolicy,
	name string,
	logger *zap.Logger,
) string {
	promptText, err := prompts.BuildHerbTranslate(name)
	if err != nil {
		logger.Error("Failed to build herb prompt", zap.String("herb", name), zap.Error(err))
		return domain.HerbErrorFailed
	}

	if tokenizer.Count(promptText) > constants.TokenBudget.ModelWindow {
		logger.Warn("Herb prompt exceeds model window", zap.String("herb", name))
		return domain.HerbErrorTooLong
	}

	text, _, err := batch.GenerateWithRetry(ctx, engine, logger, policy, promptText, ai.PresetHerb, nil)
	if err != nil {
		logger.Error("Herb translation failed", zap.String("herb", name), zap.Error(err))
		return domain.HerbErrorFailed
	}

	result := util.StripPrefixes(util.FirstLine(text),
		"英文翻譯：", "英文名稱：", "English translation: ", "English name: ")
	if result == "" {
		return domain.HerbErrorEmpty
	}
	return result
}

func loadProgress(path string, logger *zap.Logger) *domain.HerbProgress {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Could not read progress file, starting fresh", zap.Error(err))
		}
		return domain.NewHerbProgress()
	}

	var p domain.HerbProgress
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warn("Could not parse progress file, starting fresh", zap.Error(err))
		return domain.NewHerbProgress()
	}
	if p.Completed == nil {
		p.Completed = []string{}
	}
	return &p
}

func saveProgress(path string, p *domain.HerbProgress) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
