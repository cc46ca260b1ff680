package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lcwen/tcm-pipeline-go/internal/batch"
	"github.com/lcwen/tcm-pipeline-go/internal/budget"
	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/constants"
	"github.com/lcwen/tcm-pipeline-go/internal/corpus"
	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/prompt"
	"github.com/lcwen/tcm-pipeline-go/internal/resolve"
	"github.com/lcwen/tcm-pipeline-go/internal/service/ai"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"go.uber.org/zap"
)

// CLI flags override the corpus paths from the environment.
var (
	controlFile = flag.String("control", "", "Control table xlsx (defaults to CONTROL_FILE)")
	taskDir     = flag.String("tasks", "", "Directory of classified task files (defaults to TASK_DIR)")
	outputDir   = flag.String("output", "", "Report output directory (defaults to OUTPUT_DIR)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *controlFile != "" {
		cfg.Corpus.ControlFile = *controlFile
	}
	if *taskDir != "" {
		cfg.Corpus.TaskDir = *taskDir
	}
	if *outputDir != "" {
		cfg.Corpus.OutputDir = *outputDir
	}

	// Initialize logger
	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Context-guided disease translation starting...",
		zap.String("model", cfg.Model.Name),
		zap.Int("max_context_tokens", cfg.Budget.MaxContextTokens),
		zap.String("log_level", cfg.Logging.Level),
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

	controlRecords, err := corpus.LoadControlTable(cfg.Corpus.ControlFile, logger)
	if err != nil {
		logger.Error("Failed to load control table",
			zap.String("path", cfg.Corpus.ControlFile),
			zap.Error(err),
		)
		os.Exit(1)
	}

	taskFiles, err := corpus.DiscoverTaskFiles(cfg.Corpus.TaskDir)
	if err != nil {
		logger.Error("Failed to scan task directory",
			zap.String("dir", cfg.Corpus.TaskDir),
			zap.Error(err),
		)
		os.Exit(1)
	}
	if len(taskFiles) == 0 {
		logger.Warn("No task files found", zap.String("dir", cfg.Corpus.TaskDir))
		return
	}
	logger.Info("Discovered task files", zap.Int("count", len(taskFiles)))

	driver := batch.NewDriver(
		resolve.NewResolver(controlRecords, logger),
		budget.NewBudgeter(tokenizer, cfg.Budget.MaxContextTokens, logger),
		prompt.NewPromptBuilder(),
		engine,
		batch.RetryPolicy{
			MaxAttempts: constants.RetryConfig.MaxAttempts,
			BaseDelay:   constants.RetryConfig.BaseDelay,
		},
		cfg.Model.RequestDelay,
		logger,
	)

	var (
		results    []batch.FileResult
		allRecords []domain.TranslationRecord
	)

	for _, tf := range taskFiles {
		label := filepath.Base(tf.Path)

		tasks, err := corpus.LoadTasks(tf.Path, tf.Volume, logger)
		if err != nil {
			logger.Error("Failed to load task file",
				zap.String("file", label),
				zap.Error(err),
			)
			results = append(results, batch.FileResult{Label: label, Status: batch.StatusError})
			continue
		}

		res := driver.ProcessTasks(ctx, label, tasks)
		results = append(results, res)
		allRecords = append(allRecords, res.Records...)
	}

	if len(allRecords) > 0 {
		if _, err := corpus.WriteReport(allRecords, cfg.Corpus.OutputDir, time.Now(), logger); err != nil {
			logger.Error("Failed to write merged report", zap.Error(err))
		}
	} else {
		logger.Warn("No translations produced, skipping report")
	}

	var totals batch.FileCounters
	for _, r := range results {
		totals.Translated += r.Counters.Translated
		totals.FallbackLevel1 += r.Counters.FallbackLevel1
		totals.FallbackLevel2 += r.Counters.FallbackLevel2
		totals.Truncated += r.Counters.Truncated
		totals.SkippedResolution += r.Counters.SkippedResolution
		totals.SkippedTooLong += r.Counters.SkippedTooLong
		totals.Failed += r.Counters.Failed
	}

	logger.Info("Translation run finished",
		zap.String("status", string(batch.RollUp(results))),
		zap.Int("files", len(results)),
		zap.Int("translated", totals.Translated),
		zap.Int("fallback_level1", totals.FallbackLevel1),
		zap.Int("fallback_level2", totals.FallbackLevel2),
		zap.Int("truncated", totals.Truncated),
		zap.Int("skipped_resolution", totals.SkippedResolution),
		zap.Int("skipped_too_long", totals.SkippedTooLong),
		zap.Int("failed", totals.Failed),
	)
}
