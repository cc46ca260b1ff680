package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/service/herbmatch"
	"github.com/lcwen/tcm-pipeline-go/internal/service/symmap"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"go.uber.org/zap"
)

// CLI flags
var (
	indexFile  = flag.String("index", "", "Core combination index CSV (defaults to CORE_INDEX_FILE)")
	symmapDir  = flag.String("symmap", "", "SymMap workbook directory (defaults to SYMMAP_DIR)")
	outputFile = flag.String("output", "herb_association_analysis.xlsx", "Analysis output xlsx (CSV twin written alongside)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *indexFile != "" {
		cfg.SymMap.CoreIndexFile = *indexFile
	}
	if *symmapDir != "" {
		cfg.SymMap.Dir = *symmapDir
	}

	// Initialize logger
	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Herb association analysis starting...",
		zap.String("core_index", cfg.SymMap.CoreIndexFile),
		zap.String("symmap_dir", cfg.SymMap.Dir),
	)

	combos, err := herbmatch.LoadComboIndex(cfg.SymMap.CoreIndexFile)
	if err != nil {
		logger.Error("Failed to load core combination index", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Loaded core combination index", zap.Int("combos", len(combos)))

	herbs, aliases, err := symmap.LoadHerbs(cfg.SymMap.Dir, logger)
	if err != nil {
		logger.Error("Failed to load SymMap herbs", zap.Error(err))
		os.Exit(1)
	}

	ix := herbmatch.BuildNameIndex(herbs, aliases)
	logger.Info("Built herb name index",
		zap.Int("herbs", len(herbs)),
		zap.Int("entries", ix.Len()),
	)

	results := ix.Analyze(combos)

	for i := range results {
		r := &results[i]
		logger.Info("Combination analyzed",
			zap.String("community", r.Combo.Community),
			zap.String("core_index", r.Combo.CoreIndex),
			zap.Int("core_matched", len(r.Core.Matched)),
			zap.Int("core_total", r.Core.Total()),
			zap.Float64("core_match_rate", r.Core.MatchRate()),
			zap.Ints("core_herb_ids", r.Core.HerbIDs),
			zap.Strings("core_unmatched", r.Core.Unmatched),
			zap.Int("sub_matched", len(r.Sub.Matched)),
			zap.Int("sub_total", r.Sub.Total()),
			zap.Float64("sub_match_rate", r.Sub.MatchRate()),
		)
	}

	if err := herbmatch.WriteAnalysis(results, *outputFile, logger); err != nil {
		logger.Error("Failed to save analysis results", zap.Error(err))
		os.Exit(1)
	}

	summary := herbmatch.Summarize(results)
	logger.Info("Association analysis summary",
		zap.Int("total_combos", summary.TotalCombos),
		zap.Float64("avg_core_herbs", summary.AvgCoreHerbs),
		zap.Float64("avg_sub_herbs", summary.AvgSubHerbs),
		zap.Float64("core_mean_rate", summary.Core.Mean),
		zap.Float64("core_median_rate", summary.Core.Median),
		zap.Int("core_full_match", summary.Core.FullMatch),
		zap.Int("core_high_match", summary.Core.HighMatch),
		zap.Float64("sub_mean_rate", summary.Sub.Mean),
		zap.Float64("sub_median_rate", summary.Sub.Median),
		zap.Int("sub_full_match", summary.Sub.FullMatch),
		zap.Int("sub_high_match", summary.Sub.HighMatch),
	)

	if len(summary.UnmatchedRepeats) > 0 {
		logger.Warn("Herbs repeatedly failing to match",
			zap.String("herbs", formatNameCounts(summary.UnmatchedRepeats)),
		)
	}
}

func formatNameCounts(counts []herbmatch.NameCount) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Name, c.Count))
	}
	return strings.Join(parts, ", ")
}
