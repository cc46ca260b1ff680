package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/service/symmap"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	detailedReportName = "herb_ingredient_detailed_report.xlsx"
	lookupTableName    = "herb_id_lookup_table.xlsx"
)

// CLI flags
var (
	analysisFile = flag.String("analysis", "herb_association_analysis.xlsx", "Combo analysis workbook from analyze_combos")
	symmapDir    = flag.String("symmap", "", "SymMap workbook directory (defaults to SYMMAP_DIR)")
	outDir       = flag.String("out-dir", ".", "Output directory")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
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

	logger.Info("Herb lookup reports starting...",
		zap.String("analysis", *analysisFile),
		zap.String("symmap_dir", cfg.SymMap.Dir),
	)

	rows, err := loadAnalysisRows(*analysisFile)
	if err != nil {
		logger.Error("Failed to load analysis workbook",
			zap.String("path", *analysisFile),
			zap.Error(err),
		)
		os.Exit(1)
	}
	logger.Info("Loaded analysis rows", zap.Int("combos", len(rows)))

	db, err := symmap.Load(cfg.SymMap.Dir, logger)
	if err != nil {
		logger.Error("Failed to load SymMap database", zap.Error(err))
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Error("Failed to create output directory", zap.Error(err))
		os.Exit(1)
	}

	detailedPath := filepath.Join(*outDir, detailedReportName)
	if err := db.WriteDetailedReport(rows, detailedPath, logger); err != nil {
		logger.Error("Failed to write detailed report", zap.Error(err))
		os.Exit(1)
	}

	lookupPath := filepath.Join(*outDir, lookupTableName)
	if err := db.WriteLookupTable(rows, lookupPath, logger); err != nil {
		logger.Error("Failed to write lookup table", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Herb lookup reports finished",
		zap.String("detailed", detailedPath),
		zap.String("lookup", lookupPath),
	)
}

func loadAnalysisRows(path string) ([]symmap.AnalysisRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("analysis workbook %s is empty", path)
	}

	cols, err := util.HeaderIndex(rows[0],
		"community", "core_index", "core_combo", "core_herb_ids", "sub_herb_ids")
	if err != nil {
		return nil, err
	}

	out := make([]symmap.AnalysisRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, symmap.AnalysisRow{
			Community:   util.CellAt(row, cols["community"]),
			CoreIndex:   util.CellAt(row, cols["core_index"]),
			CoreCombo:   util.CellAt(row, cols["core_combo"]),
			CoreHerbIDs: symmap.ParseHerbIDs(util.CellAt(row, cols["core_herb_ids"])),
			SubHerbIDs:  symmap.ParseHerbIDs(util.CellAt(row, cols["sub_herb_ids"])),
		})
	}

	return out, nil
}
