package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/service/database"
	"github.com/lcwen/tcm-pipeline-go/internal/service/symmap"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"go.uber.org/zap"
)

// CLI flags
var (
	symmapDir  = flag.String("symmap", "", "SymMap workbook directory (defaults to SYMMAP_DIR)")
	outputFile = flag.String("output", "SymMap_Master_Table.xlsx", "Master table output xlsx")
	refDir     = flag.String("ref-dir", "SymMap_Reference_Tables", "Reference table output directory")
	pgDSN      = flag.String("pg-dsn", "", "Optional PostgreSQL DSN for the master-table export (defaults to POSTGRES_DSN)")
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
	if *pgDSN != "" {
		cfg.Postgres.DSN = *pgDSN
	}

	// Initialize logger
	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("SymMap master table build starting...",
		zap.String("symmap_dir", cfg.SymMap.Dir),
		zap.String("output", *outputFile),
	)

	db, err := symmap.Load(cfg.SymMap.Dir, logger)
	if err != nil {
		logger.Error("Failed to load SymMap database", zap.Error(err))
		os.Exit(1)
	}

	records := db.BuildMasterTable()
	stats := symmap.ComputeStats(records)

	logger.Info("Master table statistics",
		zap.Int("total_herbs", stats.TotalHerbs),
		zap.Int("herbs_with_ingredients", stats.HerbsWithIngredients),
		zap.Int("total_ingredients", stats.TotalIngredients),
		zap.Int("total_records", stats.TotalRecords),
		zap.Int("herb_only_records", stats.HerbOnlyRecords),
		zap.Float64("avg_ingredients_per_herb", stats.AvgIngredientsPerHerb),
		zap.String("top_properties", formatCounts(stats.TopProperties)),
		zap.String("top_molecule_types", formatCounts(stats.TopTypes)),
	)

	if err := symmap.SaveMasterTable(records, *outputFile, logger); err != nil {
		logger.Error("Failed to save master table", zap.Error(err))
		os.Exit(1)
	}

	if err := db.SaveReferenceTables(*refDir, logger); err != nil {
		logger.Error("Failed to save reference tables", zap.Error(err))
		os.Exit(1)
	}

	if cfg.Postgres.DSN != "" {
		if err := exportToPostgres(cfg.Postgres.DSN, records, logger); err != nil {
			logger.Error("PostgreSQL export failed", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("Master table build finished",
		zap.String("output", *outputFile),
		zap.String("reference_dir", *refDir),
	)
}

func exportToPostgres(dsn string, records []domain.MasterRecord, logger *zap.Logger) error {
	ctx := context.Background()

	svc, err := database.NewPostgresService(dsn, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	repo := database.NewMasterRepository(svc, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.ReplaceAll(ctx, records); err != nil {
		return err
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("Master table rows in PostgreSQL", zap.Int("count", count))

	return nil
}

func formatCounts(counts []symmap.ValueCount) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Value, c.Count))
	}
	return strings.Join(parts, ", ")
}
