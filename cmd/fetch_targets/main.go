package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/config"
	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/service/cache"
	"github.com/lcwen/tcm-pipeline-go/internal/service/ncbi"
	"github.com/lcwen/tcm-pipeline-go/internal/service/pubchem"
	"github.com/lcwen/tcm-pipeline-go/internal/service/symmap"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	rawFileName    = "ingredient_target_pubchem_raw.csv"
	finalFileName  = "ingredient_target_mapping_final"
	activeFileName = "ingredient_target_mapping_active_only.csv"

	progressInterval = 25
	topReportLimit   = 10
)

// CLI flags
var (
	masterFile = flag.String("master", "SymMap_Master_Table.csv", "Master table CSV from build_master_table")
	symmapDir  = flag.String("symmap", "", "SymMap workbook directory (defaults to SYMMAP_DIR)")
	outDir     = flag.String("out-dir", ".", "Output directory")
	limit      = flag.Int("limit", 0, "Fetch at most this many compounds (0 = all)")
)

// compound is one master-table ingredient with a usable PubChem CID.
type compound struct {
	MolID int
	Name  string
	CID   string
}

// association is one compound-target pair assembled from an assay row.
type association struct {
	MolID   int
	MolName string
	Assay   pubchem.AssayRecord
}

// mappedAssociation carries an association resolved into SymMap.
type mappedAssociation struct {
	association
	NCBISymbol    string
	SymMapGeneID  int
	SymMapSymbol  string
	SymMapGeneRef string
}

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

	logger.Info("Ingredient target fetch starting...",
		zap.String("master", *masterFile),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("limit", *limit),
	)

	ctx := context.Background()

	store, err := openCacheStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open cache store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	compounds, err := loadCompounds(*masterFile)
	if err != nil {
		logger.Error("Failed to load master table", zap.String("path", *masterFile), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Compounds with a PubChem CID", zap.Int("count", len(compounds)))

	if *limit > 0 && len(compounds) > *limit {
		compounds = compounds[:*limit]
		logger.Info("Limiting fetch", zap.Int("compounds", len(compounds)))
	}

	targets, err := symmap.LoadTargets(cfg.SymMap.Dir, logger)
	if err != nil {
		logger.Error("Failed to load SymMap targets", zap.Error(err))
		os.Exit(1)
	}

	associations := fetchAssociations(ctx, store, compounds, logger)
	if len(associations) == 0 {
		logger.Warn("No target data fetched; compounds may have no bioassay records")
		return
	}
	logger.Info("Assay fetch finished",
		zap.Int("associations", len(associations)),
		zap.Int("compounds", countMols(associations)),
		zap.Int("gene_ids", len(uniqueGeneIDs(associations))),
	)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Error("Failed to create output directory", zap.Error(err))
		os.Exit(1)
	}

	rawPath := filepath.Join(*outDir, rawFileName)
	if err := writeRawCSV(associations, rawPath); err != nil {
		logger.Error("Failed to write raw associations", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Raw associations written", zap.String("path", rawPath))

	symbols := fetchGeneSymbols(ctx, store, uniqueGeneIDs(associations), logger)

	mapped := mapToSymMap(associations, symbols, targets)
	logger.Info("Mapped associations into SymMap",
		zap.Int("mapped", len(mapped)),
		zap.Int("fetched", len(associations)),
		zap.Int("symmap_genes", countSymMapGenes(mapped)),
	)
	if len(mapped) == 0 {
		logger.Warn("No association mapped to a SymMap gene")
		return
	}

	finalCSV := filepath.Join(*outDir, finalFileName+".csv")
	finalXLSX := filepath.Join(*outDir, finalFileName+".xlsx")
	if err := writeMappedCSV(mapped, finalCSV); err != nil {
		logger.Error("Failed to write final mapping CSV", zap.Error(err))
		os.Exit(1)
	}
	if err := writeMappedWorkbook(mapped, finalXLSX); err != nil {
		logger.Error("Failed to write final mapping workbook", zap.Error(err))
		os.Exit(1)
	}

	var active []mappedAssociation
	for _, m := range mapped {
		if m.Assay.Outcome == "Active" {
			active = append(active, m)
		}
	}
	if len(active) > 0 {
		activePath := filepath.Join(*outDir, activeFileName)
		if err := writeMappedCSV(active, activePath); err != nil {
			logger.Error("Failed to write active-only mapping", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("Active-only associations written",
			zap.String("path", activePath),
			zap.Int("rows", len(active)),
		)
	}

	logTopCompounds(mapped, logger)
	logTopGenes(mapped, logger)

	logger.Info("Ingredient target fetch finished",
		zap.String("raw", rawPath),
		zap.String("final_csv", finalCSV),
		zap.String("final_xlsx", finalXLSX),
	)
}

// openCacheStore picks the cache backend from configuration. The file
// store is the default; redis serves shared lab setups.
func openCacheStore(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
	}
	return cache.NewFileStore(cfg.Cache.Dir, logger)
}

// loadCompounds reads the master-table CSV and keeps one row per Mol_id
// that carries a usable PubChem CID.
func loadCompounds(path string) ([]compound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read master csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("master csv %s is empty", path)
	}

	records[0][0] = strings.TrimPrefix(records[0][0], "\uFEFF")
	cols, err := util.HeaderIndex(records[0], "Mol_id", "Molecule_name", "PubChem_CID")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{})
	var compounds []compound
	for _, row := range records[1:] {
		molID, ok := util.ParseIntCell(util.CellAt(row, cols["Mol_id"]))
		if !ok {
			continue
		}
		if _, dup := seen[molID]; dup {
			continue
		}

		cid := normalizeCID(util.CellAt(row, cols["PubChem_CID"]))
		if cid == "" {
			continue
		}

		seen[molID] = struct{}{}
		compounds = append(compounds, compound{
			MolID: molID,
			Name:  util.CellAt(row, cols["Molecule_name"]),
			CID:   cid,
		})
	}

	return compounds, nil
}

// normalizeCID turns a master-table CID cell into a plain digit string.
// Multi-valued cells ("969516|12345") keep their first entry; float
// renderings ("969516.0") lose the fraction.
func normalizeCID(cell string) string {
	s := strings.TrimSpace(cell)
	if i := strings.IndexByte(s, '|'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if n, ok := util.ParseIntCell(s); ok {
		return strconv.Itoa(n)
	}
	return ""
}

func fetchAssociations(ctx context.Context, store cache.Store, compounds []compound, logger *zap.Logger) []association {
	client := pubchem.NewClient(store, logger)

	var out []association
	for i, c := range compounds {
		if i == 0 || (i+1)%progressInterval == 0 {
			logger.Info("Fetch progress",
				zap.Int("done", i+1),
				zap.Int("total", len(compounds)),
			)
		}

		records, err := client.FetchAssaySummary(ctx, c.CID)
		if err != nil {
			logger.Warn("Assay fetch failed, skipping compound",
				zap.Int("mol_id", c.MolID),
				zap.String("cid", c.CID),
				zap.Error(err),
			)
			continue
		}

		for _, rec := range records {
			out = append(out, association{MolID: c.MolID, MolName: c.Name, Assay: rec})
		}
	}

	return out
}

func fetchGeneSymbols(ctx context.Context, store cache.Store, geneIDs []string, logger *zap.Logger) map[string]string {
	client := ncbi.NewClient(store, logger)

	symbols := make(map[string]string)
	for i, id := range geneIDs {
		if i == 0 || (i+1)%progressInterval == 0 {
			logger.Info("Gene symbol progress",
				zap.Int("done", i+1),
				zap.Int("total", len(geneIDs)),
			)
		}

		summary, err := client.FetchGeneSummary(ctx, id)
		if err != nil {
			logger.Warn("Gene symbol fetch failed", zap.String("gene_id", id), zap.Error(err))
			continue
		}
		if summary.Symbol != "" {
			symbols[id] = summary.Symbol
		}
	}

	logger.Info("Gene symbols resolved",
		zap.Int("resolved", len(symbols)),
		zap.Int("requested", len(geneIDs)),
	)
	return symbols
}

// mapToSymMap resolves each association's NCBI gene id into a SymMap
// target, directly through SMTT's NCBI_id column when possible and
// through the uppercased NCBI symbol otherwise. Associations matching
// neither way are dropped.
func mapToSymMap(associations []association, symbols map[string]string, targets []domain.Target) []mappedAssociation {
	byNCBI := make(map[string]domain.Target)
	bySymbol := make(map[string]domain.Target)
	for _, t := range targets {
		if t.NCBIID != "" {
			byNCBI[t.NCBIID] = t
		}
		if t.GeneSymbol != "" {
			bySymbol[strings.ToUpper(t.GeneSymbol)] = t
		}
	}

	var mapped []mappedAssociation
	for _, a := range associations {
		symbol := symbols[a.Assay.TargetGeneID]

		target, ok := byNCBI[a.Assay.TargetGeneID]
		if !ok && symbol != "" {
			target, ok = bySymbol[strings.ToUpper(symbol)]
		}
		if !ok {
			continue
		}

		mapped = append(mapped, mappedAssociation{
			association:   a,
			NCBISymbol:    symbol,
			SymMapGeneID:  target.GeneID,
			SymMapSymbol:  target.GeneSymbol,
			SymMapGeneRef: target.GeneName,
		})
	}

	return mapped
}

var rawHeaders = []string{
	"Mol_id", "Molecule_name", "AID", "SID", "CID", "Activity_Outcome",
	"Target_Accession", "Target_GeneID", "Activity_Value_uM", "Activity_Name",
	"Assay_Name", "Assay_Type", "PubMed_ID",
}

var mappedHeaders = []string{
	"Mol_id", "Molecule_name", "AID", "SID", "CID", "Activity_Outcome",
	"Target_Accession", "Target_GeneID", "Activity_Value_uM", "Activity_Name",
	"Assay_Name", "Assay_Type", "PubMed_ID",
	"NCBI_Gene_symbol", "SymMap_Gene_id", "SymMap_Gene_symbol", "SymMap_Gene_name",
}

func rawRow(a *association) []string {
	return []string{
		strconv.Itoa(a.MolID), a.MolName,
		a.Assay.AID, a.Assay.SID, a.Assay.CID, a.Assay.Outcome,
		a.Assay.TargetAccession, a.Assay.TargetGeneID, a.Assay.ActivityValue,
		a.Assay.ActivityName, a.Assay.AssayName, a.Assay.AssayType, a.Assay.PubMedID,
	}
}

func mappedRow(m *mappedAssociation) []string {
	return append(rawRow(&m.association),
		m.NCBISymbol, strconv.Itoa(m.SymMapGeneID), m.SymMapSymbol, m.SymMapGeneRef)
}

func writeRawCSV(associations []association, path string) error {
	rows := make([][]string, 0, len(associations))
	for i := range associations {
		rows = append(rows, rawRow(&associations[i]))
	}
	return writeCSV(path, rawHeaders, rows)
}

func writeMappedCSV(mapped []mappedAssociation, path string) error {
	rows := make([][]string, 0, len(mapped))
	for i := range mapped {
		rows = append(rows, mappedRow(&mapped[i]))
	}
	return writeCSV(path, mappedHeaders, rows)
}

// writeCSV writes rows with a UTF-8 BOM so Excel renders Chinese
// molecule names correctly.
func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := util.WriteBOM(f); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeMappedWorkbook(mapped []mappedAssociation, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := make([]any, len(mappedHeaders))
	for i, h := range mappedHeaders {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	for i := range mapped {
		cells := mappedRow(&mapped[i])
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func uniqueGeneIDs(associations []association) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range associations {
		if _, ok := seen[a.Assay.TargetGeneID]; ok {
			continue
		}
		seen[a.Assay.TargetGeneID] = struct{}{}
		ids = append(ids, a.Assay.TargetGeneID)
	}
	return ids
}

func countMols(associations []association) int {
	seen := make(map[int]struct{})
	for _, a := range associations {
		seen[a.MolID] = struct{}{}
	}
	return len(seen)
}

func countSymMapGenes(mapped []mappedAssociation) int {
	seen := make(map[int]struct{})
	for _, m := range mapped {
		seen[m.SymMapGeneID] = struct{}{}
	}
	return len(seen)
}

func logTopCompounds(mapped []mappedAssociation, logger *zap.Logger) {
	counts := make(map[int]int)
	names := make(map[int]string)
	for _, m := range mapped {
		counts[m.MolID]++
		names[m.MolID] = m.MolName
	}

	type molCount struct {
		id    int
		count int
	}
	out := make([]molCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, molCount{id, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].id < out[j].id
	})
	if len(out) > topReportLimit {
		out = out[:topReportLimit]
	}

	parts := make([]string, 0, len(out))
	for _, mc := range out {
		parts = append(parts, fmt.Sprintf("%d (%s): %d", mc.id, names[mc.id], mc.count))
	}
	logger.Info("Compounds with the most targets", zap.String("top", strings.Join(parts, ", ")))
}

func logTopGenes(mapped []mappedAssociation, logger *zap.Logger) {
	counts := make(map[string]int)
	for _, m := range mapped {
		symbol := m.SymMapSymbol
		if symbol == "" {
			symbol = m.NCBISymbol
		}
		counts[symbol]++
	}

	type geneCount struct {
		symbol string
		count  int
	}
	out := make([]geneCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, geneCount{s, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].symbol < out[j].symbol
	})
	if len(out) > topReportLimit {
		out = out[:topReportLimit]
	}

	parts := make([]string, 0, len(out))
	for _, gc := range out {
		parts = append(parts, fmt.Sprintf("%s: %d", gc.symbol, gc.count))
	}
	logger.Info("Targets hit by the most compounds", zap.String("top", strings.Join(parts, ", ")))
}
