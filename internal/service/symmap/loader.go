package symmap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/sourcegraph/conc/pool"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SymMap v2.0 ships as eleven fixed-name workbooks in one directory.
const (
	fileHerbs          = "SymMap v2.0, SMHB file.xlsx"
	fileHerbsKey       = "SymMap v2.0, SMHB key file.xlsx"
	fileIngredients    = "SymMap v2.0, SMIT file.xlsx"
	fileIngredientsKey = "SymMap v2.0, SMIT key file.xlsx"
	fileTargets        = "SymMap v2.0, SMTT file.xlsx"
	fileTargetsKey     = "SymMap v2.0, SMTT key file.xlsx"
	fileDiseases       = "SymMap v2.0, SMDE file.xlsx"
	fileDiseasesKey    = "SymMap v2.0, SMDE key file.xlsx"
	fileModernSymptoms = "SymMap v2.0, SMMS file.xlsx"
	fileTCMSymptoms    = "SymMap v2.0, SMTS file.xlsx"
	fileSyndromes      = "SymMap v2.0, SMSY file.xlsx"
)

const (
	tableHerbs          = "herbs"
	tableHerbsKey       = "herbs_key"
	tableIngredients    = "ingredients"
	tableIngredientsKey = "ingredients_key"
	tableTargets        = "targets"
	tableTargetsKey     = "targets_key"
	tableDiseases       = "diseases"
	tableDiseasesKey    = "diseases_key"
	tableModernSymptoms = "modern_symptoms"
	tableTCMSymptoms    = "tcm_symptoms"
	tableSyndromes      = "syndromes"
)

var workbooks = []struct {
	name string
	file string
}{
	{tableHerbs, fileHerbs},
	{tableHerbsKey, fileHerbsKey},
	{tableIngredients, fileIngredients},
	{tableIngredientsKey, fileIngredientsKey},
	{tableTargets, fileTargets},
	{tableTargetsKey, fileTargetsKey},
	{tableDiseases, fileDiseases},
	{tableDiseasesKey, fileDiseasesKey},
	{tableModernSymptoms, fileModernSymptoms},
	{tableTCMSymptoms, fileTCMSymptoms},
	{tableSyndromes, fileSyndromes},
}

const (
	colHerbID       = "Herb_id"
	colChineseName  = "Chinese_name"
	colPinyinName   = "Pinyin_name"
	colLatinName    = "Latin_name"
	colEnglishName  = "English_name"
	colPropertiesCN = "Properties_Chinese"
	colPropertiesEN = "Properties_English"
	colMeridiansCN  = "Meridians_Chinese"
	colMeridiansEN  = "Meridians_English"
	colClassCN      = "Class_Chinese"
	colClassEN      = "Class_English"
	colTCMSPID      = "TCMSP_id"

	colMolID            = "Mol_id"
	colMoleculeName     = "Molecule_name"
	colMoleculeFormula  = "Molecule_formula"
	colMoleculeWeight   = "Molecule_weight"
	colPubChemCID       = "PubChem_CID"
	colCASID            = "CAS_id"
	colOBScore          = "OB_score"
	colType             = "Type"
	colLinkIngredientID = "Link_ingredient_id"

	colGeneID      = "Gene_id"
	colGeneSymbol  = "Gene_symbol"
	colGeneName    = "Gene_name"
	colProteinName = "Protein_name"
	colNCBIID      = "NCBI_id"

	colFieldName    = "Field_name"
	colFieldContext = "Field_context"
)

const loadConcurrency = 4

// Table is one worksheet pulled into memory as a header row plus data
// rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Database holds the SymMap v2.0 workbooks after loading. The
// association tables are parsed into typed records; the standalone
// reference tables stay raw so they can be dumped back out unchanged.
type Database struct {
	Herbs           []domain.Herb
	Ingredients     []domain.Ingredient
	Targets         []domain.Target
	HerbAliases     []domain.KeyAlias
	MoleculeAliases []domain.KeyAlias

	reference map[string]*Table

	herbByID          map[int]int
	ingredientsByLink map[string][]int
}

// buildIndexes wires the id and TCMSP-link lookups. First occurrence
// wins for duplicated herb ids; ingredient indices keep source order.
func (db *Database) buildIndexes() {
	db.herbByID = make(map[int]int, len(db.Herbs))
	for i, h := range db.Herbs {
		if _, ok := db.herbByID[h.ID]; !ok {
			db.herbByID[h.ID] = i
		}
	}

	db.ingredientsByLink = make(map[string][]int)
	for i, ing := range db.Ingredients {
		if ing.LinkIngredientID == "" {
			continue
		}
		db.ingredientsByLink[ing.LinkIngredientID] = append(db.ingredientsByLink[ing.LinkIngredientID], i)
	}
}

// Load reads all eleven SymMap workbooks under dir in parallel.
func Load(dir string, logger *zap.Logger) (*Database, error) {
	tables, err := loadTables(dir, logger)
	if err != nil {
		return nil, err
	}

	herbs, err := parseHerbs(tables[tableHerbs], logger)
	if err != nil {
		return nil, err
	}
	ingredients, err := parseIngredients(tables[tableIngredients], logger)
	if err != nil {
		return nil, err
	}
	targets, err := parseTargets(tables[tableTargets], logger)
	if err != nil {
		return nil, err
	}
	herbAliases, err := parseKeyAliases(tables[tableHerbsKey], colHerbID, logger)
	if err != nil {
		return nil, err
	}
	moleculeAliases, err := parseKeyAliases(tables[tableIngredientsKey], colMolID, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("SymMap database loaded",
		zap.Int("herbs", len(herbs)),
		zap.Int("ingredients", len(ingredients)),
		zap.Int("targets", len(targets)),
		zap.Int("herb_aliases", len(herbAliases)),
		zap.Int("molecule_aliases", len(moleculeAliases)),
	)

	db := &Database{
		Herbs:           herbs,
		Ingredients:     ingredients,
		Targets:         targets,
		HerbAliases:     herbAliases,
		MoleculeAliases: moleculeAliases,
		reference: map[string]*Table{
			tableTargets:        tables[tableTargets],
			tableDiseases:       tables[tableDiseases],
			tableModernSymptoms: tables[tableModernSymptoms],
			tableTCMSymptoms:    tables[tableTCMSymptoms],
			tableSyndromes:      tables[tableSyndromes],
		},
	}
	db.buildIndexes()

	return db, nil
}

// LoadHerbs reads just the herb table and its alias key file, for
// callers that only need name matching.
func LoadHerbs(dir string, logger *zap.Logger) ([]domain.Herb, []domain.KeyAlias, error) {
	herbTable, err := readTable(filepath.Join(dir, fileHerbs))
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", fileHerbs, err)
	}
	herbs, err := parseHerbs(herbTable, logger)
	if err != nil {
		return nil, nil, err
	}

	keyTable, err := readTable(filepath.Join(dir, fileHerbsKey))
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", fileHerbsKey, err)
	}
	aliases, err := parseKeyAliases(keyTable, colHerbID, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("SymMap herb catalog loaded",
		zap.Int("herbs", len(herbs)),
		zap.Int("aliases", len(aliases)),
	)

	return herbs, aliases, nil
}

// LoadTargets reads just the target table, for callers mapping external
// gene ids onto SymMap.
func LoadTargets(dir string, logger *zap.Logger) ([]domain.Target, error) {
	table, err := readTable(filepath.Join(dir, fileTargets))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", fileTargets, err)
	}
	targets, err := parseTargets(table, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("SymMap target table loaded", zap.Int("targets", len(targets)))

	return targets, nil
}

func loadTables(dir string, logger *zap.Logger) (map[string]*Table, error) {
	type loadResult struct {
		table *Table
		err   error
	}

	p := pool.New().WithMaxGoroutines(loadConcurrency)
	results := make([]loadResult, len(workbooks))
	resultsMu := sync.Mutex{}

	for idx, wb := range workbooks {
		idx, wb := idx, wb
		p.Go(func() {
			table, err := readTable(filepath.Join(dir, wb.file))
			resultsMu.Lock()
			results[idx] = loadResult{table: table, err: err}
			resultsMu.Unlock()
		})
	}

	p.Wait()

	tables := make(map[string]*Table, len(workbooks))
	for idx, wb := range workbooks {
		if results[idx].err != nil {
			return nil, fmt.Errorf("load %s: %w", wb.file, results[idx].err)
		}
		logger.Info("SymMap table loaded",
			zap.String("table", wb.name),
			zap.Int("rows", len(results[idx].table.Rows)),
		)
		tables[wb.name] = results[idx].table
	}

	return tables, nil
}

func readTable(path string) (*Table, error) {
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
		return nil, errors.New("workbook has no header row")
	}

	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}

func parseHerbs(t *Table, logger *zap.Logger) ([]domain.Herb, error) {
	header, err := util.HeaderIndex(t.Header,
		colHerbID, colChineseName, colPinyinName, colLatinName, colEnglishName,
		colPropertiesCN, colPropertiesEN, colMeridiansCN, colMeridiansEN,
		colClassCN, colClassEN, colTCMSPID)
	if err != nil {
		return nil, fmt.Errorf("herb table: %w", err)
	}

	herbs := make([]domain.Herb, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, ok := util.ParseIntCell(util.CellAt(row, header[colHerbID]))
		if !ok {
			logger.Warn("Skipping herb row with unparseable id",
				zap.Int("row", i+2),
				zap.String("value", util.CellAt(row, header[colHerbID])),
			)
			continue
		}

		cell := func(name string) string {
			return strings.TrimSpace(util.CellAt(row, header[name]))
		}
		herbs = append(herbs, domain.Herb{
			ID:           id,
			ChineseName:  cell(colChineseName),
			PinyinName:   cell(colPinyinName),
			LatinName:    cell(colLatinName),
			EnglishName:  cell(colEnglishName),
			PropertiesCN: cell(colPropertiesCN),
			PropertiesEN: cell(colPropertiesEN),
			MeridiansCN:  cell(colMeridiansCN),
			MeridiansEN:  cell(colMeridiansEN),
			ClassCN:      cell(colClassCN),
			ClassEN:      cell(colClassEN),
			TCMSPID:      cell(colTCMSPID),
		})
	}

	return herbs, nil
}

func parseIngredients(t *Table, logger *zap.Logger) ([]domain.Ingredient, error) {
	header, err := util.HeaderIndex(t.Header,
		colMolID, colMoleculeName, colMoleculeFormula, colMoleculeWeight,
		colPubChemCID, colCASID, colOBScore, colType, colLinkIngredientID)
	if err != nil {
		return nil, fmt.Errorf("ingredient table: %w", err)
	}

	ingredients := make([]domain.Ingredient, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, ok := util.ParseIntCell(util.CellAt(row, header[colMolID]))
		if !ok {
			logger.Warn("Skipping ingredient row with unparseable id",
				zap.Int("row", i+2),
				zap.String("value", util.CellAt(row, header[colMolID])),
			)
			continue
		}

		cell := func(name string) string {
			return strings.TrimSpace(util.CellAt(row, header[name]))
		}
		ingredients = append(ingredients, domain.Ingredient{
			MolID:            id,
			MoleculeName:     cell(colMoleculeName),
			MoleculeFormula:  cell(colMoleculeFormula),
			MoleculeWeight:   cell(colMoleculeWeight),
			PubChemCID:       cell(colPubChemCID),
			CASID:            cell(colCASID),
			OBScore:          cell(colOBScore),
			Type:             cell(colType),
			LinkIngredientID: cell(colLinkIngredientID),
		})
	}

	return ingredients, nil
}

func parseTargets(t *Table, logger *zap.Logger) ([]domain.Target, error) {
	header, err := util.HeaderIndex(t.Header,
		colGeneID, colGeneSymbol, colGeneName, colProteinName, colNCBIID)
	if err != nil {
		return nil, fmt.Errorf("target table: %w", err)
	}

	targets := make([]domain.Target, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, ok := util.ParseIntCell(util.CellAt(row, header[colGeneID]))
		if !ok {
			logger.Warn("Skipping target row with unparseable id",
				zap.Int("row", i+2),
				zap.String("value", util.CellAt(row, header[colGeneID])),
			)
			continue
		}

		// NCBI ids arrive as numeric cells; strip any float rendering
		// so they compare equal to the ids PubChem reports.
		ncbiID := util.CellAt(row, header[colNCBIID])
		if n, ok := util.ParseIntCell(ncbiID); ok {
			ncbiID = strconv.Itoa(n)
		} else {
			ncbiID = strings.TrimSpace(ncbiID)
		}

		cell := func(name string) string {
			return strings.TrimSpace(util.CellAt(row, header[name]))
		}
		targets = append(targets, domain.Target{
			GeneID:      id,
			GeneSymbol:  cell(colGeneSymbol),
			GeneName:    cell(colGeneName),
			ProteinName: cell(colProteinName),
			NCBIID:      ncbiID,
		})
	}

	return targets, nil
}

func parseKeyAliases(t *Table, idColumn string, logger *zap.Logger) ([]domain.KeyAlias, error) {
	header, err := util.HeaderIndex(t.Header, idColumn, colFieldName, colFieldContext)
	if err != nil {
		return nil, fmt.Errorf("key table (%s): %w", idColumn, err)
	}

	aliases := make([]domain.KeyAlias, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, ok := util.ParseIntCell(util.CellAt(row, header[idColumn]))
		if !ok {
			logger.Warn("Skipping key row with unparseable id",
				zap.Int("row", i+2),
				zap.String("column", idColumn),
			)
			continue
		}

		value := strings.TrimSpace(util.CellAt(row, header[colFieldContext]))
		if value == "" {
			continue
		}

		aliases = append(aliases, domain.KeyAlias{
			EntityID: id,
			Field:    strings.TrimSpace(util.CellAt(row, header[colFieldName])),
			Value:    value,
		})
	}

	return aliases, nil
}
