package symmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	maxDetailIngredients = 5
	sampleMoleculeCount  = 3
)

var detailedHeaders = []string{
	"Community", "Core_Index", "Core_Combo", "Herb_id",
	"Chinese_name", "Pinyin_name", "English_name",
	"Mol_id", "Molecule_name", "Molecule_formula",
}

var lookupHeaders = []string{
	"Herb_id", "Chinese_name", "Pinyin_name", "English_name",
	"Ingredient_count", "Sample_molecules",
}

// AnalysisRow is the slice of a combo-analysis row the lookup reports
// need: the combo identity plus the herb ids both sides matched.
type AnalysisRow struct {
	Community   string
	CoreIndex   string
	CoreCombo   string
	CoreHerbIDs []int
	SubHerbIDs  []int
}

// ParseHerbIDs reads a comma-joined id cell from the combo analysis
// workbook ("41, 359, 304").
func ParseHerbIDs(cell string) []int {
	var ids []int
	for _, part := range strings.Split(cell, ",") {
		if n, ok := util.ParseIntCell(part); ok {
			ids = append(ids, n)
		}
	}
	return ids
}

// HerbInfo returns the herb row for id.
func (db *Database) HerbInfo(id int) (domain.Herb, bool) {
	idx, ok := db.herbByID[id]
	if !ok {
		return domain.Herb{}, false
	}
	return db.Herbs[idx], true
}

// IngredientsForHerb resolves a herb to its linked ingredients through
// the TCMSP id. Rows repeating the same molecule id, name and formula
// collapse to one, keeping source order.
func (db *Database) IngredientsForHerb(id int) []domain.Ingredient {
	idx, ok := db.herbByID[id]
	if !ok {
		return nil
	}
	link := db.Herbs[idx].TCMSPID
	if link == "" {
		return nil
	}

	type molKey struct {
		id            int
		name, formula string
	}
	seen := make(map[molKey]struct{})
	var out []domain.Ingredient
	for _, i := range db.ingredientsByLink[link] {
		ing := db.Ingredients[i]
		key := molKey{ing.MolID, ing.MoleculeName, ing.MoleculeFormula}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ing)
	}

	return out
}

// WriteDetailedReport expands every core herb of every combo into its
// linked molecules, capped per herb, and saves the workbook. Herbs with
// no linked ingredient still get one row so the combo stays complete.
func (db *Database) WriteDetailedReport(rows []AnalysisRow, path string, logger *zap.Logger) error {
	var out [][]any

	for _, ar := range rows {
		for _, herbID := range ar.CoreHerbIDs {
			herb, ok := db.HerbInfo(herbID)
			if !ok {
				logger.Warn("Analysis references unknown herb id", zap.Int("herb_id", herbID))
				continue
			}

			ingredients := db.IngredientsForHerb(herbID)
			if len(ingredients) == 0 {
				out = append(out, []any{
					ar.Community, ar.CoreIndex, ar.CoreCombo, herb.ID,
					herb.ChineseName, herb.PinyinName, herb.EnglishName,
					"", "", "",
				})
				continue
			}

			if len(ingredients) > maxDetailIngredients {
				ingredients = ingredients[:maxDetailIngredients]
			}
			for _, ing := range ingredients {
				out = append(out, []any{
					ar.Community, ar.CoreIndex, ar.CoreCombo, herb.ID,
					herb.ChineseName, herb.PinyinName, herb.EnglishName,
					ing.MolID, ing.MoleculeName, ing.MoleculeFormula,
				})
			}
		}
	}

	if err := writeReport(detailedHeaders, out, path); err != nil {
		return err
	}

	logger.Info("Detailed herb-ingredient report saved",
		zap.String("path", path),
		zap.Int("rows", len(out)),
	)

	return nil
}

// WriteLookupTable collapses every herb id the analysis touched, core
// and substitute sides both, into one quick-reference row per herb.
func (db *Database) WriteLookupTable(rows []AnalysisRow, path string, logger *zap.Logger) error {
	idSet := make(map[int]struct{})
	for _, ar := range rows {
		for _, id := range ar.CoreHerbIDs {
			idSet[id] = struct{}{}
		}
		for _, id := range ar.SubHerbIDs {
			idSet[id] = struct{}{}
		}
	}

	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out [][]any
	for _, id := range ids {
		herb, ok := db.HerbInfo(id)
		if !ok {
			continue
		}
		ingredients := db.IngredientsForHerb(id)

		samples := make([]string, 0, sampleMoleculeCount)
		for _, ing := range ingredients {
			if ing.MoleculeName == "" {
				continue
			}
			samples = append(samples, ing.MoleculeName)
			if len(samples) == sampleMoleculeCount {
				break
			}
		}

		out = append(out, []any{
			herb.ID, herb.ChineseName, herb.PinyinName, herb.EnglishName,
			len(ingredients), strings.Join(samples, ", "),
		})
	}

	if err := writeReport(lookupHeaders, out, path); err != nil {
		return err
	}

	logger.Info("Herb lookup table saved",
		zap.String("path", path),
		zap.Int("herbs", len(out)),
	)

	return nil
}

func writeReport(headers []string, rows [][]any, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	for i := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &rows[i]); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}
