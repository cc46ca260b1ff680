package symmap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	fieldAlias = "Alias"

	maxMoleculeAliases = 5
	statsTopLimit      = 10
)

var masterHeaders = []string{
	"Herb_id", "Herb_Chinese", "Herb_Pinyin", "Herb_Latin", "Herb_English",
	"Properties_Chinese", "Properties_English", "Meridians_Chinese", "Meridians_English",
	"Class_Chinese", "Class_English", "TCMSP_id",
	"Mol_id", "Molecule_name", "Molecule_formula", "Molecule_weight",
	"PubChem_CID", "CAS_id", "OB_score", "Type", "Link_ingredient_id",
	"Herb_Aliases", "Molecule_Aliases",
}

// BuildMasterTable joins herbs onto their ingredients through the TCMSP
// link. Joined records come first in herb order, then every herb that
// matched nothing keeps a single record with an empty ingredient half.
func (db *Database) BuildMasterTable() []domain.MasterRecord {
	herbAliases := joinAliases(db.HerbAliases, colChineseName, 0)
	moleculeAliases := joinAliases(db.MoleculeAliases, fieldAlias, maxMoleculeAliases)

	records := make([]domain.MasterRecord, 0, len(db.Herbs))
	var unlinked []domain.MasterRecord

	for _, herb := range db.Herbs {
		base := domain.MasterRecord{
			HerbID:       herb.ID,
			HerbChinese:  herb.ChineseName,
			HerbPinyin:   herb.PinyinName,
			HerbLatin:    herb.LatinName,
			HerbEnglish:  herb.EnglishName,
			PropertiesCN: herb.PropertiesCN,
			PropertiesEN: herb.PropertiesEN,
			MeridiansCN:  herb.MeridiansCN,
			MeridiansEN:  herb.MeridiansEN,
			ClassCN:      herb.ClassCN,
			ClassEN:      herb.ClassEN,
			TCMSPID:      herb.TCMSPID,
			HerbAliases:  herbAliases[herb.ID],
		}

		linked := db.ingredientsByLink[herb.TCMSPID]
		if herb.TCMSPID == "" || len(linked) == 0 {
			unlinked = append(unlinked, base)
			continue
		}

		for _, idx := range linked {
			ing := db.Ingredients[idx]
			rec := base
			molID := ing.MolID
			rec.MolID = &molID
			rec.MoleculeName = ing.MoleculeName
			rec.MoleculeFormula = ing.MoleculeFormula
			rec.MoleculeWeight = ing.MoleculeWeight
			rec.PubChemCID = ing.PubChemCID
			rec.CASID = ing.CASID
			rec.OBScore = ing.OBScore
			rec.MoleculeType = ing.Type
			rec.MoleculeAliases = moleculeAliases[ing.MolID]
			records = append(records, rec)
		}
	}

	return append(records, unlinked...)
}

// joinAliases collects the values of one key-file field per entity,
// joined with "; " in source order. A limit of zero keeps every alias.
func joinAliases(aliases []domain.KeyAlias, field string, limit int) map[int]string {
	grouped := make(map[int][]string)
	for _, a := range aliases {
		if a.Field != field {
			continue
		}
		if limit > 0 && len(grouped[a.EntityID]) >= limit {
			continue
		}
		grouped[a.EntityID] = append(grouped[a.EntityID], a.Value)
	}

	joined := make(map[int]string, len(grouped))
	for id, values := range grouped {
		joined[id] = strings.Join(values, "; ")
	}

	return joined
}

// MasterStats summarizes the integrated table.
type MasterStats struct {
	TotalHerbs            int
	HerbsWithIngredients  int
	TotalIngredients      int
	TotalRecords          int
	RecordsWithIngredient int
	HerbOnlyRecords       int
	AvgIngredientsPerHerb float64
	TopProperties         []ValueCount
	TopTypes              []ValueCount
}

// ValueCount is one entry of a value distribution, most frequent first.
type ValueCount struct {
	Value string
	Count int
}

// ComputeStats walks the master table once and collects the summary the
// build command reports.
func ComputeStats(records []domain.MasterRecord) MasterStats {
	herbIDs := make(map[int]struct{})
	herbsWith := make(map[int]struct{})
	molIDs := make(map[int]struct{})
	var properties, types []string
	withIngredient := 0

	for i := range records {
		r := &records[i]
		herbIDs[r.HerbID] = struct{}{}
		if r.PropertiesCN != "" {
			properties = append(properties, r.PropertiesCN)
		}
		if !r.HasIngredient() {
			continue
		}
		withIngredient++
		herbsWith[r.HerbID] = struct{}{}
		molIDs[*r.MolID] = struct{}{}
		if r.MoleculeType != "" {
			types = append(types, r.MoleculeType)
		}
	}

	stats := MasterStats{
		TotalHerbs:            len(herbIDs),
		HerbsWithIngredients:  len(herbsWith),
		TotalIngredients:      len(molIDs),
		TotalRecords:          len(records),
		RecordsWithIngredient: withIngredient,
		HerbOnlyRecords:       len(records) - withIngredient,
		TopProperties:         topCounts(properties, statsTopLimit),
		TopTypes:              topCounts(types, statsTopLimit),
	}
	if len(herbsWith) > 0 {
		stats.AvgIngredientsPerHerb = float64(withIngredient) / float64(len(herbsWith))
	}

	return stats
}

func topCounts(values []string, limit int) []ValueCount {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}

	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

// SaveMasterTable writes the integrated table as a workbook plus a CSV
// twin alongside it.
func SaveMasterTable(records []domain.MasterRecord, path string, logger *zap.Logger) error {
	if len(records) == 0 {
		return errors.New("no master records to save")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &masterHeaders); err != nil {
		return fmt.Errorf("write master header: %w", err)
	}
	for i := range records {
		row := masterRow(&records[i])
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write master row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save master table %s: %w", path, err)
	}

	csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	if err := writeMasterCSV(records, csvPath); err != nil {
		return err
	}

	logger.Info("Master table saved",
		zap.String("xlsx", path),
		zap.String("csv", csvPath),
		zap.Int("records", len(records)),
	)

	return nil
}

func masterRow(r *domain.MasterRecord) []any {
	row := []any{
		r.HerbID, r.HerbChinese, r.HerbPinyin, r.HerbLatin, r.HerbEnglish,
		r.PropertiesCN, r.PropertiesEN, r.MeridiansCN, r.MeridiansEN,
		r.ClassCN, r.ClassEN, r.TCMSPID,
	}
	if r.HasIngredient() {
		row = append(row, *r.MolID, r.MoleculeName, r.MoleculeFormula, r.MoleculeWeight,
			r.PubChemCID, r.CASID, r.OBScore, r.MoleculeType, r.TCMSPID)
	} else {
		row = append(row, "", "", "", "", "", "", "", "", "")
	}
	return append(row, r.HerbAliases, r.MoleculeAliases)
}

func writeMasterCSV(records []domain.MasterRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := util.WriteBOM(f); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(masterHeaders); err != nil {
		return err
	}
	for i := range records {
		row := masterRow(&records[i])
		text := make([]string, len(row))
		for j, v := range row {
			text[j] = fmt.Sprint(v)
		}
		if err := w.Write(text); err != nil {
			return err
		}
	}
	w.Flush()

	return w.Error()
}

var referenceDumps = []struct {
	table string
	file  string
}{
	{tableDiseases, "diseases_reference.xlsx"},
	{tableTargets, "targets_reference.xlsx"},
	{tableModernSymptoms, "modern_symptoms_reference.xlsx"},
	{tableTCMSymptoms, "tcm_symptoms_reference.xlsx"},
	{tableSyndromes, "syndromes_reference.xlsx"},
}

// SaveReferenceTables dumps the standalone SymMap tables (diseases,
// targets, symptoms, syndromes) into dir, one workbook each.
func (db *Database) SaveReferenceTables(dir string, logger *zap.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create reference dir %s: %w", dir, err)
	}

	for _, dump := range referenceDumps {
		table, ok := db.reference[dump.table]
		if !ok {
			continue
		}
		path := filepath.Join(dir, dump.file)
		if err := writeTable(table, path); err != nil {
			return err
		}
		logger.Info("Reference table saved",
			zap.String("table", dump.table),
			zap.Int("rows", len(table.Rows)),
		)
	}

	return nil
}

func writeTable(t *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &t.Header); err != nil {
		return err
	}
	for i := range t.Rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &t.Rows[i]); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}
