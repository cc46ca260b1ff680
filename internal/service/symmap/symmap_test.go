package symmap

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
			t.Fatalf("write row %d: %v", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook %s: %v", path, err)
	}
}

// writeSymMapDir lays out a minimal but complete eleven-workbook SymMap
// directory: one herb with two molecules, one herb with no TCMSP id and
// one whose id matches nothing.
func writeSymMapDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeWorkbook(t, filepath.Join(dir, fileHerbs), [][]any{
		{"Herb_id", "Chinese_name", "Pinyin_name", "Latin_name", "English_name",
			"Properties_Chinese", "Properties_English", "Meridians_Chinese", "Meridians_English",
			"Class_Chinese", "Class_English", "TCMSP_id"},
		{1, "当归", "Dang Gui", "Angelicae Sinensis Radix", "Chinese Angelica",
			"甘温", "Sweet, warm", "肝经", "Liver", "补血药", "Blood tonics", "TS1"},
		{2, "人参", "Ren Shen", "Ginseng Radix", "Ginseng",
			"苦寒", "Bitter, cold", "脾经", "Spleen", "补气药", "Qi tonics", ""},
		{3, "黄芪", "Huang Qi", "Astragali Radix", "Milkvetch Root",
			"甘平", "Sweet, neutral", "肺经", "Lung", "补气药", "Qi tonics", "TS3"},
	})

	writeWorkbook(t, filepath.Join(dir, fileHerbsKey), [][]any{
		{"Herb_id", "Field_name", "Field_context"},
		{1, "Chinese_name", "干归"},
		{1, "Chinese_name", "秦归"},
		{1, "Latin_name", "Radix Angelicae"},
	})

	writeWorkbook(t, filepath.Join(dir, fileIngredients), [][]any{
		{"Mol_id", "Molecule_name", "Molecule_formula", "Molecule_weight",
			"PubChem_CID", "CAS_id", "OB_score", "Type", "Link_ingredient_id"},
		{101, "quercetin", "C15H10O7", "302.24", "5280343", "117-39-5", "46.43", "Flavonoids", "TS1"},
		{102, "kaempferol", "C15H10O6", "286.24", "5280863", "520-18-3", "41.88", "Flavonoids", "TS1"},
		{103, "orphan acid", "C2H4O2", "60.05", "176", "64-19-7", "30.00", "Organic acids", ""},
	})

	molKeyRows := [][]any{
		{"Mol_id", "Field_name", "Field_context"},
	}
	for i := 1; i <= 7; i++ {
		molKeyRows = append(molKeyRows, []any{101, "Alias", fmt.Sprintf("a%d", i)})
	}
	molKeyRows = append(molKeyRows, []any{102, "CAS", "520-18-3"})
	writeWorkbook(t, filepath.Join(dir, fileIngredientsKey), molKeyRows)

	writeWorkbook(t, filepath.Join(dir, fileTargets), [][]any{
		{"Gene_id", "Gene_symbol", "Gene_name", "Protein_name", "NCBI_id"},
		{9001, "TNF", "tumor necrosis factor", "TNF-alpha", 7124},
		{9002, "PTGS2", "prostaglandin-endoperoxide synthase 2", "COX-2", "5742.0"},
		{9003, "ORPH", "orphan gene", "Orphan protein", ""},
	})

	// The remaining tables only need to exist and be well formed.
	writeWorkbook(t, filepath.Join(dir, fileTargetsKey), [][]any{
		{"Gene_id", "Field_name", "Field_context"},
		{9001, "Alias", "TNFA"},
	})
	writeWorkbook(t, filepath.Join(dir, fileDiseases), [][]any{
		{"Disease_id", "Disease_name"},
		{501, "Rheumatoid arthritis"},
	})
	writeWorkbook(t, filepath.Join(dir, fileDiseasesKey), [][]any{
		{"Disease_id", "Field_name", "Field_context"},
		{501, "Alias", "RA"},
	})
	writeWorkbook(t, filepath.Join(dir, fileModernSymptoms), [][]any{
		{"MM_symptom_id", "MM_symptom_name"},
		{601, "Joint pain"},
	})
	writeWorkbook(t, filepath.Join(dir, fileTCMSymptoms), [][]any{
		{"TCM_symptom_id", "TCM_symptom_name"},
		{701, "关节痛"},
	})
	writeWorkbook(t, filepath.Join(dir, fileSyndromes), [][]any{
		{"Syndrome_id", "Syndrome_name"},
		{801, "痹证"},
	})

	return dir
}

func TestLoadParsesTypedTables(t *testing.T) {
	dir := writeSymMapDir(t)

	db, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(db.Herbs) != 3 {
		t.Fatalf("expected 3 herbs, got %d", len(db.Herbs))
	}
	if db.Herbs[0].ChineseName != "当归" || db.Herbs[0].TCMSPID != "TS1" {
		t.Errorf("unexpected first herb: %+v", db.Herbs[0])
	}
	if db.Herbs[1].TCMSPID != "" {
		t.Errorf("expected empty TCMSP id for herb 2, got %q", db.Herbs[1].TCMSPID)
	}

	if len(db.Ingredients) != 3 {
		t.Fatalf("expected 3 ingredients, got %d", len(db.Ingredients))
	}
	if db.Ingredients[0].PubChemCID != "5280343" {
		t.Errorf("unexpected PubChem CID: %q", db.Ingredients[0].PubChemCID)
	}

	if len(db.HerbAliases) != 3 {
		t.Errorf("expected 3 herb alias rows, got %d", len(db.HerbAliases))
	}
	if len(db.MoleculeAliases) != 8 {
		t.Errorf("expected 8 molecule alias rows, got %d", len(db.MoleculeAliases))
	}

	if len(db.Targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(db.Targets))
	}
	if db.Targets[0].NCBIID != "7124" {
		t.Errorf("expected NCBI id 7124, got %q", db.Targets[0].NCBIID)
	}
	if db.Targets[1].NCBIID != "5742" {
		t.Errorf("expected float NCBI cell normalized to 5742, got %q", db.Targets[1].NCBIID)
	}
	if db.Targets[2].NCBIID != "" {
		t.Errorf("expected empty NCBI id, got %q", db.Targets[2].NCBIID)
	}
}

func TestLoadMissingWorkbookFails(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, fileHerbs), [][]any{
		{"Herb_id", "Chinese_name"},
	})

	if _, err := Load(dir, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing workbooks")
	}
}

func TestLoadHerbsReadsCatalogOnly(t *testing.T) {
	dir := writeSymMapDir(t)

	herbs, aliases, err := LoadHerbs(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadHerbs: %v", err)
	}
	if len(herbs) != 3 || len(aliases) != 3 {
		t.Fatalf("expected 3 herbs and 3 aliases, got %d and %d", len(herbs), len(aliases))
	}
	if aliases[0].Field != "Chinese_name" || aliases[0].Value != "干归" {
		t.Errorf("unexpected first alias: %+v", aliases[0])
	}
}

func TestLoadTargetsReadsTargetTableOnly(t *testing.T) {
	dir := writeSymMapDir(t)

	targets, err := LoadTargets(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadTargets: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(targets))
	}
	if targets[1].GeneSymbol != "PTGS2" || targets[1].NCBIID != "5742" {
		t.Errorf("unexpected second target: %+v", targets[1])
	}
}

func TestBuildMasterTable(t *testing.T) {
	dir := writeSymMapDir(t)

	db, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	records := db.BuildMasterTable()
	if len(records) != 4 {
		t.Fatalf("expected 4 master records, got %d", len(records))
	}

	// Joined records come first, in herb then ingredient order.
	if !records[0].HasIngredient() || *records[0].MolID != 101 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if !records[1].HasIngredient() || *records[1].MolID != 102 {
		t.Errorf("unexpected second record: %+v", records[1])
	}
	if records[0].HerbAliases != "干归; 秦归" {
		t.Errorf("expected joined herb aliases, got %q", records[0].HerbAliases)
	}
	if records[0].MoleculeAliases != "a1; a2; a3; a4; a5" {
		t.Errorf("expected molecule aliases capped at 5, got %q", records[0].MoleculeAliases)
	}

	// Herbs without a usable link keep one record each.
	if records[2].HerbID != 2 || records[2].HasIngredient() {
		t.Errorf("unexpected third record: %+v", records[2])
	}
	if records[3].HerbID != 3 || records[3].HasIngredient() {
		t.Errorf("unexpected fourth record: %+v", records[3])
	}
	if records[2].HerbAliases != "" {
		t.Errorf("expected no aliases for herb 2, got %q", records[2].HerbAliases)
	}
}

func TestComputeStats(t *testing.T) {
	dir := writeSymMapDir(t)

	db, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	stats := ComputeStats(db.BuildMasterTable())

	if stats.TotalHerbs != 3 || stats.HerbsWithIngredients != 1 {
		t.Errorf("unexpected herb counts: %+v", stats)
	}
	if stats.TotalIngredients != 2 || stats.RecordsWithIngredient != 2 || stats.HerbOnlyRecords != 2 {
		t.Errorf("unexpected ingredient counts: %+v", stats)
	}
	if stats.TotalRecords != 4 {
		t.Errorf("expected 4 records, got %d", stats.TotalRecords)
	}
	if stats.AvgIngredientsPerHerb != 2.0 {
		t.Errorf("expected 2.0 ingredients per linked herb, got %f", stats.AvgIngredientsPerHerb)
	}

	if len(stats.TopProperties) != 3 || stats.TopProperties[0] != (ValueCount{"甘温", 2}) {
		t.Errorf("unexpected property distribution: %+v", stats.TopProperties)
	}
	if len(stats.TopTypes) != 1 || stats.TopTypes[0] != (ValueCount{"Flavonoids", 2}) {
		t.Errorf("unexpected type distribution: %+v", stats.TopTypes)
	}
}

func TestSaveMasterTableWritesWorkbookAndCSV(t *testing.T) {
	dir := writeSymMapDir(t)

	db, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	records := db.BuildMasterTable()

	outDir := t.TempDir()
	xlsxPath := filepath.Join(outDir, "master.xlsx")
	if err := SaveMasterTable(records, xlsxPath, zap.NewNop()); err != nil {
		t.Fatalf("SaveMasterTable: %v", err)
	}

	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "Herb_id" || rows[0][12] != "Mol_id" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][12] != "101" {
		t.Errorf("expected Mol_id 101 in first data row, got %q", rows[1][12])
	}

	data, err := os.ReadFile(filepath.Join(outDir, "master.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "\uFEFF") {
		t.Error("csv is missing the UTF-8 BOM")
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\uFEFF")))
	lines, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("expected header plus 4 csv rows, got %d", len(lines))
	}
	if lines[1][21] != "干归; 秦归" {
		t.Errorf("unexpected herb aliases in csv: %q", lines[1][21])
	}
	if lines[3][0] != "2" || lines[3][12] != "" {
		t.Errorf("expected unlinked herb 2 in csv row 3: %v", lines[3])
	}
}

func TestSaveReferenceTables(t *testing.T) {
	dir := writeSymMapDir(t)

	db, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	refDir := filepath.Join(t.TempDir(), "reference")
	if err := db.SaveReferenceTables(refDir, zap.NewNop()); err != nil {
		t.Fatalf("SaveReferenceTables: %v", err)
	}

	for _, name := range []string{
		"diseases_reference.xlsx",
		"targets_reference.xlsx",
		"modern_symptoms_reference.xlsx",
		"tcm_symptoms_reference.xlsx",
		"syndromes_reference.xlsx",
	} {
		if _, err := os.Stat(filepath.Join(refDir, name)); err != nil {
			t.Errorf("missing reference dump %s: %v", name, err)
		}
	}
}

func TestIngredientsForHerbDeduplicates(t *testing.T) {
	db := &Database{
		Herbs: []domain.Herb{
			{ID: 1, ChineseName: "当归", TCMSPID: "TS1"},
		},
		Ingredients: []domain.Ingredient{
			{MolID: 101, MoleculeName: "quercetin", MoleculeFormula: "C15H10O7", LinkIngredientID: "TS1"},
			{MolID: 101, MoleculeName: "quercetin", MoleculeFormula: "C15H10O7", LinkIngredientID: "TS1"},
			{MolID: 102, MoleculeName: "kaempferol", MoleculeFormula: "C15H10O6", LinkIngredientID: "TS1"},
		},
	}
	db.buildIndexes()

	got := db.IngredientsForHerb(1)
	if len(got) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 ingredients, got %d", len(got))
	}
	if got[0].MolID != 101 || got[1].MolID != 102 {
		t.Errorf("unexpected ingredient order: %+v", got)
	}

	if db.IngredientsForHerb(99) != nil {
		t.Error("expected nil for unknown herb")
	}
}

func TestParseHerbIDs(t *testing.T) {
	cases := []struct {
		cell string
		want []int
	}{
		{"41, 359, 304", []int{41, 359, 304}},
		{"41", []int{41}},
		{"", nil},
		{"x, 5", []int{5}},
	}

	for _, tc := range cases {
		got := ParseHerbIDs(tc.cell)
		if len(got) != len(tc.want) {
			t.Errorf("ParseHerbIDs(%q) = %v, want %v", tc.cell, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseHerbIDs(%q) = %v, want %v", tc.cell, got, tc.want)
				break
			}
		}
	}
}

func TestWriteDetailedReportAndLookupTable(t *testing.T) {
	db := &Database{
		Herbs: []domain.Herb{
			{ID: 1, ChineseName: "当归", PinyinName: "Dang Gui", EnglishName: "Chinese Angelica", TCMSPID: "TS1"},
			{ID: 3, ChineseName: "黄芪", PinyinName: "Huang Qi", EnglishName: "Milkvetch Root", TCMSPID: "TS3"},
		},
		Ingredients: []domain.Ingredient{
			{MolID: 101, MoleculeName: "quercetin", MoleculeFormula: "C15H10O7", LinkIngredientID: "TS1"},
			{MolID: 102, MoleculeName: "kaempferol", MoleculeFormula: "C15H10O6", LinkIngredientID: "TS1"},
		},
	}
	db.buildIndexes()

	rows := []AnalysisRow{
		{
			Community:   "0",
			CoreIndex:   "1",
			CoreCombo:   "当归、黄芪",
			CoreHerbIDs: []int{1, 3, 99},
			SubHerbIDs:  []int{3},
		},
	}

	outDir := t.TempDir()

	detailedPath := filepath.Join(outDir, "detailed.xlsx")
	if err := db.WriteDetailedReport(rows, detailedPath, zap.NewNop()); err != nil {
		t.Fatalf("WriteDetailedReport: %v", err)
	}

	f, err := excelize.OpenFile(detailedPath)
	if err != nil {
		t.Fatalf("reopen detailed report: %v", err)
	}
	got, err := f.GetRows(f.GetSheetName(0))
	f.Close()
	if err != nil {
		t.Fatalf("read detailed report: %v", err)
	}
	// Herb 1 expands to two molecule rows, herb 3 keeps one empty row,
	// herb 99 is unknown and skipped.
	if len(got) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(got))
	}
	if got[1][7] != "101" || got[2][7] != "102" {
		t.Errorf("unexpected molecule ids: %v / %v", got[1], got[2])
	}
	if got[3][4] != "黄芪" || len(got[3]) > 7 && got[3][7] != "" {
		t.Errorf("expected empty molecule half for herb 3: %v", got[3])
	}

	lookupPath := filepath.Join(outDir, "lookup.xlsx")
	if err := db.WriteLookupTable(rows, lookupPath, zap.NewNop()); err != nil {
		t.Fatalf("WriteLookupTable: %v", err)
	}

	f, err = excelize.OpenFile(lookupPath)
	if err != nil {
		t.Fatalf("reopen lookup table: %v", err)
	}
	got, err = f.GetRows(f.GetSheetName(0))
	f.Close()
	if err != nil {
		t.Fatalf("read lookup table: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(got))
	}
	if got[1][0] != "1" || got[1][4] != "2" || got[1][5] != "quercetin, kaempferol" {
		t.Errorf("unexpected lookup row for herb 1: %v", got[1])
	}
	if got[2][0] != "3" || got[2][4] != "0" {
		t.Errorf("unexpected lookup row for herb 3: %v", got[2])
	}
}
