package herbmatch

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestToSimplified(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"黃耆", "黄芪"},
		{"桂心", "桂"},
		{"硃砂", "朱砂"},
		{"紫苑", "紫菀"},
		{"麥門冬", "麦门冬"},
		{"鬱李仁", "郁李仁"},
		{"黃土", "黄土"},
		{"人参", "人参"},
		{"茯苓", "茯苓"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := ToSimplified(tc.name); got != tc.want {
			t.Errorf("ToSimplified(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func testIndex() *NameIndex {
	herbs := []domain.Herb{
		{ID: 1, ChineseName: "黄芪", PinyinName: "Huang Qi", EnglishName: "Milkvetch Root"},
		{ID: 2, ChineseName: "当归", PinyinName: "Dang Gui"},
	}
	aliases := []domain.KeyAlias{
		{EntityID: 1, Field: "Chinese_name", Value: "北芪"},
		{EntityID: 2, Field: "Latin_name", Value: "Radix Angelicae"},
		{EntityID: 2, Field: "Chinese_name", Value: "黄芪"},
	}
	return BuildNameIndex(herbs, aliases)
}

func TestBuildNameIndexSpellings(t *testing.T) {
	ix := testIndex()

	cases := []struct {
		name   string
		wantID int
		wantOK bool
	}{
		{"黄芪", 1, true},
		{"黃耆", 1, true},
		{"Huang Qi", 1, true},
		{"Milkvetch Root", 1, true},
		{"北芪", 1, true},
		{"当归", 2, true},
		{"當歸", 2, true},
		{"人參", 0, false},
		{"Radix Angelicae", 0, false},
	}

	for _, tc := range cases {
		id, ok := ix.Lookup(tc.name)
		if ok != tc.wantOK || id != tc.wantID {
			t.Errorf("Lookup(%q) = (%d, %v), want (%d, %v)", tc.name, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestAliasNeverOverwritesDirectName(t *testing.T) {
	ix := testIndex()

	// Herb 2 carries 黄芪 as an alias, but herb 1 owns the direct name.
	if id, _ := ix.Lookup("黄芪"); id != 1 {
		t.Errorf("expected direct name to win over later alias, got id %d", id)
	}
}

func TestMatchKeepsOriginalSpelling(t *testing.T) {
	ix := testIndex()

	m := ix.Match([]string{"當歸", "黃耆", "人參"})

	if len(m.HerbIDs) != 2 || m.HerbIDs[0] != 2 || m.HerbIDs[1] != 1 {
		t.Errorf("unexpected herb ids: %v", m.HerbIDs)
	}
	if len(m.Matched) != 2 || m.Matched[0] != "當歸" || m.Matched[1] != "黃耆" {
		t.Errorf("expected matched names to keep their original spelling, got %v", m.Matched)
	}
	if len(m.Unmatched) != 1 || m.Unmatched[0] != "人參" {
		t.Errorf("unexpected unmatched names: %v", m.Unmatched)
	}
	if m.Total() != 3 {
		t.Errorf("expected total 3, got %d", m.Total())
	}
	if rate := m.MatchRate(); math.Abs(rate-2.0/3.0) > 1e-12 {
		t.Errorf("unexpected match rate %f", rate)
	}
}

func TestParseCombo(t *testing.T) {
	got := ParseCombo("当归、黄芪、 人参 ")
	want := []string{"当归", "黄芪", "人参"}
	if len(got) != len(want) {
		t.Fatalf("ParseCombo = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ParseCombo = %v, want %v", got, want)
		}
	}

	if got := ParseCombo("、、"); got != nil {
		t.Errorf("expected nil for separators only, got %v", got)
	}
	if got := ParseCombo(""); got != nil {
		t.Errorf("expected nil for empty combo, got %v", got)
	}
}

func TestAnalyze(t *testing.T) {
	ix := testIndex()

	results := ix.Analyze([]domain.HerbCombo{
		{
			Community:      "0",
			CoreIndex:      "1",
			CoreCombo:      "當歸、黃耆",
			TopSubstitutes: "人參",
		},
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Core.MatchRate() != 1.0 {
		t.Errorf("expected full core match, got %f", r.Core.MatchRate())
	}
	if r.Sub.MatchRate() != 0 || len(r.Sub.Unmatched) != 1 {
		t.Errorf("expected substitute miss, got %+v", r.Sub)
	}
}

func TestLoadComboIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core_index_all.csv")

	content := "\uFEFFcommunity,core_index,core_combo,top_substitutes\n" +
		"0,1,当归、黄芪,人参\n" +
		"1,2,茯苓, 白朮、甘草 \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	combos, err := LoadComboIndex(path)
	if err != nil {
		t.Fatalf("LoadComboIndex: %v", err)
	}
	if len(combos) != 2 {
		t.Fatalf("expected 2 combos, got %d", len(combos))
	}
	if combos[0].Community != "0" || combos[0].CoreCombo != "当归、黄芪" {
		t.Errorf("unexpected first combo: %+v", combos[0])
	}
	if combos[1].TopSubstitutes != "白朮、甘草" {
		t.Errorf("expected trimmed substitutes, got %q", combos[1].TopSubstitutes)
	}
}

func TestLoadComboIndexMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core_index_all.csv")

	content := "community,core_index,core_combo\n0,1,当归\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := LoadComboIndex(path)
	if err == nil || !strings.Contains(err.Error(), "top_substitutes") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestWriteAnalysis(t *testing.T) {
	ix := testIndex()
	results := ix.Analyze([]domain.HerbCombo{
		{Community: "0", CoreIndex: "1", CoreCombo: "當歸、黃耆", TopSubstitutes: "人參"},
		{Community: "1", CoreIndex: "2", CoreCombo: "黄芪", TopSubstitutes: ""},
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "herb_association_analysis.xlsx")
	if err := WriteAnalysis(results, path, zap.NewNop()); err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][5] != "core_matched_rate" || rows[0][9] != "top_substitutes" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][5] != "1" {
		t.Errorf("expected full core match rate, got %q", rows[1][5])
	}
	if rows[1][6] != "當歸, 黃耆" {
		t.Errorf("expected original spellings joined, got %q", rows[1][6])
	}
	if rows[1][8] != "2, 1" {
		t.Errorf("unexpected herb ids cell: %q", rows[1][8])
	}

	data, err := os.ReadFile(filepath.Join(dir, "herb_association_analysis.csv"))
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
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 csv rows, got %d", len(lines))
	}
	if lines[2][3] != "1" || lines[2][10] != "0" {
		t.Errorf("unexpected counts in second csv row: %v", lines[2])
	}
}

func TestWriteAnalysisEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := WriteAnalysis(nil, path, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty results")
	}
}

func TestSummarize(t *testing.T) {
	results := []ComboAnalysis{
		{
			Core: domain.ComboMatch{HerbIDs: []int{1, 2}, Matched: []string{"a", "b"}},
			Sub:  domain.ComboMatch{Unmatched: []string{"人參", "木賊"}},
		},
		{
			Core: domain.ComboMatch{HerbIDs: []int{1}, Matched: []string{"a"}, Unmatched: []string{"人參"}},
			Sub:  domain.ComboMatch{HerbIDs: []int{2}, Matched: []string{"b"}},
		},
		{
			Core: domain.ComboMatch{HerbIDs: []int{1, 2}, Matched: []string{"a", "b"}},
			Sub:  domain.ComboMatch{HerbIDs: []int{2}, Matched: []string{"b"}, Unmatched: []string{"人參"}},
		},
	}

	s := Summarize(results)

	if s.TotalCombos != 3 {
		t.Errorf("expected 3 combos, got %d", s.TotalCombos)
	}
	if math.Abs(s.AvgCoreHerbs-2.0) > 1e-12 {
		t.Errorf("unexpected average core herbs: %f", s.AvgCoreHerbs)
	}

	// Core rates are 1, 0.5 and 1.
	if math.Abs(s.Core.Mean-2.5/3.0) > 1e-12 {
		t.Errorf("unexpected core mean: %f", s.Core.Mean)
	}
	if s.Core.Median != 1.0 {
		t.Errorf("unexpected core median: %f", s.Core.Median)
	}
	if s.Core.FullMatch != 2 || s.Core.HighMatch != 2 {
		t.Errorf("unexpected core match counts: %+v", s.Core)
	}

	// Substitute rates are 0, 1 and 0.5.
	if s.Sub.Median != 0.5 {
		t.Errorf("unexpected substitute median: %f", s.Sub.Median)
	}
	if s.Sub.FullMatch != 1 || s.Sub.HighMatch != 1 {
		t.Errorf("unexpected substitute match counts: %+v", s.Sub)
	}

	// 人參 misses three times, 木賊 only once and stays out.
	if len(s.UnmatchedRepeats) != 1 {
		t.Fatalf("expected one repeated unmatched herb, got %v", s.UnmatchedRepeats)
	}
	if s.UnmatchedRepeats[0] != (NameCount{Name: "人參", Count: 3}) {
		t.Errorf("unexpected repeat entry: %+v", s.UnmatchedRepeats[0])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalCombos != 0 || s.Core.Mean != 0 || s.UnmatchedRepeats != nil {
		t.Errorf("unexpected summary for no results: %+v", s)
	}
}
