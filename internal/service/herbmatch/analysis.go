package herbmatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// highMatchRate is the threshold above which a combination counts as
// well covered by SymMap.
const highMatchRate = 0.75

var analysisHeaders = []string{
	"community", "core_index", "core_combo",
	"core_herbs_count", "core_matched_count", "core_matched_rate",
	"core_matched_names", "core_unmatched_names", "core_herb_ids",
	"top_substitutes",
	"sub_herbs_count", "sub_matched_count", "sub_matched_rate",
	"sub_matched_names", "sub_unmatched_names", "sub_herb_ids",
}

// LoadComboIndex reads the core-combination index csv produced by the
// community analysis stage.
func LoadComboIndex(path string) ([]domain.HerbCombo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open combo index %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read combo index %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("combo index %s has no header row", path)
	}

	// The file may carry a UTF-8 BOM from an earlier Excel round trip.
	records[0][0] = strings.TrimPrefix(records[0][0], "\uFEFF")

	header, err := util.HeaderIndex(records[0],
		"community", "core_index", "core_combo", "top_substitutes")
	if err != nil {
		return nil, fmt.Errorf("combo index %s: %w", path, err)
	}

	combos := make([]domain.HerbCombo, 0, len(records)-1)
	for _, row := range records[1:] {
		combos = append(combos, domain.HerbCombo{
			Community:      strings.TrimSpace(util.CellAt(row, header["community"])),
			CoreIndex:      strings.TrimSpace(util.CellAt(row, header["core_index"])),
			CoreCombo:      strings.TrimSpace(util.CellAt(row, header["core_combo"])),
			TopSubstitutes: strings.TrimSpace(util.CellAt(row, header["top_substitutes"])),
		})
	}
	return combos, nil
}

// WriteAnalysis saves the analysis as a workbook plus a sibling csv with
// the same base name.
func WriteAnalysis(results []ComboAnalysis, path string, logger *zap.Logger) error {
	if len(results) == 0 {
		return errors.New("no analysis results to save")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &analysisHeaders); err != nil {
		return fmt.Errorf("write analysis header: %w", err)
	}
	for i := range results {
		row := analysisRow(&results[i])
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write analysis row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save analysis %s: %w", path, err)
	}

	csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	if err := writeAnalysisCSV(results, csvPath); err != nil {
		return err
	}

	logger.Info("Association analysis saved",
		zap.String("xlsx", path),
		zap.String("csv", csvPath),
		zap.Int("combos", len(results)))
	return nil
}

func analysisRow(r *ComboAnalysis) []any {
	return []any{
		r.Combo.Community, r.Combo.CoreIndex, r.Combo.CoreCombo,
		r.Core.Total(), len(r.Core.Matched), r.Core.MatchRate(),
		strings.Join(r.Core.Matched, ", "),
		strings.Join(r.Core.Unmatched, ", "),
		joinIDs(r.Core.HerbIDs),
		r.Combo.TopSubstitutes,
		r.Sub.Total(), len(r.Sub.Matched), r.Sub.MatchRate(),
		strings.Join(r.Sub.Matched, ", "),
		strings.Join(r.Sub.Unmatched, ", "),
		joinIDs(r.Sub.HerbIDs),
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func writeAnalysisCSV(results []ComboAnalysis, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create analysis csv %s: %w", path, err)
	}
	defer f.Close()

	if err := util.WriteBOM(f); err != nil {
		return fmt.Errorf("write analysis csv bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(analysisHeaders); err != nil {
		return fmt.Errorf("write analysis csv header: %w", err)
	}
	for i := range results {
		row := analysisRow(&results[i])
		record := make([]string, len(row))
		for j, v := range row {
			record[j] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write analysis csv row %d: %w", i+2, err)
		}
	}
	w.Flush()
	return w.Error()
}

// RateStats summarizes the match-rate distribution for one side of the
// combinations.
type RateStats struct {
	Mean      float64
	Median    float64
	FullMatch int
	HighMatch int
}

// NameCount is a herb name with its occurrence count.
type NameCount struct {
	Name  string
	Count int
}

// Summary aggregates the whole analysis run.
type Summary struct {
	TotalCombos  int
	AvgCoreHerbs float64
	AvgSubHerbs  float64
	Core         RateStats
	Sub          RateStats

	// UnmatchedRepeats lists herbs that failed to match more than once,
	// most frequent first.
	UnmatchedRepeats []NameCount
}

// Summarize computes the aggregate report over all analyzed combinations.
func Summarize(results []ComboAnalysis) Summary {
	s := Summary{TotalCombos: len(results)}
	if len(results) == 0 {
		return s
	}

	coreRates := make([]float64, 0, len(results))
	subRates := make([]float64, 0, len(results))
	unmatched := make(map[string]int)
	var coreHerbs, subHerbs int

	for i := range results {
		r := &results[i]
		coreHerbs += r.Core.Total()
		subHerbs += r.Sub.Total()
		coreRates = append(coreRates, r.Core.MatchRate())
		subRates = append(subRates, r.Sub.MatchRate())
		for _, name := range r.Core.Unmatched {
			unmatched[name]++
		}
		for _, name := range r.Sub.Unmatched {
			unmatched[name]++
		}
	}

	s.AvgCoreHerbs = float64(coreHerbs) / float64(len(results))
	s.AvgSubHerbs = float64(subHerbs) / float64(len(results))
	s.Core = rateStats(coreRates)
	s.Sub = rateStats(subRates)

	for name, count := range unmatched {
		if count > 1 {
			s.UnmatchedRepeats = append(s.UnmatchedRepeats, NameCount{Name: name, Count: count})
		}
	}
	sort.Slice(s.UnmatchedRepeats, func(i, j int) bool {
		a, b := s.UnmatchedRepeats[i], s.UnmatchedRepeats[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})

	return s
}

func rateStats(rates []float64) RateStats {
	var st RateStats
	var sum float64
	for _, r := range rates {
		sum += r
		if r == 1.0 {
			st.FullMatch++
		}
		if r >= highMatchRate {
			st.HighMatch++
		}
	}
	st.Mean = sum / float64(len(rates))

	sorted := append([]float64(nil), rates...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.Median = sorted[mid]
	}
	return st
}
