package corpus

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	colDisease     = "disease"
	colTaskSection = "section"
)

// TaskFile is a classified-section workbook together with the volume
// number parsed from its name.
type TaskFile struct {
	Path   string
	Volume int
}

var taskVolumeRe = regexp.MustCompile(`(\d+)\.xlsx$`)

// DiscoverTaskFiles finds classified_section_卷NNN.xlsx workbooks under
// dir and returns them in ascending volume order.
func DiscoverTaskFiles(dir string) ([]TaskFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "classified_section_卷*.xlsx"))
	if err != nil {
		return nil, fmt.Errorf("scan task dir %s: %w", dir, err)
	}

	files := make([]TaskFile, 0, len(matches))
	for _, path := range matches {
		m := taskVolumeRe.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		volume, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, TaskFile{Path: path, Volume: volume})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Volume < files[j].Volume })

	return files, nil
}

// LoadTasks reads one task workbook. Rows survive only when both the
// disease and section cells are non-empty after trimming and the term is
// still non-empty after normalization.
func LoadTasks(path string, volume int, logger *zap.Logger) ([]domain.TranslationTask, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open task file %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read task file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("task file %s has no header row", path)
	}

	header, err := util.HeaderIndex(rows[0], colDisease, colTaskSection)
	if err != nil {
		return nil, fmt.Errorf("task file %s: %w", path, err)
	}

	tasks := make([]domain.TranslationTask, 0, len(rows)-1)
	dropped := 0
	for _, row := range rows[1:] {
		source := strings.TrimSpace(util.CellAt(row, header[colDisease]))
		section := strings.TrimSpace(util.CellAt(row, header[colTaskSection]))
		if source == "" || section == "" {
			dropped++
			continue
		}

		term := NormalizeTerm(source)
		if term == "" {
			dropped++
			continue
		}

		tasks = append(tasks, domain.TranslationTask{
			Volume:  volume,
			Section: section,
			Source:  source,
			Term:    term,
		})
	}

	logger.Info("Task file loaded",
		zap.String("path", path),
		zap.Int("volume", volume),
		zap.Int("tasks", len(tasks)),
		zap.Int("dropped", dropped),
	)

	return tasks, nil
}

// NormalizeTerm strips the leading 治療/治 verb so the model sees the
// condition itself rather than the instruction to treat it.
func NormalizeTerm(source string) string {
	term := strings.TrimSpace(source)
	if strings.HasPrefix(term, "治療") {
		term = strings.TrimPrefix(term, "治療")
	} else if strings.HasPrefix(term, "治") {
		term = strings.TrimPrefix(term, "治")
	}
	return strings.TrimSpace(term)
}
