package corpus

import (
	"fmt"
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	colVolume  = "no"
	colSection = "section"
	colContent = "disease_content"
)

// LoadControlTable reads the context control workbook. Row order is
// preserved exactly as it appears in the sheet; blank content cells load
// as empty strings so resolution can fail on them explicitly instead of
// silently skipping the row.
func LoadControlTable(path string, logger *zap.Logger) ([]domain.ControlRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open control table %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read control table %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("control table %s has no header row", path)
	}

	header, err := util.HeaderIndex(rows[0], colVolume, colSection, colContent)
	if err != nil {
		return nil, fmt.Errorf("control table %s: %w", path, err)
	}

	records := make([]domain.ControlRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		volume, ok := util.ParseIntCell(util.CellAt(row, header[colVolume]))
		if !ok {
			logger.Warn("Skipping control row with unparseable volume",
				zap.Int("row", i+2),
				zap.String("value", util.CellAt(row, header[colVolume])),
			)
			continue
		}

		records = append(records, domain.ControlRecord{
			Volume:  volume,
			Section: strings.TrimSpace(util.CellAt(row, header[colSection])),
			Content: util.CellAt(row, header[colContent]),
		})
	}

	logger.Info("Control table loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)

	return records, nil
}
