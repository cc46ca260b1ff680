package domain

import "strings"

// Error sentinels written in place of a translation when a herb name
// cannot be translated. They keep row alignment intact so a rerun can
// retry just the failed rows.
const (
	HerbErrorTooLong = "[ERROR: Input too long]"
	HerbErrorEmpty   = "[ERROR: Empty result]"
	HerbErrorFailed  = "[ERROR: Translation failed]"
	herbErrorMark    = "[ERROR"
)

// IsHerbError reports whether a stored translation is an error sentinel.
func IsHerbError(translation string) bool {
	return strings.Contains(translation, herbErrorMark)
}

// HerbProgress is the resume checkpoint for a herb translation run.
// Completed holds one entry per already-processed row, in row order;
// LastIndex is the zero-based index of the last processed row (-1 when
// nothing has been done yet).
type HerbProgress struct {
	Completed []string `json:"completed"`
	LastIndex int      `json:"last_index"`
}

func NewHerbProgress() *HerbProgress {
	return &HerbProgress{Completed: []string{}, LastIndex: -1}
}
