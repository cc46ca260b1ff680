package domain

import "strings"

// ControlRecord is one row of the context control table. Content may be
// empty when the source cell was blank; such a record cannot guide a
// translation.
type ControlRecord struct {
	Volume  int
	Section string
	Content string
}

func (r ControlRecord) HasContent() bool {
	return strings.TrimSpace(r.Content) != ""
}

// TranslationTask is a single term to translate together with the volume
// and section it was filed under.
type TranslationTask struct {
	Volume  int
	Section string
	Source  string // cell text exactly as it appeared in the task file
	Term    string // prompt-ready term, leading 治療/治 stripped
}

type FallbackLevel int

const (
	FallbackExact         FallbackLevel = 0
	FallbackSameVolume    FallbackLevel = 1
	FallbackNearestVolume FallbackLevel = 2
	FallbackFailed        FallbackLevel = -1
)

func (l FallbackLevel) String() string {
	switch l {
	case FallbackExact:
		return "exact"
	case FallbackSameVolume:
		return "same_volume"
	case FallbackNearestVolume:
		return "nearest_volume"
	default:
		return "failed"
	}
}

// IsFallback reports whether the level is a degraded match rather than an
// exact one.
func (l FallbackLevel) IsFallback() bool {
	return l == FallbackSameVolume || l == FallbackNearestVolume
}

// ResolutionResult is the outcome of a context lookup against the control
// table. ActualVolume and ActualSection identify the record that supplied
// the paragraph, which differ from the requested pair on fallback.
type ResolutionResult struct {
	Context       string
	Level         FallbackLevel
	ActualVolume  int
	ActualSection string
}

// TranslationRecord is one finished task as it appears in run reports.
// Term holds the normalized text the model was actually asked about.
type TranslationRecord struct {
	Volume        int    `json:"volume"`
	Section       string `json:"section"`
	Term          string `json:"term"`
	Translation   string `json:"translation"`
	UsedFallback  bool   `json:"used_fallback"`
	FallbackLevel string `json:"fallback_level"`
	ActualVolume  int    `json:"actual_volume"`
	ActualSection string `json:"actual_section"`
	Truncated     bool   `json:"truncated"`
}
