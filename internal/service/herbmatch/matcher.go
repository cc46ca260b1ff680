package herbmatch

import (
	"strings"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
)

const fieldChineseName = "Chinese_name"

// NameIndex resolves herb names in any spelling the corpus uses to
// SymMap herb ids.
type NameIndex struct {
	byName map[string]int
}

// BuildNameIndex registers every known spelling of each herb: the
// simplified Chinese name plus any traditional spellings that reduce to
// it, the pinyin and English names, and Chinese_name aliases from the
// key file. Later herbs win on direct-name collisions; aliases never
// overwrite an existing entry.
func BuildNameIndex(herbs []domain.Herb, aliases []domain.KeyAlias) *NameIndex {
	byName := make(map[string]int, len(herbs)*3)

	for _, h := range herbs {
		if h.ChineseName != "" {
			byName[h.ChineseName] = h.ID
			for trad, simp := range herbPhraseTable {
				if simp == h.ChineseName {
					byName[trad] = h.ID
				}
			}
		}
		if h.PinyinName != "" {
			byName[h.PinyinName] = h.ID
		}
		if h.EnglishName != "" {
			byName[h.EnglishName] = h.ID
		}
	}

	for _, a := range aliases {
		if a.Field != fieldChineseName || a.Value == "" {
			continue
		}
		if _, ok := byName[a.Value]; !ok {
			byName[a.Value] = a.EntityID
		}
	}

	return &NameIndex{byName: byName}
}

// Len reports how many distinct spellings the index knows.
func (ix *NameIndex) Len() int {
	return len(ix.byName)
}

// Lookup resolves a herb name, falling back to its simplified form.
func (ix *NameIndex) Lookup(name string) (int, bool) {
	if id, ok := ix.byName[name]; ok {
		return id, true
	}
	id, ok := ix.byName[ToSimplified(name)]
	return id, ok
}

// Match resolves each name against the index. Matched names keep the
// spelling they arrived with, not the simplified form that resolved.
func (ix *NameIndex) Match(names []string) domain.ComboMatch {
	var m domain.ComboMatch
	for _, name := range names {
		if id, ok := ix.Lookup(name); ok {
			m.HerbIDs = append(m.HerbIDs, id)
			m.Matched = append(m.Matched, name)
		} else {
			m.Unmatched = append(m.Unmatched, name)
		}
	}
	return m
}

// ParseCombo splits a 、-separated herb combination into trimmed names.
func ParseCombo(combo string) []string {
	var herbs []string
	for _, part := range strings.Split(combo, "、") {
		if part = strings.TrimSpace(part); part != "" {
			herbs = append(herbs, part)
		}
	}
	return herbs
}

// ComboAnalysis is the match outcome for one combination row.
type ComboAnalysis struct {
	Combo domain.HerbCombo
	Core  domain.ComboMatch
	Sub   domain.ComboMatch
}

// Analyze matches both sides of every combination row.
func (ix *NameIndex) Analyze(combos []domain.HerbCombo) []ComboAnalysis {
	results := make([]ComboAnalysis, 0, len(combos))
	for _, c := range combos {
		results = append(results, ComboAnalysis{
			Combo: c,
			Core:  ix.Match(ParseCombo(c.CoreCombo)),
			Sub:   ix.Match(ParseCombo(c.TopSubstitutes)),
		})
	}
	return results
}
