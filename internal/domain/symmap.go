package domain

// Herb is one row of the SymMap herb table (SMHB).
type Herb struct {
	ID           int
	ChineseName  string
	PinyinName   string
	LatinName    string
	EnglishName  string
	PropertiesCN string
	PropertiesEN string
	MeridiansCN  string
	MeridiansEN  string
	ClassCN      string
	ClassEN      string
	TCMSPID      string
}

// Ingredient is one row of the SymMap ingredient table (SMIT).
// LinkIngredientID joins back to Herb.TCMSPID.
type Ingredient struct {
	MolID            int
	MoleculeName     string
	MoleculeFormula  string
	MoleculeWeight   string
	PubChemCID       string
	CASID            string
	OBScore          string
	Type             string
	LinkIngredientID string
}

// Target is one row of the SymMap target table (SMTT). NCBIID carries
// the external NCBI gene id as a normalized digit string; it is empty
// for targets SymMap never linked.
type Target struct {
	GeneID      int
	GeneSymbol  string
	GeneName    string
	ProteinName string
	NCBIID      string
}

// KeyAlias is one row of a SymMap key file: an alternative value for a
// named field of an entity (SMHB key, SMIT key).
type KeyAlias struct {
	EntityID int
	Field    string
	Value    string
}

// MasterRecord is one herb-ingredient pairing in the integrated master
// table. Herbs without linked ingredients keep a single record with
// MolID nil.
type MasterRecord struct {
	HerbID       int
	HerbChinese  string
	HerbPinyin   string
	HerbLatin    string
	HerbEnglish  string
	PropertiesCN string
	PropertiesEN string
	MeridiansCN  string
	MeridiansEN  string
	ClassCN      string
	ClassEN      string
	TCMSPID      string

	MolID           *int
	MoleculeName    string
	MoleculeFormula string
	MoleculeWeight  string
	PubChemCID      string
	CASID           string
	OBScore         string
	MoleculeType    string

	HerbAliases     string
	MoleculeAliases string
}

// HasIngredient reports whether this record carries an ingredient half.
func (r *MasterRecord) HasIngredient() bool {
	return r != nil && r.MolID != nil
}

// HerbCombo is one row of the core-combination index: a community's core
// herb combination plus its top substitute pairing, both 、-separated.
type HerbCombo struct {
	Community      string
	CoreIndex      string
	CoreCombo      string
	TopSubstitutes string
}

// ComboMatch is the SymMap match outcome for one side (core or
// substitute) of a combination.
type ComboMatch struct {
	HerbIDs   []int
	Matched   []string
	Unmatched []string
}

func (m ComboMatch) Total() int {
	return len(m.Matched) + len(m.Unmatched)
}

func (m ComboMatch) MatchRate() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	return float64(len(m.Matched)) / float64(total)
}
