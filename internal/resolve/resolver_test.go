package resolve

import (
	stderrors "errors"
	"testing"

	"go.uber.org/zap"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
)

func testTable() []domain.ControlRecord {
	return []domain.ControlRecord{
		{Volume: 1, Section: "傷寒", Content: "卷一傷寒總論之上下文"},
		{Volume: 1, Section: "雜病", Content: "卷一雜病之上下文"},
		{Volume: 3, Section: "婦人", Content: "卷三婦人之上下文"},
		{Volume: 7, Section: "小兒", Content: "卷七小兒之上下文"},
	}
}

func TestResolveExactMatch(t *testing.T) {
	r := NewResolver(testTable(), zap.NewNop())

	result, err := r.Resolve(1, "雜病")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Level != domain.FallbackExact {
		t.Fatalf("expected exact match, got level %s", result.Level)
	}
	if result.Context != "卷一雜病之上下文" {
		t.Fatalf("unexpected context: %q", result.Context)
	}
	if result.ActualVolume != 1 || result.ActualSection != "雜病" {
		t.Fatalf("expected actual pair to equal requested pair, got volume %d section %q",
			result.ActualVolume, result.ActualSection)
	}
}

func TestResolveSameVolumeFallbackTakesFirstInTableOrder(t *testing.T) {
	r := NewResolver(testTable(), zap.NewNop())

	result, err := r.Resolve(1, "針灸")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Level != domain.FallbackSameVolume {
		t.Fatalf("expected same-volume fallback, got level %s", result.Level)
	}
	if result.ActualSection != "傷寒" {
		t.Fatalf("expected first section of volume 1 in table order, got %q", result.ActualSection)
	}
	if result.ActualVolume != 1 {
		t.Fatalf("expected volume 1, got %d", result.ActualVolume)
	}
	if !result.Level.IsFallback() {
		t.Fatalf("level 1 should count as fallback")
	}
}

func TestResolveNearestVolumeFallback(t *testing.T) {
	r := NewResolver(testTable(), zap.NewNop())

	result, err := r.Resolve(6, "外科")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Level != domain.FallbackNearestVolume {
		t.Fatalf("expected nearest-volume fallback, got level %s", result.Level)
	}
	if result.ActualVolume != 7 {
		t.Fatalf("expected volume 7 (distance 1 beats distance 3), got %d", result.ActualVolume)
	}
	if result.ActualSection != "小兒" {
		t.Fatalf("unexpected section %q", result.ActualSection)
	}
}

func TestResolveNearestVolumeTieGoesToLowerVolume(t *testing.T) {
	r := NewResolver(testTable(), zap.NewNop())

	// Volume 5 is equidistant from 3 and 7.
	result, err := r.Resolve(5, "外科")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.ActualVolume != 3 {
		t.Fatalf("expected tie to resolve to lower volume 3, got %d", result.ActualVolume)
	}

	// The outcome must not depend on table ordering.
	reversed := []domain.ControlRecord{
		{Volume: 7, Section: "小兒", Content: "卷七小兒之上下文"},
		{Volume: 3, Section: "婦人", Content: "卷三婦人之上下文"},
	}
	result, err = NewResolver(reversed, zap.NewNop()).Resolve(5, "外科")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.ActualVolume != 3 {
		t.Fatalf("expected lower volume 3 regardless of table order, got %d", result.ActualVolume)
	}
}

func TestResolveEmptyTableFails(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	result, err := r.Resolve(1, "傷寒")
	if err == nil {
		t.Fatalf("expected resolution error for empty table")
	}
	if result.Level != domain.FallbackFailed {
		t.Fatalf("expected failed level, got %s", result.Level)
	}

	var resErr *errors.ResolutionError
	if !stderrors.As(err, &resErr) {
		t.Fatalf("expected *errors.ResolutionError, got %T", err)
	}
	if resErr.Volume != 1 || resErr.Section != "傷寒" {
		t.Fatalf("expected error to carry requested pair, got volume %d section %q",
			resErr.Volume, resErr.Section)
	}
}

func TestResolveEmptyContentFailsWithoutCascading(t *testing.T) {
	// The exact match exists but its paragraph is blank. A usable
	// same-volume record follows it, yet resolution must fail instead of
	// sliding to the next level.
	table := []domain.ControlRecord{
		{Volume: 1, Section: "傷寒", Content: "   "},
		{Volume: 1, Section: "雜病", Content: "卷一雜病之上下文"},
	}
	r := NewResolver(table, zap.NewNop())

	result, err := r.Resolve(1, "傷寒")
	if err == nil {
		t.Fatalf("expected failure for blank paragraph, got context %q", result.Context)
	}
	if result.Level != domain.FallbackFailed {
		t.Fatalf("expected failed level, got %s", result.Level)
	}
}

func TestResolveEmptyContentAtFallbackLevelAlsoFails(t *testing.T) {
	// Level 1 selects volume 2's first record, whose paragraph is blank.
	// Volume 9 has usable content but level 2 must not be consulted.
	table := []domain.ControlRecord{
		{Volume: 2, Section: "傷寒", Content: ""},
		{Volume: 9, Section: "雜病", Content: "卷九雜病之上下文"},
	}
	r := NewResolver(table, zap.NewNop())

	_, err := r.Resolve(2, "針灸")
	if err == nil {
		t.Fatalf("expected failure when level-1 record is blank")
	}
}

func TestResolveFirstMatchingRecordWins(t *testing.T) {
	table := []domain.ControlRecord{
		{Volume: 4, Section: "本草", Content: "第一筆"},
		{Volume: 4, Section: "本草", Content: "第二筆"},
	}
	r := NewResolver(table, zap.NewNop())

	result, err := r.Resolve(4, "本草")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Context != "第一筆" {
		t.Fatalf("expected first record in table order, got %q", result.Context)
	}
}

func TestResolveIsRepeatable(t *testing.T) {
	r := NewResolver(testTable(), zap.NewNop())

	first, err := r.Resolve(5, "外科")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := r.Resolve(5, "外科")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results for identical input, got %+v and %+v", first, second)
	}
}
