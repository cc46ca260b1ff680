package prompt

import (
	"strings"
	"testing"
)

func TestBuildDiseaseTranslateEmbedsContextAndTerm(t *testing.T) {
	pb := NewPromptBuilder()

	got, err := pb.BuildDiseaseTranslate("傷寒之為病，必先惡寒。", "治頭痛")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(got, "--- 上下文開始 ---\n傷寒之為病，必先惡寒。\n--- 上下文結束 ---") {
		t.Fatalf("context block missing or malformed:\n%s", got)
	}
	if !strings.Contains(got, "「治頭痛」") {
		t.Fatalf("term missing from prompt:\n%s", got)
	}
}

func TestBuildDiseaseTranslateEmptyContextKeepsSkeleton(t *testing.T) {
	pb := NewPromptBuilder()

	got, err := pb.BuildDiseaseTranslate("", "頭痛")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// The skeleton keeps its markers so token budgeting measures the
	// same template the final prompt uses.
	if !strings.Contains(got, "--- 上下文開始 ---\n\n--- 上下文結束 ---") {
		t.Fatalf("expected empty context block in skeleton:\n%s", got)
	}
}

func TestBuildHerbTranslate(t *testing.T) {
	pb := NewPromptBuilder()

	got, err := pb.BuildHerbTranslate("當歸")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(got, "中文藥材名稱：當歸") {
		t.Fatalf("herb name missing from prompt:\n%s", got)
	}
	if !strings.HasSuffix(got, "英文翻譯：") {
		t.Fatalf("prompt should end with the completion cue, got:\n%s", got)
	}
}

func TestRenderTemplateIsCached(t *testing.T) {
	pb := NewPromptBuilder()

	first, err := pb.BuildHerbTranslate("黃芪")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := pb.BuildHerbTranslate("黃芪")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first != second {
		t.Fatalf("repeated renders must match")
	}
}

func TestRenderUnknownTemplateFails(t *testing.T) {
	pb := NewPromptBuilder()

	if _, err := pb.Render(TemplateName("missing.tmpl"), nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}
