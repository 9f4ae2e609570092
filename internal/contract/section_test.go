package contract

import (
	"strings"
	"testing"
)

const markedText = `PREAMBLE

<!-- SECTION_START: payment_terms -->
1. PAYMENT TERMS

Invoices are due net 30.
<!-- SECTION_END: payment_terms -->

<!-- SECTION_START: governing-law -->
2. GOVERNING LAW

This Agreement is governed by the laws of England.
<!-- SECTION_END: governing-law -->

CLOSING`

func TestExtractSections(t *testing.T) {
	sections := ExtractSections(markedText)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}

	if sections[0].ID != "payment_terms" || sections[0].Title != "Payment Terms" {
		t.Errorf("first section: %+v", sections[0])
	}
	if sections[1].ID != "governing-law" || sections[1].Title != "Governing Law" {
		t.Errorf("second section: %+v", sections[1])
	}
	if !sections[0].Visible || !sections[1].Visible {
		t.Error("sections must default to visible")
	}
	if !strings.HasPrefix(sections[0].OriginalContent, "1. PAYMENT TERMS") {
		t.Errorf("original content not captured: %q", sections[0].OriginalContent)
	}
}

func TestExtractSectionsUnmatchedMarker(t *testing.T) {
	text := "before\n<!-- SECTION_START: dangling -->\nbody without end marker"
	if sections := ExtractSections(text); len(sections) != 0 {
		t.Errorf("unmatched marker yielded sections: %v", sections)
	}
}

func TestRenderVisibleRemovesHiddenSection(t *testing.T) {
	sections := ExtractSections(markedText)
	sections[0].Visible = false

	out := RenderVisible(markedText, sections, nil)

	if strings.Contains(out, "PAYMENT TERMS") {
		t.Error("hidden section body survived rendering")
	}
	if strings.Contains(out, "SECTION_START") || strings.Contains(out, "SECTION_END") {
		t.Error("markers survived rendering")
	}
	if !strings.Contains(out, "GOVERNING LAW") {
		t.Error("visible section removed")
	}
	if strings.Contains(out, "\n\n\n") {
		t.Error("newline gaps not collapsed")
	}
	if out != strings.TrimSpace(out) {
		t.Error("output not trimmed")
	}
}

func TestRenderVisibleIdempotent(t *testing.T) {
	sections := ExtractSections(markedText)
	sections[0].Visible = false

	once := RenderVisible(markedText, sections, nil)
	twice := RenderVisible(once, sections, nil)

	if once != twice {
		t.Errorf("render not idempotent:\n%q\n%q", once, twice)
	}
}

func TestRenderVisibleAdHocNumbering(t *testing.T) {
	clauses := []AdHocClause{
		{ID: "z9", Text: "First extra clause."},
		{ID: "a1", Text: "Second extra clause."},
	}

	out := RenderVisible(markedText, ExtractSections(markedText), clauses)

	if !strings.Contains(out, AdHocHeading) {
		t.Fatal("ad-hoc heading missing")
	}
	if !strings.Contains(out, "1. First extra clause.") {
		t.Error("first clause not numbered 1 regardless of id")
	}
	if !strings.Contains(out, "2. Second extra clause.") {
		t.Error("second clause not numbered 2 regardless of id")
	}
	if strings.Index(out, "1. First") > strings.Index(out, "2. Second") {
		t.Error("clauses out of list order")
	}
}

func TestHumanizeID(t *testing.T) {
	cases := map[string]string{
		"payment_terms":   "Payment Terms",
		"governing-law":   "Governing Law",
		"ip":              "Ip",
		"FORCE_MAJEURE":   "Force Majeure",
		"mixed-case_slug": "Mixed Case Slug",
	}
	for in, want := range cases {
		if got := HumanizeID(in); got != want {
			t.Errorf("HumanizeID(%q) = %q, want %q", in, got, want)
		}
	}
}
