package contract

import (
	"fmt"
	"regexp"
	"strings"
)

// TemplateSection is a named, delimited span inside a template's flat
// generated text, independent of the cell model. Sections drive the
// field-driven preview flow.
type TemplateSection struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Visible         bool   `json:"visible"`
	OriginalContent string `json:"originalContent"`
}

// AdHocClause is a user- or AI-appended clause not tied to any template
// section. Ad-hoc clauses render after all sections and are renumbered on
// every render, never stored with numbers.
type AdHocClause struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AdHocHeading is the literal heading ad-hoc clauses render under.
const AdHocHeading = "--- AD-HOC CLAUSES ---"

var (
	sectionStartPattern = regexp.MustCompile(`<!--\s*SECTION_START:\s*([A-Za-z0-9_-]+)\s*-->`)
	anyMarkerPattern    = regexp.MustCompile(`<!--\s*SECTION_(?:START|END):\s*[A-Za-z0-9_-]+\s*-->`)
	gapPattern          = regexp.MustCompile(`\n{3,}`)
)

func sectionSpanPattern(id string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(id)
	return regexp.MustCompile(
		`(?s)<!--\s*SECTION_START:\s*` + quoted + `\s*-->.*?<!--\s*SECTION_END:\s*` + quoted + `\s*-->`)
}

// ExtractSections scans flat text for SECTION_START/SECTION_END marker pairs
// matched by id, in document order. A start marker with no matching end
// yields no section; malformed markers are tolerated, never fatal.
func ExtractSections(flat string) []TemplateSection {
	var sections []TemplateSection
	for _, match := range sectionStartPattern.FindAllStringSubmatch(flat, -1) {
		id := match[1]
		span := sectionSpanPattern(id).FindString(flat)
		if span == "" {
			continue
		}
		inner := anyMarkerPattern.ReplaceAllString(span, "")
		sections = append(sections, TemplateSection{
			ID:              id,
			Title:           HumanizeID(id),
			Visible:         true,
			OriginalContent: strings.TrimSpace(inner),
		})
	}
	return sections
}

// HumanizeID turns a snake/kebab slug into a Title Case heading.
func HumanizeID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// RenderVisible derives the printable document from the flat template text:
// spans of invisible sections are removed wholesale (markers and body), every
// remaining marker is stripped, runs of three or more newlines collapse to
// two, and ad-hoc clauses are appended under the fixed heading, numbered in
// current list order. The result is trimmed.
func RenderVisible(flat string, sections []TemplateSection, clauses []AdHocClause) string {
	out := flat
	for _, section := range sections {
		if section.Visible {
			continue
		}
		out = sectionSpanPattern(section.ID).ReplaceAllString(out, "")
	}
	out = anyMarkerPattern.ReplaceAllString(out, "")
	out = gapPattern.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)

	if len(clauses) > 0 {
		var b strings.Builder
		b.WriteString(out)
		b.WriteString("\n\n")
		b.WriteString(AdHocHeading)
		for i, clause := range clauses {
			fmt.Fprintf(&b, "\n\n%d. %s", i+1, clause.Text)
		}
		out = strings.TrimSpace(b.String())
	}
	return out
}
