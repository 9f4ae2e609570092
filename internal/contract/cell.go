// Package contract implements the contract-cell document model: an ordered
// collection of independently toggleable rich-text and table blocks, the
// codecs that keep each block's serialized HTML in sync with its structured
// state, and the reconciliation that maps an externally rewritten flat
// document back onto the per-cell structure.
package contract

import (
	"strings"

	"lexdraft/api/internal/util"
)

// Kind distinguishes the two cell content forms. It is computed when content
// changes rather than re-sniffed on every render.
type Kind string

const (
	KindRichText Kind = "richtext"
	KindTable    Kind = "table"
)

// Cell is the atomic unit of a contract: a block of serialized HTML with an
// identity that stays stable across reorders and round-trips.
type Cell struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Visible bool   `json:"visible"`
	Kind    Kind   `json:"kind"`
}

// DetectKind classifies content: a fragment whose trimmed form starts with a
// table-opening tag is a table cell, everything else is rich text.
func DetectKind(content string) Kind {
	if strings.HasPrefix(strings.TrimSpace(content), "<table") {
		return KindTable
	}
	return KindRichText
}

// NewCell mints a visible cell with a fresh id and a kind derived from the
// content.
func NewCell(title, content string) Cell {
	return Cell{
		ID:      util.NewCellID(),
		Title:   title,
		Content: content,
		Visible: true,
		Kind:    DetectKind(content),
	}
}
