package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CellDelimiter separates cell contents in the flat text sent to the external
// rewriter. The join and split steps must agree on this literal byte for
// byte; it is multi-line and improbable in legal prose so an honest rewrite
// passes it through untouched.
const CellDelimiter = "\n\n[[---LEXDRAFT-CELL-BREAK---]]\n\n"

// ErrStructureNotPreserved is returned when the rewritten text does not split
// back into exactly one part per visible cell. The document is left
// untouched.
var ErrStructureNotPreserved = errors.New("rewritten text did not preserve the cell structure")

// Rewriter is the external renumbering capability: full document text in,
// full document text out. It is instructed, best-effort, to keep the
// delimiter verbatim; nothing else is guaranteed.
type Rewriter interface {
	Renumber(ctx context.Context, text string) (string, error)
}

// Renumberer reconciles an externally renumbered flat document back onto the
// per-cell structure it was built from.
type Renumberer struct {
	rewriter Rewriter
}

func NewRenumberer(rewriter Rewriter) *Renumberer {
	return &Renumberer{rewriter: rewriter}
}

// Run joins the visible cells' content in visible order, sends it through the
// rewriter, and redistributes the result. The outcome is all-or-nothing: the
// split parts are applied only when their count exactly equals the visible
// cell count captured at join time. On any failure no cell is mutated.
// Hidden cells are never sent and never rewritten. The operation is not
// retried; callers keep at most one instance in flight per document.
func (r *Renumberer) Run(ctx context.Context, doc *Document) error {
	visible := doc.VisibleCells()
	if len(visible) == 0 {
		return nil
	}

	ids := make([]string, len(visible))
	pieces := make([]string, len(visible))
	for i, c := range visible {
		ids[i] = c.ID
		pieces[i] = c.Content
	}

	rewritten, err := r.rewriter.Renumber(ctx, strings.Join(pieces, CellDelimiter))
	if err != nil {
		return fmt.Errorf("renumber rewrite: %w", err)
	}

	parts := strings.Split(rewritten, CellDelimiter)
	if len(parts) != len(ids) {
		return fmt.Errorf("%w: expected %d parts, got %d", ErrStructureNotPreserved, len(ids), len(parts))
	}

	// Single whole-list replacement keyed by the captured id order.
	next := make([]Cell, len(doc.Cells()))
	copy(next, doc.Cells())
	for i, id := range ids {
		content := strings.TrimSpace(parts[i])
		for j := range next {
			if next[j].ID == id {
				next[j].Content = content
				next[j].Kind = DetectKind(content)
				break
			}
		}
	}
	doc.Replace(next)
	return nil
}
