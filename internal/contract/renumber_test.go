package contract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRewriter struct {
	fn    func(text string) (string, error)
	calls int
	sent  string
}

func (f *fakeRewriter) Renumber(_ context.Context, text string) (string, error) {
	f.calls++
	f.sent = text
	return f.fn(text)
}

func TestRenumberHappyPath(t *testing.T) {
	doc := NewDocument("k1", testCells())
	rewriter := &fakeRewriter{fn: func(text string) (string, error) {
		parts := strings.Split(text, CellDelimiter)
		for i := range parts {
			parts[i] = "  rewritten " + parts[i] + " \n"
		}
		return strings.Join(parts, CellDelimiter), nil
	}}

	if err := NewRenumberer(rewriter).Run(context.Background(), doc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cells := doc.Cells()
	if cells[0].Content != "rewritten <p>alpha</p>" {
		t.Errorf("visible cell 0 not rewritten and trimmed: %q", cells[0].Content)
	}
	if cells[2].Content != "rewritten <p>charlie</p>" {
		t.Errorf("visible cell 1 not rewritten: %q", cells[2].Content)
	}
	if cells[1].Content != "<p>bravo</p>" {
		t.Errorf("hidden cell mutated: %q", cells[1].Content)
	}
	if strings.Contains(rewriter.sent, "bravo") {
		t.Error("hidden cell content was sent to the rewriter")
	}
}

func TestRenumberAllOrNothingOnPartCountMismatch(t *testing.T) {
	doc := NewDocument("k1", []Cell{
		{ID: "a", Content: "<p>one</p>", Visible: true},
		{ID: "b", Content: "<p>two</p>", Visible: true},
		{ID: "c", Content: "<p>three</p>", Visible: true},
	})
	before := doc.Cells()

	// The rewriter collapses the document into two parts.
	rewriter := &fakeRewriter{fn: func(string) (string, error) {
		return "first" + CellDelimiter + "second", nil
	}}

	err := NewRenumberer(rewriter).Run(context.Background(), doc)
	if !errors.Is(err, ErrStructureNotPreserved) {
		t.Fatalf("expected ErrStructureNotPreserved, got %v", err)
	}

	for i, c := range doc.Cells() {
		if c.Content != before[i].Content {
			t.Errorf("cell %s mutated after rejected reconciliation", c.ID)
		}
	}
}

func TestRenumberRewriterFailure(t *testing.T) {
	doc := NewDocument("k1", testCells())
	before := doc.Cells()

	rewriter := &fakeRewriter{fn: func(string) (string, error) {
		return "", errors.New("upstream exploded")
	}}

	if err := NewRenumberer(rewriter).Run(context.Background(), doc); err == nil {
		t.Fatal("expected error from failed rewrite")
	}
	for i, c := range doc.Cells() {
		if c.Content != before[i].Content {
			t.Errorf("cell %s mutated after failed rewrite", c.ID)
		}
	}
	if rewriter.calls != 1 {
		t.Errorf("rewrite retried: %d calls", rewriter.calls)
	}
}

func TestRenumberNoVisibleCells(t *testing.T) {
	doc := NewDocument("k1", []Cell{{ID: "a", Content: "<p>x</p>", Visible: false}})
	rewriter := &fakeRewriter{fn: func(text string) (string, error) { return text, nil }}

	if err := NewRenumberer(rewriter).Run(context.Background(), doc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rewriter.calls != 0 {
		t.Error("rewriter called for a document with no visible cells")
	}
}

func TestRenumberJoinsInVisibleOrder(t *testing.T) {
	doc := NewDocument("k1", []Cell{
		{ID: "c", Content: "third", Visible: true},
		{ID: "a", Content: "first", Visible: false},
		{ID: "b", Content: "second", Visible: true},
	})
	rewriter := &fakeRewriter{fn: func(text string) (string, error) { return text, nil }}

	if err := NewRenumberer(rewriter).Run(context.Background(), doc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "third" + CellDelimiter + "second"
	if rewriter.sent != want {
		t.Errorf("joined text %q, want %q", rewriter.sent, want)
	}
}
