package contract

import (
	"errors"
	"reflect"
	"testing"
)

func TestTableRoundTrip(t *testing.T) {
	headers := []string{"Item", "Amount", "Due"}
	rows := [][]string{
		{"Monthly fee", "GBP 4,500", "Net 30"},
		{"Setup", "", "On signature"},
	}

	parsedHeaders, parsedRows := ParseTable(RenderTable(headers, rows))

	if !reflect.DeepEqual(parsedHeaders, headers) {
		t.Errorf("headers round-trip mismatch: got %v want %v", parsedHeaders, headers)
	}
	if !reflect.DeepEqual(parsedRows, rows) {
		t.Errorf("rows round-trip mismatch: got %v want %v", parsedRows, rows)
	}
}

func TestTableRoundTripIdempotentModuloMarker(t *testing.T) {
	headers := []string{"Clause", "Value"}
	rows := [][]string{{"Fee", "100 & <extras>"}}

	once := RenderTable(headers, rows)
	h, r := ParseTable(once)
	twice := RenderTable(h, r)

	if once != twice {
		t.Errorf("render/parse/render not idempotent:\n%s\n%s", once, twice)
	}
}

func TestParseTableMalformedInput(t *testing.T) {
	for _, input := range []string{"", "<p>not a table</p>", "<table></table>"} {
		headers, rows := ParseTable(input)
		if len(headers) != 0 || len(rows) != 0 {
			t.Errorf("ParseTable(%q) = %v, %v; want empty", input, headers, rows)
		}
	}
}

func TestTableAddColumnKeepsRectangularity(t *testing.T) {
	var reported string
	table := NewTable(RenderTable([]string{"A"}, [][]string{{"1"}, {"2"}}), func(s string) {
		reported = s
	})

	table.AddColumn("B")

	if len(table.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(table.Headers))
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Headers) {
			t.Errorf("row %d has %d cells, want %d", i, len(row), len(table.Headers))
		}
	}
	if reported != table.HTML() {
		t.Errorf("onChange not reported after AddColumn")
	}

	parsedHeaders, parsedRows := ParseTable(table.HTML())
	if !reflect.DeepEqual(parsedHeaders, []string{"A", "B"}) {
		t.Errorf("serialized form stale after AddColumn: %v", parsedHeaders)
	}
	if !reflect.DeepEqual(parsedRows, [][]string{{"1", ""}, {"2", ""}}) {
		t.Errorf("serialized rows stale after AddColumn: %v", parsedRows)
	}
}

func TestTableRemoveColumn(t *testing.T) {
	table := NewTable(RenderTable([]string{"A", "B"}, [][]string{{"1", "2"}}), nil)

	if err := table.RemoveColumn(0); err != nil {
		t.Fatalf("RemoveColumn: %v", err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"B"}) {
		t.Errorf("headers after remove: %v", table.Headers)
	}
	if !reflect.DeepEqual(table.Rows, [][]string{{"2"}}) {
		t.Errorf("rows after remove: %v", table.Rows)
	}

	if err := table.RemoveColumn(0); !errors.Is(err, ErrLastColumn) {
		t.Errorf("removing last column: got %v, want ErrLastColumn", err)
	}
}

func TestTableRemoveRowNoRows(t *testing.T) {
	table := NewTable(RenderTable([]string{"A"}, nil), nil)
	before := table.HTML()

	table.RemoveRow(0)

	if table.HTML() != before {
		t.Error("RemoveRow mutated a table with zero rows")
	}
}

func TestTableStructuralEditsResync(t *testing.T) {
	table := NewTable(RenderTable([]string{"A"}, [][]string{{"x"}}), nil)

	table.SetHeader(0, "Amount")
	table.SetCell(0, 0, "99")
	table.AddRow()

	headers, rows := ParseTable(table.HTML())
	if !reflect.DeepEqual(headers, []string{"Amount"}) {
		t.Errorf("headers not resynced: %v", headers)
	}
	if !reflect.DeepEqual(rows, [][]string{{"99"}, {""}}) {
		t.Errorf("rows not resynced: %v", rows)
	}
}
