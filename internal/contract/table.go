package contract

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// ErrLastColumn is returned when a structural edit would leave a table with
// no columns.
var ErrLastColumn = errors.New("table must keep at least one column")

// Inline styles used by the serialized table form. Values are wrapped in the
// variable marker so interpolated field data stands out in the rendered
// document; the parser strips the wrapper back off.
const (
	tableStyle  = "border-collapse:collapse;width:100%;font-family:Georgia,serif"
	headerStyle = "border:1px solid #d1d5db;padding:8px;background-color:#f3f4f6;text-align:left"
	cellStyle   = "border:1px solid #d1d5db;padding:8px"
	markerStyle = "font-weight:bold;color:#1a56db"
)

var (
	theadPattern = regexp.MustCompile(`(?si)<thead[^>]*>(.*?)</thead>`)
	tbodyPattern = regexp.MustCompile(`(?si)<tbody[^>]*>(.*?)</tbody>`)
	rowPattern   = regexp.MustCompile(`(?si)<tr[^>]*>(.*?)</tr>`)
	thPattern    = regexp.MustCompile(`(?si)<th[^>]*>(.*?)</th>`)
	tdPattern    = regexp.MustCompile(`(?si)<td[^>]*>(.*?)</td>`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
)

// ParseTable extracts the structured form of a serialized <table> string:
// header texts in document order and each body row's cell texts with tags
// stripped. Styling wrappers around values parse back to plain text, so the
// codec round-trips modulo the variable marker. Malformed input degrades to
// an empty header/row set: a brand-new empty-table placeholder must not be an
// error.
func ParseTable(tableHTML string) (headers []string, rows [][]string) {
	headers = []string{}
	rows = [][]string{}

	head := theadPattern.FindStringSubmatch(tableHTML)
	if head != nil {
		for _, th := range thPattern.FindAllStringSubmatch(head[1], -1) {
			headers = append(headers, stripTags(th[1]))
		}
	}

	body := tbodyPattern.FindStringSubmatch(tableHTML)
	if body != nil {
		for _, tr := range rowPattern.FindAllStringSubmatch(body[1], -1) {
			var row []string
			for _, td := range tdPattern.FindAllStringSubmatch(tr[1], -1) {
				row = append(row, stripTags(td[1]))
			}
			if row != nil {
				rows = append(rows, row)
			}
		}
	}
	return headers, rows
}

// RenderTable emits the deterministic standalone serialized form. Every
// non-empty value is wrapped in the variable marker; an empty value renders
// as an empty cell.
func RenderTable(headers []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<table style="%s">`, tableStyle)
	b.WriteString("<thead><tr>")
	for _, h := range headers {
		fmt.Fprintf(&b, `<th style="%s">%s</th>`, headerStyle, html.EscapeString(h))
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, value := range row {
			if value == "" {
				fmt.Fprintf(&b, `<td style="%s"></td>`, cellStyle)
				continue
			}
			fmt.Fprintf(&b, `<td style="%s"><span style="%s">%s</span></td>`,
				cellStyle, markerStyle, html.EscapeString(value))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func stripTags(fragment string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(fragment, "")))
}

// Table holds the structured state of one table cell. Every structural edit
// re-serializes immediately, so HTML() is never stale relative to the
// headers/rows pair, and the new serialized form is reported through the
// onChange hook.
type Table struct {
	Headers []string
	Rows    [][]string

	html     string
	onChange func(serialized string)
}

// NewTable parses the serialized form into an editable table. onChange may be
// nil.
func NewTable(tableHTML string, onChange func(string)) *Table {
	headers, rows := ParseTable(tableHTML)
	t := &Table{Headers: headers, Rows: rows, onChange: onChange}
	t.html = RenderTable(t.Headers, t.Rows)
	return t
}

// HTML returns the current serialized form.
func (t *Table) HTML() string {
	return t.html
}

func (t *Table) resync() {
	t.html = RenderTable(t.Headers, t.Rows)
	if t.onChange != nil {
		t.onChange(t.html)
	}
}

// AddRow appends an empty row matching the header count.
func (t *Table) AddRow() {
	t.Rows = append(t.Rows, make([]string, len(t.Headers)))
	t.resync()
}

// RemoveRow deletes the row at index; out-of-range indexes (including any
// index when no rows exist) are a no-op.
func (t *Table) RemoveRow(index int) {
	if index < 0 || index >= len(t.Rows) {
		return
	}
	t.Rows = append(t.Rows[:index], t.Rows[index+1:]...)
	t.resync()
}

// AddColumn appends a header and an empty value to every existing row,
// preserving rectangularity.
func (t *Table) AddColumn(header string) {
	t.Headers = append(t.Headers, header)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	t.resync()
}

// RemoveColumn deletes the column at index from the headers and every row.
// Removing the last remaining column is rejected.
func (t *Table) RemoveColumn(index int) error {
	if len(t.Headers) <= 1 {
		return ErrLastColumn
	}
	if index < 0 || index >= len(t.Headers) {
		return nil
	}
	t.Headers = append(t.Headers[:index], t.Headers[index+1:]...)
	for i, row := range t.Rows {
		if index < len(row) {
			t.Rows[i] = append(row[:index], row[index+1:]...)
		}
	}
	t.resync()
	return nil
}

// SetHeader replaces the header text at index.
func (t *Table) SetHeader(index int, value string) {
	if index < 0 || index >= len(t.Headers) {
		return
	}
	t.Headers[index] = value
	t.resync()
}

// SetCell replaces the value at row/column.
func (t *Table) SetCell(row, col int, value string) {
	if row < 0 || row >= len(t.Rows) {
		return
	}
	if col < 0 || col >= len(t.Rows[row]) {
		return
	}
	t.Rows[row][col] = value
	t.resync()
}
