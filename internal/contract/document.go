package contract

// Direction selects a move target relative to a cell's current position.
type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

// Insertion boundary markers accepted by InsertCell in place of a cell id.
const (
	AtStart = "start"
	AtEnd   = "end"
)

// Document owns the ordered cell list for a single editing session. The full
// list order is canonical; the visible order is the subsequence of cells with
// Visible=true. There is exactly one writer per document, and every mutation
// replaces the whole slice, so readers holding a snapshot from Cells() never
// observe a partial update.
type Document struct {
	ContractID string
	TemplateID string
	Variant    string
	Fields     map[string]string
	cells      []Cell
}

// NewDocument creates a document over an initial cell list.
func NewDocument(contractID string, cells []Cell) *Document {
	d := &Document{ContractID: contractID}
	d.Replace(cells)
	return d
}

// Cells returns the current snapshot. Callers must not mutate it.
func (d *Document) Cells() []Cell {
	return d.cells
}

// Replace swaps in a whole new cell list.
func (d *Document) Replace(cells []Cell) {
	next := make([]Cell, len(cells))
	copy(next, cells)
	d.cells = next
}

// VisibleCells returns the visible subsequence in document order.
func (d *Document) VisibleCells() []Cell {
	var visible []Cell
	for _, c := range d.cells {
		if c.Visible {
			visible = append(visible, c)
		}
	}
	return visible
}

func (d *Document) indexOf(id string) int {
	for i, c := range d.cells {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// visiblePosition returns the cell's position within the visible subsequence
// and the subsequence length. Position is -1 for hidden or unknown cells.
func (d *Document) visiblePosition(id string) (pos, count int) {
	pos = -1
	for _, c := range d.cells {
		if c.Visible {
			if c.ID == id {
				pos = count
			}
			count++
		}
	}
	return pos, count
}

// InsertCell places cell after the referenced id, or at an explicit boundary
// ("start"/"end"). An unknown reference falls back to appending at the end.
func (d *Document) InsertCell(ref string, cell Cell) {
	next := make([]Cell, 0, len(d.cells)+1)
	switch ref {
	case AtStart:
		next = append(next, cell)
		next = append(next, d.cells...)
	case AtEnd:
		next = append(next, d.cells...)
		next = append(next, cell)
	default:
		at := d.indexOf(ref)
		if at < 0 {
			next = append(next, d.cells...)
			next = append(next, cell)
			break
		}
		next = append(next, d.cells[:at+1]...)
		next = append(next, cell)
		next = append(next, d.cells[at+1:]...)
	}
	d.cells = next
}

// DeleteCell removes the cell by id. Unknown ids are a no-op; confirmation
// is the caller's concern.
func (d *Document) DeleteCell(id string) {
	at := d.indexOf(id)
	if at < 0 {
		return
	}
	next := make([]Cell, 0, len(d.cells)-1)
	next = append(next, d.cells[:at]...)
	next = append(next, d.cells[at+1:]...)
	d.cells = next
}

// MoveCell swaps the cell with its adjacent full-list neighbor. The boundary
// check runs against the visible subsequence: the first visible cell cannot
// move up and the last visible cell cannot move down, but a permitted move
// swaps full-list positions and so can jump over interleaved hidden cells.
// A hidden cell moves with plain full-list boundaries.
func (d *Document) MoveCell(id string, dir Direction) {
	at := d.indexOf(id)
	if at < 0 {
		return
	}
	if d.cells[at].Visible {
		pos, count := d.visiblePosition(id)
		if dir == MoveUp && pos == 0 {
			return
		}
		if dir == MoveDown && pos == count-1 {
			return
		}
	}

	target := at - 1
	if dir == MoveDown {
		target = at + 1
	}
	if target < 0 || target >= len(d.cells) {
		return
	}

	next := make([]Cell, len(d.cells))
	copy(next, d.cells)
	next[at], next[target] = next[target], next[at]
	d.cells = next
}

// SetVisibility toggles a cell in or out of the rendered document. Hidden
// cells stay in the authoring list and are excluded from any AI pass.
func (d *Document) SetVisibility(id string, visible bool) {
	d.update(id, func(c *Cell) {
		c.Visible = visible
	})
}

// SetContent replaces a cell's serialized content and re-derives its kind.
func (d *Document) SetContent(id, content string) {
	d.update(id, func(c *Cell) {
		c.Content = content
		c.Kind = DetectKind(content)
	})
}

// SetTitle replaces a cell's heading.
func (d *Document) SetTitle(id, title string) {
	d.update(id, func(c *Cell) {
		c.Title = title
	})
}

func (d *Document) update(id string, mutate func(*Cell)) {
	at := d.indexOf(id)
	if at < 0 {
		return
	}
	next := make([]Cell, len(d.cells))
	copy(next, d.cells)
	mutate(&next[at])
	d.cells = next
}

// Generate regenerates the entire cell list from the template, discarding all
// prior edits. This is the explicit destructive path taken on template or
// variant change, distinct from incremental edits.
func (d *Document) Generate(tpl *Template, fields map[string]string, variant string) {
	d.TemplateID = tpl.ID
	d.Variant = variant
	d.Fields = fields
	d.Replace(tpl.GenerateCells(fields, variant))
}
