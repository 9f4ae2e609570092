package contract

import (
	"fmt"
	"strings"
)

// FormatCommand names an inline formatting operation on a rich text surface.
type FormatCommand string

const (
	CmdBold      FormatCommand = "bold"
	CmdItalic    FormatCommand = "italic"
	CmdUnderline FormatCommand = "underline"
	CmdFontName  FormatCommand = "fontName"
	CmdFontSize  FormatCommand = "fontSize"
	CmdForeColor FormatCommand = "foreColor"
)

// RichText wraps a free-form HTML fragment as an editable surface. Formatting
// commands mutate the live fragment and synchronously re-derive the
// serialized string, which is reported upward through onChange. External
// writes are applied only when they differ from the adapter's own
// last-reported value, so a programmatic echo never clobbers in-progress
// edits or loops.
type RichText struct {
	html         string
	lastReported string
	disabled     bool
	onChange     func(serialized string)
}

// NewRichText creates an adapter over an initial fragment. onChange may be
// nil.
func NewRichText(initial string, onChange func(string)) *RichText {
	return &RichText{html: initial, lastReported: initial, onChange: onChange}
}

// HTML returns the current serialized fragment.
func (r *RichText) HTML() string {
	return r.html
}

// Disabled reports whether the surface is read-only.
func (r *RichText) Disabled() bool {
	return r.disabled
}

// SetDisabled makes the surface read-only; content stays readable.
func (r *RichText) SetDisabled(disabled bool) {
	r.disabled = disabled
}

// SetHTML writes an external update into the live surface. Incoming values
// equal to the last reported serialization are ignored.
func (r *RichText) SetHTML(value string) {
	if value == r.lastReported {
		return
	}
	r.html = value
	r.lastReported = value
}

// ApplyFormatting runs an inline formatting command over the fragment, then
// reports the new serialization. The toggle commands unwrap the fragment when
// it is already wrapped; the valued commands replace any previous wrapper of
// the same style property. No-op while disabled.
func (r *RichText) ApplyFormatting(cmd FormatCommand, value string) {
	if r.disabled {
		return
	}

	switch cmd {
	case CmdBold:
		r.html = toggleTag(r.html, "b")
	case CmdItalic:
		r.html = toggleTag(r.html, "i")
	case CmdUnderline:
		r.html = toggleTag(r.html, "u")
	case CmdFontName:
		r.html = wrapStyle(r.html, "font-family", value)
	case CmdFontSize:
		r.html = wrapStyle(r.html, "font-size", value)
	case CmdForeColor:
		r.html = wrapStyle(r.html, "color", value)
	default:
		return
	}

	r.lastReported = r.html
	if r.onChange != nil {
		r.onChange(r.html)
	}
}

func toggleTag(fragment, tag string) string {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"
	if strings.HasPrefix(fragment, open) && strings.HasSuffix(fragment, closing) &&
		len(fragment) >= len(open)+len(closing) {
		return strings.TrimSuffix(strings.TrimPrefix(fragment, open), closing)
	}
	return open + fragment + closing
}

func wrapStyle(fragment, property, value string) string {
	prefix := fmt.Sprintf(`<span style="%s:`, property)
	if strings.HasPrefix(fragment, prefix) && strings.HasSuffix(fragment, "</span>") {
		if end := strings.Index(fragment, `">`); end >= 0 {
			fragment = fragment[end+2 : len(fragment)-len("</span>")]
		}
	}
	return fmt.Sprintf(`<span style="%s:%s">%s</span>`, property, value, fragment)
}
