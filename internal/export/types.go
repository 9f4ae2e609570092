// Package export renders drafted contracts into downloadable files.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	ContractID string
	Format     Format
}

// CellView is one visible cell of the contract, already rendered to HTML.
type CellView struct {
	Title   string
	Content string
}

// ContractView is the assembled contract content handed to the exporter.
type ContractView struct {
	Title        string
	TemplateName string
	Variant      string
	Author       string
	Cells        []CellView
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates the requested output format is unknown.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
