package export

import (
	"context"
	"fmt"
	"time"
)

// Service renders contract views into downloadable files.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request, view ContractView) (*Result, error) {
	data := TemplateData{
		Title:        view.Title,
		TemplateName: view.TemplateName,
		Variant:      view.Variant,
		Author:       view.Author,
		GeneratedAt:  time.Now(),
		Cells:        view.Cells,
	}

	html, err := RenderContractHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, view.Title)
	case FormatDOCX:
		return exportDOCX(ctx, html, view.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
