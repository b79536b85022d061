package exporters

import (
	"context"
	"fmt"

	"nbconvert/internal/nbformat"
)

// Renderer prints an HTML document to PDF.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// PDFExporter prints the HTML export of a notebook.
type PDFExporter struct {
	Renderer Renderer
}

func (e *PDFExporter) FileExtension() string  { return "pdf" }
func (e *PDFExporter) OutputMimetype() string { return "application/pdf" }

func (e *PDFExporter) FromNotebook(ctx context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	if e.Renderer == nil {
		return nil, nil, fmt.Errorf("pdf renderer not configured")
	}
	page, res, err := (&HTMLExporter{}).FromNotebook(ctx, nb, res)
	if err != nil {
		return nil, nil, err
	}
	res.OutputExtension = "." + e.FileExtension()

	pdf, err := e.Renderer.Render(ctx, string(page))
	if err != nil {
		return nil, nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, res, nil
}
