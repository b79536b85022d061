package exporters

import (
	"context"

	"nbconvert/internal/nbformat"
)

// NotebookExporter re-serializes the notebook in canonical form.
type NotebookExporter struct{}

func (NotebookExporter) FileExtension() string  { return "ipynb" }
func (NotebookExporter) OutputMimetype() string { return "application/json" }

func (e NotebookExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	res = ensureResources(res, e)
	out, err := nbformat.Write(nb)
	if err != nil {
		return nil, nil, err
	}
	return out, res, nil
}
