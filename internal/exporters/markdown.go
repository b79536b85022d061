package exporters

import (
	"context"
	"strings"

	"nbconvert/internal/nbformat"
)

var markdownPriority = []string{
	"text/markdown", "image/png", "image/jpeg", "image/svg+xml",
	"text/html", "text/latex", "text/plain",
}

// MarkdownExporter renders the notebook as Markdown. Image outputs and
// cell attachments are extracted into the resources.
type MarkdownExporter struct{}

func (MarkdownExporter) FileExtension() string  { return "md" }
func (MarkdownExporter) OutputMimetype() string { return "text/markdown" }

func (e MarkdownExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	res = ensureResources(res, e)
	lang := nb.Language()

	var b strings.Builder
	for ci, cell := range nb.Cells {
		src := strings.TrimRight(string(cell.Source), "\n")
		switch cell.CellType {
		case nbformat.CellMarkdown:
			text, err := extractAttachments(res, cell, src)
			if err != nil {
				return nil, nil, err
			}
			b.WriteString(text + "\n\n")
		case nbformat.CellRaw:
			b.WriteString(src + "\n\n")
		case nbformat.CellCode:
			b.WriteString("```" + lang + "\n" + src + "\n```\n\n")
			for oi, o := range cell.Outputs {
				if text, ok := streamOrErrorText(o); ok {
					b.WriteString(indent(text, "    ") + "\n\n")
					continue
				}
				mime, ok := pickMime(o.Data, markdownPriority)
				if !ok {
					continue
				}
				if isImage(mime) {
					p, err := extractOutput(res, ci, oi, mime, o.Data)
					if err != nil {
						return nil, nil, err
					}
					b.WriteString("![" + fileExtensions[mime] + "](" + p + ")\n\n")
					continue
				}
				text, _ := o.Data.Text(mime)
				if mime == "text/plain" {
					b.WriteString(indent(text, "    ") + "\n\n")
					continue
				}
				b.WriteString(strings.TrimRight(text, "\n") + "\n\n")
			}
		}
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), res, nil
}
