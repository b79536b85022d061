package exporters

import (
	"context"
	"strings"

	"nbconvert/internal/nbformat"
)

var rstPriority = []string{
	"image/png", "image/jpeg", "image/svg+xml", "text/latex", "text/plain",
}

// RSTExporter renders the notebook as reStructuredText.
type RSTExporter struct{}

func (RSTExporter) FileExtension() string  { return "rst" }
func (RSTExporter) OutputMimetype() string { return "text/restructuredtext" }

func (e RSTExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
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
			b.WriteString(markdownHeadingsToRST(text) + "\n\n")
		case nbformat.CellRaw:
			b.WriteString(".. raw:: html\n\n" + indent(src, "    ") + "\n\n")
		case nbformat.CellCode:
			b.WriteString(".. code:: " + lang + "\n\n" + indent(src, "    ") + "\n\n")
			for oi, o := range cell.Outputs {
				if text, ok := streamOrErrorText(o); ok {
					b.WriteString("::\n\n" + indent(text, "    ") + "\n\n")
					continue
				}
				mime, ok := pickMime(o.Data, rstPriority)
				if !ok {
					continue
				}
				if isImage(mime) {
					p, err := extractOutput(res, ci, oi, mime, o.Data)
					if err != nil {
						return nil, nil, err
					}
					b.WriteString(".. image:: " + p + "\n\n")
					continue
				}
				text, _ := o.Data.Text(mime)
				if mime == "text/latex" {
					b.WriteString(".. math::\n\n" + indent(text, "    ") + "\n\n")
					continue
				}
				b.WriteString(".. parsed-literal::\n\n" + indent(text, "    ") + "\n\n")
			}
		}
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), res, nil
}

var rstUnderlines = []byte{'=', '-', '~', '^', '"', '\''}

// markdownHeadingsToRST rewrites ATX headings; other markdown is kept.
func markdownHeadingsToRST(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		level := 0
		for level < len(line) && line[level] == '#' {
			level++
		}
		if level == 0 || level > len(rstUnderlines) || level >= len(line) || line[level] != ' ' {
			out = append(out, line)
			continue
		}
		title := strings.TrimSpace(line[level:])
		out = append(out, title, strings.Repeat(string(rstUnderlines[level-1]), len(title)))
	}
	return strings.Join(out, "\n")
}
