package exporters

import (
	"context"
	"regexp"
	"strings"

	"nbconvert/internal/nbformat"
)

var latexPriority = []string{
	"application/pdf", "image/png", "image/jpeg", "text/latex", "text/plain",
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\^{}`,
)

// LatexExporter renders the notebook as a standalone LaTeX article.
type LatexExporter struct{}

func (LatexExporter) FileExtension() string  { return "tex" }
func (LatexExporter) OutputMimetype() string { return "text/latex" }

func (e LatexExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	res = ensureResources(res, e)

	title := nb.Title()
	if title == "" {
		title = res.Metadata.Name
	}

	var b strings.Builder
	b.WriteString("\\documentclass[11pt]{article}\n")
	b.WriteString("\\usepackage{graphicx}\n\\usepackage{amsmath}\n\\usepackage{fancyvrb}\n\n")
	b.WriteString("\\title{" + latexEscaper.Replace(title) + "}\n\n")
	b.WriteString("\\begin{document}\n\\maketitle\n\n")

	for ci, cell := range nb.Cells {
		src := strings.TrimRight(string(cell.Source), "\n")
		switch cell.CellType {
		case nbformat.CellMarkdown:
			text, err := extractAttachments(res, cell, src)
			if err != nil {
				return nil, nil, err
			}
			b.WriteString(markdownToLatex(text) + "\n\n")
		case nbformat.CellRaw:
			b.WriteString(src + "\n\n")
		case nbformat.CellCode:
			b.WriteString("\\begin{Verbatim}\n" + src + "\n\\end{Verbatim}\n\n")
			for oi, o := range cell.Outputs {
				if text, ok := streamOrErrorText(o); ok {
					b.WriteString("\\begin{Verbatim}\n" + strings.TrimRight(text, "\n") + "\n\\end{Verbatim}\n\n")
					continue
				}
				mime, ok := pickMime(o.Data, latexPriority)
				if !ok {
					continue
				}
				if isImage(mime) {
					p, err := extractOutput(res, ci, oi, mime, o.Data)
					if err != nil {
						return nil, nil, err
					}
					b.WriteString("\\begin{center}\n\\includegraphics[width=0.8\\linewidth]{" + p + "}\n\\end{center}\n\n")
					continue
				}
				text, _ := o.Data.Text(mime)
				if mime == "text/latex" {
					b.WriteString(strings.TrimRight(text, "\n") + "\n\n")
					continue
				}
				b.WriteString("\\begin{Verbatim}\n" + strings.TrimRight(text, "\n") + "\n\\end{Verbatim}\n\n")
			}
		}
	}
	b.WriteString("\\end{document}\n")
	return []byte(b.String()), res, nil
}

var latexSections = []string{"section", "subsection", "subsubsection", "paragraph", "subparagraph"}

// markdownToLatex maps headings to sectioning commands and escapes the rest.
func markdownToLatex(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		level := 0
		for level < len(line) && line[level] == '#' {
			level++
		}
		if level > 0 && level <= len(latexSections) && level < len(line) && line[level] == ' ' {
			lines[i] = "\\" + latexSections[level-1] + "{" + latexEscaper.Replace(strings.TrimSpace(line[level:])) + "}"
			continue
		}
		lines[i] = latexLine(line)
	}
	return strings.Join(lines, "\n")
}

var markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)

// latexLine escapes line, turning markdown images into \includegraphics.
func latexLine(line string) string {
	var b strings.Builder
	last := 0
	for _, m := range markdownImage.FindAllStringSubmatchIndex(line, -1) {
		b.WriteString(latexEscaper.Replace(line[last:m[0]]))
		b.WriteString("\\includegraphics{" + line[m[2]:m[3]] + "}")
		last = m[1]
	}
	b.WriteString(latexEscaper.Replace(line[last:]))
	return b.String()
}
