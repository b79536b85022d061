package exporters

import (
	"context"
	"fmt"
	"strings"

	"nbconvert/internal/nbformat"
)

var commentPrefixes = map[string]string{
	"python":     "#",
	"r":          "#",
	"julia":      "#",
	"ruby":       "#",
	"bash":       "#",
	"sh":         "#",
	"perl":       "#",
	"javascript": "//",
	"typescript": "//",
	"go":         "//",
	"c":          "//",
	"c++":        "//",
	"java":       "//",
	"scala":      "//",
	"rust":       "//",
	"sql":        "--",
	"haskell":    "--",
	"lua":        "--",
	"matlab":     "%",
	"octave":     "%",
}

func commentPrefix(lang string) string {
	if p, ok := commentPrefixes[strings.ToLower(lang)]; ok {
		return p
	}
	return "#"
}

// PythonExporter writes code cells as a Python script with markdown cells
// turned into comments.
type PythonExporter struct{}

func (PythonExporter) FileExtension() string  { return "py" }
func (PythonExporter) OutputMimetype() string { return "text/x-python" }

func (e PythonExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	res = ensureResources(res, e)
	var b strings.Builder
	b.WriteString("#!/usr/bin/env python\n# coding: utf-8\n")
	writeScript(&b, nb, "#", true)
	return []byte(b.String()), res, nil
}

// ScriptExporter writes code cells in the notebook's kernel language.
type ScriptExporter struct{}

func (ScriptExporter) FileExtension() string  { return "txt" }
func (ScriptExporter) OutputMimetype() string { return "text/plain" }

func (e ScriptExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	res = ensureResources(res, e)
	res.OutputExtension = "." + nb.FileExtension()
	var b strings.Builder
	writeScript(&b, nb, commentPrefix(nb.Language()), false)
	return []byte(b.String()), res, nil
}

func writeScript(b *strings.Builder, nb *nbformat.Notebook, comment string, prompts bool) {
	for _, cell := range nb.Cells {
		src := strings.TrimRight(string(cell.Source), "\n")
		switch cell.CellType {
		case nbformat.CellCode:
			b.WriteString("\n")
			if prompts {
				count := " "
				if cell.ExecutionCount != nil {
					count = fmt.Sprint(*cell.ExecutionCount)
				}
				fmt.Fprintf(b, "%s In[%s]:\n\n\n", comment, count)
			}
			b.WriteString(src)
			b.WriteString("\n\n")
		case nbformat.CellMarkdown:
			b.WriteString("\n")
			for _, line := range strings.Split(src, "\n") {
				if line == "" {
					b.WriteString(comment + "\n")
					continue
				}
				b.WriteString(comment + " " + line + "\n")
			}
			b.WriteString("\n")
		}
	}
}
