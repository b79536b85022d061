package exporters

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"nbconvert/internal/nbformat"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html.tmpl"))

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

var htmlPriority = []string{
	"text/html", "image/svg+xml", "image/png", "image/jpeg",
	"text/markdown", "text/latex", "text/plain",
}

// HTMLExporter renders a standalone HTML page. Images are embedded as data
// URIs, so it never produces resource files. With Slides set every slide
// becomes a <section>, following metadata.slideshow.slide_type.
type HTMLExporter struct {
	Slides bool
}

func (e *HTMLExporter) FileExtension() string {
	if e.Slides {
		return "slides.html"
	}
	return "html"
}

func (e *HTMLExporter) OutputMimetype() string { return "text/html" }

type htmlCell struct {
	Type    string
	Prompt  string
	Source  string
	HTML    template.HTML
	Outputs []template.HTML
}

type htmlPage struct {
	Title    string
	Language string
	Slides   bool
	Sections [][]htmlCell
}

func (e *HTMLExporter) FromNotebook(_ context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	res = ensureResources(res, e)

	page := htmlPage{
		Title:    nb.Title(),
		Language: nb.Language(),
		Slides:   e.Slides,
	}
	if page.Title == "" {
		page.Title = res.Metadata.Name
	}

	var current []htmlCell
	for _, cell := range nb.Cells {
		slideType := slideType(cell)
		if e.Slides && slideType == "skip" {
			continue
		}
		hc, err := renderHTMLCell(cell)
		if err != nil {
			return nil, nil, err
		}
		if e.Slides && slideType == "slide" && len(current) > 0 {
			page.Sections = append(page.Sections, current)
			current = nil
		}
		current = append(current, hc)
	}
	if len(current) > 0 || len(page.Sections) == 0 {
		page.Sections = append(page.Sections, current)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), res, nil
}

func slideType(cell nbformat.Cell) string {
	if ss, ok := cell.Metadata["slideshow"].(map[string]any); ok {
		if t, ok := ss["slide_type"].(string); ok {
			return t
		}
	}
	return ""
}

func renderHTMLCell(cell nbformat.Cell) (htmlCell, error) {
	src := string(cell.Source)
	hc := htmlCell{Type: cell.CellType}
	switch cell.CellType {
	case nbformat.CellMarkdown:
		src = inlineAttachments(cell, src)
		rendered, err := renderMarkdown(src)
		if err != nil {
			return hc, err
		}
		hc.HTML = rendered
	case nbformat.CellRaw:
		hc.HTML = template.HTML(src)
	case nbformat.CellCode:
		hc.Source = strings.TrimRight(src, "\n")
		hc.Prompt = " "
		if cell.ExecutionCount != nil {
			hc.Prompt = fmt.Sprint(*cell.ExecutionCount)
		}
		for _, o := range cell.Outputs {
			out, err := renderHTMLOutput(o)
			if err != nil {
				return hc, err
			}
			if out != "" {
				hc.Outputs = append(hc.Outputs, out)
			}
		}
	}
	return hc, nil
}

func renderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func renderHTMLOutput(o nbformat.Output) (template.HTML, error) {
	if text, ok := streamOrErrorText(o); ok {
		class := "output-stream"
		if o.OutputType == nbformat.OutputError || o.Name == "stderr" {
			class = "output-error"
		}
		return template.HTML(`<div class="` + class + `"><pre>` + template.HTMLEscapeString(text) + `</pre></div>`), nil
	}

	mime, ok := pickMime(o.Data, htmlPriority)
	if !ok {
		return "", nil
	}
	text, _ := o.Data.Text(mime)
	switch mime {
	case "text/html", "image/svg+xml":
		return template.HTML(text), nil
	case "image/png", "image/jpeg":
		payload := strings.Join(strings.Fields(text), "")
		return template.HTML(`<img src="data:` + mime + `;base64,` + payload + `">`), nil
	case "text/markdown":
		return renderMarkdown(text)
	case "text/latex":
		return template.HTML(`<div class="output-latex">` + template.HTMLEscapeString(text) + `</div>`), nil
	}
	return template.HTML(`<pre>` + template.HTMLEscapeString(text) + `</pre>`), nil
}

// inlineAttachments replaces attachment: references with data URIs.
func inlineAttachments(cell nbformat.Cell, src string) string {
	if len(cell.Attachments) == 0 {
		return src
	}
	return attachmentRef.ReplaceAllStringFunc(src, func(m string) string {
		bundle, ok := cell.Attachments[strings.TrimPrefix(m, "attachment:")]
		if !ok {
			return m
		}
		mime, ok := pickMime(bundle, []string{"image/png", "image/jpeg", "image/svg+xml"})
		if !ok {
			return m
		}
		payload, _ := bundle.Text(mime)
		if mime == "image/svg+xml" {
			return "data:" + mime + ";utf8," + strings.ReplaceAll(payload, "\n", "")
		}
		return "data:" + mime + ";base64," + strings.Join(strings.Fields(payload), "")
	})
}
