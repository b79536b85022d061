package exporters

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbconvert/internal/domain"
	"nbconvert/internal/nbformat"
)

var pngMagic = []byte("\x89PNG")

func readNotebook(t *testing.T, name string) *nbformat.Notebook {
	t.Helper()
	nb, err := nbformat.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return nb
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

func TestDefaultRegistry(t *testing.T) {
	r := Default(Options{})
	assert.Equal(t, []string{"html", "latex", "markdown", "notebook", "python", "rst", "script", "slides"}, r.Names())

	_, err := r.Get("pdf")
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)

	withPDF := Default(Options{PDF: &fakeRenderer{}})
	e, err := withPDF.Get("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", e.OutputMimetype())

	mimes := withPDF.Mimetypes()
	require.NotNil(t, mimes["html"])
	assert.Equal(t, "text/html", *mimes["html"])
	assert.Equal(t, "text/x-python", *mimes["python"])
}

type bareExporter struct{}

func (bareExporter) FileExtension() string  { return "bin" }
func (bareExporter) OutputMimetype() string { return "" }
func (bareExporter) FromNotebook(_ context.Context, _ *nbformat.Notebook, res *Resources) ([]byte, *Resources, error) {
	return nil, res, nil
}

func TestRegistry_UndeclaredMimetypeIsNil(t *testing.T) {
	r := NewRegistry(map[string]Factory{"bare": func() Exporter { return bareExporter{} }})
	mimes := r.Mimetypes()
	v, ok := mimes["bare"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFromFile_FillsMetadata(t *testing.T) {
	path := filepath.Join("testdata", "sample.ipynb")
	info, err := os.Stat(path)
	require.NoError(t, err)

	out, res, err := FromFile(context.Background(), PythonExporter{}, path)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "sample", res.Metadata.Name)
	assert.Equal(t, "testdata", res.Metadata.Path)
	assert.True(t, info.ModTime().Equal(res.Metadata.Modified))
	assert.Equal(t, "sample_files", res.OutputFilesDir)
	assert.Equal(t, ".py", res.OutputExtension)
	assert.False(t, res.HasFiles())
}

func TestFromFile_Errors(t *testing.T) {
	_, _, err := FromFile(context.Background(), PythonExporter{}, filepath.Join(t.TempDir(), "missing.ipynb"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.ipynb")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nbformat": 4}`), 0o644))
	_, _, err = FromFile(context.Background(), PythonExporter{}, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidNotebook)
}

func TestPythonExporter(t *testing.T) {
	out, _, err := PythonExporter{}.FromNotebook(context.Background(), readNotebook(t, "sample.ipynb"), nil)
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "#!/usr/bin/env python\n"))
	assert.Contains(t, s, "# In[1]:\n\n\nprint('hello')\n1 + 1\n")
	assert.Contains(t, s, "# # Sample\n# Some *text*.\n")
	assert.NotContains(t, s, "raw text")
}

func TestScriptExporter_UsesKernelLanguage(t *testing.T) {
	nb := nbformat.New()
	nb.Metadata["language_info"] = map[string]any{"name": "javascript", "file_extension": ".js"}
	nb.Cells = []nbformat.Cell{
		{CellType: nbformat.CellMarkdown, Source: "Title"},
		{CellType: nbformat.CellCode, Source: "console.log(1)"},
	}

	out, res, err := ScriptExporter{}.FromNotebook(context.Background(), nb, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "// Title\n")
	assert.Contains(t, string(out), "console.log(1)\n")
	assert.Equal(t, ".js", res.OutputExtension)
}

func TestMarkdownExporter_ExtractsImages(t *testing.T) {
	out, res, err := MarkdownExporter{}.FromNotebook(context.Background(), readNotebook(t, "images.ipynb"), NewResources("report"))
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "```python\nplot()\n```")
	assert.Contains(t, s, "    x < y")
	assert.Contains(t, s, "![png](report_files/output_1_1.png)")
	assert.Contains(t, s, "![logo](report_files/logo.png)")
	assert.Contains(t, s, "ValueError: bad")
	assert.NotContains(t, s, "\x1b[")

	require.True(t, res.HasFiles())
	assert.True(t, bytes.HasPrefix(res.Outputs["report_files/output_1_1.png"], pngMagic))
	assert.True(t, bytes.HasPrefix(res.Outputs["report_files/logo.png"], pngMagic))
}

func TestMarkdownExporter_AttachmentNamesStayInFilesDir(t *testing.T) {
	out, res, err := MarkdownExporter{}.FromNotebook(context.Background(), readNotebook(t, "escape.ipynb"), NewResources("evil"))
	require.NoError(t, err)

	assert.Equal(t, map[string][]byte{"evil_files/escaped.png": []byte("hello")}, res.Outputs)
	assert.Contains(t, string(out), "![up](evil_files/escaped.png)")
	assert.Contains(t, string(out), "![dot](attachment:..)")
}

func TestSafeFileName(t *testing.T) {
	tests := map[string]string{
		"logo.png":             "logo.png",
		"../../../escaped.png": "escaped.png",
		"/etc/passwd":          "passwd",
		`..\..\win.png`:        "win.png",
		"a/b/../c.png":         "c.png",
		"..":                   "",
		".":                    "",
		"":                     "",
		"/":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeFileName(in), in)
	}

	res := NewResources("n")
	assert.Equal(t, "", res.AddOutput("..", []byte("x")))
	assert.False(t, res.HasFiles())
}

func TestMarkdownExporter_NoImagesNoFiles(t *testing.T) {
	out, res, err := MarkdownExporter{}.FromNotebook(context.Background(), readNotebook(t, "sample.ipynb"), nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Sample")
	assert.Contains(t, string(out), "    2")
	assert.False(t, res.HasFiles())
	assert.Equal(t, "notebook_files", res.OutputFilesDir)
}

func TestRSTExporter(t *testing.T) {
	out, res, err := RSTExporter{}.FromNotebook(context.Background(), readNotebook(t, "images.ipynb"), nil)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "Plot & <Report>\n===============")
	assert.Contains(t, s, ".. code:: python\n\n    plot()")
	assert.Contains(t, s, ".. image:: notebook_files/output_1_1.png")
	assert.True(t, res.HasFiles())
}

func TestLatexExporter(t *testing.T) {
	out, res, err := LatexExporter{}.FromNotebook(context.Background(), readNotebook(t, "images.ipynb"), nil)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `\section{Plot \& <Report>}`)
	assert.Contains(t, s, `\includegraphics{notebook_files/logo.png}`)
	assert.Contains(t, s, `\includegraphics[width=0.8\linewidth]{notebook_files/output_1_1.png}`)
	assert.True(t, strings.HasSuffix(s, "\\end{document}\n"))
	assert.True(t, res.HasFiles())
}

func TestHTMLExporter_InlinesImages(t *testing.T) {
	out, res, err := (&HTMLExporter{}).FromNotebook(context.Background(), readNotebook(t, "images.ipynb"), nil)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<h1>Plot &amp; <Report></h1>")
	assert.Contains(t, s, `<img src="data:image/png;base64,iVBORw0KGgo`)
	assert.Contains(t, s, "x &lt; y")
	assert.Contains(t, s, `<code class="language-python">plot()</code>`)
	assert.Contains(t, s, "In&nbsp;[3]:")
	assert.False(t, res.HasFiles())
}

func TestHTMLExporter_Slides(t *testing.T) {
	slide := map[string]any{"slideshow": map[string]any{"slide_type": "slide"}}
	skip := map[string]any{"slideshow": map[string]any{"slide_type": "skip"}}
	nb := nbformat.New()
	nb.Cells = []nbformat.Cell{
		{CellType: nbformat.CellMarkdown, Metadata: slide, Source: "one"},
		{CellType: nbformat.CellMarkdown, Metadata: skip, Source: "hidden"},
		{CellType: nbformat.CellMarkdown, Metadata: slide, Source: "two"},
	}

	e := &HTMLExporter{Slides: true}
	assert.Equal(t, "slides.html", e.FileExtension())
	out, _, err := e.FromNotebook(context.Background(), nb, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(out), "<section>"))
	assert.NotContains(t, string(out), "hidden")
}

func TestNotebookExporter_RoundTrips(t *testing.T) {
	nb := readNotebook(t, "sample.ipynb")
	out, _, err := NotebookExporter{}.FromNotebook(context.Background(), nb, nil)
	require.NoError(t, err)

	back, err := nbformat.Read(out)
	require.NoError(t, err)
	require.Len(t, back.Cells, len(nb.Cells))
	for i := range nb.Cells {
		assert.Equal(t, nb.Cells[i].CellType, back.Cells[i].CellType)
		assert.Equal(t, nb.Cells[i].Source, back.Cells[i].Source)
		assert.Len(t, back.Cells[i].Outputs, len(nb.Cells[i].Outputs))
	}
	text, ok := back.Cells[1].Outputs[1].Data.Text("text/plain")
	assert.True(t, ok)
	assert.Equal(t, "2", text)
}

func TestPDFExporter(t *testing.T) {
	r := &fakeRenderer{}
	out, res, err := (&PDFExporter{Renderer: r}).FromNotebook(context.Background(), readNotebook(t, "sample.ipynb"), nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(out))
	assert.Contains(t, r.html, "<!DOCTYPE html>")
	assert.Equal(t, ".pdf", res.OutputExtension)

	_, _, err = (&PDFExporter{Renderer: &fakeRenderer{err: errors.New("chrome gone")}}).FromNotebook(context.Background(), readNotebook(t, "sample.ipynb"), nil)
	assert.ErrorContains(t, err, "chrome gone")

	_, _, err = (&PDFExporter{}).FromNotebook(context.Background(), readNotebook(t, "sample.ipynb"), nil)
	assert.Error(t, err)
}
