// Package exporters turns notebooks into output formats. Every exporter
// returns the rendered output together with the resources it produced,
// most notably image files extracted from cell outputs.
package exporters

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"nbconvert/internal/nbformat"
)

// Exporter converts a notebook into one output format.
type Exporter interface {
	// FileExtension is the extension of the produced file, without dot.
	FileExtension() string
	// OutputMimetype is the MIME type of the output, empty when undeclared.
	OutputMimetype() string
	// FromNotebook renders nb. res may be nil.
	FromNotebook(ctx context.Context, nb *nbformat.Notebook, res *Resources) ([]byte, *Resources, error)
}

// Factory builds a fresh exporter for one conversion.
type Factory func() Exporter

// Metadata describes the converted document.
type Metadata struct {
	Name     string
	Path     string
	Modified time.Time
}

// Resources accompanies a conversion result.
type Resources struct {
	Metadata        Metadata
	OutputExtension string
	// OutputFilesDir is the directory, relative to the output, that files in
	// Outputs belong to.
	OutputFilesDir string
	// Outputs maps a path relative to the output ("<dir>/<file>") to its
	// content.
	Outputs map[string][]byte
}

// DefaultName names documents that were not read from a file.
const DefaultName = "notebook"

// NewResources returns resources for a document called name.
func NewResources(name string) *Resources {
	if name == "" {
		name = DefaultName
	}
	return &Resources{
		Metadata:       Metadata{Name: name},
		OutputFilesDir: name + "_files",
		Outputs:        map[string][]byte{},
	}
}

// HasFiles reports whether the conversion produced auxiliary files.
func (r *Resources) HasFiles() bool {
	return r != nil && len(r.Outputs) > 0
}

// AddOutput stores data as file name under OutputFilesDir and returns the
// relative path the output should reference. Only the last element of name
// is kept; names without a usable element are dropped and yield "".
func (r *Resources) AddOutput(name string, data []byte) string {
	name = SafeFileName(name)
	if name == "" {
		return ""
	}
	if r.Outputs == nil {
		r.Outputs = map[string][]byte{}
	}
	p := r.OutputFilesDir + "/" + name
	r.Outputs[p] = data
	return p
}

// SafeFileName reduces name to a single path element, or "" when nothing
// usable is left.
func SafeFileName(name string) string {
	name = path.Base(path.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	switch name {
	case "/", ".", "..":
		return ""
	}
	return name
}

func ensureResources(res *Resources, e Exporter) *Resources {
	if res == nil {
		res = NewResources("")
	}
	if res.Outputs == nil {
		res.Outputs = map[string][]byte{}
	}
	if res.OutputFilesDir == "" {
		res.OutputFilesDir = res.Metadata.Name + "_files"
	}
	res.OutputExtension = "." + e.FileExtension()
	return res
}

// FromFile reads the notebook at path and converts it with e.
func FromFile(ctx context.Context, e Exporter, path string) ([]byte, *Resources, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	nb, err := nbformat.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	base := filepath.Base(path)
	res := NewResources(strings.TrimSuffix(base, filepath.Ext(base)))
	res.Metadata.Path = filepath.Dir(path)
	res.Metadata.Modified = info.ModTime()
	return e.FromNotebook(ctx, nb, res)
}
