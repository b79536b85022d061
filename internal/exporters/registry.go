package exporters

import (
	"fmt"
	"sort"

	"nbconvert/internal/domain"
)

// Registry maps format names to exporter factories. It is built once and
// only read afterwards.
type Registry struct {
	factories map[string]Factory
	names     []string
}

// NewRegistry copies factories into a new registry.
func NewRegistry(factories map[string]Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for name, f := range factories {
		r.factories[name] = f
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Get builds the exporter registered under format.
func (r *Registry) Get(format string) (Exporter, error) {
	f, ok := r.factories[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFormat, format)
	}
	return f(), nil
}

// Names returns the registered formats in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Mimetypes returns the declared output MIME type per format; formats
// without one map to nil.
func (r *Registry) Mimetypes() map[string]*string {
	out := make(map[string]*string, len(r.names))
	for _, name := range r.names {
		mime := r.factories[name]().OutputMimetype()
		if mime == "" {
			out[name] = nil
			continue
		}
		out[name] = &mime
	}
	return out
}

// Options configures Default.
type Options struct {
	// PDF renders HTML into PDF. The pdf format is only registered when set.
	PDF Renderer
}

// Default returns the registry of built-in exporters.
func Default(opts Options) *Registry {
	factories := map[string]Factory{
		"notebook": func() Exporter { return NotebookExporter{} },
		"python":   func() Exporter { return PythonExporter{} },
		"script":   func() Exporter { return ScriptExporter{} },
		"markdown": func() Exporter { return MarkdownExporter{} },
		"rst":      func() Exporter { return RSTExporter{} },
		"latex":    func() Exporter { return LatexExporter{} },
		"html":     func() Exporter { return &HTMLExporter{} },
		"slides":   func() Exporter { return &HTMLExporter{Slides: true} },
	}
	if opts.PDF != nil {
		factories["pdf"] = func() Exporter { return &PDFExporter{Renderer: opts.PDF} }
	}
	return NewRegistry(factories)
}
