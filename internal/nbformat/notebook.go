// Package nbformat reads and writes Jupyter notebook documents (nbformat v4).
package nbformat

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Cell types.
const (
	CellCode     = "code"
	CellMarkdown = "markdown"
	CellRaw      = "raw"
)

// Output types.
const (
	OutputStream        = "stream"
	OutputDisplayData   = "display_data"
	OutputExecuteResult = "execute_result"
	OutputError         = "error"
)

// Notebook is an nbformat v4 document.
type Notebook struct {
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
	Cells         []Cell         `json:"cells"`
}

// Cell is one notebook cell. Outputs and ExecutionCount only apply to code cells.
type Cell struct {
	ID             string                `json:"id,omitempty"`
	CellType       string                `json:"cell_type"`
	Metadata       map[string]any        `json:"metadata"`
	Source         MultilineString       `json:"source"`
	Attachments    map[string]MimeBundle `json:"attachments,omitempty"`
	ExecutionCount *int                  `json:"execution_count,omitempty"`
	Outputs        []Output              `json:"outputs,omitempty"`
}

// MarshalJSON keeps execution_count and outputs on code cells even when empty.
func (c Cell) MarshalJSON() ([]byte, error) {
	type plain Cell
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if c.CellType != CellCode {
		p := plain(c)
		p.ExecutionCount = nil
		p.Outputs = nil
		return marshal(p)
	}
	outputs := c.Outputs
	if outputs == nil {
		outputs = []Output{}
	}
	return marshal(struct {
		plain
		ExecutionCount *int     `json:"execution_count"`
		Outputs        []Output `json:"outputs"`
	}{plain: plain(c), ExecutionCount: c.ExecutionCount, Outputs: outputs})
}

// Output is one entry of a code cell's outputs.
type Output struct {
	OutputType     string          `json:"output_type"`
	ExecutionCount *int            `json:"execution_count,omitempty"`
	Name           string          `json:"name,omitempty"`
	Text           MultilineString `json:"text,omitempty"`
	Data           MimeBundle      `json:"data,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	EName          string          `json:"ename,omitempty"`
	EValue         string          `json:"evalue,omitempty"`
	Traceback      []string        `json:"traceback,omitempty"`
}

// MimeBundle maps a MIME type to its payload. Text payloads are strings or
// lists of strings; JSON payloads are kept raw.
type MimeBundle map[string]json.RawMessage

// Text returns the payload for mime joined into one string.
func (b MimeBundle) Text(mime string) (string, bool) {
	raw, ok := b[mime]
	if !ok {
		return "", false
	}
	var s MultilineString
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return string(s), true
}

// MimeTypes returns the bundle's MIME types in a stable order.
func (b MimeBundle) MimeTypes() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MultilineString is a string stored on disk either as one string or as a
// list of lines.
type MultilineString string

// UnmarshalJSON accepts both encodings.
func (m *MultilineString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*m = MultilineString(strings.Join(lines, ""))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = MultilineString(s)
	return nil
}

// MarshalJSON writes the list-of-lines form, each line keeping its newline.
func (m MultilineString) MarshalJSON() ([]byte, error) {
	return marshal(SplitLines(string(m)))
}

// marshal is json.Marshal without HTML escaping, so that sources keep
// their < > & characters.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SplitLines splits s after every newline.
func SplitLines(s string) []string {
	lines := []string{}
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// Language returns the kernel language, defaulting to python.
func (nb *Notebook) Language() string {
	if li, ok := nb.Metadata["language_info"].(map[string]any); ok {
		if name, ok := li["name"].(string); ok && name != "" {
			return name
		}
	}
	if ks, ok := nb.Metadata["kernelspec"].(map[string]any); ok {
		if lang, ok := ks["language"].(string); ok && lang != "" {
			return lang
		}
	}
	return "python"
}

// FileExtension returns the kernel's source file extension without the dot.
func (nb *Notebook) FileExtension() string {
	if li, ok := nb.Metadata["language_info"].(map[string]any); ok {
		if ext, ok := li["file_extension"].(string); ok && ext != "" {
			return strings.TrimPrefix(ext, ".")
		}
	}
	if nb.Language() == "python" {
		return "py"
	}
	return "txt"
}

// Title returns metadata.title when present.
func (nb *Notebook) Title() string {
	if t, ok := nb.Metadata["title"].(string); ok {
		return t
	}
	return ""
}

// New returns an empty v4 notebook.
func New() *Notebook {
	return &Notebook{
		Metadata:      map[string]any{},
		NBFormat:      4,
		NBFormatMinor: 5,
		Cells:         []Cell{},
	}
}
