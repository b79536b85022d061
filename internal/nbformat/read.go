package nbformat

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"

	"nbconvert/internal/domain"
)

// CurrentMajor is the only nbformat major version Read accepts.
const CurrentMajor = 4

const schemaURL = "https://jupyter.org/schema/nbformat.v4.schema.json"

//go:embed nbformat.v4.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse nbformat schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add nbformat schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Read decodes and validates a serialized notebook.
func Read(data []byte) (*Notebook, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", domain.ErrInvalidNotebook)
	}
	version := gjson.GetBytes(data, "nbformat")
	if !version.Exists() {
		return nil, fmt.Errorf("%w: missing nbformat", domain.ErrInvalidNotebook)
	}
	if version.Type != gjson.Number {
		return nil, fmt.Errorf("%w: nbformat must be a number", domain.ErrInvalidNotebook)
	}
	if major := version.Int(); major != CurrentMajor {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnsupportedVersion, major)
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidNotebook, err)
	}
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}
	return &nb, nil
}

// Validate checks data against the nbformat v4 schema.
func Validate(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidNotebook, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidNotebook, err)
	}
	return nil
}

// ReadFile reads and decodes the notebook stored at path.
func ReadFile(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(data)
}

// Write serializes nb the way notebook files are stored: one-space indent,
// trailing newline.
func Write(nb *Notebook) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(nb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
