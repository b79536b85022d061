package exporters

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"nbconvert/internal/nbformat"
)

var fileExtensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/svg+xml":   "svg",
	"application/pdf": "pdf",
}

// base64 encoded in notebooks
var binaryMimes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func pickMime(b nbformat.MimeBundle, priority []string) (string, bool) {
	for _, m := range priority {
		if _, ok := b[m]; ok {
			return m, true
		}
	}
	return "", false
}

func isImage(mime string) bool {
	_, ok := fileExtensions[mime]
	return ok
}

func decodePayload(mime, payload string) ([]byte, error) {
	if !binaryMimes[mime] {
		return []byte(payload), nil
	}
	clean := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, payload)
	return base64.StdEncoding.DecodeString(clean)
}

// extractOutput stores the mime payload of output outIdx of cell cellIdx
// in res and returns its relative path.
func extractOutput(res *Resources, cellIdx, outIdx int, mime string, b nbformat.MimeBundle) (string, error) {
	payload, _ := b.Text(mime)
	data, err := decodePayload(mime, payload)
	if err != nil {
		return "", fmt.Errorf("decode %s output of cell %d: %w", mime, cellIdx, err)
	}
	return res.AddOutput(fmt.Sprintf("output_%d_%d.%s", cellIdx, outIdx, fileExtensions[mime]), data), nil
}

var attachmentRef = regexp.MustCompile(`attachment:([^\s)"'>]+)`)

// extractAttachments moves the cell's attachments into res and rewrites
// attachment: references in source to the extracted paths.
func extractAttachments(res *Resources, cell nbformat.Cell, source string) (string, error) {
	if len(cell.Attachments) == 0 {
		return source, nil
	}
	paths := map[string]string{}
	for name, bundle := range cell.Attachments {
		mime, ok := pickMime(bundle, []string{"image/png", "image/jpeg", "image/svg+xml", "application/pdf"})
		if !ok {
			continue
		}
		payload, _ := bundle.Text(mime)
		data, err := decodePayload(mime, payload)
		if err != nil {
			return "", fmt.Errorf("decode attachment %s: %w", name, err)
		}
		if p := res.AddOutput(name, data); p != "" {
			paths[name] = p
		}
	}
	return attachmentRef.ReplaceAllStringFunc(source, func(m string) string {
		if p, ok := paths[strings.TrimPrefix(m, "attachment:")]; ok {
			return p
		}
		return m
	}), nil
}

func streamOrErrorText(o nbformat.Output) (string, bool) {
	switch o.OutputType {
	case nbformat.OutputStream:
		return string(o.Text), true
	case nbformat.OutputError:
		return ansiEscape.ReplaceAllString(strings.Join(o.Traceback, "\n"), "") + "\n", true
	}
	return "", false
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
