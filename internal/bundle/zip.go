// Package bundle packs a conversion output and its resource files into a
// single zip archive.
package bundle

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"nbconvert/internal/exporters"
)

// ContentType is the MIME type of archives produced by Zip.
const ContentType = "application/zip"

// Zip writes output as name and every resource file at its relative path.
func Zip(name string, output []byte, res *exporters.Resources) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	modified := time.Now().UTC()
	if res != nil && !res.Metadata.Modified.IsZero() {
		modified = res.Metadata.Modified
	}

	add := func(path string, data []byte) error {
		if !filepath.IsLocal(filepath.FromSlash(path)) {
			return fmt.Errorf("zip %s: entry escapes the archive root", path)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     path,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("zip %s: %w", path, err)
		}
		_, err = w.Write(data)
		return err
	}

	if err := add(name, output); err != nil {
		return nil, err
	}
	if res != nil {
		paths := make([]string, 0, len(res.Outputs))
		for p := range res.Outputs {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if err := add(p, res.Outputs[p]); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename returns the archive name for a document base name.
func Filename(base string) string {
	return base + ".zip"
}
