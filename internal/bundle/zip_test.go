package bundle

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbconvert/internal/exporters"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestZip_MainOutputAndResources(t *testing.T) {
	res := exporters.NewResources("report")
	res.AddOutput("output_1_0.png", []byte("png-bytes"))
	res.AddOutput("output_2_0.svg", []byte("<svg/>"))

	data, err := Zip("report.md", []byte("# Report"), res)
	require.NoError(t, err)

	files := readZip(t, data)
	assert.Equal(t, map[string]string{
		"report.md":                   "# Report",
		"report_files/output_1_0.png": "png-bytes",
		"report_files/output_2_0.svg": "<svg/>",
	}, files)
}

func TestZip_NilResources(t *testing.T) {
	data, err := Zip("a.txt", []byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "x"}, readZip(t, data))
	assert.Equal(t, "a.zip", Filename("a"))
}

func TestZip_RejectsEntriesOutsideRoot(t *testing.T) {
	res := exporters.NewResources("x")
	res.Outputs["x_files/../../evil.png"] = []byte("evil")

	_, err := Zip("x.md", []byte("x"), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")

	_, err = Zip("/abs.md", []byte("x"), nil)
	assert.Error(t, err)
}
