package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		convertTo, convertOutput = "html", ""
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func copyNotebook(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "exporters", "testdata", name))
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")
	assert.NoError(t, err)
	assert.Contains(t, out, "nbconvert version test-version-1.0.0")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "convert")
	assert.Contains(t, names, "formats")
	assert.Contains(t, names, "version")
}

func TestFormatsCmd_ListsFormats(t *testing.T) {
	out, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "html")
	assert.Contains(t, out, "text/x-python")
	assert.NotContains(t, out, "application/pdf")
}

func TestConvertCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "convert")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestConvertCmd_WritesNextToNotebook(t *testing.T) {
	nb := copyNotebook(t, "sample.ipynb")

	out, err := execute(t, "convert", "--to", "python", nb)
	require.NoError(t, err)

	target := filepath.Join(filepath.Dir(nb), "sample.py")
	assert.Contains(t, out, "Wrote "+target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "print('hello')")
}

func TestConvertCmd_WritesResources(t *testing.T) {
	nb := copyNotebook(t, "images.ipynb")
	target := filepath.Join(t.TempDir(), "out.md")

	out, err := execute(t, "convert", "-t", "markdown", "-o", target, nb)
	require.NoError(t, err)
	assert.Contains(t, out, "resource files")

	_, err = os.Stat(filepath.Join(filepath.Dir(target), "images_files", "output_1_1.png"))
	assert.NoError(t, err)
}

func TestConvertCmd_AttachmentsStayNextToOutput(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := os.ReadFile(filepath.Join("..", "exporters", "testdata", "escape.ipynb"))
	require.NoError(t, err)
	nb := filepath.Join(dir, "evil.ipynb")
	require.NoError(t, os.WriteFile(nb, data, 0o644))

	_, err = execute(t, "convert", "--to", "markdown", nb)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "escaped.png"))
	assert.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(filepath.Join(dir, "evil_files", "escaped.png"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestConvertCmd_Stdout(t *testing.T) {
	nb := copyNotebook(t, "sample.ipynb")

	out, err := execute(t, "convert", "--to", "markdown", "--output", "-", nb)
	require.NoError(t, err)
	assert.Contains(t, out, "# Sample")

	nb = copyNotebook(t, "images.ipynb")
	_, err = execute(t, "convert", "--to", "markdown", "--output", "-", nb)
	assert.Error(t, err)
}

func TestConvertCmd_Errors(t *testing.T) {
	nb := copyNotebook(t, "sample.ipynb")

	_, err := execute(t, "convert", "--to", "nope", nb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	_, err = execute(t, "convert", filepath.Join(t.TempDir(), "missing.ipynb"))
	assert.Error(t, err)
}
