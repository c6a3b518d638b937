package rustsrc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadManifest(t *testing.T) {
	t.Parallel()

	m, err := ReadManifest("testdata/widgets")
	require.NoError(t, err)
	assert.Equal(t, "widget-kit", m.Package.Name)
	assert.Equal(t, "0.3.1", m.Package.Version)
	assert.Equal(t, "widget_kit", m.CrateName())

	root, err := m.RootFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "widgets", "src", "lib.rs"), root)
}

func TestManifest_LibOverrides(t *testing.T) {
	t.Parallel()

	dir := writeCrate(t, map[string]string{
		"Cargo.toml": "[package]\nname = \"my-pkg\"\nversion = \"2.0.0\"\n\n[lib]\nname = \"mylib\"\npath = \"lib/root.rs\"\n",
	})
	m, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "mylib", m.CrateName())

	root, err := m.RootFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lib", "root.rs"), root)
}

func TestManifest_BinaryOnly(t *testing.T) {
	t.Parallel()

	dir := writeCrate(t, map[string]string{
		"Cargo.toml":  "[package]\nname = \"tool\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})
	m, err := ReadManifest(dir)
	require.NoError(t, err)
	root, err := m.RootFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src", "main.rs"), root)
}

func TestManifest_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadManifest(t.TempDir())
	assert.Error(t, err)

	dir := writeCrate(t, map[string]string{"Cargo.toml": "[workspace]\nmembers = []\n"})
	_, err = ReadManifest(dir)
	assert.Error(t, err)

	dir = writeCrate(t, map[string]string{"Cargo.toml": "[package]\nname = \"empty\"\n"})
	m, err := ReadManifest(dir)
	require.NoError(t, err)
	_, err = m.RootFile()
	assert.ErrorIs(t, err, ErrNoLibrary)
}
