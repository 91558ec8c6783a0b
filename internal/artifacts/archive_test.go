package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestUnzip(t *testing.T) {
	archiveDir := t.TempDir()
	dest := filepath.Join(t.TempDir(), "data")
	writeZip(t, filepath.Join(archiveDir, "dados_eolica.zip"), map[string]string{
		"training_wind.csv": "a\n1\n",
		"nested/readme.txt": "hello",
	})

	written, err := Unzip(archiveDir, "dados_eolica", dest)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	data, err := os.ReadFile(filepath.Join(dest, "training_wind.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "nested", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestUnzip_MissingArchive(t *testing.T) {
	_, err := Unzip(t.TempDir(), "nope", t.TempDir())
	assert.True(t, IsNotFound(err))
}

func TestUnzip_RejectsEscapingEntries(t *testing.T) {
	archiveDir := t.TempDir()
	writeZip(t, filepath.Join(archiveDir, "evil.zip"), map[string]string{"../outside.txt": "x"})

	dest := filepath.Join(t.TempDir(), "data")
	_, err := Unzip(archiveDir, "evil", dest)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "outside.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
