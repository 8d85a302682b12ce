package loader

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestArchive packages a skeleton the way helm package lays it out and
// returns the archive path.
func buildTestArchive(t *testing.T, dir, name, version string) string {
	t.Helper()

	var buf bytes.Buffer

	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for file, content := range map[string]string{
		"Chart.yaml":          "apiVersion: v2\nname: " + name + "\nversion: " + version + "\ntype: application\n",
		"values.yaml":         "global:\n  pullSecret: null\nhubconfig:\n  hubSize: Small\n",
		"templates/NOTES.txt": "{{ .Chart.Name }} installed.\n",
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name + "/" + file,
			Mode: 0o600,
			Size: int64(len(content)),
		}))

		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	archivePath := filepath.Join(dir, name+"-"+version+".tgz")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o600))

	return archivePath
}

func TestArchiveLoader_Load(t *testing.T) {
	archivePath := buildTestArchive(t, t.TempDir(), "hub-skeleton", "1.2.0")

	ch, err := NewArchiveLoader().Load(context.Background(), archivePath, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "hub-skeleton", ch.Metadata.Name)
	assert.Equal(t, "1.2.0", ch.Metadata.Version)
	assert.Len(t, ch.Templates, 1)
	assert.Contains(t, ch.Values, "hubconfig")
	assert.NoError(t, Validate(ch))
}

func TestArchiveLoader_Load_Missing(t *testing.T) {
	_, err := NewArchiveLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.tgz"), LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "skeleton archive")
}

func TestArchiveLoader_Load_OverLimit(t *testing.T) {
	archivePath := buildTestArchive(t, t.TempDir(), "hub-skeleton", "1.2.0")

	_, err := NewArchiveLoader().Load(context.Background(), archivePath, LoadOptions{MaxArchiveSize: 16})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the 16 byte limit")
}

func TestArchiveLoader_Load_NotGzip(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "broken.tgz")
	require.NoError(t, os.WriteFile(archivePath, []byte("plain text"), 0o600))

	_, err := NewArchiveLoader().Load(context.Background(), archivePath, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unpacking skeleton archive")
}
