package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Loader = (*BuiltinLoader)(nil)
	_ Loader = (*DirectoryLoader)(nil)
	_ Loader = (*ArchiveLoader)(nil)
	_ Loader = (*MultiLoader)(nil)
)

func TestSourceType_String(t *testing.T) {
	tests := []struct {
		st   SourceType
		want string
	}{
		{SourceBuiltin, "builtin"},
		{SourceDirectory, "directory"},
		{SourceArchive, "archive"},
		{SourceUnknown, "unknown"},
		{SourceType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.st.String())
		})
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		ref  string
		want SourceType
	}{
		{"", SourceBuiltin},
		{"skeleton-1.0.0.tgz", SourceArchive},
		{"/tmp/skeleton.tar.gz", SourceArchive},
		{dir, SourceDirectory},
	}

	for _, tt := range tests {
		st, err := Detect(tt.ref)
		require.NoError(t, err, "ref=%q", tt.ref)
		assert.Equal(t, tt.want, st, "ref=%q", tt.ref)
	}
}

func TestDetect_Unknown(t *testing.T) {
	for _, ref := range []string{"just-a-name", "/nonexistent/skeleton"} {
		_, err := Detect(ref)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "neither a directory nor a chart archive")
	}
}

func TestLoadOptions_EffectiveMaxArchiveSize(t *testing.T) {
	assert.Equal(t, DefaultMaxArchiveSize, (&LoadOptions{}).effectiveMaxArchiveSize())
	assert.Equal(t, int64(50*1024*1024), (&LoadOptions{MaxArchiveSize: 50 * 1024 * 1024}).effectiveMaxArchiveSize())
	assert.Equal(t, DefaultMaxArchiveSize, (&LoadOptions{MaxArchiveSize: -1}).effectiveMaxArchiveSize(),
		"negative MaxArchiveSize should fall back to default")
}

// createTestSkeleton creates a minimal skeleton directory for testing.
func createTestSkeleton(t *testing.T, dir, name, version string) string {
	t.Helper()

	chartDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Join(chartDir, "templates"), 0o750))

	chartYAML := "apiVersion: v2\nname: " + name + "\nversion: " + version + "\ndescription: A test skeleton\ntype: application\n"
	require.NoError(t, os.WriteFile(filepath.Join(chartDir, "Chart.yaml"), []byte(chartYAML), 0o600))

	valuesYAML := "global:\n  imageOverrides:\n    imageOverride: \"\"\n  namespace: default\n"
	require.NoError(t, os.WriteFile(filepath.Join(chartDir, "values.yaml"), []byte(valuesYAML), 0o600))

	notes := "{{ .Chart.Name }} installed.\n"
	require.NoError(t, os.WriteFile(filepath.Join(chartDir, "templates", "NOTES.txt"), []byte(notes), 0o600))

	return chartDir
}

func writeChartYAML(t *testing.T, chartDir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(chartDir, "Chart.yaml"), []byte(content), 0o600))
}
