package scan

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/entry"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/bg.ts":                     "",
		"src/pages/popup.tsx":           "",
		"src/pages/options/index.ts":    "",
		"src/pages/styles.scss":         "",
		"src/pages/template.html":       "",
		"src/contentscripts/inject.tsx": "",
	})
	cfg := config.Default(root)
	cfg.Src.Background = "src/bg.ts"

	entries, err := Scan(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, entry.Entry{LogicalName: "background", SourcePath: "src/bg.ts", Kind: entry.Background}, entries[0])

	var got []string
	for _, e := range entries[1:] {
		got = append(got, e.String()+"="+e.SourcePath)
	}
	sort.Strings(got)
	assert.Equal(t, []string{
		"contentscript:inject=src/contentscripts/inject.tsx",
		"page:options/index=src/pages/options/index.ts",
		"page:popup=src/pages/popup.tsx",
	}, got)
}

func TestScanMissingRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/background.ts":   "",
		"src/pages/popup.tsx": "",
	})

	_, err := Scan(config.Default(root))
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "src/contentscripts", scanErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanMissingBackground(t *testing.T) {
	_, err := Scan(config.Default(t.TempDir()))
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "src/background.ts", scanErr.Path)
}

func TestScanDirNotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/pages": "oops"})

	_, err := ScanDir(config.Default(root), "src/pages", entry.Page)
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
}
