package asset

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPutGet(t *testing.T) {
	s := NewSet()
	s.Put("b.js", []byte("b"))
	s.Put("a/x.js", []byte("1"))
	s.Put("a/x.js", []byte("2"))

	data, ok := s.Get("a/x.js")
	require.True(t, ok)
	assert.Equal(t, "2", string(data))
	assert.Equal(t, []string{"a/x.js", "b.js"}, s.Paths())
	assert.Equal(t, 2, s.Len())

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestCopyTree(t *testing.T) {
	fsys := fstest.MapFS{
		"icon.png":      {Data: []byte("png")},
		"fonts/a.woff2": {Data: []byte("font")},
		"fonts/.keep":   {Data: []byte("")},
		"nested/deep/x": {Data: []byte("x")},
	}
	s := NewSet()
	require.NoError(t, s.CopyTree(fsys, "**", "assets"))

	data, ok := s.Get("assets/fonts/a.woff2")
	require.True(t, ok)
	assert.Equal(t, "font", string(data))
	assert.Contains(t, s.Paths(), "assets/icon.png")
	assert.Contains(t, s.Paths(), "assets/nested/deep/x")
}

func TestWriteCleansOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.js"), []byte("old"), 0o644))

	s := NewSet()
	s.Put("background.js", []byte("bg"))
	s.Put("pages/popup.html", []byte("<html>"))
	require.NoError(t, s.Write(dir))

	_, err := os.Stat(filepath.Join(dir, "stale.js"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "pages", "popup.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))
}

func TestWriteRejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"../x.js", "/abs.js", "a/../../b.js", "", "a//b.js"} {
		s := NewSet()
		s.Put(p, []byte("x"))
		err := s.Write(dir)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
}
