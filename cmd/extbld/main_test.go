package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"package.json":                 `{"name": "cli-demo", "version": "1.0.0"}`,
		"src/background.ts":            `console.log("bg");`,
		"src/pages/popup.ts":           `document.title = "popup";`,
		"src/contentscripts/inject.ts": `console.log("cs");`,
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	root := writeProject(t)
	out, err := execute("--root", root, "--browser", "firefox", "--mode", "production")
	require.NoError(t, err)

	assert.Contains(t, out, "dist/firefox\n")
	assert.Contains(t, out, "manifest.json (")
	assert.Contains(t, out, "popup.html (")
	_, err = os.Stat(filepath.Join(root, "dist", "firefox", "contentscripts", "inject.js"))
	assert.NoError(t, err)
}

func TestBuildCommandInvalidBrowser(t *testing.T) {
	root := writeProject(t)
	_, err := execute("--root", root, "--browser", "safari")
	assert.ErrorContains(t, err, "unknown browser")
}
