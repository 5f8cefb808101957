package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/resolve"
)

func project(t *testing.T, files map[string]string) config.Config {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return config.Default(root)
}

func TestCompileTypeScript(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/background.ts": `import { greet } from '@utils/greet';
const mode: string = X_MODE;
console.log(greet(mode));
export const later = () => import('./lazy');
`,
		"src/utils/greet.ts": `export const greet = (s: string) => 'hi ' + s;`,
		"src/lazy.ts":        `export default 1;`,
	})
	c, err := New(cfg)
	require.NoError(t, err)

	o, err := c.Compile("src/background.ts")
	require.NoError(t, err)
	assert.Equal(t, "src/background.ts", o.ID)
	assert.Equal(t, []string{"src/utils/greet.ts"}, o.Imports)
	assert.Equal(t, []string{"src/lazy.ts"}, o.Dynamic)
	assert.Contains(t, string(o.Code), `require("src/utils/greet.ts")`)
	assert.Contains(t, string(o.Code), `__extbld_import__("src/lazy.ts")`)
	assert.Contains(t, string(o.Code), `"development"`)
	assert.NotContains(t, string(o.Code), "X_MODE")
	assert.NotEmpty(t, o.Hash)

	again, err := c.Compile("src/background.ts")
	require.NoError(t, err)
	assert.Equal(t, o.Hash, again.Hash)
}

func TestCompileNonScripts(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/assets/test.txt":  "hello <world>",
		"src/pages/style.scss": ".a { color: red }",
		"src/data.json":        `{"a": 1}`,
	})
	c, err := New(cfg)
	require.NoError(t, err)

	o, err := c.Compile("src/assets/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "module.exports = \"/assets/test.txt\";\n", string(o.Code))

	o, err = c.Compile("src/assets/test.txt?raw")
	require.NoError(t, err)
	assert.Contains(t, string(o.Code), `hello <world>`)

	o, err = c.Compile("src/pages/style.scss")
	require.NoError(t, err)
	assert.Contains(t, string(o.Code), "color: red")

	o, err = c.Compile("src/data.json")
	require.NoError(t, err)
	assert.Contains(t, string(o.Code), "module.exports")
}

func TestCompileErrors(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/bad.ts":     "const = ;",
		"src/missing.ts": "import './nope';",
		"src/image.png":  "png",
	})
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.Compile("src/bad.ts")
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "src/bad.ts", cerr.ID)
	assert.NotEmpty(t, cerr.Messages)

	_, err = c.Compile("src/missing.ts")
	assert.ErrorIs(t, err, resolve.ErrNotFound)

	_, err = c.Compile("src/image.png")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = c.Compile("src/absent.ts")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompileImportTextInLiterals(t *testing.T) {
	cfg := project(t, map[string]string{
		"src/background.ts": "export const help = \"usage: call require('fs') to read\";\n" +
			"export const hint = `call require('./a') now`;\n" +
			"export const re = /import\\(\"\\.\\/a\"\\)/;\n",
		"src/a.ts": `export default 1;`,
	})
	c, err := New(cfg)
	require.NoError(t, err)

	o, err := c.Compile("src/background.ts")
	require.NoError(t, err)
	assert.Empty(t, o.Imports)
	assert.Empty(t, o.Dynamic)
	assert.Contains(t, string(o.Code), "call require('fs') to read")
	assert.Contains(t, string(o.Code), "call require('./a') now")
	assert.NotContains(t, string(o.Code), "src/a.ts")
}
