package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptName(t *testing.T) {
	cases := map[string]string{
		"popup.tsx":       "popup",
		"popup/index.tsx": "popup/index",
		"bg.ts":           "bg",
		"a.jsx":           "a",
		"lib.js":          "lib",
		"styles.scss":     "styles.scss",
		"foo.ts.js":       "foo",
		".ts":             ".ts",
	}
	for in, want := range cases {
		assert.Equal(t, want, ScriptName(in), in)
	}
}

func TestScriptNameIdempotent(t *testing.T) {
	for _, in := range []string{"popup.tsx", "a/b.ts", "plain", "x.js", "y.d.ts", "z.ts.jsx"} {
		once := ScriptName(in)
		assert.Equal(t, once, ScriptName(once), in)
	}
}

func TestIsScript(t *testing.T) {
	assert.True(t, IsScript("index.tsx"))
	assert.True(t, IsScript("index.js"))
	assert.False(t, IsScript("index.html"))
	assert.False(t, IsScript("styles.css"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "background", Background.String())
	assert.Equal(t, "page:popup", Entry{LogicalName: "popup", Kind: Page}.String())
}
