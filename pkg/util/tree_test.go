package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileTree(t *testing.T) {
	tree := NewFileTree("dist/chrome")
	tree.Insert("background.js", 10)
	tree.Insert("chunks/abc.js", 3)
	tree.Insert("manifest.json", 120)
	tree.Insert("pages/popup.html", 200)
	tree.Insert("pages/popup.js", 42)

	want := `dist/chrome
├── background.js (10 B)
├── chunks
│   └── abc.js (3 B)
├── manifest.json (120 B)
└── pages
    ├── popup.html (200 B)
    └── popup.js (42 B)
`
	assert.Equal(t, want, tree.Render())
}
