package util

import (
	"fmt"
	"path"

	"github.com/disiqueira/gotree/v3"
)

// FileTree renders output paths (forward slashes) as a directory tree.
type FileTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func NewFileTree(rootLabel string) FileTree {
	return FileTree{tree: gotree.New(rootLabel), dirs: map[string]gotree.Tree{}}
}

func (t FileTree) dir(dirPath string) gotree.Tree {
	if dirPath == "." || dirPath == "" {
		return t.tree
	}
	d := t.dirs[dirPath]
	if d == nil {
		d = t.dir(path.Dir(dirPath)).Add(path.Base(dirPath))
		t.dirs[dirPath] = d
	}
	return d
}

// Insert adds a file. Paths should be inserted in sorted order so that
// directories list their entries in order.
func (t FileTree) Insert(filePath string, size int) {
	t.dir(path.Dir(filePath)).Add(fmt.Sprintf("%s (%d B)", path.Base(filePath), size))
}

func (t FileTree) Render() string {
	return t.tree.Print()
}
