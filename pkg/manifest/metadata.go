package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata is the part of package.json that ends up in the manifest.
type Metadata struct {
	Name        string
	Version     string
	Description string
	Author      string
}

type packageJSON struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Author      json.RawMessage `json:"author"`
}

// LoadMetadata reads package.json. The author may be a string or an object
// with a name.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("manifest: %w", err)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return Metadata{}, fmt.Errorf("manifest: %s: %w", path, err)
	}
	author, err := parseAuthor(pkg.Author)
	if err != nil {
		return Metadata{}, fmt.Errorf("manifest: %s: author: %w", path, err)
	}
	return Metadata{
		Name:        pkg.Name,
		Version:     pkg.Version,
		Description: pkg.Description,
		Author:      author,
	}, nil
}

func parseAuthor(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return obj.Name, nil
}
