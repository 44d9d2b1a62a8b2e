package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"companiond/internal/common/fsutil"
)

// document is the on-disk catalog layout:
//
//	models:
//	  - name: gemma-3n
//	    url: https://example.com/gemma.gguf
//	    file_name: gemma.gguf
//	    backend: accelerated
type document struct {
	Models []Descriptor `json:"models" yaml:"models" toml:"models"`
}

// LoadFile reads a catalog document based on its extension
// (.yaml/.yml, .json, .toml). Every entry gets WithDefaults applied and must
// validate; names must be unique.
func LoadFile(path string) ([]Descriptor, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var doc document
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &doc)
	case ".json":
		err = json.Unmarshal(b, &doc)
	case ".toml":
		err = toml.Unmarshal(b, &doc)
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", p, err)
	}
	seen := make(map[string]bool, len(doc.Models))
	out := make([]Descriptor, 0, len(doc.Models))
	for _, d := range doc.Models {
		d = d.WithDefaults()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, &ConfigError{Model: d.Name, Reason: "duplicate name in catalog"}
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out, nil
}

// ScanDir scans a directory for *.gguf files and builds descriptors from
// filenames. Name is the full filename; Path is the absolute file path;
// sampling parameters take the package defaults.
func ScanDir(dir string) ([]Descriptor, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Descriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, Descriptor{
			Name:        name,
			Path:        filepath.Join(abs, name),
			Temperature: DefaultTemperature,
			TopK:        DefaultTopK,
			TopP:        DefaultTopP,
			MaxTokens:   DefaultMaxTokens,
		})
	}
	return models, nil
}

// Merge combines catalog entries with scanned ones. Entries from primary win
// on name clashes, and a scanned file already referenced by a primary entry
// (by path or file name) is dropped. The result is sorted by name.
func Merge(primary, scanned []Descriptor) []Descriptor {
	names := make(map[string]bool, len(primary))
	files := make(map[string]bool, len(primary))
	out := make([]Descriptor, 0, len(primary)+len(scanned))
	for _, d := range primary {
		names[d.Name] = true
		if d.Path != "" {
			files[filepath.Base(d.Path)] = true
		}
		if d.FileName != "" {
			files[d.FileName] = true
		}
		out = append(out, d)
	}
	for _, d := range scanned {
		if names[d.Name] || files[filepath.Base(d.Path)] {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find returns the descriptor with the given name.
func Find(models []Descriptor, name string) (Descriptor, bool) {
	for _, d := range models {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
