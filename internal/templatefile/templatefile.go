// Package templatefile reads and writes templates as portable files.
//
// A template file carries only the authored parts of a template. Ids,
// timestamps, usage counters and version numbers stay in the database.
//
// Format (YAML):
//
//	name: Invoice
//	type: INVOICE
//	category: finance
//	body: |
//	  Invoice for {{company}} on {{current_date}}
//	placeholders:
//	  company:
//	    label: Company name
package templatefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a template file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// File is the exported form of a template.
type File struct {
	Name         string         `yaml:"name" toml:"name" json:"name"`
	Type         string         `yaml:"type,omitempty" toml:"type,omitempty" json:"type,omitempty"`
	Category     string         `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
	Description  string         `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Body         string         `yaml:"body" toml:"body,multiline" json:"body"`
	Placeholders map[string]any `yaml:"placeholders,omitempty" toml:"placeholders,omitempty" json:"placeholders,omitempty"`
	IsActive     *bool          `yaml:"is_active,omitempty" toml:"is_active,omitempty" json:"is_active,omitempty"`
}

// ParseFormat accepts "yaml", "yml", "toml" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported template format %q", s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode serializes f.
func Encode(f File, format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(f)
	case FormatTOML:
		data, err = toml.Marshal(f)
	case FormatJSON:
		data, err = json.MarshalIndent(f, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode template as %s: %w", format, err)
	}
	return data, nil
}

// Decode parses a template file.
func Decode(data []byte, format Format) (File, error) {
	var (
		f   File
		err error
	)
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatTOML:
		err = toml.Unmarshal(data, &f)
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	default:
		return File{}, fmt.Errorf("unsupported template format %q", format)
	}
	if err != nil {
		return File{}, fmt.Errorf("failed to parse %s template: %w", format, err)
	}
	return f, nil
}

// ReadFile reads and decodes the template file at path.
func ReadFile(path string) (File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data, format)
}

// WriteFile encodes f in the format implied by path.
func WriteFile(path string, f File) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(f, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Glob returns the template files under root matching pattern, which may use
// "**" to cross directories. Files without a known extension are ignored.
func Glob(root, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	var paths []string
	for _, m := range matches {
		if _, err := FormatFromPath(m); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(root, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}

