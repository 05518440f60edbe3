package manifest

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var (
	yamlExts = []string{".yaml", ".yml"}
	jsonExts = []string{".json", ".jsonc"}
)

// Supported reports whether path has a group or catalog file extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(yamlExts, ext) || slices.Contains(jsonExts, ext)
}

// decode unmarshals YAML or JSON-with-comments by extension. Unknown fields are rejected.
func decode(path string, data []byte, v any) error {
	ext := strings.ToLower(filepath.Ext(path))
	if slices.Contains(yamlExts, ext) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(v)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// stem strips the directory and extension from a group file path.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
