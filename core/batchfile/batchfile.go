// Package batchfile reads batch documents from JSON or YAML files, as used
// by the `multisend send` command.
package batchfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/multisend/core/model"
)

// Load reads a batch document from a JSON or YAML file.
func Load(path string) (model.BatchDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.BatchDocument{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Decode(f, ext)
}

// Decode reads a batch document from r in the given format.
func Decode(r io.Reader, format string) (model.BatchDocument, error) {
	var doc model.BatchDocument
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return doc, fmt.Errorf("decode yaml: %w", err)
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return doc, fmt.Errorf("decode json: %w", err)
		}
	default:
		return doc, fmt.Errorf("unsupported batch file format: %q", format)
	}
	return doc, nil
}
