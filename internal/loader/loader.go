// Package loader reads and writes the JSON and YAML documents that describe
// container units and CLI arguments.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/auto-dns/container-deployer/internal/domain"
	"gopkg.in/yaml.v3"
)

// Extensions lists the document formats Resolve looks for, in preference order.
var Extensions = []string{".json", ".yaml", ".yml"}

var errUnsupportedFormat = errors.New("unsupported document format")

// Load decodes the document at path into a value of type T.
// Any failure is reported as a *domain.ConfigError carrying the path.
func Load[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, domain.NewConfigError(path, err)
	}
	if err := decode(path, data, &out); err != nil {
		return out, domain.NewConfigError(path, err)
	}
	return out, nil
}

// Save encodes v into path using the format implied by its extension.
func Save(path string, v any) error {
	data, err := encode(path, v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Resolve returns the first existing document named base with a supported
// extension inside dir. When none exists it returns the .json candidate and
// a *domain.ConfigError.
func Resolve(dir, base string) (string, error) {
	for _, ext := range Extensions {
		candidate := filepath.Join(dir, base+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	missing := filepath.Join(dir, base+Extensions[0])
	return missing, domain.NewConfigError(missing, os.ErrNotExist)
}

func decode(path string, data []byte, out any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(out); err != nil {
			return err
		}
		if dec.More() {
			return errors.New("unexpected data after top-level value")
		}
		return nil
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return errors.New("empty document")
		}
		return yaml.Unmarshal(data, out)
	default:
		return errUnsupportedFormat
	}
}

func encode(path string, v any) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.MarshalIndent(v, "", "    ")
	case ".yaml", ".yml":
		return yaml.Marshal(v)
	default:
		return nil, errUnsupportedFormat
	}
}
