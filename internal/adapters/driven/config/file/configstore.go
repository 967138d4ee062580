package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docqa/internal/adapters/driven/config/values"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

const configFile = "config.toml"

// ConfigStore persists settings as TOML. Dotted keys are written as nested
// tables, so "retrieval.top_k" lands under [retrieval] and hand-edited files
// keep their layout.
type ConfigStore struct {
	*values.Map
	path string
}

// NewConfigStore opens config.toml in configDir, or in ~/.docqa when
// configDir is empty. A missing file is an empty configuration.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".docqa")
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	s := &ConfigStore{Map: values.NewMap(), path: filepath.Join(configDir, configFile)}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the TOML file path.
func (s *ConfigStore) Path() string { return s.path }

// Set stores value and rewrites the file. The in-memory value is only
// replaced once the write succeeds.
func (s *ConfigStore) Set(key string, value any) error {
	return s.Update(func(data map[string]any) error {
		data[key] = value
		return s.write(data)
	})
}

// Save rewrites the file from the current values.
func (s *ConfigStore) Save() error {
	return s.write(s.Snapshot())
}

// Load replaces the current values with the file's content.
func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.Replace(flattenMap(doc, ""))
	return nil
}

// write encodes data and swaps it in through a temporary file.
func (s *ConfigStore) write(data map[string]any) error {
	encoded, err := toml.Marshal(nestMap(data))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// flattenMap turns nested tables into dotted keys: {"a": {"b": 1}} becomes
// {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			maps.Copy(out, flattenMap(table, k))
			continue
		}
		out[k] = v
	}
	return out
}

// nestMap inverts flattenMap. When a key is both a value and a table prefix
// ("a" and "a.b"), the deeper keys stay dotted at that level.
func nestMap(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	tables := make(map[string]map[string]any)
	for key, v := range flat {
		head, rest, dotted := strings.Cut(key, ".")
		if !dotted {
			out[key] = v
			continue
		}
		if tables[head] == nil {
			tables[head] = make(map[string]any)
		}
		tables[head][rest] = v
	}

	for head, table := range tables {
		if _, isValue := out[head]; isValue {
			for rest, v := range table {
				out[head+"."+rest] = v
			}
			continue
		}
		out[head] = nestMap(table)
	}
	return out
}
