package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults
var defaultFS embed.FS

const (
	promptExt    = ".txt"
	promptReadme = "README.md"
)

// defaultPrompts holds the built-in instruction for every known prompt name.
var defaultPrompts = mustLoadDefaults()

func mustLoadDefaults() map[string]string {
	entries, err := fs.ReadDir(defaultFS, "defaults")
	if err != nil {
		panic(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), promptExt)
		if !ok {
			continue
		}
		data, err := defaultFS.ReadFile(path.Join("defaults", e.Name()))
		if err != nil {
			panic(err)
		}
		out[name] = strings.TrimSpace(string(data))
	}
	return out
}

// PromptStore serves prompt instructions from a directory of editable
// text files, seeded from the built-in set the first time it is read.
// A missing or unreadable file falls back to the built-in text.
type PromptStore struct {
	dir string

	seed    sync.Once
	seedErr error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore returns a store rooted at dir, or ~/.docqa/prompts when
// dir is empty. Nothing is written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "prompts")
	}
	return &PromptStore{dir: dir, cache: map[string]string{}}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string { return s.dir }

// Load returns the instruction stored under name.
func (s *PromptStore) Load(name string) (string, error) {
	fallback, known := defaultPrompts[name]
	if !known {
		return "", fmt.Errorf("%w: prompt %q", domain.ErrNotFound, name)
	}

	s.seed.Do(func() { s.seedErr = s.seedDir() })
	if s.seedErr != nil {
		return fallback, nil
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text := fallback
	if data, err := os.ReadFile(filepath.Join(s.dir, name+promptExt)); err == nil {
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
			text = trimmed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = text
	return text, nil
}

// Reload drops cached prompts so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

// seedDir creates the directory and copies in any built-in file the user
// does not already have.
func (s *PromptStore) seedDir() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	return fs.WalkDir(defaultFS, "defaults", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		target := filepath.Join(s.dir, d.Name())
		if _, err := os.Stat(target); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		data, err := defaultFS.ReadFile(p)
		if err != nil {
			return err
		}
		if d.Name() != promptReadme {
			data = []byte(strings.TrimSpace(string(data)) + "\n")
		}
		if err := os.WriteFile(target, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", d.Name(), err)
		}
		return nil
	})
}
