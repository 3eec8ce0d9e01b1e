package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// RevisionsFile is the default name of the revision marker document.
const RevisionsFile = "revisions.toml"

// RevisionStore persists the framework revision each plugin's configuration
// was last written under.
type RevisionStore struct {
	path   string
	values map[string]int
}

// LoadRevisions reads the marker document at path. A missing file yields an
// empty store.
func LoadRevisions(path string) (*RevisionStore, error) {
	s := &RevisionStore{path: path, values: make(map[string]int)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read revisions: %w", err)
	}
	if err := toml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse revisions %s: %w", path, err)
	}
	return s, nil
}

// Get returns the recorded revision for a sanitized plugin name.
func (s *RevisionStore) Get(name string) (int, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set records a revision.
func (s *RevisionStore) Set(name string, revision int) {
	s.values[name] = revision
}

// Save writes the marker document.
func (s *RevisionStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create revisions dir: %w", err)
	}
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode revisions: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write revisions: %w", err)
	}
	return nil
}
