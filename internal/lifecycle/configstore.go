package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/plugkit/internal/plugin"
)

// ConfigStore persists plugin settings as one TOML document per plugin under
// a directory versioned by framework revision.
type ConfigStore struct {
	root     string
	revision int
	targets  map[string]any
	order    []string
}

// NewConfigStore creates a store rooted at root for the current revision. An
// empty root keeps settings in memory only.
func NewConfigStore(root string, revision int) *ConfigStore {
	return &ConfigStore{
		root:     root,
		revision: revision,
		targets:  make(map[string]any),
	}
}

// Dir returns the versioned configuration directory for revision.
func (s *ConfigStore) Dir(revision int) string {
	if s.root == "" {
		return ""
	}
	return filepath.Join(s.root, "r"+strconv.Itoa(revision))
}

// CurrentDir returns the configuration directory for the current revision.
func (s *ConfigStore) CurrentDir() string {
	return s.Dir(s.revision)
}

// Register records p for persistence if it exposes settings. It reports
// whether p was registered.
func (s *ConfigStore) Register(name string, p plugin.Plugin) bool {
	c, ok := p.(plugin.Configurable)
	if !ok {
		return false
	}
	target := c.Settings()
	if target == nil {
		return false
	}
	if _, exists := s.targets[name]; !exists {
		s.order = append(s.order, name)
	}
	s.targets[name] = target
	return true
}

// Path returns the configuration file for a sanitized plugin name.
func (s *ConfigStore) Path(name string) string {
	return filepath.Join(s.CurrentDir(), name+".toml")
}

// Load decodes the persisted settings into the registered target. A missing
// file leaves the defaults in place.
func (s *ConfigStore) Load(name string) error {
	target, ok := s.targets[name]
	if !ok || s.root == "" {
		return nil
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse config %s: %w", s.Path(name), err)
	}
	return nil
}

// Save writes one plugin's settings.
func (s *ConfigStore) Save(name string) error {
	target, ok := s.targets[name]
	if !ok || s.root == "" {
		return nil
	}
	if err := os.MkdirAll(s.CurrentDir(), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(target)
	if err != nil {
		return fmt.Errorf("encode config for %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveAll writes every registered plugin's settings.
func (s *ConfigStore) SaveAll() error {
	var errs []error
	for _, name := range s.order {
		if err := s.Save(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forget drops a plugin's registration.
func (s *ConfigStore) Forget(name string) {
	if _, ok := s.targets[name]; !ok {
		return
	}
	delete(s.targets, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Sanitize turns a plugin name into a file-name-safe key.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
