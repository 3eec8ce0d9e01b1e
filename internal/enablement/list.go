// Package enablement persists the user's per-profile enable/disable choices
// and answers whether a container identity is enabled under the active
// policy.
package enablement

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/plugkit/internal/container"
)

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "default"

// document is the on-disk form of a List.
type document struct {
	Profiles map[string]map[string]bool `toml:"profiles"`
}

// List is the persistent profile -> (identity -> enabled) map plus the
// default-enabled policy for unlisted identities.
type List struct {
	path           string
	profiles       map[string]map[string]bool
	defaultEnabled bool
	filter         map[string]bool
}

// New creates an empty list that enables unlisted identities by default.
func New(path string) *List {
	return &List{
		path:           path,
		profiles:       make(map[string]map[string]bool),
		defaultEnabled: true,
	}
}

// Load reads the list at path. A missing file yields an empty list.
func Load(path string) (*List, error) {
	l := New(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading enabled list %s: %w", path, err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing enabled list %s: %w", path, err)
	}
	for profile, entries := range doc.Profiles {
		for id, enabled := range entries {
			l.SetEnabled(profile, id, enabled)
		}
	}
	return l, nil
}

// Save writes the list back to its path, creating parent directories.
func (l *List) Save() error {
	if l.path == "" {
		return errors.New("enabled list has no path")
	}
	data, err := toml.Marshal(document{Profiles: l.profiles})
	if err != nil {
		return fmt.Errorf("encoding enabled list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating enabled list directory: %w", err)
	}
	return os.WriteFile(l.path, data, 0644)
}

// ApplyFilter switches the list into explicit-filter mode: unlisted
// identities become disabled for this session and only the filtered
// identities are enabled. An empty filter leaves the policy unchanged.
// The filter is never persisted.
func (l *List) ApplyFilter(ids []string) {
	if len(ids) == 0 {
		return
	}
	l.defaultEnabled = false
	l.filter = make(map[string]bool, len(ids))
	for _, id := range ids {
		l.filter[container.Identity(id)] = true
	}
}

// DefaultEnabled returns the policy for unlisted identities.
func (l *List) DefaultEnabled() bool {
	return l.defaultEnabled
}

// IsEnabled reports whether id is enabled in profile.
func (l *List) IsEnabled(profile, id string) bool {
	id = container.Identity(id)
	if l.filter != nil {
		return l.filter[id]
	}
	if entries, ok := l.profiles[profileKey(profile)]; ok {
		if enabled, ok := entries[id]; ok {
			return enabled
		}
	}
	return l.defaultEnabled
}

// SetEnabled records an explicit choice for id in profile.
func (l *List) SetEnabled(profile, id string, enabled bool) {
	profile = profileKey(profile)
	entries, ok := l.profiles[profile]
	if !ok {
		entries = make(map[string]bool)
		l.profiles[profile] = entries
	}
	entries[container.Identity(id)] = enabled
}

// Profiles returns the known profile names, sorted.
func (l *List) Profiles() []string {
	names := make([]string, 0, len(l.profiles))
	for name := range l.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func profileKey(profile string) string {
	if profile == "" {
		return DefaultProfile
	}
	return profile
}
