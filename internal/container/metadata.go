package container

import (
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// MetadataFile is the well-known path of the metadata document inside a
// container.
const MetadataFile = "plugin.toml"

// listSeparator separates entries in the delimiter-separated fields.
const listSeparator = ","

// Metadata is the decoded metadata document.
type Metadata struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Framework   string `toml:"framework"`
	Author      string `toml:"author"`
	Description string `toml:"description"`

	// Revision is optional; nil means "no explicit revision".
	Revision *float64 `toml:"revision"`

	DependsOn            string `toml:"dependsOn"`
	RequiredCapabilities string `toml:"requiredCapabilities"`

	// Early extension
	Extension         string `toml:"extension"`
	ExtensionPriority int    `toml:"extensionPriority"`
	Transformers      string `toml:"transformers"`
	SearchPaths       string `toml:"searchPaths"`

	// Localized descriptions keyed by BCP 47 tag.
	Descriptions map[string]string `toml:"descriptions"`
}

// ParseMetadata decodes and validates a metadata document.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := toml.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return Metadata{}, ErrMissingName
	}
	return m, nil
}

// Dependencies returns the declared dependency identities.
func (m Metadata) Dependencies() []string {
	deps := splitList(m.DependsOn)
	for i, d := range deps {
		deps[i] = Identity(d)
	}
	return deps
}

// Capabilities returns the declared required-capability identifiers.
func (m Metadata) Capabilities() []string {
	return splitList(m.RequiredCapabilities)
}

// TransformerNames returns the declared transformer type names.
func (m Metadata) TransformerNames() []string {
	return splitList(m.Transformers)
}

// SearchPathEntries returns the declared extra search-path entries.
func (m Metadata) SearchPathEntries() []string {
	return splitList(m.SearchPaths)
}

// HasExtension returns true if the container declares early-extension code.
func (m Metadata) HasExtension() bool {
	return m.Extension != "" || len(m.TransformerNames()) > 0
}

// LocalizedDescription returns the description for locale, falling back to
// the base language and then to the default description.
func (m Metadata) LocalizedDescription(locale string) string {
	if len(m.Descriptions) == 0 || locale == "" {
		return m.Description
	}
	if d, ok := m.Descriptions[locale]; ok {
		return d
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return m.Description
	}
	if d, ok := m.Descriptions[tag.String()]; ok {
		return d
	}
	if base, conf := tag.Base(); conf != language.No {
		if d, ok := m.Descriptions[base.String()]; ok {
			return d
		}
	}
	return m.Description
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, listSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
