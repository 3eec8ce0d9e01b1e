// Package inject stages accepted containers into the code-loading facility
// and queues the early-extension work they declare.
package inject

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/logging"
)

// ErrMalformedLocation is returned for search-path entries that cannot be
// turned into a location.
var ErrMalformedLocation = errors.New("malformed location reference")

// EntryPoint is a queued early-extension entry point. Lower priorities run
// first; equal priorities keep discovery order.
type EntryPoint struct {
	TypeName  string
	Priority  int
	Container container.ID

	seq int
}

// Injector stages containers and collects their early-extension
// declarations.
type Injector struct {
	facility codeload.Facility
	logger   *logging.Logger

	staged       map[string]bool
	entries      []EntryPoint
	transformers []string
	searchPaths  []string
	external     []*container.Container
	seq          int
}

// New creates an injector for facility.
func New(facility codeload.Facility, logger *logging.Logger) *Injector {
	if logger == nil {
		logger = logging.NewNull()
	}
	return &Injector{
		facility: facility,
		logger:   logger,
		staged:   make(map[string]bool),
	}
}

// Stage makes c's code resolvable. Staging the same location twice is a
// no-op.
func (i *Injector) Stage(c *container.Container) error {
	if i.staged[c.Location()] {
		return nil
	}
	if err := i.facility.Stage(c); err != nil {
		return fmt.Errorf("stage %s: %w", c.Location(), err)
	}
	i.staged[c.Location()] = true
	return nil
}

// Staged reports whether the container at location has been staged.
func (i *Injector) Staged(location string) bool {
	return i.staged[location]
}

// Inject stages c and queues its entry point, transformers and extra
// search-path entries. Malformed search-path entries are logged and
// skipped.
func (i *Injector) Inject(c *container.Container) error {
	if err := i.Stage(c); err != nil {
		return err
	}
	if c.Kind() == container.KindPathEntry {
		i.external = append(i.external, c)
	}

	meta := c.Metadata()
	if name := strings.TrimSpace(meta.Extension); name != "" {
		i.entries = append(i.entries, EntryPoint{
			TypeName:  name,
			Priority:  meta.ExtensionPriority,
			Container: c.ID(),
			seq:       i.seq,
		})
		i.seq++
	}
	i.transformers = append(i.transformers, meta.TransformerNames()...)

	for _, entry := range meta.SearchPathEntries() {
		location, err := resolveLocation(c, entry)
		if err != nil {
			i.logger.Warn("%s: skipping search path %q: %v", c.Location(), entry, err)
			continue
		}
		if err := i.facility.AddSearchPath(location); err != nil {
			i.logger.Warn("%s: adding search path %s: %v", c.Location(), location, err)
			continue
		}
		i.searchPaths = append(i.searchPaths, location)
	}

	i.logger.Debug("injected %s", c.Location())
	return nil
}

// EntryPoints returns the queued entry points in run order.
func (i *Injector) EntryPoints() []EntryPoint {
	out := slices.Clone(i.entries)
	slices.SortStableFunc(out, func(a, b EntryPoint) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// Transformers returns the queued transformer type names in queue order.
func (i *Injector) Transformers() []string {
	return slices.Clone(i.transformers)
}

// SearchPaths returns the extra search-path entries that were added.
func (i *Injector) SearchPaths() []string {
	return slices.Clone(i.searchPaths)
}

// External returns the injected containers that were found on the host's
// search path rather than in a plugin directory.
func (i *Injector) External() []*container.Container {
	return slices.Clone(i.external)
}

// resolveLocation turns a declared search-path entry into a location.
// Relative entries are resolved against the directory holding c and may not
// escape it.
func resolveLocation(c *container.Container, entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" || strings.ContainsRune(entry, 0) {
		return "", ErrMalformedLocation
	}

	var location string
	if filepath.IsAbs(entry) {
		location = filepath.Clean(entry)
	} else {
		if !filepath.IsLocal(entry) {
			return "", fmt.Errorf("%w: %s escapes its container", ErrMalformedLocation, entry)
		}
		base := c.Location()
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			base = filepath.Dir(base)
		}
		location = filepath.Join(base, entry)
	}

	if _, err := os.Stat(location); err != nil {
		return "", err
	}
	return location, nil
}
