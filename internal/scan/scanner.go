// Package scan finds plugin types inside accepted containers.
package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/logging"
)

// Scanner enumerates a container's type names and keeps the ones that
// resolve to concrete plugin types. A Scanner remembers every type it has
// collected, so a type offered by two containers is reported once.
type Scanner struct {
	facility codeload.Facility
	prefixes []string
	maxDepth int
	logger   *logging.Logger

	collected map[string]bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPrefixes restricts scanning to types whose simple name starts with one
// of the prefixes. No prefixes means every type is considered.
func WithPrefixes(prefixes ...string) Option {
	return func(s *Scanner) {
		s.prefixes = append(s.prefixes[:0], prefixes...)
	}
}

// WithMaxDepth bounds directory recursion inside a container.
func WithMaxDepth(depth int) Option {
	return func(s *Scanner) {
		s.maxDepth = depth
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a scanner resolving through facility.
func New(facility codeload.Facility, opts ...Option) *Scanner {
	s := &Scanner{
		facility:  facility,
		maxDepth:  container.DefaultMaxDepth,
		logger:    logging.NewNull(),
		collected: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report is the outcome of scanning one container.
type Report struct {
	// Types are the accepted plugin types, in entry order.
	Types []codeload.Type

	// Skipped holds the per-type resolution failures.
	Skipped []error
}

// Scan resolves the plugin types in c. If any candidate fails because a
// framework type is missing, the whole container is discarded and an
// *IncompatibleError is returned.
func (s *Scanner) Scan(ctx context.Context, c *container.Container) (Report, error) {
	var report Report
	if err := ctx.Err(); err != nil {
		return report, err
	}

	names, err := s.candidates(c)
	if err != nil {
		return report, err
	}

	var accepted []codeload.Type
	for _, name := range names {
		typ, err := s.facility.Resolve(name)
		if err != nil {
			if root, ok := codeload.RootMissing(err); ok && codeload.IsFrameworkType(root.Name) {
				s.logger.Warn("discarding %s: %s needs missing framework component %s", c.Location(), name, root.Name)
				return Report{}, &IncompatibleError{Location: c.Location(), Missing: root.Name, Err: err}
			}
			s.logger.Warn("skipping %s in %s: %v", name, c.Location(), err)
			report.Skipped = append(report.Skipped, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if !typ.IsPlugin() {
			continue
		}
		accepted = append(accepted, typ)
	}

	for _, typ := range accepted {
		if s.collected[typ.Name()] {
			continue
		}
		s.collected[typ.Name()] = true
		report.Types = append(report.Types, typ)
		s.logger.Debug("found plugin type %s in %s", typ.Name(), c.Location())
	}
	return report, nil
}

// candidates lists the type names in c that pass the name filters.
func (s *Scanner) candidates(c *container.Container) ([]string, error) {
	entries, err := c.Entries(s.maxDepth)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, entry := range entries {
		name, ok := s.facility.TypeName(entry)
		if !ok || seen[name] || isNested(name) || !s.matchesPrefix(name) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func (s *Scanner) matchesPrefix(name string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	simple := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		simple = name[i+1:]
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(simple, p) {
			return true
		}
	}
	return false
}

// isNested reports whether any segment of name begins with an underscore.
func isNested(name string) bool {
	for _, seg := range strings.Split(name, ".") {
		if strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}
