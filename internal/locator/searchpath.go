package locator

import (
	"context"
	"os"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/logging"
)

// SearchPath offers the host's own code-search-path entries as containers.
// Entries are directories or archives already visible to the loading
// facility.
type SearchPath struct {
	entries []string
	logger  *logging.Logger
}

// NewSearchPath creates a search-path locator.
func NewSearchPath(entries []string, logger *logging.Logger) *SearchPath {
	if logger == nil {
		logger = logging.NewNull()
	}
	return &SearchPath{entries: entries, logger: logger}
}

// Name implements Module.
func (s *SearchPath) Name() string {
	return "searchpath"
}

// Enumerate implements Module.
func (s *SearchPath) Enumerate(ctx context.Context, sink Sink) error {
	for _, entry := range s.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(entry); err != nil {
			s.logger.Debug("skipping search path entry %s: %v", entry, err)
			continue
		}
		offer(s.logger, sink, entry, container.KindPathEntry)
	}
	return nil
}
