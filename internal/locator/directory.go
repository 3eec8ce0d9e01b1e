package locator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/logging"
)

// Directory finds containers in plugin directories. Each archive and each
// subdirectory holding a metadata document is one container.
type Directory struct {
	paths  []string
	logger *logging.Logger
}

// DirectoryOption configures a Directory locator.
type DirectoryOption func(*Directory)

// WithPaths sets the directories to scan, in order.
func WithPaths(paths ...string) DirectoryOption {
	return func(d *Directory) {
		d.paths = paths
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) DirectoryOption {
	return func(d *Directory) {
		d.logger = logger
	}
}

// NewDirectory creates a directory locator.
func NewDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		paths:  DefaultPluginPaths(),
		logger: logging.NewNull(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DefaultPluginPaths returns the default plugin directories.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 2)

	// User plugins: ~/.config/plugkit/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "plugkit", "plugins"))
	}

	// Project plugins: ./plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "plugins"))
	}

	return paths
}

// Name implements Module.
func (d *Directory) Name() string {
	return "directory"
}

// Paths returns the configured directories.
func (d *Directory) Paths() []string {
	return d.paths
}

// Enumerate implements Module. Missing directories are not errors.
func (d *Directory) Enumerate(ctx context.Context, sink Sink) error {
	var errs []error
	for _, base := range d.paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.enumerateDir(ctx, base, sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Directory) enumerateDir(ctx context.Context, base string, sink Sink) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read plugin directory %s: %w", base, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(base, entry.Name())
		var kind container.Kind
		switch {
		case entry.IsDir():
			kind = container.KindDirectory
		case container.IsArchive(path):
			kind = container.KindArchive
		default:
			continue
		}

		offer(d.logger, sink, path, kind)
	}
	return nil
}

// offer opens path and passes the container to sink. Locations without a
// metadata document are skipped quietly.
func offer(logger *logging.Logger, sink Sink, path string, kind container.Kind) {
	c, err := container.Open(path, kind)
	switch {
	case errors.Is(err, container.ErrNoMetadata):
		logger.Debug("skipping %s: no %s", path, container.MetadataFile)
		return
	case err != nil:
		logger.Warn("skipping %s: %v", path, err)
		return
	}
	if c.Err() != nil {
		logger.Warn("container %s has unreadable metadata: %v", path, c.Err())
	}
	sink.Candidate(c)
}
