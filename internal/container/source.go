package container

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxDepth bounds entry walks when the caller does not choose a depth.
const DefaultMaxDepth = 16

// IsArchive reports whether path names a supported archive.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// Open reads the container at path. Kind must be KindArchive or
// KindDirectory for plugin directory scans, or KindPathEntry for search-path
// entries, in which case the physical form is detected.
//
// A location without a metadata document returns ErrNoMetadata and no
// container. A malformed document returns a container whose Err is a
// *MetadataError so that callers can record it as disabled.
func Open(path string, kind Kind) (*Container, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}

	switch {
	case info.IsDir():
		if kind == KindArchive {
			return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedKind, path)
		}
	case IsArchive(path):
		if kind == KindDirectory {
			return nil, fmt.Errorf("%w: %s is an archive", ErrUnsupportedKind, path)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, path)
	}

	c := &Container{
		location: path,
		kind:     kind,
		modTime:  info.ModTime(),
	}

	var data []byte
	err = c.WithFS(func(fsys fs.FS) error {
		var readErr error
		data, readErr = fs.ReadFile(fsys, MetadataFile)
		return readErr
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoMetadata, path)
	}
	if err != nil {
		// An unreadable archive is a container-level failure, not a skip.
		c.fail(err)
		return c, nil
	}

	meta, err := ParseMetadata(data)
	if err != nil {
		c.fail(err)
		return c, nil
	}
	c.meta = meta
	c.identity = Identity(meta.Name)
	return c, nil
}

// fail records err and derives a fallback identity from the file name so the
// container can still be reported.
func (c *Container) fail(err error) {
	base := filepath.Base(c.location)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	c.meta = Metadata{Name: base}
	c.identity = Identity(base)
	c.err = &MetadataError{Location: c.location, Err: err}
}

// WithFS opens the container's contents as an fs.FS for the duration of fn.
// Archive handles are released on every exit path.
func (c *Container) WithFS(fn func(fsys fs.FS) error) error {
	return OpenFS(c.location, fn)
}

// OpenFS opens the directory or archive at location as an fs.FS for the
// duration of fn.
func OpenFS(location string, fn func(fsys fs.FS) error) error {
	if !IsArchive(location) {
		return fn(os.DirFS(location))
	}

	rc, err := zip.OpenReader(location)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", location, err)
	}
	defer rc.Close()

	return fn(&rc.Reader)
}

// Entries returns the slash-separated paths of all files in the container,
// descending at most maxDepth directories. A non-positive maxDepth uses
// DefaultMaxDepth.
func (c *Container) Entries(maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var entries []string
	err := c.WithFS(func(fsys fs.FS) error {
		return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == "." {
				return nil
			}
			depth := strings.Count(p, "/")
			if d.IsDir() {
				if depth+1 > maxDepth {
					return fs.SkipDir
				}
				return nil
			}
			entries = append(entries, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", c.location, err)
	}
	return entries, nil
}

// ReadFile reads one entry from the container.
func (c *Container) ReadFile(name string) ([]byte, error) {
	var data []byte
	err := c.WithFS(func(fsys fs.FS) error {
		var readErr error
		data, readErr = fs.ReadFile(fsys, name)
		return readErr
	})
	return data, err
}
