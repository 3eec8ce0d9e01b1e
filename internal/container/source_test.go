package container

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_Directory(t *testing.T) {
	dir := writeDir(t, filepath.Join(t.TempDir(), "minimap"), map[string]string{
		MetadataFile:                `name = "Minimap"` + "\nversion = \"1.0\"",
		"minimap/PluginMinimap.lua": "return {}",
	})

	c, err := Open(dir, KindDirectory)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Err() != nil {
		t.Fatalf("Err() = %v", c.Err())
	}
	if c.Identity() != "minimap" || c.Name() != "Minimap" || c.Version() != "1.0" {
		t.Errorf("container = %s / %s / %s", c.Identity(), c.Name(), c.Version())
	}
	if c.Kind() != KindDirectory {
		t.Errorf("Kind() = %s, want directory", c.Kind())
	}
	if c.ModTime().IsZero() {
		t.Error("ModTime() is zero")
	}
}

func TestOpen_Archive(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "mm.zip"), map[string]string{
		MetadataFile:                `name = "Minimap"`,
		"minimap/PluginMinimap.lua": "return {}",
	})

	c, err := Open(path, KindArchive)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Err() != nil {
		t.Fatalf("Err() = %v", c.Err())
	}

	entries, err := c.Entries(0)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	slices.Sort(entries)
	want := []string{"minimap/PluginMinimap.lua", MetadataFile}
	if !slices.Equal(entries, want) {
		t.Errorf("Entries() = %v, want %v", entries, want)
	}

	data, err := c.ReadFile("minimap/PluginMinimap.lua")
	if err != nil || string(data) != "return {}" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}

func TestOpen_PathEntryDetectsForm(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "entry.zip"), map[string]string{
		MetadataFile: `name = "Entry"`,
	})
	c, err := Open(path, KindPathEntry)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Kind() != KindPathEntry {
		t.Errorf("Kind() = %s, want path-entry", c.Kind())
	}
	if _, err := c.Entries(0); err != nil {
		t.Errorf("Entries() error = %v", err)
	}
}

func TestOpen_NoMetadata(t *testing.T) {
	dir := writeDir(t, t.TempDir(), map[string]string{"readme.txt": "hi"})
	c, err := Open(dir, KindDirectory)
	if !errors.Is(err, ErrNoMetadata) {
		t.Errorf("Open() error = %v, want ErrNoMetadata", err)
	}
	if c != nil {
		t.Error("Open() returned a container for a location without metadata")
	}
}

func TestOpen_MalformedMetadata(t *testing.T) {
	dir := writeDir(t, filepath.Join(t.TempDir(), "Broken"), map[string]string{
		MetadataFile: `name = = "x"`,
	})
	c, err := Open(dir, KindDirectory)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	var me *MetadataError
	if !errors.As(c.Err(), &me) {
		t.Fatalf("Err() = %v, want *MetadataError", c.Err())
	}
	if c.Identity() != "broken" {
		t.Errorf("fallback Identity() = %q, want %q", c.Identity(), "broken")
	}
}

func TestOpen_UnreadableArchive(t *testing.T) {
	dir := writeDir(t, t.TempDir(), map[string]string{"bad.zip": "not a zip"})
	c, err := Open(filepath.Join(dir, "bad.zip"), KindArchive)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Err() == nil {
		t.Error("Err() = nil for corrupt archive")
	}
}

func TestOpen_UnsupportedKind(t *testing.T) {
	dir := writeDir(t, t.TempDir(), map[string]string{"notes.txt": "x"})
	if _, err := Open(filepath.Join(dir, "notes.txt"), KindPathEntry); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Open() error = %v, want ErrUnsupportedKind", err)
	}
	if _, err := Open(dir, KindArchive); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Open(dir, KindArchive) error = %v, want ErrUnsupportedKind", err)
	}
}

func TestEntries_DepthBound(t *testing.T) {
	dir := writeDir(t, t.TempDir(), map[string]string{
		MetadataFile:  `name = "deep"`,
		"a/one.lua":   "",
		"a/b/two.lua": "",
		"a/b/c/3.lua": "",
	})
	c, err := Open(dir, KindDirectory)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := c.Entries(2)
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(entries)
	want := []string{"a/b/two.lua", "a/one.lua", MetadataFile}
	if !slices.Equal(entries, want) {
		t.Errorf("Entries(2) = %v, want %v", entries, want)
	}
}

func TestContainer_FreezePanicsOnMutation(t *testing.T) {
	c := New("/x", KindDirectory, Metadata{Name: "x"}, fixedTime(0))
	c.AddMissingDependency("y")
	c.AddMissingDependency("y")
	if got := c.MissingDependencies(); len(got) != 1 {
		t.Errorf("MissingDependencies() = %v, want one entry", got)
	}

	c.Freeze()
	defer func() {
		if recover() == nil {
			t.Error("mutation after Freeze did not panic")
		}
	}()
	c.SetEnabled(true)
}

func TestContainer_AssignIDOnce(t *testing.T) {
	c := New("/x", KindDirectory, Metadata{Name: "x"}, fixedTime(0))
	c.AssignID(3)
	if c.ID() != 3 {
		t.Errorf("ID() = %d, want 3", c.ID())
	}
	defer func() {
		if recover() == nil {
			t.Error("second AssignID did not panic")
		}
	}()
	c.AssignID(4)
}
