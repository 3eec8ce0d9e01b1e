package locator

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/plugkit/internal/container"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
}

type collector struct {
	got []*container.Container
}

func (c *collector) Candidate(ct *container.Container) {
	c.got = append(c.got, ct)
}

func TestDirectory_Enumerate(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "alpha", container.MetadataFile), `name = "Alpha"`)
	writeFile(t, filepath.Join(base, "noise", "readme.txt"), "not a plugin")
	writeFile(t, filepath.Join(base, "broken", container.MetadataFile), `name = `)
	writeFile(t, filepath.Join(base, "notes.txt"), "ignored")
	writeZip(t, filepath.Join(base, "beta.zip"), map[string]string{
		container.MetadataFile: `name = "Beta"`,
	})

	d := NewDirectory(WithPaths(base, filepath.Join(base, "does-not-exist")))
	var sink collector
	if err := d.Enumerate(context.Background(), &sink); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	byName := make(map[string]*container.Container)
	for _, c := range sink.got {
		byName[c.Identity()] = c
	}
	if len(sink.got) != 3 {
		t.Fatalf("got %d containers, want 3", len(sink.got))
	}
	if c := byName["alpha"]; c == nil || c.Kind() != container.KindDirectory {
		t.Errorf("alpha = %v", c)
	}
	if c := byName["beta"]; c == nil || c.Kind() != container.KindArchive {
		t.Errorf("beta = %v", c)
	}
	if c := byName["broken"]; c == nil || c.Err() == nil {
		t.Errorf("broken should be offered with its metadata error, got %v", c)
	}
}

func TestDirectory_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDirectory(WithPaths(t.TempDir()))
	if err := d.Enumerate(ctx, SinkFunc(func(*container.Container) {})); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSearchPath_Enumerate(t *testing.T) {
	base := t.TempDir()
	lib := filepath.Join(base, "lib")
	writeFile(t, filepath.Join(lib, container.MetadataFile), `name = "Lib"`)
	archive := filepath.Join(base, "core.zip")
	writeZip(t, archive, map[string]string{container.MetadataFile: `name = "Core"`})
	bare := filepath.Join(base, "bare")
	if err := os.MkdirAll(bare, 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewSearchPath([]string{lib, archive, bare, filepath.Join(base, "missing")}, nil)
	var got []*container.Container
	err := s.Enumerate(context.Background(), SinkFunc(func(c *container.Container) {
		got = append(got, c)
	}))
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d containers, want 2", len(got))
	}
	for _, c := range got {
		if c.Kind() != container.KindPathEntry {
			t.Errorf("%s kind = %v, want path entry", c.Location(), c.Kind())
		}
	}
	if got[0].Identity() != "lib" || got[1].Identity() != "core" {
		t.Errorf("order = %s, %s", got[0].Identity(), got[1].Identity())
	}
}
