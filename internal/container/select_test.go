package container

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func rev(v float64) *float64 {
	return &v
}

func candidate(name, loc string, revision *float64, mod time.Time) *Container {
	return New(loc, KindArchive, Metadata{Name: name, Revision: revision}, mod)
}

func TestSelect_HigherRevisionWins(t *testing.T) {
	v1 := candidate("Foo", "/a/foo-1.zip", rev(1.0), fixedTime(200))
	v2 := candidate("foo", "/a/foo-2.zip", rev(2.0), fixedTime(100))

	sel := Select([]*Container{v1, v2})
	if len(sel.Winners) != 1 || sel.Winners[0] != v2 {
		t.Fatalf("Winners = %v, want only foo-2", sel.Winners)
	}
	if len(sel.Superseded) != 1 || sel.Superseded[0] != v1 {
		t.Errorf("Superseded = %v, want foo-1", sel.Superseded)
	}
}

func TestSelect_RevisionOutranksNone(t *testing.T) {
	withRev := candidate("Foo", "/a/old.zip", rev(0.5), fixedTime(1))
	noRev := candidate("Foo", "/a/new.zip", nil, fixedTime(1_000_000))

	for _, order := range [][]*Container{{withRev, noRev}, {noRev, withRev}} {
		sel := Select(order)
		if sel.Winners[0] != withRev {
			t.Errorf("Winner = %s, want revision-bearing candidate", sel.Winners[0].Location())
		}
	}
}

func TestSelect_NewerModTimeWinsWithoutRevisions(t *testing.T) {
	older := candidate("Foo", "/a/older.zip", nil, fixedTime(100))
	newer := candidate("Foo", "/a/newer.zip", nil, fixedTime(200))

	sel := Select([]*Container{older, newer})
	if sel.Winners[0] != newer {
		t.Errorf("Winner = %s, want newer", sel.Winners[0].Location())
	}
}

func TestSelect_VeryOldTimestampsDoNotInvert(t *testing.T) {
	ancient := candidate("Foo", "/a/ancient.zip", nil, time.Date(1901, 1, 1, 0, 0, 0, 0, time.UTC))
	recent := candidate("Foo", "/a/recent.zip", nil, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, order := range [][]*Container{{ancient, recent}, {recent, ancient}} {
		if w := Select(order).Winners[0]; w != recent {
			t.Errorf("Winner = %s, want recent", w.Location())
		}
	}
}

func TestSelect_TieKeepsFirstDiscovered(t *testing.T) {
	first := candidate("Foo", "/a/first.zip", rev(3), fixedTime(5))
	second := candidate("Foo", "/a/second.zip", rev(3), fixedTime(5))

	if w := Select([]*Container{first, second}).Winners[0]; w != first {
		t.Errorf("Winner = %s, want first", w.Location())
	}
}

func TestSelect_OneWinnerPerIdentity(t *testing.T) {
	cands := []*Container{
		candidate("A", "/1", rev(1), fixedTime(1)),
		candidate("B", "/2", nil, fixedTime(1)),
		candidate("a", "/3", rev(5), fixedTime(1)),
		candidate("C", "/4", nil, fixedTime(1)),
		candidate("b", "/5", rev(0), fixedTime(1)),
		candidate("A", "/6", rev(2), fixedTime(9)),
	}

	sel := Select(cands)
	if len(sel.Winners) != 3 {
		t.Fatalf("len(Winners) = %d, want 3", len(sel.Winners))
	}
	if len(sel.Winners)+len(sel.Superseded) != len(cands) {
		t.Errorf("winners + superseded = %d, want %d", len(sel.Winners)+len(sel.Superseded), len(cands))
	}

	for _, w := range sel.Winners {
		wr, wok := w.Revision()
		for _, c := range cands {
			if c.Identity() != w.Identity() {
				continue
			}
			if cr, ok := c.Revision(); ok && (!wok || cr > wr) {
				t.Errorf("winner %s (rev %v) outranked by %s (rev %v)", w.Location(), wr, c.Location(), cr)
			}
		}
	}

	gotOrder := []string{sel.Winners[0].Identity(), sel.Winners[1].Identity(), sel.Winners[2].Identity()}
	if gotOrder[0] != "a" || gotOrder[1] != "b" || gotOrder[2] != "c" {
		t.Errorf("winner order = %v, want first-appearance order", gotOrder)
	}
}

func TestSelect_UnreadableNeverOutranksReadable(t *testing.T) {
	dir := t.TempDir()
	valid := writeDir(t, filepath.Join(dir, "foo"), map[string]string{MetadataFile: "name = \"Foo\"\n"})
	broken := filepath.Join(dir, "Foo.zip")
	if err := os.WriteFile(broken, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(broken, later, later); err != nil {
		t.Fatal(err)
	}

	good, err := Open(valid, KindDirectory)
	if err != nil {
		t.Fatalf("Open(valid) error = %v", err)
	}
	bad, err := Open(broken, KindArchive)
	if err != nil {
		t.Fatalf("Open(broken) error = %v", err)
	}
	if bad.Err() == nil || bad.Identity() != good.Identity() {
		t.Fatalf("broken container: err = %v, identity = %q", bad.Err(), bad.Identity())
	}

	for _, order := range [][]*Container{{good, bad}, {bad, good}} {
		sel := Select(order)
		if len(sel.Winners) != 1 || sel.Winners[0] != good {
			t.Errorf("Winners = %v, want the readable container", sel.Winners)
		}
		if len(sel.Superseded) != 1 || sel.Superseded[0] != bad {
			t.Errorf("Superseded = %v, want the unreadable container", sel.Superseded)
		}
	}
}

func TestSelect_UnreadableAloneStillWins(t *testing.T) {
	bad := candidate("Foo", "/a/foo.zip", rev(3), fixedTime(1))
	bad.fail(errors.New("zip: not a valid zip file"))

	sel := Select([]*Container{bad})
	if len(sel.Winners) != 1 || sel.Winners[0] != bad {
		t.Errorf("Winners = %v, want the only candidate", sel.Winners)
	}
}
