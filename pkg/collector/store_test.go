package collector

import (
	"os"
	"path"
	"sort"
	"testing"
	"time"

	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
)

func testFrame(ch framecache.Channel) *framecache.Frame {
	return &framecache.Frame{
		Channel:   ch,
		Width:     4,
		Height:    4,
		Data:      make([]byte, 4*4*4),
		Timestamp: time.Now(),
	}
}

func TestStoreCreatesLayout(t *testing.T) {
	root := t.TempDir()
	_, err := NewStore(root, framecache.Channels, geom.Buckets)
	checkErr(t, err)

	for _, cam := range framecache.Channels {
		for _, b := range geom.Buckets {
			info, err := os.Stat(path.Join(root, string(cam), string(b)))
			checkErr(t, err)
			if !info.IsDir() {
				t.Fatalf("%s/%s is not a directory", cam, b)
			}
		}
	}
}

func TestStoreSaveNilFrame(t *testing.T) {
	s, err := NewStore(t.TempDir(), framecache.Channels, geom.Buckets)
	checkErr(t, err)

	name, err := s.Save(nil, geom.Bucket10)
	checkErr(t, err)
	if name != "" {
		t.Fatalf("nil frame should be a no-op, got %q", name)
	}
	if n := s.Count(Slot{Camera: framecache.Narrow, Bucket: geom.Bucket10}); n != 0 {
		t.Fatalf("counter moved on a skipped save: %d", n)
	}
}

func TestStoreSave(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root, framecache.Channels, geom.Buckets)
	checkErr(t, err)

	name, err := s.Save(testFrame(framecache.Narrow), geom.Bucket20)
	checkErr(t, err)
	if name == "" {
		t.Fatal("expected a generated filename")
	}

	if _, err := os.Stat(path.Join(root, "narrow", "20m", name)); err != nil {
		t.Fatalf("saved file missing: %s", err)
	}
	if n := s.Count(Slot{Camera: framecache.Narrow, Bucket: geom.Bucket20}); n != 1 {
		t.Fatalf("counter = %d, want 1", n)
	}
	if s.Bytes() <= 0 {
		t.Fatal("bytes written should be tracked")
	}
	// Other slots untouched.
	if n := s.Count(Slot{Camera: framecache.Wide, Bucket: geom.Bucket20}); n != 0 {
		t.Fatalf("unrelated counter moved: %d", n)
	}
}

func TestStoreRapidSavesOrdered(t *testing.T) {
	s, err := NewStore(t.TempDir(), framecache.Channels, geom.Buckets)
	checkErr(t, err)

	var names []string
	for i := 0; i < 5; i++ {
		name, err := s.Save(testFrame(framecache.Wide), geom.Bucket10)
		checkErr(t, err)
		names = append(names, name)
	}

	if n := s.Count(Slot{Camera: framecache.Wide, Bucket: geom.Bucket10}); n != 5 {
		t.Fatalf("counter = %d, want 5", n)
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("filenames must sort in capture order: %v", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate filename %q", n)
		}
		seen[n] = true
	}
}

func TestStoreFailedSaveKeepsCounter(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root, framecache.Channels, geom.Buckets)
	checkErr(t, err)

	slot := Slot{Camera: framecache.Narrow, Bucket: geom.Bucket30}
	_, err = s.Save(testFrame(framecache.Narrow), geom.Bucket30)
	checkErr(t, err)

	// Make the slot directory unwritable by replacing it with a file.
	dir := path.Join(root, "narrow", "30m")
	checkErr(t, os.RemoveAll(dir))
	checkErr(t, os.WriteFile(dir, nil, 0660))

	if _, err := s.Save(testFrame(framecache.Narrow), geom.Bucket30); err == nil {
		t.Fatal("expected a write error")
	}
	if n := s.Count(slot); n != 1 {
		t.Fatalf("counter moved on failed save: %d", n)
	}
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
