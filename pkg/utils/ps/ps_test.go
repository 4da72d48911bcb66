package ps

import (
	"os"
	"path"
	"testing"
)

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(path.Join(root, "a.png"), make([]byte, 100), 0660); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(path.Join(root, "narrow", "10m"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path.Join(root, "narrow", "10m", "b.png"), make([]byte, 50), 0660); err != nil {
		t.Fatal(err)
	}

	size, err := DirSize(root)
	if err != nil {
		t.Fatal(err)
	}
	if size != 150 {
		t.Fatalf("size = %d, want 150", size)
	}
}
