package inputlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/modkit/modkit"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	mustMkdir := func(p string) {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite := func(p, data string) {
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustMkdir(filepath.Join(root, "sub"))
	mustMkdir(filepath.Join(root, "empty_dir"))
	mustWrite(filepath.Join(root, "file001.txt"), "hello")
	mustWrite(filepath.Join(root, "sub", "img001.png"), "\x89PNG")
}

func TestBuildSortedAndExcluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	var b Builder
	if err := b.AddDir(root); err != nil {
		t.Fatal(err)
	}
	b.Exclude("**/*.png")

	files, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	var dsts []string
	for _, f := range files {
		dsts = append(dsts, f.Dst)
	}
	want := []string{"empty_dir", "file001.txt", "sub"}
	if len(dsts) != len(want) {
		t.Fatalf("got %v, want %v", dsts, want)
	}
	for i := range want {
		if dsts[i] != want[i] {
			t.Fatalf("got %v, want %v", dsts, want)
		}
	}
}

func TestAddDirTwiceHasNoDuplicates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	var b Builder
	if err := b.AddDir(root); err != nil {
		t.Fatal(err)
	}
	if err := b.AddDir(root); err != nil {
		t.Fatal(err)
	}
	files, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f.Dst] {
			t.Fatalf("duplicate entry %s", f.Dst)
		}
		seen[f.Dst] = true
	}
}

func TestAddFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "standalone.txt")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	var b Builder
	if err := b.AddFile(p, "renamed.txt"); err != nil {
		t.Fatal(err)
	}
	files, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Dst != "renamed.txt" || files[0].Kind != modkit.InputRegularFile {
		t.Fatalf("got %+v", files)
	}
}
