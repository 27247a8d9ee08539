package formats_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/modkit/modkit"
	_ "github.com/modkit/modkit/formats"
	"github.com/modkit/modkit/registry"
)

// TestSniffDispatchesBSAGenerations covers the signature-sniff scenario:
// opening a .bsa file with no explicit format name must pick the Morrowind
// reader for a v100 archive and the post-Morrowind reader for a v103+ one,
// purely from the first 4 bytes.
func TestSniffDispatchesBSAGenerations(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	input := []modkit.InputFile{{Src: src, Dst: "docs/plain.txt", Kind: modkit.InputRegularFile}}

	mwPath := filepath.Join(dir, "mw.bsa")
	if mwWriter, err := registry.MakeWriter("bsa-mw"); err != nil {
		t.Fatalf("MakeWriter(bsa-mw): %v", err)
	} else if err := mwWriter.Write(input, mwPath, nil); err != nil {
		t.Fatalf("write bsa-mw: %v", err)
	}

	laterPath := filepath.Join(dir, "later.bsa")
	if laterWriter, err := registry.MakeWriter("bsa"); err != nil {
		t.Fatalf("MakeWriter(bsa): %v", err)
	} else if err := laterWriter.Write(input, laterPath, nil); err != nil {
		t.Fatalf("write bsa: %v", err)
	}

	cases := []struct {
		path     string
		wantName string
	}{
		{mwPath, "docs/plain.txt"},
		{laterPath, "docs/plain.txt"},
	}
	for _, c := range cases {
		r, err := registry.MakeReader(c.path, "", modkit.ReaderOptions{})
		if err != nil {
			t.Fatalf("MakeReader(%s): %v", c.path, err)
		}
		if r.Count() != 1 {
			t.Fatalf("%s: Count() = %d, want 1", c.path, r.Count())
		}
		if got := r.Get(0).Name; got != c.wantName {
			t.Fatalf("%s: entry name = %q, want %q", c.path, got, c.wantName)
		}
		stream, err := r.Open(0)
		if err != nil {
			t.Fatalf("%s: Open(0): %v", c.path, err)
		}
		data, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			t.Fatalf("%s: ReadAll: %v", c.path, err)
		}
		if string(data) != "hello" {
			t.Fatalf("%s: payload = %q, want %q", c.path, data, "hello")
		}
		r.Close()
	}
}

// TestListIncludesEveryFormat guards against a format package losing its
// init() registration silently.
func TestListIncludesEveryFormat(t *testing.T) {
	want := []string{"ba2", "bsa", "bsa-mw", "pak", "rpa", "vpk", "zip"}
	got := map[string]bool{}
	for _, f := range registry.List() {
		got[f.Name] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("registry.List() missing format %q", name)
		}
	}
}
