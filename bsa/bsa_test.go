package bsa

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/modkit/modkit"
)

func writeInput(t *testing.T, dir string) []modkit.InputFile {
	t.Helper()
	mustWrite := func(name, data string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	return []modkit.InputFile{
		{Src: mustWrite("a.nif", "hello mesh"), Dst: "meshes/armor/a.nif", Kind: modkit.InputRegularFile},
		{Src: mustWrite("b.dds", "a texture payload, long enough to compress well well well"), Dst: "textures/armor/b.dds", Kind: modkit.InputRegularFile},
	}
}

func roundTrip(t *testing.T, version string, compress, bigEndian bool) {
	t.Helper()
	dir := t.TempDir()
	files := writeInput(t, dir)
	out := filepath.Join(dir, "out.bsa")

	opts := map[string]string{"version": version}
	if compress {
		opts["compress"] = "true"
	}
	if bigEndian {
		opts["big-endian"] = "true"
	}
	if err := (Writer{}).Write(files, out, opts); err != nil {
		t.Fatalf("Write(%s compress=%v big-endian=%v): %v", version, compress, bigEndian, err)
	}

	r, err := Open(out, modkit.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}
	want := map[string]string{
		"meshes/armor/a.nif":   "hello mesh",
		"textures/armor/b.dds": "a texture payload, long enough to compress well well well",
	}
	for i := 0; i < r.Count(); i++ {
		e := r.Get(i)
		stream, err := r.Open(i)
		if err != nil {
			t.Fatalf("Open(%d): %v", i, err)
		}
		data, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			t.Fatalf("ReadAll(%d): %v", i, err)
		}
		if string(data) != want[e.Name] {
			t.Errorf("entry %q: got %q, want %q", e.Name, data, want[e.Name])
		}
		if e.Size != int64(len(want[e.Name])) {
			t.Errorf("entry %q: size = %d, want %d", e.Name, e.Size, len(want[e.Name]))
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, version := range []string{"103", "104", "105"} {
		t.Run(version+"/plain", func(t *testing.T) { roundTrip(t, version, false, false) })
		t.Run(version+"/compressed", func(t *testing.T) { roundTrip(t, version, true, false) })
	}
}

func TestRoundTripXBOX(t *testing.T) {
	roundTrip(t, "105", false, true)
}

func TestWriteRejectsFileOutsideFolder(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	os.WriteFile(p, []byte("x"), 0o644)
	files := []modkit.InputFile{{Src: p, Dst: "a.txt", Kind: modkit.InputRegularFile}}
	err := (Writer{}).Write(files, filepath.Join(dir, "out.bsa"), nil)
	if err == nil {
		t.Fatal("expected error for file not in a folder")
	}
}

func TestWriteRejectsEmptyFolder(t *testing.T) {
	dir := t.TempDir()
	files := []modkit.InputFile{{Dst: "empty", Kind: modkit.InputDirectory}}
	err := (Writer{}).Write(files, filepath.Join(dir, "out.bsa"), nil)
	if err == nil {
		t.Fatal("expected error for empty folder")
	}
}
