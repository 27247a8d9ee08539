package bsamw

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
		{Src: mustWrite("probe_journeyman_01.nif", "mesh-bytes"), Dst: "meshes/m/probe_journeyman_01.nif", Kind: modkit.InputRegularFile},
		{Src: mustWrite("rightbutton.dds", "texture-bytes-longer"), Dst: "textures/menu_rightbuttonup_bottom.dds", Kind: modkit.InputRegularFile},
	}
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	files := writeInput(t, dir)

	out := filepath.Join(dir, "out.bsa")
	if err := (Writer{}).Write(files, out, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := Open(out, modkit.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}

	found := map[string]string{}
	for i := 0; i < r.Count(); i++ {
		e := r.Get(i)
		if e.Kind != modkit.KindRegularFile {
			t.Fatalf("entry %d: kind = %v, want regular file", i, e.Kind)
		}
		stream, err := r.Open(i)
		if err != nil {
			t.Fatalf("Open(%d): %v", i, err)
		}
		data, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			t.Fatalf("ReadAll(%d): %v", i, err)
		}
		if int64(len(data)) != e.Size {
			t.Fatalf("entry %d: size = %d, want %d", i, len(data), e.Size)
		}
		found[e.Name] = string(data)
	}

	if found["meshes/m/probe_journeyman_01.nif"] != "mesh-bytes" {
		t.Errorf("unexpected mesh content: %q", found["meshes/m/probe_journeyman_01.nif"])
	}
	if found["textures/menu_rightbuttonup_bottom.dds"] != "texture-bytes-longer" {
		t.Errorf("unexpected texture content: %q", found["textures/menu_rightbuttonup_bottom.dds"])
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	files := writeInput(t, dir)

	out1 := filepath.Join(dir, "a.bsa")
	out2 := filepath.Join(dir, "b.bsa")
	if err := (Writer{}).Write(files, out1, nil); err != nil {
		t.Fatal(err)
	}
	if err := (Writer{}).Write(files, out2, nil); err != nil {
		t.Fatal(err)
	}

	b1, err := os.ReadFile(out1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := os.ReadFile(out2)
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Fatal("writer output is not deterministic")
	}
}

func TestWriteRejectsDuplicateHash(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files := []modkit.InputFile{
		{Src: p, Dst: "a.txt", Kind: modkit.InputRegularFile},
		{Src: p, Dst: "A.txt", Kind: modkit.InputRegularFile},
	}
	out := filepath.Join(dir, "out.bsa")
	err := (Writer{}).Write(files, out, nil)
	if err == nil {
		t.Fatal("expected duplicate-hash error")
	}
	merr, ok := err.(*modkit.Error)
	if !ok || merr.Kind != modkit.KindDuplicateHash {
		t.Fatalf("got %v, want KindDuplicateHash", err)
	}
}
