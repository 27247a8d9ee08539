package vpk

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/modkit/modkit"
)

func putU16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }
func putU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }

// buildVPK assembles a minimal v1 directory file with one entry whose data
// lives inline in the directory archive, matching archiveIndex 0x7FFF.
func buildVPK(t *testing.T) (dirPath string, payload []byte) {
	t.Helper()
	payload = []byte("hello from a vpk leaf")

	var tree bytes.Buffer
	tree.WriteString("txt")
	tree.WriteByte(0)
	tree.WriteString("materials")
	tree.WriteByte(0)
	tree.WriteString("readme")
	tree.WriteByte(0)

	putU32(&tree, crc32.ChecksumIEEE(payload))
	putU16(&tree, 0) // preload bytes
	putU16(&tree, dirArchiveIndex)
	putU32(&tree, 0) // entry offset (relative to data start)
	putU32(&tree, uint32(len(payload)))
	putU16(&tree, terminatorWant)

	tree.WriteByte(0) // end of base loop
	tree.WriteByte(0) // end of dir loop
	tree.WriteByte(0) // end of ext loop

	var buf bytes.Buffer
	buf.Write(signature[:])
	putU32(&buf, 1) // version
	putU32(&buf, uint32(tree.Len()))
	buf.Write(tree.Bytes())
	buf.Write(payload)

	dir := t.TempDir()
	p := filepath.Join(dir, "pak01_dir.vpk")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p, payload
}

func TestReadDirArchiveEntry(t *testing.T) {
	path, payload := buildVPK(t)

	r, err := Open(path, modkit.ReaderOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	e := r.Get(0)
	if e.Name != "materials/readme.txt" {
		t.Fatalf("Name = %q, want materials/readme.txt", e.Name)
	}
	if e.Size != int64(len(payload)) {
		t.Fatalf("Size = %d, want %d", e.Size, len(payload))
	}

	stream, err := r.Open(0)
	if err != nil {
		t.Fatalf("Open(0): %v", err)
	}
	data, err := io.ReadAll(stream)
	stream.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("got %q, want %q", data, payload)
	}
}

func TestOpenRejectsBadSignature(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.vpk")
	if err := os.WriteFile(p, []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(p, modkit.ReaderOptions{}); err == nil {
		t.Fatal("expected error for bad signature")
	}
}
