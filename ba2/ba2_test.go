package ba2

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/modkit/modkit"
)

func putU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func putU64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }

// buildGNRL hand-assembles a minimal BTDX/GNRL archive with one raw and one
// zlib-compressed record, matching the on-disk layout Open expects.
func buildGNRL(t *testing.T) (path string, raw, compressed []byte) {
	t.Helper()
	raw = []byte("plain bytes, stored raw")
	compressed = []byte("this one is long enough to be worth zlib-compressing, repeat repeat repeat")

	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	if _, err := zw.Write(compressed); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	var buf bytes.Buffer
	buf.WriteString("BTDX")
	putU32(&buf, 1)
	buf.WriteString("GNRL")
	putU32(&buf, 2) // file count
	namesOffsetPos := buf.Len()
	putU64(&buf, 0) // names offset placeholder

	headerLen := buf.Len()
	recSize := 36
	dataStart := int64(headerLen + 2*recSize)

	// record 0: raw
	putU32(&buf, 0x1111) // name hash
	buf.WriteString("TXT\x00")
	putU32(&buf, 0) // dir hash
	putU32(&buf, 0) // flags
	putU64(&buf, uint64(dataStart))
	putU32(&buf, 0) // packed size == 0 -> raw
	putU32(&buf, uint32(len(raw)))
	putU32(&buf, paddingMagic)

	// record 1: compressed
	dataStart2 := dataStart + int64(len(raw))
	putU32(&buf, 0x2222)
	buf.WriteString("DDS\x00")
	putU32(&buf, 0)
	putU32(&buf, 0)
	putU64(&buf, uint64(dataStart2))
	putU32(&buf, uint32(comp.Len()))
	putU32(&buf, uint32(len(compressed)))
	putU32(&buf, paddingMagic)

	buf.Write(raw)
	buf.Write(comp.Bytes())

	namesOffset := uint64(buf.Len())
	nameBuf := buf.Bytes()
	binary.LittleEndian.PutUint64(nameBuf[namesOffsetPos:namesOffsetPos+8], namesOffset)

	writeName := func(s string) {
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	writeName("textures/plain.txt")
	writeName("textures/compressed.dds")

	dir := t.TempDir()
	p := filepath.Join(dir, "test.ba2")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p, raw, compressed
}

func TestGNRLRoundTrip(t *testing.T) {
	path, raw, compressed := buildGNRL(t)

	r, err := Open(path, modkit.ReaderOptions{Strict: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}

	want := map[string][]byte{
		"textures/plain.txt":      raw,
		"textures/compressed.dds": compressed,
	}
	for i := 0; i < r.Count(); i++ {
		e := r.Get(i)
		stream, err := r.Open(i)
		if err != nil {
			t.Fatalf("Open(%d) %q: %v", i, e.Name, err)
		}
		data, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			t.Fatalf("ReadAll(%d): %v", i, err)
		}
		if !bytes.Equal(data, want[e.Name]) {
			t.Errorf("entry %q: got %q, want %q", e.Name, data, want[e.Name])
		}
	}
}

func TestUnknownArchiveType(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("BTDX")
	putU32(&buf, 1)
	buf.WriteString("XXXX")
	putU32(&buf, 0)
	putU64(&buf, uint64(buf.Len()))

	dir := t.TempDir()
	p := filepath.Join(dir, "bad.ba2")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(p, modkit.ReaderOptions{}); err == nil {
		t.Fatal("expected error for unknown archive type")
	}
}
