package byteio

import (
	"bytes"
	"errors"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.U16(0x1234, false); err != nil {
		t.Fatal(err)
	}
	if err := w.U32(0xdeadbeef, true); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	u16, err := r.U16(false)
	if err != nil || u16 != 0x1234 {
		t.Fatalf("got %x, %v", u16, err)
	}
	u32, err := r.U32(true)
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("got %x, %v", u32, err)
	}
}

func TestNullTerminatedCP1252(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.NullTerminated("meshes\\m\\probe.nif", true); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	s, err := r.NullTerminated(true)
	if err != nil || s != "meshes\\m\\probe.nif" {
		t.Fatalf("got %q, %v", s, err)
	}
}

func TestLengthPrefixed8IncludesTerminator(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.LengthPrefixed8("sound\\voice", false, true); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	s, err := r.LengthPrefixed8(false, true)
	if err != nil || s != "sound\\voice" {
		t.Fatalf("got %q, %v", s, err)
	}
}

func TestLengthPrefixed8NoTerminator(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.LengthPrefixed8("probe.nif", false, false); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	s, err := r.LengthPrefixed8(false, false)
	if err != nil || s != "probe.nif" {
		t.Fatalf("got %q, %v", s, err)
	}
}

func TestLengthPrefixed16LE(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.LengthPrefixed16LE("textures/wood.dds"); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	s, err := r.LengthPrefixed16LE()
	if err != nil || s != "textures/wood.dds" {
		t.Fatalf("got %q, %v", s, err)
	}
}

func TestShortReadIsUnexpectedEOF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01}))
	if _, err := r.U32(false); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("got %v, want ErrUnexpectedEOF", err)
	}
}
