// Package byteio provides the fixed-width integer and string codecs shared
// by every archive format reader and writer (spec C1): explicit-endian
// integers, null-terminated and length-prefixed strings, and CP-1252↔UTF-8
// conversion for the legacy formats that need it.
package byteio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrUnexpectedEOF is returned (wrapped) whenever a read comes up short.
var ErrUnexpectedEOF = io.ErrUnexpectedEOF

// ErrInvalidData is returned when a string fails to decode under its
// declared code page, or an ASCII invariant is violated.
var ErrInvalidData = errors.New("byteio: invalid data")

// Reader wraps an io.Reader with the fixed-width and string codecs the
// archive formats need. It tracks no position itself; callers seek the
// underlying source as needed between calls.
type Reader struct {
	r io.Reader
}

// NewReader wraps r. If r is not already buffered, small reads (a byte at
// a time, for null-terminated strings) would be slow, so callers
// typically pass a *bufio.Reader or an *io.SectionReader backed by one.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w", ErrUnexpectedEOF)
		}
		return nil, err
	}
	return buf, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16(big bool) (uint16, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	if big {
		return binary.BigEndian.Uint16(b), nil
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32(big bool) (uint32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	if big {
		return binary.BigEndian.Uint32(b), nil
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64(big bool) (uint64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	if big {
		return binary.BigEndian.Uint64(b), nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

// NullTerminated reads bytes until (and including) a 0x00 terminator and
// decodes the bytes before it using cp1252 (legacy) or UTF-8. The
// terminator is not included in the returned text.
func (r *Reader) NullTerminated(cp1252 bool) (string, error) {
	br, ok := r.r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r.r)
	}
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("%w", ErrUnexpectedEOF)
			}
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return decode(buf, cp1252)
}

// LengthPrefixed8 reads a one-byte length followed by that many bytes.
// includesTerminator controls whether the declared length counts a
// trailing NUL that should be stripped (BSA folder names) or not (BSA
// embedded file names, which carry no terminator at all).
func (r *Reader) LengthPrefixed8(cp1252, includesTerminator bool) (string, error) {
	n, err := r.U8()
	if err != nil {
		return "", err
	}
	buf, err := r.read(int(n))
	if err != nil {
		return "", err
	}
	if includesTerminator {
		if len(buf) == 0 || buf[len(buf)-1] != 0 {
			return "", fmt.Errorf("%w: length-prefixed string missing terminator", ErrInvalidData)
		}
		buf = buf[:len(buf)-1]
	}
	return decode(buf, cp1252)
}

// LengthPrefixed16LE reads a 16-bit little-endian length followed by that
// many bytes of UTF-8 (BA2 name table).
func (r *Reader) LengthPrefixed16LE() (string, error) {
	n, err := r.U16(false)
	if err != nil {
		return "", err
	}
	buf, err := r.read(int(n))
	if err != nil {
		return "", err
	}
	return decode(buf, false)
}

// Bytes reads exactly n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) { return r.read(n) }

// CStringAt extracts a NUL-terminated string starting at offset within a
// names blob already held in memory (BSA Morrowind's name table, read as
// one block rather than streamed), and decodes it under cp1252 or UTF-8.
func CStringAt(buf []byte, offset int, cp1252 bool) (string, error) {
	if offset < 0 || offset > len(buf) {
		return "", fmt.Errorf("%w: name offset out of range", ErrInvalidData)
	}
	rest := buf[offset:]
	i := 0
	for i < len(rest) && rest[i] != 0 {
		i++
	}
	if i == len(rest) {
		return "", fmt.Errorf("%w: unterminated name", ErrInvalidData)
	}
	return decode(rest[:i], cp1252)
}

func decode(buf []byte, cp1252 bool) (string, error) {
	if !cp1252 {
		if !isValidUTF8(buf) {
			return "", fmt.Errorf("%w: invalid utf-8", ErrInvalidData)
		}
		return string(buf), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidData, err)
	}
	return string(out), nil
}

func isValidUTF8(b []byte) bool { return utf8.Valid(b) }

// Writer wraps an io.Writer with the fixed-width and string codecs the
// archive format writers need.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) U8(v uint8) error {
	_, err := w.w.Write([]byte{v})
	return err
}

func (w *Writer) U16(v uint16, big bool) error {
	b := make([]byte, 2)
	if big {
		binary.BigEndian.PutUint16(b, v)
	} else {
		binary.LittleEndian.PutUint16(b, v)
	}
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) U32(v uint32, big bool) error {
	b := make([]byte, 4)
	if big {
		binary.BigEndian.PutUint32(b, v)
	} else {
		binary.LittleEndian.PutUint32(b, v)
	}
	_, err := w.w.Write(b)
	return err
}

func (w *Writer) U64(v uint64, big bool) error {
	b := make([]byte, 8)
	if big {
		binary.BigEndian.PutUint64(b, v)
	} else {
		binary.LittleEndian.PutUint64(b, v)
	}
	_, err := w.w.Write(b)
	return err
}

// NullTerminated encodes s (cp1252 or UTF-8) followed by a single 0x00.
func (w *Writer) NullTerminated(s string, cp1252 bool) error {
	buf, err := encode(s, cp1252)
	if err != nil {
		return err
	}
	buf = append(buf, 0)
	_, err = w.w.Write(buf)
	return err
}

// LengthPrefixed8 writes a one-byte length followed by the encoded bytes.
// includeTerminator appends (and counts) a trailing NUL.
func (w *Writer) LengthPrefixed8(s string, cp1252, includeTerminator bool) error {
	buf, err := encode(s, cp1252)
	if err != nil {
		return err
	}
	if includeTerminator {
		buf = append(buf, 0)
	}
	if len(buf) > 0xFF {
		return fmt.Errorf("%w: string too long for 1-byte length prefix", ErrInvalidData)
	}
	if err := w.U8(uint8(len(buf))); err != nil {
		return err
	}
	_, err = w.w.Write(buf)
	return err
}

// LengthPrefixed16LE writes a 16-bit little-endian length followed by the
// UTF-8 encoded bytes (BA2 name table).
func (w *Writer) LengthPrefixed16LE(s string) error {
	buf := []byte(s)
	if len(buf) > 0xFFFF {
		return fmt.Errorf("%w: string too long for 2-byte length prefix", ErrInvalidData)
	}
	if err := w.U16(uint16(len(buf)), false); err != nil {
		return err
	}
	_, err := w.w.Write(buf)
	return err
}

func (w *Writer) Bytes(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

func encode(s string, cp1252 bool) ([]byte, error) {
	if !cp1252 {
		return []byte(s), nil
	}
	out, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidData, err)
	}
	return []byte(out), nil
}
