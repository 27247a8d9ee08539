// Package registry enumerates the supported archive formats and
// dispatches to the right reader or writer by explicit name or by
// sniffing a file's leading bytes (spec C7).
package registry

import (
	"io"
	"os"
	"sort"

	"github.com/modkit/modkit"
)

// ReaderFactory opens path as this format, honoring opts.
type ReaderFactory func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error)

// WriterFactory returns a writer for this format.
type WriterFactory func() modkit.ArchiveWriter

// Format is the static descriptor for one supported container format.
type Format struct {
	Name        string   // canonical short name, e.g. "bsa", "vpk"
	Description string   // human-readable one-liner
	Extensions  []string // customary file extensions, without the dot
	Signatures  [][]byte // one or more magic 4-byte prefixes; nil if not sniffable

	NewReader ReaderFactory // nil if this format cannot be read
	NewWriter WriterFactory // nil if this format cannot be written
}

var formats []Format

// Register adds f to the registry. Called from each format package's
// init(); a caller must import the format packages it wants available
// (see the formats package, which blank-imports all of them) — importing
// registry alone registers nothing.
func Register(f Format) { formats = append(formats, f) }

// List returns every registered format, sorted by name.
func List() []Format {
	out := append([]Format(nil), formats...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByName looks up a format descriptor by its canonical name.
func ByName(name string) (Format, bool) {
	for _, f := range formats {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

const sniffLen = 4

// MakeReader opens path as the format named by name, or — if name is
// empty — sniffs the file's first 4 bytes against every registered
// format's signatures.
func MakeReader(path string, name string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) {
	if name != "" {
		f, ok := ByName(name)
		if !ok {
			return nil, &modkit.Error{Kind: modkit.KindUnknownFormat, Detail: name}
		}
		if f.NewReader == nil {
			return nil, &modkit.Error{Kind: modkit.KindUnsupported, Format: f.Name, Detail: "reading unsupported"}
		}
		return f.NewReader(path, opts)
	}

	sig, err := readSignature(path)
	if err != nil {
		return nil, err
	}

	for _, f := range formats {
		for _, s := range f.Signatures {
			if matchSignature(sig, s) {
				if f.NewReader == nil {
					return nil, &modkit.Error{Kind: modkit.KindUnsupported, Format: f.Name, Detail: "reading unsupported"}
				}
				return f.NewReader(path, opts)
			}
		}
	}
	return nil, &modkit.Error{Kind: modkit.KindUnableToDetect, Detail: path}
}

// MakeWriter looks up a writer by format name.
func MakeWriter(name string) (modkit.ArchiveWriter, error) {
	f, ok := ByName(name)
	if !ok {
		return nil, &modkit.Error{Kind: modkit.KindUnknownFormat, Detail: name}
	}
	if f.NewWriter == nil {
		return nil, &modkit.Error{Kind: modkit.KindUnsupported, Format: f.Name, Detail: "creating unsupported"}
	}
	return f.NewWriter(), nil
}

func readSignature(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, &modkit.Error{Kind: modkit.KindReadingSignature, Detail: path, Err: err}
	}
	return buf[:n], nil
}

// matchSignature reports whether sig starts with the declared bytes of s
// (s may be shorter than the full sniff length).
func matchSignature(sig, s []byte) bool {
	if len(sig) < len(s) {
		return false
	}
	for i := range s {
		if sig[i] != s[i] {
			return false
		}
	}
	return true
}
