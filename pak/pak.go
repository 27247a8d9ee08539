// Package pak implements id Software's PACK container (spec C5.4/C6.3): a
// trailing index of fixed 64-byte records, each a null-padded CP-1252 path
// plus a raw offset/size pair. There is no compression and no folder tree;
// directories are implied by path separators in the stored names.
package pak

import (
	"bufio"
	"io"
	"os"
	"sort"

	"golang.org/x/text/encoding/charmap"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/byteio"
	"github.com/modkit/modkit/internal/pathnorm"
	"github.com/modkit/modkit/internal/sectionreader"
	"github.com/modkit/modkit/registry"
)

var signature = [4]byte{'P', 'A', 'C', 'K'}

const (
	headerSize  = 12
	recordSize  = 64
	pathField   = 56
	maxPathName = pathField - 1
)

func init() {
	registry.Register(registry.Format{
		Name:        "pak",
		Description: "id Software PACK archive",
		Extensions:  []string{"pak"},
		Signatures:  [][]byte{signature[:]},
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
		NewWriter:   func() modkit.ArchiveWriter { return Writer{} },
	})
}

type fileEntry struct {
	name   string
	offset uint32
	size   uint32
}

// Reader reads a PACK archive.
type Reader struct {
	f       *os.File
	entries []fileEntry
}

// Open reads path's header and trailing index.
func Open(path string, opts modkit.ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	r, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File) (*Reader, error) {
	br := bufio.NewReader(f)
	bio := byteio.NewReader(br)

	magic, err := bio.Bytes(4)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "pak", Err: err}
	}
	if string(magic) != string(signature[:]) {
		return nil, &modkit.Error{Kind: modkit.KindInvalidSignature, Format: "pak", Detail: string(magic)}
	}
	indexOffset, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "pak", Err: err}
	}
	indexSize, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "pak", Err: err}
	}
	if indexSize%recordSize != 0 {
		return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "pak", Detail: "index size not a multiple of 64"}
	}
	fileCount := int(indexSize / recordSize)

	if _, err := f.Seek(int64(indexOffset), io.SeekStart); err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "pak", Err: err}
	}
	idxBio := byteio.NewReader(bufio.NewReader(f))

	entries := make([]fileEntry, fileCount)
	for i := range entries {
		raw, err := idxBio.Bytes(pathField)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "pak", Err: err}
		}
		name, err := byteio.CStringAt(raw, 0, true)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "pak", Err: err}
		}
		posixName, err := pathnorm.WindowsToPOSIX(name)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "pak", Detail: name, Err: err}
		}
		offset, err := idxBio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "pak", Err: err}
		}
		size, err := idxBio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "pak", Err: err}
		}
		entries[i] = fileEntry{name: posixName, offset: offset, size: size}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	return &Reader{f: f, entries: entries}, nil
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	e := r.entries[i]
	return modkit.Entry{Name: e.name, Kind: modkit.KindRegularFile, Size: int64(e.size)}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	e := r.entries[i]
	sec := sectionreader.New(r.f, int64(e.offset), int64(e.size))
	return sectionreader.NopCloser(sec.Stream()), nil
}

func (r *Reader) Close() error { return r.f.Close() }

// Writer produces a PACK archive. Files are written in input-list order;
// the index follows, sorted to match.
type Writer struct{}

func (Writer) Write(files []modkit.InputFile, outputPath string, options map[string]string) error {
	type item struct {
		modkit.InputFile
		winName string
	}
	items := make([]item, 0, len(files))
	for _, f := range files {
		if f.Kind != modkit.InputRegularFile {
			continue
		}
		if !pathnorm.Normal(f.Dst, '/') {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: f.Dst}
		}
		winName, err := pathnorm.POSIXToWindows(f.Dst)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: f.Dst, Err: err}
		}
		if len(winName) > maxPathName {
			return &modkit.Error{Kind: modkit.KindInputFileNameTooLong, Detail: f.Dst}
		}
		items = append(items, item{f, winName})
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindCreatingOutputFile, Detail: outputPath, Err: err}
	}
	defer out.Close()

	if _, err := out.Seek(headerSize, io.SeekStart); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "pak", Err: err}
	}

	type written struct {
		offset, size uint32
	}
	results := make([]written, len(items))
	for i, it := range items {
		in, err := os.Open(it.Src)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: it.Src, Err: err}
		}
		pos, err := out.Seek(0, io.SeekCurrent)
		if err != nil {
			in.Close()
			return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "pak", Err: err}
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Detail: it.Src, Err: err}
		}
		if pos > 0xFFFFFFFF || pos+n > 0xFFFFFFFF {
			return &modkit.Error{Kind: modkit.KindOutputTooLarge, Detail: it.Src}
		}
		results[i] = written{offset: uint32(pos), size: uint32(n)}
	}

	indexOffset, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "pak", Err: err}
	}

	w := byteio.NewWriter(out)
	for i, it := range items {
		nameBuf := make([]byte, pathField)
		encoded, err := pathEncode(it.winName)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: it.winName, Err: err}
		}
		copy(nameBuf, encoded)
		if err := w.Bytes(nameBuf); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "pak", Err: err}
		}
		if err := w.U32(results[i].offset, false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "pak", Err: err}
		}
		if err := w.U32(results[i].size, false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "pak", Err: err}
		}
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "pak", Err: err}
	}
	w = byteio.NewWriter(out)
	if err := w.Bytes(signature[:]); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "pak", Err: err}
	}
	if err := w.U32(uint32(indexOffset), false); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "pak", Err: err}
	}
	if err := w.U32(uint32(len(items)*recordSize), false); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "pak", Err: err}
	}
	return nil
}

func pathEncode(s string) ([]byte, error) {
	return charmap.Windows1252.NewEncoder().Bytes([]byte(s))
}
