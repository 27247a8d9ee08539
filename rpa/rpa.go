// Package rpa implements Ren'Py's RPA-3.0 container (spec C5.5/C6.4): an
// ASCII header line naming a zlib-compressed, pickled index, followed by
// raw (never individually compressed) file payloads. Offsets and sizes in
// the index are obfuscated with a fixed XOR key, not encrypted.
package rpa

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/pathnorm"
	"github.com/modkit/modkit/internal/pypickle"
	"github.com/modkit/modkit/internal/sectionreader"
	"github.com/modkit/modkit/registry"
)

const (
	signaturePrefix = "RPA-3.0 "
	writerKey       = uint64(0x42424242)
	padding         = "Made with Ren'Py."
)

func init() {
	registry.Register(registry.Format{
		Name:        "rpa",
		Description: "Ren'Py RPA-3.0 archive",
		Extensions:  []string{"rpa"},
		Signatures:  [][]byte{[]byte(signaturePrefix[:4])},
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
		NewWriter:   func() modkit.ArchiveWriter { return Writer{} },
	})
}

type fileEntry struct {
	name   string
	offset int64
	size   int64 // stored (on-disk) byte count, excluding prefix
	prefix string
}

// Reader reads an RPA-3.0 archive.
type Reader struct {
	f       *os.File
	entries []fileEntry
}

// Open parses path's header line and pickled index.
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
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "rpa", Err: err}
	}
	line = strings.TrimRight(line, "\n")
	if !strings.HasPrefix(line, signaturePrefix) {
		return nil, &modkit.Error{Kind: modkit.KindInvalidStringSignature, Format: "rpa", Detail: line}
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "rpa", Detail: line}
	}
	indexOffset, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "rpa", Detail: "index offset", Err: err}
	}
	key, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "rpa", Detail: "key", Err: err}
	}

	if _, err := f.Seek(int64(indexOffset), io.SeekStart); err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "rpa", Err: err}
	}
	zr, err := zlib.NewReader(f)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "rpa", Err: err}
	}
	compressed, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "rpa", Err: err}
	}

	index, err := pypickle.DecodeIndex(compressed)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "rpa", Err: err}
	}

	entries := make([]fileEntry, 0, len(index))
	for name, tuples := range index {
		if len(tuples) == 0 {
			continue
		}
		t := tuples[0]
		posixName, err := pathnorm.WindowsToPOSIX(name)
		if err != nil {
			posixName = name
		}
		entries = append(entries, fileEntry{
			name:   posixName,
			offset: t.Offset ^ int64(key),
			size:   t.Size ^ int64(key),
			prefix: t.Prefix,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	return &Reader{f: f, entries: entries}, nil
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	e := r.entries[i]
	return modkit.Entry{Name: e.name, Kind: modkit.KindRegularFile, Size: int64(len(e.prefix)) + e.size}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	e := r.entries[i]
	sec := sectionreader.New(r.f, e.offset, e.size)
	if e.prefix == "" {
		return sectionreader.NopCloser(sec.Stream()), nil
	}
	return sectionreader.NopCloser(io.MultiReader(bytes.NewReader([]byte(e.prefix)), sec.Stream())), nil
}

func (r *Reader) Close() error { return r.f.Close() }

// Writer produces an RPA-3.0 archive with the fixed obfuscation key every
// Ren'Py archiver uses, and no per-file prefix.
type Writer struct{}

func (Writer) Write(files []modkit.InputFile, outputPath string, options map[string]string) error {
	type item struct {
		modkit.InputFile
		unixName string
	}
	items := make([]item, 0, len(files))
	for _, f := range files {
		if f.Kind != modkit.InputRegularFile {
			continue
		}
		if !pathnorm.Normal(f.Dst, '/') {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: f.Dst}
		}
		items = append(items, item{f, f.Dst})
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindCreatingOutputFile, Detail: outputPath, Err: err}
	}
	defer out.Close()

	headerPlaceholder := fmt.Sprintf("%s%016x %08x\n", signaturePrefix, 0, writerKey)
	if _, err := out.WriteString(headerPlaceholder); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "rpa", Err: err}
	}

	index := make(map[string][]pypickle.Entry, len(items))
	names := make([]string, 0, len(items))
	for _, it := range items {
		if _, err := out.WriteString(padding); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Detail: it.Src, Err: err}
		}
		pos, err := out.Seek(0, io.SeekCurrent)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "rpa", Err: err}
		}

		in, err := os.Open(it.Src)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: it.Src, Err: err}
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Detail: it.Src, Err: err}
		}

		names = append(names, it.unixName)
		index[it.unixName] = []pypickle.Entry{{
			Offset: pos ^ int64(writerKey),
			Size:   n ^ int64(writerKey),
			Prefix: "",
		}}
	}
	sort.Strings(names)

	indexOffset, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "rpa", Err: err}
	}

	pickled := pypickle.EncodeIndex(names, index)
	zw := zlib.NewWriter(out)
	if _, err := zw.Write(pickled); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "rpa", Err: err}
	}
	if err := zw.Close(); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "rpa", Err: err}
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "rpa", Err: err}
	}
	header := fmt.Sprintf("%s%016x %08x\n", signaturePrefix, uint64(indexOffset), writerKey)
	if _, err := out.WriteString(header); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "rpa", Err: err}
	}
	return nil
}
