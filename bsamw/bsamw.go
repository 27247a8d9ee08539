// Package bsamw implements the Morrowind-era BSA container (format version
// 100, spec C5.2/C6.2): a flat file list behind a 12-byte header, a data
// offset/size table, a name-offset table, a names blob, and a hash table.
// Unlike the later Bethesda BSA generations there is no folder tree, no
// compression, and no embedded names — everything is stored raw.
package bsamw

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/bshash"
	"github.com/modkit/modkit/internal/byteio"
	"github.com/modkit/modkit/internal/pathnorm"
	"github.com/modkit/modkit/internal/sectionreader"
	"github.com/modkit/modkit/registry"
)

var signature = [4]byte{0x00, 0x01, 0x00, 0x00}

const headerSize = 12

func init() {
	registry.Register(registry.Format{
		Name:        "bsa-mw",
		Description: "Bethesda BSA archive, Morrowind generation (v100)",
		Extensions:  []string{"bsa"},
		Signatures:  [][]byte{signature[:]},
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
		NewWriter:   func() modkit.ArchiveWriter { return Writer{} },
	})
}

type fileEntry struct {
	name   string
	size   uint32
	offset uint32
}

// Reader reads a Morrowind-generation BSA archive.
type Reader struct {
	f          *os.File
	entries    []fileEntry
	dataOffset int64
}

// Open reads the header, file index, names, and (if opts.Strict) hash
// table of path, sorting entries by on-disk data offset for linear
// extraction.
func Open(path string, opts modkit.ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	rdr, err := open(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return rdr, nil
}

func open(f *os.File, opts modkit.ReaderOptions) (*Reader, error) {
	br := bufio.NewReader(f)
	bio := byteio.NewReader(br)

	magic, err := bio.Bytes(4)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa-mw", Err: err}
	}
	if string(magic) != string(signature[:]) {
		return nil, &modkit.Error{Kind: modkit.KindInvalidSignature, Format: "bsa-mw", Detail: fmt.Sprintf("% x", magic)}
	}
	hashTableOffsetRel, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa-mw", Err: err}
	}
	fileCount, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa-mw", Err: err}
	}
	n := int(fileCount)
	hashTableOffset := int64(headerSize) + int64(hashTableOffsetRel)

	type rec struct{ size, offset uint32 }
	recs := make([]rec, n)
	for i := range recs {
		size, err := bio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa-mw", Err: err}
		}
		off, err := bio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa-mw", Err: err}
		}
		recs[i] = rec{size, off}
	}

	nameOffsets := make([]uint32, n)
	for i := range nameOffsets {
		o, err := bio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa-mw", Err: err}
		}
		nameOffsets[i] = o
	}

	pos := int64(headerSize) + 8*int64(n) + 4*int64(n)
	if hashTableOffset < pos {
		return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "bsa-mw", Detail: "hash table offset precedes name table"}
	}
	namesBuf, err := bio.Bytes(int(hashTableOffset - pos))
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa-mw", Err: err}
	}

	entries := make([]fileEntry, n)
	rawNames := make([]string, n)
	for i := range entries {
		name, err := byteio.CStringAt(namesBuf, int(nameOffsets[i]), true)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa-mw", Err: err}
		}
		rawNames[i] = name
		posixName, err := pathnorm.WindowsToPOSIX(name)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa-mw", Detail: name, Err: err}
		}
		entries[i] = fileEntry{name: posixName, size: recs[i].size, offset: recs[i].offset}
	}

	if opts.Strict {
		for i, e := range entries {
			low, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa-mw", Err: err}
			}
			high, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa-mw", Err: err}
			}
			want := bshash.MorrowindPathHash(rawNames[i])
			if low != want.Low || high != want.High {
				return nil, &modkit.Error{Kind: modkit.KindInvalidFileNameHash, Format: "bsa-mw", Detail: e.name}
			}
		}
	} else {
		if _, err := bio.Bytes(8 * n); err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa-mw", Err: err}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	dataOffset := hashTableOffset + 8*int64(n)

	return &Reader{f: f, entries: entries, dataOffset: dataOffset}, nil
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	e := r.entries[i]
	return modkit.Entry{Name: e.name, Kind: modkit.KindRegularFile, Size: int64(e.size)}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	e := r.entries[i]
	sec := sectionreader.New(r.f, r.dataOffset+int64(e.offset), int64(e.size))
	return sectionreader.NopCloser(sec.Stream()), nil
}

func (r *Reader) Close() error { return r.f.Close() }

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

// Writer produces a Morrowind-generation BSA archive. Files are sorted by
// their Morrowind path hash (low word primary, high word secondary), per
// the format's canonical on-disk order.
type Writer struct{}

func (Writer) Write(files []modkit.InputFile, outputPath string, options map[string]string) error {
	type item struct {
		modkit.InputFile
		winName string
		hash    bshash.MorrowindHash
		key     uint64
	}
	items := make([]item, 0, len(files))
	seen := make(map[uint64]string)
	for _, f := range files {
		if f.Kind != modkit.InputRegularFile {
			continue
		}
		if !pathnorm.Normal(f.Dst, '/') {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: f.Dst}
		}
		dst := strings.ToLower(f.Dst)
		if !isASCII(dst) {
			return &modkit.Error{Kind: modkit.KindNotASCII, Detail: dst}
		}
		winName, err := pathnorm.POSIXToWindows(dst)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: dst, Err: err}
		}
		h := bshash.MorrowindPathHash(winName)
		key := uint64(h.Low)<<32 | uint64(h.High)
		if existing, dup := seen[key]; dup {
			return &modkit.Error{Kind: modkit.KindDuplicateHash, Detail: fmt.Sprintf("%s collides with %s", dst, existing)}
		}
		seen[key] = dst
		items = append(items, item{modkit.InputFile{Src: f.Src, Dst: dst, Kind: f.Kind}, winName, h, key})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	out, err := os.Create(outputPath)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindCreatingOutputFile, Detail: outputPath, Err: err}
	}
	defer out.Close()

	n := len(items)
	hashTableOffsetRel := uint32(8*n + 4*n)

	w := byteio.NewWriter(out)
	if err := w.Bytes(signature[:]); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "bsa-mw", Err: err}
	}

	var namesBlob []byte
	nameOffsets := make([]uint32, n)
	for i, it := range items {
		nameOffsets[i] = uint32(len(namesBlob))
		namesBlob = append(namesBlob, []byte(it.winName)...)
		namesBlob = append(namesBlob, 0)
	}
	hashTableOffsetRel += uint32(len(namesBlob))

	if err := w.U32(hashTableOffsetRel, false); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "bsa-mw", Err: err}
	}
	if err := w.U32(uint32(n), false); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "bsa-mw", Err: err}
	}

	sizes := make([]uint32, n)
	for i, it := range items {
		info, err := os.Stat(it.Src)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: it.Src, Err: err}
		}
		if info.Size() > 0xFFFFFFFF {
			return &modkit.Error{Kind: modkit.KindInputFileTooLarge, Detail: it.Src}
		}
		sizes[i] = uint32(info.Size())
	}
	offsets := make([]uint32, n)
	var running uint32
	for i := range items {
		offsets[i] = running
		running += sizes[i]
	}
	for i := range items {
		if err := w.U32(sizes[i], false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa-mw", Err: err}
		}
		if err := w.U32(offsets[i], false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa-mw", Err: err}
		}
	}
	for _, o := range nameOffsets {
		if err := w.U32(o, false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa-mw", Err: err}
		}
	}
	if err := w.Bytes(namesBlob); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa-mw", Err: err}
	}
	for _, it := range items {
		if err := w.U32(it.hash.Low, false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa-mw", Err: err}
		}
		if err := w.U32(it.hash.High, false); err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa-mw", Err: err}
		}
	}

	for _, it := range items {
		in, err := os.Open(it.Src)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: it.Src, Err: err}
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Detail: it.Src, Err: err}
		}
	}
	return nil
}
