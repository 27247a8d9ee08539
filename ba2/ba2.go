// Package ba2 implements Bethesda's BA2/BTDX container (spec C5.3): a flat
// record table keyed by name/dir hash plus an extension tag, a shared
// 16-bit-length-prefixed name table, and zlib-compressed general payloads.
// Only the GNRL (general-purpose) archive type supports extraction; DX10
// (texture) and GNMF archives are parsed far enough to list their entries,
// but their payload layout is out of scope and Open surfaces *unsupported*.
package ba2

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/blockcache"
	"github.com/modkit/modkit/internal/byteio"
	"github.com/modkit/modkit/registry"
)

var signature = [4]byte{'B', 'T', 'D', 'X'}

const paddingMagic uint32 = 0xBAADF00D

func init() {
	registry.Register(registry.Format{
		Name:        "ba2",
		Description: "Bethesda BA2/BTDX archive (GNRL/DX10/GNMF)",
		Extensions:  []string{"ba2"},
		Signatures:  [][]byte{signature[:]},
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
	})
}

type archiveType int

const (
	typeGeneral archiveType = iota
	typeTexture
	typeGNMF
)

type fileEntry struct {
	name         string
	size         int64
	dataOffset   int64
	packedSize   uint32
	unpackedSize uint32
	extractable  bool
}

// Reader reads a BA2/BTDX archive.
type Reader struct {
	f       *os.File
	kind    archiveType
	entries []fileEntry
	cache   *blockcache.Cache
}

// Open parses path's header and record table.
func Open(path string, opts modkit.ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	r, err := open(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File, opts modkit.ReaderOptions) (*Reader, error) {
	br := bufio.NewReader(f)
	bio := byteio.NewReader(br)

	magic, err := bio.Bytes(4)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "ba2", Err: err}
	}
	if string(magic) != string(signature[:]) {
		return nil, &modkit.Error{Kind: modkit.KindInvalidStringSignature, Format: "ba2", Detail: string(magic)}
	}
	version, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "ba2", Err: err}
	}
	if version != 1 {
		return nil, &modkit.Error{Kind: modkit.KindUnsupportedVersion, Format: "ba2", Detail: fmt.Sprintf("%d", version)}
	}
	typeTag, err := bio.Bytes(4)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "ba2", Err: err}
	}
	fileCount, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "ba2", Err: err}
	}
	namesOffset, err := bio.U64(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "ba2", Err: err}
	}

	var kind archiveType
	var entries []fileEntry

	switch string(typeTag) {
	case "GNRL":
		kind = typeGeneral
		entries = make([]fileEntry, fileCount)
		for i := range entries {
			if _, err := bio.Bytes(4); err != nil { // name hash
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // extension tag
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // dir hash
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // flags
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			offset, err := bio.U64(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			packed, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			unpacked, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			padding, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if opts.Strict && padding != paddingMagic {
				return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "ba2", Detail: "general record padding mismatch"}
			}
			size := int64(unpacked)
			if packed == 0 {
				size = int64(unpacked) // stored raw; unpacked == on-disk size in that case too
			}
			entries[i] = fileEntry{
				size:         size,
				dataOffset:   int64(offset),
				packedSize:   packed,
				unpackedSize: unpacked,
				extractable:  true,
			}
		}

	case "DX10":
		kind = typeTexture
		entries = make([]fileEntry, fileCount)
		for i := range entries {
			if _, err := bio.Bytes(4); err != nil { // name hash
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // extension tag
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // dir hash
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(1); err != nil { // unknown
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			numChunks, err := bio.U8()
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(2); err != nil { // chunk header size
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(2); err != nil { // height
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(2); err != nil { // width
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(2); err != nil { // num mips + format
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(2); err != nil { // unknown
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}

			var firstUnpacked uint32
			for c := 0; c < int(numChunks); c++ {
				if _, err := bio.Bytes(8); err != nil { // offset
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
				}
				if _, err := bio.Bytes(4); err != nil { // packed size
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
				}
				u, err := bio.U32(false) // unpacked size
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
				}
				if c == 0 {
					firstUnpacked = u
				}
				if _, err := bio.Bytes(8); err != nil { // start/end mip + unknown
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
				}
			}
			entries[i] = fileEntry{size: int64(firstUnpacked), extractable: false}
		}

	case "GNMF":
		kind = typeGNMF
		// Structure undocumented; approximated with the general-record
		// layout for listing purposes only (extraction always surfaces
		// *unsupported*, so the payload fields are never dereferenced).
		entries = make([]fileEntry, fileCount)
		for i := range entries {
			if _, err := bio.Bytes(16); err != nil { // name/ext/dir hash + flags
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(8); err != nil { // offset
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // packed size
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			unpacked, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			if _, err := bio.Bytes(4); err != nil { // padding
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "ba2", Err: err}
			}
			entries[i] = fileEntry{size: int64(unpacked), extractable: false}
		}

	default:
		return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "ba2", Detail: "unknown archive type " + string(typeTag)}
	}

	if _, err := f.Seek(int64(namesOffset), io.SeekStart); err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "ba2", Err: err}
	}
	nameBio := byteio.NewReader(bufio.NewReader(f))
	for i := range entries {
		name, err := nameBio.LengthPrefixed16LE()
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "ba2", Err: err}
		}
		entries[i].name = name
	}

	return &Reader{f: f, kind: kind, entries: entries, cache: blockcache.New(32)}, nil
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	e := r.entries[i]
	return modkit.Entry{Name: e.name, Kind: modkit.KindRegularFile, Size: e.size}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	e := r.entries[i]
	if !e.extractable {
		return nil, &modkit.Error{Kind: modkit.KindUnsupported, Format: "ba2", Detail: e.name}
	}

	key := blockcache.Key{Archive: r, Entry: i}
	if data, ok := r.cache.Get(key); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	if e.packedSize == 0 || e.packedSize == e.unpackedSize {
		raw := make([]byte, e.unpackedSize)
		if _, err := r.f.ReadAt(raw, e.dataOffset); err != nil && err != io.EOF {
			return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "ba2", Err: err}
		}
		r.cache.Add(key, raw)
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	raw := make([]byte, e.packedSize)
	if _, err := r.f.ReadAt(raw, e.dataOffset); err != nil && err != io.EOF {
		return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "ba2", Err: err}
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "ba2", Err: err}
	}
	defer zr.Close()
	data := make([]byte, e.unpackedSize)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "ba2", Err: err}
	}
	r.cache.Add(key, data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *Reader) Close() error { return r.f.Close() }
