// Package bsa implements the post-Morrowind Bethesda BSA container (format
// versions 103, 104, and 105, spec C5.1/C6.1): a folder/file record tree,
// optional per-entry compression (zlib for 103/104, an LZ4 frame for 105),
// and an XBOX endianness quirk applying only to the 64-bit name hashes.
package bsa

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/blockcache"
	"github.com/modkit/modkit/internal/bshash"
	"github.com/modkit/modkit/internal/byteio"
	"github.com/modkit/modkit/registry"
)

var signature = [4]byte{'B', 'S', 'A', 0}

const headerSize = 36

// Archive flags (spec §4.5.1).
const (
	flagHasFolderNames       uint32 = 1 << 0
	flagHasFileNames         uint32 = 1 << 1
	flagCompressedByDefault  uint32 = 1 << 2
	flagXBOX                 uint32 = 0x40
	flagEmbeddedFileNames    uint32 = 0x100
	flagXMemCodec            uint32 = 0x200
	sizeCompressionToggleBit uint32 = 0x40000000
	sizeMask                 uint32 = 0x3FFFFFFF
)

func init() {
	registry.Register(registry.Format{
		Name:        "bsa",
		Description: "Bethesda BSA archive (v103/v104/v105)",
		Extensions:  []string{"bsa"},
		Signatures:  [][]byte{signature[:]},
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
		NewWriter:   func() modkit.ArchiveWriter { return Writer{} },
	})
}

type header struct {
	version               uint32
	folderRecordsOffset   uint32
	flags                 uint32
	folderCount           uint32
	fileCount             uint32
	totalFolderNameLength uint32
	totalFileNameLength   uint32
	fileFlags             uint16
}

func (h header) xbox() bool           { return h.flags&flagXBOX != 0 }
func (h header) hasFolderNames() bool { return h.flags&flagHasFolderNames != 0 }
func (h header) hasFileNames() bool   { return h.flags&flagHasFileNames != 0 }
func (h header) compressedDefault() bool {
	return h.flags&flagCompressedByDefault != 0
}
func (h header) embeddedFileNames() bool {
	return h.version >= 104 && h.flags&flagEmbeddedFileNames != 0
}
func (h header) folderRecordSize() int {
	if h.version == 105 {
		return 24
	}
	return 16
}

type fileEntry struct {
	path       string
	size       int64
	compressed bool
	dataOffset uint32 // on-disk "data offset" field, used for extraction sort
	payloadAt  int64  // absolute offset of the payload bytes (post any prefix)
	payloadLen int64  // length of the stored (possibly compressed) bytes
}

// Reader reads a v103/v104/v105 Bethesda BSA archive.
type Reader struct {
	f       *os.File
	hdr     header
	entries []fileEntry
	cache   *blockcache.Cache
}

// Open parses the header, folder/file index, and name tables of path.
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
	hdr, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if hdr.version != 103 && hdr.version != 104 && hdr.version != 105 {
		return nil, &modkit.Error{Kind: modkit.KindUnsupportedVersion, Format: "bsa", Detail: fmt.Sprintf("%d", hdr.version)}
	}
	if hdr.flags&flagXMemCodec != 0 {
		return nil, &modkit.Error{Kind: modkit.KindUnsupported, Format: "bsa", Detail: "xmem codec"}
	}

	type folder struct {
		nameHash  uint64
		fileCount uint32
		recOffset uint32
		name      string
	}
	folders := make([]folder, hdr.folderCount)

	if _, err := f.Seek(int64(hdr.folderRecordsOffset), io.SeekStart); err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
	}
	br := bufio.NewReader(f)
	bio := byteio.NewReader(br)
	for i := range folders {
		h, err := readHash64(bio, hdr.xbox())
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
		}
		fc, err := bio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
		}
		if hdr.version == 105 {
			if _, err := bio.Bytes(4); err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
			}
		}
		fro, err := bio.U32(false)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
		}
		if hdr.version == 105 {
			if _, err := bio.Bytes(4); err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
			}
		}
		folders[i] = folder{nameHash: h, fileCount: fc, recOffset: fro}
	}

	type fileRec struct {
		folder     int
		nameHash   uint64
		sizeAndTag uint32
		dataOffset uint32
		basename   string
	}
	var files []fileRec

	for fi := range folders {
		pos := int64(folders[fi].recOffset) - int64(hdr.totalFileNameLength)
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
		}
		br := bufio.NewReader(f)
		bio := byteio.NewReader(br)

		if hdr.hasFolderNames() {
			name, err := bio.LengthPrefixed8(true, true)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa", Err: err}
			}
			folders[fi].name = name
		}

		for j := uint32(0); j < folders[fi].fileCount; j++ {
			h, err := readHash64(bio, hdr.xbox())
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
			}
			sz, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
			}
			off, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "bsa", Err: err}
			}
			files = append(files, fileRec{folder: fi, nameHash: h, sizeAndTag: sz, dataOffset: off})
		}
	}

	if hdr.hasFileNames() && len(folders) > 0 {
		last := folders[len(folders)-1]
		blobStart := int64(last.recOffset) - int64(hdr.totalFileNameLength) + int64(last.fileCount)*16
		if hdr.hasFolderNames() {
			blobStart += int64(1 + len(last.name) + 1)
		}
		if _, err := f.Seek(blobStart, io.SeekStart); err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa", Err: err}
		}
		blob := make([]byte, hdr.totalFileNameLength)
		if _, err := io.ReadFull(f, blob); err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa", Err: err}
		}
		names := strings.Split(string(blob), "\x00")
		if len(names) > 0 && names[len(names)-1] == "" {
			names = names[:len(names)-1]
		}
		if len(names) != len(files) {
			return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "bsa", Detail: "file name count mismatch"}
		}
		for i := range files {
			files[i].basename = names[i]
		}
	}

	entries := make([]fileEntry, len(files))
	for i, rec := range files {
		folderName := folders[rec.folder].name
		diskPath := rec.basename
		if folderName != "" {
			diskPath = folderName + "\\" + rec.basename
		}

		if opts.Strict {
			if folders[rec.folder].nameHash != bshash.FolderHash(folderName) {
				return nil, &modkit.Error{Kind: modkit.KindInvalidFileNameHash, Format: "bsa", Detail: "folder " + folderName}
			}
			if rec.nameHash != bshash.FileNameHash(rec.basename) {
				return nil, &modkit.Error{Kind: modkit.KindInvalidFileNameHash, Format: "bsa", Detail: diskPath}
			}
		}

		if _, err := f.Seek(int64(rec.dataOffset), io.SeekStart); err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa", Err: err}
		}
		br := bufio.NewReader(f)
		bio := byteio.NewReader(br)

		if hdr.embeddedFileNames() {
			embedded, err := bio.LengthPrefixed8(true, false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileName, Format: "bsa", Err: err}
			}
			if hdr.hasFolderNames() && embedded != diskPath {
				return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "bsa", Detail: "embedded name mismatch: " + embedded}
			}
		}

		compressed := hdr.compressedDefault() != (rec.sizeAndTag&sizeCompressionToggleBit != 0)
		storedSize := int64(rec.sizeAndTag & sizeMask)

		var uncompressedSize int64
		prefixLen := int64(0)
		if compressed {
			u32, err := bio.U32(false)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa", Err: err}
			}
			uncompressedSize = int64(u32)
			prefixLen = 4
		}

		// overhead is the number of bytes, between data_offset and the
		// payload itself, taken by the embedded name (if any) and the
		// uncompressed-size prefix (if any): packed_size = stored_size -
		// overhead, per the format's "current - data_offset" rule.
		overhead := headerOverhead(hdr, folderName, rec.basename) + prefixLen
		payloadAt := int64(rec.dataOffset) + overhead
		payloadLen := storedSize - overhead

		size := storedSize
		if compressed {
			size = uncompressedSize
		}

		entries[i] = fileEntry{
			path:       pathJoin(folderName, rec.basename),
			size:       size,
			compressed: compressed,
			dataOffset: rec.dataOffset,
			payloadAt:  payloadAt,
			payloadLen: payloadLen,
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].dataOffset < entries[j].dataOffset })

	return &Reader{f: f, hdr: hdr, entries: entries, cache: blockcache.New(32)}, nil
}

// headerOverhead returns the number of bytes, past the raw data offset, that
// the embedded file name (if the format version/flags carry one) occupies.
func headerOverhead(hdr header, folderName, basename string) int64 {
	if !hdr.embeddedFileNames() {
		return 0
	}
	path := basename
	if folderName != "" {
		path = folderName + "\\" + basename
	}
	return 1 + int64(len(path))
}

func pathJoin(folderName, basename string) string {
	folderName = strings.ReplaceAll(folderName, "\\", "/")
	if folderName == "" {
		return basename
	}
	return folderName + "/" + basename
}

func readHeader(f *os.File) (header, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return header{}, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa", Err: err}
	}
	bio := byteio.NewReader(bufio.NewReader(f))
	magic, err := bio.Bytes(4)
	if err != nil {
		return header{}, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa", Err: err}
	}
	if string(magic) != string(signature[:]) {
		return header{}, &modkit.Error{Kind: modkit.KindInvalidSignature, Format: "bsa", Detail: fmt.Sprintf("% x", magic)}
	}
	var h header
	var err2 error
	read32 := func() uint32 {
		if err2 != nil {
			return 0
		}
		var v uint32
		v, err2 = bio.U32(false)
		return v
	}
	h.version = read32()
	h.folderRecordsOffset = read32()
	h.flags = read32()
	h.folderCount = read32()
	h.fileCount = read32()
	h.totalFolderNameLength = read32()
	h.totalFileNameLength = read32()
	if err2 != nil {
		return header{}, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa", Err: err2}
	}
	fileFlags, err := bio.U16(false)
	if err != nil {
		return header{}, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa", Err: err}
	}
	h.fileFlags = fileFlags
	if _, err := bio.Bytes(2); err != nil {
		return header{}, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "bsa", Err: err}
	}
	return h, nil
}

func readHash64(bio *byteio.Reader, xbox bool) (uint64, error) {
	if !xbox {
		return bio.U64(false)
	}
	low, err := bio.U32(false)
	if err != nil {
		return 0, err
	}
	high, err := bio.U32(true)
	if err != nil {
		return 0, err
	}
	return uint64(low) | uint64(high)<<32, nil
}

func writeHash64(w *byteio.Writer, h uint64, xbox bool) error {
	if !xbox {
		return w.U64(h, false)
	}
	if err := w.U32(uint32(h), false); err != nil {
		return err
	}
	return w.U32(uint32(h>>32), true)
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	e := r.entries[i]
	return modkit.Entry{Name: e.path, Kind: modkit.KindRegularFile, Size: e.size}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	e := r.entries[i]
	key := blockcache.Key{Archive: r, Entry: i}
	if data, ok := r.cache.Get(key); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	raw := make([]byte, e.payloadLen)
	if _, err := r.f.ReadAt(raw, e.payloadAt); err != nil && err != io.EOF {
		return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa", Err: err}
	}

	var data []byte
	if !e.compressed {
		data = raw
	} else {
		var err error
		switch r.hdr.version {
		case 105:
			data, err = decompressLZ4(raw, e.size)
		default:
			data, err = decompressZlib(raw, e.size)
		}
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "bsa", Err: err}
		}
	}
	r.cache.Add(key, data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *Reader) Close() error { return r.f.Close() }

func decompressZlib(raw []byte, size int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decompressLZ4(raw []byte, size int64) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(raw))
	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Writer produces a v103/v104/v105 Bethesda BSA archive.
//
// Recognized options: "version" (103, 104, or 105; default 105),
// "compress" (bool, sets COMPRESSED_BY_DEFAULT), "big-endian" (bool, sets
// XBOX), "xmem-codec" (rejected with *unsupported* if set).
type Writer struct{}

type writeItem struct {
	folder, basename string
	src              string
	fileHash         uint64
}

type writeFolder struct {
	name  string
	hash  uint64
	items []writeItem
}

func (Writer) Write(files []modkit.InputFile, outputPath string, options map[string]string) error {
	version, err := versionOption(options)
	if err != nil {
		return err
	}
	if s, ok := options["xmem-codec"]; ok && s != "" && s != "false" && s != "0" {
		return &modkit.Error{Kind: modkit.KindUnsupported, Format: "bsa", Detail: "xmem codec"}
	}
	compress, err := modkit.OptionBool(options, "bsa", "compress", false)
	if err != nil {
		return err
	}
	bigEndian, err := modkit.OptionBool(options, "bsa", "big-endian", false)
	if err != nil {
		return err
	}

	byFolder := map[string]*writeFolder{}
	var order []string
	var dirs []string
	for _, f := range files {
		if f.Kind == modkit.InputDirectory {
			dirs = append(dirs, strings.ToLower(f.Dst)+"/")
			continue
		}
		dst := strings.ToLower(f.Dst)
		if !isASCII(dst) {
			return &modkit.Error{Kind: modkit.KindNotASCII, Format: "bsa", Detail: dst}
		}
		idx := strings.LastIndexByte(dst, '/')
		if idx < 0 {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Format: "bsa", Detail: dst + ": not inside a folder"}
		}
		folderName := strings.ReplaceAll(dst[:idx], "/", "\\")
		basename := dst[idx+1:]
		if len(folderName) > 255 {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Format: "bsa", Detail: folderName + ": folder name too long"}
		}
		wf, ok := byFolder[folderName]
		if !ok {
			wf = &writeFolder{name: folderName, hash: bshash.FolderHash(folderName)}
			byFolder[folderName] = wf
			order = append(order, folderName)
		}
		wf.items = append(wf.items, writeItem{folder: folderName, basename: basename, src: f.Src, fileHash: bshash.FileNameHash(basename)})
	}

	for _, d := range dirs {
		covered := false
		for _, f := range files {
			if f.Kind == modkit.InputRegularFile && strings.HasPrefix(strings.ToLower(f.Dst)+"/", d) {
				covered = true
				break
			}
		}
		if !covered {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Format: "bsa", Detail: d + ": empty folder"}
		}
	}

	sort.Strings(order)
	folders := make([]*writeFolder, 0, len(order))
	for _, name := range order {
		folders = append(folders, byFolder[name])
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].hash < folders[j].hash })
	for _, wf := range folders {
		sort.Slice(wf.items, func(i, j int) bool { return wf.items[i].fileHash < wf.items[j].fileHash })
	}

	var fileCount int
	var totalFolderNameLength, totalFileNameLength uint32
	for _, wf := range folders {
		totalFolderNameLength += uint32(len(wf.name) + 1)
		for _, it := range wf.items {
			fileCount++
			totalFileNameLength += uint32(len(it.basename) + 1)
		}
	}

	recSize := header{version: version}.folderRecordSize()
	reserved := int64(headerSize) + int64(len(folders))*int64(recSize)
	for _, wf := range folders {
		reserved += 1 + int64(len(wf.name)+1) + int64(len(wf.items))*16
	}
	reserved += int64(totalFileNameLength)

	out, err := os.Create(outputPath)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindCreatingOutputFile, Detail: outputPath, Err: err}
	}
	defer out.Close()

	if _, err := out.Seek(reserved, io.SeekStart); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "bsa", Err: err}
	}

	type writtenFile struct {
		sizeAndTag uint32
		dataOffset uint32
	}
	results := map[*writeItem]writtenFile{}

	pos := reserved
	for _, wf := range folders {
		for idx := range wf.items {
			it := &wf.items[idx]
			in, err := os.Open(it.src)
			if err != nil {
				return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: it.src, Err: err}
			}
			dataOffset := pos

			var stored int64
			if compress {
				var buf bytes.Buffer
				if err := compressTo(&buf, in, version); err != nil {
					in.Close()
					return &modkit.Error{Kind: modkit.KindWritingFileData, Detail: it.src, Err: err}
				}
				in.Close()
				uncompressedSize, err := fileSize(it.src)
				if err != nil {
					return err
				}
				wU32 := byteio.NewWriter(out)
				if err := wU32.U32(uint32(uncompressedSize), false); err != nil {
					return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "bsa", Err: err}
				}
				n, err := out.Write(buf.Bytes())
				if err != nil {
					return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "bsa", Err: err}
				}
				stored = 4 + int64(n)
			} else {
				n, err := io.Copy(out, in)
				in.Close()
				if err != nil {
					return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "bsa", Err: err}
				}
				stored = n
			}
			if stored > int64(sizeMask) {
				return &modkit.Error{Kind: modkit.KindInputFileTooLarge, Detail: it.src}
			}
			if dataOffset > int64(^uint32(0)) {
				return &modkit.Error{Kind: modkit.KindOutputTooLarge, Detail: outputPath}
			}

			// compressed == compressedByDefault for every file written, so
			// the toggle bit is always 0.
			results[it] = writtenFile{sizeAndTag: uint32(stored), dataOffset: uint32(dataOffset)}
			pos += stored
		}
	}

	// rewind and write header + index
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "bsa", Err: err}
	}
	w := byteio.NewWriter(out)
	flags := flagHasFolderNames | flagHasFileNames
	if compress {
		flags |= flagCompressedByDefault
	}
	if bigEndian {
		flags |= flagXBOX
	}

	if err := w.Bytes(signature[:]); err != nil {
		return headerErr(err)
	}
	if err := w.U32(version, false); err != nil {
		return headerErr(err)
	}
	if err := w.U32(headerSize, false); err != nil {
		return headerErr(err)
	}
	if err := w.U32(flags, false); err != nil {
		return headerErr(err)
	}
	if err := w.U32(uint32(len(folders)), false); err != nil {
		return headerErr(err)
	}
	if err := w.U32(uint32(fileCount), false); err != nil {
		return headerErr(err)
	}
	if err := w.U32(totalFolderNameLength, false); err != nil {
		return headerErr(err)
	}
	if err := w.U32(totalFileNameLength, false); err != nil {
		return headerErr(err)
	}
	if err := w.U16(0, false); err != nil {
		return headerErr(err)
	}
	if err := w.Bytes([]byte{0, 0}); err != nil {
		return headerErr(err)
	}

	// folder records: the on-disk "file records offset" field is the real
	// position of this folder's name+records block, plus totalFileNameLength.
	folderRecPos := int64(headerSize) + int64(len(folders))*int64(recSize)
	for _, wf := range folders {
		fro := uint32(folderRecPos) + totalFileNameLength
		if err := writeHash64(w, wf.hash, bigEndian); err != nil {
			return indexErr(err)
		}
		if err := w.U32(uint32(len(wf.items)), false); err != nil {
			return indexErr(err)
		}
		if version == 105 {
			if err := w.Bytes([]byte{0, 0, 0, 0}); err != nil {
				return indexErr(err)
			}
		}
		if err := w.U32(fro, false); err != nil {
			return indexErr(err)
		}
		if version == 105 {
			if err := w.Bytes([]byte{0, 0, 0, 0}); err != nil {
				return indexErr(err)
			}
		}
		folderRecPos += 1 + int64(len(wf.name)+1) + int64(len(wf.items))*16
	}

	for _, wf := range folders {
		if err := w.LengthPrefixed8(wf.name, true, true); err != nil {
			return indexErr(err)
		}
		for idx := range wf.items {
			it := &wf.items[idx]
			res := results[it]
			if err := writeHash64(w, it.fileHash, bigEndian); err != nil {
				return indexErr(err)
			}
			if err := w.U32(res.sizeAndTag, false); err != nil {
				return indexErr(err)
			}
			if err := w.U32(res.dataOffset, false); err != nil {
				return indexErr(err)
			}
		}
	}

	for _, wf := range folders {
		for _, it := range wf.items {
			if err := w.NullTerminated(it.basename, true); err != nil {
				return indexErr(err)
			}
		}
	}

	return nil
}

func headerErr(err error) error {
	return &modkit.Error{Kind: modkit.KindWritingHeader, Format: "bsa", Err: err}
}

func indexErr(err error) error {
	return &modkit.Error{Kind: modkit.KindWritingFileIndex, Format: "bsa", Err: err}
}

func compressTo(w io.Writer, r io.Reader, version uint32) error {
	if version == 105 {
		zw := lz4.NewWriter(w)
		if _, err := io.Copy(zw, r); err != nil {
			return err
		}
		return zw.Close()
	}
	zw := zlib.NewWriter(w)
	if _, err := io.Copy(zw, r); err != nil {
		return err
	}
	return zw.Close()
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	return info.Size(), nil
}

func versionOption(options map[string]string) (uint32, error) {
	switch v := modkit.OptionString(options, "version", "105"); v {
	case "103":
		return 103, nil
	case "104":
		return 104, nil
	case "105":
		return 105, nil
	default:
		return 0, &modkit.Error{Kind: modkit.KindInvalidParameter, Format: "bsa", Detail: "version must be 103, 104, or 105"}
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
