// Package vpk implements a read-only view of Valve's VPK container (spec
// C5.6): a directory file listing every entry (CRC, preload bytes, and
// either an inline offset or a reference into a numbered companion
// archive), with no compression. There is no VPK writer in scope — VPK
// archives are produced by Valve's own tools, not hand-assembled.
package vpk

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/byteio"
	"github.com/modkit/modkit/internal/sectionreader"
	"github.com/modkit/modkit/registry"
)

var signature = [4]byte{0x34, 0x12, 0xAA, 0x55}

const (
	dirArchiveIndex = 0x7FFF
	terminatorWant  = 0xFFFF
)

func init() {
	registry.Register(registry.Format{
		Name:        "vpk",
		Description: "Valve VPK directory archive",
		Extensions:  []string{"vpk"},
		Signatures:  [][]byte{signature[:]},
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
	})
}

type fileEntry struct {
	name         string
	archiveIndex uint16
	entryOffset  uint32
	entryLength  uint32
	preload      []byte
}

// Reader reads a VPK directory archive, opening companion numbered
// archives lazily as their entries are streamed.
type Reader struct {
	dir          *os.File
	dataOffset   int64 // position right after the directory tree, in dir
	archiveStem  string
	archiveDir   string
	entries      []fileEntry
	openArchives map[uint16]*os.File
}

// Open reads path's header and directory tree.
func Open(path string, opts modkit.ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	r, err := open(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File, path string) (*Reader, error) {
	br := bufio.NewReader(f)
	bio := byteio.NewReader(br)

	magic, err := bio.Bytes(4)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "vpk", Err: err}
	}
	if string(magic) != string(signature[:]) {
		return nil, &modkit.Error{Kind: modkit.KindInvalidSignature, Format: "vpk", Detail: fmt.Sprintf("% x", magic)}
	}
	version, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "vpk", Err: err}
	}
	if version != 1 && version != 2 {
		return nil, &modkit.Error{Kind: modkit.KindUnsupportedVersion, Format: "vpk", Detail: fmt.Sprintf("%d", version)}
	}
	treeSize, err := bio.U32(false)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "vpk", Err: err}
	}
	headerSize := int64(12)
	if version == 2 {
		for i := 0; i < 4; i++ { // file-data, archive-md5, other-md5, signature section sizes
			if _, err := bio.U32(false); err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingHeader, Format: "vpk", Err: err}
			}
		}
		headerSize = 28
	}

	var entries []fileEntry
	for {
		ext, err := bio.NullTerminated(true)
		if err != nil {
			return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
		}
		if ext == "" {
			break
		}
		for {
			dir, err := bio.NullTerminated(true)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
			}
			if dir == "" {
				break
			}
			for {
				base, err := bio.NullTerminated(true)
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				if base == "" {
					break
				}

				if _, err := bio.U32(false); err != nil { // CRC32, not verified on read
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				preloadCount, err := bio.U16(false)
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				archiveIndex, err := bio.U16(false)
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				entryOffset, err := bio.U32(false)
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				entryLength, err := bio.U32(false)
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				terminator, err := bio.U16(false)
				if err != nil {
					return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
				}
				if terminator != terminatorWant {
					return nil, &modkit.Error{Kind: modkit.KindInvalidHeader, Format: "vpk", Detail: "entry terminator mismatch"}
				}
				var preload []byte
				if preloadCount > 0 {
					preload, err = bio.Bytes(int(preloadCount))
					if err != nil {
						return nil, &modkit.Error{Kind: modkit.KindReadingFileIndex, Format: "vpk", Err: err}
					}
				}

				name := joinEntryPath(dir, base, ext)
				entries = append(entries, fileEntry{
					name:         name,
					archiveIndex: archiveIndex,
					entryOffset:  entryOffset,
					entryLength:  entryLength,
					preload:      preload,
				})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	base := filepath.Base(absPath)
	stem := strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "_dir")

	return &Reader{
		dir:          f,
		dataOffset:   headerSize + int64(treeSize),
		archiveStem:  stem,
		archiveDir:   filepath.Dir(absPath),
		entries:      entries,
		openArchives: map[uint16]*os.File{},
	}, nil
}

func joinEntryPath(dir, base, ext string) string {
	var b strings.Builder
	if dir != " " && dir != "" {
		b.WriteString(dir)
		b.WriteByte('/')
	}
	if base != " " {
		b.WriteString(base)
	}
	if ext != " " && ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	e := r.entries[i]
	return modkit.Entry{Name: e.name, Kind: modkit.KindRegularFile, Size: int64(len(e.preload)) + int64(e.entryLength)}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	e := r.entries[i]
	if e.entryLength == 0 {
		return sectionreader.NopCloser(bytes.NewReader(e.preload)), nil
	}

	var body io.Reader
	if e.archiveIndex == dirArchiveIndex {
		body = sectionreader.New(r.dir, r.dataOffset+int64(e.entryOffset), int64(e.entryLength)).Stream()
	} else {
		af, err := r.archiveFile(e.archiveIndex)
		if err != nil {
			return nil, err
		}
		body = sectionreader.New(af, int64(e.entryOffset), int64(e.entryLength)).Stream()
	}

	if len(e.preload) == 0 {
		return sectionreader.NopCloser(body), nil
	}
	return sectionreader.NopCloser(io.MultiReader(bytes.NewReader(e.preload), body)), nil
}

func (r *Reader) archiveFile(index uint16) (*os.File, error) {
	if f, ok := r.openArchives[index]; ok {
		return f, nil
	}
	name := fmt.Sprintf("%s_%03d.vpk", r.archiveStem, index)
	path := filepath.Join(r.archiveDir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: path, Err: err}
	}
	r.openArchives[index] = f
	return f, nil
}

func (r *Reader) Close() error {
	var firstErr error
	for _, f := range r.openArchives {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.dir.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

