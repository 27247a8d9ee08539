// Package zipfmt wraps the standard library's archive/zip with
// klauspost/compress's flate implementation registered as the DEFLATE
// method (spec C5.7/C6.5), so store and DEFLATE are both supported
// without pulling in a second ZIP reader/writer entirely.
package zipfmt

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	kflate "github.com/klauspost/compress/flate"

	"github.com/modkit/modkit"
	"github.com/modkit/modkit/internal/pathnorm"
	"github.com/modkit/modkit/registry"
)

var registerCodecsOnce sync.Once

func registerCodecs() {
	registerCodecsOnce.Do(func() {
		zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
			return kflate.NewReader(r)
		})
		zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return kflate.NewWriter(w, kflate.DefaultCompression)
		})
	})
}

var signatures = [][]byte{
	{'P', 'K', 0x03, 0x04}, // local file header
	{'P', 'K', 0x05, 0x06}, // empty archive (end of central directory)
	{'P', 'K', 0x07, 0x08}, // spanned archive
}

func init() {
	registerCodecs()
	registry.Register(registry.Format{
		Name:        "zip",
		Description: "ZIP archive (store and DEFLATE)",
		Extensions:  []string{"zip"},
		Signatures:  signatures,
		NewReader:   func(path string, opts modkit.ReaderOptions) (modkit.ArchiveReader, error) { return Open(path, opts) },
		NewWriter:   func() modkit.ArchiveWriter { return Writer{} },
	})
}

// Reader reads a ZIP archive.
type Reader struct {
	zr      *zip.ReadCloser
	entries []*zip.File
}

// Open reads path's central directory.
func Open(filePath string, opts modkit.ReaderOptions) (*Reader, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: filePath, Err: err}
	}
	entries := append([]*zip.File(nil), zr.File...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return &Reader{zr: zr, entries: entries}, nil
}

func (r *Reader) Count() int { return len(r.entries) }

func (r *Reader) Get(i int) modkit.Entry {
	f := r.entries[i]
	if strings.HasSuffix(f.Name, "/") {
		return modkit.Entry{Name: strings.TrimSuffix(f.Name, "/"), Kind: modkit.KindDirectory}
	}
	return modkit.Entry{Name: f.Name, Kind: modkit.KindRegularFile, Size: int64(f.UncompressedSize64)}
}

func (r *Reader) Open(i int) (modkit.PayloadStream, error) {
	f := r.entries[i]
	if strings.HasSuffix(f.Name, "/") {
		return nil, &modkit.Error{Kind: modkit.KindNotARegularFile, Format: "zip", Detail: f.Name}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &modkit.Error{Kind: modkit.KindReadingInputFile, Format: "zip", Detail: f.Name, Err: err}
	}
	return rc, nil
}

func (r *Reader) Close() error { return r.zr.Close() }

// Writer produces a ZIP archive using DEFLATE for regular files and
// explicit entries for directories.
type Writer struct{}

func (Writer) Write(files []modkit.InputFile, outputPath string, options map[string]string) error {
	registerCodecs()

	out, err := os.Create(outputPath)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindCreatingOutputFile, Detail: outputPath, Err: err}
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	type item struct {
		modkit.InputFile
		name string
	}
	items := make([]item, 0, len(files))
	for _, f := range files {
		if !pathnorm.Normal(f.Dst, '/') {
			return &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: f.Dst}
		}
		name := f.Dst
		if f.Kind == modkit.InputDirectory {
			name = path.Clean(name) + "/"
		}
		items = append(items, item{f, name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].name < items[j].name })

	for _, it := range items {
		hdr := &zip.FileHeader{Name: it.name}
		if it.Kind == modkit.InputDirectory {
			hdr.Method = zip.Store
			if _, err := zw.CreateHeader(hdr); err != nil {
				return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "zip", Detail: it.name, Err: err}
			}
			continue
		}
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "zip", Detail: it.name, Err: err}
		}
		in, err := os.Open(it.Src)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: it.Src, Err: err}
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			return &modkit.Error{Kind: modkit.KindWritingFileData, Detail: it.Src, Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return &modkit.Error{Kind: modkit.KindWritingFileData, Format: "zip", Err: err}
	}
	return nil
}
