// Package modkit is a multi-format archive toolkit: a single engine that
// reads and writes file archives across the container formats used by
// Bethesda's Creation Engine games (BSA, BA2), id Software's PAK, Ren'Py's
// RPA, Valve's VPK, and plain ZIP.
//
// The core abstraction is small: an [ArchiveReader] lists [Entry] values
// and streams their payload; an [ArchiveWriter] takes an ordered list of
// [InputFile] values and a destination path and produces an archive.
// Format-specific packages (bsa, bsamw, ba2, pak, rpa, vpk, zipfmt)
// implement these two interfaces; [registry] dispatches between them by
// name or by sniffing a file's leading bytes.
package modkit

import "io"

// Kind of a logical entry within an archive.
type EntryKind int

const (
	KindRegularFile EntryKind = iota
	KindDirectory
)

// Entry is the unit exposed by an [ArchiveReader]: one logical file or
// directory. Size is meaningful only for regular files.
type Entry struct {
	Name string // forward-slash path, normal components only
	Kind EntryKind
	Size int64 // uncompressed byte count; 0 for directories
}

func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// PayloadStream is what [ArchiveReader.Open] returns: a read-only stream
// of exactly Entry.Size decompressed bytes. Closing it releases the
// reader's single cursor so another Open call can proceed.
type PayloadStream interface {
	io.ReadCloser
}

// ArchiveReader is the capability every format reader satisfies (spec C8).
// Entry ordering is stable for the reader's lifetime. Opening a new
// payload stream invalidates any stream returned by a previous Open call
// on the same reader (single-cursor invariant, spec §5) — callers must
// close a stream before opening another.
type ArchiveReader interface {
	// Count returns the number of entries.
	Count() int
	// Get returns the entry at index i. 0 <= i < Count() always succeeds.
	Get(i int) Entry
	// Open streams the decompressed payload of entry i. Returns
	// *Error{Kind: KindNotARegularFile} if entry i is a directory.
	Open(i int) (PayloadStream, error)
	// Close releases the underlying byte source.
	Close() error
}

// ArchiveWriter is the one-shot capability every format writer satisfies
// (spec C6/C8): consume an input list and an output path, produce a file.
type ArchiveWriter interface {
	Write(files []InputFile, outputPath string, options map[string]string) error
}

// ReaderOptions are recognized by every format reader (spec §6).
type ReaderOptions struct {
	// Strict promotes hash/padding/format mismatches from tolerated
	// warnings into hard errors.
	Strict bool
}
