// Package inputlist builds the ordered, deterministic list of files a
// writer packs into an archive (spec C4): walk one or more host
// directories, apply glob exclusions, and produce a sorted, deduplicated
// list of modkit.InputFile tuples.
package inputlist

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/modkit/modkit"
)

// Builder accumulates directories/files and exclusion globs, then
// produces a sorted, deduplicated modkit.InputFile list. The zero value
// is ready to use.
type Builder struct {
	files    map[string]modkit.InputFile // keyed by logical (Dst) path
	excludes []string
}

// AddDir walks hostRoot and adds every regular file and directory found,
// with the logical path being the host path relative to hostRoot
// (forward-slash separated). A later AddDir/AddFile call for the same
// logical path overwrites an earlier one.
func (b *Builder) AddDir(hostRoot string) error {
	if b.files == nil {
		b.files = make(map[string]modkit.InputFile)
	}

	hostRoot, err := filepath.Abs(hostRoot)
	if err != nil {
		return fmt.Errorf("%w", &modkit.Error{Kind: modkit.KindOpeningInputFile, Err: err})
	}

	return filepath.WalkDir(hostRoot, func(hostPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: hostPath, Err: err}
		}

		rel, err := filepath.Rel(hostRoot, hostPath)
		if err != nil {
			return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: hostPath, Err: err}
		}
		if rel == "." {
			return nil // the root itself is skipped
		}
		dst := filepath.ToSlash(rel)

		switch {
		case d.Type().IsRegular():
			b.files[dst] = modkit.InputFile{Src: hostPath, Dst: dst, Kind: modkit.InputRegularFile}
		case d.IsDir():
			b.files[dst] = modkit.InputFile{Src: hostPath, Dst: dst, Kind: modkit.InputDirectory}
		default:
			return &modkit.Error{Kind: modkit.KindReadingInputFile, Detail: fmt.Sprintf("%s: not a regular file or directory", hostPath)}
		}
		return nil
	})
}

// AddFile adds a single host file at logical path dst.
func (b *Builder) AddFile(hostPath, dst string) error {
	if b.files == nil {
		b.files = make(map[string]modkit.InputFile)
	}
	info, err := os.Lstat(hostPath)
	if err != nil {
		return &modkit.Error{Kind: modkit.KindOpeningInputFile, Detail: hostPath, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &modkit.Error{Kind: modkit.KindReadingInputFile, Detail: fmt.Sprintf("%s: not a regular file", hostPath)}
	}
	b.files[dst] = modkit.InputFile{Src: hostPath, Dst: dst, Kind: modkit.InputRegularFile}
	return nil
}

// Exclude removes, at Build time, any entry whose logical path matches
// the doublestar glob pattern.
func (b *Builder) Exclude(pattern string) {
	b.excludes = append(b.excludes, pattern)
}

// Build returns the final list, sorted by logical path, with excluded
// entries removed.
func (b *Builder) Build() ([]modkit.InputFile, error) {
	out := make([]modkit.InputFile, 0, len(b.files))
outer:
	for dst, f := range b.files {
		for _, pat := range b.excludes {
			ok, err := doublestar.Match(pat, dst)
			if err != nil {
				return nil, &modkit.Error{Kind: modkit.KindInvalidParameter, Detail: pat, Err: err}
			}
			if ok {
				continue outer
			}
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dst < out[j].Dst })
	return out, nil
}
