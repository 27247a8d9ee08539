package modkit

// InputFileKind distinguishes what an [InputFile] points at on the host.
type InputFileKind int

const (
	InputRegularFile InputFileKind = iota
	InputDirectory
)

// InputFile is one entry in the ordered list a writer consumes (spec §3).
// Src is a host filesystem path; Dst is the logical archive path the
// written entry will have, forward-slash separated, normal components
// only.
type InputFile struct {
	Src  string
	Dst  string
	Kind InputFileKind
}
