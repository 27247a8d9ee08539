// Package formats registers every supported container format with the
// registry by side effect. Import it (usually blank) from a binary or
// test that needs registry.List/MakeReader/MakeWriter to see the full
// set rather than whichever individual format packages it happens to
// import directly.
package formats

import (
	_ "github.com/modkit/modkit/ba2"
	_ "github.com/modkit/modkit/bsa"
	_ "github.com/modkit/modkit/bsamw"
	_ "github.com/modkit/modkit/pak"
	_ "github.com/modkit/modkit/rpa"
	_ "github.com/modkit/modkit/vpk"
	_ "github.com/modkit/modkit/zipfmt"
)
