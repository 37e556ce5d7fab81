package internal

// FilePayload is the structured result of a successful download resolution:
// the direct URL to transfer from and the filename the site reported. Site
// modules return it instead of writing URL/filename lines to an output stream.
type FilePayload struct {
	ResolvedURL string `json:"resolved_url"`
	Filename    string `json:"filename"`
}

// ListEntry is one remote folder member returned by a list operation.
type ListEntry struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ProbeCaps is the set of metadata fields a probe caller requests; the module
// confirms which it could actually fill in ProbeInfo.Confirmed.
type ProbeCaps uint8

const (
	ProbeFilename ProbeCaps = 1 << iota
	ProbeSize
	ProbeHash
)

// Has reports whether all bits of want are present.
func (c ProbeCaps) Has(want ProbeCaps) bool {
	return c&want == want
}

// ProbeInfo is link metadata reported by a probe operation. Confirmed is the
// subset of the requested capabilities the module was able to satisfy.
type ProbeInfo struct {
	Filename  string    `json:"filename,omitempty"`
	Size      int64     `json:"size,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Confirmed ProbeCaps `json:"-"`
}
