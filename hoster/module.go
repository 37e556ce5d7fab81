// Package hoster defines the contract between the core engine and
// site-specific modules. A module advertises the operations it supports
// through optional capability interfaces; the engine discovers them with
// type assertions instead of string dispatch.
package hoster

import (
	"context"

	"hostfetch/internal"
)

// Capabilities describes static traits of a module's final links.
type Capabilities struct {
	// Resume reports whether interrupted transfers from this hoster can be
	// resumed with a Range request.
	Resume bool

	// FinalLinkNeedsCookie reports whether the final file URL only works
	// when the session cookies from resolution are replayed.
	FinalLinkNeedsCookie bool
}

// Module is the minimal contract every site module satisfies.
type Module interface {
	// Name returns the module's identifier, e.g. "mediafire".
	Name() string

	// CanHandle reports whether this module recognizes the given URL.
	CanHandle(rawURL string) bool

	// Capabilities returns the module's static traits.
	Capabilities() Capabilities
}

// Downloader resolves a hosting-page URL into a directly fetchable file URL.
type Downloader interface {
	Module

	// ResolveDownload turns a hosting-page URL into a final file payload.
	// Errors carry the taxonomy kind driving the retry ladder; transient
	// conditions may attach a wait hint via WithWait.
	ResolveDownload(ctx context.Context, sess *Session, rawURL string) (*internal.FilePayload, error)
}

// Prober checks whether a link is alive and collects metadata without
// transferring file content.
type Prober interface {
	Module

	Probe(ctx context.Context, sess *Session, rawURL string, want internal.ProbeCaps) (*internal.ProbeInfo, error)
}

// Lister expands a folder or collection URL into individual file entries.
type Lister interface {
	Module

	// List returns the entries under a folder URL. Recursion into
	// subfolders is the module's choice when recursive is set.
	List(ctx context.Context, sess *Session, rawURL string, recursive bool) ([]internal.ListEntry, error)
}

// Uploader sends a local file to the hosting site.
type Uploader interface {
	Module

	Upload(ctx context.Context, sess *Session, localPath, remoteName string) (string, error)
}

// Deleter removes a previously uploaded file.
type Deleter interface {
	Module

	Delete(ctx context.Context, sess *Session, rawURL string) error
}
