package hoster

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hostfetch/internal"
	"hostfetch/utils"
)

// Direct treats any http(s) URL as a plain file link with no page scraping.
// It is not registered in the module registry; the engine reaches for it
// explicitly when fallback mode is enabled, so unknown hosting sites still
// surface NO_MODULE by default.
type Direct struct{}

// NewDirect returns the direct-link fallback module.
func NewDirect() *Direct {
	return &Direct{}
}

// Name returns the module identifier.
func (d *Direct) Name() string { return "direct" }

// CanHandle accepts any well-formed http(s) URL.
func (d *Direct) CanHandle(rawURL string) bool {
	return utils.ValidateItemURL(rawURL) == nil
}

// Capabilities reports plain-HTTP traits: resumable, no cookie coupling.
func (d *Direct) Capabilities() Capabilities {
	return Capabilities{Resume: true}
}

// ResolveDownload passes the URL through unchanged, deriving the filename
// from the URL path.
func (d *Direct) ResolveDownload(ctx context.Context, sess *Session, rawURL string) (*internal.FilePayload, error) {
	if err := utils.ValidateItemURL(rawURL); err != nil {
		return nil, err
	}

	filename := utils.FilenameFromURL(rawURL)
	if filename == "" {
		filename = "download"
	}
	return &internal.FilePayload{
		ResolvedURL: rawURL,
		Filename:    filename,
	}, nil
}

// Probe issues a HEAD request and maps the status line onto link health.
func (d *Direct) Probe(ctx context.Context, sess *Session, rawURL string, want internal.ProbeCaps) (*internal.ProbeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, internal.WrapHosterError(internal.ErrBadCommandLine, "invalid URL", err)
	}

	resp, err := sess.Client.Do(req)
	if err != nil {
		return nil, internal.WrapHosterError(internal.ErrNetwork, "probe request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		// Alive
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, internal.NewHosterError(internal.ErrLinkDead, "remote file not found")
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, internal.NewHosterError(internal.ErrLinkTempUnavailable, "remote host temporarily unavailable")
	case resp.StatusCode >= 400:
		return nil, internal.NewHosterError(internal.ErrNetwork,
			fmt.Sprintf("probe returned status %d", resp.StatusCode))
	}

	info := &internal.ProbeInfo{}
	if want.Has(internal.ProbeFilename) {
		if name := filenameFromDisposition(resp.Header.Get("Content-Disposition")); name != "" {
			info.Filename = name
			info.Confirmed |= internal.ProbeFilename
		} else if name := utils.FilenameFromURL(rawURL); name != "" {
			info.Filename = name
			info.Confirmed |= internal.ProbeFilename
		}
	}
	if want.Has(internal.ProbeSize) {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size >= 0 {
				info.Size = size
				info.Confirmed |= internal.ProbeSize
			}
		}
	}
	// Hash is never available over plain HTTP headers; the caller sees it
	// absent from Confirmed and treats it as unsupported.

	return info, nil
}

// filenameFromDisposition extracts a filename from a Content-Disposition
// header. Minimal parsing; hosting sites rarely use the RFC 5987 form.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "filename="); ok {
			value = strings.Trim(value, `"`)
			if value != "" {
				return utils.SanitizeFilename(value)
			}
		}
	}
	return ""
}
