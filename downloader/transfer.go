package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"hostfetch/hoster"
	"hostfetch/internal"
	"hostfetch/utils"
)

// Sentinel transfer failures the ladder branches on. They never leave this
// package; callers outside the ladder see taxonomy errors only.
var (
	errServiceUnavailable  = errors.New("final link returned 503")
	errRangeNotSatisfiable = errors.New("final link rejected range request")
)

// Transfer performs the final byte transfer of a resolved link: a single
// sequential HTTP stream with Range resume, cookie replay when the module
// requires it, progress display, and bandwidth limiting. Data lands in a
// .part file renamed into place on completion.
type Transfer struct {
	client  *utils.HTTPClient
	fileOps *utils.FileOperations
	limiter internal.RateLimiter
	quiet   bool
}

// NewTransfer builds a transfer executor. limiter may be nil for unlimited
// bandwidth.
func NewTransfer(client *utils.HTTPClient, limiter internal.RateLimiter, quiet bool) *Transfer {
	return &Transfer{
		client:  client,
		fileOps: utils.NewFileOperations(),
		limiter: limiter,
		quiet:   quiet,
	}
}

// Fetch streams the payload's resolved URL to disk, resuming an existing
// .part file when the module supports it.
func (t *Transfer) Fetch(ctx context.Context, caps hoster.Capabilities, sess *hoster.Session, payload *internal.FilePayload, outputDir string) (string, error) {
	outputPath := t.outputPath(payload, outputDir)
	partPath := outputPath + ".part"

	var offset int64
	if caps.Resume {
		hasPart, size, err := t.fileOps.DetectPartialDownload(outputPath)
		if err != nil {
			return "", internal.WrapHosterError(internal.ErrSystem,
				"cannot inspect partial download", err)
		}
		if hasPart {
			if verr := t.fileOps.ValidatePartialFile(partPath, 0); verr != nil {
				internal.LogWarn("Partial file unusable, restarting from zero: %v", verr)
			} else {
				internal.LogInfo("Resuming partial download at %d bytes", size)
				offset = size
			}
		}
	}

	return t.stream(ctx, caps, sess, payload, outputPath, partPath, offset)
}

// FetchFresh discards any partial state and transfers from scratch. Used
// when the server rejects a resume range on a module without resume support.
func (t *Transfer) FetchFresh(ctx context.Context, caps hoster.Capabilities, sess *hoster.Session, payload *internal.FilePayload, outputDir string) (string, error) {
	outputPath := t.outputPath(payload, outputDir)
	partPath := outputPath + ".part"
	if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot discard partial download", err)
	}
	return t.stream(ctx, caps, sess, payload, outputPath, partPath, 0)
}

// FinalizeComplete promotes an existing .part file to the final name. Used
// when a 416 on a resumable module means the file was already fully
// transferred.
func (t *Transfer) FinalizeComplete(payload *internal.FilePayload, outputDir string) (string, error) {
	outputPath := t.outputPath(payload, outputDir)
	partPath := outputPath + ".part"

	if _, err := os.Stat(partPath); err != nil {
		if os.IsNotExist(err) {
			// Nothing partial on disk; the final file may already exist.
			if t.fileOps.FileExists(outputPath) {
				return outputPath, nil
			}
		}
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot finalize completed download", err)
	}
	if err := t.fileOps.AtomicRename(partPath, outputPath); err != nil {
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot rename completed download", err)
	}
	return outputPath, nil
}

func (t *Transfer) stream(ctx context.Context, caps hoster.Capabilities, sess *hoster.Session, payload *internal.FilePayload, outputPath, partPath string, offset int64) (string, error) {
	if err := t.fileOps.EnsureDir(outputPath); err != nil {
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot create output directory", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.ResolvedURL, nil)
	if err != nil {
		return "", internal.WrapHosterError(internal.ErrFatal, "invalid final URL", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	if caps.FinalLinkNeedsCookie {
		cookies := sess.Cookies().CookiesFor(utils.HostOf(payload.ResolvedURL))
		if len(cookies) > 0 {
			req.Header.Set("Cookie", utils.CookieHeader(cookies))
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", internal.WrapHosterError(internal.ErrNetwork, "transfer request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if offset > 0 {
			// Server ignored the range; start over.
			internal.LogDebug("Server ignored resume range, restarting from zero")
			offset = 0
		}
	case http.StatusPartialContent:
		// Resuming as requested
	case http.StatusServiceUnavailable:
		return "", errServiceUnavailable
	case http.StatusRequestedRangeNotSatisfiable:
		return "", errRangeNotSatisfiable
	case http.StatusNotFound, http.StatusGone:
		return "", internal.NewHosterError(internal.ErrLinkDead, "final link no longer exists")
	default:
		return "", internal.NewHosterError(internal.ErrNetwork,
			fmt.Sprintf("transfer returned status %d", resp.StatusCode))
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(partPath, flags, 0644)
	if err != nil {
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot open partial download file", err)
	}

	progress := utils.NewProgressTracker(total, offset, t.quiet)
	progress.SetFilename(outputPath)

	written, copyErr := t.copyBody(ctx, file, resp.Body, offset, progress)
	closeErr := file.Close()
	progress.Finish()

	if copyErr != nil {
		return "", copyErr
	}
	if closeErr != nil {
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot flush partial download file", closeErr)
	}
	if total >= 0 && written < total {
		return "", internal.NewHosterError(internal.ErrNetwork,
			fmt.Sprintf("transfer truncated at %d of %d bytes", written, total))
	}

	if err := t.fileOps.AtomicRename(partPath, outputPath); err != nil {
		return "", internal.WrapHosterError(internal.ErrSystem,
			"cannot rename completed download", err)
	}
	if size, serr := t.fileOps.GetFileSize(outputPath); serr == nil {
		internal.LogInfo("Saved %s (%d bytes)", outputPath, size)
	} else {
		internal.LogInfo("Saved %s", outputPath)
	}
	return outputPath, nil
}

// copyBody streams the response body into the file through the bandwidth
// limiter, updating progress as it goes. Returns the absolute file position
// reached.
func (t *Transfer) copyBody(ctx context.Context, dst io.Writer, src io.Reader, offset int64, progress *utils.ProgressTracker) (int64, error) {
	buf := make([]byte, 64*1024)
	position := offset

	for {
		if err := ctx.Err(); err != nil {
			return position, internal.WrapHosterError(internal.ErrSystem,
				"transfer interrupted", err)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if t.limiter != nil {
				if err := t.limiter.Wait(ctx, n); err != nil {
					return position, internal.WrapHosterError(internal.ErrSystem,
						"transfer interrupted", err)
				}
			}
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return position, internal.WrapHosterError(internal.ErrSystem,
					"cannot write download data", writeErr)
			}
			position += int64(n)
			progress.Update(position)
		}
		if readErr == io.EOF {
			return position, nil
		}
		if readErr != nil {
			return position, internal.WrapHosterError(internal.ErrNetwork,
				"connection lost during transfer", readErr)
		}
	}
}

// outputPath places the sanitized filename in the output directory, stepping
// around any finished earlier download with the same name. The chosen name
// stays stable across one item's recovery passes because the final file only
// appears at the very end of a successful transfer.
func (t *Transfer) outputPath(payload *internal.FilePayload, outputDir string) string {
	name := utils.SanitizeFilename(payload.Filename)
	if outputDir == "" {
		outputDir = "."
	}
	return utils.UniqueOutputPath(filepath.Join(outputDir, name))
}
