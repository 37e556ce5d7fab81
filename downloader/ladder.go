package downloader

import (
	"context"
	"errors"
	"fmt"

	"hostfetch/hoster"
	"hostfetch/internal"
)

// defaultRetryWait is the fallback sleep before retrying a temporarily
// unavailable link when the site gives no hint of its own.
const defaultRetryWait = 60

// safetyWait503 is the one-time cool-down after the byte transfer hits a 503
// despite a successful resolution.
const safetyWait503 = 120

// Ladder drives one item through resolve-retry-transfer. All failure modes
// funnel into the error taxonomy; the ladder only ever branches on the
// taxonomy kind, never on why a module failed internally.
type Ladder struct {
	cfg      *internal.Config
	budget   *WaitBudget
	transfer *Transfer
}

// NewLadder builds a ladder around a fresh wait budget. One ladder serves
// one item; budgets do not carry over between items.
func NewLadder(cfg *internal.Config, transfer *Transfer) *Ladder {
	return &Ladder{
		cfg:      cfg,
		budget:   NewWaitBudget(cfg.Timeout),
		transfer: transfer,
	}
}

// Budget exposes the wait budget, shared with the transfer step.
func (l *Ladder) Budget() *WaitBudget {
	return l.budget
}

// Run invokes the module's resolve operation inside the bounded retry loop
// and returns the validated payload.
//
// Retry semantics: LINK_TEMP_UNAVAILABLE sleeps (hint or default) and loops;
// CAPTCHA loops immediately unless captcha solving is disabled; every other
// failure aborts with its own kind. MaxRetries zero means a single attempt
// returning the first kind verbatim; a positive cap N allows N+1 attempts
// before MAX_TRIES_REACHED; a negative cap means unlimited.
func (l *Ladder) Run(ctx context.Context, module hoster.Downloader, sess *hoster.Session, rawURL string) (*internal.FilePayload, error) {
	attempt := 0
	for {
		payload, err := module.ResolveDownload(ctx, sess, rawURL)
		if err == nil {
			if verr := validatePayload(payload); verr != nil {
				return nil, verr
			}
			return payload, nil
		}

		kind := internal.KindOf(err)
		switch kind {
		case internal.ErrLinkTempUnavailable:
			if l.cfg.NoExtraWait {
				internal.LogDebug("Not retrying temporarily unavailable link (no-extra-wait)")
				return nil, err
			}
		case internal.ErrCaptcha:
			if l.cfg.CaptchaDisabled() {
				return nil, err
			}
		default:
			return nil, err
		}

		attempt++
		if l.cfg.MaxRetries == 0 {
			return nil, err
		}
		if l.cfg.MaxRetries > 0 && attempt > l.cfg.MaxRetries {
			return nil, internal.NewHosterError(internal.ErrMaxTriesReached,
				fmt.Sprintf("retry limit reached after %d attempts", attempt))
		}

		if kind == internal.ErrLinkTempUnavailable {
			wait := internal.WaitHint(err)
			if wait <= 0 {
				wait = defaultRetryWait
				internal.LogInfo("Site gave no wait hint, using arbitrary %d second wait", wait)
			}
			if berr := l.budget.Consume(ctx, wait); berr != nil {
				return nil, berr
			}
		}

		internal.LogDebug("Retrying %s (attempt %d)", rawURL, attempt+1)
	}
}

// Download resolves the item and performs the byte transfer, handling the
// two post-resolution recovery paths: a 503 from the final URL triggers
// exactly one long safety wait plus a session refresh and re-resolution; a
// 416 means the file is already complete when the module supports resume,
// and a from-scratch restart when it does not.
func (l *Ladder) Download(ctx context.Context, module hoster.Downloader, sess *hoster.Session, rawURL, outputDir string) (string, error) {
	payload, err := l.Run(ctx, module, sess, rawURL)
	if err != nil {
		return "", err
	}

	caps := module.Capabilities()
	path, err := l.transfer.Fetch(ctx, caps, sess, payload, outputDir)
	if err == nil {
		return path, nil
	}

	switch {
	case errors.Is(err, errServiceUnavailable):
		internal.LogInfo("Final link returned 503, cooling down for %d seconds", safetyWait503)
		if berr := l.budget.Consume(ctx, safetyWait503); berr != nil {
			return "", berr
		}
		if rerr := sess.Refresh(); rerr != nil {
			return "", rerr
		}
		payload, err = l.Run(ctx, module, sess, rawURL)
		if err != nil {
			return "", err
		}
		path, err = l.transfer.Fetch(ctx, caps, sess, payload, outputDir)
		return path, mapTransferErr(err)

	case errors.Is(err, errRangeNotSatisfiable):
		if caps.Resume {
			internal.LogInfo("Server rejected resume range, file already complete")
			return l.transfer.FinalizeComplete(payload, outputDir)
		}
		internal.LogInfo("Server rejected range request, restarting transfer from scratch")
		path, err = l.transfer.FetchFresh(ctx, caps, sess, payload, outputDir)
		return path, mapTransferErr(err)

	default:
		return "", err
	}
}

// mapTransferErr converts the transfer sentinels into taxonomy errors. The
// ladder branches on the sentinels exactly once; a failure on the recovery
// pass itself must surface a classified error, not a bare sentinel.
func mapTransferErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errServiceUnavailable):
		return internal.NewHosterError(internal.ErrLinkTempUnavailable,
			"final link still unavailable after cool-down")
	case errors.Is(err, errRangeNotSatisfiable):
		return internal.NewHosterError(internal.ErrNetwork,
			"server rejected byte range on a fresh transfer")
	default:
		return err
	}
}

// validatePayload enforces the module output contract: a resolved URL must
// be present and must differ from the filename. A module that violates this
// has a bug, which is a hard failure rather than something to retry around.
func validatePayload(p *internal.FilePayload) error {
	if p == nil || p.ResolvedURL == "" {
		return internal.NewHosterError(internal.ErrFatal,
			"module returned no download URL (module bug)")
	}
	if p.ResolvedURL == p.Filename {
		return internal.NewHosterError(internal.ErrFatal,
			"module returned identical URL and filename (module bug)")
	}
	return nil
}
