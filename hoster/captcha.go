package hoster

import (
	"context"

	"hostfetch/captcha"
	"hostfetch/internal"
)

// CaptchaSolver is the solving surface a site module reaches through its
// session. The captcha engine satisfies it; the indirection keeps modules
// from caring how the engine was configured.
type CaptchaSolver interface {
	Solve(ctx context.Context, ch *captcha.Challenge) (string, captcha.Ticket, error)
	Ack(ctx context.Context, t captcha.Ticket)
	Nack(ctx context.Context, t captcha.Ticket)
}

// SolveCaptcha dispatches a challenge the module extracted from a page to
// the configured solver. A session without a solver attached fails with the
// captcha kind, which the retry ladder treats like any other solving failure.
func (s *Session) SolveCaptcha(ctx context.Context, ch *captcha.Challenge) (string, captcha.Ticket, error) {
	if s.Captcha == nil {
		return "", captcha.ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
			"no captcha solver attached to this session")
	}
	return s.Captcha.Solve(ctx, ch)
}

// AckCaptcha reports that the site accepted the answer. Best effort; a
// missing solver or zero ticket is a no-op.
func (s *Session) AckCaptcha(ctx context.Context, t captcha.Ticket) {
	if s.Captcha == nil {
		return
	}
	s.Captcha.Ack(ctx, t)
}

// NackCaptcha reports that the site rejected the answer. Same semantics as
// AckCaptcha.
func (s *Session) NackCaptcha(ctx context.Context, t captcha.Ticket) {
	if s.Captcha == nil {
		return
	}
	s.Captcha.Nack(ctx, t)
}
