package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"hostfetch/internal"
	"hostfetch/utils"
)

// Engine dispatches captcha challenges to the configured solving method.
// The method is decided once at construction from the configuration; it is
// never re-evaluated per call.
type Engine struct {
	program  *programSolver
	provider Provider
	client   *utils.HTTPClient
	disabled bool

	balanceOnce sync.Once
	balanceErr  error
}

// NewEngine builds an engine from the configuration. Selection order: the
// external program runs first when configured (falling through only when it
// declines a challenge); behind it sits either the forced method or the
// first provider with credentials, with the interactive prompt as the final
// fallback.
func NewEngine(cfg *internal.Config, client *utils.HTTPClient) (*Engine, error) {
	e := &Engine{client: client}

	if cfg.CaptchaProgram != "" {
		e.program = newProgramSolver(cfg.CaptchaProgram)
	}

	switch cfg.CaptchaMethod {
	case internal.CaptchaMethodNone:
		e.disabled = true
		return e, nil
	case "antigate":
		if cfg.AntigateKey == "" {
			return nil, internal.NewHosterError(internal.ErrBadCommandLine,
				"captcha method antigate requires an API key")
		}
		e.provider = NewAntigateProvider(cfg.AntigateKey, client)
	case "deathbycaptcha":
		if cfg.DeathByCaptchaUser == "" || cfg.DeathByCaptchaPass == "" {
			return nil, internal.NewHosterError(internal.ErrBadCommandLine,
				"captcha method deathbycaptcha requires username and password")
		}
		e.provider = NewDeathByCaptchaProvider(cfg.DeathByCaptchaUser, cfg.DeathByCaptchaPass, client)
	case "9kw":
		if cfg.NineKWKey == "" {
			return nil, internal.NewHosterError(internal.ErrBadCommandLine,
				"captcha method 9kw requires an API key")
		}
		e.provider = NewNineKWProvider(cfg.NineKWKey, client)
	case internal.CaptchaMethodPrompt:
		e.provider = NewPromptProvider()
	case "":
		// Auto-detect: first credentialed paid provider wins, otherwise
		// fall back to asking the user.
		switch {
		case cfg.AntigateKey != "":
			e.provider = NewAntigateProvider(cfg.AntigateKey, client)
		case cfg.DeathByCaptchaUser != "" && cfg.DeathByCaptchaPass != "":
			e.provider = NewDeathByCaptchaProvider(cfg.DeathByCaptchaUser, cfg.DeathByCaptchaPass, client)
		case cfg.NineKWKey != "":
			e.provider = NewNineKWProvider(cfg.NineKWKey, client)
		default:
			e.provider = NewPromptProvider()
		}
	default:
		return nil, internal.NewHosterError(internal.ErrBadCommandLine,
			fmt.Sprintf("unknown captcha method %q", cfg.CaptchaMethod))
	}

	return e, nil
}

// MethodName returns the name of the selected provider, or "none".
func (e *Engine) MethodName() string {
	if e.disabled {
		return internal.CaptchaMethodNone
	}
	return e.provider.Name()
}

// Solve resolves a challenge into its answer word and a ticket for later
// acknowledgement.
func (e *Engine) Solve(ctx context.Context, ch *Challenge) (string, Ticket, error) {
	if e.disabled {
		return "", ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
			"captcha solving is disabled")
	}

	image, err := e.challengeImage(ctx, ch)
	if err != nil {
		return "", ZeroTicket, err
	}

	if e.program != nil {
		word, err := e.program.solve(ctx, ch, image)
		if err == nil {
			return word, ZeroTicket, nil
		}
		if !errors.Is(err, errProgramDecline) {
			return "", ZeroTicket, err
		}
		// Program declined; fall through to the configured provider.
	}

	if err := e.checkBalance(ctx); err != nil {
		return "", ZeroTicket, err
	}

	solveCh := *ch
	solveCh.Image = image
	return e.provider.Solve(ctx, &solveCh)
}

// Ack reports a successful answer. Best effort: failures are logged, never
// propagated, and the zero ticket is a no-op.
func (e *Engine) Ack(ctx context.Context, t Ticket) {
	if t.IsZero() || e.disabled {
		return
	}
	if t.ProviderTag != e.provider.Tag() {
		internal.LogWarn("Dropping ack for ticket %s: provider tag mismatch", t)
		return
	}
	if err := e.provider.Ack(ctx, t); err != nil {
		internal.LogDebug("Captcha ack failed for ticket %s: %v", t, err)
	}
}

// Nack reports a rejected answer. Same best-effort semantics as Ack.
func (e *Engine) Nack(ctx context.Context, t Ticket) {
	if t.IsZero() || e.disabled {
		return
	}
	if t.ProviderTag != e.provider.Tag() {
		internal.LogWarn("Dropping nack for ticket %s: provider tag mismatch", t)
		return
	}
	if err := e.provider.Nack(ctx, t); err != nil {
		internal.LogDebug("Captcha nack failed for ticket %s: %v", t, err)
	}
}

// checkBalance runs the paid provider's credit check once before first use.
// An empty balance is a configuration problem, not a captcha failure.
func (e *Engine) checkBalance(ctx context.Context) error {
	checker, ok := e.provider.(BalanceChecker)
	if !ok {
		return nil
	}

	e.balanceOnce.Do(func() {
		balance, err := checker.Balance(ctx)
		if err != nil {
			e.balanceErr = err
			return
		}
		if balance <= 0 {
			e.balanceErr = internal.NewHosterError(internal.ErrFatal,
				fmt.Sprintf("captcha service %s has no remaining credit", e.provider.Name())).
				WithSuggestion("Top up the account or switch captcha method")
			return
		}
		internal.LogDebug("Captcha provider %s balance: %.2f", e.provider.Name(), balance)
	})
	return e.balanceErr
}

// challengeImage returns the image bytes, fetching the URL form on demand.
func (e *Engine) challengeImage(ctx context.Context, ch *Challenge) ([]byte, error) {
	if len(ch.Image) > 0 {
		return ch.Image, nil
	}
	if ch.ImageURL == "" {
		return nil, internal.NewHosterError(internal.ErrFatal,
			"captcha challenge carries neither image bytes nor an image URL")
	}

	resp, err := e.client.GetWithContext(ctx, ch.ImageURL, nil)
	if err != nil {
		return nil, internal.WrapHosterError(internal.ErrNetwork,
			"cannot fetch captcha image", err)
	}
	defer resp.Body.Close()

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.WrapHosterError(internal.ErrNetwork,
			"cannot read captcha image", err)
	}
	if len(image) == 0 {
		return nil, internal.NewHosterError(internal.ErrCaptcha,
			"captcha image is empty")
	}
	return image, nil
}
