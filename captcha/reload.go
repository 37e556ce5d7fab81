package captcha

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"hostfetch/internal"
	"hostfetch/utils"
)

// maxChallengeReloads bounds the reload loop for interactive challenge
// widgets. 100 is arbitrary but safe; a widget that cannot produce a
// solvable challenge in that many rounds never will.
const maxChallengeReloads = 100

// ChallengeSource produces successive challenges under one widget session.
// Next returns the challenge plus the identifier the site needs alongside
// the answer when it is submitted.
type ChallengeSource interface {
	Next(ctx context.Context) (*Challenge, string, error)
}

// InteractiveAnswer is the result of a reload-loop solve: the answer word,
// the challenge identifier to submit with it, and the provider ticket for
// later ack/nack.
type InteractiveAnswer struct {
	Word        string
	ChallengeID string
	Ticket      Ticket
}

// SolveInteractive drives a challenge widget through the reload loop:
// request a challenge, solve its image, and reload for a fresh one whenever
// the solve comes back empty. Bounded at maxChallengeReloads rounds, after
// which the attempt fails with MAX_TRIES_REACHED.
func SolveInteractive(ctx context.Context, engine *Engine, source ChallengeSource) (*InteractiveAnswer, error) {
	for i := 0; i < maxChallengeReloads; i++ {
		ch, challengeID, err := source.Next(ctx)
		if err != nil {
			return nil, err
		}

		word, ticket, err := engine.Solve(ctx, ch)
		if err != nil {
			return nil, err
		}
		if word == "" {
			internal.LogDebug("Empty captcha answer, reloading challenge (round %d)", i+1)
			engine.Nack(ctx, ticket)
			continue
		}

		return &InteractiveAnswer{
			Word:        word,
			ChallengeID: challengeID,
			Ticket:      ticket,
		}, nil
	}

	return nil, internal.NewHosterError(internal.ErrMaxTriesReached,
		"challenge widget never produced a solvable captcha")
}

// VisualWidget is the distorted-text challenge flow: a public site key is
// exchanged for a challenge token, whose image is then fetched and solved.
// Reloading asks the widget endpoint for a fresh token under the same key.
type VisualWidget struct {
	SiteKey    string
	ModuleName string

	client  *utils.HTTPClient
	apiBase string
	token   string
}

// NewVisualWidget returns a source for the distorted-text widget.
func NewVisualWidget(siteKey, moduleName string, client *utils.HTTPClient) *VisualWidget {
	return &VisualWidget{
		SiteKey:    siteKey,
		ModuleName: moduleName,
		client:     client,
		apiBase:    "http://www.google.com/recaptcha/api",
	}
}

var visualChallengeRe = regexp.MustCompile(`challenge\s*:\s*'([^']+)'`)

// Next fetches a fresh challenge token and wraps its image.
func (w *VisualWidget) Next(ctx context.Context) (*Challenge, string, error) {
	var body string
	var err error
	if w.token == "" {
		body, err = w.client.GetString(ctx,
			fmt.Sprintf("%s/challenge?k=%s", w.apiBase, url.QueryEscape(w.SiteKey)))
	} else {
		// Reload keeps the session: the old token seeds the new one.
		body, err = w.client.GetString(ctx,
			fmt.Sprintf("%s/reload?c=%s&k=%s&type=image",
				w.apiBase, url.QueryEscape(w.token), url.QueryEscape(w.SiteKey)))
	}
	if err != nil {
		return nil, "", internal.WrapHosterError(internal.ErrNetwork,
			"cannot fetch challenge token", err)
	}

	matches := visualChallengeRe.FindStringSubmatch(body)
	if len(matches) < 2 {
		return nil, "", internal.NewHosterError(internal.ErrFatal,
			"challenge widget returned no token")
	}
	w.token = matches[1]

	ch := &Challenge{
		ImageURL:   fmt.Sprintf("%s/image?c=%s", w.apiBase, url.QueryEscape(w.token)),
		Type:       "recaptcha",
		MinLength:  1,
		ModuleName: w.ModuleName,
	}
	return ch, w.token, nil
}

// SemanticWidget is the gibberish-phrase challenge flow: the widget hands
// out a media identifier whose rendered image contains a short nonsense
// phrase. Reloading requests a fresh identifier under the same key.
type SemanticWidget struct {
	SiteKey    string
	ModuleName string

	client  *utils.HTTPClient
	apiBase string
}

// NewSemanticWidget returns a source for the gibberish-phrase widget.
func NewSemanticWidget(siteKey, moduleName string, client *utils.HTTPClient) *SemanticWidget {
	return &SemanticWidget{
		SiteKey:    siteKey,
		ModuleName: moduleName,
		client:     client,
		apiBase:    "http://api.solvemedia.com/papi",
	}
}

var semanticMediaRe = regexp.MustCompile(`"chid"\s*:\s*"([^"]+)"`)

// Next fetches a fresh media identifier and wraps its image.
func (w *SemanticWidget) Next(ctx context.Context) (*Challenge, string, error) {
	body, err := w.client.GetString(ctx,
		fmt.Sprintf("%s/_challenge.js?k=%s", w.apiBase, url.QueryEscape(w.SiteKey)))
	if err != nil {
		return nil, "", internal.WrapHosterError(internal.ErrNetwork,
			"cannot fetch challenge identifier", err)
	}

	matches := semanticMediaRe.FindStringSubmatch(body)
	if len(matches) < 2 {
		if strings.Contains(body, "error") {
			return nil, "", internal.NewHosterError(internal.ErrFatal,
				"challenge widget rejected the site key")
		}
		return nil, "", internal.NewHosterError(internal.ErrFatal,
			"challenge widget returned no identifier")
	}
	chid := matches[1]

	ch := &Challenge{
		ImageURL:   fmt.Sprintf("%s/media?c=%s", w.apiBase, url.QueryEscape(chid)),
		Type:       "solvemedia",
		MinLength:  2,
		ModuleName: w.ModuleName,
	}
	return ch, chid, nil
}
