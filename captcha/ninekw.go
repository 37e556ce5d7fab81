package captcha

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"hostfetch/internal"
	"hostfetch/utils"
)

// ninekwPollDelays is the fixed backoff ladder between answer polls, in
// seconds. The service queues work to human solvers, so the ladder starts
// slower than the OCR-backed services.
var ninekwPollDelays = []int{10, 5, 5, 6, 6, 7, 7, 8, 8, 10, 10, 10}

// NineKWProvider solves captchas through the 9kw.eu service. The API is a
// single CGI endpoint driven by an "action" form field with bare-text
// responses.
type NineKWProvider struct {
	key     string
	client  *utils.HTTPClient
	apiBase string
	sleep   internal.Sleeper
}

// NewNineKWProvider returns a provider using the given API key.
func NewNineKWProvider(key string, client *utils.HTTPClient) *NineKWProvider {
	return &NineKWProvider{
		key:     key,
		client:  client,
		apiBase: "https://www.9kw.eu/index.cgi",
		sleep:   internal.SleepSeconds,
	}
}

// Name returns the provider identifier.
func (n *NineKWProvider) Name() string { return "9kw" }

// Tag returns the ticket routing tag.
func (n *NineKWProvider) Tag() string { return "9" }

// Balance returns remaining credits.
func (n *NineKWProvider) Balance(ctx context.Context) (float64, error) {
	body, err := n.call(ctx, url.Values{"action": {"usercaptchaguthaben"}})
	if err != nil {
		return 0, err
	}
	credits, convErr := strconv.ParseFloat(strings.TrimSpace(body), 64)
	if convErr != nil {
		return 0, n.normalizeError(body)
	}
	return credits, nil
}

// Solve uploads the image and polls for the decoded answer.
func (n *NineKWProvider) Solve(ctx context.Context, ch *Challenge) (string, Ticket, error) {
	form := url.Values{
		"action":         {"usercaptchaupload"},
		"base64":         {"1"},
		"file-upload-01": {base64.StdEncoding.EncodeToString(ch.Image)},
		"maxtimeout":     {"300"},
	}
	body, err := n.call(ctx, form)
	if err != nil {
		return "", ZeroTicket, err
	}
	id := strings.TrimSpace(body)
	if _, convErr := strconv.ParseInt(id, 10, 64); convErr != nil {
		return "", ZeroTicket, n.normalizeError(body)
	}

	for _, delay := range ninekwPollDelays {
		if err := n.sleep(ctx, delay); err != nil {
			return "", ZeroTicket, internal.WrapHosterError(internal.ErrSystem,
				"captcha poll interrupted", err)
		}

		body, err := n.call(ctx, url.Values{
			"action": {"usercaptchacorrectdata"},
			"id":     {id},
		})
		if err != nil {
			return "", ZeroTicket, err
		}
		answer := strings.TrimSpace(body)
		switch {
		case answer == "" || answer == "NO DATA":
			continue
		case strings.HasPrefix(answer, "00"):
			// Numbered error responses, e.g. "0011 Guthaben zu niedrig"
			return "", ZeroTicket, n.normalizeError(answer)
		default:
			return answer, Ticket{ProviderTag: n.Tag(), ID: id}, nil
		}
	}

	return "", ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
		"captcha service did not answer in time")
}

// Ack confirms the answer worked, crediting the solver.
func (n *NineKWProvider) Ack(ctx context.Context, t Ticket) error {
	_, err := n.call(ctx, url.Values{
		"action":  {"usercaptchacorrectback"},
		"id":      {t.ID},
		"correct": {"1"},
	})
	return err
}

// Nack reports a wrong answer.
func (n *NineKWProvider) Nack(ctx context.Context, t Ticket) error {
	_, err := n.call(ctx, url.Values{
		"action":  {"usercaptchacorrectback"},
		"id":      {t.ID},
		"correct": {"2"},
	})
	return err
}

func (n *NineKWProvider) call(ctx context.Context, form url.Values) (string, error) {
	form.Set("apikey", n.key)
	form.Set("source", "hostfetch")
	body, err := n.client.PostFormString(ctx, n.apiBase, form)
	if err != nil {
		return "", internal.WrapHosterError(internal.ErrNetwork,
			"captcha service request failed", err)
	}
	return body, nil
}

// normalizeError maps the service's numbered error strings onto the shared
// taxonomy.
func (n *NineKWProvider) normalizeError(body string) error {
	body = strings.TrimSpace(body)
	switch {
	case strings.HasPrefix(body, "0011"): // balance too low
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service balance is empty").
			WithSuggestion("Top up your 9kw account or switch captcha method")
	case strings.HasPrefix(body, "0002"), strings.HasPrefix(body, "0003"):
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service rejected the configured API key")
	case strings.HasPrefix(body, "0008"), strings.HasPrefix(body, "0012"):
		return internal.NewHosterError(internal.ErrCaptcha,
			"captcha service could not decode the image")
	default:
		internal.LogDebug("9kw unexpected response: %s", body)
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service protocol error")
	}
}
