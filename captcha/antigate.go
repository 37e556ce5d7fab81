package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"hostfetch/internal"
	"hostfetch/utils"
)

// antigatePollDelays is the fixed backoff ladder between answer polls, in
// seconds. Exhausting it without an answer gives up with a CAPTCHA outcome.
var antigatePollDelays = []int{5, 5, 5, 6, 6, 7, 7, 8, 8, 10}

// AntigateProvider solves captchas through the Antigate recognition service.
// The protocol is the legacy text one: pipe-separated responses, polling by
// transaction id.
type AntigateProvider struct {
	key     string
	client  *utils.HTTPClient
	apiBase string
	sleep   internal.Sleeper
}

// NewAntigateProvider returns a provider using the given API key.
func NewAntigateProvider(key string, client *utils.HTTPClient) *AntigateProvider {
	return &AntigateProvider{
		key:     key,
		client:  client,
		apiBase: "http://antigate.com",
		sleep:   internal.SleepSeconds,
	}
}

// Name returns the provider identifier.
func (a *AntigateProvider) Name() string { return "antigate" }

// Tag returns the ticket routing tag.
func (a *AntigateProvider) Tag() string { return "a" }

// Balance queries remaining credit in service units.
func (a *AntigateProvider) Balance(ctx context.Context) (float64, error) {
	body, err := a.client.GetString(ctx,
		fmt.Sprintf("%s/res.php?key=%s&action=getbalance", a.apiBase, url.QueryEscape(a.key)))
	if err != nil {
		return 0, internal.WrapHosterError(internal.ErrNetwork, "antigate balance check failed", err)
	}
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "ERROR_") {
		return 0, a.normalizeError(body)
	}
	balance, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return 0, internal.NewHosterError(internal.ErrFatal,
			"antigate returned unparseable balance")
	}
	return balance, nil
}

// Solve uploads the image and polls for the decoded answer.
func (a *AntigateProvider) Solve(ctx context.Context, ch *Challenge) (string, Ticket, error) {
	form := url.Values{
		"method": {"base64"},
		"key":    {a.key},
		"body":   {base64.StdEncoding.EncodeToString(ch.Image)},
	}
	if ch.MinLength > 0 {
		form.Set("min_len", strconv.Itoa(ch.MinLength))
	}
	if ch.MaxLength > 0 {
		form.Set("max_len", strconv.Itoa(ch.MaxLength))
	}

	body, err := a.client.PostFormString(ctx, a.apiBase+"/in.php", form)
	if err != nil {
		return "", ZeroTicket, internal.WrapHosterError(internal.ErrNetwork,
			"antigate upload failed", err)
	}
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "ERROR_") {
		return "", ZeroTicket, a.normalizeError(body)
	}
	id, ok := strings.CutPrefix(body, "OK|")
	if !ok || id == "" {
		return "", ZeroTicket, internal.NewHosterError(internal.ErrFatal,
			"antigate upload returned unexpected response")
	}

	for _, delay := range antigatePollDelays {
		if err := a.sleep(ctx, delay); err != nil {
			return "", ZeroTicket, internal.WrapHosterError(internal.ErrSystem,
				"captcha poll interrupted", err)
		}

		body, err := a.client.GetString(ctx,
			fmt.Sprintf("%s/res.php?key=%s&action=get&id=%s",
				a.apiBase, url.QueryEscape(a.key), url.QueryEscape(id)))
		if err != nil {
			return "", ZeroTicket, internal.WrapHosterError(internal.ErrNetwork,
				"antigate poll failed", err)
		}
		body = strings.TrimSpace(body)

		switch {
		case body == "CAPCHA_NOT_READY":
			continue
		case strings.HasPrefix(body, "OK|"):
			word := strings.TrimPrefix(body, "OK|")
			return word, Ticket{ProviderTag: a.Tag(), ID: id}, nil
		case strings.HasPrefix(body, "ERROR_"):
			return "", ZeroTicket, a.normalizeError(body)
		default:
			return "", ZeroTicket, internal.NewHosterError(internal.ErrFatal,
				"antigate poll returned unexpected response")
		}
	}

	return "", ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
		"captcha service did not answer in time")
}

// Ack is a no-op: the service only takes negative reports.
func (a *AntigateProvider) Ack(ctx context.Context, t Ticket) error { return nil }

// Nack reports a wrong answer so the transaction is refunded.
func (a *AntigateProvider) Nack(ctx context.Context, t Ticket) error {
	_, err := a.client.GetString(ctx,
		fmt.Sprintf("%s/res.php?key=%s&action=reportbad&id=%s",
			a.apiBase, url.QueryEscape(a.key), url.QueryEscape(t.ID)))
	return err
}

// normalizeError maps the service's error grammar onto the shared taxonomy.
// Recognition failures stay retryable; account and protocol problems abort.
func (a *AntigateProvider) normalizeError(code string) error {
	switch code {
	case "ERROR_ZERO_BALANCE":
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service balance is empty").
			WithSuggestion("Top up your Antigate account or switch captcha method")
	case "ERROR_NO_SLOT_AVAILABLE":
		return internal.NewHosterError(internal.ErrCaptcha,
			"captcha service has no free workers")
	case "ERROR_CAPTCHA_UNSOLVABLE":
		return internal.NewHosterError(internal.ErrCaptcha,
			"captcha service could not decode the image")
	case "ERROR_KEY_DOES_NOT_EXIST", "ERROR_WRONG_USER_KEY", "ERROR_IP_NOT_ALLOWED":
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service rejected the configured API key")
	default:
		internal.LogDebug("Antigate unexpected error code: %s", code)
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service protocol error")
	}
}
