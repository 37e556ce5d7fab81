package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"hostfetch/internal"
	"hostfetch/utils"
)

// deathbyPollDelays is the fixed backoff ladder between status polls, in
// seconds.
var deathbyPollDelays = []int{4, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8}

// DeathByCaptchaProvider solves captchas through the DeathByCaptcha service.
// The API speaks JSON over form-encoded uploads; balances are reported in
// US cents.
type DeathByCaptchaProvider struct {
	username string
	password string
	client   *utils.HTTPClient
	apiBase  string
	sleep    internal.Sleeper
}

// NewDeathByCaptchaProvider returns a provider using the given account.
func NewDeathByCaptchaProvider(username, password string, client *utils.HTTPClient) *DeathByCaptchaProvider {
	return &DeathByCaptchaProvider{
		username: username,
		password: password,
		client:   client,
		apiBase:  "http://api.dbcapi.me/api",
		sleep:    internal.SleepSeconds,
	}
}

// Name returns the provider identifier.
func (d *DeathByCaptchaProvider) Name() string { return "deathbycaptcha" }

// Tag returns the ticket routing tag.
func (d *DeathByCaptchaProvider) Tag() string { return "d" }

type dbcUser struct {
	User    int     `json:"user"`
	Balance float64 `json:"balance"`
	Banned  bool    `json:"is_banned"`
}

type dbcCaptcha struct {
	Captcha   int64  `json:"captcha"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Status    int    `json:"status"`
}

// Balance returns the account balance in US cents.
func (d *DeathByCaptchaProvider) Balance(ctx context.Context) (float64, error) {
	var user dbcUser
	if err := d.postJSON(ctx, "/user", d.authForm(), &user); err != nil {
		return 0, err
	}
	if user.Banned {
		return 0, internal.NewHosterError(internal.ErrFatal,
			"captcha service account is banned")
	}
	return user.Balance, nil
}

// Solve uploads the image and polls the transaction until an answer arrives.
func (d *DeathByCaptchaProvider) Solve(ctx context.Context, ch *Challenge) (string, Ticket, error) {
	form := d.authForm()
	form.Set("captchafile", "base64:"+base64.StdEncoding.EncodeToString(ch.Image))

	var uploaded dbcCaptcha
	if err := d.postJSON(ctx, "/captcha", form, &uploaded); err != nil {
		return "", ZeroTicket, err
	}
	if uploaded.Captcha == 0 {
		return "", ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
			"captcha service refused the upload")
	}

	id := fmt.Sprintf("%d", uploaded.Captcha)
	for _, delay := range deathbyPollDelays {
		if err := d.sleep(ctx, delay); err != nil {
			return "", ZeroTicket, internal.WrapHosterError(internal.ErrSystem,
				"captcha poll interrupted", err)
		}

		var status dbcCaptcha
		if err := d.getJSON(ctx, "/captcha/"+id, &status); err != nil {
			return "", ZeroTicket, err
		}
		if status.Text != "" {
			if !status.IsCorrect {
				return "", ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
					"captcha service flagged its own answer as wrong")
			}
			return status.Text, Ticket{ProviderTag: d.Tag(), ID: id}, nil
		}
	}

	return "", ZeroTicket, internal.NewHosterError(internal.ErrCaptcha,
		"captcha service did not answer in time")
}

// Ack is a no-op: the service only takes negative reports.
func (d *DeathByCaptchaProvider) Ack(ctx context.Context, t Ticket) error { return nil }

// Nack reports a wrong answer so the transaction is refunded.
func (d *DeathByCaptchaProvider) Nack(ctx context.Context, t Ticket) error {
	var status dbcCaptcha
	return d.postJSON(ctx, "/captcha/"+t.ID+"/report", d.authForm(), &status)
}

func (d *DeathByCaptchaProvider) authForm() url.Values {
	return url.Values{
		"username": {d.username},
		"password": {d.password},
	}
}

func (d *DeathByCaptchaProvider) postJSON(ctx context.Context, path string, form url.Values, out any) error {
	resp, err := d.client.PostFormWithContext(ctx, d.apiBase+path, form,
		map[string]string{"Accept": "application/json"})
	if err != nil {
		return d.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service returned malformed JSON")
	}
	return nil
}

func (d *DeathByCaptchaProvider) getJSON(ctx context.Context, path string, out any) error {
	resp, err := d.client.GetWithContext(ctx, d.apiBase+path,
		map[string]string{"Accept": "application/json"})
	if err != nil {
		return d.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service returned malformed JSON")
	}
	return nil
}

// normalizeTransportError keeps authentication failures distinct from
// transient transport trouble.
func (d *DeathByCaptchaProvider) normalizeTransportError(err error) error {
	switch internal.KindOf(err) {
	case internal.ErrLoginFailed:
		return internal.NewHosterError(internal.ErrFatal,
			"captcha service rejected the configured credentials")
	case internal.ErrFatal:
		return err
	default:
		if strings.Contains(err.Error(), "403") {
			return internal.NewHosterError(internal.ErrFatal,
				"captcha service rejected the configured credentials")
		}
		return internal.WrapHosterError(internal.ErrNetwork,
			"captcha service request failed", err)
	}
}
