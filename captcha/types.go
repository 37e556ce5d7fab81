// Package captcha resolves captcha challenges through a set of
// interchangeable providers: an external helper program, paid remote
// recognition services, and an interactive human prompt. Provider-specific
// protocols and error strings stay inside this package; callers only ever
// see the shared error taxonomy.
package captcha

import "fmt"

// Challenge is a captcha puzzle handed over by a site module. Either Image
// holds the raw bytes or ImageURL points at them; the engine fetches the URL
// when the bytes are absent.
type Challenge struct {
	Image    []byte
	ImageURL string

	// Type is the site module's hint about the challenge family,
	// e.g. "recaptcha" or "solvemedia".
	Type string

	// MinLength and MaxLength bound the expected answer, zero when unknown.
	MinLength int
	MaxLength int

	// ModuleName identifies the requesting site module, passed through to
	// external solver programs.
	ModuleName string
}

// TypeSpec renders the challenge type and minimum length in the
// "<type>-<minLen>" form external solver programs expect.
func (c *Challenge) TypeSpec() string {
	return fmt.Sprintf("%s-%d", c.Type, c.MinLength)
}

// Ticket identifies a solved transaction for later acknowledgement. The
// provider tag routes the ack back to the provider that produced the answer.
type Ticket struct {
	ProviderTag string
	ID          string
}

// ZeroTicket is the "no bookkeeping needed" sentinel. Ack and Nack treat it
// as a no-op.
var ZeroTicket = Ticket{ID: "0"}

// IsZero reports whether the ticket requires no acknowledgement.
func (t Ticket) IsZero() bool {
	return t.ID == "" || t.ID == "0"
}

// String returns the ticket in provider-tag-prefixed form for logs.
func (t Ticket) String() string {
	if t.IsZero() {
		return "0"
	}
	return t.ProviderTag + t.ID
}
