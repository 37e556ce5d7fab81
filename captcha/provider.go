package captcha

import "context"

// Provider solves challenges and acknowledges the outcome afterwards.
// Implementations normalize their service's error grammar into the shared
// taxonomy before returning.
type Provider interface {
	// Name returns the provider identifier used in configuration and logs.
	Name() string

	// Tag returns the short identifier stamped into tickets so the engine
	// can route acknowledgements back to the right provider.
	Tag() string

	// Solve submits the challenge image and returns the decoded word along
	// with a ticket for later ack/nack. Providers without transaction
	// bookkeeping return ZeroTicket.
	Solve(ctx context.Context, ch *Challenge) (string, Ticket, error)

	// Ack reports the answer was accepted by the site.
	Ack(ctx context.Context, t Ticket) error

	// Nack reports the answer was rejected, usually triggering a refund.
	Nack(ctx context.Context, t Ticket) error
}

// BalanceChecker is implemented by paid providers. The engine checks the
// balance once before first use; a zero or negative balance is a hard
// configuration failure, not a transient one.
type BalanceChecker interface {
	Balance(ctx context.Context) (float64, error)
}
