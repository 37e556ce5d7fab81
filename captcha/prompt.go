package captcha

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"hostfetch/internal"
)

// PromptProvider asks a human at the terminal. The image is written to a
// temp file and its path printed, since a terminal cannot render it inline.
type PromptProvider struct {
	in  io.Reader
	out io.Writer
}

// NewPromptProvider returns a provider reading answers from stdin.
func NewPromptProvider() *PromptProvider {
	return &PromptProvider{in: os.Stdin, out: os.Stderr}
}

// Name returns the provider identifier.
func (p *PromptProvider) Name() string { return "prompt" }

// Tag returns the ticket routing tag.
func (p *PromptProvider) Tag() string { return "p" }

// Solve writes the image to disk, tells the user where it is, and reads one
// line back as the answer.
func (p *PromptProvider) Solve(ctx context.Context, ch *Challenge) (string, Ticket, error) {
	imgFile, err := os.CreateTemp("", "captcha-*.img")
	if err != nil {
		return "", ZeroTicket, internal.WrapHosterError(internal.ErrSystem,
			"cannot create captcha image file", err)
	}
	imgPath := imgFile.Name()
	defer os.Remove(imgPath)

	if _, err := imgFile.Write(ch.Image); err != nil {
		imgFile.Close()
		return "", ZeroTicket, internal.WrapHosterError(internal.ErrSystem,
			"cannot write captcha image file", err)
	}
	imgFile.Close()

	fmt.Fprintf(p.out, "Captcha image saved to: %s\n", imgPath)
	if ch.MinLength > 0 || ch.MaxLength > 0 {
		fmt.Fprintf(p.out, "Expected answer length: %d-%d\n", ch.MinLength, ch.MaxLength)
	}
	fmt.Fprint(p.out, "Enter captcha response: ")

	// Reading stdin cannot be cancelled portably; check context afterwards
	// so a dead ladder does not consume the answer.
	type lineResult struct {
		text string
		err  error
	}
	lineCh := make(chan lineResult, 1)
	go func() {
		reader := bufio.NewReader(p.in)
		text, err := reader.ReadString('\n')
		lineCh <- lineResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ZeroTicket, internal.WrapHosterError(internal.ErrSystem,
			"captcha prompt interrupted", ctx.Err())
	case res := <-lineCh:
		if res.err != nil && res.text == "" {
			return "", ZeroTicket, internal.WrapHosterError(internal.ErrCaptcha,
				"no captcha response entered", res.err)
		}
		return strings.TrimSpace(res.text), ZeroTicket, nil
	}
}

// Ack is a no-op: a human needs no transaction bookkeeping.
func (p *PromptProvider) Ack(ctx context.Context, t Ticket) error { return nil }

// Nack is a no-op.
func (p *PromptProvider) Nack(ctx context.Context, t Ticket) error { return nil }
