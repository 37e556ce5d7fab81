package captcha

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"hostfetch/internal"
)

// errProgramDecline signals the external program exited with the NO_MODULE
// code, meaning "I don't handle this challenge type, try the next method."
var errProgramDecline = errors.New("captcha program declined challenge")

// programSolver runs a user-supplied captcha-solving program. The program is
// invoked as `<program> <moduleName> <imagePath> <type>-<minLength>` and must
// print the solved word to stdout and exit 0.
type programSolver struct {
	path string
}

func newProgramSolver(path string) *programSolver {
	return &programSolver{path: path}
}

// solve writes the image to a temp file and runs the program against it.
func (p *programSolver) solve(ctx context.Context, ch *Challenge, image []byte) (string, error) {
	imgFile, err := os.CreateTemp("", "captcha-*.img")
	if err != nil {
		return "", internal.WrapHosterError(internal.ErrSystem, "cannot create captcha image file", err)
	}
	imgPath := imgFile.Name()
	defer os.Remove(imgPath)

	if _, err := imgFile.Write(image); err != nil {
		imgFile.Close()
		return "", internal.WrapHosterError(internal.ErrSystem, "cannot write captcha image file", err)
	}
	if err := imgFile.Close(); err != nil {
		return "", internal.WrapHosterError(internal.ErrSystem, "cannot write captcha image file", err)
	}

	cmd := exec.CommandContext(ctx, p.path, ch.ModuleName, imgPath, ch.TypeSpec())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		word := strings.TrimSpace(stdout.String())
		if word == "" {
			return "", internal.NewHosterError(internal.ErrCaptcha,
				"captcha program printed no answer")
		}
		return word, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		code := exitErr.ExitCode()
		if code == int(internal.ErrNoModule) {
			internal.LogDebug("Captcha program declined challenge type %s", ch.Type)
			return "", errProgramDecline
		}
		return "", internal.NewHosterError(internal.ErrFatal,
			fmt.Sprintf("captcha program failed with exit code %d: %s",
				code, strings.TrimSpace(stderr.String())))
	}

	return "", internal.WrapHosterError(internal.ErrSystem,
		fmt.Sprintf("cannot run captcha program %s", p.path), runErr)
}
