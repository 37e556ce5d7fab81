package hoster

import (
	"sync"

	"hostfetch/internal"
	"hostfetch/utils"
)

// Session carries the per-run state a module needs when talking to its site:
// the shared HTTP client, the cookie jar, the link password supplied on the
// command line, and the captcha solver.
type Session struct {
	Client       *utils.HTTPClient
	LinkPassword string

	// Captcha is set once at startup. Modules use it through SolveCaptcha
	// and friends rather than directly.
	Captcha CaptchaSolver

	mu         sync.Mutex
	jar        *utils.CookieJar
	cookieFile string
}

// NewSession builds a session around the shared HTTP client. When cookieFile
// is non-empty the jar is loaded from it immediately.
func NewSession(client *utils.HTTPClient, cookieFile, linkPassword string) (*Session, error) {
	s := &Session{
		Client:       client,
		LinkPassword: linkPassword,
		cookieFile:   cookieFile,
		jar:          utils.NewCookieJar(),
	}
	if cookieFile != "" {
		jar, err := utils.LoadCookieFile(cookieFile)
		if err != nil {
			return nil, err
		}
		s.jar = jar
	}
	return s, nil
}

// Cookies returns the jar. Modules read and write cookies through it.
func (s *Session) Cookies() *utils.CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar
}

// Refresh reloads the cookie jar from the backing file, discarding session
// state accumulated since. Used after a temporary server outage, where stale
// session tokens are the usual culprit.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cookieFile == "" {
		s.jar = utils.NewCookieJar()
		return nil
	}
	jar, err := utils.LoadCookieFile(s.cookieFile)
	if err != nil {
		return err
	}
	s.jar = jar
	internal.LogDebug("Session refreshed from %s (%d cookies)", s.cookieFile, jar.Len())
	return nil
}

// Persist writes the jar back to its backing file, if one was configured.
func (s *Session) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cookieFile == "" {
		return nil
	}
	return s.jar.SaveTo(s.cookieFile)
}
