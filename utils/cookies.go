package utils

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hostfetch/internal"
)

// CookieJar holds cookies loaded from a Netscape-format cookie file. Hosting
// sites hand out session cookies during resolution; the jar carries them into
// the final transfer and back out to disk for the next run.
type CookieJar struct {
	cookies []*http.Cookie
	path    string
}

// NewCookieJar returns an empty jar not bound to any file.
func NewCookieJar() *CookieJar {
	return &CookieJar{}
}

// LoadCookieFile parses a Netscape-format cookie file. Lines starting with
// '#' are comments, except the "#HttpOnly_" prefix which marks a live cookie.
func LoadCookieFile(path string) (*CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, internal.WrapHosterError(internal.ErrSystem,
			fmt.Sprintf("cannot open cookie file %s", path), err)
	}
	defer f.Close()

	jar := &CookieJar{path: path}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			internal.LogDebug("Skipping malformed cookie line %d in %s", lineNo, path)
			continue
		}

		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}

		cookie := &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
		}
		jar.cookies = append(jar.cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, internal.WrapHosterError(internal.ErrSystem,
			fmt.Sprintf("cannot read cookie file %s", path), err)
	}

	internal.LogDebug("Loaded %d cookies from %s", len(jar.cookies), path)
	return jar, nil
}

// Save writes the jar back to its source file in Netscape format, dropping
// expired cookies on the way out.
func (j *CookieJar) Save() error {
	if j.path == "" {
		return internal.NewHosterError(internal.ErrSystem, "cookie jar has no backing file")
	}
	return j.SaveTo(j.path)
}

// SaveTo writes the jar to the given path in Netscape format.
func (j *CookieJar) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return internal.WrapHosterError(internal.ErrSystem,
			fmt.Sprintf("cannot create directory for %s", path), err)
	}

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	now := time.Now()
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		flag := "FALSE"
		if strings.HasPrefix(c.Domain, ".") {
			flag = "TRUE"
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		prefix := ""
		if c.HttpOnly {
			prefix = "#HttpOnly_"
		}
		fmt.Fprintf(&b, "%s%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			prefix, c.Domain, flag, c.Path, secure, expires, c.Name, c.Value)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return internal.WrapHosterError(internal.ErrSystem,
			fmt.Sprintf("cannot write cookie file %s", path), err)
	}
	return nil
}

// CookiesFor returns cookies applicable to the given host, matching domain
// suffixes the way browsers do.
func (j *CookieJar) CookiesFor(host string) []*http.Cookie {
	var out []*http.Cookie
	now := time.Now()
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		if cookieDomainMatches(c.Domain, host) {
			out = append(out, c)
		}
	}
	return out
}

// Set adds or replaces a cookie by domain+name.
func (j *CookieJar) Set(cookie *http.Cookie) {
	for i, c := range j.cookies {
		if c.Domain == cookie.Domain && c.Name == cookie.Name {
			j.cookies[i] = cookie
			return
		}
	}
	j.cookies = append(j.cookies, cookie)
}

// Len returns the number of cookies in the jar.
func (j *CookieJar) Len() int {
	return len(j.cookies)
}

// Path returns the backing file path, if any.
func (j *CookieJar) Path() string {
	return j.path
}

func cookieDomainMatches(domain, host string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	host = strings.ToLower(host)
	if domain == host {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

// CookieHeader renders cookies into a single Cookie header value.
func CookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
