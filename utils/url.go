package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"hostfetch/internal"
)

// ValidateItemURL checks that a command-line item is a usable http(s) URL.
func ValidateItemURL(rawURL string) error {
	if rawURL == "" {
		return internal.NewHosterError(internal.ErrBadCommandLine, "URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return internal.NewHosterError(internal.ErrBadCommandLine,
			fmt.Sprintf("invalid URL format: %v", err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return internal.NewHosterError(internal.ErrBadCommandLine,
			"URL must use http or https protocol")
	}

	if parsedURL.Host == "" {
		return internal.NewHosterError(internal.ErrBadCommandLine, "URL has no host")
	}

	return nil
}

// NormalizeItemURL trims whitespace and adds an https scheme to bare
// host/path items so "example.com/file/abc" works from the command line.
func NormalizeItemURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

// HostOf returns the lowercase hostname of a URL, or "" when unparseable.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// FilenameFromURL derives a usable filename from the URL path. Returns ""
// when the path carries no name, leaving the decision to the caller.
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "/" || name == "." || name == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return SanitizeFilename(name)
}

// ReadLinkFile reads one URL per line from a link file. Blank lines and
// '#' comments are skipped, matching the usual link-list convention.
func ReadLinkFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, internal.WrapHosterError(internal.ErrBadCommandLine,
			fmt.Sprintf("cannot open link file %s", path), err)
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, internal.WrapHosterError(internal.ErrSystem,
			fmt.Sprintf("cannot read link file %s", path), err)
	}
	return links, nil
}
