package utils

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCookieFile = `# Netscape HTTP Cookie File
# This is a comment
.example.com	TRUE	/	FALSE	0	session	abc123
cdn.example.com	FALSE	/files	TRUE	2147483647	token	xyz
#HttpOnly_.example.com	TRUE	/	FALSE	2147483647	secret	hidden
malformed line without tabs
`

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCookieFile(t *testing.T) {
	jar, err := LoadCookieFile(writeCookieFile(t, sampleCookieFile))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if jar.Len() != 3 {
		t.Fatalf("expected 3 cookies, got %d", jar.Len())
	}

	cookies := jar.CookiesFor("www.example.com")
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "session") || !strings.Contains(joined, "secret") {
		t.Errorf("expected session and secret for example.com subdomain, got %s", joined)
	}
	if strings.Contains(joined, "token") {
		t.Errorf("token is scoped to cdn.example.com, must not match www: %s", joined)
	}
}

func TestLoadCookieFileHttpOnly(t *testing.T) {
	jar, err := LoadCookieFile(writeCookieFile(t, sampleCookieFile))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	for _, c := range jar.CookiesFor("example.com") {
		if c.Name == "secret" && !c.HttpOnly {
			t.Error("#HttpOnly_ prefix must mark the cookie HttpOnly")
		}
	}
}

func TestLoadCookieFileMissing(t *testing.T) {
	if _, err := LoadCookieFile("/nonexistent/cookies.txt"); err == nil {
		t.Error("expected error for missing cookie file")
	}
}

func TestCookieJarSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	jar := NewCookieJar()
	jar.Set(&http.Cookie{
		Domain:  ".example.com",
		Path:    "/",
		Name:    "session",
		Value:   "round-trip",
		Expires: time.Now().Add(24 * time.Hour),
	})
	if err := jar.SaveTo(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := LoadCookieFile(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	cookies := reloaded.CookiesFor("example.com")
	if len(cookies) != 1 || cookies[0].Value != "round-trip" {
		t.Errorf("round trip lost the cookie: %+v", cookies)
	}
}

func TestCookieJarSaveDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	jar := NewCookieJar()
	jar.Set(&http.Cookie{
		Domain:  ".example.com",
		Path:    "/",
		Name:    "stale",
		Value:   "old",
		Expires: time.Now().Add(-time.Hour),
	})
	if err := jar.SaveTo(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := LoadCookieFile(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Len() != 0 {
		t.Errorf("expired cookies must not be written, got %d", reloaded.Len())
	}
}

func TestCookieJarSetReplaces(t *testing.T) {
	jar := NewCookieJar()
	jar.Set(&http.Cookie{Domain: ".example.com", Name: "k", Value: "one"})
	jar.Set(&http.Cookie{Domain: ".example.com", Name: "k", Value: "two"})

	if jar.Len() != 1 {
		t.Fatalf("expected replacement, got %d cookies", jar.Len())
	}
	if got := jar.CookiesFor("example.com")[0].Value; got != "two" {
		t.Errorf("expected replaced value two, got %q", got)
	}
}

func TestCookieHeader(t *testing.T) {
	header := CookieHeader([]*http.Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
	})
	if header != "a=1; b=2" {
		t.Errorf("unexpected header %q", header)
	}
}
