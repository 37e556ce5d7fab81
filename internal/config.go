package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Captcha method names accepted by Config.CaptchaMethod. Empty means
// auto-detect from configured provider credentials.
const (
	CaptchaMethodNone   = "none"
	CaptchaMethodPrompt = "prompt"
)

// Config holds application configuration. It is built once at startup from
// defaults, environment and CLI flags, then threaded as a parameter into the
// retry ladder and the captcha engine; there is no ambient global state.
type Config struct {
	// Retry/wait behavior
	Timeout     int  // global wait budget in seconds across retries; <=0 means unlimited
	MaxRetries  int  // <0 unlimited, 0 means no retry at all, N caps the ladder at N+1 attempts
	NoExtraWait bool // abort instead of honoring "try again later" waits
	Fallback    bool // plain HTTP download when no module matches the URL

	// Captcha resolution
	CaptchaProgram     string // external solver program path, tried first when set
	CaptchaMethod      string // forced method ("none", "prompt" or a provider name); empty = auto
	AntigateKey        string
	DeathByCaptchaUser string
	DeathByCaptchaPass string
	NineKWKey          string

	// Per-item session inputs
	CookieFile   string
	LinkPassword string

	// Transport
	HTTPTimeout int // per-request timeout in seconds
	ProxyURL    string

	// Logging configuration
	LogLevel    string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     0,  // unlimited wait budget
		MaxRetries:  -1, // unlimited retries
		HTTPTimeout: 30,

		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if timeout := os.Getenv("HOSTFETCH_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t >= 0 {
			c.Timeout = t
		}
	}

	if retries := os.Getenv("HOSTFETCH_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.MaxRetries = r
		}
	}

	c.CaptchaProgram = GetEnvWithDefault("HOSTFETCH_CAPTCHA_PROGRAM", c.CaptchaProgram)
	c.CaptchaMethod = GetEnvWithDefault("HOSTFETCH_CAPTCHA_METHOD", c.CaptchaMethod)
	c.AntigateKey = GetEnvWithDefault("HOSTFETCH_ANTIGATE_KEY", c.AntigateKey)
	c.NineKWKey = GetEnvWithDefault("HOSTFETCH_9KW_KEY", c.NineKWKey)

	if creds := os.Getenv("HOSTFETCH_DEATHBYCAPTCHA"); creds != "" {
		if user, pass, ok := strings.Cut(creds, ":"); ok {
			c.DeathByCaptchaUser = user
			c.DeathByCaptchaPass = pass
		}
	}

	c.CookieFile = GetEnvWithDefault("HOSTFETCH_COOKIES", c.CookieFile)
	c.ProxyURL = GetEnvWithDefault("HOSTFETCH_PROXY", c.ProxyURL)

	// Load logging configuration from environment
	c.LogLevel = GetEnvWithDefault("HOSTFETCH_LOG_LEVEL", c.LogLevel)
	c.LogFile = GetEnvWithDefault("HOSTFETCH_LOG_FILE", c.LogFile)

	if debug := os.Getenv("HOSTFETCH_DEBUG"); debug != "" {
		c.EnableDebug = debug == "true" || debug == "1"
	}

	if quiet := os.Getenv("HOSTFETCH_QUIET"); quiet != "" {
		c.QuietMode = quiet == "true" || quiet == "1"
	}
}

// GetEnvWithDefault returns environment variable value or default.
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ValidateConfig validates the configuration values.
func (c *Config) ValidateConfig() error {
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %d (must be >= 0, 0 means unlimited)", c.Timeout)
	}

	if c.HTTPTimeout < 1 {
		return fmt.Errorf("invalid HTTP timeout: %d (must be > 0)", c.HTTPTimeout)
	}

	switch c.CaptchaMethod {
	case "", CaptchaMethodNone, CaptchaMethodPrompt, "antigate", "deathbycaptcha", "9kw":
	default:
		return fmt.Errorf("unknown captcha method: %q", c.CaptchaMethod)
	}

	if (c.DeathByCaptchaUser == "") != (c.DeathByCaptchaPass == "") {
		return fmt.Errorf("deathbycaptcha credentials require both user and password")
	}

	return nil
}

// CaptchaDisabled reports whether captcha solving was explicitly turned off.
func (c *Config) CaptchaDisabled() bool {
	return c.CaptchaMethod == CaptchaMethodNone
}
