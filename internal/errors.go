package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed outcome taxonomy shared by every layer. Each code has
// a single meaning reused by all site modules, the captcha engine and the retry
// ladder; provider- or site-specific failure strings are normalized into one of
// these values before they reach the ladder.
type ErrorKind int

const (
	OK                      ErrorKind = 0
	ErrFatal                ErrorKind = 1  // unexpected site response / parsing failure
	ErrNoModule             ErrorKind = 2  // no site handler matches URL
	ErrNetwork              ErrorKind = 3  // transient transport failure
	ErrLoginFailed          ErrorKind = 4  // bad credentials or auth flow broke
	ErrMaxWaitReached       ErrorKind = 5  // timeout budget exhausted
	ErrMaxTriesReached      ErrorKind = 6  // retry ladder exhausted
	ErrCaptcha              ErrorKind = 7  // captcha solving failed this attempt
	ErrSystem               ErrorKind = 8  // local resource/filesystem/tooling failure
	ErrLinkTempUnavailable  ErrorKind = 10 // site says "try again after N seconds"
	ErrLinkPasswordRequired ErrorKind = 11 // needs a link password not supplied
	ErrLinkNeedPermissions  ErrorKind = 12 // anonymous/free user forbidden
	ErrLinkDead             ErrorKind = 13 // resource confirmed gone
	ErrSizeLimitExceeded    ErrorKind = 14 // transfer exceeds hoster/account limit
	ErrBadCommandLine       ErrorKind = 15 // caller misuse
)

// FatalMultipleBase offsets the first failing item's code in the exit status of
// a batch invocation whose items did not all succeed.
const FatalMultipleBase = 100

// String returns the symbolic name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case OK:
		return "OK"
	case ErrFatal:
		return "Fatal"
	case ErrNoModule:
		return "NoModule"
	case ErrNetwork:
		return "Network"
	case ErrLoginFailed:
		return "LoginFailed"
	case ErrMaxWaitReached:
		return "MaxWaitReached"
	case ErrMaxTriesReached:
		return "MaxTriesReached"
	case ErrCaptcha:
		return "Captcha"
	case ErrSystem:
		return "System"
	case ErrLinkTempUnavailable:
		return "LinkTempUnavailable"
	case ErrLinkPasswordRequired:
		return "LinkPasswordRequired"
	case ErrLinkNeedPermissions:
		return "LinkNeedPermissions"
	case ErrLinkDead:
		return "LinkDead"
	case ErrSizeLimitExceeded:
		return "SizeLimitExceeded"
	case ErrBadCommandLine:
		return "BadCommandLine"
	default:
		return "Unknown"
	}
}

// Explain returns the one-line human-readable explanation logged on every abort
// path, mapped 1:1 from the kind.
func (k ErrorKind) Explain() string {
	switch k {
	case OK:
		return "success"
	case ErrFatal:
		return "Unexpected content or parsing failure"
	case ErrNoModule:
		return "No module matches this URL"
	case ErrNetwork:
		return "Network transfer failure"
	case ErrLoginFailed:
		return "Login process failed, check your credentials"
	case ErrMaxWaitReached:
		return "Wait timeout reached, giving up"
	case ErrMaxTriesReached:
		return "Maximum number of retries reached, giving up"
	case ErrCaptcha:
		return "Captcha solving failure"
	case ErrSystem:
		return "System failure (filesystem, tooling or local resources)"
	case ErrLinkTempUnavailable:
		return "Link is temporarily unavailable"
	case ErrLinkPasswordRequired:
		return "Link requires a password"
	case ErrLinkNeedPermissions:
		return "Link requires premium permissions"
	case ErrLinkDead:
		return "Link is not alive: file not found"
	case ErrSizeLimitExceeded:
		return "File size exceeds the allowed limit"
	case ErrBadCommandLine:
		return "Bad command line parameter"
	default:
		return "Unknown failure"
	}
}

// IsRetryable reports whether the retry ladder may loop again after this kind.
// Only temporary unavailability and captcha failures are locally recoverable;
// network failures may be retried by re-running the whole item.
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case ErrLinkTempUnavailable, ErrCaptcha, ErrNetwork:
		return true
	default:
		return false
	}
}

// HosterError carries an ErrorKind plus optional context produced by a site
// module or captcha provider. It is the only error type the retry ladder ever
// interprets.
type HosterError struct {
	Kind        ErrorKind
	Message     string
	WaitSeconds int    // hint for LinkTempUnavailable, 0 when the site gave none
	Suggestion  string // optional remediation hint shown to the user
	cause       error
}

// Error implements the error interface.
func (e *HosterError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("hoster error (%s)", e.Kind))
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.WaitSeconds > 0 {
		parts = append(parts, fmt.Sprintf("retry after %d seconds", e.WaitSeconds))
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}
	return strings.Join(parts, " - ")
}

func (e *HosterError) Unwrap() error {
	return e.cause
}

// NewHosterError creates a HosterError with the given kind and message.
func NewHosterError(kind ErrorKind, message string) *HosterError {
	return &HosterError{Kind: kind, Message: message}
}

// WrapHosterError creates a HosterError that preserves an underlying cause.
func WrapHosterError(kind ErrorKind, message string, cause error) *HosterError {
	return &HosterError{Kind: kind, Message: message, cause: cause}
}

// WithWait sets the site-supplied wait-seconds hint.
func (e *HosterError) WithWait(seconds int) *HosterError {
	e.WaitSeconds = seconds
	return e
}

// WithSuggestion adds a remediation hint to the error.
func (e *HosterError) WithSuggestion(suggestion string) *HosterError {
	e.Suggestion = suggestion
	return e
}

// KindOf extracts the taxonomy bucket from any error. A nil error is OK; an
// error that is not (and does not wrap) a HosterError is treated as Fatal,
// which keeps unclassified module bugs from looking retryable.
func KindOf(err error) ErrorKind {
	if err == nil {
		return OK
	}
	var he *HosterError
	if errors.As(err, &he) {
		return he.Kind
	}
	return ErrFatal
}

// WaitHint extracts the wait-seconds hint from an error, or 0.
func WaitHint(err error) int {
	var he *HosterError
	if errors.As(err, &he) {
		return he.WaitSeconds
	}
	return 0
}

// IsKind reports whether err maps to the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
