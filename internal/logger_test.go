package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelError, "ERROR"},
		{LogLevelWarn, "WARN"},
		{LogLevelInfo, "INFO"},
		{LogLevelDebug, "DEBUG"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestSecureLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelWarn, false, false)

	logger.Error("error line")
	logger.Warn("warn line")
	logger.Info("info line")
	logger.Debug("debug line")

	out := buf.String()
	if !strings.Contains(out, "error line") || !strings.Contains(out, "warn line") {
		t.Errorf("error and warn should pass a warn-level logger, got %q", out)
	}
	if strings.Contains(out, "info line") || strings.Contains(out, "debug line") {
		t.Errorf("info and debug should be filtered at warn level, got %q", out)
	}
}

func TestSecureLoggerQuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, true)

	logger.Info("progress update")
	logger.Error("hard failure")

	out := buf.String()
	if strings.Contains(out, "progress update") {
		t.Errorf("quiet mode must suppress info, got %q", out)
	}
	if !strings.Contains(out, "hard failure") {
		t.Errorf("quiet mode must still surface errors, got %q", out)
	}
}

func TestCredentialRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, false)

	logger.Info("posting key=abc123secret to solver")
	logger.Info("sending Cookie: session=deadbeef; path=/")
	logger.Info("with Authorization: Bearer tok.en.value")

	out := buf.String()
	if strings.Contains(out, "abc123secret") {
		t.Errorf("provider key leaked into log output: %q", out)
	}
	if strings.Contains(out, "deadbeef") {
		t.Errorf("cookie value leaked into log output: %q", out)
	}
	if strings.Contains(out, "tok.en.value") {
		t.Errorf("bearer token leaked into log output: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker in output: %q", out)
	}
}

func TestURLRedaction(t *testing.T) {
	redactor := &URLRedactor{}

	input := "GET https://example.com/dl?file=a.zip&link_password=opensesame&x=1"
	got := redactor.Redact(input)

	if strings.Contains(got, "opensesame") {
		t.Errorf("link password survived redaction: %q", got)
	}
	if !strings.Contains(got, "file=a.zip") {
		t.Errorf("non-sensitive parameters must survive: %q", got)
	}
}

func TestSetQuietDropsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, false)

	logger.SetQuiet(true)
	logger.Info("should vanish")

	if buf.Len() != 0 {
		t.Errorf("expected no output after SetQuiet, got %q", buf.String())
	}
}
