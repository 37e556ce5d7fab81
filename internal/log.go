package internal

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	// Global logger instance
	globalLogger *SecureLogger
	loggerMutex  sync.RWMutex
)

// InitLogger initializes the global logger with the given configuration
func InitLogger(config *Config) error {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	// Determine log level
	level := parseLogLevel(config.LogLevel)

	// Determine output destination
	var output io.Writer = os.Stderr
	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return WrapHosterError(ErrSystem, "failed to open log file "+config.LogFile, err).
				WithSuggestion("Check file permissions and path validity")
		}
		output = file
	}

	// Create the logger
	globalLogger = NewSecureLogger(output, level, config.EnableDebug, config.QuietMode)

	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *SecureLogger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()

	if globalLogger == nil {
		// Create a default logger if none exists
		globalLogger = NewDefaultLogger(false, false)
	}

	return globalLogger
}

// parseLogLevel converts string log level to LogLevel enum
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Convenience functions for global logging

// LogError logs an error message using the global logger
func LogError(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// LogWarn logs a warning message using the global logger
func LogWarn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// LogInfo logs an info message using the global logger
func LogInfo(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// LogDebug logs a debug message using the global logger
func LogDebug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// LogAbort logs the one-line explanation for an item abort, mapped from the
// error's taxonomy kind.
func LogAbort(url string, err error) {
	logger := GetLogger()

	kind := KindOf(err)
	var he *HosterError
	if errors.As(err, &he) && he.Message != "" {
		logger.Error("%s (%s: %s)", kind.Explain(), url, he.Message)
		if he.Suggestion != "" {
			logger.Info("Suggestion: %s", he.Suggestion)
		}
		return
	}
	logger.Error("%s (%s)", kind.Explain(), url)
}

// SetLogLevel updates the global logger's log level
func SetLogLevel(level LogLevel) {
	logger := GetLogger()
	logger.SetLevel(level)
}

// SetDebugMode enables or disables debug mode on the global logger
func SetDebugMode(debug bool) {
	logger := GetLogger()
	logger.SetDebug(debug)
}

// SetQuietMode enables or disables quiet mode on the global logger
func SetQuietMode(quiet bool) {
	logger := GetLogger()
	logger.SetQuiet(quiet)
}
