package log

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/motemen/go-loghttp"
)

// Logger is the global logger instance
var Logger *slog.Logger

var level = new(slog.LevelVar)

// InitLogger initializes the global logger
// It sets the log level to Debug if SITEBOT_DEBUG is set
func InitLogger() {
	level.Set(slog.LevelInfo)
	if os.Getenv("SITEBOT_DEBUG") != "" {
		level.Set(slog.LevelDebug)
	}

	SetOutput(os.Stderr)
}

// SetOutput redirects the global logger, keeping its level.
func SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// init initializes the logger when the package is imported
func init() {
	InitLogger()
}

// SetLevel changes the level of the global logger.
// Unknown names leave the level untouched and return false.
func SetLevel(name string) bool {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info", "":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return false
	}
	return true
}

// Transport wraps base with request/response debug logging.
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loghttp.Transport{
		Transport: base,
		LogRequest: func(req *http.Request) {
			Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
			)
		},
		LogResponse: func(resp *http.Response) {
			Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status", resp.Status,
				"status_code", resp.StatusCode,
			)
		},
	}
}

// HTTPClient returns a client whose transport logs every exchange at debug level.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: Transport(nil),
		Timeout:   timeout,
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
