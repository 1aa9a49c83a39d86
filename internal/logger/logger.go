// Package logger configures log/slog for the omega gateway from
// LoggingConfig. Records carry the build version and instance id, and
// attributes that hold credentials are redacted before they are written.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"omega/internal/models"
	"omega/internal/version"
	"os"
	"path/filepath"
	"strings"
)

const redactedValue = "[REDACTED]"

// redactedKeys lists attribute keys whose values are never written out.
var redactedKeys = map[string]struct{}{
	"api_key":        {},
	"authorization":  {},
	"gumroad_secret": {},
	"owner_token":    {},
	"secret":         {},
	"signature":      {},
	"token":          {},
}

// Setup builds the process logger. The returned Closer is non-nil only for
// file output and must be closed by the caller.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer, err := openWriter(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	logger := slog.New(newHandler(writer, cfg.Format, level)).With(
		slog.String("service", "omega"),
		slog.String("version", ver.Version),
		slog.String("git_commit", ver.GitCommit),
		slog.String("instance_id", ver.InstanceID),
	)
	return logger, closer, nil
}

// newHandler returns a JSON handler for format "json" and a text handler
// otherwise. Debug logging also records the call site.
func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: redact,
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// parseLevel converts a level name to an slog.Level. An empty name means info.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

// openWriter resolves the output destination. File output creates missing
// parent directories and appends to an existing file.
func openWriter(output, filePath string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if filePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
		}
		return f, f, nil
	default:
		return os.Stdout, nil, nil
	}
}
