package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with a component name attached to every record.
type Logger struct {
	*slog.Logger
	base      *slog.Logger // without the component attribute
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = NewHandler(config.Output, config.Format, config.Level)
	}
	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	base := slog.New(handler)
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// NewHandler builds a text or JSON handler writing to w (stdout when nil).
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps debug|info|warn|error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *Logger {
	return New(Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.baseLogger().With(args...),
		component: l.component,
	}
}

// WithComponent returns a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	base := l.baseLogger()
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

func (l *Logger) baseLogger() *slog.Logger {
	if l.base != nil {
		return l.base
	}
	return l.Logger
}

// Slog returns the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// Base returns the underlying slog logger without the component attribute,
// for packages that attach their own component.
func (l *Logger) Base() *slog.Logger {
	return l.baseLogger()
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// LogFields logs a record built with the LogFields builder.
func (l *Logger) LogFields(ctx context.Context, level slog.Level, msg string, fields LogFields) {
	l.Logger.Log(ctx, level, msg, fields.ToSlice()...)
}
