package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

/* ------------------------------------------------------------------ *
|  1. Configuration & functional‑options                              |
* -------------------------------------------------------------------*/

type Config struct {
	Level      string
	FilePath   string
	Format     string
	Version    string
	Component  string
	MaxSize    int
	MaxBackups int
	MaxAge     int

	// Writer overrides stdout when FilePath is empty.
	Writer io.Writer
}

type Option func(*Config)

func WithLevel(lvl string) Option      { return func(c *Config) { c.Level = lvl } }
func WithFormat(fmt string) Option     { return func(c *Config) { c.Format = fmt } }
func WithFile(path string) Option      { return func(c *Config) { c.FilePath = path } }
func WithVersion(v string) Option      { return func(c *Config) { c.Version = v } }
func WithComponent(comp string) Option { return func(c *Config) { c.Component = comp } }
func WithWriter(w io.Writer) Option    { return func(c *Config) { c.Writer = w } }
func WithRotation(size, backups, age int) Option {
	return func(c *Config) {
		c.MaxSize, c.MaxBackups, c.MaxAge = size, backups, age
	}
}

/* ------------------------------------------------------------------ *
|  2. Package‑level state                                             |
* -------------------------------------------------------------------*/

var (
	atomicLevel zap.AtomicLevel
	root        *zap.Logger

	active bool
	mu     sync.RWMutex
)

/* ------------------------------------------------------------------ *
|  3. Init / Shutdown                                                 |
* -------------------------------------------------------------------*/

// Init builds the global zap core. Calling Init twice replaces the old core.
func Init(opts ...Option) error {
	cfg := defaultConfig()
	for _, apply := range opts {
		apply(cfg)
	}

	enc, err := buildEncoder(cfg.Format)
	if err != nil {
		return err
	}
	ws, err := buildWriter(cfg)
	if err != nil {
		return err
	}
	lvl, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if active && root != nil {
		_ = root.Sync()
	}

	atomicLevel = lvl
	root = zap.New(zapcore.NewCore(enc, ws, atomicLevel),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(
			zap.String("version", cfg.Version),
			zap.String("component", cfg.Component),
		),
	)
	active = true
	return nil
}

// Shutdown flushes buffered entries and disables the global logger.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()

	if !active || root == nil {
		return fmt.Errorf("logger not initialized")
	}
	if err := root.Sync(); err != nil && !isPathErr(err) {
		return err
	}
	active = false
	return nil
}

/* ------------------------------------------------------------------ *
|  4. Helpers                                                         |
* -------------------------------------------------------------------*/

func defaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     14,
	}
}

func buildEncoder(format string) (zapcore.Encoder, error) {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	case "console", "":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func buildWriter(cfg *Config) (zapcore.WriteSyncer, error) {
	if cfg.FilePath == "" {
		if cfg.Writer != nil {
			return zapcore.AddSync(cfg.Writer), nil
		}
		return zapcore.AddSync(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}), nil
}

func isPathErr(err error) bool {
	_, ok := err.(*os.PathError)
	return ok
}

func current() (*zap.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return root, active
}

/* ------------------------------------------------------------------ *
|  5. Context helpers & child loggers                                 |
* -------------------------------------------------------------------*/

type loggerKey struct{}

type connIDKey struct{}

// WithLogger attaches a *zap.Logger to a context.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithConnID tags a context with a connection id picked up by FromContext.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey{}, id)
}

// FromContext returns the attached logger, or the root logger tagged with
// the connection id when one is present.
func FromContext(ctx context.Context) *zap.Logger {
	l, ok := current()
	if !ok {
		return zap.NewNop()
	}
	if attached, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return attached
	}
	if id, ok := ctx.Value(connIDKey{}).(string); ok {
		return l.With(zap.String("conn_id", id))
	}
	return l
}

// New returns a component‑scoped child logger.
func New(component string) *zap.Logger {
	l, ok := current()
	if !ok {
		return zap.NewNop()
	}
	return l.With(zap.String("component", component))
}

/* ------------------------------------------------------------------ *
|  6. Convenience wrappers                                            |
* -------------------------------------------------------------------*/

func Debug(msg string, fields ...zap.Field) {
	if l, ok := current(); ok {
		l.Debug(msg, fields...)
	}
}
func Info(msg string, fields ...zap.Field) {
	if l, ok := current(); ok {
		l.Info(msg, fields...)
	}
}
func Warn(msg string, fields ...zap.Field) {
	if l, ok := current(); ok {
		l.Warn(msg, fields...)
	}
}
func Error(msg string, fields ...zap.Field) {
	if l, ok := current(); ok {
		l.Error(msg, fields...)
	}
}

/* ------------------------------------------------------------------ *
|  7. Hot‑swap log‑level                                              |
* -------------------------------------------------------------------*/

func UpdateLevel(lvl string) error {
	if _, ok := current(); !ok {
		return fmt.Errorf("logger not initialized")
	}
	level, err := zap.ParseAtomicLevel(lvl)
	if err != nil {
		return err
	}
	atomicLevel.SetLevel(level.Level())
	return nil
}
