package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Shugur-Network/edge-relay/internal/logger"
	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

//go:embed defaults.yaml
var defaultYAML []byte

// Version is set at runtime from build information
var Version = "dev"

// EnvPrefix prefixes every environment override, e.g. EDGE_RELAY_WS_ADDR.
const EnvPrefix = "EDGE"

var (
	validate   = validator.New()
	hexPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	hostRegexp = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)
)

// Config holds every sub‑config.
type Config struct {
	Relay     RelayConfig     `mapstructure:"relay"      validate:"required"`
	Policy    PolicyConfig    `mapstructure:"policy"     validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"    validate:"required"`
	Logging   LoggingConfig   `mapstructure:"logging"    validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics"    validate:"required"`
}

func init() {
	registerCustomValidators()
	validate.RegisterStructValidation(performCrossFieldValidation, Config{})
}

// registerCustomValidators registers custom validation functions
func registerCustomValidators() {
	register := func(tag string, fn validator.Func) {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			logger.Error("Failed to register validator", zap.String("tag", tag), zap.Error(err))
		}
	}

	// ":4869" or "host:4869"
	register("wsaddr", func(fl validator.FieldLevel) bool {
		return validWSAddr(fl.Field().String())
	})

	register("pubkey", func(fl validator.FieldLevel) bool {
		key := fl.Field().String()
		return key == "" || hexPattern.MatchString(key)
	})

	register("seckey", func(fl validator.FieldLevel) bool {
		key := fl.Field().String()
		return key == "" || hexPattern.MatchString(key)
	})

	register("reasonable_duration", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(time.Duration)
		return ok && d >= time.Second && d <= 24*time.Hour
	})

	register("timeout_duration", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(time.Duration)
		return ok && d >= time.Second && d <= time.Hour
	})

	register("positive_duration", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(time.Duration)
		return ok && d > 0
	})

	register("log_level", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "debug", "info", "warn", "error", "fatal":
			return true
		}
		return false
	})

	register("log_format", func(fl validator.FieldLevel) bool {
		format := fl.Field().String()
		return format == "console" || format == "json"
	})
}

func validWSAddr(addr string) bool {
	if addr == "" {
		return false
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return false
	}
	if host == "" || net.ParseIP(host) != nil {
		return true
	}
	return hostRegexp.MatchString(host)
}

// performCrossFieldValidation performs validation across multiple fields
func performCrossFieldValidation(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	if cfg.Metrics.Enabled {
		if _, port, err := net.SplitHostPort(cfg.Relay.WSAddr); err == nil && port == strconv.Itoa(cfg.Metrics.Port) {
			sl.ReportError(cfg.Metrics.Port, "Port", "Port", "port_conflict", "")
		}
	}

	if cfg.Relay.PublicURL != "" {
		if parsedURL, err := url.Parse(cfg.Relay.PublicURL); err == nil {
			if parsedURL.Scheme != "ws" && parsedURL.Scheme != "wss" {
				sl.ReportError(cfg.Relay.PublicURL, "PublicURL", "PublicURL", "invalid_websocket_scheme", "")
			}
		}
	}

	// Anything admitted must stay queryable until it would be rejected as too old.
	if cfg.Storage.Retention < cfg.Policy.MaxFuture || cfg.Storage.Retention < cfg.Policy.MaxAge {
		sl.ReportError(cfg.Storage.Retention, "Retention", "Retention", "retention_too_short", "")
	}
}

/* ------------------------------------------------------------------ *
|  Public API                                                         |
* -------------------------------------------------------------------*/

// SetVersion sets the version from build information
func SetVersion(v string) {
	Version = v
}

// Load merges defaults → file (optional) → env vars, validates, initializes
// the global logger and returns cfg.
func Load(path string, log *zap.Logger) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.MergeInConfig(); err != nil {
			if log != nil {
				log.Info("No config.yaml found, using defaults")
			}
		} else if log != nil {
			log.Info("Loaded config.yaml from current directory")
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := initializeLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if log != nil {
		log.Info("configuration loaded",
			zap.String("version", Version),
			zap.String("level", cfg.Logging.Level),
			zap.String("format", cfg.Logging.Format),
		)
	}
	return cfg, nil
}

// Default returns the validated embedded defaults (env overrides included)
// without touching the global logger.
func Default() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs every struct and cross-field rule against cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// initializeLogger initializes the logger using the LoggingConfig
func initializeLogger(loggingConfig LoggingConfig) error {
	return logger.Init(
		logger.WithLevel(loggingConfig.Level),
		logger.WithFormat(loggingConfig.Format),
		logger.WithFile(loggingConfig.FilePath),
		logger.WithVersion(Version),
		logger.WithComponent("relay"),
		logger.WithRotation(loggingConfig.MaxSize, loggingConfig.MaxBackups, loggingConfig.MaxAge),
	)
}

// formatValidationError converts validator errors into user-friendly messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return fmt.Errorf("configuration validation failed: %w", err)
}

// getFieldErrorMessage returns a user-friendly error message for a field validation error
func getFieldErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	value := fe.Value()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required but not provided", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, param, value)
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", field, param, value)
	case "gt", "lt":
		return fmt.Sprintf("%s is out of range (got: %v)", field, value)
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", field, value)
	case "wsaddr":
		return fmt.Sprintf("%s must be a valid WebSocket address in format ':port' or 'host:port' (got: %v)", field, value)
	case "pubkey":
		return fmt.Sprintf("%s must be a 64-character hexadecimal string (got: %v)", field, value)
	case "seckey":
		return fmt.Sprintf("%s must be a 64-character hexadecimal string", field)
	case "reasonable_duration":
		return fmt.Sprintf("%s must be between 1 second and 24 hours (got: %v)", field, value)
	case "timeout_duration":
		return fmt.Sprintf("%s must be between 1 second and 1 hour (got: %v)", field, value)
	case "positive_duration":
		return fmt.Sprintf("%s must be a positive duration (got: %v)", field, value)
	case "log_level":
		return fmt.Sprintf("%s must be one of: debug, info, warn, error, fatal (got: %v)", field, value)
	case "log_format":
		return fmt.Sprintf("%s must be either 'console' or 'json' (got: %v)", field, value)
	case "port_conflict":
		return "metrics port conflicts with the relay listen port, they must be different"
	case "invalid_websocket_scheme":
		return fmt.Sprintf("%s must use 'ws://' or 'wss://' scheme for WebSocket connections", field)
	case "retention_too_short":
		return fmt.Sprintf("%s must not be shorter than the future tolerance or the maximum event age (got: %v)", field, value)
	default:
		return fmt.Sprintf("%s validation failed: %s (got: %v)", field, fe.Tag(), value)
	}
}
