package config

// MetricsConfig holds metrics configuration settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"ENABLED" json:"enabled"`
	Port    int  `mapstructure:"PORT"    json:"port"    validate:"min=1024,max=65535"`
}
