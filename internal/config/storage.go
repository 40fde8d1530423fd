package config

import "time"

// StorageConfig holds in-memory event store settings.
type StorageConfig struct {
	MaxEvents     int           `mapstructure:"MAX_EVENTS"     json:"max_events"     validate:"min=1,max=10000000"`
	MaxTombstones int           `mapstructure:"MAX_TOMBSTONES" json:"max_tombstones" validate:"min=1,max=10000000"`
	Retention     time.Duration `mapstructure:"RETENTION"      json:"retention"      validate:"positive_duration"`
	PurgeInterval time.Duration `mapstructure:"PURGE_INTERVAL" json:"purge_interval" validate:"reasonable_duration"`
	CompactEvery  int           `mapstructure:"COMPACT_EVERY"  json:"compact_every"  validate:"min=1,max=10000"`
	BloomFPRate   float64       `mapstructure:"BLOOM_FP_RATE"  json:"bloom_fp_rate"  validate:"gt=0,lt=1"`
	Workers       int           `mapstructure:"WORKERS"        json:"workers"        validate:"min=1,max=64"`
}
