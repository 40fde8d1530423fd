package config

import "time"

// PolicyConfig holds event admission and subscription policy.
type PolicyConfig struct {
	MaxFuture        time.Duration `mapstructure:"MAX_FUTURE"         json:"max_future"         validate:"positive_duration"`
	MaxAge           time.Duration `mapstructure:"MAX_AGE"            json:"max_age"            validate:"positive_duration"`
	MaxSubscriptions int           `mapstructure:"MAX_SUBSCRIPTIONS"  json:"max_subscriptions"  validate:"min=1,max=256"`
	MaxFilters       int           `mapstructure:"MAX_FILTERS"        json:"max_filters"        validate:"min=1,max=64"`
	MaxSubIDLength   int           `mapstructure:"MAX_SUBID_LENGTH"   json:"max_subid_length"   validate:"min=1,max=256"`
	MaxLimit         int           `mapstructure:"MAX_LIMIT"          json:"max_limit"          validate:"min=1,max=5000"`
	MaxContentLength int           `mapstructure:"MAX_CONTENT_LENGTH" json:"max_content_length" validate:"min=1,max=1048576"`
	MaxEventTags     int           `mapstructure:"MAX_EVENT_TAGS"     json:"max_event_tags"     validate:"min=1,max=10000"`
	MinPowDifficulty int           `mapstructure:"MIN_POW_DIFFICULTY" json:"min_pow_difficulty" validate:"min=0,max=256"`

	Blacklist struct {
		PubKeys []string `mapstructure:"PUBKEYS" json:"pubkeys" validate:"omitempty,dive,pubkey"`
	} `mapstructure:"BLACKLIST" json:"blacklist"`
}

// RateLimitConfig holds the per-connection fixed-window limits.
type RateLimitConfig struct {
	EventsPerWindow int           `mapstructure:"EVENTS_PER_WINDOW" json:"events_per_window" validate:"min=0,max=100000"`
	ReqsPerWindow   int           `mapstructure:"REQS_PER_WINDOW"   json:"reqs_per_window"   validate:"min=0,max=100000"`
	Window          time.Duration `mapstructure:"WINDOW"            json:"window"            validate:"reasonable_duration"`
}
