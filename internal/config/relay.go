package config

import "time"

// RelayConfig holds relay-specific settings.
type RelayConfig struct {
	Name          string        `mapstructure:"NAME"            json:"name"            validate:"required,min=1,max=30"`
	Description   string        `mapstructure:"DESCRIPTION"     json:"description"     validate:"omitempty,max=200"`
	Contact       string        `mapstructure:"CONTACT"         json:"contact"         validate:"omitempty,max=200"`
	SecretKey     string        `mapstructure:"SECRET_KEY"      json:"-"               validate:"omitempty,seckey"`
	Icon          string        `mapstructure:"ICON"            json:"icon"            validate:"omitempty,url"`
	WSAddr        string        `mapstructure:"WS_ADDR"         json:"ws_addr"         validate:"required,wsaddr"`
	PublicURL     string        `mapstructure:"PUBLIC_URL"      json:"public_url"      validate:"omitempty,url"`
	DataDir       string        `mapstructure:"DATA_DIR"        json:"data_dir"`
	IdleTimeout   time.Duration `mapstructure:"IDLE_TIMEOUT"    json:"idle_timeout"    validate:"reasonable_duration"`
	WriteTimeout  time.Duration `mapstructure:"WRITE_TIMEOUT"   json:"write_timeout"   validate:"timeout_duration"`
	PingInterval  time.Duration `mapstructure:"PING_INTERVAL"   json:"ping_interval"   validate:"timeout_duration"`
	SendQueueSize int           `mapstructure:"SEND_QUEUE_SIZE" json:"send_queue_size" validate:"min=8,max=65536"`
	MaxMessageLen int64         `mapstructure:"MAX_MESSAGE_LEN" json:"max_message_len" validate:"min=1024,max=33554432"`
	FrameRate     float64       `mapstructure:"FRAME_RATE"      json:"frame_rate"      validate:"min=0"`
	FrameBurst    int           `mapstructure:"FRAME_BURST"     json:"frame_burst"     validate:"min=1"`
}
