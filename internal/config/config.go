package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	// Live channel
	WriteWait        = 10 * time.Second
	PongWait         = 60 * time.Second
	PingPeriod       = (PongWait * 9) / 10
	MaxFrameSize     = 64 * 1024
	SendQueueSize    = 64
	HandshakeTimeout = 10 * time.Second

	// Message store
	TranslationRetention   = 2 * time.Minute
	MaxPendingTranslations = 256

	// Composer
	MaxMessageLength = 4000

	// Backend
	HTTPTimeout       = 15 * time.Second
	DirectoryCacheTTL = 10 * time.Minute
)

// Config is the client configuration read from the environment.
type Config struct {
	ChatServiceURL  string `env:"CHAT_SERVICE_URL,default=http://localhost:8002" validate:"required,url"`
	ChatWSURL       string `env:"CHAT_WS_URL,default=ws://localhost:8002" validate:"required,url"`
	UsersServiceURL string `env:"USERS_SERVICE_URL,default=http://localhost:8001" validate:"required,url"`

	Token    string `env:"CHAT_TOKEN,required=true" validate:"required"`
	Username string `env:"CHAT_USERNAME"`
	UserID   string `env:"CHAT_USER_ID"`
	RoomID   string `env:"CHAT_ROOM_ID"`
	Language string `env:"CHAT_LANGUAGE,default=original"`

	LogLevel   string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	BridgeAddr string `env:"BRIDGE_ADDR,default=:8090" validate:"required"`
	LocalesDir string `env:"LOCALES_DIR"`

	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB,default=0" validate:"gte=0"`
	DirectoryCacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL,default=10m" validate:"gt=0"`

	HTTPTimeout            time.Duration `env:"HTTP_TIMEOUT,default=15s" validate:"gt=0"`
	HandshakeTimeout       time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s" validate:"gt=0"`
	TranslationRetention   time.Duration `env:"TRANSLATION_RETENTION,default=2m" validate:"gt=0"`
	MaxPendingTranslations int           `env:"MAX_PENDING_TRANSLATIONS,default=256" validate:"gt=0"`
}

// Load reads the configuration from the process environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
