package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type Config struct {
	APIServerHost        string        `env:"API_SERVER_HOST"`
	APIServerPort        string        `env:"API_SERVER_PORT" envDefault:"8000"`
	Env                  Env           `env:"ENV" envDefault:"prod"`
	Rooms                []string      `env:"ROOMS" envDefault:"general,tech,fun,random"`
	TypingWindow         time.Duration `env:"TYPING_WINDOW" envDefault:"1s"`
	AllowedOrigins       []string      `env:"ALLOWED_ORIGINS" envDefault:"*"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE" envDefault:"32768"`
	SendBufferSize       int           `env:"SEND_BUFFER_SIZE" envDefault:"16"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	PingPeriod           time.Duration `env:"PING_PERIOD" envDefault:"54s"`
	RedisHost            string        `env:"REDIS_HOST"`
	RedisPort            string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisAnnounceChannel string        `env:"REDIS_ANNOUNCE_CHANNEL" envDefault:"chatterbox:announcements"`
	RedisPresenceKey     string        `env:"REDIS_PRESENCE_KEY" envDefault:"chatterbox:presence"`
	RedisPresenceTTL     time.Duration `env:"REDIS_PRESENCE_TTL" envDefault:"5m"`
}

func New() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for i, room := range cfg.Rooms {
		cfg.Rooms[i] = strings.TrimSpace(room)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if !c.Env.IsValid() {
		return errors.New("invalid env variable (must be 'prod' or 'dev')")
	}
	if len(c.Rooms) == 0 {
		return errors.New("at least one room must be configured")
	}
	for i, room := range c.Rooms {
		if room == "" {
			return errors.New("room names must not be blank")
		}
		if slices.Contains(c.Rooms[:i], room) {
			return fmt.Errorf("room %q is configured twice", room)
		}
	}
	if c.TypingWindow <= 0 {
		return fmt.Errorf("typing window must be positive, got %s", c.TypingWindow)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize)
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("send buffer size must be positive, got %d", c.SendBufferSize)
	}
	if c.WriteTimeout <= 0 || c.PingPeriod <= 0 {
		return errors.New("write timeout and ping period must be positive")
	}
	return nil
}

// RedisEnabled reports whether the optional Redis features should run.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
