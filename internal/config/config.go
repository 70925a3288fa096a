// Package config loads bot settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken   string   `env:"DISCORD_TOKEN,required,notEmpty"`
	Prefix         string   `env:"BOT_PREFIX" envDefault:"!"`
	GuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	StoragePath    string   `env:"STORAGE_PATH" envDefault:"datastore.json"`

	LavalinkName     string `env:"LAVALINK_NAME" envDefault:"main"`
	LavalinkHost     string `env:"LAVALINK_HOST" envDefault:"localhost"`
	LavalinkPort     int    `env:"LAVALINK_PORT" envDefault:"2333"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`

	SearchSource      string        `env:"SEARCH_SOURCE" envDefault:"youtube"`
	MaxQueueSize      int           `env:"MAX_QUEUE_SIZE" envDefault:"1000"`
	DefaultVolume     int           `env:"DEFAULT_VOLUME" envDefault:"50"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT" envDefault:"5s"`
	ConnectionTimeout time.Duration `env:"CONNECTION_TIMEOUT" envDefault:"30s"`
	ReconnectAttempts int           `env:"RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
	IdleTimeout       time.Duration `env:"AUTO_DISCONNECT_IDLE_TIME" envDefault:"300s"`

	RateLimitEnabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerUser  int           `env:"RATE_LIMIT_PER_USER" envDefault:"5"`
	RateLimitCooldown time.Duration `env:"RATE_LIMIT_COOLDOWN" envDefault:"60s"`

	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	CacheSize    int           `env:"CACHE_SIZE" envDefault:"100"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE" envDefault:"musicbot.log"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`
}

// Load reads envFile if it exists and parses the environment. A missing
// file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrapf(err, "load %s", envFile)
			}
			log.Info().Str("file", envFile).Msg("no env file found, using system environment")
		}
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	cfg.SearchSource = strings.ToLower(strings.TrimSpace(cfg.SearchSource))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the bot cannot run with.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = errors.CombineErrors(errs, errors.Newf(format, args...))
		}
	}

	check(c.Prefix != "", "BOT_PREFIX must not be empty")
	check(c.LavalinkPort > 0 && c.LavalinkPort < 65536, "LAVALINK_PORT %d is out of range", c.LavalinkPort)
	check(c.MaxQueueSize > 0, "MAX_QUEUE_SIZE must be positive, got %d", c.MaxQueueSize)
	check(c.DefaultVolume >= 0 && c.DefaultVolume <= 100, "DEFAULT_VOLUME must be within 0-100, got %d", c.DefaultVolume)
	check(c.BackendTimeout > 0, "BACKEND_TIMEOUT must be positive")
	check(c.ConnectionTimeout > 0, "CONNECTION_TIMEOUT must be positive")
	check(c.ReconnectAttempts > 0, "RECONNECT_ATTEMPTS must be positive")
	check(c.IdleTimeout >= 0, "AUTO_DISCONNECT_IDLE_TIME must not be negative")
	check(!c.RateLimitEnabled || c.RateLimitPerUser > 0, "RATE_LIMIT_PER_USER must be positive")
	check(!c.RateLimitEnabled || c.RateLimitCooldown > 0, "RATE_LIMIT_COOLDOWN must be positive")
	check(!c.CacheEnabled || c.CacheSize > 0, "CACHE_SIZE must be positive")
	switch c.SearchSource {
	case "youtube", "soundcloud":
	default:
		check(false, "SEARCH_SOURCE %q is not searchable", c.SearchSource)
	}
	return errs
}

// IsBlacklisted reports whether the bot should ignore guildID.
func (c *Config) IsBlacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if strings.TrimSpace(id) == guildID {
			return true
		}
	}
	return false
}
