// Package config loads sitebot settings from defaults, an optional file,
// SITEBOT_* environment variables and command line flags, in that order.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/morikuni/failure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrorCode defines error types for configuration
type ErrorCode string

const (
	// ErrInvalidConfig represents settings that failed to load or validate
	ErrInvalidConfig ErrorCode = "InvalidConfig"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SITEBOT"

// Config holds all settings of a sitebot run.
type Config struct {
	Site  SiteConfig  `mapstructure:"site"`
	Chat  ChatConfig  `mapstructure:"chat"`
	Relay RelayConfig `mapstructure:"relay"`
	Page  PageConfig  `mapstructure:"page"`
	Cache CacheConfig `mapstructure:"cache"`
	Log   LogConfig   `mapstructure:"log"`
}

// SiteConfig names the site the assistant answers for.
type SiteConfig struct {
	Origin string `mapstructure:"origin" validate:"required,http_url"`
}

// ChatConfig points at the remote chat-completion service.
type ChatConfig struct {
	Endpoint string        `mapstructure:"endpoint" validate:"required,http_url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// RelayConfig lists the relays tried for the sitemap and for pages.
type RelayConfig struct {
	Sitemap    []string      `mapstructure:"sitemap" validate:"min=1,dive,required"`
	Page       []string      `mapstructure:"page" validate:"min=1,dive,required"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Backoff    time.Duration `mapstructure:"backoff" validate:"gte=0"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// Policy converts the retry settings for relay chains.
func (c RelayConfig) Policy() relay.Policy {
	return relay.Policy{
		MaxRetries: c.MaxRetries,
		Backoff:    c.Backoff,
		MaxBackoff: c.MaxBackoff,
		Timeout:    c.Timeout,
	}
}

// PageConfig controls how page content is handed to the chat endpoint.
type PageConfig struct {
	Format string `mapstructure:"format" validate:"oneof=raw markdown"`
}

// CacheConfig controls the on-disk sitemap cache. A zero TTL disables it.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Dir string        `mapstructure:"dir"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	policy := relay.DefaultPolicy()

	v.SetDefault("site.origin", "")
	v.SetDefault("chat.endpoint", "http://localhost:8000")
	v.SetDefault("chat.timeout", 30*time.Second)
	v.SetDefault("relay.sitemap", relay.DefaultSitemapRelays)
	v.SetDefault("relay.page", relay.DefaultPageRelays)
	v.SetDefault("relay.max_retries", policy.MaxRetries)
	v.SetDefault("relay.backoff", policy.Backoff)
	v.SetDefault("relay.max_backoff", policy.MaxBackoff)
	v.SetDefault("relay.timeout", policy.Timeout)
	v.SetDefault("page.format", "raw")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("cache.dir", "")
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds flags to keys. Flags that are absent from fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return failure.Wrap(err, failure.WithCode(ErrInvalidConfig),
				failure.Context{"key": key, "flag": name},
			)
		}
	}
	return nil
}

// ReadFile reads path, or looks for sitebot.{yaml,toml,json} in the working
// directory and the user config directory when path is empty. A missing
// optional file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sitebot")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "sitebot"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return failure.Wrap(err, failure.WithCode(ErrInvalidConfig),
			failure.Message("Failed to read config file"),
			failure.Context{"path": path},
		)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, failure.Wrap(err, failure.WithCode(ErrInvalidConfig),
			failure.Message("Failed to decode configuration"),
		)
	}
	cfg.Site.Origin = strings.TrimSuffix(strings.TrimSpace(cfg.Site.Origin), "/")
	cfg.Page.Format = strings.ToLower(cfg.Page.Format)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := validate.Struct(&cfg); err != nil {
		return nil, failure.Wrap(err, failure.WithCode(ErrInvalidConfig),
			failure.Message(describe(err)),
		)
	}
	return &cfg, nil
}

// Load reads the file at path (see ReadFile) and decodes the result.
func Load(path string) (*Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, keyOf(fe.Namespace())+" is invalid ("+fe.Tag()+")")
	}
	return strings.Join(msgs, "; ")
}

// keyOf turns "Config.site.origin" into "site.origin".
func keyOf(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}
