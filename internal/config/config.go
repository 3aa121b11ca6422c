// Package config loads animlist settings from defaults, an optional YAML
// file, a .env file and ANIMLIST_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/animlist/internal/logging"
	"github.com/roach88/animlist/internal/session"
)

// EnvPrefix prefixes every environment override, e.g.
// ANIMLIST_ANIMATION_DURATION_MS.
const EnvPrefix = "ANIMLIST"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "animlist.yaml"

// Config holds all configuration for the application.
type Config struct {
	// Animation tunes frame construction and the settle delay.
	Animation AnimationConfig `mapstructure:"animation"`
	// Log configures the logger.
	Log LogConfig `mapstructure:"log"`
	// Server configures the HTTP surface.
	Server ServerConfig `mapstructure:"server"`
	// Journal configures the frame journal.
	Journal JournalConfig `mapstructure:"journal"`
}

// AnimationConfig holds session options.
type AnimationConfig struct {
	DurationMS    int    `mapstructure:"duration_ms" default:"400"`
	ReverseLayout bool   `mapstructure:"reverse_layout" default:"false"`
	GhostSuffix   string `mapstructure:"ghost_suffix" default:"-temp"`
	IndexLookup   bool   `mapstructure:"index_lookup" default:"false"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"text"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string `mapstructure:"addr" default:":8080"`
	ReadHeaderTimeout int    `mapstructure:"read_header_timeout_ms" default:"5000"`
}

// JournalConfig holds frame journal settings. An empty path disables it.
type JournalConfig struct {
	Path string `mapstructure:"path" default:""`
}

// Load reads configuration. file may be empty, in which case animlist.yaml
// in the working directory is used when present. A .env file next to the
// config file (or in the working directory) overrides the process
// environment.
func Load(file string) (*Config, error) {
	dir := "."
	if file != "" {
		dir = filepath.Dir(file)
	}
	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(filepath.Join(dir, ".env"))

	v := viper.New()
	bindValues(v, Config{}, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, filepath.Ext(DefaultFile)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from struct tag defaults only.
func Default() *Config {
	v := viper.New()
	bindValues(v, Config{}, "")
	var cfg Config
	// Defaults are literals under our control; decoding them cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Animation.DurationMS < 0 {
		return fmt.Errorf("animation.duration_ms must be >= 0, got %d", c.Animation.DurationMS)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Duration returns the animation duration.
func (a AnimationConfig) Duration() time.Duration {
	return time.Duration(a.DurationMS) * time.Millisecond
}

// SessionOptions maps the animation settings to session options.
func (a AnimationConfig) SessionOptions() []session.Option {
	return []session.Option{
		session.WithDuration(a.Duration()),
		session.WithReverseLayout(a.ReverseLayout),
		session.WithGhostSuffix(a.GhostSuffix),
		session.WithIndexLookup(a.IndexLookup),
	}
}

// bindValues uses reflection to iterate over the struct and set default
// values in Viper based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
