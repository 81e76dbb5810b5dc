// Package config loads the storyweaver settings.
//
// Values are layered: defaults, then an optional YAML file, then a .env file, then the
// process environment, then explicit overrides (command line flags). Every layer is
// decoded with mapstructure so that YAML, env strings and flags share one set of keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/storyweaver/internal/logging"
	"github.com/aretw0/storyweaver/pkg/domain"
)

// Config holds every setting of the binary. The mapstructure tag is the YAML key; the
// environment variable is the same key in upper case.
type Config struct {
	Port           int           `mapstructure:"port" yaml:"port"`
	OpenAIAPIKey   string        `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL  string        `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	StoryModel     string        `mapstructure:"story_model" yaml:"story_model"`
	ImageModel     string        `mapstructure:"image_model" yaml:"image_model"`
	BackendURL     string        `mapstructure:"backend_url" yaml:"backend_url"`
	RedisURL       string        `mapstructure:"redis_url" yaml:"redis_url"`
	SessionDir     string        `mapstructure:"session_dir" yaml:"session_dir"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	ImageTimeout   time.Duration `mapstructure:"image_timeout" yaml:"image_timeout"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	FanOutPolicy   string        `mapstructure:"fanout_policy" yaml:"fanout_policy"`
	DefaultScenes  int           `mapstructure:"default_scenes" yaml:"default_scenes"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string        `mapstructure:"log_file" yaml:"log_file"`
}

// Keys lists the configuration keys, in the order of Config.
var Keys = []string{
	"port",
	"openai_api_key",
	"openai_base_url",
	"story_model",
	"image_model",
	"backend_url",
	"redis_url",
	"session_dir",
	"session_ttl",
	"image_timeout",
	"busy_timeout",
	"max_concurrency",
	"fanout_policy",
	"default_scenes",
	"log_level",
	"log_file",
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:           3001,
		SessionDir:     ".storyweaver/sessions",
		SessionTTL:     24 * time.Hour,
		ImageTimeout:   90 * time.Second,
		BusyTimeout:    5 * time.Minute,
		MaxConcurrency: 8,
		FanOutPolicy:   string(domain.FanOutAllOrNothing),
		DefaultScenes:  domain.DefaultNumScenes,
		LogLevel:       "info",
	}
}

// Options selects the sources read by Load.
type Options struct {
	// File is a YAML file. Empty skips it; a missing file is an error.
	File string
	// EnvFile is a dotenv file. A missing file is skipped.
	EnvFile string
	// LookupEnv reads the environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration from defaults, opts.File, opts.EnvFile and the environment.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", opts.File, err)
		}
		if err := cfg.decode(raw); err != nil {
			return cfg, fmt.Errorf("invalid config file %s: %w", opts.File, err)
		}
	}

	env := map[string]string{}
	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to read env file: %w", err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range Keys {
		if v, ok := lookup(strings.ToUpper(key)); ok {
			env[strings.ToUpper(key)] = v
		}
	}
	if err := cfg.Override(fromEnv(env)); err != nil {
		return cfg, fmt.Errorf("invalid environment: %w", err)
	}

	return cfg, cfg.Validate()
}

// Override applies values keyed like the YAML file. Unknown keys are an error.
func (c *Config) Override(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return c.decode(values)
}

// Validate checks the ranges and enumerations.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative: %d", c.MaxConcurrency)
	}
	if c.DefaultScenes < 1 {
		return fmt.Errorf("default_scenes must be at least 1: %d", c.DefaultScenes)
	}
	if c.ImageTimeout < 0 || c.SessionTTL < 0 || c.BusyTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	if _, err := domain.ParseFanOutPolicy(c.FanOutPolicy); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed fan-out policy. Validate must have succeeded.
func (c Config) Policy() domain.FanOutPolicy {
	p, _ := domain.ParseFanOutPolicy(c.FanOutPolicy)
	return p
}

func (c *Config) decode(input map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// fromEnv keeps the non-empty variables that name a configuration key.
func fromEnv(env map[string]string) map[string]any {
	out := make(map[string]any)
	for _, key := range Keys {
		if v := env[strings.ToUpper(key)]; v != "" {
			out[key] = v
		}
	}
	return out
}
