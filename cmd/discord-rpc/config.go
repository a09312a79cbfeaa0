package main

import (
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Zereker/discordrpc"
)

// Config is the configuration of the discord-rpc command.
type Config struct {
	ClientID       string         `yaml:"client_id"`
	Transport      string         `yaml:"transport"`
	ConnectTimeout time.Duration  `yaml:"connect_timeout"`
	Origin         string         `yaml:"origin"`
	Logger         LoggerConfig   `yaml:"logger"`
	Activity       ActivityConfig `yaml:"activity"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ActivityConfig is the presence shown by the presence command.
type ActivityConfig struct {
	State          string              `yaml:"state"`
	Details        string              `yaml:"details"`
	LargeImageKey  string              `yaml:"large_image_key"`
	LargeImageText string              `yaml:"large_image_text"`
	SmallImageKey  string              `yaml:"small_image_key"`
	SmallImageText string              `yaml:"small_image_text"`
	Timestamp      bool                `yaml:"timestamp"`
	Buttons        []discordrpc.Button `yaml:"buttons"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Transport:      "ipc",
		ConnectTimeout: 10 * time.Second,
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(err, "parse config")
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrap(err, "read config")
		}
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps DISCORDRPC_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISCORDRPC_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("DISCORDRPC_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("DISCORDRPC_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if !slices.Contains(discordrpc.Transports(), c.Transport) {
		return errors.Wrapf(discordrpc.ErrInvalidTransport, "%q", c.Transport)
	}
	if _, err := parseLevel(c.Logger.Level); err != nil {
		return err
	}
	switch c.Logger.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Logger.Format)
	}
	return nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LoggerConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, errors.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// activity converts the configured presence.
func (a ActivityConfig) activity(now time.Time) discordrpc.Activity {
	act := discordrpc.Activity{
		State:          a.State,
		Details:        a.Details,
		LargeImageKey:  a.LargeImageKey,
		LargeImageText: a.LargeImageText,
		SmallImageKey:  a.SmallImageKey,
		SmallImageText: a.SmallImageText,
		Buttons:        a.Buttons,
	}
	if a.Timestamp {
		act.StartTimestamp = now
	}
	return act
}
