// Package config loads project settings from .sniffers.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/odvcencio/sniffers/pkg/digest"
	"github.com/odvcencio/sniffers/pkg/ignore"
	"github.com/odvcencio/sniffers/pkg/store"
)

// DefaultFile is looked up in the working directory.
const DefaultFile = ".sniffers.toml"

// DefaultInterval is the poll interval of the run loop.
const DefaultInterval = 2 * time.Second

// Config holds every project-level setting. Command-line flags override it.
type Config struct {
	Store       string `toml:"store"`
	Algorithm   string `toml:"algorithm"`
	Compress    bool   `toml:"compress"`
	IgnoreFile  string `toml:"ignore_file"`
	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	MetricsFile string `toml:"metrics_file"`
	Run         Run    `toml:"run"`
}

// Run configures the run-on-change loop.
type Run struct {
	Command  string   `toml:"command"`
	Interval Duration `toml:"interval"`
}

// Duration decodes TOML strings such as "500ms" or "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Store:      store.DefaultFile,
		Algorithm:  string(digest.Default),
		IgnoreFile: ignore.DefaultFile,
		LogLevel:   "warn",
		Run:        Run{Interval: Duration{DefaultInterval}},
	}
}

// Load reads path on top of the defaults. A missing file is not an error
// unless required is set. Unknown keys are rejected.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("read config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by decoding.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Store) == "" {
		return fmt.Errorf("store must not be empty")
	}
	if _, err := digest.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Run.Interval.Duration < 0 {
		return fmt.Errorf("run.interval must not be negative")
	}
	return nil
}

// Write encodes c as TOML to path.
func Write(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write config: close: %w", err)
	}
	return nil
}
