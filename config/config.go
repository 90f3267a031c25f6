// Package config loads recompiler settings from TOML.
//
//	[cache]
//	capacity = 4096
//
//	[compile]
//	workers = 4
//
//	[dump]
//	enabled = true
//	dir = "shader_dumps"
//
//	[host]
//	supports_depth_clip_control = true
//
//	[log]
//	level = "debug"
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/shaderjit"
	"github.com/gogpu/shaderjit/runtimeinfo"
)

// Config holds recompiler settings.
type Config struct {
	Cache   Cache   `toml:"cache"`
	Compile Compile `toml:"compile"`
	Dump    Dump    `toml:"dump"`
	Host    Host    `toml:"host"`
	Log     Log     `toml:"log"`
}

// Cache configures the program cache.
type Cache struct {
	// Capacity bounds cached programs. 0 means unbounded.
	Capacity int `toml:"capacity"`
}

// Compile configures compilation.
type Compile struct {
	// Workers is the compile parallelism. 0 means GOMAXPROCS.
	Workers int `toml:"workers"`
}

// Dump configures per-phase IR dumps.
type Dump struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Host describes the host backend.
type Host struct {
	SupportsDepthClipControl bool `toml:"supports_depth_clip_control"`
}

// Log configures logging.
type Log struct {
	// Level is one of off, debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the default settings.
func Default() Config {
	return Config{
		Dump: Dump{Dir: "shader_dumps"},
		Host: Host{SupportsDepthClipControl: true},
		Log:  Log{Level: "off"},
	}
}

// Load reads settings from a TOML file. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes settings from TOML. Missing keys keep their defaults;
// unknown keys are an error.
func Parse(data []byte) (Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}
	if c.Compile.Workers < 0 {
		return fmt.Errorf("compile.workers must not be negative, got %d", c.Compile.Workers)
	}
	if c.Dump.Enabled && c.Dump.Dir == "" {
		return fmt.Errorf("dump.dir is required when dumps are enabled")
	}
	if _, _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

// level returns the slog level and whether logging is on.
func (l Log) level() (slog.Level, bool, error) {
	s := strings.ToLower(strings.TrimSpace(l.Level))
	if s == "" || s == "off" {
		return 0, false, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, false, fmt.Errorf("log.level: %w", err)
	}
	return lvl, true, nil
}

// Options converts the settings to recompiler options. Logging, when on,
// goes to stderr.
func (c Config) Options() []shaderjit.Option {
	opts := []shaderjit.Option{
		shaderjit.WithCacheCapacity(c.Cache.Capacity),
		shaderjit.WithWorkers(c.Compile.Workers),
		shaderjit.WithProfile(runtimeinfo.Profile{
			SupportsDepthClipControl: c.Host.SupportsDepthClipControl,
		}),
	}
	if c.Dump.Enabled {
		opts = append(opts, shaderjit.WithDumpDir(c.Dump.Dir))
	}
	if lvl, on, err := c.Log.level(); err == nil && on {
		opts = append(opts, shaderjit.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))))
	}
	return opts
}
