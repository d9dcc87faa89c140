package vm

import (
	"fmt"
	"gopheraml/kernel/kfmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls the interpreter limits and the values reported by the
// predefined OS identification objects.
type Config struct {
	// OSName is the string returned by \_OS.
	OSName string `yaml:"os_name"`

	// Revision is the value returned by \_REV.
	Revision uint64 `yaml:"revision"`

	// LockTimeout bounds how long kernel-side mutex acquires wait when
	// the caller passes a negative timeout. Zero means wait forever.
	LockTimeout Duration `yaml:"lock_timeout"`

	MaxCallDepth      int `yaml:"max_call_depth"`
	MaxLoopIterations int `yaml:"max_loop_iterations"`
	MaxNesting        int `yaml:"max_nesting"`

	// DebugBufferSize is the capacity of the ring buffer that captures
	// stores to the Debug object when no DebugWriter is set.
	DebugBufferSize int `yaml:"debug_buffer_size"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	Logger      *slog.Logger `yaml:"-"`
	DebugWriter io.Writer    `yaml:"-"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig() Config {
	return Config{
		OSName:            "Microsoft Windows NT",
		Revision:          2,
		MaxCallDepth:      64,
		MaxLoopIterations: 0xffff,
		MaxNesting:        256,
		DebugBufferSize:   kfmt.DefaultRingBufferSize,
		LogLevel:          "info",
	}
}

// ParseConfig decodes a YAML document on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse vm config: %w", err)
	}

	if _, err := cfg.level(); err != nil {
		return Config{}, err
	}

	cfg.fillDefaults()
	return cfg, nil
}

// LoadConfig reads a YAML config file. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read vm config: %w", err)
	}

	return ParseConfig(data)
}

// fillDefaults replaces non-positive limits with their default values.
func (cfg *Config) fillDefaults() {
	def := DefaultConfig()
	if cfg.OSName == "" {
		cfg.OSName = def.OSName
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = def.MaxCallDepth
	}
	if cfg.MaxLoopIterations <= 0 {
		cfg.MaxLoopIterations = def.MaxLoopIterations
	}
	if cfg.MaxNesting <= 0 {
		cfg.MaxNesting = def.MaxNesting
	}
	if cfg.DebugBufferSize <= 0 {
		cfg.DebugBufferSize = def.DebugBufferSize
	}
}

func (cfg *Config) level() (slog.Level, error) {
	var level slog.Level
	if cfg.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return level, nil
}

// logger returns the configured logger. Without one, records at LogLevel
// or above go to stderr.
func (cfg *Config) logger() *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}

	return cfg.NewLogger(os.Stderr)
}

// NewLogger returns a text logger writing records at LogLevel or above to w.
// An invalid LogLevel selects info.
func (cfg *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := cfg.level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
