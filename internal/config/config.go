// Package config loads limiter settings: built-in defaults, then an optional
// YAML file named by CONFIG_FILE, then environment variables.
package config

import (
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
	"github.com/GriffinCanCode/dynamic-fps/internal/input"
	"github.com/GriffinCanCode/dynamic-fps/internal/screen"
	"github.com/GriffinCanCode/dynamic-fps/internal/similarity"
)

type Config struct {
	TargetWindow        string  `yaml:"target_window"`
	Display             string  `yaml:"display"`
	CaptureRate         float64 `yaml:"capture_rate"` // Hz
	DownscaleFactor     float64 `yaml:"downscale_factor"`
	HashMethod          string  `yaml:"hash_method"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	LongWindow          int     `yaml:"long_window"`
	ShortWindow         int     `yaml:"short_window"`
	GracePeriod         float64 `yaml:"grace_period"`        // seconds
	DiagnosticInterval  float64 `yaml:"diagnostic_interval"` // seconds, 0 disables
	LowChord            string  `yaml:"low_chord"`
	HighChord           string  `yaml:"high_chord"`
	DryRun              bool    `yaml:"dry_run"`
	ReassertOnReacquire bool    `yaml:"reassert_on_reacquire"`
	StatusAddr          string  `yaml:"status_addr"`
	GRPCAddr            string  `yaml:"grpc_addr"`
	JournalSize         int     `yaml:"journal_size"`
	LogLevel            string  `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		TargetWindow:        "VRChat",
		CaptureRate:         24,
		DownscaleFactor:     screen.DefaultScale,
		HashMethod:          string(similarity.MethodAverage),
		SimilarityThreshold: hysteresis.DefaultThreshold,
		LongWindow:          hysteresis.DefaultLongWindow,
		ShortWindow:         hysteresis.DefaultShortWindow,
		GracePeriod:         hysteresis.DefaultGracePeriod.Seconds(),
		DiagnosticInterval:  0.5,
		LowChord:            "ctrl+alt+kp_8",
		HighChord:           "ctrl+alt+kp_9",
		ReassertOnReacquire: true,
		JournalSize:         256,
		LogLevel:            "info",
	}
}

// Load builds the configuration. Only an unreadable or malformed CONFIG_FILE
// is an error here; call Validate for semantic checks.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeConfigInvalid, "read config file").WithMetadata("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.CodeConfigInvalid, "parse config file").WithMetadata("path", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.TargetWindow = getEnv("TARGET_WINDOW", c.TargetWindow)
	c.Display = getEnv("DISPLAY", c.Display)
	c.CaptureRate = getEnvFloat("CAPTURE_RATE", c.CaptureRate)
	c.DownscaleFactor = getEnvFloat("DOWNSCALE_FACTOR", c.DownscaleFactor)
	c.HashMethod = getEnv("HASH_METHOD", c.HashMethod)
	c.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.LongWindow = getEnvInt("LONG_WINDOW", c.LongWindow)
	c.ShortWindow = getEnvInt("SHORT_WINDOW", c.ShortWindow)
	c.GracePeriod = getEnvFloat("GRACE_PERIOD", c.GracePeriod)
	c.DiagnosticInterval = getEnvFloat("DIAGNOSTIC_INTERVAL", c.DiagnosticInterval)
	c.LowChord = getEnv("LOW_CHORD", c.LowChord)
	c.HighChord = getEnv("HIGH_CHORD", c.HighChord)
	c.DryRun = getEnvBool("DRY_RUN", c.DryRun)
	c.ReassertOnReacquire = getEnvBool("REASSERT_ON_REACQUIRE", c.ReassertOnReacquire)
	c.StatusAddr = getEnv("STATUS_ADDR", c.StatusAddr)
	c.GRPCAddr = getEnv("GRPC_ADDR", c.GRPCAddr)
	c.JournalSize = getEnvInt("JOURNAL_SIZE", c.JournalSize)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate reports the first setting the limiter cannot run with as a CONFIG_INVALID error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TargetWindow) == "" {
		return invalid("target_window", "must not be empty")
	}
	if math.IsNaN(c.CaptureRate) || c.CaptureRate <= 0 {
		return invalid("capture_rate", "must be positive")
	}
	if math.IsNaN(c.DownscaleFactor) || c.DownscaleFactor <= 0 || c.DownscaleFactor > 1 {
		return invalid("downscale_factor", "must be in (0, 1]")
	}
	if _, err := similarity.ParseMethod(c.HashMethod); err != nil {
		return err
	}
	if err := c.Controller().Validate(); err != nil {
		return errors.Wrap(err, errors.CodeConfigInvalid, "invalid controller tuning")
	}
	if math.IsNaN(c.DiagnosticInterval) || c.DiagnosticInterval < 0 {
		return invalid("diagnostic_interval", "cannot be negative")
	}
	if _, err := input.ParseChords(c.LowChord, c.HighChord); err != nil {
		return err
	}
	if c.JournalSize < 1 {
		return invalid("journal_size", "must be at least 1")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func invalid(field, reason string) error {
	return errors.Newf(errors.CodeConfigInvalid, "%s %s", field, reason).WithMetadata("field", field)
}

// Controller returns the hysteresis tuning.
func (c *Config) Controller() hysteresis.Config {
	return hysteresis.Config{
		Threshold:   c.SimilarityThreshold,
		LongWindow:  c.LongWindow,
		ShortWindow: c.ShortWindow,
		GracePeriod: seconds(c.GracePeriod),
	}
}

// Screen returns the capture settings.
func (c *Config) Screen() screen.Config {
	sc := screen.DefaultConfig()
	sc.Scale = c.DownscaleFactor
	return sc
}

// Period returns the sampling period derived from CaptureRate.
func (c *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.CaptureRate)
}

// Diagnostics returns the diagnostic logging interval, 0 when disabled.
func (c *Config) Diagnostics() time.Duration { return seconds(c.DiagnosticInterval) }

// Level parses LogLevel (debug, info, warn, error).
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, errors.Wrap(err, errors.CodeConfigInvalid, "invalid log level").
			WithMetadata("field", "log_level")
	}
	return lvl, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
