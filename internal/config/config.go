package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/rising-multiplier/internal/engine"
)

type Config struct {
	Addr            string
	LogLevel        string
	LogFormat       string // "json" or "console"
	AllowedOrigins  []string
	TuningFile      string
	DatabaseURL     string // empty disables the round journal
	WSRateLimit     float64
	WSRateBurst     int
	ShutdownTimeout time.Duration
	Tuning          Tuning
}

// Tuning is the gameplay side of the configuration, read from TUNING_FILE.
type Tuning struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	FreezeProbability float64       `yaml:"freeze_probability"`
	MaxTicks          int           `yaml:"max_ticks"` // 0 = uncapped
	StartingBalance   float64       `yaml:"starting_balance"`
	AutoPlayers       int           `yaml:"auto_players"`
	DefaultSpeed      float64       `yaml:"default_speed"`
	AutoMaxTarget     float64       `yaml:"auto_max_target"`
	Growth            engine.Growth `yaml:"growth"`
}

func DefaultTuning() Tuning {
	return Tuning{
		TickInterval:      100 * time.Millisecond,
		FreezeProbability: 0.1,
		MaxTicks:          600,
		StartingBalance:   100,
		AutoPlayers:       4,
		DefaultSpeed:      1,
		AutoMaxTarget:     10,
		Growth:            engine.DefaultGrowth(),
	}
}

func Default() Config {
	return Config{
		Addr:            ":4000",
		LogLevel:        "info",
		LogFormat:       "json",
		AllowedOrigins:  []string{"localhost:3000"},
		WSRateLimit:     20,
		WSRateBurst:     40,
		ShutdownTimeout: 5 * time.Second,
		Tuning:          DefaultTuning(),
	}
}

// Load reads the given .env files (default ".env"; missing files are fine),
// then the environment, then the tuning file, and validates the result.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	var errs error

	cfg.Addr = str("ADDR", cfg.Addr)
	cfg.LogLevel = str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = str("LOG_FORMAT", cfg.LogFormat)
	cfg.TuningFile = str("TUNING_FILE", "")
	cfg.DatabaseURL = str("DATABASE_URL", "")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	var err error
	if cfg.WSRateLimit, err = float("WS_RATE_LIMIT", cfg.WSRateLimit); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.WSRateBurst, err = integer("WS_RATE_BURST", cfg.WSRateBurst); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.ShutdownTimeout, err = duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return Config{}, errs
	}

	if cfg.TuningFile != "" {
		if cfg.Tuning, err = LoadTuning(cfg.TuningFile, cfg.Tuning); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadTuning overlays the YAML file at path on base. Keys absent from the
// file keep their base value.
func LoadTuning(path string, base Tuning) (Tuning, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning %s: %w", path, err)
	}
	t := base
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning %s: %w", path, err)
	}
	return t, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Addr != "", "ADDR must not be empty")
	check(c.LogFormat == "json" || c.LogFormat == "console", "LOG_FORMAT must be json or console, got %q", c.LogFormat)
	check(len(c.AllowedOrigins) > 0, "ALLOWED_ORIGINS must list at least one origin")
	check(c.WSRateLimit > 0, "WS_RATE_LIMIT must be positive, got %v", c.WSRateLimit)
	check(c.WSRateBurst >= 1, "WS_RATE_BURST must be at least 1, got %d", c.WSRateBurst)
	check(c.ShutdownTimeout > 0, "SHUTDOWN_TIMEOUT must be positive, got %v", c.ShutdownTimeout)

	t := c.Tuning
	check(t.TickInterval > 0, "tick_interval must be positive, got %v", t.TickInterval)
	check(t.FreezeProbability >= 0 && t.FreezeProbability <= 1, "freeze_probability must be within [0, 1], got %v", t.FreezeProbability)
	check(t.MaxTicks >= 0, "max_ticks must not be negative, got %d", t.MaxTicks)
	check(t.StartingBalance >= 0, "starting_balance must not be negative, got %v", t.StartingBalance)
	check(t.AutoPlayers >= 0, "auto_players must not be negative, got %d", t.AutoPlayers)
	check(t.DefaultSpeed > 0, "default_speed must be positive, got %v", t.DefaultSpeed)
	check(t.AutoMaxTarget >= 0, "auto_max_target must not be negative, got %v", t.AutoMaxTarget)

	g := t.Growth
	check(g.Capacity > 0, "growth.capacity must be positive, got %v", g.Capacity)
	check(g.MinRate > 0, "growth.min_rate must be positive, got %v", g.MinRate)
	check(g.MaxRate >= g.MinRate, "growth.max_rate must be at least min_rate, got %v", g.MaxRate)
	check(g.Threshold > 0, "growth.threshold must be positive, got %v", g.Threshold)
	check(g.Noise >= 0, "growth.noise must not be negative, got %v", g.Noise)

	return errs
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func float(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func integer(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
