package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"breathe/internal/core/breathing"
	"breathe/internal/core/calibration"
	"breathe/internal/core/patterns"
	"breathe/internal/storage"

	"github.com/spf13/viper"
)

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// EngineConfig tunes the breathing indicator.
type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// CalibrationConfig tunes breath recording.
type CalibrationConfig struct {
	Trials       int           `mapstructure:"trials"`
	Window       int           `mapstructure:"window"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	FullBreath   time.Duration `mapstructure:"full_breath"`
}

// PatternsConfig holds pattern store policy.
type PatternsConfig struct {
	ClearCustomOnSwitch bool `mapstructure:"clear_custom_on_switch"`
}

// Config is the full runtime configuration.
type Config struct {
	Store       StoreConfig       `mapstructure:"store"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Patterns    PatternsConfig    `mapstructure:"patterns"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", storage.BackendYAML)
	v.SetDefault("store.path", "")
	v.SetDefault("engine.tick_interval", breathing.DefaultTickInterval)
	v.SetDefault("calibration.trials", calibration.DefaultTrials)
	v.SetDefault("calibration.window", calibration.DefaultWindow)
	v.SetDefault("calibration.tick_interval", calibration.DefaultTickInterval)
	v.SetDefault("calibration.full_breath", calibration.DefaultFullBreath)
	v.SetDefault("patterns.clear_custom_on_switch", true)
}

// Load reads configuration into a Config. An explicit configPath must exist;
// otherwise config.yaml is looked up in searchDirs and may be absent.
// Environment variables prefixed BREATHE_ override file values.
func Load(v *viper.Viper, configPath string, searchDirs ...string) (Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("BREATHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		log.Println("config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	switch cfg.Store.Backend {
	case "":
		cfg.Store.Backend = storage.BackendYAML
	case storage.BackendYAML, storage.BackendSQLite:
	default:
		return fmt.Errorf("store.backend %q: %w", cfg.Store.Backend, storage.ErrUnknownBackend)
	}

	if cfg.Engine.TickInterval <= 0 {
		log.Printf("warning: engine.tick_interval %v too low, using %v", cfg.Engine.TickInterval, breathing.DefaultTickInterval)
		cfg.Engine.TickInterval = breathing.DefaultTickInterval
	}
	if cfg.Calibration.Trials < 1 {
		log.Printf("warning: calibration.trials %d invalid, using %d", cfg.Calibration.Trials, calibration.DefaultTrials)
		cfg.Calibration.Trials = calibration.DefaultTrials
	}
	if cfg.Calibration.Window < 1 {
		log.Printf("warning: calibration.window %d invalid, using %d", cfg.Calibration.Window, calibration.DefaultWindow)
		cfg.Calibration.Window = calibration.DefaultWindow
	}
	if cfg.Calibration.TickInterval <= 0 {
		cfg.Calibration.TickInterval = calibration.DefaultTickInterval
	}
	if cfg.Calibration.FullBreath <= 0 {
		cfg.Calibration.FullBreath = calibration.DefaultFullBreath
	}
	return nil
}

// EngineOptions converts the config for breathing.New.
func (cfg Config) EngineOptions() breathing.Config {
	return breathing.Config{TickInterval: cfg.Engine.TickInterval}
}

// RecorderOptions converts the config for calibration.New.
func (cfg Config) RecorderOptions() calibration.Config {
	return calibration.Config{
		Trials:       cfg.Calibration.Trials,
		Window:       cfg.Calibration.Window,
		FullBreath:   cfg.Calibration.FullBreath,
		TickInterval: cfg.Calibration.TickInterval,
	}
}

// PatternOptions converts the config for patterns.New.
func (cfg Config) PatternOptions() patterns.Options {
	return patterns.Options{ClearCustomOnSwitch: cfg.Patterns.ClearCustomOnSwitch}
}
