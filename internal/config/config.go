// Package config holds the APF engine configuration: defaults, loading through
// viper and validation. Invalid values are rejected when components are built,
// never mid-run.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Arena  ArenaConfig  `mapstructure:"arena" yaml:"arena"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Live   LiveConfig   `mapstructure:"live" yaml:"live"`
	Player PlayerConfig `mapstructure:"player" yaml:"player"`
	Viz    VizConfig    `mapstructure:"viz" yaml:"viz"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"` // empty disables the file sink
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ArenaConfig is the arena size handed to renderers.
type ArenaConfig struct {
	Width  float64 `mapstructure:"width" yaml:"width"`
	Height float64 `mapstructure:"height" yaml:"height"`
}

// EngineConfig tunes the discovery integrator and its force field.
type EngineConfig struct {
	// Frequency in Hz; dt = 1/frequency.
	Frequency     float64 `mapstructure:"frequency" yaml:"frequency" json:"frequency"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	// Resolution records a path sample every N iterations.
	Resolution              int     `mapstructure:"resolution" yaml:"resolution" json:"resolution"`
	RepulsiveGain           float64 `mapstructure:"repulsive_gain" yaml:"repulsive_gain" json:"repulsive_gain"`
	ObstacleAvoidanceRadius float64 `mapstructure:"obstacle_avoidance_radius" yaml:"obstacle_avoidance_radius" json:"obstacle_avoidance_radius"`
	AgentAvoidanceRadius    float64 `mapstructure:"agent_avoidance_radius" yaml:"agent_avoidance_radius" json:"agent_avoidance_radius"`
	RepulsionCeiling        float64 `mapstructure:"repulsion_ceiling" yaml:"repulsion_ceiling" json:"repulsion_ceiling"`
}

// LiveConfig tunes the interactive live engine.
type LiveConfig struct {
	Frequency               float64 `mapstructure:"frequency" yaml:"frequency"`
	RepulsiveGain           float64 `mapstructure:"repulsive_gain" yaml:"repulsive_gain"`
	ObstacleAvoidanceRadius float64 `mapstructure:"obstacle_avoidance_radius" yaml:"obstacle_avoidance_radius"`
	AgentAvoidanceRadius    float64 `mapstructure:"agent_avoidance_radius" yaml:"agent_avoidance_radius"`
	RepulsionCeiling        float64 `mapstructure:"repulsion_ceiling" yaml:"repulsion_ceiling"`
}

// PlayerConfig tunes the realtime kinematic player.
type PlayerConfig struct {
	Frequency float64 `mapstructure:"frequency" yaml:"frequency"`
	QueueSize int     `mapstructure:"queue_size" yaml:"queue_size"`
}

// VizConfig configures the snapshot feed for renderers.
type VizConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
	Addr      string  `mapstructure:"addr" yaml:"addr"`
	FrameRate float64 `mapstructure:"frame_rate" yaml:"frame_rate"` // websocket frames per second
}

// DefaultEngineConfig returns the discovery defaults.
func DefaultEngineConfig() EngineConfig {
	return NewDefaultConfig().Engine
}

// DefaultLiveConfig returns the live engine defaults.
func DefaultLiveConfig() LiveConfig {
	return NewDefaultConfig().Live
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "apf")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Arena --
	v.SetDefault("arena.width", 512)
	v.SetDefault("arena.height", 512)

	// -- Engine (discovery) --
	v.SetDefault("engine.frequency", 500)
	v.SetDefault("engine.max_iterations", 50000)
	v.SetDefault("engine.resolution", 10)
	v.SetDefault("engine.repulsive_gain", 64)
	v.SetDefault("engine.obstacle_avoidance_radius", 32)
	v.SetDefault("engine.agent_avoidance_radius", 32)
	v.SetDefault("engine.repulsion_ceiling", 65536)

	// -- Live --
	v.SetDefault("live.frequency", 120)
	v.SetDefault("live.repulsive_gain", 32)
	v.SetDefault("live.obstacle_avoidance_radius", 16)
	v.SetDefault("live.agent_avoidance_radius", 16)
	v.SetDefault("live.repulsion_ceiling", 65536)

	// -- Player --
	v.SetDefault("player.frequency", 120)
	v.SetDefault("player.queue_size", 16)

	// -- Viz --
	v.SetDefault("viz.enabled", false)
	v.SetDefault("viz.addr", "127.0.0.1:8420")
	v.SetDefault("viz.frame_rate", 30)
}

// NewConfigFromViper builds a validated configuration from v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Period returns the tick period of a loop running at freq Hz.
func Period(freq float64) time.Duration {
	return time.Duration(float64(time.Second) / freq)
}

// checkFrequency accepts finite positive rates whose period is at least 1ns.
func checkFrequency(name string, freq float64) error {
	if !(freq > 0) || math.IsInf(freq, 1) {
		return invalid("%s must be positive and finite, got %v", name, freq)
	}
	if Period(freq) <= 0 {
		return invalid("%s %v is too high, its tick period rounds to zero", name, freq)
	}
	return nil
}

// checkNonNegative accepts finite values >= 0. NaN fails.
func checkNonNegative(name string, x float64) error {
	if !(x >= 0) || math.IsInf(x, 1) {
		return invalid("%s must not be negative, got %v", name, x)
	}
	return nil
}

// checkPositive accepts finite values > 0.
func checkPositive(name string, x float64) error {
	if !(x > 0) || math.IsInf(x, 1) {
		return invalid("%s must be positive, got %v", name, x)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if !(c.Arena.Width >= 0) || !(c.Arena.Height >= 0) {
		return invalid("arena size must not be negative, got %vx%v", c.Arena.Width, c.Arena.Height)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Live.Validate(); err != nil {
		return fmt.Errorf("live: %w", err)
	}
	if err := c.Player.Validate(); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	if c.Viz.Enabled {
		if err := checkFrequency("viz.frame_rate", c.Viz.FrameRate); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the discovery settings.
func (e EngineConfig) Validate() error {
	if err := checkFrequency("frequency", e.Frequency); err != nil {
		return err
	}
	if e.MaxIterations <= 0 {
		return invalid("max_iterations must be positive, got %d", e.MaxIterations)
	}
	if e.Resolution <= 0 {
		return invalid("resolution must be positive, got %d", e.Resolution)
	}
	return errors.Join(
		checkNonNegative("repulsive_gain", e.RepulsiveGain),
		checkNonNegative("obstacle_avoidance_radius", e.ObstacleAvoidanceRadius),
		checkNonNegative("agent_avoidance_radius", e.AgentAvoidanceRadius),
		checkPositive("repulsion_ceiling", e.RepulsionCeiling),
	)
}

// Validate checks the live engine settings.
func (l LiveConfig) Validate() error {
	if err := checkFrequency("frequency", l.Frequency); err != nil {
		return err
	}
	return errors.Join(
		checkNonNegative("repulsive_gain", l.RepulsiveGain),
		checkNonNegative("obstacle_avoidance_radius", l.ObstacleAvoidanceRadius),
		checkNonNegative("agent_avoidance_radius", l.AgentAvoidanceRadius),
		checkPositive("repulsion_ceiling", l.RepulsionCeiling),
	)
}

// Validate checks the player settings.
func (p PlayerConfig) Validate() error {
	if err := checkFrequency("frequency", p.Frequency); err != nil {
		return err
	}
	if p.QueueSize < 0 {
		return invalid("queue_size must not be negative, got %d", p.QueueSize)
	}
	return nil
}
