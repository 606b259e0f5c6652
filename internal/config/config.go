package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gravitas-games/hexrts/internal/tick"
)

// Config holds all server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	JWT        JWTConfig        `yaml:"jwt"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Simulation SimulationConfig `yaml:"simulation"`
	Borders    BordersConfig    `yaml:"borders"`
	Chat       ChatConfig       `yaml:"chat"`
	Database   DatabaseConfig   `yaml:"database"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TickRate int    `yaml:"tick_rate"` // Hz
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
}

// SessionConfig holds game session settings
type SessionConfig struct {
	MaxPlayers  int `yaml:"max_players"`
	MapRadius   int `yaml:"map_radius"`   // hexes from origin
	ClaimRadius int `yaml:"claim_radius"` // starting territory around a spawn
}

// SimulationConfig selects the clock and world generation parameters.
type SimulationConfig struct {
	Mode          string  `yaml:"mode"` // realtime | turn_based
	HexSize       float64 `yaml:"hex_size"`
	Seed          int64   `yaml:"seed"`
	SeaLevel      float64 `yaml:"sea_level"`
	MountainLevel float64 `yaml:"mountain_level"`
	Regen         float64 `yaml:"regen"`

	Blueprints []BlueprintConfig `yaml:"blueprints"`
}

// BlueprintConfig is the construction cost of one building kind.
type BlueprintConfig struct {
	Kind       string        `yaml:"kind"`
	BuildTime  time.Duration `yaml:"build_time"`
	BuildTurns int           `yaml:"build_turns"`
}

// BordersConfig controls the territory border coordinator.
type BordersConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// On reports whether border tracking is enabled; it defaults to true.
func (b BordersConfig) On() bool { return b.Enabled == nil || *b.Enabled }

// ChatConfig holds chat system settings
type ChatConfig struct {
	MaxMessageLength int `yaml:"max_message_length"`
	RateLimit        int `yaml:"rate_limit"` // messages per minute
}

// DatabaseConfig holds the world store settings
type DatabaseConfig struct {
	Path     string        `yaml:"path"` // sqlite file; empty disables persistence
	Autosave time.Duration `yaml:"autosave"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.TickRate == 0 {
		cfg.Server.TickRate = 20
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Redis.BlacklistPrefix == "" {
		cfg.Redis.BlacklistPrefix = "jwt:blacklist:"
	}
	if cfg.Chat.MaxMessageLength == 0 {
		cfg.Chat.MaxMessageLength = 500
	}
	if cfg.Chat.RateLimit == 0 {
		cfg.Chat.RateLimit = 10
	}
	if cfg.Session.MaxPlayers == 0 {
		cfg.Session.MaxPlayers = 8
	}
	if cfg.Session.MapRadius == 0 {
		cfg.Session.MapRadius = 12
	}
	if cfg.Session.ClaimRadius == 0 {
		cfg.Session.ClaimRadius = 1
	}
	if cfg.Simulation.Mode == "" {
		cfg.Simulation.Mode = tick.RealTime.String()
	}
	if cfg.Simulation.HexSize == 0 {
		cfg.Simulation.HexSize = 1
	}
	if cfg.Simulation.SeaLevel == 0 {
		cfg.Simulation.SeaLevel = 0.3
	}
	if cfg.Simulation.MountainLevel == 0 {
		cfg.Simulation.MountainLevel = 0.75
	}
	if cfg.Simulation.Regen == 0 {
		cfg.Simulation.Regen = 1
	}
	if len(cfg.Simulation.Blueprints) == 0 {
		cfg.Simulation.Blueprints = DefaultBlueprints()
	}
	if cfg.Borders.WaitTimeout == 0 {
		cfg.Borders.WaitTimeout = 5 * time.Second
	}
	if cfg.Borders.PollInterval == 0 {
		cfg.Borders.PollInterval = 50 * time.Millisecond
	}
	if cfg.Database.Autosave == 0 {
		cfg.Database.Autosave = time.Minute
	}
}

// DefaultBlueprints returns the stock building kinds.
func DefaultBlueprints() []BlueprintConfig {
	return []BlueprintConfig{
		{Kind: "farm", BuildTime: 10 * time.Second, BuildTurns: 2},
		{Kind: "lumber_mill", BuildTime: 15 * time.Second, BuildTurns: 3},
		{Kind: "quarry", BuildTime: 20 * time.Second, BuildTurns: 3},
		{Kind: "barracks", BuildTime: 30 * time.Second, BuildTurns: 4},
	}
}

// Validate checks values that have no sensible default.
func (cfg *Config) Validate() error {
	var errs []error
	if _, err := tick.ParseMode(cfg.Simulation.Mode); err != nil {
		errs = append(errs, fmt.Errorf("simulation.mode: %w", err))
	}
	if cfg.Simulation.HexSize <= 0 {
		errs = append(errs, fmt.Errorf("simulation.hex_size must be positive, got %v", cfg.Simulation.HexSize))
	}
	if cfg.Server.TickRate < 0 {
		errs = append(errs, fmt.Errorf("server.tick_rate must be positive, got %d", cfg.Server.TickRate))
	}
	if cfg.Session.MapRadius < 0 {
		errs = append(errs, fmt.Errorf("session.map_radius must not be negative, got %d", cfg.Session.MapRadius))
	}
	seen := make(map[string]bool, len(cfg.Simulation.Blueprints))
	for _, bp := range cfg.Simulation.Blueprints {
		if bp.Kind == "" {
			errs = append(errs, errors.New("simulation.blueprints: empty kind"))
			continue
		}
		if seen[bp.Kind] {
			errs = append(errs, fmt.Errorf("simulation.blueprints: duplicate kind %q", bp.Kind))
		}
		seen[bp.Kind] = true
	}
	return errors.Join(errs...)
}

// Mode returns the parsed simulation mode.
func (cfg *Config) Mode() tick.Mode {
	m, _ := tick.ParseMode(cfg.Simulation.Mode)
	return m
}

// TickInterval returns the frame duration implied by the tick rate.
func (cfg *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(max(1, cfg.Server.TickRate))
}
