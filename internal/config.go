package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/graph"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Layout cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" toml:"app"`
	Vault  VaultConfig       `yaml:"vault" toml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth" toml:"auth"`
	Graph  GraphConfig       `yaml:"graph" toml:"graph"`
	Cache  CacheConfig       `yaml:"cache" toml:"cache"`
	Events EventsConfig      `yaml:"events" toml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	// LogFile, when set, receives logs through a rotating writer instead of
	// stdout.
	LogFile    string     `yaml:"log_file" toml:"log_file"`
	LogMaxSize int        `yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	HTTP       HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogMaxSize, validation.Min(0)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the deck vault location and ignore globs.
type VaultConfig struct {
	Path   string   `yaml:"path" toml:"path"`
	Ignore []string `yaml:"ignore" toml:"ignore"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Ignore, validation.Each(validation.By(validGlob))),
	)
}

func validGlob(v any) error {
	s, _ := v.(string)
	if !doublestar.ValidatePattern(s) {
		return fmt.Errorf("invalid glob %q", s)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration. An empty mode means disabled.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GraphConfig tunes the layout engine.
type GraphConfig struct {
	Depth         int           `yaml:"depth" toml:"depth"`
	MaxTicks      int           `yaml:"max_ticks" toml:"max_ticks"`
	FrameInterval time.Duration `yaml:"frame_interval" toml:"frame_interval"`
	// ReheatOnRebuild resets the temperature to 1 whenever a new visible
	// graph is launched. When false the new graph inherits the old alpha.
	ReheatOnRebuild bool         `yaml:"reheat_on_rebuild" toml:"reheat_on_rebuild"`
	Forces          graph.Forces `yaml:"forces" toml:"forces"`
	// LabelCharWidth and LabelLineHeight size the box reserved for a node label.
	LabelCharWidth  float64 `yaml:"label_char_width" toml:"label_char_width"`
	LabelLineHeight float64 `yaml:"label_line_height" toml:"label_line_height"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Depth, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.MaxTicks, validation.Required, validation.Min(1)),
		validation.Field(&c.FrameInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Forces, validation.By(validForces)),
		validation.Field(&c.LabelCharWidth, validation.Required, validation.Min(1.0)),
		validation.Field(&c.LabelLineHeight, validation.Required, validation.Min(1.0)),
	)
}

func validForces(v any) error {
	f, _ := v.(graph.Forces)
	if f.VelocityDecay <= 0 || f.VelocityDecay > 1 {
		return fmt.Errorf("velocity_decay must be in (0, 1]")
	}
	if f.DistanceMin <= 0 {
		return fmt.Errorf("distance_min must be positive")
	}
	return nil
}

// Settings converts the configuration to service settings.
func (c *GraphConfig) Settings() deckservice.GraphSettings {
	return deckservice.GraphSettings{
		Depth:         c.Depth,
		MaxTicks:      c.MaxTicks,
		FrameInterval: c.FrameInterval,
		Reheat:        c.ReheatOnRebuild,
		Forces:        c.Forces,
		CharWidth:     c.LabelCharWidth,
		LineHeight:    c.LabelLineHeight,
	}
}

// CacheConfig selects where settled layouts are kept.
type CacheConfig struct {
	Backend string        `yaml:"backend" toml:"backend"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
	Redis   RedisConfig   `yaml:"redis" toml:"redis"`
}

// RedisConfig addresses the redis layout cache.
type RedisConfig struct {
	Address  string `yaml:"address" toml:"address"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = CacheMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(CacheNone, CacheMemory, CacheRedis)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Backend == CacheRedis {
		return validation.ValidateStruct(&c.Redis,
			validation.Field(&c.Redis.Address, validation.Required),
			validation.Field(&c.Redis.DB, validation.Min(0)),
		)
	}
	return nil
}

// EventsConfig tunes the event stream.
type EventsConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle" toml:"graph_throttle"`
	Heartbeat     time.Duration `yaml:"heartbeat" toml:"heartbeat"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:   slog.LevelInfo,
			LogMaxSize: 50,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:   "./vault",
			Ignore: []string{".git/**", "**/.*"},
		},
		SQLite: SQLiteConfig{
			Path: "./deckgraph.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Graph: GraphConfig{
			Depth:           2,
			MaxTicks:        graph.SettleTicks * 2,
			FrameInterval:   graph.DefaultFrameInterval,
			ReheatOnRebuild: true,
			Forces:          graph.DefaultForces(),
			LabelCharWidth:  graph.DefaultCharWidth,
			LabelLineHeight: graph.DefaultLineHeight,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     time.Hour,
			Redis:   RedisConfig{Address: "localhost:6379", Prefix: "deckgraph:layout:"},
		},
		Events: EventsConfig{
			GraphThrottle: 2 * time.Second,
			Heartbeat:     30 * time.Second,
		},
	}
}
