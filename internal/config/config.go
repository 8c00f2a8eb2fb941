// Package config loads the application configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tunnel_hmi/internal/models"
)

const (
	envPrefix = "TUNNEL"

	DefaultPollIntervalMs = 1000
	MinPollIntervalMs     = 200
	DefaultTunnels        = 14
)

var (
	errZoneID       = errors.New("zone id must be > 0")
	errDuplicateID  = errors.New("duplicate zone id")
)

// PLC holds the controller connection parameters.
type PLC struct {
	Address          string `mapstructure:"address"`
	Rack             int    `mapstructure:"rack"`
	Slot             int    `mapstructure:"slot"`
	Port             int    `mapstructure:"port"`
	PollIntervalMs   int    `mapstructure:"poll_interval_ms"`
	Simulation       bool   `mapstructure:"simulation"`
	RetryDefaultPort bool   `mapstructure:"retry_default_port"`
	TimeoutMs        int    `mapstructure:"timeout_ms"`
}

func (p PLC) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

func (p PLC) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

type HTTP struct {
	Port string `mapstructure:"port"`
}

type DB struct {
	Path string `mapstructure:"path"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type MQTT struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
}

type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Telemetry struct {
	MQTT  MQTT  `mapstructure:"mqtt"`
	Kafka Kafka `mapstructure:"kafka"`
}

// AppConfig is the whole static configuration. Zones are the start-up set;
// runtime edits go through the registry and the overrides table.
type AppConfig struct {
	PLC       PLC                 `mapstructure:"plc"`
	Zones     []models.ZoneConfig `mapstructure:"zones"`
	HTTP      HTTP                `mapstructure:"http"`
	DB        DB                  `mapstructure:"db"`
	Log       Log                 `mapstructure:"log"`
	Auth      Auth                `mapstructure:"auth"`
	Telemetry Telemetry           `mapstructure:"telemetry"`

	// Warnings lists values adjusted while decoding. Logged once the logger exists.
	Warnings []string `mapstructure:"-"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("plc.address", "192.168.0.1")
	v.SetDefault("plc.rack", 0)
	v.SetDefault("plc.slot", 1)
	v.SetDefault("plc.port", 102)
	v.SetDefault("plc.poll_interval_ms", DefaultPollIntervalMs)
	v.SetDefault("plc.simulation", true)
	v.SetDefault("plc.retry_default_port", true)
	v.SetDefault("plc.timeout_ms", 3000)

	v.SetDefault("http.port", "8080")
	v.SetDefault("db.path", "tunnel_hmi.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("telemetry.mqtt.enabled", false)
	v.SetDefault("telemetry.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("telemetry.mqtt.topic_prefix", "tunnels")
	v.SetDefault("telemetry.mqtt.client_id", "tunnel-hmi")
	v.SetDefault("telemetry.kafka.enabled", false)
	v.SetDefault("telemetry.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("telemetry.kafka.topic", "tunnel-snapshots")
}

// Load reads configs/config.yml (or ./config.yml) plus TUNNEL_* env overrides.
// A missing file is not an error; defaults apply.
func Load(paths ...string) (*AppConfig, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals v, fills default zones, clamps the poll interval to its
// floor and validates the result.
func Decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Zones) == 0 {
		cfg.Zones = DefaultZones(DefaultTunnels)
	}
	for i := range cfg.Zones {
		cfg.Zones[i] = normalizeZone(cfg.Zones[i])
	}
	if cfg.PLC.PollIntervalMs < MinPollIntervalMs {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"plc.poll_interval_ms %d below floor, using %d", cfg.PLC.PollIntervalMs, MinPollIntervalMs))
		cfg.PLC.PollIntervalMs = MinPollIntervalMs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizeZone(z models.ZoneConfig) models.ZoneConfig {
	tags := make(models.TagMap, len(z.Tags))
	for k, t := range z.Tags {
		tags[k] = t.Normalize()
	}
	z.Tags = tags
	if z.Calibrations == nil {
		z.Calibrations = models.Calibration{}
	}
	if z.Name == "" {
		z.Name = fmt.Sprintf("Tunnel %d", z.ID)
	}
	return z
}

func (c *AppConfig) Validate() error {
	seen := make(map[int]struct{}, len(c.Zones))
	for _, z := range c.Zones {
		if z.ID <= 0 {
			return fmt.Errorf("%w: %d", errZoneID, z.ID)
		}
		if _, ok := seen[z.ID]; ok {
			return fmt.Errorf("%w: %d", errDuplicateID, z.ID)
		}
		seen[z.ID] = struct{}{}
		if err := z.Tags.Validate(); err != nil {
			return fmt.Errorf("zone %d: %w", z.ID, err)
		}
	}
	return nil
}

// DefaultZones generates n tunnels with one data block per concern:
// temperatures in DB 100+i, setpoint in DB 200+i, running bit in DB 300+i.
func DefaultZones(n int) []models.ZoneConfig {
	out := make([]models.ZoneConfig, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.ZoneConfig{
			ID:   i,
			Name: fmt.Sprintf("Tunnel %d", i),
			Tags: models.TagMap{
				models.KeyAmbientTemp: models.Real(100+i, 0),
				models.KeyPulpTemp1:   models.Real(100+i, 4),
				models.KeyPulpTemp2:   models.Real(100+i, 8),
				models.KeySetpoint:    models.Real(200+i, 0),
				models.KeyRunning:     models.Bool(300+i, 0, 0),
			},
			Calibrations: models.Calibration{},
		})
	}
	return out
}
